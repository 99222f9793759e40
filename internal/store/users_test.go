package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/sledilnik/internal/db"
	"github.com/erazemk/sledilnik/internal/model"
)

func TestCreateAndGetUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, "mojca", "hash123", model.RoleTechnician)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Username != "mojca" || user.Role != model.RoleTechnician {
		t.Errorf("unexpected user %+v", user)
	}

	got, err := GetUser(ctx, database, user.ID)
	if err != nil || got == nil || got.Username != "mojca" {
		t.Fatalf("GetUser: %+v, %v", got, err)
	}

	byName, err := GetUserByUsername(ctx, database, "mojca")
	if err != nil || byName == nil || byName.ID != user.ID {
		t.Fatalf("GetUserByUsername: %+v, %v", byName, err)
	}
	missing, err := GetUserByUsername(ctx, database, "nobody")
	if err != nil || missing != nil {
		t.Errorf("expected nil for unknown username, got %+v, %v", missing, err)
	}
}

func TestCreateUserRejects(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := CreateUser(ctx, database, "tech", "hash", model.RoleTechnician); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := CreateUser(ctx, database, "tech", "hash", model.RoleManager); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("duplicate username: expected ErrUsernameTaken, got %v", err)
	}
	if _, err := CreateUser(ctx, database, "x", "hash", "superuser"); err == nil {
		t.Error("expected error for invalid role")
	}
}

func TestListUsersByRole(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateUser(ctx, database, "zala", "hash", model.RoleTechnician)
	CreateUser(ctx, database, "ana", "hash", model.RoleTechnician)
	CreateUser(ctx, database, "boss", "hash", model.RoleManager)

	all, err := ListUsers(ctx, database, "")
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 users, got %d", len(all))
	}

	techs, err := ListUsers(ctx, database, model.RoleTechnician)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(techs) != 2 || techs[0].Username != "ana" || techs[1].Username != "zala" {
		t.Errorf("expected ana and zala by name, got %+v", techs)
	}
}

func TestDeactivatedUsernameCanBeReused(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	old, _ := CreateUser(ctx, database, "tech", "old", model.RoleTechnician)
	if err := DeactivateUser(ctx, database, old.ID); err != nil {
		t.Fatalf("DeactivateUser: %v", err)
	}
	if err := DeactivateUser(ctx, database, old.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("second deactivate: expected ErrUserNotFound, got %v", err)
	}
	if err := SetUserPassword(ctx, database, old.ID, "x"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("password of deactivated user: expected ErrUserNotFound, got %v", err)
	}

	fresh, err := CreateUser(ctx, database, "tech", "new", model.RoleManager)
	if err != nil {
		t.Fatalf("CreateUser after deactivate: %v", err)
	}
	got, _ := GetUserByUsername(ctx, database, "tech")
	if got == nil || got.ID != fresh.ID {
		t.Errorf("expected active user %d, got %+v", fresh.ID, got)
	}
}

func TestSetUserPassword(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "pwuser", "oldhash", model.RoleTechnician)
	if err := SetUserPassword(ctx, database, user.ID, "newhash"); err != nil {
		t.Fatalf("SetUserPassword: %v", err)
	}
	got, _ := GetUser(ctx, database, user.ID)
	if got.PasswordHash != "newhash" {
		t.Errorf("expected password hash 'newhash', got %q", got.PasswordHash)
	}
	if err := SetUserPassword(ctx, database, 999, "x"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown user: expected ErrUserNotFound, got %v", err)
	}
}

func TestLastAdminIsKept(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	root, _ := CreateUser(ctx, database, "root", "hash", model.RoleAdmin)
	if err := SetUserRole(ctx, database, root.ID, model.RoleManager); !errors.Is(err, ErrLastAdmin) {
		t.Errorf("demote last admin: expected ErrLastAdmin, got %v", err)
	}
	if err := DeactivateUser(ctx, database, root.ID); !errors.Is(err, ErrLastAdmin) {
		t.Errorf("deactivate last admin: expected ErrLastAdmin, got %v", err)
	}

	second, _ := CreateUser(ctx, database, "second", "hash", model.RoleTechnician)
	if err := SetUserRole(ctx, database, second.ID, model.RoleAdmin); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if err := SetUserRole(ctx, database, root.ID, model.RoleManager); err != nil {
		t.Errorf("demote with another admin left: %v", err)
	}
	if err := DeactivateUser(ctx, database, second.ID); !errors.Is(err, ErrLastAdmin) {
		t.Errorf("deactivate the remaining admin: expected ErrLastAdmin, got %v", err)
	}

	admins, _ := ListUsers(ctx, database, model.RoleAdmin)
	if len(admins) != 1 || admins[0].ID != second.ID {
		t.Errorf("expected second as the only admin, got %+v", admins)
	}
}
