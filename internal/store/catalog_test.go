package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/sledilnik/internal/db"
	"github.com/erazemk/sledilnik/internal/model"
)

func TestDeleteLocationInUse(t *testing.T) {
	s := newSeed(t)
	ctx := context.Background()
	s.asset(t, s.ups, s.warehouse, "SN-1")

	err := DeleteLocation(ctx, s.db, s.warehouse)
	if !errors.Is(err, ErrLocationInUse) {
		t.Fatalf("expected ErrLocationInUse, got %v", err)
	}

	if err := DeleteLocation(ctx, s.db, s.van); err != nil {
		t.Fatalf("DeleteLocation: %v", err)
	}
	exists, err := LocationExists(ctx, s.db, s.van)
	if err != nil {
		t.Fatalf("LocationExists: %v", err)
	}
	if exists {
		t.Error("deleted location should not count as existing")
	}

	if err := DeleteLocation(ctx, s.db, s.van); !errors.Is(err, ErrLocationNotFound) {
		t.Errorf("deleting twice: expected ErrLocationNotFound, got %v", err)
	}
	if err := DeleteLocation(ctx, s.db, 999); !errors.Is(err, ErrLocationNotFound) {
		t.Errorf("unknown location: expected ErrLocationNotFound, got %v", err)
	}

	locations, err := ListLocations(ctx, s.db, "")
	if err != nil {
		t.Fatalf("ListLocations: %v", err)
	}
	if len(locations) != 1 || locations[0].ID != s.warehouse {
		t.Errorf("expected only the warehouse, got %+v", locations)
	}
}

func TestListLocationsByType(t *testing.T) {
	s := newSeed(t)

	vans, err := ListLocations(context.Background(), s.db, model.LocationTypeVehicle)
	if err != nil {
		t.Fatalf("ListLocations: %v", err)
	}
	if len(vans) != 1 || vans[0].Name != "Van 3" {
		t.Errorf("expected Van 3, got %+v", vans)
	}
}

func TestGetEquipmentModels(t *testing.T) {
	s := newSeed(t)
	ctx := context.Background()

	if err := DeleteEquipmentModel(ctx, s.db, s.battery); err != nil {
		t.Fatalf("DeleteEquipmentModel: %v", err)
	}

	found, err := GetEquipmentModels(ctx, s.db, []int64{s.ups, s.battery, 999})
	if err != nil {
		t.Fatalf("GetEquipmentModels: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected only the active model, got %+v", found)
	}
	if !found[s.ups].SerialTracked {
		t.Error("expected UPS to be serial-tracked")
	}
}

func TestListEquipmentModels(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateEquipmentModel(ctx, database, "Rectifier", "Delta", true)
	CreateEquipmentModel(ctx, database, "Cable tie", "", false)

	all, err := ListEquipmentModels(ctx, database, false)
	if err != nil {
		t.Fatalf("ListEquipmentModels: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 models, got %d", len(all))
	}

	tracked, err := ListEquipmentModels(ctx, database, true)
	if err != nil {
		t.Fatalf("ListEquipmentModels: %v", err)
	}
	if len(tracked) != 1 || tracked[0].Name != "Rectifier" {
		t.Errorf("expected only Rectifier, got %+v", tracked)
	}
}

func TestEquipmentModelPhoto(t *testing.T) {
	s := newSeed(t)
	ctx := context.Background()

	photo, mime, err := GetEquipmentModelPhoto(ctx, s.db, s.ups)
	if err != nil {
		t.Fatalf("GetEquipmentModelPhoto: %v", err)
	}
	if photo != nil || mime != "" {
		t.Errorf("expected no photo yet, got %d bytes %q", len(photo), mime)
	}

	if err := SetEquipmentModelPhoto(ctx, s.db, s.ups, []byte{0xff, 0xd8}, "image/jpeg"); err != nil {
		t.Fatalf("SetEquipmentModelPhoto: %v", err)
	}
	photo, mime, err = GetEquipmentModelPhoto(ctx, s.db, s.ups)
	if err != nil {
		t.Fatalf("GetEquipmentModelPhoto: %v", err)
	}
	if len(photo) != 2 || mime != "image/jpeg" {
		t.Errorf("unexpected photo %v %q", photo, mime)
	}

	em, _ := GetEquipmentModel(ctx, s.db, s.ups)
	if em.PhotoMime != "image/jpeg" {
		t.Errorf("expected photo mime on model, got %q", em.PhotoMime)
	}
}

func TestTickets(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	site, err := CreateSite(ctx, database, "Hospital", "Main st 1")
	if err != nil {
		t.Fatalf("CreateSite: %v", err)
	}
	ticket, err := CreateTicket(ctx, database, "T-100", &site.ID)
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if ticket.SiteName != "Hospital" || ticket.Status != "open" {
		t.Errorf("unexpected ticket %+v", ticket)
	}

	if _, err := CreateTicket(ctx, database, "T-100", nil); !IsUniqueViolation(err) {
		t.Errorf("expected duplicate ticket code to be rejected, got %v", err)
	}
	if _, err := CreateTicket(ctx, database, "T-101", nil); err != nil {
		t.Fatalf("CreateTicket without site: %v", err)
	}

	forSite, err := ListTickets(ctx, database, site.ID)
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if len(forSite) != 1 {
		t.Errorf("expected 1 ticket at site, got %d", len(forSite))
	}

	sites, err := ListSites(ctx, database)
	if err != nil {
		t.Fatalf("ListSites: %v", err)
	}
	if len(sites) != 1 || sites[0].Address != "Main st 1" {
		t.Errorf("unexpected sites %+v", sites)
	}
}

func TestListStock(t *testing.T) {
	s := newSeed(t)
	ctx := context.Background()
	s.asset(t, s.ups, s.warehouse, "U-1")
	s.asset(t, s.ups, s.warehouse, "U-2")
	s.asset(t, s.ups, s.van, "U-3")
	scrapped := s.asset(t, s.battery, s.warehouse, "B-1")

	if _, err := s.db.ExecContext(ctx, `UPDATE assets SET status = 'scrapped' WHERE id = ?`, scrapped.ID); err != nil {
		t.Fatalf("scrapping: %v", err)
	}

	levels, err := ListStock(ctx, s.db, StockFilter{})
	if err != nil {
		t.Fatalf("ListStock: %v", err)
	}
	if len(levels) != 2 {
		t.Fatalf("expected 2 stock rows, got %+v", levels)
	}
	for _, l := range levels {
		if l.LocationID != nil && *l.LocationID == s.warehouse && l.Count != 2 {
			t.Errorf("expected 2 UPS units in the warehouse, got %d", l.Count)
		}
	}

	withScrapped, err := ListStock(ctx, s.db, StockFilter{IncludeScrapped: true, ModelID: s.battery})
	if err != nil {
		t.Fatalf("ListStock: %v", err)
	}
	if len(withScrapped) != 1 || withScrapped[0].Status != model.AssetStatusScrapped {
		t.Errorf("expected one scrapped battery row, got %+v", withScrapped)
	}
}
