package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/sledilnik/internal/model"
)

// ErrLocationInUse is returned when deleting a location that still holds
// assets.
var ErrLocationInUse = errors.New("location still holds assets")

// ErrLocationNotFound is returned when deleting a missing or already deleted
// location.
var ErrLocationNotFound = errors.New("location not found")

// CreateLocation creates a new warehouse or vehicle location.
func CreateLocation(ctx context.Context, db *sql.DB, name, locationType string) (*model.Location, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO locations (name, type) VALUES (?, ?)`,
		name, locationType,
	)
	if err != nil {
		return nil, fmt.Errorf("creating location: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting location id: %w", err)
	}

	return GetLocation(ctx, db, id)
}

// GetLocation returns a location by ID, including soft-deleted ones.
func GetLocation(ctx context.Context, q Querier, id int64) (*model.Location, error) {
	l := &model.Location{}
	err := q.QueryRowContext(ctx,
		`SELECT id, name, type, created_at, deleted_at
		 FROM locations WHERE id = ?`, id,
	).Scan(&l.ID, &l.Name, &l.Type, &l.CreatedAt, &l.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting location: %w", err)
	}
	return l, nil
}

// LocationExists reports whether an active location with id exists.
func LocationExists(ctx context.Context, q Querier, id int64) (bool, error) {
	var found int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM locations WHERE id = ? AND deleted_at IS NULL`, id,
	).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking location: %w", err)
	}
	return true, nil
}

// ListLocations returns all non-deleted locations, optionally filtered by type.
func ListLocations(ctx context.Context, db *sql.DB, locationType string) ([]model.Location, error) {
	query := `SELECT id, name, type, created_at, deleted_at
	          FROM locations WHERE deleted_at IS NULL`
	var args []any
	if locationType != "" {
		query += ` AND type = ?`
		args = append(args, locationType)
	}
	query += ` ORDER BY name`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}
	defer rows.Close()

	var locations []model.Location
	for rows.Next() {
		var l model.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Type, &l.CreatedAt, &l.DeletedAt); err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

// UpdateLocation renames a location.
func UpdateLocation(ctx context.Context, db *sql.DB, id int64, name string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE locations SET name = ? WHERE id = ? AND deleted_at IS NULL`,
		name, id,
	)
	if err != nil {
		return fmt.Errorf("updating location: %w", err)
	}
	return nil
}

// DeleteLocation soft-deletes a location. The asset check and the delete are
// one statement, so an asset committed to the location concurrently either
// blocks the delete or is rejected by the location check in its own
// transaction.
func DeleteLocation(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE locations SET deleted_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL
		   AND NOT EXISTS (SELECT 1 FROM assets WHERE location_id = ?)`,
		id, id,
	)
	if err != nil {
		return fmt.Errorf("deleting location: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting location: %w", err)
	}
	if n == 1 {
		return nil
	}

	exists, err := LocationExists(ctx, db, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("deleting location %d: %w", id, ErrLocationNotFound)
	}
	return fmt.Errorf("deleting location %d: %w", id, ErrLocationInUse)
}
