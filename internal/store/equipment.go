package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/sledilnik/internal/model"
)

const equipmentColumns = `id, name, manufacturer, serial_tracked, photo_mime, created_at, updated_at, deleted_at`

// CreateEquipmentModel adds a model to the equipment catalog.
func CreateEquipmentModel(ctx context.Context, db *sql.DB, name, manufacturer string, serialTracked bool) (*model.EquipmentModel, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO equipment_models (name, manufacturer, serial_tracked) VALUES (?, ?, ?)`,
		name, nullString(manufacturer), serialTracked,
	)
	if err != nil {
		return nil, fmt.Errorf("creating equipment model: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting equipment model id: %w", err)
	}

	return GetEquipmentModel(ctx, db, id)
}

// GetEquipmentModel returns a catalog model by ID.
func GetEquipmentModel(ctx context.Context, q Querier, id int64) (*model.EquipmentModel, error) {
	em, err := scanEquipmentModel(q.QueryRowContext(ctx,
		`SELECT `+equipmentColumns+` FROM equipment_models WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting equipment model: %w", err)
	}
	return em, nil
}

// GetEquipmentModels returns the active catalog models with the given IDs,
// keyed by ID. IDs without an active model are absent from the map.
func GetEquipmentModels(ctx context.Context, q Querier, ids []int64) (map[int64]model.EquipmentModel, error) {
	found := make(map[int64]model.EquipmentModel, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+equipmentColumns+` FROM equipment_models
		 WHERE deleted_at IS NULL AND id IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("getting equipment models: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		em, err := scanEquipmentModel(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning equipment model: %w", err)
		}
		found[em.ID] = *em
	}
	return found, rows.Err()
}

// ListEquipmentModels returns all non-deleted catalog models. When
// serialTrackedOnly is set, quantity-only models are left out.
func ListEquipmentModels(ctx context.Context, db *sql.DB, serialTrackedOnly bool) ([]model.EquipmentModel, error) {
	query := `SELECT ` + equipmentColumns + ` FROM equipment_models WHERE deleted_at IS NULL`
	if serialTrackedOnly {
		query += ` AND serial_tracked = 1`
	}
	query += ` ORDER BY name`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing equipment models: %w", err)
	}
	defer rows.Close()

	var models []model.EquipmentModel
	for rows.Next() {
		em, err := scanEquipmentModel(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning equipment model: %w", err)
		}
		models = append(models, *em)
	}
	return models, rows.Err()
}

// UpdateEquipmentModel updates a catalog model's metadata.
func UpdateEquipmentModel(ctx context.Context, db *sql.DB, id int64, name, manufacturer string, serialTracked bool) error {
	_, err := db.ExecContext(ctx,
		`UPDATE equipment_models SET name = ?, manufacturer = ?, serial_tracked = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		name, nullString(manufacturer), serialTracked, id,
	)
	if err != nil {
		return fmt.Errorf("updating equipment model: %w", err)
	}
	return nil
}

// DeleteEquipmentModel soft-deletes a catalog model. Existing assets keep
// referencing it.
func DeleteEquipmentModel(ctx context.Context, db *sql.DB, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE equipment_models SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting equipment model: %w", err)
	}
	return nil
}

// SetEquipmentModelPhoto sets a catalog model's photo.
func SetEquipmentModelPhoto(ctx context.Context, db *sql.DB, id int64, photo []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE equipment_models SET photo = ?, photo_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		photo, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting equipment model photo: %w", err)
	}
	return nil
}

// GetEquipmentModelPhoto returns a catalog model's photo and MIME type.
func GetEquipmentModelPhoto(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var photo []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT photo, photo_mime FROM equipment_models WHERE id = ?`, id,
	).Scan(&photo, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting equipment model photo: %w", err)
	}
	return photo, mime.String, nil
}

func scanEquipmentModel(row rowScanner) (*model.EquipmentModel, error) {
	em := &model.EquipmentModel{}
	var manufacturer, photoMime sql.NullString
	if err := row.Scan(&em.ID, &em.Name, &manufacturer, &em.SerialTracked, &photoMime,
		&em.CreatedAt, &em.UpdatedAt, &em.DeletedAt); err != nil {
		return nil, err
	}
	em.Manufacturer = manufacturer.String
	em.PhotoMime = photoMime.String
	return em, nil
}
