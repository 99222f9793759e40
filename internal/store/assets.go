package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/sledilnik/internal/model"
)

const assetColumns = `a.id, a.model_id, a.serial_no, a.status, a.location_id, a.ticket_id, a.site_id, a.notes,
	       a.received_at, a.received_by, a.updated_at, a.version,
	       m.name AS model_name, COALESCE(l.name, '') AS location_name,
	       COALESCE(t.code, '') AS ticket_code, COALESCE(s.name, '') AS site_name`

const assetJoins = `FROM assets a
	JOIN equipment_models m ON m.id = a.model_id
	LEFT JOIN locations l ON l.id = a.location_id
	LEFT JOIN tickets t ON t.id = a.ticket_id
	LEFT JOIN sites s ON s.id = a.site_id`

// AssetFilter narrows ListAssets. Zero values mean "any".
type AssetFilter struct {
	LocationID int64
	ModelID    int64
	TicketID   int64
	Status     string
	Search     string
	// Oldest lists oldest-received first instead of newest first.
	Oldest bool
}

// GetAsset returns an asset by ID.
func GetAsset(ctx context.Context, q Querier, id string) (*model.Asset, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+assetColumns+` `+assetJoins+` WHERE a.id = ?`, id,
	)
	a, err := scanAsset(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting asset: %w", err)
	}
	return a, nil
}

// GetAssetBySerial returns the asset with the given serial number. A zero
// modelID matches any model; when several models share the serial the most
// recently received asset wins.
func GetAssetBySerial(ctx context.Context, q Querier, modelID int64, serial string) (*model.Asset, error) {
	serial = model.NormalizeSerial(serial)
	if serial == "" {
		return nil, nil
	}

	query := `SELECT ` + assetColumns + ` ` + assetJoins + ` WHERE a.serial_no = ?`
	args := []any{serial}
	if modelID > 0 {
		query += ` AND a.model_id = ?`
		args = append(args, modelID)
	}
	query += ` ORDER BY a.received_at DESC, a.id DESC LIMIT 1`

	a, err := scanAsset(q.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting asset by serial: %w", err)
	}
	return a, nil
}

// FindDuplicateSerial returns the asset already registered under
// (modelID, serial), regardless of its status.
func FindDuplicateSerial(ctx context.Context, q Querier, modelID int64, serial string) (*model.Asset, error) {
	if modelID <= 0 {
		return nil, fmt.Errorf("finding duplicate serial: model id required")
	}
	return GetAssetBySerial(ctx, q, modelID, serial)
}

// ListAssets returns one page of assets matching filter and the total number
// of matches.
func ListAssets(ctx context.Context, q Querier, filter AssetFilter, page Page) ([]model.Asset, int, error) {
	page = page.normalize()

	where := ` WHERE 1=1`
	var args []any

	if filter.LocationID > 0 {
		where += ` AND a.location_id = ?`
		args = append(args, filter.LocationID)
	}
	if filter.ModelID > 0 {
		where += ` AND a.model_id = ?`
		args = append(args, filter.ModelID)
	}
	if filter.TicketID > 0 {
		where += ` AND a.ticket_id = ?`
		args = append(args, filter.TicketID)
	}
	if filter.Status != "" {
		where += ` AND a.status = ?`
		args = append(args, filter.Status)
	}
	if search := model.NormalizeSerial(filter.Search); search != "" {
		where += ` AND a.serial_no LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(search)+"%")
	}

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM assets a`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting assets: %w", err)
	}

	order := ` ORDER BY a.received_at DESC, a.id DESC`
	if filter.Oldest {
		order = ` ORDER BY a.received_at ASC, a.id ASC`
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+assetColumns+` `+assetJoins+where+order+` LIMIT ? OFFSET ?`,
		append(args, page.Limit, page.Offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing assets: %w", err)
	}
	defer rows.Close()

	var assets []model.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning asset: %w", err)
		}
		assets = append(assets, *a)
	}
	return assets, total, rows.Err()
}

// InsertAsset stores a newly received asset. It must run in the same
// transaction as the asset's receive movement.
func InsertAsset(ctx context.Context, q Querier, a *model.Asset) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO assets (id, model_id, serial_no, status, location_id, ticket_id, site_id, notes,
		                     received_at, received_by, updated_at, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ModelID, a.SerialNo, a.Status, a.LocationID, a.TicketID, a.SiteID, nullString(a.Notes),
		a.ReceivedAt, a.ReceivedBy, a.UpdatedAt, a.Version,
	)
	if err != nil {
		return fmt.Errorf("inserting asset: %w", err)
	}
	return nil
}

// CompareAndSwapAsset writes the mutable state of a (status, location,
// ticket, site, notes, updated_at, version) only if the stored row still has
// expectedVersion. It reports whether the row was updated.
func CompareAndSwapAsset(ctx context.Context, q Querier, a *model.Asset, expectedVersion int64) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE assets
		 SET status = ?, location_id = ?, ticket_id = ?, site_id = ?, notes = ?, updated_at = ?, version = ?
		 WHERE id = ? AND version = ?`,
		a.Status, a.LocationID, a.TicketID, a.SiteID, nullString(a.Notes), a.UpdatedAt, a.Version,
		a.ID, expectedVersion,
	)
	if err != nil {
		return false, fmt.Errorf("updating asset: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking updated asset: %w", err)
	}
	return n == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*model.Asset, error) {
	a := &model.Asset{}
	var notes sql.NullString
	var receivedAt, updatedAt time.Time
	err := row.Scan(&a.ID, &a.ModelID, &a.SerialNo, &a.Status, &a.LocationID, &a.TicketID, &a.SiteID, &notes,
		&receivedAt, &a.ReceivedBy, &updatedAt, &a.Version,
		&a.ModelName, &a.LocationName, &a.TicketCode, &a.SiteName)
	if err != nil {
		return nil, err
	}
	a.Notes = notes.String
	a.ReceivedAt = receivedAt.UTC()
	a.UpdatedAt = updatedAt.UTC()
	return a, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
