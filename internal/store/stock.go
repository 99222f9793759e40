package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/sledilnik/internal/model"
)

// StockFilter narrows the stock overview. Zero values mean "any".
type StockFilter struct {
	ModelID    int64
	LocationID int64
	// IncludeScrapped keeps scrapped assets in the counts.
	IncludeScrapped bool
}

// ListStock returns asset counts grouped by model, location and status.
func ListStock(ctx context.Context, db *sql.DB, filter StockFilter) ([]model.StockLevel, error) {
	query := `SELECT a.model_id, a.location_id, a.status, COUNT(*) AS count,
	                 m.name AS model_name, COALESCE(l.name, '') AS location_name, COALESCE(l.type, '') AS location_type
	          FROM assets a
	          JOIN equipment_models m ON m.id = a.model_id
	          LEFT JOIN locations l ON l.id = a.location_id
	          WHERE 1=1`
	var args []any

	if !filter.IncludeScrapped {
		query += ` AND a.status <> ?`
		args = append(args, model.AssetStatusScrapped)
	}
	if filter.ModelID > 0 {
		query += ` AND a.model_id = ?`
		args = append(args, filter.ModelID)
	}
	if filter.LocationID > 0 {
		query += ` AND a.location_id = ?`
		args = append(args, filter.LocationID)
	}

	query += ` GROUP BY a.model_id, a.location_id, a.status
	           ORDER BY m.name, l.name, a.status`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing stock: %w", err)
	}
	defer rows.Close()

	var levels []model.StockLevel
	for rows.Next() {
		var s model.StockLevel
		if err := rows.Scan(&s.ModelID, &s.LocationID, &s.Status, &s.Count,
			&s.ModelName, &s.LocationName, &s.LocationType); err != nil {
			return nil, fmt.Errorf("scanning stock level: %w", err)
		}
		levels = append(levels, s)
	}
	return levels, rows.Err()
}
