package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/sledilnik/internal/model"
)

const movementColumns = `mv.id, mv.asset_id, mv.seq, mv.movement_type, mv.from_location_id, mv.to_location_id,
	       mv.from_status, mv.to_status, mv.ticket_id, mv.performed_by, mv.performed_at, mv.notes,
	       a.serial_no, m.name AS model_name,
	       COALESCE(fl.name, '') AS from_location_name, COALESCE(tl.name, '') AS to_location_name,
	       COALESCE(t.code, '') AS ticket_code`

const movementJoins = `FROM movements mv
	JOIN assets a ON a.id = mv.asset_id
	JOIN equipment_models m ON m.id = a.model_id
	LEFT JOIN locations fl ON fl.id = mv.from_location_id
	LEFT JOIN locations tl ON tl.id = mv.to_location_id
	LEFT JOIN tickets t ON t.id = mv.ticket_id`

const (
	defaultMovementLimit = 100
	maxMovementLimit     = 1000
)

// MovementFilter narrows ListMovements. Zero values mean "any".
type MovementFilter struct {
	AssetID    string
	TicketID   int64
	LocationID int64
	Type       string
	// PerformedBy is the actor's username.
	PerformedBy string
}

// InsertMovement appends a movement to the ledger. It must run in the same
// transaction as the asset write it records.
func InsertMovement(ctx context.Context, q Querier, m *model.Movement) error {
	var fromStatus sql.NullString
	if m.FromStatus != "" {
		fromStatus = sql.NullString{String: m.FromStatus, Valid: true}
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO movements (id, asset_id, seq, movement_type, from_location_id, to_location_id,
		                        from_status, to_status, ticket_id, performed_by, performed_at, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.AssetID, m.Seq, m.Type, m.FromLocationID, m.ToLocationID,
		fromStatus, m.ToStatus, m.TicketID, m.PerformedBy, m.PerformedAt, nullString(m.Notes),
	)
	if err != nil {
		return fmt.Errorf("recording movement: %w", err)
	}
	return nil
}

// ListMovementsForAsset returns up to limit movements of one asset, newest
// first.
func ListMovementsForAsset(ctx context.Context, q Querier, assetID string, limit int) ([]model.Movement, error) {
	return ListMovements(ctx, q, MovementFilter{AssetID: assetID}, limit)
}

// ListMovements returns up to limit movements matching filter, newest first.
// A location matches movements leaving or entering it.
func ListMovements(ctx context.Context, q Querier, filter MovementFilter, limit int) ([]model.Movement, error) {
	if limit <= 0 {
		limit = defaultMovementLimit
	}
	if limit > maxMovementLimit {
		limit = maxMovementLimit
	}

	query := `SELECT ` + movementColumns + ` ` + movementJoins + ` WHERE 1=1`
	var args []any

	if filter.AssetID != "" {
		query += ` AND mv.asset_id = ?`
		args = append(args, filter.AssetID)
	}
	if filter.TicketID > 0 {
		query += ` AND mv.ticket_id = ?`
		args = append(args, filter.TicketID)
	}
	if filter.LocationID > 0 {
		query += ` AND (mv.from_location_id = ? OR mv.to_location_id = ?)`
		args = append(args, filter.LocationID, filter.LocationID)
	}
	if filter.Type != "" {
		query += ` AND mv.movement_type = ?`
		args = append(args, filter.Type)
	}
	if filter.PerformedBy != "" {
		query += ` AND mv.performed_by = ?`
		args = append(args, filter.PerformedBy)
	}

	query += ` ORDER BY mv.performed_at DESC, mv.seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing movements: %w", err)
	}
	defer rows.Close()

	return scanMovements(rows)
}

// LedgerForAsset returns every movement of one asset in the order they were
// committed.
func LedgerForAsset(ctx context.Context, q Querier, assetID string) ([]model.Movement, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+movementColumns+` `+movementJoins+`
		 WHERE mv.asset_id = ?
		 ORDER BY mv.performed_at ASC, mv.seq ASC`, assetID,
	)
	if err != nil {
		return nil, fmt.Errorf("reading asset ledger: %w", err)
	}
	defer rows.Close()

	return scanMovements(rows)
}

func scanMovements(rows *sql.Rows) ([]model.Movement, error) {
	var movements []model.Movement
	for rows.Next() {
		var m model.Movement
		var fromStatus, notes sql.NullString
		var performedAt time.Time
		if err := rows.Scan(&m.ID, &m.AssetID, &m.Seq, &m.Type, &m.FromLocationID, &m.ToLocationID,
			&fromStatus, &m.ToStatus, &m.TicketID, &m.PerformedBy, &performedAt, &notes,
			&m.SerialNo, &m.ModelName, &m.FromLocationName, &m.ToLocationName, &m.TicketCode); err != nil {
			return nil, fmt.Errorf("scanning movement: %w", err)
		}
		m.FromStatus = fromStatus.String
		m.Notes = notes.String
		m.PerformedAt = performedAt.UTC()
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
