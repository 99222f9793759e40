package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/sledilnik/internal/model"
)

// CreateSite creates a customer site.
func CreateSite(ctx context.Context, db *sql.DB, name, address string) (*model.Site, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO sites (name, address) VALUES (?, ?)`,
		name, nullString(address),
	)
	if err != nil {
		return nil, fmt.Errorf("creating site: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting site id: %w", err)
	}

	return GetSite(ctx, db, id)
}

// GetSite returns a site by ID.
func GetSite(ctx context.Context, q Querier, id int64) (*model.Site, error) {
	s := &model.Site{}
	var address sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT id, name, address, created_at FROM sites WHERE id = ?`, id,
	).Scan(&s.ID, &s.Name, &address, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting site: %w", err)
	}
	s.Address = address.String
	return s, nil
}

// ListSites returns all sites by name.
func ListSites(ctx context.Context, db *sql.DB) ([]model.Site, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, address, created_at FROM sites ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sites: %w", err)
	}
	defer rows.Close()

	var sites []model.Site
	for rows.Next() {
		var s model.Site
		var address sql.NullString
		if err := rows.Scan(&s.ID, &s.Name, &address, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning site: %w", err)
		}
		s.Address = address.String
		sites = append(sites, s)
	}
	return sites, rows.Err()
}

// CreateTicket creates a service ticket, optionally bound to a site.
func CreateTicket(ctx context.Context, db *sql.DB, code string, siteID *int64) (*model.Ticket, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO tickets (code, site_id) VALUES (?, ?)`,
		code, siteID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating ticket: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting ticket id: %w", err)
	}

	return GetTicket(ctx, db, id)
}

// GetTicket returns a ticket by ID.
func GetTicket(ctx context.Context, q Querier, id int64) (*model.Ticket, error) {
	t := &model.Ticket{}
	err := q.QueryRowContext(ctx,
		`SELECT t.id, t.code, t.site_id, t.status, t.created_at, COALESCE(s.name, '') AS site_name
		 FROM tickets t
		 LEFT JOIN sites s ON s.id = t.site_id
		 WHERE t.id = ?`, id,
	).Scan(&t.ID, &t.Code, &t.SiteID, &t.Status, &t.CreatedAt, &t.SiteName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting ticket: %w", err)
	}
	return t, nil
}

// ListTickets returns tickets, optionally filtered by site, newest first.
func ListTickets(ctx context.Context, db *sql.DB, siteID int64) ([]model.Ticket, error) {
	query := `SELECT t.id, t.code, t.site_id, t.status, t.created_at, COALESCE(s.name, '') AS site_name
	          FROM tickets t
	          LEFT JOIN sites s ON s.id = t.site_id
	          WHERE 1=1`
	var args []any
	if siteID > 0 {
		query += ` AND t.site_id = ?`
		args = append(args, siteID)
	}
	query += ` ORDER BY t.created_at DESC, t.id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tickets: %w", err)
	}
	defer rows.Close()

	var tickets []model.Ticket
	for rows.Next() {
		var t model.Ticket
		if err := rows.Scan(&t.ID, &t.Code, &t.SiteID, &t.Status, &t.CreatedAt, &t.SiteName); err != nil {
			return nil, fmt.Errorf("scanning ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}
