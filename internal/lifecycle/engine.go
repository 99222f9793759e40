// Package lifecycle applies state transitions to serialized assets. Every
// transition updates the asset row and appends one movement in a single
// transaction, guarded by the asset's version.
package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/erazemk/sledilnik/internal/model"
	"github.com/erazemk/sledilnik/internal/store"
)

// ReceiveItem is one unit in a receive batch.
type ReceiveItem struct {
	ModelID  int64  `json:"model_id" validate:"required,gt=0"`
	SerialNo string `json:"serial_no" validate:"max=100"`
	Notes    string `json:"notes" validate:"max=2000"`
}

// ReceiveRequest registers a batch of new assets at one location.
type ReceiveRequest struct {
	LocationID int64         `json:"location_id" validate:"required,gt=0"`
	Items      []ReceiveItem `json:"items" validate:"required,min=1,max=500,dive"`
	Notes      string        `json:"notes" validate:"max=2000"`
}

// ReceiveFailure describes one batch item that was not received.
type ReceiveFailure struct {
	Index    int    `json:"index"`
	ModelID  int64  `json:"model_id"`
	SerialNo string `json:"serial_no"`
	Kind     Kind   `json:"kind"`
	Error    string `json:"error"`
}

// ReceiveResult reports the outcome of every item in a batch.
type ReceiveResult struct {
	Received []model.Asset    `json:"received"`
	Failed   []ReceiveFailure `json:"failed"`
}

// TransferRequest moves an asset between locations.
type TransferRequest struct {
	LocationID int64  `json:"location_id" validate:"required,gt=0"`
	Notes      string `json:"notes" validate:"max=2000"`
}

// NotesRequest is used by operations that take no parameters.
type NotesRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// DeployRequest installs an asset for a service ticket. Without a site the
// ticket's site is used.
type DeployRequest struct {
	TicketID int64  `json:"ticket_id" validate:"required,gt=0"`
	SiteID   int64  `json:"site_id" validate:"omitempty,gt=0"`
	Notes    string `json:"notes" validate:"max=2000"`
}

// ReturnRequest brings a deployed asset back to a location.
type ReturnRequest struct {
	LocationID int64  `json:"location_id" validate:"required,gt=0"`
	Notes      string `json:"notes" validate:"max=2000"`
}

// LocationRequest is used by mark-defective and repair, where the location
// is optional.
type LocationRequest struct {
	LocationID int64  `json:"location_id" validate:"omitempty,gt=0"`
	Notes      string `json:"notes" validate:"max=2000"`
}

// AdjustRequest forces an asset into a status, for correcting records.
type AdjustRequest struct {
	Status     string `json:"status" validate:"required,oneof=in_stock reserved deployed defective returned scrapped"`
	LocationID int64  `json:"location_id" validate:"omitempty,gt=0"`
	TicketID   int64  `json:"ticket_id" validate:"omitempty,gt=0"`
	SiteID     int64  `json:"site_id" validate:"omitempty,gt=0"`
	Notes      string `json:"notes" validate:"required,max=2000"`
}

// Engine is the only writer of assets and movements.
type Engine struct {
	db       *sql.DB
	validate *validator.Validate
	now      func() time.Time
	newID    func() string

	// afterLoad runs after the current asset state is read and before it is
	// written back. Tests use it to line up concurrent transitions.
	afterLoad func(model.Asset)
}

// New returns an engine writing to db.
func New(db *sql.DB) *Engine {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Engine{
		db:       db,
		validate: validate,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Receive registers new assets in status in_stock. Unknown or quantity-only
// models reject the whole batch; any other problem fails only its item.
func (e *Engine) Receive(ctx context.Context, req ReceiveRequest, actor string) (*ReceiveResult, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, invalid("actor is required")
	}
	if err := e.check(req); err != nil {
		return nil, err
	}

	locationID, err := location(ctx, e.db, req.LocationID)
	if err != nil {
		return nil, err
	}

	var modelIDs []int64
	for _, item := range req.Items {
		if !slices.Contains(modelIDs, item.ModelID) {
			modelIDs = append(modelIDs, item.ModelID)
		}
	}
	models, err := store.GetEquipmentModels(ctx, e.db, modelIDs)
	if err != nil {
		return nil, internal(err)
	}
	for _, id := range modelIDs {
		m, ok := models[id]
		if !ok {
			return nil, notFound("equipment model %d not found", id)
		}
		if !m.SerialTracked {
			return nil, invalid("equipment model %q is not serial-tracked", m.Name)
		}
	}

	result := &ReceiveResult{Received: []model.Asset{}, Failed: []ReceiveFailure{}}
	for i, item := range req.Items {
		asset, err := e.receiveOne(ctx, locationID, item, strings.TrimSpace(req.Notes), actor)
		if err != nil {
			var engineErr *Error
			if !errors.As(err, &engineErr) {
				engineErr = internal(err)
			}
			if engineErr.Kind == KindInternal {
				slog.Error("receiving asset", "model", item.ModelID, "serial", item.SerialNo, "error", engineErr.Cause)
			}
			result.Failed = append(result.Failed, ReceiveFailure{
				Index:    i,
				ModelID:  item.ModelID,
				SerialNo: item.SerialNo,
				Kind:     engineErr.Kind,
				Error:    engineErr.Error(),
			})
			continue
		}
		result.Received = append(result.Received, *asset)
	}

	return result, nil
}

func (e *Engine) receiveOne(ctx context.Context, locationID *int64, item ReceiveItem, batchNotes, actor string) (*model.Asset, error) {
	serial := model.NormalizeSerial(item.SerialNo)
	if serial == "" {
		return nil, invalid("serial number is required")
	}

	dupe, err := store.FindDuplicateSerial(ctx, e.db, item.ModelID, serial)
	if err != nil {
		return nil, internal(err)
	}
	if dupe != nil {
		return nil, duplicateSerial(item.ModelID, serial)
	}

	notes := strings.TrimSpace(item.Notes)
	if notes == "" {
		notes = batchNotes
	}

	now := e.now().UTC()
	asset := &model.Asset{
		ID:         e.newID(),
		ModelID:    item.ModelID,
		SerialNo:   serial,
		Status:     model.AssetStatusInStock,
		LocationID: locationID,
		Notes:      notes,
		ReceivedAt: now,
		ReceivedBy: actor,
		UpdatedAt:  now,
		Version:    1,
	}
	mv := &model.Movement{
		ID:           e.newID(),
		AssetID:      asset.ID,
		Seq:          asset.Version,
		Type:         model.MovementReceive,
		ToLocationID: locationID,
		ToStatus:     asset.Status,
		PerformedBy:  actor,
		PerformedAt:  now,
		Notes:        notes,
	}

	ctx = context.WithoutCancel(ctx)
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := location(ctx, tx, *locationID); err != nil {
			return err
		}
		if err := store.InsertAsset(ctx, tx, asset); err != nil {
			if store.IsUniqueViolation(err) {
				return duplicateSerial(item.ModelID, serial)
			}
			return internal(err)
		}
		if err := store.InsertMovement(ctx, tx, mv); err != nil {
			return internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return e.reload(ctx, *asset), nil
}

// Transfer moves an in-stock or returned asset to another location.
func (e *Engine) Transfer(ctx context.Context, assetID string, req TransferRequest, actor string) (*model.Asset, error) {
	if err := e.check(req); err != nil {
		return nil, err
	}
	return e.apply(ctx, OpTransfer, assetID, actor, refs{location: req.LocationID, notes: req.Notes})
}

// Reserve holds an in-stock asset for an upcoming job.
func (e *Engine) Reserve(ctx context.Context, assetID string, req NotesRequest, actor string) (*model.Asset, error) {
	if err := e.check(req); err != nil {
		return nil, err
	}
	return e.apply(ctx, OpReserve, assetID, actor, refs{notes: req.Notes})
}

// Unreserve releases a reservation.
func (e *Engine) Unreserve(ctx context.Context, assetID string, req NotesRequest, actor string) (*model.Asset, error) {
	if err := e.check(req); err != nil {
		return nil, err
	}
	return e.apply(ctx, OpUnreserve, assetID, actor, refs{notes: req.Notes})
}

// Deploy installs an asset at a customer site for a ticket.
func (e *Engine) Deploy(ctx context.Context, assetID string, req DeployRequest, actor string) (*model.Asset, error) {
	if err := e.check(req); err != nil {
		return nil, err
	}
	return e.apply(ctx, OpDeploy, assetID, actor, refs{ticket: req.TicketID, site: req.SiteID, notes: req.Notes})
}

// Return brings a deployed asset back into a location.
func (e *Engine) Return(ctx context.Context, assetID string, req ReturnRequest, actor string) (*model.Asset, error) {
	if err := e.check(req); err != nil {
		return nil, err
	}
	return e.apply(ctx, OpReturn, assetID, actor, refs{location: req.LocationID, notes: req.Notes})
}

// MarkDefective flags an asset as faulty.
func (e *Engine) MarkDefective(ctx context.Context, assetID string, req LocationRequest, actor string) (*model.Asset, error) {
	if err := e.check(req); err != nil {
		return nil, err
	}
	return e.apply(ctx, OpMarkDefective, assetID, actor, refs{location: req.LocationID, notes: req.Notes})
}

// Repair puts a defective asset back in stock.
func (e *Engine) Repair(ctx context.Context, assetID string, req LocationRequest, actor string) (*model.Asset, error) {
	if err := e.check(req); err != nil {
		return nil, err
	}
	return e.apply(ctx, OpRepair, assetID, actor, refs{location: req.LocationID, notes: req.Notes})
}

// Scrap retires an asset for good.
func (e *Engine) Scrap(ctx context.Context, assetID string, req NotesRequest, actor string) (*model.Asset, error) {
	if err := e.check(req); err != nil {
		return nil, err
	}
	return e.apply(ctx, OpScrap, assetID, actor, refs{notes: req.Notes})
}

// Adjust sets an asset's status directly, bypassing the transition table.
// It is still recorded as a movement.
func (e *Engine) Adjust(ctx context.Context, assetID string, req AdjustRequest, actor string) (*model.Asset, error) {
	if err := e.check(req); err != nil {
		return nil, err
	}
	return e.apply(ctx, OpAdjust, assetID, actor, refs{
		target:   req.Status,
		location: req.LocationID,
		ticket:   req.TicketID,
		site:     req.SiteID,
		notes:    req.Notes,
	})
}

// refs carries the catalog IDs of a request before they are resolved. Zero
// means not given.
type refs struct {
	target   string
	location int64
	ticket   int64
	site     int64
	notes    string
}

// apply loads the asset and checks the operation is legal from its status.
// Catalog references are resolved inside the write transaction, so a
// location deleted after the load cannot receive the asset.
func (e *Engine) apply(ctx context.Context, op Operation, assetID, actor string, r refs) (*model.Asset, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, invalid("actor is required")
	}

	cur, err := store.GetAsset(ctx, e.db, assetID)
	if err != nil {
		return nil, internal(err)
	}
	if cur == nil {
		return nil, notFound("asset %s not found", assetID)
	}
	if e.afterLoad != nil {
		e.afterLoad(*cur)
	}
	if !Allowed(op, cur.Status) {
		return nil, invalidTransition(cur.ID, cur.Status, op)
	}

	var next model.Asset
	ctx = context.WithoutCancel(ctx)
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		c, err := resolve(ctx, tx, r)
		if err != nil {
			return err
		}
		next, err = nextState(op, *cur, c)
		if err != nil {
			var engineErr *Error
			if errors.As(err, &engineErr) && engineErr.AssetID == "" {
				engineErr.AssetID = cur.ID
			}
			return err
		}

		// performed_at never goes backwards for one asset, even if the clock does.
		now := e.now().UTC()
		if now.Before(cur.UpdatedAt) {
			now = cur.UpdatedAt
		}
		next.UpdatedAt = now
		next.Version = cur.Version + 1
		notes := strings.TrimSpace(c.notes)
		if notes != "" {
			next.Notes = notes
		}

		ticketID := next.TicketID
		if ticketID == nil {
			ticketID = cur.TicketID
		}
		mv := &model.Movement{
			ID:             e.newID(),
			AssetID:        cur.ID,
			Seq:            next.Version,
			Type:           rules[op].movement,
			FromLocationID: cur.LocationID,
			ToLocationID:   next.LocationID,
			FromStatus:     cur.Status,
			ToStatus:       next.Status,
			TicketID:       ticketID,
			PerformedBy:    actor,
			PerformedAt:    now,
			Notes:          notes,
		}

		ok, err := store.CompareAndSwapAsset(ctx, tx, &next, cur.Version)
		if err != nil {
			return internal(err)
		}
		if !ok {
			return conflict(cur.ID, op)
		}
		if err := store.InsertMovement(ctx, tx, mv); err != nil {
			if store.IsUniqueViolation(err) {
				return conflict(cur.ID, op)
			}
			return internal(err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			slog.Warn("transition lost a race", "asset", cur.ID, "operation", op, "version", cur.Version)
		}
		return nil, err
	}

	return e.reload(ctx, next), nil
}

func (e *Engine) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return internal(fmt.Errorf("beginning transaction: %w", err))
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return internal(fmt.Errorf("committing transaction: %w", err))
	}
	return nil
}

// reload re-reads a committed asset to fill in display fields. The write has
// already succeeded, so a failed read falls back to the computed state.
func (e *Engine) reload(ctx context.Context, written model.Asset) *model.Asset {
	a, err := store.GetAsset(ctx, e.db, written.ID)
	if err != nil || a == nil {
		slog.Warn("re-reading asset after write", "asset", written.ID, "error", err)
		return &written
	}
	return a
}

func (e *Engine) check(req any) error {
	err := e.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &Error{Kind: KindValidation, Message: "invalid request", Cause: err}
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
		}
	}
	return &Error{Kind: KindValidation, Message: strings.Join(msgs, "; "), Cause: err}
}

// resolve checks every catalog reference in r against q.
func resolve(ctx context.Context, q store.Querier, r refs) (change, error) {
	c := change{target: r.target, notes: r.notes}
	var err error
	if c.locationID, err = location(ctx, q, r.location); err != nil {
		return change{}, err
	}
	if r.ticket > 0 {
		c.ticketID, c.siteID, err = ticketAndSite(ctx, q, r.ticket, r.site)
	} else {
		c.siteID, err = site(ctx, q, r.site)
	}
	if err != nil {
		return change{}, err
	}
	return c, nil
}

// location returns a pointer to id after checking it names an active
// location. Zero means no location.
func location(ctx context.Context, q store.Querier, id int64) (*int64, error) {
	if id == 0 {
		return nil, nil
	}
	ok, err := store.LocationExists(ctx, q, id)
	if err != nil {
		return nil, internal(err)
	}
	if !ok {
		return nil, notFound("location %d not found", id)
	}
	return &id, nil
}

func site(ctx context.Context, q store.Querier, id int64) (*int64, error) {
	if id == 0 {
		return nil, nil
	}
	s, err := store.GetSite(ctx, q, id)
	if err != nil {
		return nil, internal(err)
	}
	if s == nil {
		return nil, notFound("site %d not found", id)
	}
	return &s.ID, nil
}

// ticketAndSite resolves a ticket and the site an asset deployed for it ends
// up at: the explicit site if given, otherwise the ticket's own.
func ticketAndSite(ctx context.Context, q store.Querier, ticketID, siteID int64) (*int64, *int64, error) {
	t, err := store.GetTicket(ctx, q, ticketID)
	if err != nil {
		return nil, nil, internal(err)
	}
	if t == nil {
		return nil, nil, notFound("ticket %d not found", ticketID)
	}

	if siteID == 0 {
		return &t.ID, t.SiteID, nil
	}
	s, err := site(ctx, q, siteID)
	if err != nil {
		return nil, nil, err
	}
	return &t.ID, s, nil
}
