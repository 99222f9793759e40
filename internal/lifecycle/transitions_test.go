package lifecycle

import (
	"errors"
	"slices"
	"testing"

	"github.com/erazemk/sledilnik/internal/model"
)

func ptr(v int64) *int64 { return &v }

func TestTransitionTable(t *testing.T) {
	allowed := map[Operation][]string{
		OpTransfer:      {model.AssetStatusInStock, model.AssetStatusReturned},
		OpReserve:       {model.AssetStatusInStock},
		OpUnreserve:     {model.AssetStatusReserved},
		OpDeploy:        {model.AssetStatusInStock, model.AssetStatusReserved},
		OpReturn:        {model.AssetStatusDeployed},
		OpMarkDefective: {model.AssetStatusInStock, model.AssetStatusReserved, model.AssetStatusDeployed, model.AssetStatusDefective, model.AssetStatusReturned},
		OpRepair:        {model.AssetStatusDefective},
		OpScrap:         {model.AssetStatusInStock, model.AssetStatusReserved, model.AssetStatusDefective, model.AssetStatusReturned},
		OpAdjust:        model.AssetStatuses,
	}
	changes := map[Operation]change{
		OpTransfer: {locationID: ptr(2)},
		OpDeploy:   {ticketID: ptr(7), siteID: ptr(3)},
		OpReturn:   {locationID: ptr(2)},
		OpRepair:   {locationID: ptr(2)},
		OpAdjust:   {target: model.AssetStatusInStock},
	}

	for op, from := range allowed {
		for _, status := range model.AssetStatuses {
			cur := model.Asset{ID: "a1", Status: status, LocationID: ptr(1)}
			if status == model.AssetStatusDeployed {
				cur.LocationID = nil
				cur.TicketID = ptr(5)
				cur.SiteID = ptr(3)
			}

			next, err := nextState(op, cur, changes[op])
			want := slices.Contains(from, status)

			if got := Allowed(op, status); got != want {
				t.Errorf("Allowed(%s, %s) = %v, want %v", op, status, got, want)
			}
			if !want {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("%s from %s: expected invalid transition, got %v", op, status, err)
				}
				continue
			}
			if err != nil {
				t.Errorf("%s from %s: %v", op, status, err)
				continue
			}
			checkInvariants(t, next)
		}
	}
}

func checkInvariants(t *testing.T, a model.Asset) {
	t.Helper()
	if a.Status == model.AssetStatusDeployed && (a.LocationID != nil || a.TicketID == nil) {
		t.Errorf("deployed asset must have a ticket and no location: %+v", a)
	}
	if (a.Status == model.AssetStatusInStock || a.Status == model.AssetStatusReturned) && (a.TicketID != nil || a.SiteID != nil) {
		t.Errorf("%s asset must not reference a ticket or site: %+v", a.Status, a)
	}
}

func TestInvalidTransitionCarriesState(t *testing.T) {
	cur := model.Asset{ID: "a1", Status: model.AssetStatusScrapped}
	_, err := nextState(OpDeploy, cur, change{ticketID: ptr(1)})

	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if e.Status != model.AssetStatusScrapped || e.Operation != OpDeploy || e.AssetID != "a1" {
		t.Errorf("unexpected error fields: %+v", e)
	}
}

func TestTransitionEffects(t *testing.T) {
	stocked := model.Asset{ID: "a1", Status: model.AssetStatusInStock, LocationID: ptr(1)}
	deployed := model.Asset{ID: "a1", Status: model.AssetStatusDeployed, TicketID: ptr(5), SiteID: ptr(3)}
	defectiveOnSite := model.Asset{ID: "a1", Status: model.AssetStatusDefective, TicketID: ptr(5), SiteID: ptr(3)}

	tests := []struct {
		name    string
		op      Operation
		cur     model.Asset
		c       change
		wantErr error
		check   func(t *testing.T, next model.Asset)
	}{
		{
			name:    "transfer to same location",
			op:      OpTransfer,
			cur:     stocked,
			c:       change{locationID: ptr(1)},
			wantErr: ErrValidation,
		},
		{
			name: "transfer keeps status",
			op:   OpTransfer,
			cur:  stocked,
			c:    change{locationID: ptr(2)},
			check: func(t *testing.T, next model.Asset) {
				if next.Status != model.AssetStatusInStock || *next.LocationID != 2 {
					t.Errorf("unexpected state %+v", next)
				}
			},
		},
		{
			name:    "deploy without ticket",
			op:      OpDeploy,
			cur:     stocked,
			wantErr: ErrValidation,
		},
		{
			name: "return clears ticket and site",
			op:   OpReturn,
			cur:  deployed,
			c:    change{locationID: ptr(4)},
			check: func(t *testing.T, next model.Asset) {
				if next.TicketID != nil || next.SiteID != nil || *next.LocationID != 4 {
					t.Errorf("unexpected state %+v", next)
				}
			},
		},
		{
			name:    "defective on site cannot take a location",
			op:      OpMarkDefective,
			cur:     deployed,
			c:       change{locationID: ptr(4)},
			wantErr: ErrValidation,
		},
		{
			name: "defective on site keeps ticket",
			op:   OpMarkDefective,
			cur:  deployed,
			check: func(t *testing.T, next model.Asset) {
				if next.TicketID == nil || next.LocationID != nil {
					t.Errorf("unexpected state %+v", next)
				}
			},
		},
		{
			name:    "repair without any location",
			op:      OpRepair,
			cur:     defectiveOnSite,
			wantErr: ErrValidation,
		},
		{
			name: "repair clears ticket",
			op:   OpRepair,
			cur:  defectiveOnSite,
			c:    change{locationID: ptr(1)},
			check: func(t *testing.T, next model.Asset) {
				if next.Status != model.AssetStatusInStock || next.TicketID != nil || next.SiteID != nil {
					t.Errorf("unexpected state %+v", next)
				}
			},
		},
		{
			name:    "adjust to deployed without ticket",
			op:      OpAdjust,
			cur:     stocked,
			c:       change{target: model.AssetStatusDeployed},
			wantErr: ErrValidation,
		},
		{
			name: "adjust to deployed clears location",
			op:   OpAdjust,
			cur:  stocked,
			c:    change{target: model.AssetStatusDeployed, ticketID: ptr(9)},
			check: func(t *testing.T, next model.Asset) {
				if next.LocationID != nil || *next.TicketID != 9 {
					t.Errorf("unexpected state %+v", next)
				}
			},
		},
		{
			name: "adjust deployed back to returned",
			op:   OpAdjust,
			cur:  deployed,
			c:    change{target: model.AssetStatusReturned, locationID: ptr(1)},
			check: func(t *testing.T, next model.Asset) {
				if next.TicketID != nil || next.SiteID != nil || *next.LocationID != 1 {
					t.Errorf("unexpected state %+v", next)
				}
			},
		},
		{
			name:    "adjust to unknown status",
			op:      OpAdjust,
			cur:     stocked,
			c:       change{target: "lost"},
			wantErr: ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := nextState(tt.op, tt.cur, tt.c)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("nextState: %v", err)
			}
			checkInvariants(t, next)
			if tt.check != nil {
				tt.check(t, next)
			}
		})
	}
}
