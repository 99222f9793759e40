package lifecycle

import (
	"slices"

	"github.com/erazemk/sledilnik/internal/model"
)

// Operation names a lifecycle transition.
type Operation string

// Operations.
const (
	OpReceive       Operation = "receive"
	OpTransfer      Operation = "transfer"
	OpReserve       Operation = "reserve"
	OpUnreserve     Operation = "unreserve"
	OpDeploy        Operation = "deploy"
	OpReturn        Operation = "return"
	OpMarkDefective Operation = "mark-defective"
	OpRepair        Operation = "repair"
	OpScrap         Operation = "scrap"
	OpAdjust        Operation = "adjust"
)

// change holds the resolved parameters of one transition. Catalog references
// have already been checked to exist.
type change struct {
	target     string // adjust only
	locationID *int64
	ticketID   *int64
	siteID     *int64
	notes      string
}

type rule struct {
	movement string
	// from lists the statuses the operation may start from. Nil means any.
	from []string
	// to is the resulting status. Empty keeps the current status, except for
	// adjust where the caller picks it.
	to     string
	effect func(next *model.Asset, cur model.Asset, c change) error
}

var rules = map[Operation]rule{
	OpTransfer: {
		movement: model.MovementTransfer,
		from:     []string{model.AssetStatusInStock, model.AssetStatusReturned},
		effect: func(next *model.Asset, cur model.Asset, c change) error {
			if c.locationID == nil {
				return invalid("transfer requires a target location")
			}
			if cur.LocationID != nil && *cur.LocationID == *c.locationID {
				return invalid("asset is already at location %d", *c.locationID)
			}
			next.LocationID = c.locationID
			return nil
		},
	},
	OpReserve: {
		movement: model.MovementReserve,
		from:     []string{model.AssetStatusInStock},
		to:       model.AssetStatusReserved,
	},
	OpUnreserve: {
		movement: model.MovementUnreserve,
		from:     []string{model.AssetStatusReserved},
		to:       model.AssetStatusInStock,
	},
	OpDeploy: {
		movement: model.MovementDeploy,
		from:     []string{model.AssetStatusInStock, model.AssetStatusReserved},
		to:       model.AssetStatusDeployed,
		effect: func(next *model.Asset, _ model.Asset, c change) error {
			if c.ticketID == nil {
				return invalid("deploy requires a ticket")
			}
			next.LocationID = nil
			next.TicketID = c.ticketID
			next.SiteID = c.siteID
			return nil
		},
	},
	OpReturn: {
		movement: model.MovementReturn,
		from:     []string{model.AssetStatusDeployed},
		to:       model.AssetStatusReturned,
		effect: func(next *model.Asset, _ model.Asset, c change) error {
			if c.locationID == nil {
				return invalid("return requires a location")
			}
			next.LocationID = c.locationID
			next.TicketID = nil
			next.SiteID = nil
			return nil
		},
	},
	OpMarkDefective: {
		movement: model.MovementDefective,
		from: []string{
			model.AssetStatusInStock, model.AssetStatusReserved, model.AssetStatusDeployed,
			model.AssetStatusDefective, model.AssetStatusReturned,
		},
		to: model.AssetStatusDefective,
		effect: func(next *model.Asset, cur model.Asset, c change) error {
			if c.locationID == nil {
				return nil
			}
			if cur.Status == model.AssetStatusDeployed {
				return invalid("a deployed asset must be returned before it can be moved to a location")
			}
			next.LocationID = c.locationID
			return nil
		},
	},
	OpRepair: {
		movement: model.MovementRepair,
		from:     []string{model.AssetStatusDefective},
		to:       model.AssetStatusInStock,
		effect: func(next *model.Asset, cur model.Asset, c change) error {
			if c.locationID != nil {
				next.LocationID = c.locationID
			}
			if next.LocationID == nil {
				return invalid("repaired asset has no location, one is required")
			}
			next.TicketID = nil
			next.SiteID = nil
			return nil
		},
	},
	OpScrap: {
		movement: model.MovementScrap,
		from: []string{
			model.AssetStatusInStock, model.AssetStatusReserved,
			model.AssetStatusDefective, model.AssetStatusReturned,
		},
		to: model.AssetStatusScrapped,
	},
	OpAdjust: {
		movement: model.MovementAdjust,
		effect: func(next *model.Asset, cur model.Asset, c change) error {
			if !model.ValidAssetStatus(c.target) {
				return invalid("unknown status %q", c.target)
			}
			next.Status = c.target

			switch c.target {
			case model.AssetStatusDeployed:
				if c.ticketID != nil {
					next.TicketID = c.ticketID
					next.SiteID = c.siteID
				} else if c.siteID != nil {
					next.SiteID = c.siteID
				}
				if next.TicketID == nil {
					return invalid("adjusting to deployed requires a ticket")
				}
				if c.locationID != nil {
					return invalid("a deployed asset cannot have a location")
				}
				next.LocationID = nil
				return nil
			case model.AssetStatusInStock, model.AssetStatusReturned:
				next.TicketID = nil
				next.SiteID = nil
			}

			if c.locationID != nil {
				next.LocationID = c.locationID
			}
			return nil
		},
	},
}

func (r rule) allows(status string) bool {
	return r.from == nil || slices.Contains(r.from, status)
}

// Allowed reports whether op may be applied to an asset in status.
func Allowed(op Operation, status string) bool {
	r, ok := rules[op]
	return ok && r.allows(status)
}

// nextState computes the asset after op without touching storage. It leaves
// version, timestamps and notes to the caller.
func nextState(op Operation, cur model.Asset, c change) (model.Asset, error) {
	r, ok := rules[op]
	if !ok {
		return model.Asset{}, invalid("unknown operation %q", op)
	}
	if !r.allows(cur.Status) {
		return model.Asset{}, invalidTransition(cur.ID, cur.Status, op)
	}

	next := cur
	if r.to != "" {
		next.Status = r.to
	}
	if r.effect != nil {
		if err := r.effect(&next, cur, c); err != nil {
			return model.Asset{}, err
		}
	}
	return next, nil
}
