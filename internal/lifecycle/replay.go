package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/erazemk/sledilnik/internal/model"
	"github.com/erazemk/sledilnik/internal/store"
)

// State is the part of an asset that its ledger determines.
type State struct {
	Status     string `json:"status"`
	LocationID *int64 `json:"location_id"`
	Version    int64  `json:"version"`
}

// Verification compares an asset row with the state replayed from its
// movements.
type Verification struct {
	AssetID    string   `json:"asset_id"`
	Consistent bool     `json:"consistent"`
	Movements  int      `json:"movements"`
	Registry   State    `json:"registry"`
	Ledger     State    `json:"ledger"`
	Problems   []string `json:"problems,omitempty"`
}

var errEmptyLedger = errors.New("ledger is empty")

// Replay folds movements, given in commit order, into the state they
// describe. It fails if the movements do not form one unbroken chain
// starting with a receive.
func Replay(movements []model.Movement) (State, error) {
	if len(movements) == 0 {
		return State{}, errEmptyLedger
	}

	var s State
	for i, m := range movements {
		if m.Seq != int64(i+1) {
			return s, fmt.Errorf("movement %s has seq %d, expected %d", m.ID, m.Seq, i+1)
		}
		if i == 0 && m.Type != model.MovementReceive {
			return s, fmt.Errorf("ledger starts with %s instead of receive", m.Type)
		}
		if i > 0 {
			if m.Type == model.MovementReceive {
				return s, fmt.Errorf("movement %d is a second receive", m.Seq)
			}
			if m.FromStatus != s.Status {
				return s, fmt.Errorf("movement %d starts from %s but asset was %s", m.Seq, m.FromStatus, s.Status)
			}
		}
		s.Status = m.ToStatus
		s.LocationID = m.ToLocationID
		s.Version = m.Seq
	}
	return s, nil
}

// Verify replays an asset's ledger and compares the result with the stored
// asset row.
func Verify(ctx context.Context, q store.Querier, assetID string) (*Verification, error) {
	a, err := store.GetAsset(ctx, q, assetID)
	if err != nil {
		return nil, internal(err)
	}
	if a == nil {
		return nil, notFound("asset %s not found", assetID)
	}

	movements, err := store.LedgerForAsset(ctx, q, assetID)
	if err != nil {
		return nil, internal(err)
	}

	v := &Verification{
		AssetID:   a.ID,
		Movements: len(movements),
		Registry:  State{Status: a.Status, LocationID: a.LocationID, Version: a.Version},
	}

	ledger, err := Replay(movements)
	v.Ledger = ledger
	if err != nil {
		v.Problems = append(v.Problems, err.Error())
	}
	if ledger.Status != a.Status {
		v.Problems = append(v.Problems, fmt.Sprintf("status is %s, ledger says %s", a.Status, ledger.Status))
	}
	if !sameLocation(ledger.LocationID, a.LocationID) {
		v.Problems = append(v.Problems, fmt.Sprintf("location is %s, ledger says %s",
			formatLocation(a.LocationID), formatLocation(ledger.LocationID)))
	}
	if ledger.Version != a.Version {
		v.Problems = append(v.Problems, fmt.Sprintf("version is %d, ledger has %d movements", a.Version, ledger.Version))
	}

	v.Consistent = len(v.Problems) == 0
	return v, nil
}

func sameLocation(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func formatLocation(id *int64) string {
	if id == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *id)
}
