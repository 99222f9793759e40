package model

import "time"

// Movement is an immutable record of one transition applied to an asset.
type Movement struct {
	ID             string    `json:"id"`
	AssetID        string    `json:"asset_id"`
	Seq            int64     `json:"seq"`
	Type           string    `json:"movement_type"`
	FromLocationID *int64    `json:"from_location_id"`
	ToLocationID   *int64    `json:"to_location_id"`
	FromStatus     string    `json:"from_status,omitempty"`
	ToStatus       string    `json:"to_status"`
	TicketID       *int64    `json:"ticket_id,omitempty"`
	PerformedBy    string    `json:"performed_by"`
	PerformedAt    time.Time `json:"performed_at"`
	Notes          string    `json:"notes,omitempty"`

	// Joined fields (not always populated).
	SerialNo         string `json:"serial_no,omitempty"`
	ModelName        string `json:"model_name,omitempty"`
	FromLocationName string `json:"from_location_name,omitempty"`
	ToLocationName   string `json:"to_location_name,omitempty"`
	TicketCode       string `json:"ticket_code,omitempty"`
}

// Movement types.
const (
	MovementReceive   = "receive"
	MovementTransfer  = "transfer"
	MovementReserve   = "reserve"
	MovementUnreserve = "unreserve"
	MovementDeploy    = "deploy"
	MovementReturn    = "return"
	MovementDefective = "defective"
	MovementRepair    = "repair"
	MovementScrap     = "scrap"
	MovementAdjust    = "adjust"
)

// StockLevel is the number of assets of one model at one location in one
// status.
type StockLevel struct {
	ModelID    int64  `json:"model_id"`
	LocationID *int64 `json:"location_id"`
	Status     string `json:"status"`
	Count      int    `json:"count"`

	// Joined fields (not always populated).
	ModelName    string `json:"model_name,omitempty"`
	LocationName string `json:"location_name,omitempty"`
	LocationType string `json:"location_type,omitempty"`
}
