package model

import (
	"strings"
	"time"
)

// Asset is one serial-numbered equipment unit. Its state is a materialized
// view of its movements.
type Asset struct {
	ID         string    `json:"id"`
	ModelID    int64     `json:"model_id"`
	SerialNo   string    `json:"serial_no"`
	Status     string    `json:"status"`
	LocationID *int64    `json:"location_id"`
	TicketID   *int64    `json:"ticket_id"`
	SiteID     *int64    `json:"site_id"`
	Notes      string    `json:"notes,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
	ReceivedBy string    `json:"received_by"`
	UpdatedAt  time.Time `json:"updated_at"`
	Version    int64     `json:"version"`

	// Joined fields (not always populated).
	ModelName    string `json:"model_name,omitempty"`
	LocationName string `json:"location_name,omitempty"`
	TicketCode   string `json:"ticket_code,omitempty"`
	SiteName     string `json:"site_name,omitempty"`
}

// Asset statuses.
const (
	AssetStatusInStock   = "in_stock"
	AssetStatusReserved  = "reserved"
	AssetStatusDeployed  = "deployed"
	AssetStatusDefective = "defective"
	AssetStatusReturned  = "returned"
	AssetStatusScrapped  = "scrapped"
)

// AssetStatuses lists every status in lifecycle order.
var AssetStatuses = []string{
	AssetStatusInStock,
	AssetStatusReserved,
	AssetStatusDeployed,
	AssetStatusDefective,
	AssetStatusReturned,
	AssetStatusScrapped,
}

// ValidAssetStatus reports whether s is a known asset status.
func ValidAssetStatus(s string) bool {
	for _, status := range AssetStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// NormalizeSerial trims and uppercases a serial number. Lookups and
// uniqueness checks always use the normalized form.
func NormalizeSerial(serial string) string {
	return strings.ToUpper(strings.TrimSpace(serial))
}
