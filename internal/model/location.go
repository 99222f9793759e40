package model

import "time"

// Location is a place that can hold assets in inventory: a warehouse or a
// service vehicle.
type Location struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Location types.
const (
	LocationTypeWarehouse = "warehouse"
	LocationTypeVehicle   = "vehicle"
)
