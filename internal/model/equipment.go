package model

import "time"

// EquipmentModel is a catalog entry describing a type of equipment. Only
// serial-tracked models can be received as individual assets.
type EquipmentModel struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Manufacturer  string     `json:"manufacturer,omitempty"`
	SerialTracked bool       `json:"serial_tracked"`
	PhotoMime     string     `json:"photo_mime,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

// Site is a customer site assets get deployed to.
type Site struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Ticket is a service ticket. Deployments always reference one.
type Ticket struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	SiteID    *int64    `json:"site_id,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`

	SiteName string `json:"site_name,omitempty"`
}
