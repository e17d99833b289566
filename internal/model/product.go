package model

import "time"

// Product represents a catalog item in the system.
// This is a pure domain model with no database-specific dependencies or tags.
// Its JSON representation mirrors the full field set: every field is
// serialized, none omitted or renamed.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	SKU         string    `json:"sku"`
	Category    string    `json:"category"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	ImagePath   string    `json:"image_path"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
