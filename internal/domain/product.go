package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Stock        int             `json:"stock"`
	Category     string          `json:"category"`
	Prescription bool            `json:"prescription"`
	Image        string          `json:"image,omitempty"`
	Description  string          `json:"description,omitempty"`
	Manufacturer string          `json:"manufacturer,omitempty"`
	IsActive     bool            `json:"isActive"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// ProductSummary is the projection embedded in cart and order payloads.
type ProductSummary struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Image    string `json:"image,omitempty"`
	Category string `json:"category"`
}
