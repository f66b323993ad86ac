package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups products in the storefront catalog
type Category struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Name      string    `json:"name" gorm:"not null"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Product is a sellable catalog entry
type Product struct {
	ID          string          `json:"id" gorm:"primaryKey;size:36"`
	CategoryID  string          `json:"category_id" gorm:"size:36;index"`
	Name        string          `json:"name" gorm:"not null"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" gorm:"type:numeric(12,2)"`
	ImageURL    string          `json:"image_url"`
	Available   bool            `json:"available" gorm:"default:true"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ProductField names a single editable product attribute
type ProductField string

const (
	ProductFieldName        ProductField = "name"
	ProductFieldDescription ProductField = "description"
	ProductFieldPrice       ProductField = "price"
	ProductFieldImage       ProductField = "image"
)

// ProductUpdate is a partial update touching exactly one field
type ProductUpdate struct {
	Field ProductField
	Text  string          // name, description or image URL
	Price decimal.Decimal // price
}

// Column returns the database column written by the update
func (u ProductUpdate) Column() string {
	switch u.Field {
	case ProductFieldName:
		return "name"
	case ProductFieldDescription:
		return "description"
	case ProductFieldPrice:
		return "price"
	case ProductFieldImage:
		return "image_url"
	}
	return ""
}

// Value returns the value written by the update
func (u ProductUpdate) Value() any {
	if u.Field == ProductFieldPrice {
		return u.Price
	}
	return u.Text
}

// Apply writes the update onto an in-memory product
func (u ProductUpdate) Apply(p *Product) {
	switch u.Field {
	case ProductFieldName:
		p.Name = u.Text
	case ProductFieldDescription:
		p.Description = u.Text
	case ProductFieldPrice:
		p.Price = u.Price
	case ProductFieldImage:
		p.ImageURL = u.Text
	}
}
