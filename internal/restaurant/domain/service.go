package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, restaurant *Restaurant) error
	Update(ctx context.Context, db *gorm.DB, restaurant *Restaurant) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Restaurant, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Restaurant, error)
}

type CreateRestaurantRequest struct {
	Name         string `json:"name"`
	LegalName    string `json:"legal_name"`
	GSTIN        string `json:"gstin"`
	Phone        string `json:"phone"`
	SupportEmail string `json:"support_email"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
}

// UpdateTaxSettingsRequest carries the owner's tax settings edit. Nil fields
// are left unchanged.
type UpdateTaxSettingsRequest struct {
	ID               string           `json:"-"`
	GSTEnabled       *bool            `json:"gst_enabled"`
	DefaultTaxRate   *decimal.Decimal `json:"default_tax_rate"`
	PricesIncludeTax *bool            `json:"prices_include_tax"`
	GSTIN            *string          `json:"gstin"`
}

type Service interface {
	Create(ctx context.Context, req CreateRestaurantRequest) (Restaurant, error)
	GetByID(ctx context.Context, id string) (Restaurant, error)
	GetBySlug(ctx context.Context, slug string) (Restaurant, error)
	UpdateTaxSettings(ctx context.Context, req UpdateTaxSettingsRequest) (Restaurant, error)
}
