package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	taxdomain "github.com/smallbiznis/qrdine/internal/tax/domain"
)

// Restaurant is the owner-managed profile. Its tax settings govern service
// lines only; packaged goods carry their own rate.
type Restaurant struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Name         string       `gorm:"type:text;not null" json:"name"`
	Slug         string       `gorm:"type:text;not null;uniqueIndex" json:"slug"`
	LegalName    string       `gorm:"type:text" json:"legal_name,omitempty"`
	GSTIN        string       `gorm:"column:gstin;type:text" json:"gstin,omitempty"`
	Phone        string       `gorm:"type:text" json:"phone,omitempty"`
	SupportEmail string       `gorm:"type:text" json:"support_email,omitempty"`
	AddressLine1 string       `gorm:"column:address_line1;type:text" json:"address_line1,omitempty"`
	AddressLine2 string       `gorm:"column:address_line2;type:text" json:"address_line2,omitempty"`
	City         string       `gorm:"type:text" json:"city,omitempty"`
	State        string       `gorm:"type:text" json:"state,omitempty"`
	PostalCode   string       `gorm:"type:text" json:"postal_code,omitempty"`

	GSTEnabled       bool            `gorm:"column:gst_enabled;not null" json:"gst_enabled"`
	DefaultTaxRate   decimal.Decimal `gorm:"column:default_tax_rate;type:numeric(5,2);not null" json:"default_tax_rate"`
	PricesIncludeTax bool            `gorm:"column:prices_include_tax;not null" json:"prices_include_tax"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Restaurant) TableName() string { return "restaurant_profiles" }

// TaxProfile returns the settings the rate resolver needs.
func (r Restaurant) TaxProfile() taxdomain.TaxProfile {
	return taxdomain.TaxProfile{
		GSTEnabled:       r.GSTEnabled,
		DefaultTaxRate:   r.DefaultTaxRate,
		PricesIncludeTax: r.PricesIncludeTax,
	}
}

var DefaultTaxRate = decimal.NewFromInt(5)
