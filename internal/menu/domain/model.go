package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	taxdomain "github.com/smallbiznis/qrdine/internal/tax/domain"
)

type ItemStatus string

const (
	ItemStatusAvailable  ItemStatus = "available"
	ItemStatusOutOfStock ItemStatus = "out_of_stock"
	ItemStatusHidden     ItemStatus = "hidden"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemStatusAvailable, ItemStatusOutOfStock, ItemStatusHidden:
		return true
	}
	return false
}

// MenuItem is a catalog entry. TaxRate only applies to packaged goods.
type MenuItem struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	RestaurantID   snowflake.ID    `gorm:"not null;index" json:"restaurant_id"`
	Name           string          `gorm:"type:text;not null" json:"name"`
	Description    string          `gorm:"type:text" json:"description,omitempty"`
	Category       string          `gorm:"type:text" json:"category,omitempty"`
	Veg            bool            `gorm:"not null" json:"veg"`
	Price          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	IsPackagedGood bool            `gorm:"column:is_packaged_good;not null" json:"is_packaged_good"`
	TaxRate        decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"tax_rate"`
	HSN            string          `gorm:"column:hsn;type:text" json:"hsn,omitempty"`
	Status         ItemStatus      `gorm:"type:text;not null" json:"status"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null" json:"updated_at"`
}

func (MenuItem) TableName() string { return "menu_items" }

func (m MenuItem) TaxAttributes() taxdomain.ItemTaxAttributes {
	return taxdomain.ItemTaxAttributes{
		IsPackagedGood: m.IsPackagedGood,
		TaxRate:        m.TaxRate,
	}
}
