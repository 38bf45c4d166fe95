package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, item *MenuItem) error
	Save(ctx context.Context, db *gorm.DB, item *MenuItem) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*MenuItem, error)
	List(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, filter ListFilter) ([]*MenuItem, error)
	// FindByIDs returns the restaurant's items keyed by id; unknown ids are absent.
	FindByIDs(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, ids []snowflake.ID) (map[snowflake.ID]MenuItem, error)
}

type ListFilter struct {
	Category      string
	IncludeHidden bool
}

type CreateMenuItemRequest struct {
	RestaurantID   string           `json:"-"`
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	Category       string           `json:"category"`
	Veg            bool             `json:"veg"`
	Price          decimal.Decimal  `json:"price"`
	IsPackagedGood bool             `json:"is_packaged_good"`
	TaxRate        *decimal.Decimal `json:"tax_rate"`
	HSN            string           `json:"hsn"`
	Status         ItemStatus       `json:"status"`
}

type UpdateMenuItemRequest struct {
	ID             string           `json:"-"`
	Name           *string          `json:"name"`
	Description    *string          `json:"description"`
	Category       *string          `json:"category"`
	Veg            *bool            `json:"veg"`
	Price          *decimal.Decimal `json:"price"`
	IsPackagedGood *bool            `json:"is_packaged_good"`
	TaxRate        *decimal.Decimal `json:"tax_rate"`
	HSN            *string          `json:"hsn"`
	Status         *ItemStatus      `json:"status"`
}

type ListMenuItemsRequest struct {
	RestaurantID  string
	Category      string
	IncludeHidden bool
}

type Service interface {
	Create(ctx context.Context, req CreateMenuItemRequest) (MenuItem, error)
	Update(ctx context.Context, req UpdateMenuItemRequest) (MenuItem, error)
	List(ctx context.Context, req ListMenuItemsRequest) ([]MenuItem, error)
}
