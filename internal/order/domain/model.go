package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	taxdomain "github.com/smallbiznis/qrdine/internal/tax/domain"
	"gorm.io/datatypes"
)

type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine_in"
	OrderTypeCounter  OrderType = "counter"
	OrderTypeTakeaway OrderType = "takeaway"
)

func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeDineIn, OrderTypeCounter, OrderTypeTakeaway:
		return true
	}
	return false
}

type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusReady      Status = "ready"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var nextStatus = map[Status]Status{
	StatusNew:        StatusInProgress,
	StatusInProgress: StatusReady,
	StatusReady:      StatusCompleted,
}

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusReady, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition allows one step forward along the kitchen flow, or a cancel
// from any non-terminal state.
func (s Status) CanTransition(to Status) bool {
	if s.Terminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	return nextStatus[s] == to
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
)

// Order header. Totals are sums of individually rounded line values. The
// GSTEnabled and PricesIncludeTax flags snapshot the restaurant profile at
// placement time.
type Order struct {
	ID                  snowflake.ID      `gorm:"primaryKey" json:"id"`
	RestaurantID        snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_orders_submission,priority:1" json:"restaurant_id"`
	PublicRef           string            `gorm:"type:text;not null;uniqueIndex" json:"public_ref"`
	SubmissionToken     string            `gorm:"type:text;not null;uniqueIndex:ux_orders_submission,priority:2" json:"-"`
	OrderType           OrderType         `gorm:"type:text;not null" json:"order_type"`
	TableNumber         string            `gorm:"type:text" json:"table_number,omitempty"`
	CustomerName        string            `gorm:"type:text" json:"customer_name,omitempty"`
	CustomerPhone       string            `gorm:"type:text" json:"customer_phone,omitempty"`
	CustomerGSTIN       string            `gorm:"column:customer_gstin;type:text" json:"customer_gstin,omitempty"`
	PaymentMethod       string            `gorm:"type:text" json:"payment_method,omitempty"`
	PaymentStatus       PaymentStatus     `gorm:"type:text;not null" json:"payment_status"`
	SpecialInstructions string            `gorm:"type:text" json:"special_instructions,omitempty"`
	Status              Status            `gorm:"type:text;not null;index" json:"status"`
	GSTEnabled          bool              `gorm:"column:gst_enabled;not null" json:"gst_enabled"`
	PricesIncludeTax    bool              `gorm:"column:prices_include_tax;not null" json:"prices_include_tax"`
	SubtotalExTax       decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"subtotal_ex_tax"`
	TotalTax            decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"total_tax"`
	TotalIncTax         decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"total_inc_tax"`
	Metadata            datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt           time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time         `gorm:"not null" json:"updated_at"`
	CompletedAt         *time.Time        `json:"completed_at,omitempty"`

	Items []OrderItem `gorm:"-" json:"items,omitempty"`
}

func (Order) TableName() string { return "orders" }

// OrderItem is immutable once written. PricingMode is empty on rows written
// before the convention was stamped; Price is the single-price field those
// rows carried.
type OrderItem struct {
	ID              snowflake.ID          `gorm:"primaryKey" json:"id"`
	OrderID         snowflake.ID          `gorm:"not null;index" json:"order_id"`
	LineNo          int                   `gorm:"not null" json:"line_no"`
	MenuItemID      snowflake.ID          `gorm:"not null" json:"menu_item_id"`
	ItemName        string                `gorm:"type:text;not null" json:"item_name"`
	Quantity        int                   `gorm:"not null" json:"quantity"`
	UnitPriceExTax  decimal.Decimal       `gorm:"type:numeric(12,2);not null" json:"unit_price_ex_tax"`
	UnitPriceIncTax decimal.Decimal       `gorm:"type:numeric(12,2);not null" json:"unit_price_inc_tax"`
	UnitTaxAmount   decimal.Decimal       `gorm:"type:numeric(12,2);not null" json:"unit_tax_amount"`
	TaxRate         decimal.Decimal       `gorm:"type:numeric(5,2);not null" json:"tax_rate"`
	HSN             string                `gorm:"column:hsn;type:text" json:"hsn,omitempty"`
	IsPackagedGood  bool                  `gorm:"column:is_packaged_good;not null" json:"is_packaged_good"`
	PricingMode     taxdomain.PricingMode `gorm:"type:text" json:"pricing_mode,omitempty"`
	LineTotalExTax  decimal.Decimal       `gorm:"type:numeric(12,2);not null" json:"line_total_ex_tax"`
	LineTaxAmount   decimal.Decimal       `gorm:"type:numeric(12,2);not null" json:"line_tax_amount"`
	LineTotalIncTax decimal.Decimal       `gorm:"type:numeric(12,2);not null" json:"line_total_inc_tax"`
	CatalogFallback bool                  `gorm:"not null" json:"catalog_fallback"`
	Price           decimal.Decimal       `gorm:"type:numeric(12,2)" json:"price"`
	Notes           string                `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt       time.Time             `gorm:"not null" json:"created_at"`
}

func (OrderItem) TableName() string { return "order_items" }

// CartLine is one line of a submitted cart. UnitPrice is the price the
// customer saw when adding to cart and is authoritative. The remaining
// attributes are the cart's own copy of the item, used only when the catalog
// no longer has it.
type CartLine struct {
	MenuItemID     snowflake.ID     `json:"menu_item_id"`
	Quantity       int              `json:"quantity"`
	UnitPrice      decimal.Decimal  `json:"unit_price"`
	Name           string           `json:"name,omitempty"`
	IsPackagedGood *bool            `json:"is_packaged_good,omitempty"`
	TaxRate        *decimal.Decimal `json:"tax_rate,omitempty"`
	HSN            string           `json:"hsn,omitempty"`
	Notes          string           `json:"notes,omitempty"`
}

// Fallback reports a cart line priced without its catalog entry.
type Fallback struct {
	LineNo     int          `json:"line_no"`
	MenuItemID snowflake.ID `json:"menu_item_id"`
	Regime     string       `json:"regime"`
}

// Totals is the aggregated result of a cart.
type Totals struct {
	Items         []OrderItem
	SubtotalExTax decimal.Decimal
	TotalTax      decimal.Decimal
	TotalIncTax   decimal.Decimal
	Fallbacks     []Fallback
}
