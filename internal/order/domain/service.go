package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/qrdine/internal/invoice/domain"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order, items []OrderItem) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	// FindForUpdate locks the order row for the rest of the transaction.
	FindForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	FindBySubmission(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, token string) (*Order, error)
	ListItems(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]OrderItem, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, at time.Time) error
}

// Invoicer issues the invoice for a stored order.
type Invoicer interface {
	GenerateForOrder(ctx context.Context, orderID string) (invoicedomain.GenerateResult, error)
}

type PlaceOrderRequest struct {
	RestaurantID        string     `json:"-"`
	SubmissionToken     string     `json:"submission_token"`
	OrderType           OrderType  `json:"order_type"`
	TableNumber         string     `json:"table_number"`
	CustomerName        string     `json:"customer_name"`
	CustomerPhone       string     `json:"customer_phone"`
	CustomerGSTIN       string     `json:"customer_gstin"`
	PaymentMethod       string     `json:"payment_method"`
	SpecialInstructions string     `json:"special_instructions"`
	Lines               []CartLine `json:"lines"`
	// InvoiceNow issues the invoice in the same call, as counter sales do.
	InvoiceNow bool `json:"invoice_now"`
}

type PlaceOrderResult struct {
	Order     Order                         `json:"order"`
	Replayed  bool                          `json:"replayed"`
	Fallbacks []Fallback                    `json:"fallbacks,omitempty"`
	Invoice   *invoicedomain.GenerateResult `json:"invoice,omitempty"`
}

type UpdateStatusRequest struct {
	ID     string `json:"-"`
	Status Status `json:"status"`
}

type UpdateStatusResult struct {
	Order   Order                         `json:"order"`
	Invoice *invoicedomain.GenerateResult `json:"invoice,omitempty"`
}

type Service interface {
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (PlaceOrderResult, error)
	GetByID(ctx context.Context, id string) (Order, error)
	UpdateStatus(ctx context.Context, req UpdateStatusRequest) (UpdateStatusResult, error)
}
