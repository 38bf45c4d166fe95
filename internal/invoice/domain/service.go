package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qrdine/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*Invoice, error)
	// LockRestaurant takes the restaurant row lock that serialises invoice
	// numbering for that restaurant. It returns ErrInvalidRestaurant when the
	// row does not exist.
	LockRestaurant(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID) error
	// NextSeq returns the restaurant's next invoice sequence. Callers hold
	// the restaurant lock.
	NextSeq(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID) (int64, error)
	// Insert reports false when an invoice for the order already exists.
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice, lines []InvoiceLine) (bool, error)
	ListLines(ctx context.Context, db *gorm.DB, invoiceIDs ...snowflake.ID) ([]InvoiceLine, error)
	List(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, beforeID snowflake.ID, limit int) ([]*Invoice, error)
	ListByDate(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, from, to time.Time) ([]*Invoice, error)
}

// GenerateResult is returned by invoice generation. AlreadyIssued is set when
// the order already had an invoice and nothing was written.
type GenerateResult struct {
	Invoice        Invoice         `json:"invoice"`
	AlreadyIssued  bool            `json:"already_issued"`
	Reconciliation *Reconciliation `json:"reconciliation,omitempty"`
}

type ListInvoiceRequest struct {
	pagination.Pagination
	RestaurantID string `form:"-"`
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

// GSTSalesRequest selects invoices dated in [From, To).
type GSTSalesRequest struct {
	RestaurantID string
	From         time.Time
	To           time.Time
}

type Service interface {
	GenerateForOrder(ctx context.Context, orderID string) (GenerateResult, error)
	GetByID(ctx context.Context, id string) (Invoice, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	GSTSales(ctx context.Context, req GSTSalesRequest) ([]GSTSalesRow, error)
	// RenderHTML renders the printable bill for an issued invoice.
	RenderHTML(ctx context.Context, id string) (string, error)
}
