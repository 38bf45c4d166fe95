// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Invoice is the tax invoice issued for exactly one order. Figures are
// reconstructed from the stored order items, never from the live menu or
// restaurant profile.
type Invoice struct {
	ID               snowflake.ID      `gorm:"primaryKey" json:"id"`
	RestaurantID     snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_invoices_seq,priority:1" json:"restaurant_id"`
	OrderID          snowflake.ID      `gorm:"not null;uniqueIndex" json:"order_id"`
	InvoiceSeq       int64             `gorm:"not null;uniqueIndex:ux_invoices_seq,priority:2" json:"invoice_seq"`
	InvoiceNo        string            `gorm:"type:text;not null" json:"invoice_no"`
	InvoiceDate      time.Time         `gorm:"not null;index" json:"invoice_date"`
	CustomerName     string            `gorm:"type:text" json:"customer_name,omitempty"`
	CustomerGSTIN    string            `gorm:"column:customer_gstin;type:text" json:"customer_gstin,omitempty"`
	PaymentMethod    string            `gorm:"type:text" json:"payment_method,omitempty"`
	GSTEnabled       bool              `gorm:"column:gst_enabled;not null" json:"gst_enabled"`
	PricesIncludeTax bool              `gorm:"column:prices_include_tax;not null" json:"prices_include_tax"`
	SubtotalExTax    decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"subtotal_ex_tax"`
	TotalTax         decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"total_tax"`
	TotalIncTax      decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"total_inc_tax"`
	CGST             decimal.Decimal   `gorm:"column:cgst;type:numeric(12,2);not null" json:"cgst"`
	SGST             decimal.Decimal   `gorm:"column:sgst;type:numeric(12,2);not null" json:"sgst"`
	IGST             decimal.Decimal   `gorm:"column:igst;type:numeric(12,2);not null" json:"igst"`
	Reconciled       bool              `gorm:"not null" json:"reconciled"`
	Metadata         datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt        time.Time         `gorm:"not null" json:"created_at"`

	Lines []InvoiceLine `gorm:"-" json:"lines,omitempty"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceLine mirrors one order item, numbered from 1 in order-item order.
type InvoiceLine struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID       snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_invoice_lines_no,priority:1" json:"invoice_id"`
	LineNo          int             `gorm:"not null;uniqueIndex:ux_invoice_lines_no,priority:2" json:"line_no"`
	ItemName        string          `gorm:"type:text;not null" json:"item_name"`
	HSN             string          `gorm:"column:hsn;type:text" json:"hsn,omitempty"`
	Qty             int             `gorm:"not null" json:"qty"`
	UnitRateExTax   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_rate_ex_tax"`
	TaxRate         decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"tax_rate"`
	TaxAmount       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"tax_amount"`
	LineTotalExTax  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"line_total_ex_tax"`
	LineTotalIncTax decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"line_total_inc_tax"`
}

// TableName sets the database table name.
func (InvoiceLine) TableName() string { return "invoice_lines" }

// Reconciliation compares the totals stored on the order with the totals
// recomputed from its items.
type Reconciliation struct {
	Matched          bool            `json:"matched"`
	StoredExTax      decimal.Decimal `json:"stored_ex_tax"`
	StoredTax        decimal.Decimal `json:"stored_tax"`
	StoredIncTax     decimal.Decimal `json:"stored_inc_tax"`
	RecomputedExTax  decimal.Decimal `json:"recomputed_ex_tax"`
	RecomputedTax    decimal.Decimal `json:"recomputed_tax"`
	RecomputedIncTax decimal.Decimal `json:"recomputed_inc_tax"`
}

// Metadata renders the anomaly figures for storage on the invoice.
func (r Reconciliation) Metadata() map[string]any {
	return map[string]any{
		"matched":            r.Matched,
		"stored_ex_tax":      r.StoredExTax.StringFixed(2),
		"stored_tax":         r.StoredTax.StringFixed(2),
		"stored_inc_tax":     r.StoredIncTax.StringFixed(2),
		"recomputed_ex_tax":  r.RecomputedExTax.StringFixed(2),
		"recomputed_tax":     r.RecomputedTax.StringFixed(2),
		"recomputed_inc_tax": r.RecomputedIncTax.StringFixed(2),
	}
}

// Draft is an unsaved invoice produced by the builder.
type Draft struct {
	Header         Invoice
	Lines          []InvoiceLine
	Reconciliation Reconciliation
}

// BuildOptions tunes the invoice builder.
type BuildOptions struct {
	// Tolerance is the largest per-total difference accepted as a match.
	Tolerance decimal.Decimal
}

// GSTSalesRow is one invoice line in the GST sales report.
type GSTSalesRow struct {
	InvoiceNo       string
	InvoiceDate     time.Time
	CustomerName    string
	CustomerGSTIN   string
	PaymentMethod   string
	LineNo          int
	ItemName        string
	HSN             string
	Qty             int
	TaxableValue    decimal.Decimal
	TaxRate         decimal.Decimal
	CGST            decimal.Decimal
	SGST            decimal.Decimal
	IGST            decimal.Decimal
	LineTotalIncTax decimal.Decimal
	InvoiceTotal    decimal.Decimal
}
