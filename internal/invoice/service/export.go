package service

import (
	"encoding/csv"
	"io"
	"strconv"

	invoicedomain "github.com/smallbiznis/qrdine/internal/invoice/domain"
)

var gstSalesHeader = []string{
	"invoice_no",
	"invoice_date",
	"customer_name",
	"customer_gstin",
	"payment_method",
	"line_no",
	"item_name",
	"hsn",
	"qty",
	"taxable_value",
	"tax_rate",
	"cgst",
	"sgst",
	"igst",
	"line_total_inc_tax",
	"invoice_total",
}

// WriteGSTSalesCSV writes the sales register in the column order accountants
// import into GSTR-1 worksheets.
func WriteGSTSalesCSV(w io.Writer, rows []invoicedomain.GSTSalesRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(gstSalesHeader); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.InvoiceNo,
			row.InvoiceDate.Format("2006-01-02"),
			row.CustomerName,
			row.CustomerGSTIN,
			row.PaymentMethod,
			strconv.Itoa(row.LineNo),
			row.ItemName,
			row.HSN,
			strconv.Itoa(row.Qty),
			row.TaxableValue.StringFixed(2),
			row.TaxRate.StringFixed(2),
			row.CGST.StringFixed(2),
			row.SGST.StringFixed(2),
			row.IGST.StringFixed(2),
			row.LineTotalIncTax.StringFixed(2),
			row.InvoiceTotal.StringFixed(2),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
