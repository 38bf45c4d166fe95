package render

import (
	"bytes"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/qrdine/internal/invoice/domain"
)

const invoiceHTMLTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Tax Invoice {{.Invoice.InvoiceNo}}</title>
  <style>
    * { box-sizing: border-box; }
    body {
      margin: 0;
      padding: 24px;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
      color: #1a1f36;
      background: #f7f9fc;
    }
    .bill {
      background: #ffffff;
      max-width: 640px;
      margin: 0 auto;
      padding: 32px;
      border-radius: 4px;
      box-shadow: 0 2px 5px rgba(0,0,0,0.04);
    }
    .header { display: flex; justify-content: space-between; margin-bottom: 24px; }
    .header h1 { margin: 0; font-size: 20px; }
    .label {
      font-size: 11px;
      text-transform: uppercase;
      color: #8792a2;
      margin-bottom: 4px;
      font-weight: 600;
    }
    .value { font-size: 13px; line-height: 1.5; }
    .meta { display: flex; justify-content: space-between; margin-bottom: 24px; }
    table { width: 100%; border-collapse: collapse; margin-bottom: 20px; }
    th {
      text-align: left;
      font-size: 11px;
      text-transform: uppercase;
      color: #8792a2;
      border-bottom: 1px solid #e3e8ee;
      padding: 8px 0;
    }
    td { padding: 10px 0; border-bottom: 1px solid #e3e8ee; font-size: 13px; vertical-align: top; }
    .r { text-align: right; }
    .sub { font-size: 11px; color: #697386; }
    .totals { display: flex; flex-direction: column; align-items: flex-end; }
    .row { display: flex; justify-content: space-between; width: 260px; padding: 4px 0; font-size: 13px; }
    .final { border-top: 1px solid #e3e8ee; margin-top: 8px; padding-top: 8px; font-weight: 700; font-size: 15px; }
    .footer { margin-top: 32px; font-size: 11px; color: #8792a2; }
  </style>
</head>
<body>
  <div class="bill">
    <div class="header">
      <div>
        <h1>{{if .Invoice.GSTEnabled}}Tax Invoice{{else}}Bill of Supply{{end}}</h1>
        <div class="value">{{.Invoice.InvoiceNo}}</div>
      </div>
      <div class="r">
        <div class="value"><strong>{{.Seller.Name}}</strong></div>
        {{if .Seller.LegalName}}<div class="sub">{{.Seller.LegalName}}</div>{{end}}
        {{if .Seller.Address}}<div class="sub">{{.Seller.Address}}</div>{{end}}
        {{if .Seller.GSTIN}}<div class="sub">GSTIN {{.Seller.GSTIN}}</div>{{end}}
      </div>
    </div>

    <div class="meta">
      <div>
        <div class="label">Billed to</div>
        <div class="value">
          {{if .Invoice.CustomerName}}{{.Invoice.CustomerName}}{{else}}Walk-in customer{{end}}
          {{if .Invoice.CustomerGSTIN}}<br>GSTIN {{.Invoice.CustomerGSTIN}}{{end}}
        </div>
      </div>
      <div class="r">
        <div class="label">Date</div>
        <div class="value">{{formatDate .Invoice.InvoiceDate}}</div>
        {{if .Invoice.PaymentMethod}}
        <div class="label" style="margin-top: 8px;">Paid by</div>
        <div class="value">{{.Invoice.PaymentMethod}}</div>
        {{end}}
      </div>
    </div>

    <table>
      <thead>
        <tr>
          <th>#</th>
          <th style="width: 40%;">Item</th>
          <th class="r">Qty</th>
          <th class="r">Rate</th>
          <th class="r">Tax</th>
          <th class="r">Amount</th>
        </tr>
      </thead>
      <tbody>
        {{range .Lines}}
        <tr>
          <td>{{.LineNo}}</td>
          <td>
            <div>{{.ItemName}}</div>
            {{if .HSN}}<div class="sub">HSN {{.HSN}}</div>{{end}}
          </td>
          <td class="r">{{.Qty}}</td>
          <td class="r">{{formatMoney .UnitRateExTax}}</td>
          <td class="r">{{formatMoney .TaxAmount}}<div class="sub">{{formatRate .TaxRate}}</div></td>
          <td class="r">{{formatMoney .LineTotalIncTax}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>

    <div class="totals">
      <div class="row"><span>Taxable value</span><span>{{formatMoney .Invoice.SubtotalExTax}}</span></div>
      {{if .Invoice.GSTEnabled}}
      <div class="row"><span>CGST</span><span>{{formatMoney .Invoice.CGST}}</span></div>
      <div class="row"><span>SGST</span><span>{{formatMoney .Invoice.SGST}}</span></div>
      {{else if .Invoice.TotalTax.IsPositive}}
      <div class="row"><span>Tax</span><span>{{formatMoney .Invoice.TotalTax}}</span></div>
      {{end}}
      <div class="row final"><span>Total</span><span>{{formatMoney .Invoice.TotalIncTax}}</span></div>
    </div>

    {{if .FooterNotes}}<div class="footer">{{.FooterNotes}}</div>{{end}}
  </div>
</body>
</html>
`

// Seller is the restaurant as printed on the bill.
type Seller struct {
	Name      string
	LegalName string
	GSTIN     string
	Address   string
}

type RenderInput struct {
	Seller      Seller
	Invoice     invoicedomain.Invoice
	Lines       []invoicedomain.InvoiceLine
	FooterNotes string
}

type Renderer interface {
	RenderHTML(input RenderInput) (string, error)
}

type HTMLRenderer struct {
	tpl *template.Template
}

func NewRenderer() Renderer {
	funcs := template.FuncMap{
		"formatMoney": formatMoney,
		"formatDate":  formatDate,
		"formatRate":  formatRate,
	}
	return &HTMLRenderer{
		tpl: template.Must(template.New("invoice").Funcs(funcs).Parse(invoiceHTMLTemplate)),
	}
}

func (r *HTMLRenderer) RenderHTML(input RenderInput) (string, error) {
	if strings.TrimSpace(input.Seller.Name) == "" {
		input.Seller.Name = "Restaurant"
	}

	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, input); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatMoney(amount decimal.Decimal) string {
	return "₹" + amount.StringFixed(2)
}

func formatRate(rate decimal.Decimal) string {
	return rate.String() + "%"
}

func formatDate(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format("02 Jan 2006")
}
