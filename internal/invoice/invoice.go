// Package invoice renders printable HTML invoices for orders.
package invoice

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/khana-fast/api/internal/database"
	"github.com/khana-fast/api/internal/service"
	"github.com/shopspring/decimal"
)

// Document is the render model of one invoice.
type Document struct {
	InvoiceNumber   string
	IssuedAt        time.Time
	OrderNumber     string
	CustomerName    string
	ShippingAddress string
	ShippingPhone   string
	PaymentMethod   string
	PaymentStatus   string
	Lines           []Line
	Total           string
}

// Line is one item row on the invoice.
type Line struct {
	Name      string
	Quantity  int32
	UnitPrice string
	Amount    string
}

// ErrTotalMismatch is returned when the stored order total does not equal the
// sum of its item lines. A mismatch means the order row was corrupted and the
// invoice must not be issued.
var ErrTotalMismatch = fmt.Errorf("order total does not match item lines")

// Build assembles the render model, re-deriving every amount from the item
// lines and cross-checking against the stored total.
func Build(inv database.Invoice, order database.Order) (Document, error) {
	lines := make([]Line, 0, len(order.Items))
	total := decimal.Zero
	for _, item := range order.Items {
		amount := item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity))
		total = total.Add(amount)
		lines = append(lines, Line{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
			Amount:    amount.StringFixed(2),
		})
	}

	stored := service.NumericToDecimal(order.TotalAmount)
	if !stored.Equal(total) {
		return Document{}, fmt.Errorf("%w: stored %s, items %s", ErrTotalMismatch, stored, total)
	}

	return Document{
		InvoiceNumber:   inv.InvoiceNumber,
		IssuedAt:        inv.IssuedAt,
		OrderNumber:     order.OrderNumber,
		CustomerName:    order.CustomerName,
		ShippingAddress: order.ShippingAddress,
		ShippingPhone:   order.ShippingPhone,
		PaymentMethod:   order.Payment.Method,
		PaymentStatus:   order.Payment.Status,
		Lines:           lines,
		Total:           total.StringFixed(2),
	}, nil
}

// Render writes the invoice as a printable HTML page.
func Render(w io.Writer, doc Document) error {
	return tmpl.Execute(w, doc)
}

var tmpl = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Invoice {{.InvoiceNumber}}</title>
<style>
body { font-family: sans-serif; max-width: 640px; margin: 2rem auto; }
table { width: 100%; border-collapse: collapse; margin-top: 1rem; }
th, td { border-bottom: 1px solid #ccc; padding: 6px 8px; text-align: left; }
td.num, th.num { text-align: right; }
tfoot td { font-weight: bold; border-bottom: none; }
.meta { color: #555; }
</style>
</head>
<body>
<h1>Invoice {{.InvoiceNumber}}</h1>
<p class="meta">
Order {{.OrderNumber}} &middot; issued {{.IssuedAt.Format "2 Jan 2006 15:04"}}<br>
{{.CustomerName}}<br>
{{.ShippingAddress}}<br>
{{.ShippingPhone}}
</p>
<p class="meta">Payment: {{.PaymentMethod}} ({{.PaymentStatus}})</p>
<table>
<thead>
<tr><th>Item</th><th class="num">Qty</th><th class="num">Unit price</th><th class="num">Amount</th></tr>
</thead>
<tbody>
{{range .Lines}}<tr><td>{{.Name}}</td><td class="num">{{.Quantity}}</td><td class="num">{{.UnitPrice}}</td><td class="num">{{.Amount}}</td></tr>
{{end}}</tbody>
<tfoot>
<tr><td colspan="3">Total</td><td class="num">{{.Total}}</td></tr>
</tfoot>
</table>
</body>
</html>
`))
