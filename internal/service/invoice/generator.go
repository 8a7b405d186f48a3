package invoice

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

// HTMLGenerator рендерит счёт заказа в самодостаточный HTML-документ,
// пригодный для вложения в письмо.
type HTMLGenerator struct {
	tmpl *template.Template
}

var _ domain.InvoiceGenerator = (*HTMLGenerator)(nil)

const invoiceTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Invoice {{.OrderNumber}}</title></head>
<body>
<h1>Invoice {{.OrderNumber}}</h1>
<p>Customer: {{.CustomerName}}</p>
<p>Order date: {{.OrderDate.Format "2006-01-02"}}</p>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>SKU</th><th>Item</th><th>Qty</th><th>Unit price</th><th>Subtotal</th></tr>
{{range .Items}}<tr><td>{{.SKU}}</td><td>{{.Name}}</td><td>{{.Qty}}</td><td>{{formatMoney .UnitPriceMinor}}</td><td>{{formatMoney .SubtotalMinor}}</td></tr>
{{end}}</table>
<p><strong>Total: {{.Currency}} {{formatMoney .AmountMinor}}</strong></p>
</body>
</html>
`

// NewHTMLGenerator создаёт генератор счетов.
func NewHTMLGenerator() *HTMLGenerator {
	tmpl := template.Must(template.New("invoice").Funcs(template.FuncMap{
		"formatMoney": formatMoney,
	}).Parse(invoiceTemplate))
	return &HTMLGenerator{tmpl: tmpl}
}

// Generate формирует HTML-счёт по заказу.
func (g *HTMLGenerator) Generate(order domain.Order) ([]byte, error) {
	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, order); err != nil {
		return nil, fmt.Errorf("render invoice for order %s: %w", order.ID, err)
	}
	return buf.Bytes(), nil
}

// formatMoney переводит минорные единицы в строку с двумя знаками после точки.
func formatMoney(amountMinor int64) string {
	sign := ""
	if amountMinor < 0 {
		sign = "-"
		amountMinor = -amountMinor
	}
	whole := amountMinor / 100
	cents := amountMinor % 100
	var b strings.Builder
	fmt.Fprintf(&b, "%s%d.%02d", sign, whole, cents)
	return b.String()
}
