package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

type Mail struct {
	To      string // user id; address lookup belongs to the mailer
	Subject string
	HTML    string
}

var confirmationTmpl = template.Must(template.New("confirmation").Funcs(template.FuncMap{
	"money": FormatCents,
	"mul":   func(a, b int) int { return a * b },
}).Parse(`<p>Hi {{.Recipient.CustomerName}},</p>
<p>We received your order {{.OrderID}} ({{.Status}}, paid by {{.PaymentMethod}}).</p>
<table>
{{- range .Lines}}
<tr><td>{{.ProductName}}</td><td>{{.Qty}}</td><td>{{money .UnitPriceCents}}</td><td>{{money (mul .Qty .UnitPriceCents)}}</td></tr>
{{- end}}
</table>
<p>Shipping: {{money .ShippingFeeCents}}</p>
<p>Total: {{money .TotalCents}}</p>
<p>Deliver to: {{.Recipient.AddressDetails}}, {{.Recipient.Ward}}, {{.Recipient.District}}, {{.Recipient.Province}} ({{.Recipient.PhoneNumber}})</p>
`))

func RenderConfirmation(p orders.OrderCreatedPayload) (Mail, error) {
	var buf bytes.Buffer
	if err := confirmationTmpl.Execute(&buf, p); err != nil {
		return Mail{}, err
	}
	return Mail{
		To:      p.UserID,
		Subject: "Order Confirmation " + p.OrderID,
		HTML:    buf.String(),
	}, nil
}

// FormatCents renders 2800 as "28.00".
func FormatCents(c int) string {
	sign := ""
	if c < 0 {
		sign, c = "-", -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}
