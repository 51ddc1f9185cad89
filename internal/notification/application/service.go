package application

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"log/slog"

	order "github.com/dmehra2102/furniture-store/internal/order/domain"
)

var ErrNoRecipient = errors.New("order has no recipient email")

type Message struct {
	To      string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, m Message) error
}

var confirmation = template.Must(template.New("confirmation").Parse(`<h2>Thank you for your order</h2>
<p>Order <strong>{{.OrderNumber}}</strong> has been placed.</p>
<table>
{{range .Items}}<tr><td>{{.Name}}{{if .Variant}} ({{.Variant}}){{end}}</td><td>x{{.Quantity}}</td><td>{{.Price}}</td></tr>
{{end}}</table>
<p>Total: {{.TotalAmount}}</p>
<p>Shipping to {{.Address.FullName}}, {{.Address.Line1}}, {{.Address.City}} {{.Address.PostalCode}}</p>
<p>Payment: {{.PaymentMethod}}</p>`))

type Notifier struct {
	log    *slog.Logger
	sender Sender
}

func NewNotifier(log *slog.Logger, sender Sender) *Notifier {
	return &Notifier{log: log, sender: sender}
}

func (n *Notifier) SendOrderConfirmation(ctx context.Context, ev order.OrderCreated) error {
	if ev.Email == "" {
		return ErrNoRecipient
	}
	var body bytes.Buffer
	if err := confirmation.Execute(&body, ev); err != nil {
		return err
	}
	if err := n.sender.Send(ctx, Message{
		To:      ev.Email,
		Subject: "Order confirmed: " + ev.OrderNumber,
		HTML:    body.String(),
	}); err != nil {
		return err
	}
	n.log.Info("order confirmation sent", "order_id", ev.OrderID, "order_number", ev.OrderNumber)
	return nil
}
