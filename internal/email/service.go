package email

import (
	"fmt"
	"net/smtp"

	"github.com/example/pricelist/internal/domain/order"
)

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service handles email sending via SMTP
type Service struct {
	host string
	port string
	from string
	auth smtp.Auth
	send SendFunc
}

// NewService creates a new email service. Username may be empty for relays
// that accept unauthenticated mail.
func NewService(host, port, from, username, password string) *Service {
	s := &Service{
		host: host,
		port: port,
		from: from,
		send: smtp.SendMail,
	}
	if username != "" {
		s.auth = smtp.PlainAuth("", username, password, host)
	}
	return s
}

// WithSender replaces the transport.
func (s *Service) WithSender(send SendFunc) *Service {
	s.send = send
	return s
}

// SendNewOrder tells the sales inbox about a committed order.
func (s *Service) SendNewOrder(to string, o order.Order) error {
	subject := fmt.Sprintf("Новый заказ %s от %s", o.ID, o.CustomerInfo.ShopName)
	return s.deliver(to, subject, BuildNewOrderBody(o))
}

// SendOrderDeleted tells the sales inbox an order was withdrawn and its stock
// returned.
func (s *Service) SendOrderDeleted(to string, e order.OrderDeleted) error {
	subject := fmt.Sprintf("Заказ %s удалён", e.OrderID)
	return s.deliver(to, subject, BuildOrderDeletedBody(e))
}

func (s *Service) deliver(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, encodeSubject(subject), body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return s.send(addr, s.auth, s.from, []string{to}, []byte(msg))
}
