// Package bottest provides recording fakes for the collaborators of the
// bot package.
package bottest

import (
	"context"
	"fmt"
	"sync"

	"github.com/oatsaysai/budgetbuddy/internal/conversation"
	"github.com/oatsaysai/budgetbuddy/internal/messaging"
	"github.com/oatsaysai/budgetbuddy/internal/payment"
	"github.com/shopspring/decimal"
)

// Sender records sent messages.
type Sender struct {
	mu   sync.Mutex
	sent []messaging.Message
	Err  error
}

func (s *Sender) Send(_ context.Context, msg messaging.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.Err
}

// Messages returns everything sent so far.
func (s *Sender) Messages() []messaging.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]messaging.Message(nil), s.sent...)
}

// To returns the messages sent to chatID.
func (s *Sender) To(chatID string) []messaging.Message {
	var out []messaging.Message
	for _, m := range s.Messages() {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the last message sent to chatID.
func (s *Sender) Last(chatID string) messaging.Message {
	msgs := s.To(chatID)
	if len(msgs) == 0 {
		return messaging.Message{}
	}
	return msgs[len(msgs)-1]
}

// Reset forgets the recorded messages.
func (s *Sender) Reset() {
	s.mu.Lock()
	s.sent = nil
	s.mu.Unlock()
}

// Mail is one recorded email.
type Mail struct {
	To, Subject, Text, HTML string
}

// Mailer records mails.
type Mailer struct {
	mu   sync.Mutex
	sent []Mail
	Err  error
}

func (m *Mailer) SendMail(_ context.Context, to, subject, text, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, Mail{To: to, Subject: subject, Text: text, HTML: html})
	return nil
}

// Sent returns the recorded mails.
func (m *Mailer) Sent() []Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Mail(nil), m.sent...)
}

// AdviceCall is one recorded advisor request.
type AdviceCall struct {
	System  string
	History []conversation.Turn
	Message string
}

// Advisor answers with Reply and records requests.
type Advisor struct {
	mu    sync.Mutex
	calls []AdviceCall
	Reply string
	Err   error
}

func (a *Advisor) GenerateAdvice(_ context.Context, system string, history []conversation.Turn, message string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, AdviceCall{System: system, History: append([]conversation.Turn(nil), history...), Message: message})
	if a.Err != nil {
		return "", a.Err
	}
	return a.Reply, nil
}

// Calls returns the recorded requests.
func (a *Advisor) Calls() []AdviceCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]AdviceCall(nil), a.calls...)
}

// Payments renders a fake QR code whose payload names the amount.
type Payments struct {
	Err error
}

func (p *Payments) Generate(amount decimal.Decimal) (*payment.QRCode, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	payload := fmt.Sprintf("pay:%s", amount.StringFixed(2))
	return &payment.QRCode{Payload: payload, PNG: []byte(payload)}, nil
}

// Codes hands out one-time codes from a fixed list, repeating the last.
type Codes struct {
	mu    sync.Mutex
	codes []string
}

// NewCodes returns a code source yielding codes in order.
func NewCodes(codes ...string) *Codes {
	return &Codes{codes: codes}
}

// Next returns the next code.
func (c *Codes) Next() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.codes) == 0 {
		return "", fmt.Errorf("no codes left")
	}
	code := c.codes[0]
	if len(c.codes) > 1 {
		c.codes = c.codes[1:]
	}
	return code, nil
}
