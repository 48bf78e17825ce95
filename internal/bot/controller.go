package bot

import (
	"context"

	"github.com/oatsaysai/budgetbuddy/internal/conversation"
	"github.com/oatsaysai/budgetbuddy/internal/messaging"
	"github.com/oatsaysai/budgetbuddy/internal/models"
	"github.com/oatsaysai/budgetbuddy/internal/payment"
	"github.com/shopspring/decimal"
)

// Reply is a message to the user whose input is being handled.
type Reply struct {
	Text     string
	Keyboard [][]string
	Image    *messaging.Image
}

// Notice is a message to another chat, sent after the turn is saved.
type Notice struct {
	ChatID string
	Reply
}

// Response is what a controller wants sent for one turn.
type Response struct {
	Replies []Reply
	Notices []Notice
}

func reply(text string, keyboard [][]string) Response {
	return Response{Replies: []Reply{{Text: text, Keyboard: keyboard}}}
}

// add appends r to the replies of resp.
func (resp Response) add(r Response) Response {
	resp.Replies = append(resp.Replies, r.Replies...)
	resp.Notices = append(resp.Notices, r.Notices...)
	return resp
}

// FlowController drives one flow. Both methods move the user to its next
// State and Progress in place and return the prompt to send; persisting
// the user is the dispatcher's job. Input problems are answered with a
// re-prompt and a nil error; a returned error is classified by KindOf.
type FlowController interface {
	HandleInput(ctx context.Context, user *models.User, text string) (Response, error)
	HandleBack(ctx context.Context, user *models.User) (Response, error)
}

// localCommands is implemented by controllers that take slash commands as
// input while their flow is active.
type localCommands interface {
	Accepts(command string) bool
}

// Mailer delivers one-time codes.
type Mailer interface {
	SendMail(ctx context.Context, to, subject, text, html string) error
}

// Advisor generates budgeting advice.
type Advisor interface {
	GenerateAdvice(ctx context.Context, system string, history []conversation.Turn, message string) (string, error)
}

// PaymentRequester renders a payment request for an owed amount.
type PaymentRequester interface {
	Generate(amount decimal.Decimal) (*payment.QRCode, error)
}
