// Package messaging is the boundary between the bot and a chat platform.
// Transports in the telegram and discord subpackages turn platform updates
// into Inbound values and deliver outbound Messages.
package messaging

import "context"

// Image is an attachment sent along with a message.
type Image struct {
	Name string
	Data []byte
}

// Message is one outbound chat message. Keyboard holds quick-reply labels,
// one slice per row; a reply to a label arrives as its text.
type Message struct {
	ChatID   string
	Text     string
	Keyboard [][]string
	Image    *Image
}

// Inbound is one message received from a user.
type Inbound struct {
	ChatID string
	Name   string
	Text   string
}

// Sender delivers outbound messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Handler processes inbound messages. Handle must be safe for concurrent use.
type Handler interface {
	Handle(ctx context.Context, in Inbound)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, in Inbound)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, in Inbound) {
	f(ctx, in)
}

// Transport is a chat platform connection. Run delivers inbound messages to
// h until ctx is cancelled and returns after in-flight handlers finish.
type Transport interface {
	Sender
	Run(ctx context.Context, h Handler) error
}
