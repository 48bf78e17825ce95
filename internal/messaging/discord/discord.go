// Package discord connects the bot to Discord direct messages. Reply
// keyboards become buttons; pressing one sends its label back as text.
package discord

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/oatsaysai/budgetbuddy/internal/messaging"
	"go.uber.org/zap"
)

const (
	// Component Custom IDs
	replyButtonPrefix = "reply:"

	maxRows          = 5
	maxButtonsPerRow = 5
	maxLabelLength   = 80
)

// Session is the part of the Discord session the transport uses.
type Session interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// Transport receives direct messages and button presses over the gateway.
type Transport struct {
	session     Session
	log         *zap.Logger
	maxInFlight int

	mu      sync.Mutex
	workers *messaging.Workers
	ctx     context.Context
}

// New creates a session for the bot token. The gateway connection opens
// in Run.
func New(token string, maxInFlight int, log *zap.Logger) (*Transport, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsDirectMessages | discordgo.IntentMessageContent
	return NewWithSession(s, maxInFlight, log), nil
}

// NewWithSession builds a Transport around an existing session.
func NewWithSession(s Session, maxInFlight int, log *zap.Logger) *Transport {
	if log == nil {
		log = zap.NewNop()
	}
	return &Transport{session: s, log: log, maxInFlight: maxInFlight}
}

// Run opens the gateway connection and handles events until ctx is
// cancelled, then closes the session and waits for running handlers.
func (t *Transport) Run(ctx context.Context, h messaging.Handler) error {
	workers := messaging.NewWorkers(h, t.maxInFlight)
	t.mu.Lock()
	t.workers, t.ctx = workers, ctx
	t.mu.Unlock()

	removeMessages := t.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		t.onMessage(m)
	})
	removeInteractions := t.session.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		t.onInteraction(i)
	})

	if err := t.session.Open(); err != nil {
		removeMessages()
		removeInteractions()
		workers.Close()
		return fmt.Errorf("error opening connection to Discord: %w", err)
	}
	t.log.Info("Connected to Discord successfully")

	<-ctx.Done()
	removeMessages()
	removeInteractions()
	if err := t.session.Close(); err != nil {
		t.log.Warn("Error closing Discord session", zap.Error(err))
	}
	workers.Close()
	return nil
}

func (t *Transport) dispatch(in messaging.Inbound) {
	t.mu.Lock()
	workers, ctx := t.workers, t.ctx
	t.mu.Unlock()
	if workers == nil {
		return
	}
	workers.Dispatch(ctx, in)
}

// onMessage handles a direct message from a user. Guild messages and
// messages from bots are ignored.
func (t *Transport) onMessage(m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID != "" || strings.TrimSpace(m.Content) == "" {
		return
	}
	t.dispatch(messaging.Inbound{ChatID: m.ChannelID, Name: displayName(m.Author), Text: m.Content})
}

// onInteraction turns a reply button press into the button's text.
func (t *Transport) onInteraction(i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	customID := i.MessageComponentData().CustomID
	if !strings.HasPrefix(customID, replyButtonPrefix) {
		t.log.Warn("Unknown component interaction", zap.String("custom_id", customID))
		return
	}

	err := t.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	if err != nil {
		t.log.Warn("Error acknowledging interaction", zap.Error(err))
	}

	user := i.User
	if user == nil && i.Member != nil {
		user = i.Member.User
	}
	in := messaging.Inbound{ChatID: i.ChannelID, Text: strings.TrimPrefix(customID, replyButtonPrefix)}
	if user != nil {
		in.Name = displayName(user)
	}
	t.dispatch(in)
}

func displayName(u *discordgo.User) string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// Send posts msg to its channel, attaching the image if any.
func (t *Transport) Send(_ context.Context, msg messaging.Message) error {
	data := &discordgo.MessageSend{
		Content:    msg.Text,
		Components: components(msg.Keyboard),
	}
	if msg.Image != nil {
		data.Files = []*discordgo.File{{
			Name:        msg.Image.Name,
			ContentType: "image/png",
			Reader:      bytes.NewReader(msg.Image.Data),
		}}
	}
	if _, err := t.session.ChannelMessageSendComplex(msg.ChatID, data); err != nil {
		return fmt.Errorf("error sending discord message: %w", err)
	}
	return nil
}

// components lays keyboard labels out as buttons, keeping rows where
// Discord's limits allow. Labels beyond the limits are dropped.
func components(keyboard [][]string) []discordgo.MessageComponent {
	var labels [][]string
	for _, row := range keyboard {
		for len(row) > maxButtonsPerRow {
			labels = append(labels, row[:maxButtonsPerRow])
			row = row[maxButtonsPerRow:]
		}
		if len(row) > 0 {
			labels = append(labels, row)
		}
	}
	if len(labels) > maxRows {
		labels = packRows(labels)
	}

	var out []discordgo.MessageComponent
	for _, row := range labels {
		if len(out) == maxRows {
			break
		}
		buttons := make([]discordgo.MessageComponent, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, button(label))
		}
		out = append(out, discordgo.ActionsRow{Components: buttons})
	}
	return out
}

// packRows refills rows to maxButtonsPerRow, keeping label order.
func packRows(rows [][]string) [][]string {
	var (
		out [][]string
		cur []string
	)
	for _, row := range rows {
		for _, label := range row {
			cur = append(cur, label)
			if len(cur) == maxButtonsPerRow {
				out = append(out, cur)
				cur = nil
			}
		}
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func button(label string) discordgo.Button {
	style := discordgo.SecondaryButton
	if strings.HasPrefix(label, "/") {
		style = discordgo.PrimaryButton
	}
	display := label
	if r := []rune(display); len(r) > maxLabelLength {
		display = string(r[:maxLabelLength])
	}
	return discordgo.Button{
		Label:    display,
		Style:    style,
		CustomID: replyButtonPrefix + label,
	}
}
