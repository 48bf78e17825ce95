// Package telegram connects the bot to Telegram through long polling.
package telegram

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/oatsaysai/budgetbuddy/internal/messaging"
	"go.uber.org/zap"
)

// API is the part of the Telegram client the transport uses.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Transport receives updates by long polling and sends replies with reply
// keyboards.
type Transport struct {
	api         API
	log         *zap.Logger
	pollTimeout int
	maxInFlight int
}

// New connects to the Bot API with token.
func New(token string, pollTimeout, maxInFlight int, log *zap.Logger) (*Transport, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("error creating Telegram client: %w", err)
	}
	log.Info("Connected to Telegram", zap.String("bot", api.Self.UserName))
	return NewWithAPI(api, pollTimeout, maxInFlight, log), nil
}

// NewWithAPI builds a Transport around an existing client.
func NewWithAPI(api API, pollTimeout, maxInFlight int, log *zap.Logger) *Transport {
	if log == nil {
		log = zap.NewNop()
	}
	return &Transport{api: api, log: log, pollTimeout: pollTimeout, maxInFlight: maxInFlight}
}

// Run polls for updates until ctx is cancelled or the update channel
// closes, then waits for running handlers.
func (t *Transport) Run(ctx context.Context, h messaging.Handler) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = t.pollTimeout
	cfg.AllowedUpdates = []string{"message"}
	updates := t.api.GetUpdatesChan(cfg)

	workers := messaging.NewWorkers(h, t.maxInFlight)
	defer workers.Close()

	for {
		select {
		case <-ctx.Done():
			t.api.StopReceivingUpdates()
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			in, ok := inbound(u)
			if !ok {
				continue
			}
			workers.Dispatch(ctx, in)
		}
	}
}

// inbound extracts a text message. Other updates are ignored.
func inbound(u tgbotapi.Update) (messaging.Inbound, bool) {
	m := u.Message
	if m == nil || m.Chat == nil || m.Text == "" {
		return messaging.Inbound{}, false
	}
	in := messaging.Inbound{ChatID: strconv.FormatInt(m.Chat.ID, 10), Text: m.Text}
	if m.From != nil {
		in.Name = m.From.FirstName
		if in.Name == "" {
			in.Name = m.From.UserName
		}
	}
	return in, true
}

// Send delivers msg. A message with an image goes out as a photo with the
// text as caption.
func (t *Transport) Send(_ context.Context, msg messaging.Message) error {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", msg.ChatID, err)
	}

	var c tgbotapi.Chattable
	if msg.Image != nil {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: msg.Image.Name, Bytes: msg.Image.Data})
		photo.Caption = msg.Text
		photo.ReplyMarkup = keyboard(msg.Keyboard)
		c = photo
	} else {
		text := tgbotapi.NewMessage(chatID, msg.Text)
		text.ReplyMarkup = keyboard(msg.Keyboard)
		c = text
	}

	if _, err := t.api.Send(c); err != nil {
		return fmt.Errorf("error sending telegram message: %w", err)
	}
	return nil
}

// keyboard builds a reply keyboard. Messages without options leave the
// current keyboard in place.
func keyboard(rows [][]string) any {
	if len(rows) == 0 {
		return nil
	}
	buttons := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		r := make([]tgbotapi.KeyboardButton, len(row))
		for i, label := range row {
			r[i] = tgbotapi.NewKeyboardButton(label)
		}
		buttons = append(buttons, r)
	}
	kb := tgbotapi.NewReplyKeyboard(buttons...)
	kb.ResizeKeyboard = true
	return kb
}
