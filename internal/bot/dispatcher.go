// Package bot runs the conversations of the expense tracker. The
// Dispatcher receives every inbound message, loads the sender, and either
// runs a global command or hands the text to the FlowController of the
// flow the sender is in.
package bot

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oatsaysai/budgetbuddy/internal/conversation"
	"github.com/oatsaysai/budgetbuddy/internal/messaging"
	"github.com/oatsaysai/budgetbuddy/internal/metrics"
	"github.com/oatsaysai/budgetbuddy/internal/models"
	"github.com/oatsaysai/budgetbuddy/internal/store"
	"go.uber.org/zap"
)

// Deps are the collaborators of the Dispatcher. Store, Sender and Mailer
// are required. A nil Advisor disables budget advice and a nil Payments
// sends payment requests without a QR code.
type Deps struct {
	Store    store.Store
	Sender   messaging.Sender
	Mailer   Mailer
	Advisor  Advisor
	Payments PaymentRequester
	Logger   *zap.Logger
	Metrics  *metrics.Metrics

	// Now and NewCode default to the wall clock and a random 6 digit code.
	Now     func() time.Time
	NewCode func() (string, error)
}

type command struct {
	verified bool // only verified users may run it
	run      func(ctx context.Context, user *models.User) (Response, error)
}

// Dispatcher routes inbound messages. Messages from one chat are handled
// one at a time; different chats are handled in parallel.
type Dispatcher struct {
	store   store.Store
	sender  messaging.Sender
	log     *zap.Logger
	metrics *metrics.Metrics
	locks   *chatLocks

	auth   *authController
	group  *groupController
	entry  *entryController
	split  *splitController
	browse *browseController
	advice *adviceController

	controllers map[conversation.Flow]FlowController
	commands    map[string]command
}

// New builds a Dispatcher.
func New(deps Deps) *Dispatcher {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewCode == nil {
		deps.NewCode = randomCode
	}

	d := &Dispatcher{
		store:   deps.Store,
		sender:  deps.Sender,
		log:     deps.Logger,
		metrics: deps.Metrics,
		locks:   newChatLocks(),
		auth:    &authController{store: deps.Store, mailer: deps.Mailer, now: deps.Now, newCode: deps.NewCode},
		group:   &groupController{store: deps.Store},
		entry:   &entryController{store: deps.Store, now: deps.Now},
		split:   &splitController{store: deps.Store, payments: deps.Payments, now: deps.Now, log: deps.Logger},
		browse:  &browseController{store: deps.Store, now: deps.Now},
		advice:  &adviceController{store: deps.Store, advisor: deps.Advisor, now: deps.Now},
	}
	d.controllers = map[conversation.Flow]FlowController{
		conversation.FlowAuth:        d.auth,
		conversation.FlowGroup:       d.group,
		conversation.FlowTransaction: d.entry,
		conversation.FlowSplit:       d.split,
		conversation.FlowBrowse:      d.browse,
		conversation.FlowAdvice:      d.advice,
	}
	d.commands = map[string]command{
		cmdStart:   {run: d.auth.Start},
		cmdMain:    {run: d.mainMenu},
		cmdCancel:  {run: d.cancel},
		cmdBack:    {run: d.back},
		cmdLogout:  {run: d.auth.Logout},
		cmdHelp:    {run: d.help},
		cmdProfile: {verified: true, run: d.auth.Profile},
		cmdAddExpense: {verified: true, run: func(ctx context.Context, u *models.User) (Response, error) {
			return d.entry.Start(ctx, u, models.TypeExpense)
		}},
		cmdAddIncome: {verified: true, run: func(ctx context.Context, u *models.User) (Response, error) {
			return d.entry.Start(ctx, u, models.TypeIncome)
		}},
		cmdSplitExpense:     {verified: true, run: d.split.Start},
		cmdCreateGroup:      {verified: true, run: d.group.Start},
		cmdViewTransactions: {verified: true, run: d.browse.Start},
		cmdBudgetAdvice:     {verified: true, run: d.advice.Start},
	}
	return d
}

// Handle processes one inbound message and sends the replies. It never
// panics and never returns an error: failures are logged and answered.
func (d *Dispatcher) Handle(ctx context.Context, in messaging.Inbound) {
	start := time.Now()
	log := d.log.With(zap.String("turn_id", uuid.NewString()), zap.String("chat_id", in.ChatID))

	unlock := d.locks.lock(in.ChatID)
	defer unlock()

	resp, flow := d.turn(ctx, log, in)
	d.metrics.ObserveTurn(string(flow), time.Since(start))
	d.deliver(ctx, log, in.ChatID, resp)
}

// turn runs one message against the sender's saved state and persists the
// result. It returns the response and the flow active when it arrived.
func (d *Dispatcher) turn(ctx context.Context, log *zap.Logger, in messaging.Inbound) (Response, conversation.Flow) {
	user, err := d.loadUser(ctx, in)
	if err != nil {
		log.Error("Failed to load user", zap.Error(err))
		d.metrics.CountError(KindUpstream.String())
		return reply("❌ Error processing request", nil), conversation.FlowNone
	}

	arrived := user.State
	saved, err := user.Progress.Clone()
	if err != nil {
		log.Warn("Dropping unreadable progress", zap.String("state", arrived.String()), zap.Error(err))
		user.ResetState()
		arrived = user.State
	}

	resp, err := d.safely(log, func() (Response, error) {
		return d.route(ctx, user, in.Text)
	})
	if err != nil {
		kind := KindOf(err)
		fields := []zap.Field{
			zap.String("flow", string(arrived.Flow)),
			zap.String("step", string(arrived.Step)),
			zap.String("kind", kind.String()),
			zap.Error(err),
		}
		if kind.resets() {
			log.Error("Flow aborted", fields...)
			user.ResetState()
			resp = reply(userMessage(err), d.homeKeyboard(user))
		} else {
			log.Info("Flow input rejected", fields...)
			user.State, user.Progress = arrived, saved
			resp = reply(userMessage(err), cancelKeyboard())
		}
		d.metrics.CountError(kind.String())
	}

	if err := d.store.SaveUser(ctx, user); err != nil {
		log.Error("Failed to save user", zap.String("state", user.State.String()), zap.Error(err))
		d.metrics.CountError(KindUpstream.String())
		return reply("❌ Error processing request", nil), arrived.Flow
	}
	return resp, arrived.Flow
}

// loadUser finds the user bound to the chat, creating one on first contact.
func (d *Dispatcher) loadUser(ctx context.Context, in messaging.Inbound) (*models.User, error) {
	user, err := d.store.FindUserByChatID(ctx, in.ChatID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	user = &models.User{ChatID: in.ChatID, Name: in.Name, Status: models.StatusActive}
	if err := d.store.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user for chat %s: %w", in.ChatID, err)
	}
	return user, nil
}

// safely runs fn, turning a panic into an internal error.
func (d *Dispatcher) safely(log *zap.Logger, fn func() (Response, error)) (resp Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered from panic", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			resp, err = Response{}, fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func (d *Dispatcher) route(ctx context.Context, user *models.User, text string) (Response, error) {
	text = strings.TrimSpace(text)
	ctrl, inFlow := d.controller(user.State)

	if strings.HasPrefix(text, "/") {
		name := strings.ToLower(strings.Fields(text)[0])
		if cmd, ok := d.commands[name]; ok {
			if cmd.verified && !user.IsVerified {
				return reply("🔐 Please verify your account first. Send /start to register or log in.", startKeyboard()), nil
			}
			return cmd.run(ctx, user)
		}
		local, ok := ctrl.(localCommands)
		if !inFlow || !ok || !local.Accepts(name) {
			return reply("⚠️ Unknown command", d.homeKeyboard(user)), nil
		}
		text = name
	}

	if !inFlow {
		return reply("❌ Invalid state. Choose an option from the menu.", d.homeKeyboard(user)), nil
	}
	return ctrl.HandleInput(ctx, user, text)
}

func (d *Dispatcher) controller(s conversation.State) (FlowController, bool) {
	if !s.Known() {
		return nil, false
	}
	ctrl, ok := d.controllers[s.Flow]
	return ctrl, ok
}

func (d *Dispatcher) homeKeyboard(user *models.User) [][]string {
	if !user.IsVerified {
		return startKeyboard()
	}
	return mainKeyboard()
}

func (d *Dispatcher) mainMenu(_ context.Context, user *models.User) (Response, error) {
	user.ResetState()
	return reply("🏠 Main Menu:", d.homeKeyboard(user)), nil
}

func (d *Dispatcher) cancel(_ context.Context, user *models.User) (Response, error) {
	user.ResetState()
	return reply("❌ Operation cancelled.", d.homeKeyboard(user)), nil
}

func (d *Dispatcher) back(ctx context.Context, user *models.User) (Response, error) {
	ctrl, ok := d.controller(user.State)
	if !ok {
		return d.mainMenu(ctx, user)
	}
	return ctrl.HandleBack(ctx, user)
}

func (d *Dispatcher) help(_ context.Context, user *models.User) (Response, error) {
	var b strings.Builder
	b.WriteString("📖 Available commands:\n\n")
	b.WriteString("/start - Register or log in\n")
	b.WriteString("/add_expense - Record an expense\n")
	b.WriteString("/add_income - Record an income\n")
	b.WriteString("/split_expense - Split a bill\n")
	b.WriteString("/create_group - Create a group\n")
	b.WriteString("/view_transactions - Browse your transactions\n")
	b.WriteString("/budget_advice - Chat about your budget\n")
	b.WriteString("/my_profile - Show your profile\n")
	b.WriteString("/back - Go back one step\n")
	b.WriteString("/main - Main menu\n")
	b.WriteString("/cancel - Cancel the current action\n")
	b.WriteString("/logout - Log out of this chat")
	return reply(b.String(), d.homeKeyboard(user)), nil
}

// deliver sends the replies, then the notices. Send failures are logged.
func (d *Dispatcher) deliver(ctx context.Context, log *zap.Logger, chatID string, resp Response) {
	send := func(to string, r Reply) {
		err := d.sender.Send(ctx, messaging.Message{ChatID: to, Text: r.Text, Keyboard: r.Keyboard, Image: r.Image})
		d.metrics.CountSend(err)
		if err != nil {
			log.Warn("Failed to send message", zap.String("to", to), zap.Error(err))
		}
	}
	for _, r := range resp.Replies {
		send(chatID, r)
	}
	for _, n := range resp.Notices {
		send(n.ChatID, n.Reply)
	}
}

// randomCode returns a uniformly random 6 digit code.
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// chatLocks serializes turns per chat. Entries are dropped when unused.
type chatLocks struct {
	mu    sync.Mutex
	locks map[string]*chatLock
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

func newChatLocks() *chatLocks {
	return &chatLocks{locks: make(map[string]*chatLock)}
}

// lock blocks until chatID is free and returns the unlock function.
func (c *chatLocks) lock(chatID string) func() {
	c.mu.Lock()
	l, ok := c.locks[chatID]
	if !ok {
		l = &chatLock{}
		c.locks[chatID] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, chatID)
		}
		c.mu.Unlock()
	}
}
