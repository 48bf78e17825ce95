package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/oatsaysai/budgetbuddy/internal/conversation"
	"github.com/oatsaysai/budgetbuddy/internal/models"
	"github.com/oatsaysai/budgetbuddy/internal/store"
)

var (
	emailRegex  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	mobileRegex = regexp.MustCompile(`^\d{10}$`)
)

// authBack maps each authentication step to the one before it.
var authBack = map[conversation.Step]conversation.Step{
	conversation.StepRegisterEmail:  conversation.StepAuthInitial,
	conversation.StepVerifyOTP:      conversation.StepRegisterEmail,
	conversation.StepRegisterMobile: conversation.StepVerifyOTP,
	conversation.StepLoginOTP:       conversation.StepAuthInitial,
}

// authController registers new users and logs returning users in with an
// emailed one-time code.
type authController struct {
	store   store.Store
	mailer  Mailer
	now     func() time.Time
	newCode func() (string, error)
}

// Start begins registration, or a login when the user already has an email.
func (c *authController) Start(ctx context.Context, u *models.User) (Response, error) {
	if u.IsLocked() {
		return Response{}, accountLocked("🔒 Account locked")
	}
	if u.Email == "" {
		u.Enter(conversation.FlowAuth, conversation.StepRegisterEmail, conversation.Progress{Auth: &conversation.AuthDraft{}})
		return reply("👋 Welcome! Please share your email:", cancelKeyboard()), nil
	}

	u.IsVerified = false
	if err := c.issueCode(ctx, u.Email); err != nil {
		return Response{}, err
	}
	u.Enter(conversation.FlowAuth, conversation.StepLoginOTP, conversation.Progress{Auth: &conversation.AuthDraft{Email: u.Email}})
	return reply(fmt.Sprintf("🔑 Login code sent to %s. Enter it here:", u.Email), cancelKeyboard()), nil
}

func (c *authController) HandleInput(ctx context.Context, u *models.User, text string) (Response, error) {
	step := u.State.Step
	if u.IsLocked() {
		return Response{}, accountLocked(stepMessage("🔒 Account locked", step))
	}

	switch step {
	case conversation.StepAuthInitial:
		return c.toEmail(u, "📧 Please enter your email address to begin:"), nil
	case conversation.StepRegisterEmail:
		return c.handleEmail(ctx, u, text)
	case conversation.StepVerifyOTP:
		if err := c.verify(ctx, u, text); err != nil {
			return Response{}, err
		}
		if u.Mobile == "" {
			u.Enter(conversation.FlowAuth, conversation.StepRegisterMobile, u.Progress)
			return reply("📱 Please enter your mobile number (10 digits):", cancelKeyboard()), nil
		}
		return c.complete(u), nil
	case conversation.StepRegisterMobile:
		return c.handleMobile(ctx, u, text)
	case conversation.StepLoginOTP:
		if err := c.verify(ctx, u, text); err != nil {
			return Response{}, err
		}
		u.IsVerified = true
		u.ResetState()
		return reply("✅ Login successful!", mainKeyboard()), nil
	}
	return Response{}, fmt.Errorf("unhandled auth step %q", step)
}

func (c *authController) HandleBack(ctx context.Context, u *models.User) (Response, error) {
	prev, ok := authBack[u.State.Step]
	if !ok {
		prev = conversation.StepAuthInitial
	}

	switch prev {
	case conversation.StepRegisterEmail:
		return c.toEmail(u, "📧 Please enter your email address:"), nil
	case conversation.StepVerifyOTP:
		email := c.draftEmail(u)
		if email == "" {
			return c.toEmail(u, "📧 Please enter your email address:"), nil
		}
		if err := c.issueCode(ctx, email); err != nil {
			return Response{}, err
		}
		u.Enter(conversation.FlowAuth, conversation.StepVerifyOTP, conversation.Progress{Auth: &conversation.AuthDraft{Email: email}})
		return reply(fmt.Sprintf("📨 Verification code sent to %s. Enter it here:", email), cancelKeyboard()), nil
	default:
		u.Enter(conversation.FlowAuth, conversation.StepAuthInitial, conversation.Progress{})
		return reply("🏠 Returning to start...", startKeyboard()), nil
	}
}

// Logout unbinds the chat from the account and clears its verification.
// The profile is kept.
func (c *authController) Logout(_ context.Context, u *models.User) (Response, error) {
	u.ChatID = ""
	u.IsVerified = false
	u.Enter(conversation.FlowAuth, conversation.StepAuthInitial, conversation.Progress{})
	return reply("🔒 Successfully logged out. Send /start to register again.", startKeyboard()), nil
}

// Profile shows the account details.
func (c *authController) Profile(_ context.Context, u *models.User) (Response, error) {
	orUnset := func(s string) string {
		if s == "" {
			return "Not set"
		}
		return s
	}
	status := "Unverified ❌"
	if u.IsVerified {
		status = "Verified ✅"
	}

	var b strings.Builder
	b.WriteString("👤 Your Profile\n\n")
	fmt.Fprintf(&b, "Name: %s\n", orUnset(u.Name))
	fmt.Fprintf(&b, "Email: %s\n", orUnset(u.Email))
	fmt.Fprintf(&b, "Mobile: %s\n", orUnset(u.Mobile))
	fmt.Fprintf(&b, "Status: %s\n", status)
	fmt.Fprintf(&b, "Registered: %s", u.CreatedAt.Format("02 Jan 2006"))
	return reply(b.String(), mainKeyboard()), nil
}

func (c *authController) toEmail(u *models.User, prompt string) Response {
	u.Enter(conversation.FlowAuth, conversation.StepRegisterEmail, conversation.Progress{Auth: &conversation.AuthDraft{}})
	return reply(prompt, cancelKeyboard())
}

func (c *authController) handleEmail(ctx context.Context, u *models.User, text string) (Response, error) {
	email := models.NormalizeEmail(text)
	if !emailRegex.MatchString(email) {
		return reply("❌ Invalid email format", cancelKeyboard()), nil
	}

	existing, err := c.store.FindUserByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		u.Email = email
	case err != nil:
		return Response{}, upstream(stepMessage("❌ Authentication failed. Try again.", u.State.Step), err)
	case existing.ID != u.ID:
		if existing.IsLocked() {
			return Response{}, accountLocked(stepMessage("🔒 Account locked", u.State.Step))
		}
		if err := c.bind(ctx, u, existing); err != nil {
			return Response{}, err
		}
	}

	if err := c.issueCode(ctx, email); err != nil {
		return Response{}, err
	}
	u.Enter(conversation.FlowAuth, conversation.StepVerifyOTP, conversation.Progress{Auth: &conversation.AuthDraft{Email: email}})
	return reply(fmt.Sprintf("📨 Verification code sent to %s. Enter it here:", email), cancelKeyboard()), nil
}

// bind moves the chat of u onto the existing account and drops u, so a
// returning user on a new chat keeps their data. The account must verify
// again before it is usable.
func (c *authController) bind(ctx context.Context, u, existing *models.User) error {
	if err := c.store.DeleteUser(ctx, u.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return upstream(stepMessage("❌ Authentication failed. Try again.", u.State.Step), err)
	}
	chatID, state := u.ChatID, u.State
	*u = *existing
	u.ChatID = chatID
	u.State = state
	u.IsVerified = false
	return nil
}

func (c *authController) handleMobile(ctx context.Context, u *models.User, text string) (Response, error) {
	mobile := strings.TrimSpace(text)
	if !mobileRegex.MatchString(mobile) {
		return reply("❌ Invalid format. 10 digits required.", cancelKeyboard()), nil
	}

	existing, err := c.store.FindUserByMobile(ctx, mobile)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return Response{}, upstream(stepMessage("❌ Authentication failed. Try again.", u.State.Step), err)
	case existing.ID != u.ID:
		return Response{}, duplicateCredential(stepMessage("📢 Credential already exists", u.State.Step))
	}

	u.Mobile = mobile
	return c.complete(u), nil
}

func (c *authController) complete(u *models.User) Response {
	u.IsVerified = true
	u.ResetState()
	return reply("🎉 Registration complete! Use /help for commands.", mainKeyboard())
}

// issueCode stores a fresh code for email, replacing any earlier one, and
// mails it.
func (c *authController) issueCode(ctx context.Context, email string) error {
	code, err := c.newCode()
	if err != nil {
		return upstream("❌ Authentication failed. Try again.", err)
	}
	if err := c.store.UpsertOneTimeCode(ctx, email, code, c.now()); err != nil {
		return upstream("❌ Authentication failed. Try again.", fmt.Errorf("store code: %w", err))
	}

	text := fmt.Sprintf("Your OTP is %s. Valid for 10 minutes.", code)
	html := fmt.Sprintf("<b>%s</b> is your verification code. It expires in 10 minutes.", code)
	if err := c.mailer.SendMail(ctx, email, "Your Verification Code", text, html); err != nil {
		return upstream("❌ Failed to send the verification email. Try again.", fmt.Errorf("mail code: %w", err))
	}
	return nil
}

// verify checks code against the one stored for the user's email. A
// matching code is consumed even when it turns out to be expired.
func (c *authController) verify(ctx context.Context, u *models.User, code string) error {
	step := u.State.Step
	rec, err := c.store.FindOneTimeCode(ctx, c.draftEmail(u))
	if errors.Is(err, store.ErrNotFound) {
		return invalidOTP(stepMessage("⚠️ Invalid/expired code", step))
	}
	if err != nil {
		return upstream(stepMessage("❌ Authentication failed. Try again.", step), err)
	}
	if rec.Code != strings.TrimSpace(code) {
		return invalidOTP(stepMessage("⚠️ Invalid/expired code", step))
	}

	if err := c.store.DeleteOneTimeCode(ctx, rec.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return upstream(stepMessage("❌ Authentication failed. Try again.", step), err)
	}
	if rec.Expired(c.now()) {
		return invalidOTP(stepMessage("⚠️ Invalid/expired code", step))
	}
	return nil
}

func (c *authController) draftEmail(u *models.User) string {
	if u.Progress.Auth != nil && u.Progress.Auth.Email != "" {
		return u.Progress.Auth.Email
	}
	return u.Email
}

func stepMessage(msg string, step conversation.Step) string {
	return fmt.Sprintf("%s\nCurrent step: %s", msg, step)
}
