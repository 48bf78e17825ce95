package bot

import (
	"fmt"
	"testing"
	"time"

	"github.com/oatsaysai/budgetbuddy/internal/conversation"
	"github.com/oatsaysai/budgetbuddy/internal/models"
	"github.com/oatsaysai/budgetbuddy/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationStoresCodeForEmail(t *testing.T) {
	h := newHarness(t)

	msg := h.send("100", cmdStart)
	assert.Equal(t, "👋 Welcome! Please share your email:", msg.Text)
	assert.Equal(t, conversation.At(conversation.FlowAuth, conversation.StepRegisterEmail), h.user("100").State)

	msg = h.send("100", "A@B.com")
	assert.Equal(t, "📨 Verification code sent to a@b.com. Enter it here:", msg.Text)

	code, err := h.store.FindOneTimeCode(h.ctx, "a@b.com")
	require.NoError(t, err)
	assert.Regexp(t, `^\d{6}$`, code.Code)
	assert.True(t, code.CreatedAt.Equal(h.now))

	mails := h.mailer.Sent()
	require.Len(t, mails, 1)
	assert.Equal(t, "a@b.com", mails[0].To)
	assert.Equal(t, "Your Verification Code", mails[0].Subject)
	assert.Contains(t, mails[0].Text, code.Code)
	assert.Contains(t, mails[0].HTML, "<b>"+code.Code+"</b>")

	u := h.user("100")
	assert.Equal(t, conversation.At(conversation.FlowAuth, conversation.StepVerifyOTP), u.State)
	require.NotNil(t, u.Progress.Auth)
	assert.Equal(t, "a@b.com", u.Progress.Auth.Email)
}

func TestRegistrationCollectsMobileAfterCode(t *testing.T) {
	h := newHarness(t)
	h.send("100", cmdStart)
	h.send("100", "a@b.com")

	msg := h.send("100", "123456")
	assert.Equal(t, "📱 Please enter your mobile number (10 digits):", msg.Text)
	_, err := h.store.FindOneTimeCode(h.ctx, "a@b.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, conversation.StepRegisterMobile, h.user("100").State.Step)

	msg = h.send("100", "12345")
	assert.Equal(t, "❌ Invalid format. 10 digits required.", msg.Text)
	assert.Equal(t, conversation.StepRegisterMobile, h.user("100").State.Step)

	msg = h.send("100", "9876543210")
	assert.Equal(t, "🎉 Registration complete! Use /help for commands.", msg.Text)
	u := h.user("100")
	assert.True(t, u.IsVerified)
	assert.Equal(t, "a@b.com", u.Email)
	assert.Equal(t, "9876543210", u.Mobile)
	assert.True(t, u.State.IsZero())
	assert.True(t, u.Progress.IsZero())
}

func TestRegistrationWithKnownEmailBindsExistingAccount(t *testing.T) {
	h := newHarness(t)
	existing := h.seed("old-chat", "a@b.com", "9876543210")

	h.send("100", cmdStart)
	temp := h.user("100")
	h.send("100", "a@b.com")

	u := h.user("100")
	assert.Equal(t, existing.ID, u.ID)
	assert.False(t, u.IsVerified)
	_, err := h.store.FindUserByID(h.ctx, temp.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = h.store.FindUserByChatID(h.ctx, "old-chat")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// A mobile is already on file, so the code completes registration.
	msg := h.send("100", "123456")
	assert.Equal(t, "🎉 Registration complete! Use /help for commands.", msg.Text)
	u = h.user("100")
	assert.True(t, u.IsVerified)
	assert.True(t, u.State.IsZero())
}

func TestInvalidEmailReprompts(t *testing.T) {
	h := newHarness(t)
	h.send("100", cmdStart)

	msg := h.send("100", "not-an-email")
	assert.Equal(t, "❌ Invalid email format", msg.Text)
	assert.Equal(t, conversation.StepRegisterEmail, h.user("100").State.Step)
	assert.Empty(t, h.mailer.Sent())
}

func TestWrongCodeKeepsRecord(t *testing.T) {
	h := newHarness(t)
	h.send("100", cmdStart)
	h.send("100", "a@b.com")

	msg := h.send("100", "000000")
	assert.Equal(t, "⚠️ Invalid/expired code\nCurrent step: VERIFY_OTP", msg.Text)
	assert.Equal(t, cancelKeyboard(), msg.Keyboard)

	u := h.user("100")
	assert.Equal(t, conversation.StepVerifyOTP, u.State.Step)
	require.NotNil(t, u.Progress.Auth)
	assert.Equal(t, "a@b.com", u.Progress.Auth.Email)
	_, err := h.store.FindOneTimeCode(h.ctx, "a@b.com")
	assert.NoError(t, err)
}

func TestExpiredCodeIsConsumed(t *testing.T) {
	h := newHarness(t)
	h.send("100", cmdStart)
	h.send("100", "a@b.com")

	h.now = h.now.Add(models.OneTimeCodeTTL + time.Second)
	msg := h.send("100", "123456")
	assert.Contains(t, msg.Text, "Invalid/expired code")
	assert.Equal(t, conversation.StepVerifyOTP, h.user("100").State.Step)
	_, err := h.store.FindOneTimeCode(h.ctx, "a@b.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCodeAtExactTTLIsAccepted(t *testing.T) {
	h := newHarness(t)
	h.send("100", cmdStart)
	h.send("100", "a@b.com")

	h.now = h.now.Add(models.OneTimeCodeTTL)
	h.send("100", "123456")
	assert.Equal(t, conversation.StepRegisterMobile, h.user("100").State.Step)
}

func TestDuplicateMobileIsRejected(t *testing.T) {
	h := newHarness(t)
	h.seed("other", "c@d.com", "9876543210")
	h.send("100", cmdStart)
	h.send("100", "a@b.com")
	h.send("100", "123456")

	msg := h.send("100", "9876543210")
	assert.Equal(t, "📢 Credential already exists\nCurrent step: REGISTER_MOBILE", msg.Text)
	u := h.user("100")
	assert.Equal(t, conversation.StepRegisterMobile, u.State.Step)
	assert.Empty(t, u.Mobile)
	assert.False(t, u.IsVerified)
}

func TestLoginWithExistingEmail(t *testing.T) {
	h := newHarness(t)
	h.seed("100", "a@b.com", "9876543210")

	msg := h.send("100", cmdStart)
	assert.Equal(t, "🔑 Login code sent to a@b.com. Enter it here:", msg.Text)
	u := h.user("100")
	assert.False(t, u.IsVerified)
	assert.Equal(t, conversation.StepLoginOTP, u.State.Step)

	msg = h.send("100", "123456")
	assert.Equal(t, "✅ Login successful!", msg.Text)
	u = h.user("100")
	assert.True(t, u.IsVerified)
	assert.True(t, u.State.IsZero())
}

func TestLockedAccount(t *testing.T) {
	h := newHarness(t)
	u := h.seed("100", "a@b.com", "9876543210")
	u.Status = models.StatusLocked
	require.NoError(t, h.store.SaveUser(h.ctx, u))

	msg := h.send("100", cmdStart)
	assert.Equal(t, "🔒 Account locked", msg.Text)
	assert.True(t, h.user("100").State.IsZero())
	assert.Empty(t, h.mailer.Sent())
}

func TestLockedAccountMidFlowResets(t *testing.T) {
	h := newHarness(t)
	h.send("100", cmdStart)
	u := h.user("100")
	u.Status = models.StatusLocked
	require.NoError(t, h.store.SaveUser(h.ctx, u))

	msg := h.send("100", "a@b.com")
	assert.Contains(t, msg.Text, "Account locked")
	assert.True(t, h.user("100").State.IsZero())
}

func TestMailFailureResetsFlow(t *testing.T) {
	h := newHarness(t)
	h.mailer.Err = fmt.Errorf("smtp down")
	h.send("100", cmdStart)

	msg := h.send("100", "a@b.com")
	assert.Equal(t, "❌ Failed to send the verification email. Try again.", msg.Text)
	assert.True(t, h.user("100").State.IsZero())
}

func TestLogoutUnbindsChat(t *testing.T) {
	h := newHarness(t)
	u := h.seed("100", "a@b.com", "9876543210")

	msg := h.send("100", cmdLogout)
	assert.Equal(t, "🔒 Successfully logged out. Send /start to register again.", msg.Text)
	assert.Equal(t, startKeyboard(), msg.Keyboard)

	saved, err := h.store.FindUserByID(h.ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, saved.ChatID)
	assert.False(t, saved.IsVerified)
	assert.Equal(t, "a@b.com", saved.Email)
	assert.Equal(t, conversation.At(conversation.FlowAuth, conversation.StepAuthInitial), saved.State)

	// The chat now belongs to a fresh user.
	h.send("100", "hi")
	assert.NotEqual(t, u.ID, h.user("100").ID)
}

func TestAuthBackNavigation(t *testing.T) {
	h := newHarness(t)
	h.send("100", cmdStart)
	h.send("100", "a@b.com")
	h.send("100", "123456")
	require.Equal(t, conversation.StepRegisterMobile, h.user("100").State.Step)

	msg := h.send("100", cmdBack)
	assert.Equal(t, "📨 Verification code sent to a@b.com. Enter it here:", msg.Text)
	assert.Equal(t, conversation.StepVerifyOTP, h.user("100").State.Step)
	_, err := h.store.FindOneTimeCode(h.ctx, "a@b.com")
	assert.NoError(t, err)

	h.send("100", cmdBack)
	assert.Equal(t, conversation.StepRegisterEmail, h.user("100").State.Step)

	msg = h.send("100", cmdBack)
	assert.Equal(t, "🏠 Returning to start...", msg.Text)
	assert.Equal(t, conversation.StepAuthInitial, h.user("100").State.Step)

	msg = h.send("100", "anything")
	assert.Equal(t, "📧 Please enter your email address to begin:", msg.Text)
	assert.Equal(t, conversation.StepRegisterEmail, h.user("100").State.Step)
}

func TestAuthBackTable(t *testing.T) {
	tests := map[conversation.Step]conversation.Step{
		conversation.StepRegisterEmail:  conversation.StepAuthInitial,
		conversation.StepVerifyOTP:      conversation.StepRegisterEmail,
		conversation.StepRegisterMobile: conversation.StepVerifyOTP,
		conversation.StepLoginOTP:       conversation.StepAuthInitial,
	}
	assert.Equal(t, tests, authBack)
	_, ok := authBack[conversation.StepAuthInitial]
	assert.False(t, ok)
}

func TestProfile(t *testing.T) {
	h := newHarness(t)
	h.seed("100", "a@b.com", "")

	msg := h.send("100", cmdProfile)
	assert.Contains(t, msg.Text, "👤 Your Profile")
	assert.Contains(t, msg.Text, "Email: a@b.com")
	assert.Contains(t, msg.Text, "Mobile: Not set")
	assert.Contains(t, msg.Text, "Status: Verified ✅")
	assert.Contains(t, msg.Text, "Registered: 15 Mar 2026")
}
