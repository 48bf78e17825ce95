package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/oatsaysai/budgetbuddy/internal/conversation"
	"github.com/oatsaysai/budgetbuddy/internal/messaging"
	"github.com/oatsaysai/budgetbuddy/internal/models"
	"github.com/oatsaysai/budgetbuddy/internal/splitcalc"
	"github.com/oatsaysai/budgetbuddy/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var splitCategories = []string{
	"🍔 Food & Dining",
	"🚕 Transportation",
	"🏠 Housing",
	"💡 Utilities",
	"🎉 Entertainment",
	"🏥 Healthcare",
	"🎓 Education",
	"🛍️ Shopping",
	"✈️ Travel",
	"💅 Personal Care",
	"🎁 Gifts & Donations",
	"❓ Other",
}

const minSplitDescription = 3

// splitBack maps each bill-split step to the one before it. SHARES is
// missing: it returns to whichever step produced the participants.
var splitBack = map[conversation.Step]conversation.Step{
	conversation.StepSplitAmount:      conversation.StepSplitCurrency,
	conversation.StepSplitDescription: conversation.StepSplitAmount,
	conversation.StepSplitCategory:    conversation.StepSplitDescription,
	conversation.StepSplitType:        conversation.StepSplitCategory,
	conversation.StepSplitSource:      conversation.StepSplitType,
	conversation.StepSplitGroupSelect: conversation.StepSplitSource,
	conversation.StepSplitManual:      conversation.StepSplitSource,
}

const divider = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// splitController divides a shared expense between the requester and
// other users, picked from a group or listed by hand.
type splitController struct {
	store    store.Store
	payments PaymentRequester
	now      func() time.Time
	log      *zap.Logger
}

func (c *splitController) Start(_ context.Context, u *models.User) (Response, error) {
	return c.enter(u, conversation.StepSplitCurrency, &conversation.SplitDraft{}), nil
}

func (c *splitController) HandleInput(ctx context.Context, u *models.User, text string) (Response, error) {
	draft := u.Progress.Split
	if draft == nil {
		if u.State.Step != conversation.StepSplitCurrency {
			return Response{}, fmt.Errorf("split draft missing at step %s", u.State.Step)
		}
		draft = &conversation.SplitDraft{}
	}

	switch u.State.Step {
	case conversation.StepSplitCurrency:
		code, ok := parseCurrency(text)
		if !ok {
			return reply("⚠️ Please select a valid currency:", currencyKeyboard(true)), nil
		}
		draft.Currency = code
		return c.enter(u, conversation.StepSplitAmount, draft), nil

	case conversation.StepSplitAmount:
		amount, ok := parseAmount(text)
		if !ok {
			return reply("⚠️ Please enter a valid positive amount:", cancelKeyboard()), nil
		}
		draft.Amount = amount
		return c.enter(u, conversation.StepSplitDescription, draft), nil

	case conversation.StepSplitDescription:
		text = strings.TrimSpace(text)
		if utf8.RuneCountInString(text) < minSplitDescription {
			return reply(fmt.Sprintf("⚠️ Description too short (minimum %d characters):", minSplitDescription), cancelKeyboard()), nil
		}
		draft.Description = text
		return c.enter(u, conversation.StepSplitCategory, draft), nil

	case conversation.StepSplitCategory:
		category, ok := matchOption(splitCategories, text)
		if !ok {
			return reply("⚠️ Please select a valid category:", splitCategoryKeyboard()), nil
		}
		draft.Category = optionName(category)
		return c.enter(u, conversation.StepSplitType, draft), nil

	case conversation.StepSplitType:
		t, ok := parseSplitType(text)
		if !ok {
			return reply("⚠️ Please choose a split type:", splitTypeKeyboard()), nil
		}
		draft.SplitType = t
		return c.enter(u, conversation.StepSplitSource, draft), nil

	case conversation.StepSplitSource:
		switch lower := strings.ToLower(text); {
		case strings.Contains(lower, "group"):
			return c.toGroupSelect(ctx, u, draft)
		case strings.Contains(lower, "manual"):
			return c.enter(u, conversation.StepSplitManual, draft), nil
		}
		return reply("⚠️ Please choose where the participants come from:", sourceKeyboard()), nil

	case conversation.StepSplitGroupSelect:
		return c.selectGroup(ctx, u, draft, text)

	case conversation.StepSplitManual:
		return c.selectManual(ctx, u, draft, text)

	case conversation.StepSplitShares:
		return c.handleShares(ctx, u, draft, text)
	}
	return Response{}, fmt.Errorf("unhandled split step %q", u.State.Step)
}

func (c *splitController) HandleBack(ctx context.Context, u *models.User) (Response, error) {
	draft := u.Progress.Split
	step := u.State.Step
	if draft == nil {
		u.ResetState()
		return reply("🏠 Main Menu:", mainKeyboard()), nil
	}

	if step == conversation.StepSplitShares {
		if draft.Source == conversation.SourceGroup {
			return c.toGroupSelect(ctx, u, draft)
		}
		return c.enter(u, conversation.StepSplitManual, draft), nil
	}

	prev, ok := splitBack[step]
	if !ok {
		u.ResetState()
		return reply("🏠 Main Menu:", mainKeyboard()), nil
	}
	return c.enter(u, prev, draft), nil
}

// enter moves to a step whose prompt needs no lookups.
func (c *splitController) enter(u *models.User, step conversation.Step, draft *conversation.SplitDraft) Response {
	u.Enter(conversation.FlowSplit, step, conversation.Progress{Split: draft})
	switch step {
	case conversation.StepSplitCurrency:
		return reply("🌍 Select currency for your split expense:", currencyKeyboard(true))
	case conversation.StepSplitAmount:
		return reply("💸 Enter the total amount to split:", cancelKeyboard())
	case conversation.StepSplitDescription:
		return reply("📝 Describe this expense (e.g., 'Dinner at Taj Hotel'):", cancelKeyboard())
	case conversation.StepSplitCategory:
		return reply("📦 Select expense category:", splitCategoryKeyboard())
	case conversation.StepSplitType:
		return reply("🔀 How would you like to split this expense?", splitTypeKeyboard())
	case conversation.StepSplitSource:
		return reply("👥 Select participant source:", sourceKeyboard())
	default:
		return reply("👤 Enter participants (comma-separated emails/mobiles/IDs):\n"+
			"Example: 9876543210, john@example.com, 507f1f77bcf86cd799439011", cancelKeyboard())
	}
}

func (c *splitController) toGroupSelect(ctx context.Context, u *models.User, draft *conversation.SplitDraft) (Response, error) {
	groups, err := c.store.FindGroupsByMember(ctx, u.ID)
	if err != nil {
		return Response{}, upstream("❌ Failed to load your groups", err)
	}
	if len(groups) == 0 {
		u.ResetState()
		return reply("❌ You don't have any groups yet. Create one first!", mainKeyboard()), nil
	}

	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.Name
	}
	draft.Source = conversation.SourceGroup
	u.Enter(conversation.FlowSplit, conversation.StepSplitGroupSelect, conversation.Progress{Split: draft})
	return reply("🏘️ Select a group:", columns(names, 1, cmdBack, cmdMain)), nil
}

func (c *splitController) selectGroup(ctx context.Context, u *models.User, draft *conversation.SplitDraft, text string) (Response, error) {
	group, err := c.store.FindGroupByNameAndMember(ctx, strings.TrimSpace(text), u.ID)
	if errors.Is(err, store.ErrNotFound) {
		return Response{}, notFound("❌ Group not found or access denied")
	}
	if err != nil {
		return Response{}, upstream("❌ Failed to load the group", err)
	}

	var others []string
	for _, m := range group.Members {
		if m != u.ID {
			others = append(others, m)
		}
	}
	if len(others) == 0 {
		return reply("⚠️ No other members in this group. Choose another group:", cancelKeyboard()), nil
	}

	draft.Source = conversation.SourceGroup
	draft.Group = &conversation.GroupRef{ID: group.ID, Name: group.Name}
	draft.Participants = others

	description := group.Description
	if description == "" {
		description = "No description"
	}
	info := reply(fmt.Sprintf("✅ Selected Group: %s\n👥 Members: %d total\n📝 Description: %s\n💰 Amount to Split: %s %s",
		group.Name, len(group.Members), description, draft.Amount.StringFixed(2), draft.Currency), nil)
	return c.next(ctx, u, draft, info)
}

func (c *splitController) selectManual(ctx context.Context, u *models.User, draft *conversation.SplitDraft, text string) (Response, error) {
	res, err := resolveList(ctx, c.store, text, u.ID)
	if err != nil {
		return Response{}, upstream("❌ Failed to look up participants", err)
	}
	if len(res.Users) == 0 {
		msg := "⚠️ No valid participants found. Enter at least one registered email, mobile or ID:"
		if len(res.Unresolved) > 0 {
			msg = fmt.Sprintf("⚠️ Couldn't find: %s\n%s", strings.Join(res.Unresolved, ", "), msg)
		}
		return reply(msg, cancelKeyboard()), nil
	}

	ids := make([]string, len(res.Users))
	for i, p := range res.Users {
		ids[i] = p.ID
	}
	draft.Source = conversation.SourceManual
	draft.Group = nil
	draft.Participants = ids

	var resp Response
	if len(res.Unresolved) > 0 {
		resp = reply(fmt.Sprintf("⚠️ Couldn't find: %s", strings.Join(res.Unresolved, ", ")), nil)
	}
	return c.next(ctx, u, draft, resp)
}

// next finalizes an equal split right away and asks for shares otherwise.
func (c *splitController) next(ctx context.Context, u *models.User, draft *conversation.SplitDraft, before Response) (Response, error) {
	var (
		resp Response
		err  error
	)
	if draft.SplitType == splitcalc.Equal {
		resp, err = c.finalize(ctx, u, draft, nil)
	} else {
		resp, err = c.sharesPrompt(ctx, u, draft)
	}
	if err != nil {
		return Response{}, err
	}
	return before.add(resp), nil
}

func (c *splitController) sharesPrompt(ctx context.Context, u *models.User, draft *conversation.SplitDraft) (Response, error) {
	u.Enter(conversation.FlowSplit, conversation.StepSplitShares, conversation.Progress{Split: draft})

	n := len(draft.Participants)
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Enter %s shares for %d participants:\n", strings.ToLower(string(draft.SplitType)), n)
	for i, contact := range c.contacts(ctx, draft.Participants) {
		fmt.Fprintf(&b, "%d. %s\n", i+1, contact)
	}
	if draft.SplitType == splitcalc.Percentage {
		b.WriteString("Comma-separated, must total 100%")
	} else {
		fmt.Fprintf(&b, "Comma-separated, must total %s %s", draft.Amount.StringFixed(2), draft.Currency)
	}
	return reply(b.String(), c.sharesKeyboard(draft)), nil
}

// sharesKeyboard suggests an even division as a ready-made answer.
func (c *splitController) sharesKeyboard(draft *conversation.SplitDraft) [][]string {
	target := draft.Amount
	if draft.SplitType == splitcalc.Percentage {
		target = decimal.NewFromInt(100)
	}
	shares, err := splitcalc.EqualShares(target, len(draft.Participants))
	if err != nil {
		return cancelKeyboard()
	}
	example := make([]string, len(shares))
	for i, s := range shares {
		example[i] = s.String()
	}
	return [][]string{{strings.Join(example, ",")}, {cmdBack, cmdMain}}
}

func (c *splitController) handleShares(ctx context.Context, u *models.User, draft *conversation.SplitDraft, text string) (Response, error) {
	if draft.SplitType == splitcalc.Equal {
		return c.finalize(ctx, u, draft, nil)
	}

	var shares []decimal.Decimal
	for _, tok := range strings.Split(text, ",") {
		if v, err := decimal.NewFromString(strings.TrimSpace(tok)); err == nil {
			shares = append(shares, v)
		}
	}
	if len(shares) != len(draft.Participants) {
		return reply(fmt.Sprintf("⚠️ Need exactly %d numeric values", len(draft.Participants)), c.sharesKeyboard(draft)), nil
	}
	for _, s := range shares {
		if s.IsNegative() {
			return reply("⚠️ Shares cannot be negative", c.sharesKeyboard(draft)), nil
		}
	}
	if v := splitcalc.ValidateShares(draft.SplitType, shares, draft.Amount); !v.Valid {
		return reply("❌ "+v.Reason, c.sharesKeyboard(draft)), nil
	}
	return c.finalize(ctx, u, draft, shares)
}

// finalize saves the transaction and its split, then resets the user. The
// two writes are separate; a failure between them leaves the transaction
// without a split. Equal splits include the requester as the first
// participant, who absorbs the rounding residual.
func (c *splitController) finalize(ctx context.Context, u *models.User, draft *conversation.SplitDraft, shares []decimal.Decimal) (Response, error) {
	ids := draft.Participants
	if draft.SplitType == splitcalc.Equal {
		ids = append([]string{u.ID}, draft.Participants...)
		var err error
		if shares, err = splitcalc.EqualShares(draft.Amount, len(ids)); err != nil {
			return Response{}, err
		}
	}
	if len(shares) != len(ids) || len(ids) == 0 {
		return Response{}, fmt.Errorf("split has %d shares for %d participants", len(shares), len(ids))
	}

	var groupID string
	if draft.Source == conversation.SourceGroup && draft.Group != nil {
		groupID = draft.Group.ID
	}

	tx := &models.Transaction{
		UserID:      u.ID,
		Amount:      draft.Amount,
		Currency:    draft.Currency,
		Category:    draft.Category,
		Description: draft.Description,
		Type:        models.TypeExpense,
		SplitType:   models.SplitGroup,
		GroupID:     groupID,
		Date:        c.now(),
	}
	if err := c.store.SaveTransaction(ctx, tx); err != nil {
		return Response{}, upstream("❌ Error creating split", err)
	}

	split := &models.Split{
		TransactionID: tx.ID,
		PaidBy:        u.ID,
		GroupID:       groupID,
		SplitType:     draft.SplitType,
	}
	for i, id := range ids {
		split.Participants = append(split.Participants, models.Participant{UserID: id, Share: shares[i]})
	}
	if err := c.store.SaveSplit(ctx, split); err != nil {
		return Response{}, upstream("❌ Error creating split", err)
	}

	u.Transactions = append(u.Transactions, tx.ID)
	u.Splits = append(u.Splits, split.ID)
	u.ResetState()

	return c.confirmation(ctx, u, draft, split), nil
}

// confirmation builds the breakdown for the requester and a payment
// request for every other participant reachable by chat. Lookup failures
// only degrade the messages.
func (c *splitController) confirmation(ctx context.Context, u *models.User, draft *conversation.SplitDraft, split *models.Split) Response {
	shares := make([]decimal.Decimal, len(split.Participants))
	for i, p := range split.Participants {
		shares[i] = p.Share
	}
	owed := splitcalc.Amounts(split.SplitType, shares, draft.Amount)

	group := "👤 Manual"
	if draft.Group != nil {
		group = draft.Group.Name
	}

	var b strings.Builder
	b.WriteString("🎉 Split Expense Created Successfully\n")
	b.WriteString(divider + "\n")
	fmt.Fprintf(&b, "💰 Amount: %s %s\n", draft.Amount.StringFixed(2), draft.Currency)
	fmt.Fprintf(&b, "📦 Category: %s\n", draft.Category)
	fmt.Fprintf(&b, "📝 Description: %s\n", draft.Description)
	fmt.Fprintf(&b, "🔀 Split Type: %s\n", split.SplitType)
	fmt.Fprintf(&b, "🏘️ Group: %s\n", group)
	b.WriteString(divider + "\n")
	b.WriteString("👥 Participant Breakdown:")

	resp := Response{}
	for i, p := range split.Participants {
		contact := p.UserID
		participant, err := c.store.FindUserByID(ctx, p.UserID)
		if err != nil {
			c.log.Warn("Failed to load split participant", zap.String("split_id", split.ID), zap.String("user_id", p.UserID), zap.Error(err))
		} else {
			contact = participant.Contact()
		}

		fmt.Fprintf(&b, "\n • %s: %s %s", contact, owed[i].StringFixed(2), draft.Currency)
		if split.SplitType == splitcalc.Percentage {
			fmt.Fprintf(&b, " (%s%%)", p.Share.String())
		}

		if p.UserID == u.ID || participant == nil || participant.ChatID == "" || !owed[i].IsPositive() {
			continue
		}
		resp.Notices = append(resp.Notices, c.paymentRequest(u, draft, split, participant, owed[i]))
	}

	resp.Replies = append(resp.Replies, Reply{Text: b.String(), Keyboard: mainKeyboard()})
	return resp
}

func (c *splitController) paymentRequest(payer *models.User, draft *conversation.SplitDraft, split *models.Split, to *models.User, amount decimal.Decimal) Notice {
	n := Notice{ChatID: to.ChatID}
	n.Text = fmt.Sprintf("💸 %s paid %s %s for \"%s\".\nYour share: %s %s",
		payer.Contact(), draft.Amount.StringFixed(2), draft.Currency, draft.Description, amount.StringFixed(2), draft.Currency)
	if c.payments == nil {
		return n
	}

	qr, err := c.payments.Generate(amount)
	if err != nil {
		c.log.Warn("Failed to generate payment QR", zap.String("split_id", split.ID), zap.String("user_id", to.ID), zap.Error(err))
		return n
	}
	n.Text += "\nScan the QR code to pay."
	n.Image = &messaging.Image{Name: "payment.png", Data: qr.PNG}
	return n
}

// contacts returns how each user is shown, falling back to the id.
func (c *splitController) contacts(ctx context.Context, ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id
		if p, err := c.store.FindUserByID(ctx, id); err == nil {
			out[i] = p.Contact()
		}
	}
	return out
}

func splitCategoryKeyboard() [][]string {
	return columns(splitCategories, 2, cmdBack, cmdMain)
}

func splitTypeKeyboard() [][]string {
	return [][]string{{"EQUAL ➗", "PERCENTAGE %"}, {"EXACT ⚖️", cmdBack}}
}

func sourceKeyboard() [][]string {
	return [][]string{{"🏘️ Group", "👤 Manual Entry"}, {cmdBack, cmdMain}}
}

// parseSplitType accepts a split type name or its keyboard label.
func parseSplitType(text string) (splitcalc.Type, bool) {
	name := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			return r
		}
		return -1
	}, text)
	return splitcalc.ParseType(name)
}
