package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oatsaysai/budgetbuddy/internal/conversation"
	"github.com/oatsaysai/budgetbuddy/internal/models"
	"github.com/oatsaysai/budgetbuddy/internal/store"
)

var (
	expenseCategories = []string{"Food", "Transport", "Housing", "Entertainment", "Utilities", "Other"}
	incomeCategories  = []string{"Salary", "Business", "Investment", "Gift", "Other"}
)

var entryBack = map[conversation.Step]conversation.Step{
	conversation.StepEntryAmount:      conversation.StepEntryCurrency,
	conversation.StepEntryDescription: conversation.StepEntryAmount,
	conversation.StepEntryCategory:    conversation.StepEntryDescription,
}

// entryController records a personal expense or income.
type entryController struct {
	store store.Store
	now   func() time.Time
}

// Start begins an entry of the given transaction type.
func (c *entryController) Start(_ context.Context, u *models.User, typ string) (Response, error) {
	return c.enter(u, conversation.StepEntryCurrency, &conversation.EntryDraft{Type: typ}), nil
}

func (c *entryController) HandleInput(ctx context.Context, u *models.User, text string) (Response, error) {
	draft := u.Progress.Entry
	if draft == nil || draft.Type == "" {
		draft = &conversation.EntryDraft{Type: models.TypeExpense}
	}

	switch u.State.Step {
	case conversation.StepEntryCurrency:
		code, ok := parseCurrency(text)
		if !ok {
			return reply("⚠️ Invalid currency", currencyKeyboard(false)), nil
		}
		draft.Currency = code
		return c.enter(u, conversation.StepEntryAmount, draft), nil

	case conversation.StepEntryAmount:
		amount, ok := parseAmount(text)
		if !ok {
			return reply("⚠️ Invalid amount", cancelKeyboard()), nil
		}
		draft.Amount = amount
		return c.enter(u, conversation.StepEntryDescription, draft), nil

	case conversation.StepEntryDescription:
		text = strings.TrimSpace(text)
		if text == "" {
			return reply("⚠️ Please enter a description", cancelKeyboard()), nil
		}
		draft.Description = text
		return c.enter(u, conversation.StepEntryCategory, draft), nil

	case conversation.StepEntryCategory:
		category, ok := matchOption(categoriesFor(draft.Type), text)
		if !ok {
			return reply("⚠️ Invalid category", categoryKeyboard(draft.Type)), nil
		}
		return c.finalize(ctx, u, draft, category)
	}
	return Response{}, fmt.Errorf("unhandled entry step %q", u.State.Step)
}

func (c *entryController) HandleBack(_ context.Context, u *models.User) (Response, error) {
	prev, ok := entryBack[u.State.Step]
	if !ok || u.Progress.Entry == nil {
		u.ResetState()
		return reply("🏠 Main Menu:", mainKeyboard()), nil
	}
	return c.enter(u, prev, u.Progress.Entry), nil
}

func (c *entryController) enter(u *models.User, step conversation.Step, draft *conversation.EntryDraft) Response {
	u.Enter(conversation.FlowTransaction, step, conversation.Progress{Entry: draft})
	switch step {
	case conversation.StepEntryCurrency:
		return reply("💰 Select currency:", currencyKeyboard(false))
	case conversation.StepEntryAmount:
		return reply("💵 Enter amount:", cancelKeyboard())
	case conversation.StepEntryDescription:
		return reply("📝 Enter description:", cancelKeyboard())
	default:
		return reply("📦 Select category:", categoryKeyboard(draft.Type))
	}
}

func (c *entryController) finalize(ctx context.Context, u *models.User, draft *conversation.EntryDraft, category string) (Response, error) {
	tx := &models.Transaction{
		UserID:      u.ID,
		Amount:      draft.Amount,
		Currency:    draft.Currency,
		Category:    category,
		Description: draft.Description,
		Type:        draft.Type,
		SplitType:   models.SplitPersonal,
		Date:        c.now(),
	}
	if err := c.store.SaveTransaction(ctx, tx); err != nil {
		return Response{}, upstream(fmt.Sprintf("❌ Error saving %s", draft.Type), err)
	}
	u.Transactions = append(u.Transactions, tx.ID)
	u.ResetState()

	label := "Expense"
	if tx.Type == models.TypeIncome {
		label = "Income"
	}
	return reply(fmt.Sprintf("✅ %s of %s %s recorded!", label, tx.Amount.StringFixed(2), tx.Currency), mainKeyboard()), nil
}

func categoriesFor(typ string) []string {
	if typ == models.TypeIncome {
		return incomeCategories
	}
	return expenseCategories
}

func categoryKeyboard(typ string) [][]string {
	return columns(categoriesFor(typ), 3, cmdBack, cmdMain)
}
