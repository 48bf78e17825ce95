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

const advisorPrompt = `You are a friendly personal financial advisor called BudgetBuddy. Answer questions from the context below accurately.
Start by greeting the user by name.

1. Analyze the user's transaction history with empathy
2. Give actionable budgeting advice in simple language
3. Identify spending patterns and potential savings
4. Suggest realistic financial goals
5. Keep a positive and encouraging tone
6. Answer in depth when asked, but keep answers compact
7. Answer in bullet points
8. Help the user minimize expenses and add a tip when useful
9. Format plans as bullet lists

Guidelines:
- Use the user's currency (%s) for amounts
- Use emojis sparingly for emphasis
- Reference specific transaction categories when possible
- Always confirm if the user needs clarification`

const (
	// adviceContextLimit caps how many recent transactions go into the prompt.
	adviceContextLimit = 100
	// adviceHistoryLimit caps the stored chat turns.
	adviceHistoryLimit = 20
)

var markdownReplacer = strings.NewReplacer("```", "", "**", "", "*", "", "`", "")

// adviceController is a free-form chat with the advisory model about the
// user's own transactions.
type adviceController struct {
	store   store.Store
	advisor Advisor
	now     func() time.Time
}

func (c *adviceController) Accepts(command string) bool {
	return command == cmdStop
}

func (c *adviceController) Start(ctx context.Context, u *models.User) (Response, error) {
	if c.advisor == nil {
		return reply("⚠️ Budget advice is not available right now.", mainKeyboard()), nil
	}

	txs, _, err := c.store.FindTransactionsByOwnerAndDateRange(ctx, u.ID, time.Unix(0, 0), c.now().Add(time.Second), 0, adviceContextLimit)
	if err != nil {
		return Response{}, upstream("❌ Failed to load financial data. Please try later.", err)
	}

	currency := u.CurrencyPreference
	if currency == "" {
		currency = "INR"
	}
	u.Enter(conversation.FlowAdvice, conversation.StepAdvice, conversation.Progress{Advice: &conversation.AdviceDraft{
		Transactions: formatTransactions(txs),
		Currency:     currency,
	}})
	return reply("💡 What financial advice would you like today?\nExamples:\n- Where am I overspending?\n- How can I save more?\n- Monthly budget breakdown",
		[][]string{{cmdStop, cmdMain}}), nil
}

func (c *adviceController) HandleInput(ctx context.Context, u *models.User, text string) (Response, error) {
	if strings.EqualFold(strings.TrimSpace(text), cmdStop) {
		u.ResetState()
		return reply("🛑 Budget advice session ended.", mainKeyboard()), nil
	}
	draft := u.Progress.Advice
	if draft == nil || c.advisor == nil {
		return Response{}, fmt.Errorf("advice session is not set up")
	}
	if strings.TrimSpace(text) == "" {
		return reply("💬 Ask me anything about your budget.", [][]string{{cmdStop, cmdMain}}), nil
	}

	system := fmt.Sprintf(advisorPrompt, draft.Currency)
	system += fmt.Sprintf("\n\n# USER\n%s\n\n# USER TRANSACTIONS\n%s", u.Name, draft.Transactions)
	answer, err := c.advisor.GenerateAdvice(ctx, system, draft.History, text)
	if err != nil {
		return Response{}, upstream("❌ Error processing your request. Session ended.", err)
	}
	answer = strings.TrimSpace(markdownReplacer.Replace(answer))

	draft.History = append(draft.History,
		conversation.Turn{Role: "user", Text: text},
		conversation.Turn{Role: "model", Text: answer},
	)
	if len(draft.History) > adviceHistoryLimit {
		draft.History = draft.History[len(draft.History)-adviceHistoryLimit:]
	}
	return reply(answer, [][]string{{cmdStop, cmdMain}}), nil
}

func (c *adviceController) HandleBack(_ context.Context, u *models.User) (Response, error) {
	u.ResetState()
	return reply("🏠 Main Menu:", mainKeyboard()), nil
}

// formatTransactions renders transactions as the plain text context given
// to the advisory model.
func formatTransactions(txs []*models.Transaction) string {
	if len(txs) == 0 {
		return "No transactions recorded yet."
	}
	entries := make([]string, len(txs))
	for i, t := range txs {
		var b strings.Builder
		fmt.Fprintf(&b, "Date: %s\n", t.Date.Format("02 Jan 2006"))
		fmt.Fprintf(&b, "Type: %s - %s\n", strings.ToUpper(t.Type), t.Category)
		fmt.Fprintf(&b, "Amount: %s %s", t.Amount.StringFixed(2), t.Currency)
		if t.Description != "" {
			fmt.Fprintf(&b, "\nNote: %s", t.Description)
		}
		if t.SplitType == models.SplitGroup {
			b.WriteString("\nShared expense")
		}
		entries[i] = b.String()
	}
	return strings.Join(entries, "\n\n")
}
