package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/oatsaysai/budgetbuddy/internal/conversation"
	"github.com/oatsaysai/budgetbuddy/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateGroup(t *testing.T) {
	h := newHarness(t)
	alice := h.seed("a", "alice@x.com", "9000000001")
	bob := h.seed("b", "bob@x.com", "9000000002")
	carol := h.seed("c", "carol@x.com", "9000000003")

	msg := h.send("a", cmdCreateGroup)
	assert.Equal(t, "🆕 Enter group name:", msg.Text)
	msg = h.send("a", "Flatmates")
	assert.Equal(t, "📝 Enter group description:", msg.Text)
	h.send("a", "Rent and bills")

	h.sender.Reset()
	h.send("a", "bob@x.com, ghost, 9000000003, BOB@x.com, alice@x.com")
	replies := h.sender.To("a")
	require.Len(t, replies, 2)
	assert.Equal(t, "⚠️ Invalid entries: ghost", replies[0].Text)
	assert.Equal(t, `✅ Group "Flatmates" created with 3 members!`, replies[1].Text)
	assert.Equal(t, mainKeyboard(), replies[1].Keyboard)

	g, err := h.store.FindGroupByNameAndMember(h.ctx, "Flatmates", bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{alice.ID, bob.ID, carol.ID}, g.Members)
	assert.Equal(t, alice.ID, g.CreatedBy)
	assert.Equal(t, "Rent and bills", g.Description)

	u := h.user("a")
	assert.Equal(t, []string{g.ID}, u.Groups)
	assert.True(t, u.State.IsZero())
}

func TestCreateGroupValidation(t *testing.T) {
	h := newHarness(t)
	alice := h.seed("a", "alice@x.com", "9000000001")
	h.seedGroup("Flatmates", alice)

	h.send("a", cmdCreateGroup)
	msg := h.send("a", strings.Repeat("x", models.MaxGroupNameLength+1))
	assert.Equal(t, "⚠️ Group name must be 1-50 characters.", msg.Text)

	msg = h.send("a", "Flatmates")
	assert.Equal(t, `⚠️ You already have a group named "Flatmates". Choose another name:`, msg.Text)
	assert.Equal(t, conversation.StepGroupName, h.user("a").State.Step)

	h.send("a", "Trip")
	msg = h.send("a", strings.Repeat("d", models.MaxGroupDescriptionLength+1))
	assert.Equal(t, "⚠️ Description must be at most 200 characters.", msg.Text)
	assert.Equal(t, conversation.StepGroupDescription, h.user("a").State.Step)

	h.send("a", "")
	assert.Equal(t, conversation.StepGroupMembers, h.user("a").State.Step)

	msg = h.send("a", cmdBack)
	assert.Equal(t, "📝 Enter group description:", msg.Text)
	h.send("a", cmdBack)
	u := h.user("a")
	assert.Equal(t, conversation.StepGroupName, u.State.Step)
	assert.Equal(t, "Trip", u.Progress.Group.Name)
}

func TestGroupWithOnlyCreator(t *testing.T) {
	h := newHarness(t)
	h.seed("a", "alice@x.com", "9000000001")

	h.send("a", cmdCreateGroup)
	h.send("a", "Solo")
	h.send("a", "Just me")
	msg := h.send("a", "nobody@x.com")
	assert.Equal(t, `✅ Group "Solo" created with 1 members!`, msg.Text)
}

func TestAddExpense(t *testing.T) {
	h := newHarness(t)
	alice := h.seed("a", "alice@x.com", "9000000001")

	msg := h.send("a", cmdAddExpense)
	assert.Equal(t, "💰 Select currency:", msg.Text)
	assert.Equal(t, [][]string{{"INR", "USD"}, {"EUR", "GBP"}, {cmdBack, cmdMain}}, msg.Keyboard)

	msg = h.send("a", "eur")
	assert.Equal(t, "💵 Enter amount:", msg.Text)
	msg = h.send("a", "abc")
	assert.Equal(t, "⚠️ Invalid amount", msg.Text)
	h.send("a", "12.5")
	msg = h.send("a", "Coffee")
	assert.Equal(t, [][]string{{"Food", "Transport", "Housing"}, {"Entertainment", "Utilities", "Other"}, {cmdBack, cmdMain}}, msg.Keyboard)

	msg = h.send("a", "food")
	assert.Equal(t, "✅ Expense of 12.50 EUR recorded!", msg.Text)

	u := h.user("a")
	require.Len(t, u.Transactions, 1)
	tx, ok := h.store.Transaction(u.Transactions[0])
	require.True(t, ok)
	assert.Equal(t, alice.ID, tx.UserID)
	assert.Equal(t, models.TypeExpense, tx.Type)
	assert.Equal(t, models.SplitPersonal, tx.SplitType)
	assert.Equal(t, "Food", tx.Category)
	assert.Equal(t, "Coffee", tx.Description)
	assert.True(t, tx.Date.Equal(h.now))
}

func TestAddIncome(t *testing.T) {
	h := newHarness(t)
	h.seed("a", "alice@x.com", "9000000001")

	for _, in := range []string{cmdAddIncome, "INR", "50,000", "March salary"} {
		h.send("a", in)
	}
	msg := h.send("a", "Food")
	assert.Equal(t, "⚠️ Invalid category", msg.Text)
	assert.Equal(t, [][]string{{"Salary", "Business", "Investment"}, {"Gift", "Other"}, {cmdBack, cmdMain}}, msg.Keyboard)

	msg = h.send("a", "Salary")
	assert.Equal(t, "✅ Income of 50000.00 INR recorded!", msg.Text)
	tx, ok := h.store.Transaction(h.user("a").Transactions[0])
	require.True(t, ok)
	assert.Equal(t, models.TypeIncome, tx.Type)
}

func TestEntryBack(t *testing.T) {
	h := newHarness(t)
	h.seed("a", "alice@x.com", "9000000001")

	for _, in := range []string{cmdAddIncome, "GBP", "10", "Gift card"} {
		h.send("a", in)
	}
	msg := h.send("a", cmdBack)
	assert.Equal(t, "📝 Enter description:", msg.Text)
	u := h.user("a")
	assert.Equal(t, models.TypeIncome, u.Progress.Entry.Type)
	assert.Equal(t, "GBP", u.Progress.Entry.Currency)

	h.send("a", cmdBack)
	h.send("a", cmdBack)
	assert.Equal(t, conversation.StepEntryCurrency, h.user("a").State.Step)
	msg = h.send("a", cmdBack)
	assert.Equal(t, "🏠 Main Menu:", msg.Text)
	assert.True(t, h.user("a").State.IsZero())
}

// addTx stores a personal expense of owner dated at.
func (h *harness) addTx(owner *models.User, amount int64, at time.Time, description string) *models.Transaction {
	h.t.Helper()
	tx := &models.Transaction{
		UserID:      owner.ID,
		Amount:      decimal.NewFromInt(amount),
		Currency:    "INR",
		Category:    "Food",
		Description: description,
		Type:        models.TypeExpense,
		SplitType:   models.SplitPersonal,
		Date:        at,
	}
	require.NoError(h.t, h.store.SaveTransaction(h.ctx, tx))
	return tx
}

func TestBrowseSinglePage(t *testing.T) {
	h := newHarness(t)
	alice := h.seed("a", "alice@x.com", "9000000001")
	h.addTx(alice, 120, time.Date(2026, time.February, 3, 12, 0, 0, 0, time.UTC), "Groceries")
	h.addTx(alice, 45, time.Date(2026, time.February, 20, 12, 0, 0, 0, time.UTC), "Cinema")
	h.addTx(alice, 999, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), "Too new")

	msg := h.send("a", cmdViewTransactions)
	assert.Equal(t, "📅 Select time period:", msg.Text)
	assert.Equal(t, [][]string{{"Last Month", "Last 6 Months"}, {"Last Year", "All Time"}, {cmdBack, cmdMain}}, msg.Keyboard)

	first := h.send("a", "last month")
	assert.True(t, strings.HasPrefix(first.Text, "📜 Transactions (Last Month - Page 1/1):"), first.Text)
	assert.Contains(t, first.Text, "1. 20 Feb 2026\n   Cinema\n   Amount: 45.00 INR\n   Type: Expense (Food)")
	assert.Contains(t, first.Text, "2. 03 Feb 2026")
	assert.NotContains(t, first.Text, "Too new")
	assert.Equal(t, listKeyboard(), first.Keyboard)

	again := h.send("a", labelNext)
	assert.Equal(t, first.Text, again.Text)
	u := h.user("a")
	assert.Equal(t, conversation.StepBrowseList, u.State.Step)
	assert.Equal(t, 1, u.Progress.Browse.CurrentPage)
	assert.Equal(t, 1, u.Progress.Browse.TotalPages)
}

func TestBrowsePaging(t *testing.T) {
	h := newHarness(t)
	alice := h.seed("a", "alice@x.com", "9000000001")
	bob := h.seed("b", "bob@x.com", "9000000002")
	g := h.seedGroup("Flatmates", alice, bob)
	for i := 0; i < 6; i++ {
		h.addTx(alice, int64(10+i), h.now.AddDate(0, 0, -i-1), fmt.Sprintf("Item %d", i))
	}
	shared := h.addTx(alice, 300, h.now.AddDate(0, 0, -30), "Rent")
	shared.GroupID = g.ID
	shared.SplitType = models.SplitGroup
	require.NoError(t, h.store.SaveTransaction(h.ctx, shared))

	h.send("a", cmdViewTransactions)
	msg := h.send("a", "All Time")
	assert.Contains(t, msg.Text, "Page 1/2")
	assert.Contains(t, msg.Text, "5. ")
	assert.NotContains(t, msg.Text, "6. ")

	msg = h.send("a", labelNext)
	assert.Contains(t, msg.Text, "Page 2/2")
	assert.Contains(t, msg.Text, "6. ")
	assert.Contains(t, msg.Text, "7. ")
	assert.Contains(t, msg.Text, "Group: Flatmates")

	msg = h.send("a", "next")
	assert.Contains(t, msg.Text, "Page 2/2")

	msg = h.send("a", labelPrev)
	assert.Contains(t, msg.Text, "Page 1/2")
	msg = h.send("a", "prev")
	assert.Contains(t, msg.Text, "Page 1/2")

	msg = h.send("a", "more please")
	assert.Equal(t, "⚠️ Please use the provided buttons for navigation.", msg.Text)

	msg = h.send("a", cmdBack)
	assert.Equal(t, "📅 Select time period:", msg.Text)
	assert.Equal(t, conversation.StepBrowsePeriod, h.user("a").State.Step)
}

func TestBrowseEmptyPeriod(t *testing.T) {
	h := newHarness(t)
	h.seed("a", "alice@x.com", "9000000001")

	h.send("a", cmdViewTransactions)
	msg := h.send("a", "Decade")
	assert.Equal(t, "⚠️ Invalid period selection. Please use the buttons.", msg.Text)

	msg = h.send("a", "Last Year")
	assert.Equal(t, "📭 No transactions found for selected period.", msg.Text)
	assert.True(t, h.user("a").State.IsZero())
}

func TestPeriodRange(t *testing.T) {
	now := time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		period     string
		start, end time.Time
	}{
		{period: periodLastMonth, start: day(2026, time.February, 1), end: day(2026, time.March, 1)},
		{period: periodLast6Months, start: day(2025, time.September, 1), end: day(2026, time.March, 16)},
		{period: periodLastYear, start: day(2025, time.January, 1), end: day(2027, time.January, 1)},
		{period: periodAllTime, start: time.Unix(0, 0).UTC(), end: day(2026, time.March, 16)},
	}
	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			start, end, ok := periodRange(tt.period, now)
			require.True(t, ok)
			assert.True(t, tt.start.Equal(start), start)
			assert.True(t, tt.end.Equal(end), end)
		})
	}

	_, _, ok := periodRange("Decade", now)
	assert.False(t, ok)

	start, _, _ := periodRange(periodLastMonth, time.Date(2026, time.January, 31, 23, 0, 0, 0, time.UTC))
	assert.True(t, day(2025, time.December, 1).Equal(start), start)
}

func TestBudgetAdvice(t *testing.T) {
	h := newHarness(t)
	alice := h.seed("a", "alice@x.com", "9000000001")
	h.addTx(alice, 250, h.now.AddDate(0, 0, -2), "Takeaway")
	h.advisor.Reply = "**Cut** `takeaway` *twice* a week"

	msg := h.send("a", cmdBudgetAdvice)
	assert.Contains(t, msg.Text, "What financial advice would you like today?")
	assert.Equal(t, [][]string{{cmdStop, cmdMain}}, msg.Keyboard)

	msg = h.send("a", "Where am I overspending?")
	assert.Equal(t, "Cut takeaway twice a week", msg.Text)

	calls := h.advisor.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Where am I overspending?", calls[0].Message)
	assert.Empty(t, calls[0].History)
	assert.Contains(t, calls[0].System, "(INR)")
	assert.Contains(t, calls[0].System, "# USER\nUser a")
	assert.Contains(t, calls[0].System, "# USER TRANSACTIONS\nDate: 13 Mar 2026\nType: EXPENSE - Food\nAmount: 250.00 INR\nNote: Takeaway")

	h.send("a", "And savings?")
	calls = h.advisor.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, []conversation.Turn{
		{Role: "user", Text: "Where am I overspending?"},
		{Role: "model", Text: "Cut takeaway twice a week"},
	}, calls[1].History)

	msg = h.send("a", "/teleport")
	assert.Equal(t, "⚠️ Unknown command", msg.Text)
	assert.Equal(t, conversation.StepAdvice, h.user("a").State.Step)

	msg = h.send("a", "/STOP")
	assert.Equal(t, "🛑 Budget advice session ended.", msg.Text)
	assert.True(t, h.user("a").State.IsZero())
	assert.Len(t, h.advisor.Calls(), 2)
}

func TestBudgetAdviceHistoryIsCapped(t *testing.T) {
	h := newHarness(t)
	h.seed("a", "alice@x.com", "9000000001")

	h.send("a", cmdBudgetAdvice)
	for i := 0; i < adviceHistoryLimit; i++ {
		h.send("a", fmt.Sprintf("question %d", i))
	}
	history := h.user("a").Progress.Advice.History
	require.Len(t, history, adviceHistoryLimit)
	assert.Equal(t, "question 10", history[0].Text)
	assert.Equal(t, "model", history[len(history)-1].Role)
}

func TestBudgetAdviceErrorEndsSession(t *testing.T) {
	h := newHarness(t)
	h.seed("a", "alice@x.com", "9000000001")
	h.advisor.Err = fmt.Errorf("quota exceeded")

	h.send("a", cmdBudgetAdvice)
	msg := h.send("a", "Help me save")
	assert.Equal(t, "❌ Error processing your request. Session ended.", msg.Text)
	require.Len(t, h.advisor.Calls(), 1)
	assert.Contains(t, h.advisor.Calls()[0].System, "No transactions recorded yet.")
	assert.Equal(t, mainKeyboard(), msg.Keyboard)
	assert.True(t, h.user("a").State.IsZero())
}

func TestBudgetAdviceUnavailable(t *testing.T) {
	c := &adviceController{}
	u := &models.User{}
	resp, err := c.Start(context.Background(), u)
	require.NoError(t, err)
	require.Len(t, resp.Replies, 1)
	assert.Equal(t, "⚠️ Budget advice is not available right now.", resp.Replies[0].Text)
	assert.True(t, u.State.IsZero())
}

func TestFormatTransactions(t *testing.T) {
	assert.Equal(t, "No transactions recorded yet.", formatTransactions(nil))

	got := formatTransactions([]*models.Transaction{
		{Date: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), Type: models.TypeIncome, Category: "Salary", Amount: decimal.NewFromInt(5000), Currency: "USD"},
		{Date: time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC), Type: models.TypeExpense, Category: "Food & Dining", Amount: decimal.NewFromInt(90), Currency: "USD", Description: "Dinner", SplitType: models.SplitGroup},
	})
	assert.Equal(t, "Date: 01 Mar 2026\nType: INCOME - Salary\nAmount: 5000.00 USD\n\n"+
		"Date: 02 Mar 2026\nType: EXPENSE - Food & Dining\nAmount: 90.00 USD\nNote: Dinner\nShared expense", got)
}
