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

const pageSize = 5

// Browsing periods.
const (
	periodLastMonth   = "Last Month"
	periodLast6Months = "Last 6 Months"
	periodLastYear    = "Last Year"
	periodAllTime     = "All Time"
)

var periods = []string{periodLastMonth, periodLast6Months, periodLastYear, periodAllTime}

const (
	labelPrev = "⬅️ Previous"
	labelNext = "➡️ Next"
)

// periodRange returns the [start, end) range a period covers at now.
func periodRange(period string, now time.Time) (time.Time, time.Time, bool) {
	loc := now.Location()
	y, m, d := now.Date()
	thisMonth := time.Date(y, m, 1, 0, 0, 0, 0, loc)
	tomorrow := time.Date(y, m, d+1, 0, 0, 0, 0, loc)

	switch period {
	case periodLastMonth:
		return thisMonth.AddDate(0, -1, 0), thisMonth, true
	case periodLast6Months:
		return thisMonth.AddDate(0, -6, 0), tomorrow, true
	case periodLastYear:
		return time.Date(y-1, time.January, 1, 0, 0, 0, 0, loc), time.Date(y+1, time.January, 1, 0, 0, 0, 0, loc), true
	case periodAllTime:
		return time.Unix(0, 0).In(loc), tomorrow, true
	}
	return time.Time{}, time.Time{}, false
}

// browseController pages through the user's transactions in a period.
type browseController struct {
	store store.Store
	now   func() time.Time
}

func (c *browseController) Start(_ context.Context, u *models.User) (Response, error) {
	return c.periodMenu(u), nil
}

func (c *browseController) HandleInput(ctx context.Context, u *models.User, text string) (Response, error) {
	switch u.State.Step {
	case conversation.StepBrowsePeriod:
		period, ok := matchOption(periods, text)
		if !ok {
			return reply("⚠️ Invalid period selection. Please use the buttons.", periodKeyboard()), nil
		}
		start, end, _ := periodRange(period, c.now())
		draft := &conversation.BrowseDraft{Period: period, Start: start, End: end, CurrentPage: 1}
		u.Enter(conversation.FlowBrowse, conversation.StepBrowseList, conversation.Progress{Browse: draft})
		return c.page(ctx, u, draft)

	case conversation.StepBrowseList:
		draft := u.Progress.Browse
		if draft == nil {
			return c.periodMenu(u), nil
		}
		switch lower := strings.ToLower(text); {
		case strings.Contains(lower, "next"):
			if draft.CurrentPage < draft.TotalPages {
				draft.CurrentPage++
			}
		case strings.Contains(lower, "prev"):
			if draft.CurrentPage > 1 {
				draft.CurrentPage--
			}
		default:
			return reply("⚠️ Please use the provided buttons for navigation.", listKeyboard()), nil
		}
		return c.page(ctx, u, draft)
	}
	return Response{}, fmt.Errorf("unhandled browse step %q", u.State.Step)
}

func (c *browseController) HandleBack(_ context.Context, u *models.User) (Response, error) {
	if u.State.Step == conversation.StepBrowseList {
		return c.periodMenu(u), nil
	}
	u.ResetState()
	return reply("🏠 Main Menu:", mainKeyboard()), nil
}

func (c *browseController) periodMenu(u *models.User) Response {
	u.Enter(conversation.FlowBrowse, conversation.StepBrowsePeriod, conversation.Progress{})
	return reply("📅 Select time period:", periodKeyboard())
}

// page shows the current page of draft. An empty period ends the flow.
func (c *browseController) page(ctx context.Context, u *models.User, draft *conversation.BrowseDraft) (Response, error) {
	if draft.CurrentPage < 1 {
		draft.CurrentPage = 1
	}
	offset := (draft.CurrentPage - 1) * pageSize
	txs, total, err := c.store.FindTransactionsByOwnerAndDateRange(ctx, u.ID, draft.Start, draft.End, offset, pageSize)
	if err != nil {
		return Response{}, upstream("❌ Failed to fetch transactions. Please try again.", err)
	}
	totalPages := (total + pageSize - 1) / pageSize
	if len(txs) == 0 && total > 0 && draft.CurrentPage > totalPages {
		// Fewer matches than when the page was chosen; show the last page.
		draft.CurrentPage = totalPages
		return c.page(ctx, u, draft)
	}
	if len(txs) == 0 {
		u.ResetState()
		return reply("📭 No transactions found for selected period.", mainKeyboard()), nil
	}
	draft.TotalPages = totalPages

	groups := map[string]string{}
	var b strings.Builder
	fmt.Fprintf(&b, "📜 Transactions (%s - Page %d/%d):\n\n", draft.Period, draft.CurrentPage, draft.TotalPages)
	for i, t := range txs {
		fmt.Fprintf(&b, "%d. %s\n", offset+i+1, t.Date.Format("02 Jan 2006"))
		if t.Description != "" {
			fmt.Fprintf(&b, "   %s\n", t.Description)
		}
		fmt.Fprintf(&b, "   Amount: %s %s\n", t.Amount.StringFixed(2), t.Currency)
		fmt.Fprintf(&b, "   Type: %s (%s)", typeLabel(t.Type), t.Category)
		if t.GroupID != "" {
			if _, ok := groups[t.GroupID]; !ok {
				groups[t.GroupID] = c.groupName(ctx, t.GroupID)
			}
			fmt.Fprintf(&b, "\n   Group: %s", groups[t.GroupID])
		}
		b.WriteString("\n\n")
	}

	u.Enter(conversation.FlowBrowse, conversation.StepBrowseList, conversation.Progress{Browse: draft})
	return reply(strings.TrimRight(b.String(), "\n"), listKeyboard()), nil
}

func (c *browseController) groupName(ctx context.Context, id string) string {
	g, err := c.store.FindGroupByID(ctx, id)
	if err != nil {
		return "Unknown group"
	}
	return g.Name
}

func typeLabel(typ string) string {
	switch typ {
	case models.TypeIncome:
		return "Income"
	case models.TypeExpense:
		return "Expense"
	}
	return typ
}

func periodKeyboard() [][]string {
	return columns(periods, 2, cmdBack, cmdMain)
}

func listKeyboard() [][]string {
	return [][]string{{labelPrev, labelNext}, {cmdBack, cmdMain}}
}
