package bot

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Commands
const (
	cmdStart            = "/start"
	cmdMain             = "/main"
	cmdCancel           = "/cancel"
	cmdBack             = "/back"
	cmdLogout           = "/logout"
	cmdProfile          = "/my_profile"
	cmdHelp             = "/help"
	cmdAddExpense       = "/add_expense"
	cmdAddIncome        = "/add_income"
	cmdSplitExpense     = "/split_expense"
	cmdCreateGroup      = "/create_group"
	cmdViewTransactions = "/view_transactions"
	cmdBudgetAdvice     = "/budget_advice"
	cmdStop             = "/stop"
)

func mainKeyboard() [][]string {
	return [][]string{
		{cmdAddExpense, cmdSplitExpense},
		{cmdAddIncome, cmdCreateGroup},
		{cmdViewTransactions, cmdBudgetAdvice},
		{cmdProfile, cmdLogout},
	}
}

func cancelKeyboard() [][]string {
	return [][]string{{cmdBack, cmdMain}}
}

func startKeyboard() [][]string {
	return [][]string{{cmdStart}}
}

// columns lays labels out n per row and appends tail as the last row.
func columns(labels []string, n int, tail ...string) [][]string {
	var rows [][]string
	for i := 0; i < len(labels); i += n {
		end := i + n
		if end > len(labels) {
			end = len(labels)
		}
		rows = append(rows, append([]string(nil), labels[i:end]...))
	}
	if len(tail) > 0 {
		rows = append(rows, tail)
	}
	return rows
}

// Currency is a supported currency code with its symbol.
type Currency struct {
	Code   string
	Symbol string
}

// Label is the keyboard text, e.g. "INR ₹".
func (c Currency) Label() string {
	return c.Code + " " + c.Symbol
}

var currencies = []Currency{
	{Code: "INR", Symbol: "₹"},
	{Code: "USD", Symbol: "$"},
	{Code: "EUR", Symbol: "€"},
	{Code: "GBP", Symbol: "£"},
}

func currencyKeyboard(withSymbols bool) [][]string {
	labels := make([]string, len(currencies))
	for i, c := range currencies {
		if withSymbols {
			labels[i] = c.Label()
		} else {
			labels[i] = c.Code
		}
	}
	return columns(labels, 2, cmdBack, cmdMain)
}

// parseCurrency accepts a code or a keyboard label such as "usd" or "USD $".
func parseCurrency(text string) (string, bool) {
	code := strings.ToUpper(strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			return r
		}
		return -1
	}, text))
	for _, c := range currencies {
		if c.Code == code {
			return code, true
		}
	}
	return "", false
}

// parseAmount reads a positive amount, ignoring thousands separators and
// currency symbols.
func parseAmount(text string) (decimal.Decimal, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '.' || r == '-' {
			return r
		}
		return -1
	}, text)
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	// Round first so nothing below a cent survives as a zero amount.
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return decimal.Zero, false
	}
	return amount, true
}

// matchOption finds the option equal to text, ignoring case and any
// leading emoji of the option.
func matchOption(options []string, text string) (string, bool) {
	want := strings.ToLower(strings.TrimSpace(text))
	if want == "" {
		return "", false
	}
	for _, o := range options {
		if strings.ToLower(o) == want || strings.ToLower(optionName(o)) == want {
			return o, true
		}
	}
	return "", false
}

// optionName drops the emoji prefix of a keyboard label.
func optionName(label string) string {
	return strings.TrimLeftFunc(label, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
