package models

import (
	"strings"
	"time"

	"github.com/oatsaysai/budgetbuddy/internal/conversation"
	"github.com/oatsaysai/budgetbuddy/internal/splitcalc"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewID returns a fresh entity id (24 hex characters).
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// IsID reports whether s is shaped like an entity id.
func IsID(s string) bool {
	return primitive.IsValidObjectID(s)
}

// User statuses
const (
	StatusActive    = "active"
	StatusLocked    = "locked"
	StatusSuspended = "suspended"
)

// User represents a user in the system
type User struct {
	ID                 string                `json:"id"`
	ChatID             string                `json:"chat_id"` // Chat handle of the bound session, empty after logout
	Name               string                `json:"name"`
	Email              string                `json:"email,omitempty"`
	Mobile             string                `json:"mobile,omitempty"`
	IsVerified         bool                  `json:"is_verified"`
	Status             string                `json:"status"`
	CurrencyPreference string                `json:"currency_preference,omitempty"`
	State              conversation.State    `json:"-"`
	Progress           conversation.Progress `json:"-"`
	Transactions       []string              `json:"transactions,omitempty"`
	Splits             []string              `json:"splits,omitempty"`
	Groups             []string              `json:"groups,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

// ResetState leaves the active flow and drops its progress.
func (u *User) ResetState() {
	u.State = conversation.State{}
	u.Progress = conversation.Progress{}
}

// Enter moves the user to step s of flow f and replaces the progress.
func (u *User) Enter(f conversation.Flow, s conversation.Step, p conversation.Progress) {
	u.State = conversation.At(f, s)
	u.Progress = p
}

// Contact is how the user is shown to others: email, then mobile, then name.
func (u *User) Contact() string {
	switch {
	case u.Email != "":
		return u.Email
	case u.Mobile != "":
		return u.Mobile
	default:
		return u.Name
	}
}

// IsLocked reports whether the account may not authenticate.
func (u *User) IsLocked() bool {
	return u.Status == StatusLocked
}

// Group represents a set of users sharing expenses
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Members     []string  `json:"members"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Group field limits
const (
	MaxGroupNameLength        = 50
	MaxGroupDescriptionLength = 200
)

// HasMember reports whether userID belongs to the group.
func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// AddMember appends userID unless it is already a member.
func (g *Group) AddMember(userID string) {
	if !g.HasMember(userID) {
		g.Members = append(g.Members, userID)
	}
}

// Transaction types
const (
	TypeIncome  = "income"
	TypeExpense = "expense"
)

// Transaction split types
const (
	SplitPersonal = "personal"
	SplitGroup    = "group"
)

// Transaction represents a single income or expense record
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Category    string          `json:"category"`
	Description string          `json:"description,omitempty"`
	Type        string          `json:"type"`
	SplitType   string          `json:"split_type"`
	GroupID     string          `json:"group_id,omitempty"`
	Date        time.Time       `json:"date"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Participant is one party of a split
type Participant struct {
	UserID           string          `json:"user_id"`
	Share            decimal.Decimal `json:"share"`
	Settled          bool            `json:"settled"`
	SettlementMethod string          `json:"settlement_method,omitempty"`
}

// Split records how a transaction is divided
type Split struct {
	ID            string         `json:"id"`
	TransactionID string         `json:"transaction_id"`
	PaidBy        string         `json:"paid_by"`
	GroupID       string         `json:"group_id,omitempty"`
	SplitType     splitcalc.Type `json:"split_type"`
	Participants  []Participant  `json:"participants"`
	CreatedAt     time.Time      `json:"created_at"`
}

// OneTimeCode is an emailed verification code
type OneTimeCode struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

// OneTimeCodeTTL is how long a one-time code stays valid.
const OneTimeCodeTTL = 600 * time.Second

// Expired reports whether the code is older than OneTimeCodeTTL at now.
func (c *OneTimeCode) Expired(now time.Time) bool {
	return now.Sub(c.CreatedAt) > OneTimeCodeTTL
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
