package conversation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oatsaysai/budgetbuddy/internal/splitcalc"
	"github.com/shopspring/decimal"
)

// Progress is the in-progress data of the active flow. At most one member
// is set, and it must belong to the flow of the user's State.
type Progress struct {
	Auth   *AuthDraft
	Group  *GroupDraft
	Entry  *EntryDraft
	Split  *SplitDraft
	Browse *BrowseDraft
	Advice *AdviceDraft
}

// AuthDraft carries the email being registered.
type AuthDraft struct {
	Email string `json:"email,omitempty"`
}

// GroupDraft accumulates a group before it is created.
type GroupDraft struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// EntryDraft accumulates a personal income or expense.
type EntryDraft struct {
	Type        string          `json:"type,omitempty"`
	Currency    string          `json:"currency,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}

// Participant sources of a bill split.
const (
	SourceGroup  = "group"
	SourceManual = "manual"
)

// GroupRef names the group a split is drawn from.
type GroupRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SplitDraft accumulates a bill split. Source records which step produced
// Participants so that back navigation from SHARES can return there.
type SplitDraft struct {
	Currency     string          `json:"currency,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description,omitempty"`
	Category     string          `json:"category,omitempty"`
	SplitType    splitcalc.Type  `json:"splitType,omitempty"`
	Source       string          `json:"source,omitempty"`
	Group        *GroupRef       `json:"group,omitempty"`
	Participants []string        `json:"participants,omitempty"`
}

// BrowseDraft is the selected period and pagination cursor.
type BrowseDraft struct {
	Period      string    `json:"period"`
	Start       time.Time `json:"startDate"`
	End         time.Time `json:"endDate"`
	CurrentPage int       `json:"currentPage"`
	TotalPages  int       `json:"totalPages"`
}

// Turn is one exchange of the advisory chat.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// AdviceDraft holds the advisory chat context.
type AdviceDraft struct {
	History      []Turn `json:"geminiHistory"`
	Transactions string `json:"transactions"`
	Currency     string `json:"currency"`
}

// Flow reports the flow whose draft is set, FlowNone when empty. It panics
// if more than one draft is set; that is a programming error.
func (p Progress) Flow() Flow {
	flows := p.setFlows()
	switch len(flows) {
	case 0:
		return FlowNone
	case 1:
		return flows[0]
	default:
		panic(fmt.Sprintf("conversation: progress has drafts for %v", flows))
	}
}

// IsZero reports whether no draft is set.
func (p Progress) IsZero() bool {
	return len(p.setFlows()) == 0
}

func (p Progress) setFlows() []Flow {
	var flows []Flow
	if p.Auth != nil {
		flows = append(flows, FlowAuth)
	}
	if p.Group != nil {
		flows = append(flows, FlowGroup)
	}
	if p.Entry != nil {
		flows = append(flows, FlowTransaction)
	}
	if p.Split != nil {
		flows = append(flows, FlowSplit)
	}
	if p.Browse != nil {
		flows = append(flows, FlowBrowse)
	}
	if p.Advice != nil {
		flows = append(flows, FlowAdvice)
	}
	return flows
}

func (p Progress) draft() any {
	switch p.Flow() {
	case FlowAuth:
		return p.Auth
	case FlowGroup:
		return p.Group
	case FlowTransaction:
		return p.Entry
	case FlowSplit:
		return p.Split
	case FlowBrowse:
		return p.Browse
	case FlowAdvice:
		return p.Advice
	}
	return nil
}

// EncodeProgress renders p as the flat JSON object stored next to the
// state string. An empty progress encodes as "{}".
func EncodeProgress(p Progress) ([]byte, error) {
	if len(p.setFlows()) > 1 {
		return nil, fmt.Errorf("progress has drafts for %v", p.setFlows())
	}
	d := p.draft()
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

// DecodeProgress reads the stored JSON object for the given flow. Data for
// an unknown or empty flow decodes to an empty Progress.
func DecodeProgress(flow Flow, raw []byte) (Progress, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("{}")) || bytes.Equal(raw, []byte("null")) {
		return Progress{}, nil
	}

	var p Progress
	var err error
	switch flow {
	case FlowAuth:
		p.Auth = &AuthDraft{}
		err = json.Unmarshal(raw, p.Auth)
	case FlowGroup:
		p.Group = &GroupDraft{}
		err = json.Unmarshal(raw, p.Group)
	case FlowTransaction:
		p.Entry = &EntryDraft{}
		err = json.Unmarshal(raw, p.Entry)
	case FlowSplit:
		p.Split = &SplitDraft{}
		if err = json.Unmarshal(raw, p.Split); err == nil {
			err = p.Split.validate()
		}
	case FlowBrowse:
		p.Browse = &BrowseDraft{}
		if err = json.Unmarshal(raw, p.Browse); err == nil {
			err = p.Browse.validate()
		}
	case FlowAdvice:
		p.Advice = &AdviceDraft{}
		err = json.Unmarshal(raw, p.Advice)
	default:
		return Progress{}, nil
	}
	if err != nil {
		return Progress{}, fmt.Errorf("decode %s progress: %w", flow, err)
	}
	return p, nil
}

func (d *SplitDraft) validate() error {
	if d.Amount.IsNegative() {
		return fmt.Errorf("negative amount %s", d.Amount)
	}
	if d.SplitType != "" {
		if _, ok := splitcalc.ParseType(string(d.SplitType)); !ok {
			return fmt.Errorf("unknown split type %q", d.SplitType)
		}
	}
	switch d.Source {
	case "", SourceGroup, SourceManual:
	default:
		return fmt.Errorf("unknown participant source %q", d.Source)
	}
	return nil
}

func (d *BrowseDraft) validate() error {
	if d.CurrentPage < 0 || d.TotalPages < 0 {
		return fmt.Errorf("negative page cursor %d/%d", d.CurrentPage, d.TotalPages)
	}
	if !d.End.IsZero() && d.End.Before(d.Start) {
		return fmt.Errorf("period ends before it starts")
	}
	return nil
}

// Clone returns a deep copy of p made through its stored form.
func (p Progress) Clone() (Progress, error) {
	raw, err := EncodeProgress(p)
	if err != nil {
		return Progress{}, err
	}
	return DecodeProgress(p.Flow(), raw)
}
