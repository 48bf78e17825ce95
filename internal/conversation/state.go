// Package conversation holds the per-user conversation position (flow and
// step) and the typed data a flow accumulates between message turns.
//
// In memory a position is a State value. The "FLOW:STEP" string form only
// exists at the persistence boundary, see Decode and State.String.
package conversation

import (
	"fmt"
	"strings"
)

// Flow names a multi-step conversation.
type Flow string

const (
	FlowNone        Flow = ""
	FlowAuth        Flow = "AUTH"
	FlowGroup       Flow = "GROUP"
	FlowTransaction Flow = "TRANSACTION"
	FlowSplit       Flow = "SPLIT"
	FlowBrowse      Flow = "VIEW_TRANSACTIONS"
	FlowAdvice      Flow = "GEMINI"
)

// Step is a single state within a flow.
type Step string

// Authentication steps.
const (
	StepAuthInitial    Step = "INITIAL"
	StepRegisterEmail  Step = "REGISTER_EMAIL"
	StepVerifyOTP      Step = "VERIFY_OTP"
	StepRegisterMobile Step = "REGISTER_MOBILE"
	StepLoginOTP       Step = "LOGIN_OTP"
)

// Group-creation steps.
const (
	StepGroupName        Step = "CREATE_NAME"
	StepGroupDescription Step = "CREATE_DESCRIPTION"
	StepGroupMembers     Step = "CREATE_MEMBERS"
)

// Expense/income entry steps.
const (
	StepEntryCurrency    Step = "ADD_CURRENCY"
	StepEntryAmount      Step = "ADD_AMOUNT"
	StepEntryDescription Step = "ADD_DESCRIPTION"
	StepEntryCategory    Step = "ADD_CATEGORY"
)

// Bill-split steps.
const (
	StepSplitCurrency    Step = "CURRENCY"
	StepSplitAmount      Step = "AMOUNT"
	StepSplitDescription Step = "DESCRIPTION"
	StepSplitCategory    Step = "CATEGORY"
	StepSplitType        Step = "SPLIT_TYPE"
	StepSplitSource      Step = "SELECT_SOURCE"
	StepSplitGroupSelect Step = "GROUP_SELECT"
	StepSplitManual      Step = "MANUAL_PARTICIPANTS"
	StepSplitShares      Step = "SHARES"
)

// Transaction-browsing steps.
const (
	StepBrowsePeriod Step = "PERIOD_SELECT"
	StepBrowseList   Step = "LIST"
)

// Advisory-chat steps.
const (
	StepAdvice Step = "ADVICE"
)

var flowSteps = map[Flow][]Step{
	FlowAuth:        {StepAuthInitial, StepRegisterEmail, StepVerifyOTP, StepRegisterMobile, StepLoginOTP},
	FlowGroup:       {StepGroupName, StepGroupDescription, StepGroupMembers},
	FlowTransaction: {StepEntryCurrency, StepEntryAmount, StepEntryDescription, StepEntryCategory},
	FlowSplit: {
		StepSplitCurrency, StepSplitAmount, StepSplitDescription, StepSplitCategory, StepSplitType,
		StepSplitSource, StepSplitGroupSelect, StepSplitManual, StepSplitShares,
	},
	FlowBrowse: {StepBrowsePeriod, StepBrowseList},
	FlowAdvice: {StepAdvice},
}

// Flows returns every known flow.
func Flows() []Flow {
	return []Flow{FlowAuth, FlowGroup, FlowTransaction, FlowSplit, FlowBrowse, FlowAdvice}
}

// Steps returns the steps that belong to f, in forward order.
func Steps(f Flow) []Step {
	return append([]Step(nil), flowSteps[f]...)
}

// State is a position in a conversation. The zero value means "no active flow".
type State struct {
	Flow Flow
	Step Step
}

// At builds the state for step s of flow f.
func At(f Flow, s Step) State {
	return State{Flow: f, Step: s}
}

// IsZero reports whether no flow is active.
func (s State) IsZero() bool {
	return s.Flow == FlowNone && s.Step == ""
}

// String renders the persisted "FLOW:STEP" form.
func (s State) String() string {
	if s.IsZero() {
		return ""
	}
	if s.Step == "" {
		return string(s.Flow)
	}
	return string(s.Flow) + ":" + string(s.Step)
}

// Validate reports whether s is empty or a known step of a known flow.
func (s State) Validate() error {
	if s.IsZero() {
		return nil
	}
	steps, ok := flowSteps[s.Flow]
	if !ok {
		return fmt.Errorf("unknown flow %q", s.Flow)
	}
	for _, st := range steps {
		if st == s.Step {
			return nil
		}
	}
	return fmt.Errorf("unknown step %q for flow %s", s.Step, s.Flow)
}

// Known reports whether Validate succeeds for a non-empty state.
func (s State) Known() bool {
	return !s.IsZero() && s.Validate() == nil
}

// Decode splits a persisted "FLOW:STEP" string. It never fails: unknown
// values are preserved verbatim so that saving the user back does not lose
// them, and callers use Validate or Known to decide how to route.
func Decode(raw string) State {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return State{}
	}
	flow, step, _ := strings.Cut(raw, ":")
	return State{Flow: Flow(flow), Step: Step(step)}
}

// Parse is Decode followed by Validate.
func Parse(raw string) (State, error) {
	s := Decode(raw)
	if err := s.Validate(); err != nil {
		return State{}, err
	}
	return s, nil
}
