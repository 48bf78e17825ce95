package bot

import (
	"errors"
	"fmt"
)

// Kind classifies errors raised by flow controllers.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindInvalidOTP
	KindDuplicateCredential
	KindNotFound
	KindUpstream
	KindAccountLocked
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInvalidOTP:
		return "invalid_otp"
	case KindDuplicateCredential:
		return "duplicate_credential"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	case KindAccountLocked:
		return "account_locked"
	default:
		return "internal"
	}
}

// resets reports whether an error of kind k ends the active flow. The
// other kinds leave the user where they were so they can retry.
func (k Kind) resets() bool {
	switch k {
	case KindValidation, KindInvalidOTP, KindDuplicateCredential, KindNotFound:
		return false
	default:
		return true
	}
}

// Error is a classified controller error. Message is shown to the user;
// Err carries the detail that is only logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, KindInternal when it is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func invalidOTP(msg string) error {
	return &Error{Kind: KindInvalidOTP, Message: msg}
}

func duplicateCredential(msg string) error {
	return &Error{Kind: KindDuplicateCredential, Message: msg}
}

func notFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func accountLocked(msg string) error {
	return &Error{Kind: KindAccountLocked, Message: msg}
}

// upstream wraps a persistence, mail or model failure.
func upstream(msg string, err error) error {
	return &Error{Kind: KindUpstream, Message: msg, Err: err}
}

// userMessage is the text shown for err.
func userMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	switch KindOf(err) {
	case KindInvalidOTP:
		return "⚠️ Invalid/expired code"
	case KindDuplicateCredential:
		return "📢 Credential already exists"
	case KindNotFound:
		return "❌ Not found"
	case KindAccountLocked:
		return "🔒 Account locked"
	default:
		return "❌ Error processing request"
	}
}
