// Package splitcalc turns a shared expense into per-participant shares and
// checks user supplied shares against the expense total.
package splitcalc

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Type is how an expense is divided.
type Type string

const (
	Equal      Type = "EQUAL"
	Percentage Type = "PERCENTAGE"
	Exact      Type = "EXACT"
)

// Types lists the split types in the order they are offered to users.
var Types = []Type{Equal, Percentage, Exact}

// ParseType matches s case-insensitively against the known split types.
func ParseType(s string) (Type, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, t := range Types {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Tolerance is the largest accepted gap between a share sum and its target.
var Tolerance = decimal.New(1, -2)

var hundred = decimal.NewFromInt(100)

// Validation is the outcome of ValidateShares.
type Validation struct {
	Valid  bool
	Reason string
}

// EqualShares divides total into count shares rounded to cents. The
// rounding residual goes to the first share so the shares always add up to
// total rounded to two decimals.
func EqualShares(total decimal.Decimal, count int) ([]decimal.Decimal, error) {
	if count < 1 {
		return nil, fmt.Errorf("participant count must be positive, got %d", count)
	}

	target := total.Round(2)
	each := total.Div(decimal.NewFromInt(int64(count))).Round(2)

	shares := make([]decimal.Decimal, count)
	sum := decimal.Zero
	for i := range shares {
		shares[i] = each
		sum = sum.Add(each)
	}

	residual := target.Sub(sum).Round(2)
	if !residual.IsZero() {
		shares[0] = shares[0].Add(residual).Round(2)
	}
	return shares, nil
}

// ValidateShares checks user supplied shares for a split of total.
// Equal splits are always valid since their shares are computed.
func ValidateShares(t Type, shares []decimal.Decimal, total decimal.Decimal) Validation {
	sum := Sum(shares)
	switch t {
	case Percentage:
		if sum.Sub(hundred).Abs().LessThan(Tolerance) {
			return Validation{Valid: true}
		}
		return Validation{Reason: fmt.Sprintf("Total must be 100%% (Current: %s%%)", sum.StringFixed(2))}
	case Exact:
		if sum.Sub(total).Abs().LessThan(Tolerance) {
			return Validation{Valid: true}
		}
		return Validation{Reason: fmt.Sprintf("Sum must equal %s (Current: %s)", total.String(), sum.StringFixed(2))}
	default:
		return Validation{Valid: true}
	}
}

// Amounts converts shares into the money each participant owes. Percentage
// shares are applied to total and rounded to cents; other shares already
// are amounts.
func Amounts(t Type, shares []decimal.Decimal, total decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(shares))
	for i, s := range shares {
		if t == Percentage {
			out[i] = total.Mul(s).Div(hundred).Round(2)
			continue
		}
		out[i] = s
	}
	return out
}

// Sum adds shares.
func Sum(shares []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, s := range shares {
		sum = sum.Add(s)
	}
	return sum
}
