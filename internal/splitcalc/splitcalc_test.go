package splitcalc

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decimals(vals ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = d(v)
	}
	return out
}

func TestEqualShares(t *testing.T) {
	tests := []struct {
		name  string
		total string
		count int
		want  []string
	}{
		{name: "even split", total: "300", count: 3, want: []string{"100", "100", "100"}},
		{name: "residual to first", total: "100", count: 3, want: []string{"33.34", "33.33", "33.33"}},
		{name: "negative residual to first", total: "200", count: 3, want: []string{"66.66", "66.67", "66.67"}},
		{name: "single participant", total: "12.345", count: 1, want: []string{"12.35"}},
		{name: "half cent rounds up", total: "0.05", count: 2, want: []string{"0.02", "0.03"}},
		{name: "ten", total: "10", count: 6, want: []string{"1.65", "1.67", "1.67", "1.67", "1.67", "1.67"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares, err := EqualShares(d(tt.total), tt.count)
			require.NoError(t, err)
			require.Len(t, shares, len(tt.want))
			for i, w := range tt.want {
				assert.Truef(t, d(w).Equal(shares[i]), "share %d = %s, want %s", i, shares[i], w)
			}
		})
	}
}

func TestEqualSharesReconstituteTotal(t *testing.T) {
	totals := []string{"0.01", "0.1", "1", "9.99", "10", "33.333", "100", "299.995", "1000.01", "12345.67"}
	for _, total := range totals {
		for count := 1; count <= 13; count++ {
			shares, err := EqualShares(d(total), count)
			require.NoError(t, err)
			assert.Truef(t, Sum(shares).Equal(d(total).Round(2)),
				"total %s over %d: sum %s", total, count, Sum(shares))
			for _, s := range shares {
				assert.Truef(t, s.Round(2).Equal(s), "share %s has sub-cent digits", s)
			}
		}
	}
}

func TestEqualSharesRejectsEmpty(t *testing.T) {
	_, err := EqualShares(d("10"), 0)
	assert.Error(t, err)
	_, err = EqualShares(d("10"), -2)
	assert.Error(t, err)
}

func TestValidateShares(t *testing.T) {
	tests := []struct {
		name   string
		typ    Type
		shares []string
		total  string
		valid  bool
		reason string
	}{
		{name: "percentage exact", typ: Percentage, shares: []string{"50", "30", "20"}, total: "80", valid: true},
		{name: "percentage within tolerance", typ: Percentage, shares: []string{"33.33", "33.33", "33.339"}, total: "80", valid: true},
		{name: "percentage at tolerance", typ: Percentage, shares: []string{"99.99"}, total: "80", reason: "Total must be 100% (Current: 99.99%)"},
		{name: "percentage over", typ: Percentage, shares: []string{"60", "50"}, total: "80", reason: "Total must be 100% (Current: 110.00%)"},
		{name: "exact matches", typ: Exact, shares: []string{"40", "40", "20"}, total: "100", valid: true},
		{name: "exact short by a cent", typ: Exact, shares: []string{"40", "40", "19.99"}, total: "100", reason: "Sum must equal 100 (Current: 99.99)"},
		{name: "exact tiny float gap", typ: Exact, shares: []string{"33.333", "33.333", "33.333"}, total: "100", valid: true},
		{name: "equal ignores input", typ: Equal, shares: []string{"1"}, total: "100", valid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateShares(tt.typ, decimals(tt.shares...), d(tt.total))
			assert.Equal(t, tt.valid, got.Valid)
			if !tt.valid {
				assert.Equal(t, tt.reason, got.Reason)
			}
		})
	}
}

func TestAmounts(t *testing.T) {
	got := Amounts(Percentage, decimals("50", "25", "25"), d("99.99"))
	assert.True(t, d("50").Equal(got[0]), got[0].String())
	assert.True(t, d("25").Equal(got[1]), got[1].String())

	exact := decimals("10", "20")
	assert.Equal(t, exact, Amounts(Exact, exact, d("30")))
}

func TestParseType(t *testing.T) {
	typ, ok := ParseType(" percentage ")
	assert.True(t, ok)
	assert.Equal(t, Percentage, typ)

	_, ok = ParseType("HALF")
	assert.False(t, ok)
}
