package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "INR", want: "INR", ok: true},
		{in: "usd", want: "USD", ok: true},
		{in: "EUR €", want: "EUR", ok: true},
		{in: " gbp £ ", want: "GBP", ok: true},
		{in: "JPY", ok: false},
		{in: "", ok: false},
		{in: "₹", ok: false},
	}
	for _, tt := range tests {
		got, ok := parseCurrency(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "300", want: "300.00", ok: true},
		{in: "12.345", want: "12.35", ok: true},
		{in: "₹1,250.5", want: "1250.50", ok: true},
		{in: "0", ok: false},
		{in: "0.004", ok: false},
		{in: "0.005", want: "0.01", ok: true},
		{in: "-20", ok: false},
		{in: "abc", ok: false},
		{in: "1-2", ok: false},
	}
	for _, tt := range tests {
		got, ok := parseAmount(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got.StringFixed(2), tt.in)
		}
	}
}

func TestMatchOption(t *testing.T) {
	got, ok := matchOption(splitCategories, "🎓 Education")
	assert.True(t, ok)
	assert.Equal(t, "🎓 Education", got)

	got, ok = matchOption(splitCategories, "  gifts & donations ")
	assert.True(t, ok)
	assert.Equal(t, "🎁 Gifts & Donations", got)

	_, ok = matchOption(splitCategories, "Gifts")
	assert.False(t, ok)
	_, ok = matchOption(splitCategories, "")
	assert.False(t, ok)
}

func TestColumns(t *testing.T) {
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}, {"x", "y"}}, columns([]string{"a", "b", "c"}, 2, "x", "y"))
	assert.Equal(t, [][]string{{"a"}}, columns([]string{"a"}, 3))
	assert.Nil(t, columns(nil, 2))
}
