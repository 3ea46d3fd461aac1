package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanAmount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain", input: "1234.56", expected: "1234.56"},
		{name: "thousands commas", input: "1,234,567.89", expected: "1234567.89"},
		{name: "indonesian grouping dots", input: "1.234.567", expected: "1234567"},
		{name: "european decimal comma", input: "1.234,56", expected: "1234.56"},
		{name: "lone decimal comma", input: "870,00", expected: "870"},
		{name: "lone grouping comma", input: "1,234", expected: "1234"},
		{name: "currency prefix", input: "Rp 1.500.000", expected: "1500000"},
		{name: "dollar prefix", input: "$870.00", expected: "870"},
		{name: "negative sign", input: "-130.00", expected: "-130"},
		{name: "accounting parens", input: "(1,234.56)", expected: "-1234.56"},
		{name: "empty", input: "", expected: "0"},
		{name: "bare dash", input: "-", expected: "0"},
		{name: "double dash", input: "--", expected: "0"},
		{name: "garbage", input: "n/a", expected: "0"},
		{name: "whitespace padded", input: "  250.75  ", expected: "250.75"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cleanAmount(tt.input)
			assert.Equal(t, tt.expected, got.String())
		})
	}
}

func TestNormalizeCell(t *testing.T) {
	assert.Equal(t, "Payout Amount", normalizeCell("  Payout  Amount  "))
	assert.Equal(t, "", normalizeCell("   "))
	assert.Equal(t, "a b c", normalizeCell("a\tb\nc"))
}

func TestCellAt(t *testing.T) {
	row := []string{"a", " b ", "c"}
	assert.Equal(t, "b", cellAt(row, 1))
	assert.Equal(t, "", cellAt(row, 5))
	assert.Equal(t, "", cellAt(row, -1))
}

func TestAllEmptyRow(t *testing.T) {
	assert.True(t, allEmptyRow([]string{"", "  ", ""}))
	assert.False(t, allEmptyRow([]string{"", "x"}))
}
