package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanUTF8(t *testing.T) {
	cleaned, changed := CleanUTF8("plain")
	assert.False(t, changed)
	assert.Equal(t, "plain", cleaned)

	cleaned, changed = CleanUTF8("a\x00b\xffc")
	assert.True(t, changed)
	assert.Equal(t, "abc", cleaned)
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "Hammer", want: "Hammer"},
		{input: "  Hammer   500g \n", want: "Hammer 500g"},
		{input: "Młotek\tstolarski", want: "Młotek stolarski"},
		{input: "Bad\u0080control\x07", want: "Badcontrol"},
		{input: "   ", want: ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanText(tt.input), tt.input)
	}
}

func TestCleanMultiline(t *testing.T) {
	assert.Equal(t, "line one\nline two", CleanMultiline("  line one\r\nline two\x00 "))
}
