package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		maxLen   int
		expected string
	}{
		{name: "shorter than max", s: "hello", maxLen: 10, expected: "hello"},
		{name: "equal to max", s: "hello", maxLen: 5, expected: "hello"},
		{name: "longer than max", s: "hello world", maxLen: 8, expected: "hello..."},
		{name: "maxLen less than 3", s: "hello", maxLen: 2, expected: "he"},
		{name: "maxLen exactly 3", s: "hello", maxLen: 3, expected: "..."},
		{name: "empty string", s: "", maxLen: 5, expected: ""},
		{name: "maxLen zero", s: "hello", maxLen: 0, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TruncateString(tt.s, tt.maxLen))
		})
	}
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	columns := []Column{
		{Name: "Account", Key: "account"},
		{Name: "Value", Key: "value", Width: 8},
	}
	rows := []map[string]string{
		{"account": "user1", "value": "short"},
		{"account": "token1", "value": "a-very-long-secret"},
	}

	RenderTable(&buf, columns, rows, false)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Account"))
	assert.Contains(t, lines[1], "user1")
	assert.Contains(t, lines[2], "a-ver...")
	assert.NotContains(t, buf.String(), "a-very-long-secret")

	// Columns are aligned
	assert.Equal(t, strings.Index(lines[0], "Value"), strings.Index(lines[2], "a-ver..."))
}
