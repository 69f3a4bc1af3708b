package output

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCLIError(t *testing.T) {
	err := NewCLIError(ExitNotFound, "credential not found")
	assert.Equal(t, ExitNotFound, err.ExitCode)
	assert.Equal(t, "credential not found", err.Message)
	assert.Empty(t, err.Hint)
}

func TestCLIErrorError(t *testing.T) {
	err := &CLIError{Message: "something broke"}
	assert.Equal(t, "something broke", err.Error())
}

func TestCLIErrorWithHint(t *testing.T) {
	err := NewCLIError(ExitConfigError, "unknown backend")
	result := err.WithHint("Run: credstash config set backend file")

	// Fluent builder returns same pointer
	assert.Same(t, err, result)
	assert.Equal(t, "Run: credstash config set backend file", err.Hint)
}

func TestCLIErrorImplementsError(t *testing.T) {
	var err error = NewCLIError(ExitGeneral, "test")
	assert.Equal(t, "test", err.Error())
}

func TestReportError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{
			name:     "cli error with hint",
			err:      NewCLIError(ExitStoreError, "keyring locked").WithHint("Unlock your keyring"),
			wantCode: ExitStoreError,
			wantErr:  "error: keyring locked\nhint: Unlock your keyring\n",
		},
		{
			name:     "plain error",
			err:      errors.New("boom"),
			wantCode: ExitGeneral,
			wantErr:  "error: boom\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			code := ReportError(NewWithWriters("plain", &out, &errOut), tt.err)

			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantErr, errOut.String())
			assert.Empty(t, out.String())
		})
	}
}
