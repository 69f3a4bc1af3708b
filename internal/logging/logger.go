package logging

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// New returns a logrus logger writing text to w (stderr when nil).
// The level is Warn, or Debug when verbose.
func New(verbose bool, w io.Writer) *logrus.Logger {
	if w == nil {
		w = os.Stderr
	}

	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   verbose,
		TimestampFormat: time.RFC3339Nano,
	})

	level := logrus.WarnLevel
	if verbose {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	return logger
}

// Secret represents a value that should be redacted in logs
type Secret string

// String implements the Stringer interface, always returning a redacted value
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements the GoStringer interface for %#v formatting
func (s Secret) GoString() string {
	return "[REDACTED]"
}
