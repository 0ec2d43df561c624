package multitoken

import (
	"os"

	"github.com/hashicorp/go-hclog"
)

// NewLogger returns an hclog logger named after the package. An
// hclog.Logger satisfies Logger as is.
func NewLogger(name, level string) Logger {
	if name == "" {
		name = "multitoken"
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  hclog.LevelFromString(level),
		Output: os.Stderr,
	})
}

func defaultLogger() Logger {
	return NewLogger("multitoken", "info")
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defaultLogger()
	}
	return l
}

var _ Logger = hclog.NewNullLogger()
