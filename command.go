package multitoken

import (
	"context"
	"time"
	"unicode/utf8"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// MaxUserAgentLength user agents are truncated to this many bytes
const MaxUserAgentLength = 256

// commandTimeout bounds a single command execution
var commandTimeout = time.Second * 10

// handlerDeps are the collaborators shared by every flow command
type handlerDeps struct {
	repo        RepositoryManager
	credentials CredentialStore
	config      Config
	notifier    *notifier
	logger      Logger
	now         Clock
	debug       bool
}

func (d *handlerDeps) emit(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = d.now()
	}
	d.notifier.emit(ctx, event)
}

// dump logs a payload at debug level, payloads must not carry secrets
func (d *handlerDeps) dump(msg string, payload any) {
	if !d.debug {
		return
	}
	d.logger.Debug(msg, "payload", print.MaybePrettyJSON(payload))
}

func guardContext(ctx context.Context, operation string) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during "+operation).
			WithTextCode(TextCodeOperationCancelled)
	default:
		return nil
	}
}

// truncateUserAgent cuts at a rune boundary so the stored value stays
// valid UTF-8
func truncateUserAgent(ua string) string {
	if len(ua) <= MaxUserAgentLength {
		return ua
	}
	n := MaxUserAgentLength
	for n > 0 && !utf8.RuneStart(ua[n]) {
		n--
	}
	return ua[:n]
}
