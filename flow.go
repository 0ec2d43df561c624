package multitoken

import (
	"context"

	"github.com/google/uuid"
)

// Flow drives the token lifecycle: login, logout, password reset and
// session management
type Flow struct {
	deps         *handlerDeps
	login        *loginHandler
	logout       *logoutHandler
	revoke       *revokeSessionHandler
	resetRequest *requestPasswordResetHandler
	resetConfirm *confirmPasswordResetHandler
}

type FlowOption func(*handlerDeps)

// WithSubscribers appends subscribers, they are called in order
func WithSubscribers(subscribers ...Subscriber) FlowOption {
	return func(d *handlerDeps) {
		d.notifier.add(subscribers...)
	}
}

func WithLogger(logger Logger) FlowOption {
	return func(d *handlerDeps) {
		if logger != nil {
			d.logger = logger
			d.notifier.logger = logger
		}
	}
}

// WithClock sets the clock used for expiry checks
func WithClock(clock Clock) FlowOption {
	return func(d *handlerDeps) {
		if clock != nil {
			d.now = clock
		}
	}
}

// WithDebug dumps created records at debug level
func WithDebug(debug bool) FlowOption {
	return func(d *handlerDeps) {
		d.debug = debug
	}
}

func NewFlow(repo RepositoryManager, credentials CredentialStore, cfg Config, opts ...FlowOption) *Flow {
	repo.MustValidate()

	if cfg == nil {
		cfg = DefaultOptions()
	}

	logger := defaultLogger()
	deps := &handlerDeps{
		repo:        repo,
		credentials: credentials,
		config:      cfg,
		notifier:    newNotifier(logger),
		logger:      logger,
		now:         defaultClock,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(deps)
		}
	}

	return &Flow{
		deps:         deps,
		login:        &loginHandler{deps},
		logout:       &logoutHandler{deps},
		revoke:       &revokeSessionHandler{deps},
		resetRequest: &requestPasswordResetHandler{deps},
		resetConfirm: &confirmPasswordResetHandler{deps},
	}
}

func (f *Flow) Config() Config {
	return f.deps.config
}

// Login verifies the credentials and mints a new session token
func (f *Flow) Login(ctx context.Context, msg LoginMessage) (*Token, error) {
	var token *Token
	next := msg.OnResponse
	msg.OnResponse = func(resp *LoginResponse) {
		token = resp.Token
		if next != nil {
			next(resp)
		}
	}

	if err := f.login.Execute(ctx, msg); err != nil {
		return nil, err
	}
	return token, nil
}

// Logout revokes the token identified by key for owner
func (f *Flow) Logout(ctx context.Context, key string, owner uuid.UUID) error {
	return f.logout.Execute(ctx, LogoutMessage{Key: key, Owner: owner})
}

// RevokeSession revokes one session of owner by token id
func (f *Flow) RevokeSession(ctx context.Context, id int64, owner uuid.UUID) error {
	return f.revoke.Execute(ctx, RevokeSessionMessage{ID: id, Owner: owner})
}

// ListSessions returns the active session tokens of owner, oldest first
func (f *Flow) ListSessions(ctx context.Context, owner uuid.UUID) ([]*Token, error) {
	if owner == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	return f.deps.repo.Tokens().ListByOwner(ctx, owner)
}

// RequestPasswordReset issues, or reuses, a reset token for every eligible
// account matching the email
func (f *Flow) RequestPasswordReset(ctx context.Context, msg RequestPasswordResetMessage) (*RequestPasswordResetResponse, error) {
	var out *RequestPasswordResetResponse
	next := msg.OnResponse
	msg.OnResponse = func(resp *RequestPasswordResetResponse) {
		out = resp
		if next != nil {
			next(resp)
		}
	}

	if err := f.resetRequest.Execute(ctx, msg); err != nil {
		return nil, err
	}
	return out, nil
}

// ConfirmPasswordReset sets the new password and consumes every reset token
// of the owner
func (f *Flow) ConfirmPasswordReset(ctx context.Context, msg ConfirmPasswordResetMessage) error {
	return f.resetConfirm.Execute(ctx, msg)
}

// PurgeExpiredResetTokens removes reset tokens past the expiry window
func (f *Flow) PurgeExpiredResetTokens(ctx context.Context) (int64, error) {
	return f.deps.repo.ResetTokens().PurgeExpired(ctx, f.deps.now(), f.deps.config.GetResetTokenExpiryHours())
}
