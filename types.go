package multitoken

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Logger interface {
	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Identity holds the attributes of an identity the token flows care about
type Identity interface {
	ID() uuid.UUID
	Username() string
	Email() string
	// IsActive reports whether the identity may authenticate
	IsActive() bool
	// IsSuperuser reports privileged accounts, gated by
	// Config.GetEnableSuperuserLogin
	IsSuperuser() bool
	// CanChangePassword is false for externally managed credentials
	CanChangePassword() bool
}

// IdentityProvider ensure we have a store to retrieve auth identity
type IdentityProvider interface {
	// VerifyIdentity must return ErrInvalidCredentials (or ErrIdentityNotFound)
	// when the identifier or password do not match. Any other error is
	// treated as a store fault.
	VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error)
	FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error)
}

// PasswordResetter exposes what the password reset flow needs from the
// credential store
type PasswordResetter interface {
	// FindIdentitiesByEmail matches email case-insensitively
	FindIdentitiesByEmail(ctx context.Context, email string) ([]Identity, error)
	SetPassword(ctx context.Context, id uuid.UUID, password string) error
}

// CredentialStore is the external collaborator holding identities
type CredentialStore interface {
	IdentityProvider
	PasswordResetter
}

// TxPasswordSetter is optionally implemented by a CredentialStore that
// shares the token database. Password reset confirmation then writes the new
// password and consumes the reset tokens in one transaction.
type TxPasswordSetter interface {
	SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, password string) error
}

// LoginTracker is optionally implemented by a CredentialStore to record the
// last successful login
type LoginTracker interface {
	TrackLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// KeyAuthenticator resolves a raw token key into a Session
type KeyAuthenticator interface {
	AuthenticateKey(ctx context.Context, key string) (*Session, error)
}

// Session is an authenticated request: the token used and its owner
type Session struct {
	Token    *Token
	Identity Identity
}

// Clock returns the current time, injected so expiry can be tested
type Clock func() time.Time

func defaultClock() time.Time {
	return time.Now().UTC()
}
