package multitoken

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

// UserProvider adapts the Users repository into a CredentialStore
type UserProvider struct {
	store    Users
	hashCost int
	logger   Logger
	compare  PasswordComparer

	dummyOnce sync.Once
	dummyHash string
}

var (
	_ CredentialStore  = (*UserProvider)(nil)
	_ LoginTracker     = (*UserProvider)(nil)
	_ TxPasswordSetter = (*UserProvider)(nil)
)

// NewUserProvider will create a new UserProvider
func NewUserProvider(store Users) *UserProvider {
	return &UserProvider{
		store:    store,
		hashCost: bcrypt.DefaultCost,
		logger:   defaultLogger(),
		compare:  ComparePasswordAndHash,
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	u.logger = normalizeLogger(l)
	return u
}

// WithHashCost sets the bcrypt cost used by SetPassword
func (u *UserProvider) WithHashCost(cost int) *UserProvider {
	if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
		u.hashCost = cost
	}
	return u
}

// WithPasswordComparer replaces the bcrypt comparison
func (u *UserProvider) WithPasswordComparer(fn PasswordComparer) *UserProvider {
	if fn != nil {
		u.compare = fn
	}
	return u
}

// VerifyIdentity will find the user, compare to the password, and return identity.
// Unknown users, unusable passwords and inactive users all fail the same way,
// and all of them pay for one hash comparison.
func (u *UserProvider) VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error) {
	user, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			u.compareDummy(password)
			return nil, ErrInvalidCredentials
		}
		return nil, storeFault(err, "failed to retrieve user")
	}

	if !user.HasUsablePassword() {
		u.compareDummy(password)
		return nil, ErrInvalidCredentials
	}

	if err := u.compare(password, user.PasswordHash); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to compare password").
			WithTextCode(TextCodeStoreFault).
			WithCode(goerrors.CodeInternal)
	}

	if !user.Active {
		return nil, ErrInvalidCredentials
	}

	return userIdentity{user: user}, nil
}

// FindIdentityByIdentifier accepts an id, email or username
func (u *UserProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	user, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return userIdentity{user: user}, nil
}

func (u *UserProvider) FindIdentitiesByEmail(ctx context.Context, email string) ([]Identity, error) {
	records, err := u.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	out := make([]Identity, 0, len(records))
	for _, record := range records {
		out = append(out, userIdentity{user: record})
	}
	return out, nil
}

func (u *UserProvider) SetPassword(ctx context.Context, id uuid.UUID, password string) error {
	hash, err := HashPasswordWithCost(password, u.hashCost)
	if err != nil {
		return err
	}
	return u.store.SetPasswordHash(ctx, id, hash)
}

// SetPasswordTx writes the new hash inside tx
func (u *UserProvider) SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, password string) error {
	hash, err := HashPasswordWithCost(password, u.hashCost)
	if err != nil {
		return err
	}
	return u.store.SetPasswordHashTx(ctx, tx, id, hash)
}

func (u *UserProvider) TrackLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return u.store.TrackSuccessfulLogin(ctx, id, at)
}

// RegisterUser creates an active, regular user with a hashed password
func (u *UserProvider) RegisterUser(ctx context.Context, username, email, password string) (*User, error) {
	hash, err := HashPasswordWithCost(password, u.hashCost)
	if err != nil {
		return nil, err
	}

	user, err := u.store.Create(ctx, &User{
		Username:     strings.TrimSpace(username),
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		Active:       true,
	})
	if err != nil {
		return nil, err
	}

	u.logger.Debug("registered user", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// compareDummy burns one comparison against a throwaway hash of the
// configured cost, the result is ignored
func (u *UserProvider) compareDummy(password string) {
	u.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("multitoken-dummy-password"), u.hashCost)
		if err != nil {
			u.logger.Error("failed to generate dummy hash", "error", err)
			return
		}
		u.dummyHash = string(hash)
	})
	if u.dummyHash == "" {
		return
	}
	_ = u.compare(password, u.dummyHash)
}

type userIdentity struct {
	user *User
}

func (a userIdentity) ID() uuid.UUID           { return a.user.ID }
func (a userIdentity) Username() string        { return a.user.Username }
func (a userIdentity) Email() string           { return a.user.Email }
func (a userIdentity) IsActive() bool          { return a.user.Active }
func (a userIdentity) IsSuperuser() bool       { return a.user.Superuser }
func (a userIdentity) CanChangePassword() bool { return a.user.HasUsablePassword() }

// UserFromIdentity returns the backing record for identities built by
// UserProvider
func UserFromIdentity(identity Identity) (*User, bool) {
	a, ok := identity.(userIdentity)
	if !ok {
		return nil, false
	}
	return a.user, true
}
