package multitoken_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	multitoken "github.com/goliatone/go-multitoken"
)

func TestUserProviderVerifyIdentity(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.createUser(t, newUser{username: "alice", email: "alice@example.com", password: "pw"})
	ctx := context.Background()

	for _, identifier := range []string{"alice", "alice@example.com", alice.ID.String(), "  alice  "} {
		identity, err := f.provider.VerifyIdentity(ctx, identifier, "pw")
		require.NoError(t, err, identifier)
		assert.Equal(t, alice.ID, identity.ID())
		assert.Equal(t, "alice", identity.Username())
		assert.Equal(t, "alice@example.com", identity.Email())
		assert.True(t, identity.IsActive())
		assert.True(t, identity.CanChangePassword())
	}

	_, err := f.provider.VerifyIdentity(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, multitoken.ErrInvalidCredentials)

	_, err = f.provider.VerifyIdentity(ctx, "", "pw")
	assert.ErrorIs(t, err, multitoken.ErrInvalidCredentials)
}

func TestUserProviderFindIdentitiesByEmail(t *testing.T) {
	f := newFixture(t, nil)
	f.createUser(t, newUser{username: "a", email: "Shared@Example.com", password: "pw"})
	f.createUser(t, newUser{username: "b", email: "shared@example.com", password: "pw"})
	f.createUser(t, newUser{username: "c", email: "other@example.com", password: "pw"})

	identities, err := f.provider.FindIdentitiesByEmail(context.Background(), "SHARED@example.COM")
	require.NoError(t, err)
	assert.Len(t, identities, 2)

	identities, err = f.provider.FindIdentitiesByEmail(context.Background(), "missing@example.com")
	require.NoError(t, err)
	assert.Empty(t, identities)
}

func TestUserProviderSetPassword(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.createUser(t, newUser{username: "alice", password: "pw"})
	ctx := context.Background()

	require.NoError(t, f.provider.SetPassword(ctx, alice.ID, "changed"))

	_, err := f.provider.VerifyIdentity(ctx, "alice", "changed")
	assert.NoError(t, err)

	assert.ErrorIs(t, f.provider.SetPassword(ctx, uuid.New(), "changed"), multitoken.ErrIdentityNotFound)
	assert.ErrorIs(t, f.provider.SetPassword(ctx, alice.ID, ""), multitoken.ErrNoEmptyString)
}

func TestUserProviderRegisterAndTrackLogin(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	user, err := f.provider.RegisterUser(ctx, " dave ", "dave@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "dave", user.Username)
	assert.True(t, user.Active)

	at := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, f.provider.TrackLogin(ctx, user.ID, at))

	record, err := f.users.GetByIdentifier(ctx, "dave")
	require.NoError(t, err)
	require.NotNil(t, record.LoggedInAt)
	assert.True(t, record.LoggedInAt.Equal(at))

	identity, err := f.provider.FindIdentityByIdentifier(ctx, "dave")
	require.NoError(t, err)
	backing, ok := multitoken.UserFromIdentity(identity)
	require.True(t, ok)
	assert.Equal(t, user.ID, backing.ID)
}

type countingComparer struct {
	calls  int
	hashes []string
}

func (c *countingComparer) Compare(password, hash string) error {
	c.calls++
	c.hashes = append(c.hashes, hash)
	return multitoken.ComparePasswordAndHash(password, hash)
}

func TestVerifyIdentityComparesOnEveryFailurePath(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.createUser(t, newUser{username: "alice", password: "pw"})
	f.createUser(t, newUser{username: "ldap", external: true})
	ctx := context.Background()

	tests := []struct {
		name       string
		identifier string
		password   string
		realHash   bool
	}{
		{name: "unknown identifier", identifier: "nobody", password: "pw"},
		{name: "unusable password", identifier: "ldap", password: "pw"},
		{name: "wrong password", identifier: "alice", password: "nope", realHash: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := &countingComparer{}
			f.provider.WithPasswordComparer(counter.Compare)

			_, err := f.provider.VerifyIdentity(ctx, tt.identifier, tt.password)
			assert.ErrorIs(t, err, multitoken.ErrInvalidCredentials)
			require.Equal(t, 1, counter.calls)

			if tt.realHash {
				assert.Equal(t, alice.PasswordHash, counter.hashes[0])
			} else {
				assert.NotEqual(t, alice.PasswordHash, counter.hashes[0])
				assert.NotEmpty(t, counter.hashes[0])
			}
		})
	}
}

func TestUserProviderHashCostFollowsOption(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.createUser(t, newUser{username: "alice", password: "pw"})
	ctx := context.Background()

	provider := multitoken.NewUserProvider(f.users).WithHashCost(bcrypt.MinCost + 1)
	require.NoError(t, provider.SetPassword(ctx, alice.ID, "changed"))

	record, err := f.users.GetByIdentifier(ctx, "alice")
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(record.PasswordHash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)
}
