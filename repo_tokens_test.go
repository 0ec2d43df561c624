package multitoken_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	multitoken "github.com/goliatone/go-multitoken"
)

var hexKey = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestTokensMintGeneratesUniqueHexKeys(t *testing.T) {
	f := newFixture(t, nil)
	user := f.createUser(t, newUser{username: "alice", password: "pw"})
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		token, err := f.repo.Tokens().Mint(ctx, user.ID, "ua", "10.0.0.1", "")
		require.NoError(t, err)
		assert.Regexp(t, hexKey, token.Key)
		assert.False(t, seen[token.Key], "duplicate key minted")
		seen[token.Key] = true
		assert.Equal(t, f.clock.Now(), token.CreatedAt)
	}

	assert.Equal(t, 20, f.countTokens(t, user.ID))
}

func TestTokensMintRetriesOnKeyCollision(t *testing.T) {
	db := setupDB(t)
	users := multitoken.NewUsersRepository(db)
	user, err := users.Create(context.Background(), &multitoken.User{Username: "bob", Email: "bob@example.com", PasswordHash: "x", Active: true})
	require.NoError(t, err)

	keys := []string{"aaaa", "aaaa", "bbbb"}
	calls := 0
	gen := func() (string, error) {
		k := keys[calls%len(keys)]
		calls++
		return k, nil
	}

	tokens := multitoken.NewTokensRepository(db, multitoken.WithTokensKeyGenerator(gen))

	first, err := tokens.Mint(context.Background(), user.ID, "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "aaaa", first.Key)

	second, err := tokens.Mint(context.Background(), user.ID, "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "bbbb", second.Key)
	assert.Equal(t, 3, calls)
}

func TestTokensMintGivesUpAfterRepeatedCollisions(t *testing.T) {
	db := setupDB(t)
	users := multitoken.NewUsersRepository(db)
	user, err := users.Create(context.Background(), &multitoken.User{Username: "bob", Email: "bob@example.com", PasswordHash: "x", Active: true})
	require.NoError(t, err)

	tokens := multitoken.NewTokensRepository(db, multitoken.WithTokensKeyGenerator(func() (string, error) {
		return "same", nil
	}))

	_, err = tokens.Mint(context.Background(), user.ID, "", "", "")
	require.NoError(t, err)

	_, err = tokens.Mint(context.Background(), user.ID, "", "", "")
	assert.ErrorIs(t, err, multitoken.ErrKeyCollision)
}

func TestTokensMintKeyGeneratorFailure(t *testing.T) {
	db := setupDB(t)
	boom := errors.New("entropy exhausted")
	tokens := multitoken.NewTokensRepository(db, multitoken.WithTokensKeyGenerator(func() (string, error) {
		return "", boom
	}))

	_, err := tokens.Mint(context.Background(), uuid.New(), "", "", "")
	assert.ErrorIs(t, err, boom)
}

func TestTokensMintUnknownOwnerFails(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.repo.Tokens().Mint(context.Background(), uuid.New(), "", "", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, multitoken.ErrKeyCollision)
}

func TestTokensFindIsScopedByOwner(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	alice := f.createUser(t, newUser{username: "alice", password: "pw"})
	bob := f.createUser(t, newUser{username: "bob", password: "pw"})

	token, err := f.repo.Tokens().Mint(ctx, alice.ID, "curl/8", "192.168.1.4", "laptop")
	require.NoError(t, err)

	found, err := f.repo.Tokens().Find(ctx, token.Key, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, token.ID, found.ID)
	assert.Equal(t, "laptop", found.Name)
	assert.Equal(t, "curl/8", found.UserAgent)
	assert.Equal(t, "192.168.1.4", found.LastKnownIP)

	_, err = f.repo.Tokens().Find(ctx, token.Key, bob.ID)
	assert.ErrorIs(t, err, multitoken.ErrTokenNotFound)

	byKey, err := f.repo.Tokens().FindByKey(ctx, token.Key)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byKey.OwnerID)

	_, err = f.repo.Tokens().FindByID(ctx, token.ID, bob.ID)
	assert.ErrorIs(t, err, multitoken.ErrTokenNotFound)
}

func TestTokensRevokeIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	alice := f.createUser(t, newUser{username: "alice", password: "pw"})

	token, err := f.repo.Tokens().Mint(ctx, alice.ID, "", "", "")
	require.NoError(t, err)

	deleted, err := f.repo.Tokens().Revoke(ctx, token.Key, alice.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = f.repo.Tokens().Revoke(ctx, token.Key, alice.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = f.repo.Tokens().FindByKey(ctx, token.Key)
	assert.ErrorIs(t, err, multitoken.ErrTokenNotFound)
}

func TestTokensListByOwner(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	alice := f.createUser(t, newUser{username: "alice", password: "pw"})
	bob := f.createUser(t, newUser{username: "bob", password: "pw"})

	for _, name := range []string{"phone", "laptop"} {
		_, err := f.repo.Tokens().Mint(ctx, alice.ID, "", "", name)
		require.NoError(t, err)
	}
	_, err := f.repo.Tokens().Mint(ctx, bob.ID, "", "", "tablet")
	require.NoError(t, err)

	list, err := f.repo.Tokens().ListByOwner(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "phone", list[0].Name)
	assert.Equal(t, "laptop", list[1].Name)
}

func TestDeletingOwnerCascadesToTokens(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	alice := f.createUser(t, newUser{username: "alice", password: "pw"})

	_, err := f.repo.Tokens().Mint(ctx, alice.ID, "", "", "")
	require.NoError(t, err)
	_, _, err = f.repo.ResetTokens().IssueOrReuse(ctx, alice.ID, "", "")
	require.NoError(t, err)

	f.deleteUser(t, alice.ID)

	assert.Zero(t, f.countTokens(t, alice.ID))
	assert.Zero(t, f.countResetTokens(t))
}
