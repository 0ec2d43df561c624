package multitoken_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	multitoken "github.com/goliatone/go-multitoken"
)

func TestSessionContext(t *testing.T) {
	_, ok := multitoken.SessionFromCtx(context.Background())
	assert.False(t, ok)

	_, ok = multitoken.IdentityFromCtx(context.Background())
	assert.False(t, ok)

	session := &multitoken.Session{Token: &multitoken.Token{ID: 1}}
	ctx := multitoken.WithSessionContext(context.Background(), session)

	got, ok := multitoken.SessionFromCtx(ctx)
	assert.True(t, ok)
	assert.Same(t, session, got)

	// a session without identity yields no identity
	_, ok = multitoken.IdentityFromCtx(ctx)
	assert.False(t, ok)
}
