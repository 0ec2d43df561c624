// Package cache memoizes session token lookups in redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	multitoken "github.com/goliatone/go-multitoken"
)

// DefaultTTL how long a token lookup is served from the cache
const DefaultTTL = 60 * time.Second

const defaultPrefix = "multitoken:token"

// Authenticator serves AuthenticateKey from redis and falls back to the
// wrapped authenticator on a miss. The owner is always resolved fresh, so
// deactivated identities are rejected right away. Tokens deleted outside
// the Flow, for example through the owner cascade, live until the TTL.
type Authenticator struct {
	next       multitoken.KeyAuthenticator
	identities multitoken.IdentityProvider
	client     redis.UniversalClient
	ttl        time.Duration
	prefix     string
	logger     multitoken.Logger
}

var (
	_ multitoken.KeyAuthenticator = (*Authenticator)(nil)
	_ multitoken.Subscriber       = (*Authenticator)(nil)
)

type Option func(*Authenticator)

func WithTTL(ttl time.Duration) Option {
	return func(a *Authenticator) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

func WithPrefix(prefix string) Option {
	return func(a *Authenticator) {
		if prefix != "" {
			a.prefix = prefix
		}
	}
}

func WithLogger(logger multitoken.Logger) Option {
	return func(a *Authenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func NewAuthenticator(next multitoken.KeyAuthenticator, identities multitoken.IdentityProvider, client redis.UniversalClient, opts ...Option) *Authenticator {
	a := &Authenticator{
		next:       next,
		identities: identities,
		client:     client,
		ttl:        DefaultTTL,
		prefix:     defaultPrefix,
		logger:     multitoken.NewLogger("multitoken.cache", "info"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

type entry struct {
	ID          int64     `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	LastKnownIP string    `json:"last_known_ip"`
	UserAgent   string    `json:"user_agent"`
}

func (a *Authenticator) AuthenticateKey(ctx context.Context, key string) (*multitoken.Session, error) {
	if token, ok := a.lookup(ctx, key); ok {
		return multitoken.ResolveSession(ctx, a.identities, token)
	}

	session, err := a.next.AuthenticateKey(ctx, key)
	if err != nil {
		return nil, err
	}

	a.store(ctx, session.Token)
	return session, nil
}

// Notify drops the cached entry of revoked sessions
func (a *Authenticator) Notify(ctx context.Context, event multitoken.Event) error {
	if event.Type != multitoken.EventSessionRevoked || event.Token == nil {
		return nil
	}
	return a.Invalidate(ctx, event.Token.Key)
}

func (a *Authenticator) Invalidate(ctx context.Context, key string) error {
	if a.client == nil {
		return nil
	}
	if err := a.client.Del(ctx, a.dataKey(key)).Err(); err != nil {
		return fmt.Errorf("invalidate cached token: %w", err)
	}
	return nil
}

func (a *Authenticator) lookup(ctx context.Context, key string) (*multitoken.Token, bool) {
	if a.client == nil {
		return nil, false
	}

	raw, err := a.client.Get(ctx, a.dataKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		a.logger.Warn("token cache read failed", "error", err)
		return nil, false
	}

	e := entry{}
	if err := json.Unmarshal(raw, &e); err != nil {
		a.logger.Warn("token cache entry corrupt", "error", err)
		return nil, false
	}

	return &multitoken.Token{
		ID:          e.ID,
		Key:         key,
		OwnerID:     e.OwnerID,
		Name:        e.Name,
		CreatedAt:   e.CreatedAt,
		LastKnownIP: e.LastKnownIP,
		UserAgent:   e.UserAgent,
	}, true
}

func (a *Authenticator) store(ctx context.Context, token *multitoken.Token) {
	if a.client == nil || token == nil {
		return
	}

	raw, err := json.Marshal(entry{
		ID:          token.ID,
		OwnerID:     token.OwnerID,
		Name:        token.Name,
		CreatedAt:   token.CreatedAt,
		LastKnownIP: token.LastKnownIP,
		UserAgent:   token.UserAgent,
	})
	if err != nil {
		return
	}

	if err := a.client.Set(ctx, a.dataKey(token.Key), raw, a.ttl).Err(); err != nil {
		a.logger.Warn("token cache write failed", "error", err)
	}
}

// keys are hashed so raw tokens never reach redis
func (a *Authenticator) dataKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return a.prefix + ":" + hex.EncodeToString(sum[:])
}
