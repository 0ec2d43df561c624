package multitoken

import (
	"context"
	"errors"
	"strings"
)

// ParseAuthorizationHeader extracts the key from "<keyword> <key>". A missing
// header or another scheme is ErrNotAuthenticated, a malformed one is
// ErrInvalidCredential. The keyword is matched case-insensitively.
func ParseAuthorizationHeader(header, keyword string) (string, error) {
	if keyword == "" {
		keyword = DefaultAuthHeaderKeyword
	}

	parts := strings.Fields(header)
	if len(parts) == 0 || !strings.EqualFold(parts[0], keyword) {
		return "", ErrNotAuthenticated
	}

	switch len(parts) {
	case 1:
		return "", invalidCredential("invalid token header, no credentials provided")
	case 2:
		return parts[1], nil
	default:
		return "", invalidCredential("invalid token header, token string should not contain spaces")
	}
}

// TokenAuthenticator resolves session token keys. Session tokens have no
// expiry, a token is valid for as long as its row exists.
type TokenAuthenticator struct {
	tokens     Tokens
	identities IdentityProvider
	keyword    string
	logger     Logger
}

var _ KeyAuthenticator = (*TokenAuthenticator)(nil)

func NewTokenAuthenticator(tokens Tokens, identities IdentityProvider, cfg Config) *TokenAuthenticator {
	keyword := DefaultAuthHeaderKeyword
	if cfg != nil {
		keyword = cfg.GetAuthHeaderKeyword()
	}
	return &TokenAuthenticator{
		tokens:     tokens,
		identities: identities,
		keyword:    keyword,
		logger:     defaultLogger(),
	}
}

func (a *TokenAuthenticator) WithLogger(l Logger) *TokenAuthenticator {
	a.logger = normalizeLogger(l)
	return a
}

func (a *TokenAuthenticator) Keyword() string {
	return a.keyword
}

// Authenticate parses the Authorization header value and resolves its key
func (a *TokenAuthenticator) Authenticate(ctx context.Context, header string) (*Session, error) {
	key, err := ParseAuthorizationHeader(header, a.keyword)
	if err != nil {
		return nil, err
	}
	return a.AuthenticateKey(ctx, key)
}

func (a *TokenAuthenticator) AuthenticateKey(ctx context.Context, key string) (*Session, error) {
	token, err := a.tokens.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, ErrInvalidCredential
		}
		return nil, storeFault(err, "failed to find token")
	}

	return ResolveSession(ctx, a.identities, token)
}

// ResolveSession loads the owner of token. Missing or inactive owners make
// the token unusable.
func ResolveSession(ctx context.Context, identities IdentityProvider, token *Token) (*Session, error) {
	identity, err := identities.FindIdentityByIdentifier(ctx, token.OwnerID.String())
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return nil, invalidCredential("user inactive or deleted")
		}
		return nil, storeFault(err, "failed to resolve token owner")
	}

	if !identity.IsActive() {
		return nil, invalidCredential("user inactive or deleted")
	}

	return &Session{Token: token, Identity: identity}, nil
}
