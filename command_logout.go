package multitoken

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// LogoutMessage revokes the token used to authenticate the request
type LogoutMessage struct {
	Key   string
	Owner uuid.UUID
}

func (m LogoutMessage) Type() string { return "auth.logout" }

type logoutHandler struct {
	*handlerDeps
}

func (h *logoutHandler) Execute(ctx context.Context, event LogoutMessage) error {
	if err := guardContext(ctx, "logout"); err != nil {
		return err
	}
	return h.execute(ctx, event)
}

func (h *logoutHandler) execute(ctx context.Context, event LogoutMessage) error {
	if event.Owner == uuid.Nil {
		return ErrNotAuthenticated
	}

	if event.Key == "" {
		return ErrInvalidToken
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	token, err := h.repo.Tokens().Find(ctx, event.Key, event.Owner)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return ErrInvalidToken
		}
		return storeFault(err, "failed to find session token")
	}

	deleted, err := h.repo.Tokens().Revoke(ctx, token.Key, token.OwnerID)
	if err != nil {
		return storeFault(err, "failed to revoke session token")
	}

	// a concurrent logout got there first
	if !deleted {
		return ErrInvalidToken
	}

	h.emit(ctx, Event{
		Type:  EventSessionRevoked,
		Token: token,
	})

	return nil
}

// RevokeSessionMessage revokes one of the owner sessions by id
type RevokeSessionMessage struct {
	ID    int64
	Owner uuid.UUID
}

func (m RevokeSessionMessage) Type() string { return "auth.session.revoke" }

type revokeSessionHandler struct {
	*handlerDeps
}

func (h *revokeSessionHandler) Execute(ctx context.Context, event RevokeSessionMessage) error {
	if err := guardContext(ctx, "session revocation"); err != nil {
		return err
	}
	return h.execute(ctx, event)
}

func (h *revokeSessionHandler) execute(ctx context.Context, event RevokeSessionMessage) error {
	if event.Owner == uuid.Nil {
		return ErrNotAuthenticated
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	token, err := h.repo.Tokens().FindByID(ctx, event.ID, event.Owner)
	if err != nil {
		return storeFault(err, "failed to find session token")
	}

	deleted, err := h.repo.Tokens().Revoke(ctx, token.Key, token.OwnerID)
	if err != nil {
		return storeFault(err, "failed to revoke session token")
	}
	if !deleted {
		return ErrTokenNotFound
	}

	h.emit(ctx, Event{
		Type:     EventSessionRevoked,
		Token:    token,
		Metadata: map[string]any{"by_id": true},
	})

	return nil
}
