package multitoken

import (
	"context"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// LoginMessage exchanges credentials for a new session token
type LoginMessage struct {
	Username   string `json:"username" form:"username"`
	Password   string `json:"password" form:"password"`
	TokenName  string `json:"token_name" form:"token_name"`
	UserAgent  string `json:"-" form:"-"`
	Address    string `json:"-" form:"-"`
	OnResponse func(resp *LoginResponse) `json:"-" form:"-"`
}

func (m LoginMessage) Type() string { return "auth.login" }

func (m LoginMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Username, validation.Required),
		validation.Field(&m.Password, validation.Required),
		validation.Field(&m.TokenName, validation.Length(0, 64)),
	)
}

type LoginResponse struct {
	Token    *Token
	Identity Identity
}

type loginHandler struct {
	*handlerDeps
}

func (h *loginHandler) Execute(ctx context.Context, event LoginMessage) error {
	if err := guardContext(ctx, "login"); err != nil {
		return err
	}
	return h.execute(ctx, event)
}

func (h *loginHandler) execute(ctx context.Context, event LoginMessage) error {
	if err := event.Validate(); err != nil {
		return invalidInput(err, "invalid login payload")
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	identifier := strings.TrimSpace(event.Username)

	h.emit(ctx, Event{
		Type:       EventLoginAttempt,
		Identifier: identifier,
		Metadata:   map[string]any{"ip": event.Address},
	})

	identity, err := h.credentials.VerifyIdentity(ctx, identifier, event.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrIdentityNotFound) {
			h.loginFailed(ctx, identifier, event.Address, "invalid_credentials")
			return ErrInvalidCredentials
		}
		return storeFault(err, "failed to verify identity")
	}

	if identity == nil || !identity.IsActive() {
		h.loginFailed(ctx, identifier, event.Address, "inactive")
		return ErrInvalidCredentials
	}

	if identity.IsSuperuser() && !h.config.GetEnableSuperuserLogin() {
		h.loginFailed(ctx, identifier, event.Address, "superuser_login_disabled")
		return ErrSuperuserLoginDisabled
	}

	token, err := h.repo.Tokens().Mint(ctx,
		identity.ID(),
		truncateUserAgent(event.UserAgent),
		event.Address,
		event.TokenName,
	)
	if err != nil {
		return storeFault(err, "failed to mint session token")
	}

	if tracker, ok := h.credentials.(LoginTracker); ok {
		if err := tracker.TrackLogin(ctx, identity.ID(), token.CreatedAt); err != nil {
			h.logger.Warn("failed to track login", "user_id", identity.ID(), "error", err)
		}
	}

	h.dump("session token created", token)

	h.emit(ctx, Event{
		Type:     EventLoginSuccess,
		Identity: identity,
		Token:    token,
	})

	if event.OnResponse != nil {
		event.OnResponse(&LoginResponse{Token: token, Identity: identity})
	}

	return nil
}

func (h *loginHandler) loginFailed(ctx context.Context, identifier, address, reason string) {
	h.emit(ctx, Event{
		Type:       EventLoginFailure,
		Identifier: identifier,
		Metadata:   map[string]any{"ip": address, "reason": reason},
	})
}
