package multitoken

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/uptrace/bun"
)

// RequestPasswordResetMessage asks for reset tokens for every eligible
// account registered with Email
type RequestPasswordResetMessage struct {
	Email      string `json:"email" form:"email"`
	UserAgent  string `json:"-" form:"-"`
	Address    string `json:"-" form:"-"`
	OnResponse func(resp *RequestPasswordResetResponse) `json:"-" form:"-"`
}

func (m RequestPasswordResetMessage) Type() string { return "auth.password_reset.request" }

func (m RequestPasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, validation.Required, is.Email),
	)
}

type IssuedResetToken struct {
	Token    *ResetToken
	Identity Identity
	Reused   bool
}

type RequestPasswordResetResponse struct {
	Purged int64
	Issued []IssuedResetToken
}

type requestPasswordResetHandler struct {
	*handlerDeps
}

func (h *requestPasswordResetHandler) Execute(ctx context.Context, event RequestPasswordResetMessage) error {
	if err := guardContext(ctx, "password reset request"); err != nil {
		return err
	}
	return h.execute(ctx, event)
}

func (h *requestPasswordResetHandler) execute(ctx context.Context, event RequestPasswordResetMessage) error {
	if err := event.Validate(); err != nil {
		return invalidInput(err, "invalid password reset request payload")
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	resp := &RequestPasswordResetResponse{}
	hours := h.config.GetResetTokenExpiryHours()

	purged, err := h.repo.ResetTokens().PurgeExpired(ctx, h.now(), hours)
	if err != nil {
		return storeFault(err, "failed to purge expired reset tokens")
	}
	resp.Purged = purged
	if purged > 0 {
		h.logger.Debug("purged expired reset tokens", "count", purged)
	}

	identities, err := h.credentials.FindIdentitiesByEmail(ctx, strings.TrimSpace(event.Email))
	if err != nil {
		return storeFault(err, "failed to find identities by email")
	}

	eligible := make([]Identity, 0, len(identities))
	for _, identity := range identities {
		if identity.IsActive() && identity.CanChangePassword() {
			eligible = append(eligible, identity)
		}
	}

	if len(eligible) == 0 {
		return ErrNoEligibleAccount
	}

	userAgent := truncateUserAgent(event.UserAgent)

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, identity := range eligible {
			token, reused, err := h.repo.ResetTokens().IssueOrReuseTx(ctx, tx, identity.ID(), userAgent, event.Address)
			if err != nil {
				return err
			}
			resp.Issued = append(resp.Issued, IssuedResetToken{
				Token:    token,
				Identity: identity,
				Reused:   reused,
			})
		}
		return nil
	})
	if err != nil {
		return storeFault(err, "failed to issue reset tokens")
	}

	for _, issued := range resp.Issued {
		h.emit(ctx, Event{
			Type:       EventPasswordResetRequested,
			Identity:   issued.Identity,
			ResetToken: issued.Token,
			Reused:     issued.Reused,
		})
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
