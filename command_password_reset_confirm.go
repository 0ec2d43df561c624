package multitoken

import (
	"context"
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/uptrace/bun"
)

// ConfirmPasswordResetMessage sets a new password using a reset token
type ConfirmPasswordResetMessage struct {
	Token    string `json:"token" form:"token"`
	Password string `json:"password" form:"password"`
}

func (m ConfirmPasswordResetMessage) Type() string { return "auth.password_reset.confirm" }

func (m ConfirmPasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Token, validation.Required),
		validation.Field(&m.Password, validation.Required),
	)
}

type confirmPasswordResetHandler struct {
	*handlerDeps
}

func (h *confirmPasswordResetHandler) Execute(ctx context.Context, event ConfirmPasswordResetMessage) error {
	if err := guardContext(ctx, "password reset confirmation"); err != nil {
		return err
	}
	return h.execute(ctx, event)
}

func (h *confirmPasswordResetHandler) execute(ctx context.Context, event ConfirmPasswordResetMessage) error {
	if err := event.Validate(); err != nil {
		return invalidInput(err, "invalid password reset confirmation payload")
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	store := h.repo.ResetTokens()

	reset, err := store.FindLive(ctx, event.Token, h.now(), h.config.GetResetTokenExpiryHours())
	switch {
	case errors.Is(err, ErrResetTokenExpired):
		if derr := store.Delete(ctx, reset.ID); derr != nil {
			h.logger.Warn("failed to delete expired reset token", "reset_token_id", reset.ID, "error", derr)
		}
		return ErrResetTokenExpired
	case err != nil:
		return storeFault(err, "failed to find reset token")
	}

	identity, err := h.credentials.FindIdentityByIdentifier(ctx, reset.OwnerID.String())
	if err != nil {
		return storeFault(err, "failed to resolve reset token owner")
	}

	// externally managed passwords are left alone, the tokens are still consumed
	setPassword := identity.CanChangePassword()
	if !setPassword {
		h.logger.Info("password reset skipped, password can not be changed", "user_id", identity.ID())
	}

	var consumed int64
	if txSetter, ok := h.credentials.(TxPasswordSetter); ok {
		err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if setPassword {
				if err := txSetter.SetPasswordTx(ctx, tx, identity.ID(), event.Password); err != nil {
					return err
				}
			}
			var err error
			consumed, err = store.ConsumeForOwnerTx(ctx, tx, reset.OwnerID)
			return err
		})
		if err != nil {
			return storeFault(err, "failed to reset password")
		}
	} else {
		// stores outside the database: the password is written first, a failed
		// consume leaves the tokens live until they expire
		if setPassword {
			if err := h.credentials.SetPassword(ctx, identity.ID(), event.Password); err != nil {
				return storeFault(err, "failed to set password")
			}
		}
		consumed, err = store.ConsumeForOwner(ctx, reset.OwnerID)
		if err != nil {
			return storeFault(err, "failed to consume reset tokens")
		}
	}

	h.emit(ctx, Event{
		Type:       EventPasswordResetSuccess,
		Identity:   identity,
		ResetToken: reset,
		Metadata:   map[string]any{"consumed": consumed},
	})

	return nil
}
