package multitoken

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ResetTokens is the password reset token store
type ResetTokens interface {
	IssueOrReuse(ctx context.Context, owner uuid.UUID, userAgent, address string) (*ResetToken, bool, error)
	IssueOrReuseTx(ctx context.Context, tx bun.IDB, owner uuid.UUID, userAgent, address string) (*ResetToken, bool, error)
	Create(ctx context.Context, record *ResetToken) (*ResetToken, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *ResetToken) (*ResetToken, error)
	PurgeExpired(ctx context.Context, now time.Time, expiryHours int) (int64, error)
	FindLive(ctx context.Context, key string, now time.Time, expiryHours int) (*ResetToken, error)
	ListByOwner(ctx context.Context, owner uuid.UUID) ([]*ResetToken, error)
	ConsumeForOwner(ctx context.Context, owner uuid.UUID) (int64, error)
	ConsumeForOwnerTx(ctx context.Context, tx bun.IDB, owner uuid.UUID) (int64, error)
	Delete(ctx context.Context, id int64) error
}

type resetTokens struct {
	db     *bun.DB
	keygen KeyGenerator
	now    Clock
}

var _ ResetTokens = (*resetTokens)(nil)

type ResetTokensOption func(*resetTokens)

// WithResetTokensKeyGenerator overrides GenerateKey
func WithResetTokensKeyGenerator(gen KeyGenerator) ResetTokensOption {
	return func(r *resetTokens) {
		if gen != nil {
			r.keygen = gen
		}
	}
}

// WithResetTokensClock overrides the clock used for created_at
func WithResetTokensClock(clock Clock) ResetTokensOption {
	return func(r *resetTokens) {
		if clock != nil {
			r.now = clock
		}
	}
}

func NewResetTokensRepository(db *bun.DB, opts ...ResetTokensOption) ResetTokens {
	r := &resetTokens{
		db:     db,
		keygen: GenerateKey,
		now:    defaultClock,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *resetTokens) IssueOrReuse(ctx context.Context, owner uuid.UUID, userAgent, address string) (*ResetToken, bool, error) {
	var (
		record *ResetToken
		reused bool
	)
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		record, reused, err = r.IssueOrReuseTx(ctx, tx, owner, userAgent, address)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return record, reused, nil
}

// IssueOrReuseTx returns the earliest token of owner unchanged, or mints a
// new one. The boolean reports reuse.
func (r *resetTokens) IssueOrReuseTx(ctx context.Context, tx bun.IDB, owner uuid.UUID, userAgent, address string) (*ResetToken, bool, error) {
	existing := &ResetToken{}
	err := tx.NewSelect().
		Model(existing).
		Where("?TableAlias.owner_id = ?", owner).
		Order("rst.id ASC").
		Limit(1).
		Scan(ctx)
	if err == nil {
		return existing, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, storeFault(err, "failed to select reset token")
	}

	record, err := r.CreateTx(ctx, tx, &ResetToken{
		OwnerID:   owner,
		IPAddress: address,
		UserAgent: userAgent,
	})
	if err != nil {
		return nil, false, err
	}
	return record, false, nil
}

func (r *resetTokens) Create(ctx context.Context, record *ResetToken) (*ResetToken, error) {
	return r.CreateTx(ctx, r.db, record)
}

// CreateTx inserts record, generating the key and created_at when unset
func (r *resetTokens) CreateTx(ctx context.Context, tx bun.IDB, record *ResetToken) (*ResetToken, error) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = r.now()
	}

	presetKey := record.Key != ""
	var lastErr error
	for attempt := 0; attempt < maxMintAttempts; attempt++ {
		if !presetKey {
			key, err := r.keygen()
			if err != nil {
				return nil, err
			}
			record.Key = key
		}

		_, err := tx.NewInsert().Model(record).Exec(ctx)
		if err == nil {
			return record, nil
		}

		if presetKey || !IsUniqueViolation(err) {
			return nil, storeFault(err, "failed to insert reset token")
		}
		lastErr = err
	}

	return nil, goerrors.Wrap(ErrKeyCollision, goerrors.CategoryConflict, "token key retries exhausted").
		WithCode(goerrors.CodeConflict).
		WithMetadata(map[string]any{"last_error": lastErr.Error()})
}

// PurgeExpired deletes every token created at or before now minus the
// expiry window
func (r *resetTokens) PurgeExpired(ctx context.Context, now time.Time, expiryHours int) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*ResetToken)(nil)).
		Where("created_at <= ?", ExpiryCutoff(now, expiryHours)).
		Exec(ctx)
	if err != nil {
		return 0, storeFault(err, "failed to purge reset tokens")
	}
	return res.RowsAffected()
}

// FindLive returns ErrResetTokenNotFound for unknown keys. Expired tokens
// are returned together with ErrResetTokenExpired.
func (r *resetTokens) FindLive(ctx context.Context, key string, now time.Time, expiryHours int) (*ResetToken, error) {
	record := &ResetToken{}
	err := r.db.NewSelect().
		Model(record).
		Where(`?TableAlias."key" = ?`, key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResetTokenNotFound
		}
		return nil, storeFault(err, "failed to select reset token")
	}

	if record.IsExpired(now, expiryHours) {
		return record, ErrResetTokenExpired
	}

	return record, nil
}

func (r *resetTokens) ListByOwner(ctx context.Context, owner uuid.UUID) ([]*ResetToken, error) {
	records := []*ResetToken{}
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.owner_id = ?", owner).
		Order("rst.id ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, storeFault(err, "failed to list reset tokens")
	}
	return records, nil
}

func (r *resetTokens) ConsumeForOwner(ctx context.Context, owner uuid.UUID) (int64, error) {
	return r.ConsumeForOwnerTx(ctx, r.db, owner)
}

// ConsumeForOwnerTx deletes every reset token of owner
func (r *resetTokens) ConsumeForOwnerTx(ctx context.Context, tx bun.IDB, owner uuid.UUID) (int64, error) {
	res, err := tx.NewDelete().
		Model((*ResetToken)(nil)).
		Where("owner_id = ?", owner).
		Exec(ctx)
	if err != nil {
		return 0, storeFault(err, "failed to consume reset tokens")
	}
	return res.RowsAffected()
}

func (r *resetTokens) Delete(ctx context.Context, id int64) error {
	_, err := r.db.NewDelete().
		Model((*ResetToken)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return storeFault(err, "failed to delete reset token")
	}
	return nil
}
