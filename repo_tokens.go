package multitoken

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Tokens is the session token store
type Tokens interface {
	Mint(ctx context.Context, owner uuid.UUID, userAgent, address, name string) (*Token, error)
	MintTx(ctx context.Context, tx bun.IDB, owner uuid.UUID, userAgent, address, name string) (*Token, error)
	Find(ctx context.Context, key string, owner uuid.UUID) (*Token, error)
	FindByKey(ctx context.Context, key string) (*Token, error)
	FindByID(ctx context.Context, id int64, owner uuid.UUID) (*Token, error)
	ListByOwner(ctx context.Context, owner uuid.UUID) ([]*Token, error)
	Revoke(ctx context.Context, key string, owner uuid.UUID) (bool, error)
	RevokeTx(ctx context.Context, tx bun.IDB, key string, owner uuid.UUID) (bool, error)
}

type tokens struct {
	db     *bun.DB
	keygen KeyGenerator
	now    Clock
}

var _ Tokens = (*tokens)(nil)

type TokensOption func(*tokens)

// WithTokensKeyGenerator overrides GenerateKey
func WithTokensKeyGenerator(gen KeyGenerator) TokensOption {
	return func(t *tokens) {
		if gen != nil {
			t.keygen = gen
		}
	}
}

// WithTokensClock overrides the clock used for created_at
func WithTokensClock(clock Clock) TokensOption {
	return func(t *tokens) {
		if clock != nil {
			t.now = clock
		}
	}
}

func NewTokensRepository(db *bun.DB, opts ...TokensOption) Tokens {
	t := &tokens{
		db:     db,
		keygen: GenerateKey,
		now:    defaultClock,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

func (t *tokens) Mint(ctx context.Context, owner uuid.UUID, userAgent, address, name string) (*Token, error) {
	return t.MintTx(ctx, t.db, owner, userAgent, address, name)
}

func (t *tokens) MintTx(ctx context.Context, tx bun.IDB, owner uuid.UUID, userAgent, address, name string) (*Token, error) {
	record := &Token{
		OwnerID:     owner,
		Name:        strings.TrimSpace(name),
		CreatedAt:   t.now(),
		LastKnownIP: address,
		UserAgent:   userAgent,
	}

	var lastErr error
	for attempt := 0; attempt < maxMintAttempts; attempt++ {
		key, err := t.keygen()
		if err != nil {
			return nil, err
		}
		record.Key = key

		if _, err = tx.NewInsert().Model(record).Exec(ctx); err == nil {
			return record, nil
		}

		if !IsUniqueViolation(err) {
			return nil, storeFault(err, "failed to insert token")
		}
		lastErr = err
	}

	return nil, goerrors.Wrap(ErrKeyCollision, goerrors.CategoryConflict, "token key retries exhausted").
		WithCode(goerrors.CodeConflict).
		WithMetadata(map[string]any{"last_error": lastErr.Error()})
}

func (t *tokens) Find(ctx context.Context, key string, owner uuid.UUID) (*Token, error) {
	record := &Token{}
	err := t.db.NewSelect().
		Model(record).
		Where(`?TableAlias."key" = ?`, key).
		Where("?TableAlias.owner_id = ?", owner).
		Limit(1).
		Scan(ctx)
	return scanToken(record, err)
}

func (t *tokens) FindByKey(ctx context.Context, key string) (*Token, error) {
	record := &Token{}
	err := t.db.NewSelect().
		Model(record).
		Where(`?TableAlias."key" = ?`, key).
		Limit(1).
		Scan(ctx)
	return scanToken(record, err)
}

func (t *tokens) FindByID(ctx context.Context, id int64, owner uuid.UUID) (*Token, error) {
	record := &Token{}
	err := t.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.owner_id = ?", owner).
		Limit(1).
		Scan(ctx)
	return scanToken(record, err)
}

func (t *tokens) ListByOwner(ctx context.Context, owner uuid.UUID) ([]*Token, error) {
	records := []*Token{}
	err := t.db.NewSelect().
		Model(&records).
		Where("?TableAlias.owner_id = ?", owner).
		Order("tok.id ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, storeFault(err, "failed to list tokens")
	}
	return records, nil
}

func (t *tokens) Revoke(ctx context.Context, key string, owner uuid.UUID) (bool, error) {
	return t.RevokeTx(ctx, t.db, key, owner)
}

// RevokeTx deletes the token matching key and owner. Revoking a missing
// token is not an error, it reports false.
func (t *tokens) RevokeTx(ctx context.Context, tx bun.IDB, key string, owner uuid.UUID) (bool, error) {
	res, err := tx.NewDelete().
		Model((*Token)(nil)).
		Where(`"key" = ?`, key).
		Where("owner_id = ?", owner).
		Exec(ctx)
	if err != nil {
		return false, storeFault(err, "failed to delete token")
	}
	return affected(res)
}

func scanToken(record *Token, err error) (*Token, error) {
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, storeFault(err, "failed to select token")
	}
	return record, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
