package multitoken

import (
	"context"
	"database/sql"
	"log"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Tokens() Tokens
	ResetTokens() ResetTokens
}

type mngr struct {
	db          *bun.DB
	tokens      Tokens
	resetTokens ResetTokens
}

// RepositoryOption tunes the repositories built by NewRepositoryManager
type RepositoryOption func(*repositoryOptions)

type repositoryOptions struct {
	keygen KeyGenerator
	clock  Clock
}

// WithKeyGenerator overrides the key generator of both token stores
func WithKeyGenerator(gen KeyGenerator) RepositoryOption {
	return func(o *repositoryOptions) {
		o.keygen = gen
	}
}

// WithRepositoryClock overrides the clock of both token stores
func WithRepositoryClock(clock Clock) RepositoryOption {
	return func(o *repositoryOptions) {
		o.clock = clock
	}
}

func NewRepositoryManager(db *bun.DB, opts ...RepositoryOption) RepositoryManager {
	o := &repositoryOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	return &mngr{
		db: db,
		tokens: NewTokensRepository(db,
			WithTokensKeyGenerator(o.keygen),
			WithTokensClock(o.clock),
		),
		resetTokens: NewResetTokensRepository(db,
			WithResetTokensKeyGenerator(o.keygen),
			WithResetTokensClock(o.clock),
		),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return goerrors.New("database should be initialized", goerrors.CategoryInternal)
	}

	if m.tokens == nil {
		return goerrors.New("repository tokens should be initialized", goerrors.CategoryInternal)
	}

	if m.resetTokens == nil {
		return goerrors.New("repository resetTokens should be initialized", goerrors.CategoryInternal)
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled before transaction").
			WithTextCode(TextCodeOperationCancelled)
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Tokens() Tokens {
	return m.tokens
}

func (m mngr) ResetTokens() ResetTokens {
	return m.resetTokens
}
