package multitoken_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"

	multitoken "github.com/goliatone/go-multitoken"
)

func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})

	_, err = db.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	require.NoError(t, multitoken.CreateSchema(context.Background(), db))
	return db
}

// fakeClock is a settable Clock, whole seconds keep stored timestamps exact
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	db       *bun.DB
	clock    *fakeClock
	users    multitoken.Users
	provider *multitoken.UserProvider
	repo     multitoken.RepositoryManager
	events   *eventRecorder
	flow     *multitoken.Flow
}

func newFixture(t *testing.T, cfg multitoken.Config) *fixture {
	t.Helper()

	db := setupDB(t)
	clock := newFakeClock()
	users := multitoken.NewUsersRepository(db)
	provider := multitoken.NewUserProvider(users).
		WithHashCost(bcrypt.MinCost).
		WithLogger(multitoken.NewLogger("test", "off"))
	repo := multitoken.NewRepositoryManager(db, multitoken.WithRepositoryClock(clock.Now))
	events := &eventRecorder{}

	if cfg == nil {
		cfg = multitoken.DefaultOptions()
	}

	flow := multitoken.NewFlow(repo, provider, cfg,
		multitoken.WithClock(clock.Now),
		multitoken.WithLogger(multitoken.NewLogger("test", "off")),
		multitoken.WithSubscribers(events),
	)

	return &fixture{
		db:       db,
		clock:    clock,
		users:    users,
		provider: provider,
		repo:     repo,
		events:   events,
		flow:     flow,
	}
}

type newUser struct {
	username  string
	email     string
	password  string
	inactive  bool
	superuser bool
	external  bool
}

func (f *fixture) createUser(t *testing.T, u newUser) *multitoken.User {
	t.Helper()

	if u.email == "" {
		u.email = u.username + "@example.com"
	}

	user := &multitoken.User{
		Username:  u.username,
		Email:     u.email,
		Active:    !u.inactive,
		Superuser: u.superuser,
	}

	if u.external {
		user.SetUnusablePassword()
	} else {
		hash, err := multitoken.HashPasswordWithCost(u.password, bcrypt.MinCost)
		require.NoError(t, err)
		user.PasswordHash = hash
	}

	created, err := f.users.Create(context.Background(), user)
	require.NoError(t, err)
	return created
}

func (f *fixture) deleteUser(t *testing.T, id uuid.UUID) {
	t.Helper()
	_, err := f.db.NewDelete().Model((*multitoken.User)(nil)).Where("id = ?", id).Exec(context.Background())
	require.NoError(t, err)
}

func (f *fixture) countTokens(t *testing.T, owner uuid.UUID) int {
	t.Helper()
	n, err := f.db.NewSelect().Model((*multitoken.Token)(nil)).Where("owner_id = ?", owner).Count(context.Background())
	require.NoError(t, err)
	return n
}

func (f *fixture) countResetTokens(t *testing.T) int {
	t.Helper()
	n, err := f.db.NewSelect().Model((*multitoken.ResetToken)(nil)).Count(context.Background())
	require.NoError(t, err)
	return n
}

type eventRecorder struct {
	mu     sync.Mutex
	events []multitoken.Event
}

func (r *eventRecorder) Notify(_ context.Context, event multitoken.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) Types() []multitoken.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]multitoken.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *eventRecorder) OfType(typ multitoken.EventType) []multitoken.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []multitoken.Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func (r *eventRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
