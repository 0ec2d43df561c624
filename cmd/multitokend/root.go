package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"

	multitoken "github.com/goliatone/go-multitoken"
	"github.com/goliatone/go-multitoken/config"
)

type app struct {
	cfg    *config.Config
	logger hclog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "multitokend",
		Short:         "Multi token authentication service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = hclog.New(&hclog.LoggerOptions{
				Name:  "multitokend",
				Level: hclog.LevelFromString(cfg.LogLevel),
			})
			return nil
		},
	}

	cmd.AddCommand(
		newServeCommand(a),
		newMigrateCommand(a),
		newUserCommand(a),
		newResetCommand(a),
	)
	return cmd
}

func (a *app) openDB() (*bun.DB, error) {
	switch a.cfg.DBDialect {
	case "postgres":
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(a.cfg.DBDSN)))
		return bun.NewDB(sqldb, pgdialect.New()), nil
	case "sqlite":
		sqldb, err := sql.Open(sqliteshim.ShimName, sqliteDSN(a.cfg.DBDSN))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	}
	return nil, fmt.Errorf("unsupported dialect %q", a.cfg.DBDialect)
}

// sqliteDSN turns on foreign keys for every pooled connection. Both the
// modernc and the mattn spelling are set, sqliteshim may load either driver.
func sqliteDSN(dsn string) string {
	lower := strings.ToLower(dsn)
	if strings.Contains(lower, "foreign_keys") || strings.Contains(lower, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_foreign_keys=1"
}

func (a *app) withDB(ctx context.Context, fn func(ctx context.Context, db *bun.DB) error) error {
	db, err := a.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return fn(ctx, db)
}

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the users and token tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(cmd.Context(), func(ctx context.Context, db *bun.DB) error {
				if err := multitoken.CreateSchema(ctx, db); err != nil {
					return err
				}
				a.logger.Info("schema ready", "dialect", a.cfg.DBDialect)
				return nil
			})
		},
	}
}

func newResetCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "reset", Short: "Password reset token maintenance"}
	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired password reset tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(cmd.Context(), func(ctx context.Context, db *bun.DB) error {
				repo := multitoken.NewRepositoryManager(db)
				flow := multitoken.NewFlow(repo,
					multitoken.NewUserProvider(multitoken.NewUsersRepository(db)),
					a.cfg.Options(),
					multitoken.WithLogger(a.logger),
				)
				n, err := flow.PurgeExpiredResetTokens(ctx)
				if err != nil {
					return err
				}
				a.logger.Info("purged expired reset tokens", "count", n)
				return nil
			})
		},
	})
	return cmd
}
