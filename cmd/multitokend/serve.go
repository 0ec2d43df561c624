package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-print"

	multitoken "github.com/goliatone/go-multitoken"
	"github.com/goliatone/go-multitoken/activitymap"
	"github.com/goliatone/go-multitoken/cache"
	"github.com/goliatone/go-multitoken/metrics"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(a *app) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.withDB(ctx, func(ctx context.Context, db *bun.DB) error {
				if migrate {
					if err := multitoken.CreateSchema(ctx, db); err != nil {
						return err
					}
				}
				return a.serve(ctx, db)
			})
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "create the schema before serving")
	return cmd
}

func (a *app) serve(ctx context.Context, db *bun.DB) error {
	users := multitoken.NewUserProvider(multitoken.NewUsersRepository(db)).
		WithHashCost(a.cfg.BcryptCost).
		WithLogger(a.logger.Named("users"))
	repo := multitoken.NewRepositoryManager(db)
	opts := a.cfg.Options()

	eventMetrics, err := metrics.NewSubscriber(otel.GetMeterProvider())
	if err != nil {
		return err
	}

	audit := a.logger.Named("audit")
	subscribers := []multitoken.Subscriber{
		activitymap.NewSubscriber(func(_ context.Context, record activitymap.Normalized) error {
			audit.Info("activity",
				"verb", record.Verb,
				"actor_id", record.ActorID,
				"object_type", record.ObjectType,
				"object_id", record.ObjectID,
			)
			if a.cfg.Debug {
				audit.Debug("activity metadata", "metadata", print.MaybePrettyJSON(record.Metadata))
			}
			return nil
		}),
		eventMetrics,
	}

	var auther multitoken.KeyAuthenticator = multitoken.NewTokenAuthenticator(repo.Tokens(), users, opts).
		WithLogger(a.logger.Named("authenticator"))

	if a.cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
		defer client.Close()

		cached := cache.NewAuthenticator(auther, users, client,
			cache.WithTTL(a.cfg.TokenCacheTTL()),
			cache.WithLogger(a.logger.Named("cache")),
		)
		subscribers = append(subscribers, cached)
		auther = cached
		a.logger.Info("token cache enabled", "addr", a.cfg.RedisAddr, "ttl", a.cfg.TokenCacheTTL())
	}

	flow := multitoken.NewFlow(repo, users, opts,
		multitoken.WithLogger(a.logger.Named("flow")),
		multitoken.WithSubscribers(subscribers...),
		multitoken.WithDebug(a.cfg.Debug),
	)

	controller := multitoken.NewController(flow, auther,
		multitoken.WithControllerLogger(a.logger.Named("http")),
		multitoken.WithControllerDebug(a.cfg.Debug),
	)

	server := fiber.New(fiber.Config{
		AppName:               "multitokend",
		DisableStartupMessage: true,
	})
	controller.RegisterRoutes(server.Group(a.cfg.RoutePrefix))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("listening", "addr", a.cfg.HTTPAddr, "prefix", a.cfg.RoutePrefix)
		return server.Listen(a.cfg.HTTPAddr)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
