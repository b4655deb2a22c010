package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/packfinderz-ledger/internal/bootstrap"
	"github.com/angelmondragon/packfinderz-ledger/internal/cli"
	"github.com/angelmondragon/packfinderz-ledger/internal/reconcile"
	"github.com/angelmondragon/packfinderz-ledger/pkg/config"
	"github.com/angelmondragon/packfinderz-ledger/pkg/db"
	"github.com/angelmondragon/packfinderz-ledger/pkg/logger"
	"github.com/angelmondragon/packfinderz-ledger/pkg/redis"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.NewRootCommand(connect).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}

// connect logs to stderr so stdout stays parseable with --format json.
func connect(ctx context.Context) (reconcile.Service, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.RequireLockBackend(); err != nil {
		return nil, nil, err
	}
	logg := logger.New(logger.Options{
		ServiceName: "reconcile-cli",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Output:      os.Stderr,
		Format:      "console",
	})

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return nil, nil, err
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, nil, multierr.Append(err, dbClient.Close())
		}
	}
	cleanup := func() error {
		return multierr.Combine(dbClient.Close(), redisClient.Close())
	}

	components, err := bootstrap.Build(bootstrap.Params{
		Config: cfg,
		Logger: logg,
		DB:     dbClient,
		Redis:  redisClient,
	})
	if err != nil {
		return nil, nil, multierr.Append(err, cleanup())
	}
	return components.Reconcile, cleanup, nil
}
