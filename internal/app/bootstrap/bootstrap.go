package bootstrap

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"chistes/app/internal/combined"
	"chistes/app/internal/config"
	"chistes/app/internal/db"
	"chistes/app/internal/deadline"
	apphttp "chistes/app/internal/http"
	"chistes/app/internal/jokes"
	"chistes/app/internal/metrics"
	"chistes/app/internal/providers"
)

type Dependencies struct {
	Config    config.Config
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
}

type Result struct {
	JokeService jokes.Service
	HTTPServer  *apphttp.Server
	Database    *gorm.DB
	Metrics     *metrics.Registry
	Cleanup     func() error
}

// Build composes the chistes application layers and returns the constructed components.
func Build(ctx context.Context, deps Dependencies) (Result, error) {
	cfg := deps.Config

	database, err := db.Open(db.Options{Path: cfg.DBPath, Logger: deps.Logger})
	if err != nil {
		return Result{}, eris.Wrap(err, "opening database")
	}

	closeOnError := func(wrapper error) (Result, error) {
		if closeErr := db.Close(database); closeErr != nil && deps.Logger != nil {
			deps.Logger.WithError(closeErr).Error("closing database after bootstrap failure")
		}
		return Result{}, wrapper
	}

	if err := jokes.Migrate(ctx, database, deps.Logger); err != nil {
		return closeOnError(eris.Wrap(err, "running jokes migrations"))
	}

	repo, err := jokes.NewRepository(database, deps.Logger)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating jokes repository"))
	}

	if cfg.SeedDatabase {
		if _, err := jokes.Seed(ctx, repo, deps.Logger); err != nil {
			return closeOnError(eris.Wrap(err, "seeding database"))
		}
	}

	registry := metrics.New()

	chuck, err := providers.NewChuckNorris(providers.Options{
		URL:       cfg.ChuckAPIURL,
		UserAgent: cfg.ProviderUserAgent,
		Logger:    deps.Logger,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating chuck norris provider"))
	}

	dad, err := providers.NewDadJoke(providers.Options{
		URL:       cfg.DadAPIURL,
		UserAgent: cfg.ProviderUserAgent,
		Logger:    deps.Logger,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating dad joke provider"))
	}

	chuckProvider := providers.Instrument(chuck, registry)
	dadProvider := providers.Instrument(dad, registry)

	policy := deadline.Policy{
		Short:     cfg.Timeouts.Short,
		Medium:    cfg.Timeouts.Medium,
		Provider:  cfg.Timeouts.Provider,
		Aggregate: cfg.Timeouts.Aggregate,
	}.WithDefaults()

	jokeService, err := jokes.NewService(repo, jokes.DefaultSources(chuckProvider, dadProvider), policy, deps.Logger, deps.SentryHub)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating jokes service"))
	}

	combinedService, err := combined.NewService(chuckProvider, dadProvider, combined.Options{
		Count:    cfg.CombinedJokeCount,
		Policy:   policy,
		Logger:   deps.Logger,
		Observer: registry,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating combined service"))
	}

	httpServer, err := apphttp.NewServer(apphttp.Options{
		Jokes:       jokeService,
		Combined:    combinedService,
		Providers:   []providers.Provider{chuckProvider, dadProvider},
		Database:    database,
		Metrics:     registry,
		Policy:      policy,
		Logger:      deps.Logger,
		SentryHub:   deps.SentryHub,
		Development: cfg.IsDevelopment(),
		RateLimiter: apphttp.RateLimiterSettings{
			Burst:             cfg.RateLimit.Burst,
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			ClientTTL:         cfg.RateLimit.ClientTTL,
		},
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "initialising http server"))
	}

	cleanup := func() error {
		httpServer.Close()
		return db.Close(database)
	}

	return Result{
		JokeService: jokeService,
		HTTPServer:  httpServer,
		Database:    database,
		Metrics:     registry,
		Cleanup:     cleanup,
	}, nil
}
