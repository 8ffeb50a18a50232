package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ned0ra/diplom/internal/archive"
	"github.com/ned0ra/diplom/internal/cleaner"
	"github.com/ned0ra/diplom/internal/config"
	"github.com/ned0ra/diplom/internal/db"
	"github.com/ned0ra/diplom/internal/handoff"
	"github.com/ned0ra/diplom/internal/pipeline"
	"github.com/ned0ra/diplom/internal/prepare"
	"github.com/ned0ra/diplom/internal/runstate"
	"github.com/ned0ra/diplom/internal/schema"
	"github.com/ned0ra/diplom/internal/scraper"
	"github.com/ned0ra/diplom/internal/store"
	"github.com/ned0ra/diplom/internal/store/postgres"
	"github.com/ned0ra/diplom/internal/store/sqlite"
	"github.com/ned0ra/diplom/internal/syncer"
)

// Pipeline is what the commands drive. *pipeline.Runner implements it.
type Pipeline interface {
	Run(ctx context.Context) (runstate.Run, error)
	PrepareOnly(ctx context.Context) (string, pipeline.PrepareResult, error)
	SyncOnly(ctx context.Context, runID string) (syncer.Report, error)
	InitialLoad(ctx context.Context, max int) (syncer.Report, error)
}

// App holds the wired components for one command invocation.
type App struct {
	Config   *config.Config
	Log      *zap.Logger
	Store    store.Store
	Pipeline Pipeline
	Tracker  *runstate.Tracker
	// Redis is nil when REDIS_URL is not set.
	Redis *redis.Client
	// SharedHandoff reports whether prepared batches outlive this process.
	SharedHandoff bool

	closers []func()
}

// Close releases every connection in reverse opening order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp connects the backing services and builds the pipeline.
// Tests replace it.
var newApp = func(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	mapping, err := loadMapping(cfg.SchemaVersion)
	if err != nil {
		return nil, err
	}
	mode, err := cleaner.ParseTitleMode(cfg.TitleMode)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Log: log, Tracker: runstate.NewTracker()}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	st, err := openStore(connectCtx, cfg)
	if err != nil {
		return nil, err
	}
	a.Store = st
	a.closers = append(a.closers, func() { _ = st.Close() })
	log.Info("store connected", zap.String("driver", cfg.StoreDriver))

	var hs handoff.Store = handoff.NewMemory()
	if cfg.RedisURL != "" {
		rdb, err := db.NewRedisClient(connectCtx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.Redis = rdb
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		hs = handoff.NewRedis(rdb, cfg.HandoffTTL)
		a.SharedHandoff = true
		log.Info("redis connected")
	}

	var arch archive.Archiver = archive.Noop{}
	if cfg.MongoURI != "" {
		mdb, err := db.NewMongoDatabase(connectCtx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer dcancel()
			_ = mdb.Client().Disconnect(dctx)
		})
		arch = archive.NewMongo(mdb, log.Named("archive"))
		log.Info("mongo connected", zap.String("db", cfg.MongoDB))
	}

	fetcher := scraper.NewTrudvsemFetcher(cfg.APIBaseURL, cfg.FetchBatchSize, cfg.FetchDelay, cfg.HTTPTimeout, log.Named("fetcher"))
	prep := pipeline.NewPreparer(
		fetcher,
		arch,
		cleaner.New(mapping, cleaner.WithTitleMode(mode), cleaner.WithLogger(log.Named("cleaner"))),
		prepare.New(mapping),
		log.Named("prepare"),
	)
	a.Pipeline = pipeline.NewRunner(
		prep,
		syncer.New(st, log.Named("sync")),
		hs,
		a.Tracker,
		pipeline.Options{
			MaxVacancies: cfg.MaxVacancies,
			Retries:      retriesOption(cfg.Retries),
			RetryDelay:   cfg.RetryDelay,
		},
		log.Named("runner"),
	)

	ok = true
	return a, nil
}

// loadMapping resolves the configured schema version and checks it.
func loadMapping(version string) (schema.Mapping, error) {
	m, err := schema.Lookup(version)
	if err != nil {
		return schema.Mapping{}, err
	}
	if err := m.Validate(); err != nil {
		return schema.Mapping{}, err
	}
	return m, nil
}

// retriesOption maps the configured count onto pipeline.Options, where zero
// selects the default.
func retriesOption(n int) int {
	if n == 0 {
		return -1
	}
	return n
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		return sqlite.Open(cfg.SQLitePath)
	case config.DriverPostgres:
		pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL, 0)
		if err != nil {
			return nil, err
		}
		return postgres.New(pool), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
