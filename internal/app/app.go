// Package app wires configuration into the long-lived services shared by the
// scrape and serve commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/EvRoHa/CFB-Poll-Compiler/internal/config"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/export"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/fetcher"
	collyfetcher "github.com/EvRoHa/CFB-Poll-Compiler/internal/fetcher/colly"
	restyfetcher "github.com/EvRoHa/CFB-Poll-Compiler/internal/fetcher/resty"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/logging"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/metrics"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/policy/ratelimit"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/poll"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/source"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/storage/gcs"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/storage/local"
	"github.com/EvRoHa/CFB-Poll-Compiler/internal/storage/postgres"
)

// Clock supplies the calendar year used for season-label adjustment.
type Clock interface {
	CurrentYear() int
}

// BallotSaver persists flattened ballots.
type BallotSaver interface {
	SaveBallots(ctx context.Context, set *poll.BallotSet) (int64, error)
}

// App holds the fetcher, output store and optional database for one process.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	clock    Clock
	getter   fetcher.Getter
	exporter *export.Exporter
	ballots  BallotSaver
	closers  []func()
}

// Option customizes App construction.
type Option func(*App)

// WithGetter replaces the configured HTTP fetcher.
func WithGetter(g fetcher.Getter) Option {
	return func(a *App) {
		a.getter = g
	}
}

// WithBallotSaver replaces the Postgres store configured by db.dsn.
func WithBallotSaver(s BallotSaver) Option {
	return func(a *App) {
		a.ballots = s
	}
}

// New builds an App. Output goes to the GCS bucket when storage.gcs_bucket is
// set and to output.dir otherwise; ballots are saved only when db.dsn is set.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, clock Clock, opts ...Option) (*App, error) {
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger, clock: clock}
	for _, opt := range opts {
		opt(a)
	}

	if a.getter == nil {
		a.getter = fetcher.New(newDoer(cfg), cfg.RetryPolicy(), logger.Named("fetcher"),
			fetcher.WithLimiter(ratelimit.New(cfg.RateLimit())))
	}

	blobs, err := a.openBlobStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.exporter, err = export.New(blobs, cfg.Storage.Prefix, logger.Named("export"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init exporter: %w", err)
	}

	if a.ballots == nil && cfg.DB.DSN != "" {
		store, err := postgres.NewBallotStore(ctx, postgres.BallotStoreConfig{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: cfg.DB.MaxConns,
		}, logger.Named("postgres"))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init ballot store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.ballots = store
	}
	return a, nil
}

func newDoer(cfg config.Config) fetcher.Doer {
	if cfg.HTTP.Client == config.ClientResty {
		return restyfetcher.New(restyfetcher.Config{
			UserAgent: cfg.HTTP.UserAgent,
			Timeout:   cfg.RequestTimeout(),
		})
	}
	return collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.RequestTimeout(),
	})
}

func (a *App) openBlobStore(ctx context.Context) (export.BlobStore, error) {
	if bucket := a.cfg.Storage.GCSBucket; bucket != "" {
		a.logger.Info("writing output to gcs", zap.String("bucket", bucket))
		store, err := gcs.Open(ctx, gcs.Config{Bucket: bucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs store: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := store.Close(); err != nil {
				a.logger.Warn("close gcs store", zap.Error(err))
			}
		})
		return store, nil
	}
	store, err := local.New(local.Config{BaseDir: a.cfg.Output.Dir})
	if err != nil {
		return nil, fmt.Errorf("init output dir: %w", err)
	}
	return store, nil
}

// Scrape runs the extractor for id and records the outcome.
func (a *App) Scrape(ctx context.Context, id poll.Identity) (*poll.BallotSet, error) {
	start := time.Now()
	logger := a.logger.With(logging.PollFields(id)...)

	src, err := source.New(id, a.getter, a.cfg.SourceConfig(), a.clock.CurrentYear(), logger)
	if err != nil {
		return nil, fmt.Errorf("build source: %w", err)
	}
	set, err := src.Scrape(ctx)
	outcome := Outcome(err)
	metrics.ObserveScrape(string(id.Type), outcome, setLen(set), time.Since(start))
	if err != nil {
		logger.Error("scrape failed", zap.String("outcome", outcome), zap.Error(err))
		return nil, fmt.Errorf("scrape %s: %w", id, err)
	}
	logger.Info("scrape complete", zap.Int("voters", set.Len()), zap.Duration("elapsed", time.Since(start)))
	return set, nil
}

// Export writes every output artifact for set.
func (a *App) Export(ctx context.Context, set *poll.BallotSet) ([]string, error) {
	uris, err := a.exporter.Export(ctx, set)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", set.Identity, err)
	}
	return uris, nil
}

// SaveBallots persists set when a database is configured. It reports whether
// anything was saved.
func (a *App) SaveBallots(ctx context.Context, set *poll.BallotSet) (bool, error) {
	if a.ballots == nil {
		return false, nil
	}
	n, err := a.ballots.SaveBallots(ctx, set)
	if err != nil {
		return false, fmt.Errorf("save ballots for %s: %w", set.Identity, err)
	}
	a.logger.Info("saved ballots", zap.Stringer("poll", set.Identity), zap.Int64("rows", n))
	return true, nil
}

// Close releases the database pool and storage clients.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Outcome classifies a scrape error for metrics and API responses.
func Outcome(err error) string {
	var structural *source.StructuralParseError
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, fetcher.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.As(err, &structural):
		return metrics.OutcomeStructural
	default:
		return metrics.OutcomeFailed
	}
}

func setLen(set *poll.BallotSet) int {
	if set == nil {
		return 0
	}
	return set.Len()
}
