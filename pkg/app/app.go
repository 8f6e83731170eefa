// Package app is the dependency container: it turns a config.Config into
// the wired-up pipeline exactly once at process startup.
package app

import (
	"context"
	"os"

	"github.com/yipson/mental-health-assistant/pkg/audio"
	"github.com/yipson/mental-health-assistant/pkg/blobstore"
	"github.com/yipson/mental-health-assistant/pkg/blobstore/cache"
	s3store "github.com/yipson/mental-health-assistant/pkg/blobstore/s3"
	"github.com/yipson/mental-health-assistant/pkg/blobstore/sim"
	"github.com/yipson/mental-health-assistant/pkg/config"
	"github.com/yipson/mental-health-assistant/pkg/meta"
	"github.com/yipson/mental-health-assistant/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type App struct {
	Config     *config.Config
	Log        zerolog.Logger
	DB         *meta.DB
	Repo       *meta.Repository
	Store      blobstore.Store
	Metrics    *metrics.Metrics
	Reconciler *audio.Reconciler
	Audio      *audio.Service
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := newLogger(cfg.Logging.Level)

	db, err := meta.Open(ctx, meta.Config{
		Driver:   cfg.Database.Driver,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Name:     cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
		Path:     cfg.Database.Path,
	})
	if err != nil {
		return nil, err
	}
	repo := meta.NewRepository(db)

	store, err := newStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if cfg.Cache.RedisURL != "" {
		cached, err := cache.New(store, cache.Config{
			RedisURL: cfg.Cache.RedisURL,
			TTL:      cfg.Cache.TTL,
		}, log)
		if err != nil {
			log.Warn().Err(err).Msg("redis unreachable, continuing without existence cache")
		} else {
			store = cached
		}
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	strategies := []audio.MergeStrategy{
		audio.NewFFmpegStrategy(cfg.Audio.FFmpegBinary, cfg.Audio.FFmpegTimeout, log),
		audio.NewConcatStrategy(log),
	}
	reconciler := audio.NewReconciler(store, repo, strategies, cfg.Audio.StagingDir, m, log)
	svc := audio.NewService(store, repo, repo, reconciler, m, log)

	return &App{
		Config:     cfg,
		Log:        log,
		DB:         db,
		Repo:       repo,
		Store:      store,
		Metrics:    m,
		Reconciler: reconciler,
		Audio:      svc,
	}, nil
}

// newStore selects the storage backend once. An s3 backend without
// credentials downgrades to simulated mode so the pipeline stays usable
// in local development.
func newStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (blobstore.Store, error) {
	if cfg.Storage.Backend == config.BackendS3 {
		if cfg.Storage.AccessKeyID == "" || cfg.Storage.SecretAccessKey == "" {
			log.Warn().Msg("s3 backend selected but credentials are missing, using simulated storage")
			return sim.NewAdapter(cfg.Storage.Bucket, log), nil
		}
		return s3store.NewAdapter(ctx, s3store.Config{
			Endpoint:        cfg.Storage.Endpoint,
			Region:          cfg.Storage.Region,
			Bucket:          cfg.Storage.Bucket,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
		}, log)
	}
	return sim.NewAdapter(cfg.Storage.Bucket, log), nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).
		Level(lvl).
		With().
		Timestamp().
		Str("service", "assistant").
		Logger()
}
