package commands

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spherical/glance/internal/cache"
	"github.com/spherical/glance/internal/capture"
	"github.com/spherical/glance/internal/config"
	"github.com/spherical/glance/internal/domain"
	"github.com/spherical/glance/internal/extract"
	"github.com/spherical/glance/internal/llm"
	"github.com/spherical/glance/internal/observability"
	"github.com/spherical/glance/internal/storage"
	"github.com/spherical/glance/internal/transport"
	"github.com/spherical/glance/pkg/reader"
)

const stubDelay = 600 * time.Millisecond

// resources holds what buildDeps opened so it can be closed on exit.
type resources struct {
	closers []func() error
}

func (r *resources) add(fn func() error) {
	r.closers = append(r.closers, fn)
}

// Close closes resources in reverse order of opening.
func (r *resources) Close(logger *observability.Logger) {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			logger.Warn().Err(err).Msg("failed to close resource")
		}
	}
}

// buildDeps creates the engines for a reader. When tr is nil the transport
// is taken from configuration. offline swaps the vision backend for stubs.
func buildDeps(ctx context.Context, cfg *config.Config, tr domain.Transport, offline bool, logger *observability.Logger) (reader.Deps, *resources, error) {
	res := &resources{}
	deps := reader.Deps{Logger: logger}

	var redisTransport *transport.Redis
	if tr == nil {
		switch cfg.Transport.Driver {
		case "redis":
			client := redis.NewClient(&redis.Options{
				Addr:     cfg.Transport.Redis.Addr,
				Password: cfg.Transport.Redis.Password,
				DB:       cfg.Transport.Redis.DB,
			})
			if err := client.Ping(ctx).Err(); err != nil {
				_ = client.Close()
				return deps, res, domain.TransportError("redis ping failed", err)
			}
			res.add(client.Close)
			redisTransport = transport.NewRedis(client, cfg.Transport.Redis.Prefix, logger)
			tr = redisTransport
		default:
			mem := transport.NewMemory(16, nil)
			res.add(mem.Close)
			tr = mem
		}
	}
	deps.Transport = tr

	switch {
	case cfg.Capture.Source != "":
		src, err := capture.NewFileSource(cfg.Capture.Source)
		if err != nil {
			return deps, res, err
		}
		deps.Capture = src
	case redisTransport != nil:
		deps.Capture = redisTransport
	case offline:
		deps.Capture = capture.NewStaticSource(capture.BlankJPEG())
	default:
		return deps, res, domain.ConfigError("capture.source is required without an accessory gateway", nil)
	}

	if offline {
		deps.Decoder = extract.PassthroughDecoder{}
		deps.Recognizer = &extract.StubRecognizer{Blocks: extract.DefaultStubBlocks(), Delay: stubDelay}
		deps.Translator = &extract.StubTranslator{Lang: cfg.Extraction.TargetLang, Delay: stubDelay / 3}
	} else {
		if cfg.Extraction.LLM.APIKey == "" {
			return deps, res, domain.ConfigError("OPENROUTER_API_KEY not set", nil)
		}
		client := llm.NewClient(cfg.Extraction.LLM.APIKey, cfg.Extraction.LLM.Model,
			llm.WithURL(cfg.Extraction.LLM.BaseURL),
			llm.WithHTTPClient(&http.Client{Timeout: cfg.Extraction.LLM.Timeout}),
			llm.WithRetryConfig(&llm.RetryConfig{
				MaxRetries:     cfg.Extraction.LLM.MaxRetries,
				InitialBackoff: time.Second,
				MaxBackoff:     30 * time.Second,
			}),
			llm.WithLogger(logger),
		)
		deps.Recognizer = llm.NewRecognizer(client, cfg.Capture.Quality)
		deps.Translator = llm.NewTranslator(client, cfg.Extraction.TargetLang)
	}

	if cfg.Extraction.Translate {
		switch cfg.Cache.Driver {
		case "redis":
			c, err := cache.NewRedisClient(cache.RedisConfig{
				Addr:     cfg.Cache.Redis.Addr,
				Password: cfg.Cache.Redis.Password,
				DB:       cfg.Cache.Redis.DB,
				PoolSize: cfg.Cache.Redis.PoolSize,
				Prefix:   cfg.Cache.Redis.Prefix,
			})
			if err != nil {
				return deps, res, err
			}
			res.add(c.Close)
			deps.Cache = c
		default:
			c := cache.NewMemoryClient(cfg.Cache.MaxEntries)
			res.add(c.Close)
			deps.Cache = c
		}
	}

	if cfg.Archive.Enabled {
		driver, dsn := cfg.ArchiveDSN()
		archive, err := storage.Open(ctx, driver, dsn)
		if err != nil {
			return deps, res, err
		}
		res.add(archive.Close)
		deps.Archive = archive
	}

	return deps, res, nil
}
