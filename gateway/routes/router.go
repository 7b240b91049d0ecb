package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"gemfarm/core"
	"gemfarm/gateway/middleware"
)

// Rate limit buckets applied to the mounted groups.
const (
	RateLimitWrite = "write"
	RateLimitRead  = "read"
)

type Config struct {
	Ledger        *core.Ledger
	Events        EventQuerier
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	Idempotency   middleware.IdempotencyStore
	CORS          middleware.CORSConfig
	Logger        *slog.Logger
	// EnableMint exposes POST /v1/mints/{mint} for development networks.
	EnableMint bool
}

func New(cfg Config) (http.Handler, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("routes: ledger required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	authn := cfg.Authenticator
	if authn == nil {
		authn = middleware.NewAuthenticator(middleware.AuthConfig{}, logger)
	}
	obs := cfg.Observability
	if obs == nil {
		obs = middleware.NewObservability(middleware.ObservabilityConfig{}, logger)
	}

	handlers := &api{ledger: cfg.Ledger, logger: logger}
	banks := &bankRoutes{api: handlers}
	farms := &farmRoutes{api: handlers}
	metadata := &metadataRoutes{api: handlers}
	events := &eventRoutes{stream: cfg.Ledger.Stream(), history: cfg.Events, origins: cfg.CORS.AllowedOrigins}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(cfg.CORS))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", obs.MetricsHandler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(reads chi.Router) {
			if cfg.RateLimiter != nil {
				reads.Use(cfg.RateLimiter.Middleware(RateLimitRead))
			}
			reads.With(obs.Middleware("bank")).Group(banks.mountReads)
			reads.With(obs.Middleware("farm")).Group(farms.mountReads)
			reads.With(obs.Middleware("token")).Group(metadata.mountReads)
			reads.With(obs.Middleware("events")).Group(events.mount)
		})
		v1.Group(func(writes chi.Router) {
			writes.Use(authn.Middleware())
			if cfg.RateLimiter != nil {
				writes.Use(cfg.RateLimiter.Middleware(RateLimitWrite))
			}
			writes.Use(middleware.WithIdempotency(cfg.Idempotency, logger))
			writes.With(obs.Middleware("bank")).Group(banks.mountWrites)
			writes.With(obs.Middleware("farm")).Group(farms.mountWrites)
			writes.With(obs.Middleware("token")).Group(metadata.mountWrites)
			if cfg.EnableMint {
				writes.With(obs.Middleware("token")).Post("/mints/{mint}", farms.mintTokens)
			}
		})
	})

	return r, nil
}
