package blog

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/goliatone/go-blog/metrics"
	"github.com/goliatone/go-router"
)

// ServerConfig holds the collaborators the HTTP server is built from
type ServerConfig struct {
	Repo         RepositoryManager
	Auther       *Auther
	Media        *MediaStore
	Limiter      *IPRateLimiter
	Metrics      *metrics.Collector
	ActivitySink ActivitySink
	Logger       Logger
	// BodyLimit caps request bodies in bytes, it defaults to the upload
	// limit plus one megabyte for multipart overhead
	BodyLimit   int
	ReadTimeout time.Duration
}

// NewHTTPServer builds the fiber backed server with every route mounted.
// Global middlewares are registered before any route so they wrap all of
// them: process time, metrics and then the error renderer.
func NewHTTPServer(cfg ServerConfig) router.Server[*fiber.App] {
	logger := ensureLogger(cfg.Logger)

	if cfg.Repo == nil {
		panic("Missing RepositoryManager in server config...")
	}

	if cfg.Auther == nil {
		panic("Missing Auther in server config...")
	}

	if cfg.Media == nil {
		cfg.Media = NewMediaStore(nil, logger)
	}

	bodyLimit := cfg.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = int(cfg.Media.MaxBytes()) + megabyte
	}

	srv := router.NewFiberAdapterWithConfig(router.FiberAdapterConfig{
		PathConflictMode: router.PathConflictModePreferStatic,
	}, func(a *fiber.App) *fiber.App {
		app := fiber.New(fiber.Config{
			UnescapePath:  true,
			StrictRouting: false,
			BodyLimit:     bodyLimit,
			ReadTimeout:   cfg.ReadTimeout,
			ErrorHandler:  router.DefaultFiberErrorHandler(router.DefaultFiberErrorHandlerConfig()),
		})
		app.Use(recover.New())
		return app
	})

	srv.Router().WithLogger(logger)

	api := srv.Router()

	mw := []router.MiddlewareFunc{ProcessTimeMiddleware()}
	if cfg.Metrics != nil {
		mw = append(mw, cfg.Metrics.Middleware())
	}
	mw = append(mw, ErrorMiddleware(NewErrorHandler(logger)))
	api.Use(mw...)

	api.Get("/health", HealthHandler(cfg.Repo.DB(), logger)).
		SetName("health")

	if cfg.Metrics != nil {
		api.Get("/metrics", cfg.Metrics.Handler()).
			SetName("metrics")
	}

	authOpts := []AuthControllerOption{
		WithAuthRepository(cfg.Repo),
		WithAuthAuther(cfg.Auther),
		WithAuthLimiter(cfg.Limiter),
		WithAuthLogger(logger),
		WithAuthActivitySink(cfg.ActivitySink),
	}

	mediaOpts := []MediaControllerOption{
		WithMediaStore(cfg.Media),
		WithMediaGate(cfg.Auther),
		WithMediaLogger(logger),
	}

	if cfg.Metrics != nil {
		authOpts = append(authOpts, WithAuthMetrics(cfg.Metrics))
		mediaOpts = append(mediaOpts, WithMediaMetrics(cfg.Metrics))
	}

	RegisterAuthRoutes(api, authOpts...)

	RegisterPostRoutes(api,
		WithPostRepository(cfg.Repo),
		WithPostGate(cfg.Auther),
		WithPostLogger(logger),
	)

	RegisterTaxonomyRoutes(api,
		WithTaxonomyRepository(cfg.Repo),
		WithTaxonomyGate(cfg.Auther),
		WithTaxonomyLogger(logger),
	)

	RegisterMediaRoutes(api, mediaOpts...)

	return srv
}
