package blog

import (
	"context"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// UploadRecorder observes accepted upload sizes
type UploadRecorder interface {
	RecordUpload(size int64)
}

type noopUploadRecorder struct{}

func (noopUploadRecorder) RecordUpload(int64) {}

// ErrDatabaseUnavailable the health check could not reach the store
var ErrDatabaseUnavailable = goerrors.New("database unavailable", goerrors.CategoryExternal).
	WithCode(http.StatusServiceUnavailable).
	WithTextCode("DATABASE_UNAVAILABLE")

const healthPingTimeout = 2 * time.Second

// MediaController serves uploads
type MediaController struct {
	Store   *MediaStore
	Gate    Gate
	Metrics UploadRecorder
	Logger  Logger
}

// MediaControllerOption configures a MediaController
type MediaControllerOption func(*MediaController) *MediaController

// WithMediaStore sets the store uploads are written to
func WithMediaStore(store *MediaStore) MediaControllerOption {
	return func(c *MediaController) *MediaController {
		c.Store = store
		return c
	}
}

// WithMediaGate sets the gate protecting image uploads
func WithMediaGate(gate Gate) MediaControllerOption {
	return func(c *MediaController) *MediaController {
		c.Gate = gate
		return c
	}
}

// WithMediaMetrics records accepted upload sizes
func WithMediaMetrics(m UploadRecorder) MediaControllerOption {
	return func(c *MediaController) *MediaController {
		if m != nil {
			c.Metrics = m
		}
		return c
	}
}

// WithMediaLogger sets the logger
func WithMediaLogger(logger Logger) MediaControllerOption {
	return func(c *MediaController) *MediaController {
		c.Logger = ensureLogger(logger)
		return c
	}
}

// NewMediaController builds the controller with a default media store
func NewMediaController(opts ...MediaControllerOption) *MediaController {
	c := &MediaController{
		Metrics: noopUploadRecorder{},
		Logger:  ensureLogger(nil),
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Store == nil {
		c.Store = NewMediaStore(nil, c.Logger)
	}

	if c.Gate == nil {
		panic("Missing Gate in media controller...")
	}

	return c
}

// RegisterMediaRoutes mounts the upload routes and serves stored files
// under MediaURLPrefix
func RegisterMediaRoutes[T any](app router.Router[T], opts ...MediaControllerOption) {

	controller := NewMediaController(opts...)

	app.Post("/upload/image", controller.UploadImage,
		ProtectedRoute(controller.Gate, RoleUser),
	).SetName("upload.image")

	app.Post("/upload/bytes", controller.UploadBytes).
		SetName("upload.bytes")

	app.Post("/upload/file", controller.UploadFile).
		SetName("upload.file")

	app.Static(MediaURLPrefix, controller.Store.Dir())
}

// UploadImage stores a png or jpeg and answers with its public url
func (m *MediaController) UploadImage(ctx router.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return ErrFileRequired
	}

	stored, err := m.Store.Save(fh)
	if err != nil {
		return err
	}

	m.Metrics.RecordUpload(stored.Size)

	return ctx.JSON(http.StatusCreated, stored)
}

func (m *MediaController) UploadBytes(ctx router.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return ErrFileRequired
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"filename":   fh.Filename,
		"size_bytes": fh.Size,
	})
}

func (m *MediaController) UploadFile(ctx router.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return ErrFileRequired
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"filename":     fh.Filename,
		"content_type": mediaType(fh.Header.Get("Content-Type")),
	})
}

// Pinger reports store reachability
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler returns {"status":"ok"} once the store answers a ping
func HealthHandler(db Pinger, logger Logger) router.HandlerFunc {
	logger = ensureLogger(logger)
	return func(ctx router.Context) error {
		c, cancel := context.WithTimeout(ctx.Context(), healthPingTimeout)
		defer cancel()

		if err := db.PingContext(c); err != nil {
			logger.Error("health check failed", "error", err)
			return goerrors.Wrap(err, goerrors.CategoryExternal, "database unavailable").
				WithCode(http.StatusServiceUnavailable).
				WithTextCode(ErrDatabaseUnavailable.TextCode)
		}

		return ctx.JSON(http.StatusOK, router.ViewContext{"status": "ok"})
	}
}
