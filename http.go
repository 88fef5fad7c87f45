package blog

import (
	"fmt"
	"net/http"
	"time"

	"github.com/goliatone/go-blog/middleware/jwtware"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-repository-bun"
)

// HeaderProcessTime carries the handler duration in seconds
const HeaderProcessTime = "X-Process-Time"

const internalErrorMessage = "An unexpected server error occurred"

// ErrorBody is the public part of an error, it never carries sources
// or stack traces
type ErrorBody struct {
	Category   goerrors.Category `json:"category"`
	Code       int               `json:"code"`
	TextCode   string            `json:"text_code"`
	Message    string            `json:"message"`
	Validation map[string]string `json:"validation,omitempty"`
}

// ErrorResponse is the error envelope returned by every route
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ToErrorResponse maps err to its status code and public envelope.
// 500 responses use a generic message.
func ToErrorResponse(err error) (int, ErrorResponse) {
	status := HTTPStatus(err)
	body := ErrorBody{
		Category: Categorize(err),
		Code:     status,
		TextCode: goerrors.HTTPStatusToTextCode(status),
		Message:  http.StatusText(status),
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		if rich.TextCode != "" && !isStoreCategory(rich.Category) {
			body.TextCode = rich.TextCode
		}
		if rich.Message != "" && !isStoreCategory(rich.Category) && status < http.StatusInternalServerError {
			body.Message = rich.Message
		}
	}

	switch status {
	case http.StatusInternalServerError:
		body.Message = internalErrorMessage
	case http.StatusConflict:
		if rich != nil && isStoreCategory(rich.Category) {
			body.Message = "resource already exists"
		}
	case http.StatusNotFound:
		if rich != nil && isStoreCategory(rich.Category) {
			body.Message = "resource not found"
		}
	}

	if fields, ok := goerrors.GetValidationErrors(err); ok {
		body.Validation = make(map[string]string, len(fields))
		for _, f := range fields {
			body.Validation[f.Field] = f.Message
		}
	}

	return status, ErrorResponse{Error: body}
}

func isStoreCategory(c goerrors.Category) bool {
	switch c {
	case repository.CategoryDatabase,
		repository.CategoryDatabaseNotFound,
		repository.CategoryDatabaseConstraint,
		repository.CategoryDatabaseDuplicate,
		repository.CategoryDatabaseExpectedCount:
		return true
	}
	return false
}

// NewErrorHandler renders errors as the JSON envelope
func NewErrorHandler(logger Logger) router.ErrorHandler {
	logger = ensureLogger(logger)
	return func(c router.Context, err error) error {
		status, res := ToErrorResponse(err)

		var rich *goerrors.Error
		var metadata map[string]any
		if goerrors.As(err, &rich) {
			metadata = rich.Metadata
		}

		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				"method", c.Method(),
				"path", c.Path(),
				"error", err,
				"details", print.MaybePrettyJSON(metadata),
			)
		} else {
			logger.Debug("request rejected",
				"method", c.Method(),
				"path", c.Path(),
				"status", status,
				"text_code", res.Error.TextCode,
				"error", err,
			)
		}

		return c.JSON(status, res)
	}
}

// ErrorMiddleware renders any error returned further down the chain.
// It must be registered before the routes it should cover.
func ErrorMiddleware(handler router.ErrorHandler) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if err := ctx.Next(); err != nil {
				return handler(ctx, err)
			}
			return nil
		}
	}
}

// ProcessTimeMiddleware sets X-Process-Time on every response
func ProcessTimeMiddleware() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			start := time.Now()
			err := ctx.Next()
			ctx.SetHeader(HeaderProcessTime, fmt.Sprintf("%.6f", time.Since(start).Seconds()))
			return err
		}
	}
}

// ProtectedRoute returns a middleware that resolves the bearer token
// through the gate and requires minRole. The principal is stored in
// locals and in the request context.
func ProtectedRoute(gate Gate, minRole UserRole) router.MiddlewareFunc {
	return jwtware.New(jwtware.Config[*User]{
		Authenticator: gate.Authenticate,
		Authorizers: []jwtware.Authorizer[*User]{
			gate.Require(minRole),
		},
		ContextEnricher: WithContext,
		ErrorHandler: func(c router.Context, err error) error {
			if goerrors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
				return unauthenticated(err, ErrUnauthenticated.TextCode)
			}
			return err
		},
	})
}
