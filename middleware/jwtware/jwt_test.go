package jwtware_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-blog/middleware/jwtware"
)

type principal struct {
	ID   string
	Role string
}

var errBadToken = errors.New("bad token")

func authenticate(ctx context.Context, token string) (*principal, error) {
	switch token {
	case "good":
		return &principal{ID: "u1", Role: "user"}, nil
	case "admin":
		return &principal{ID: "u2", Role: "admin"}, nil
	}
	return nil, errBadToken
}

func requireAdmin(p *principal) (*principal, error) {
	if p.Role != "admin" {
		return nil, errors.New("forbidden")
	}
	return p, nil
}

func final(router.Context) error { return nil }

func newConfig() jwtware.Config[*principal] {
	return jwtware.Config[*principal]{
		Authenticator: authenticate,
		ErrorHandler: func(ctx router.Context, err error) error {
			return err
		},
	}
}

func TestJWTWare_BasicHeaderExtraction(t *testing.T) {
	handler := jwtware.New(newConfig())(final)

	ctx := router.NewMockContext()
	ctx.HeadersM["Authorization"] = "Bearer good"
	ctx.On("Context").Return(context.Background())
	ctx.On("Locals", "user", mock.AnythingOfType("*jwtware_test.principal")).Return(nil)

	require.NoError(t, handler(ctx))
	assert.True(t, ctx.NextCalled)

	p, ok := ctx.LocalsMock["user"].(*principal)
	require.True(t, ok)
	assert.Equal(t, "u1", p.ID)
}

func TestJWTWare_MissingToken(t *testing.T) {
	handler := jwtware.New(newConfig())(final)

	ctx := router.NewMockContext()
	err := handler(ctx)
	assert.ErrorIs(t, err, jwtware.ErrJWTMissingOrMalformed)
	assert.False(t, ctx.NextCalled)
}

func TestJWTWare_WrongScheme(t *testing.T) {
	handler := jwtware.New(newConfig())(final)

	for _, header := range []string{"Basic good", "Bearer", "Bearer ", "Bearergood", "good"} {
		t.Run(header, func(t *testing.T) {
			ctx := router.NewMockContext()
			ctx.HeadersM["Authorization"] = header
			err := handler(ctx)
			assert.ErrorIs(t, err, jwtware.ErrJWTMissingOrMalformed)
		})
	}
}

func TestJWTWare_SchemeIsCaseInsensitive(t *testing.T) {
	handler := jwtware.New(newConfig())(final)

	ctx := router.NewMockContext()
	ctx.HeadersM["Authorization"] = "bearer good"
	ctx.On("Context").Return(context.Background())
	ctx.On("Locals", "user", mock.Anything).Return(nil)

	require.NoError(t, handler(ctx))
	assert.True(t, ctx.NextCalled)
}

func TestJWTWare_AuthenticatorError(t *testing.T) {
	handler := jwtware.New(newConfig())(final)

	ctx := router.NewMockContext()
	ctx.HeadersM["Authorization"] = "Bearer nope"
	ctx.On("Context").Return(context.Background())

	err := handler(ctx)
	assert.ErrorIs(t, err, errBadToken)
	assert.False(t, ctx.NextCalled)
	assert.Empty(t, ctx.LocalsMock)
}

func TestJWTWare_Authorizers(t *testing.T) {
	cfg := newConfig()
	cfg.Authorizers = []jwtware.Authorizer[*principal]{requireAdmin}
	handler := jwtware.New(cfg)(final)

	t.Run("rejects lower role", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.HeadersM["Authorization"] = "Bearer good"
		ctx.On("Context").Return(context.Background())

		err := handler(ctx)
		assert.EqualError(t, err, "forbidden")
		assert.False(t, ctx.NextCalled)
	})

	t.Run("accepts admin", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.HeadersM["Authorization"] = "Bearer admin"
		ctx.On("Context").Return(context.Background())
		ctx.On("Locals", "user", mock.Anything).Return(nil)

		require.NoError(t, handler(ctx))
		assert.True(t, ctx.NextCalled)
	})
}

func TestJWTWare_FilterFunction(t *testing.T) {
	cfg := newConfig()
	cfg.Filter = func(ctx router.Context) bool { return true }
	handler := jwtware.New(cfg)(final)

	ctx := router.NewMockContext()
	require.NoError(t, handler(ctx))
	assert.True(t, ctx.NextCalled)
}

func TestJWTWare_CustomTokenLookup(t *testing.T) {
	cfg := newConfig()
	cfg.TokenLookup = "query:token,cookie:jwt"
	cfg.ContextKey = "principal"
	handler := jwtware.New(cfg)(final)

	t.Run("query", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.QueriesM["token"] = "good"
		ctx.On("Context").Return(context.Background())
		ctx.On("Locals", "principal", mock.Anything).Return(nil)

		require.NoError(t, handler(ctx))
		assert.True(t, ctx.NextCalled)
	})

	t.Run("cookie", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.CookiesM["jwt"] = "good"
		ctx.On("Context").Return(context.Background())
		ctx.On("Locals", "principal", mock.Anything).Return(nil)

		require.NoError(t, handler(ctx))
		assert.True(t, ctx.NextCalled)
	})

	t.Run("header is ignored", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.HeadersM["Authorization"] = "Bearer good"

		err := handler(ctx)
		assert.ErrorIs(t, err, jwtware.ErrJWTMissingOrMalformed)
	})
}

type ctxKey struct{}

func TestJWTWare_ContextEnricherAndListeners(t *testing.T) {
	var seen []string

	cfg := newConfig()
	cfg.ContextEnricher = func(c context.Context, p *principal) context.Context {
		return context.WithValue(c, ctxKey{}, p.ID)
	}
	cfg.ValidationListeners = []jwtware.ValidationListener[*principal]{
		func(ctx router.Context, p *principal) error {
			seen = append(seen, p.ID)
			return nil
		},
	}
	handler := jwtware.New(cfg)(final)

	ctx := router.NewMockContext()
	ctx.HeadersM["Authorization"] = "Bearer good"
	ctx.On("Context").Return(context.Background())
	ctx.On("Locals", "user", mock.Anything).Return(nil)
	ctx.On("SetContext", mock.MatchedBy(func(c context.Context) bool {
		return c.Value(ctxKey{}) == "u1"
	})).Return()

	require.NoError(t, handler(ctx))
	assert.Equal(t, []string{"u1"}, seen)
	ctx.AssertExpectations(t)
}

func TestJWTWare_ListenerErrorAborts(t *testing.T) {
	boom := errors.New("listener failed")

	cfg := newConfig()
	cfg.ValidationListeners = []jwtware.ValidationListener[*principal]{
		func(router.Context, *principal) error { return boom },
	}
	handler := jwtware.New(cfg)(final)

	ctx := router.NewMockContext()
	ctx.HeadersM["Authorization"] = "Bearer good"
	ctx.On("Context").Return(context.Background())

	assert.ErrorIs(t, handler(ctx), boom)
	assert.False(t, ctx.NextCalled)
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := jwtware.GetDefaultConfig(jwtware.Config[*principal]{Authenticator: authenticate})
	assert.Equal(t, jwtware.DefaultContextKey, cfg.ContextKey)
	assert.Equal(t, "header:Authorization", cfg.TokenLookup)
	assert.Equal(t, "Bearer", cfg.AuthScheme)
	assert.NotNil(t, cfg.ErrorHandler)
	assert.NotNil(t, cfg.SuccessHandler)

	assert.Panics(t, func() {
		jwtware.GetDefaultConfig(jwtware.Config[*principal]{})
	})
}

func TestGetExtractors(t *testing.T) {
	extractors := jwtware.GetExtractors("header:Authorization, query:token ,bogus, param:tok")
	assert.Len(t, extractors, 3)
}
