package blog_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-blog"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestAuther(repo blog.RepositoryManager, opts ...blog.AutherOption) *blog.Auther {
	ts := blog.NewTokenService([]byte(testSigningKey), 30, "go-blog")
	return blog.NewAuthenticator(repo.Users(), ts, opts...)
}

func textCode(t *testing.T, err error) string {
	t.Helper()
	var rich *goerrors.Error
	require.True(t, goerrors.As(err, &rich), "expected a go-errors value, got %T", err)
	return rich.TextCode
}

func TestAutherLogin(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)
	sink := &capturingSink{}
	auther := newTestAuther(repo, blog.WithActivitySink(sink))

	active := createUser(t, repo, "writer@example.com", blog.RoleUser)
	inactive := createUser(t, repo, "gone@example.com", blog.RoleUser)
	_, err := repo.Users().UpdateStatusTx(ctx, repo.DB(), inactive.ID, blog.UserStatusInactive)
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		user, token, err := auther.Login(ctx, "  Writer@Example.COM ", "password123")
		require.NoError(t, err)
		assert.Equal(t, active.ID, user.ID)
		require.NotEmpty(t, token)

		claims, err := auther.TokenService().Validate(token)
		require.NoError(t, err)
		assert.Equal(t, active.ID.String(), claims.Subject())
		assert.Equal(t, "user", claims.Role())
	})

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "writer@example.com", "nope"},
		{"unknown email", "nobody@example.com", "password123"},
		{"inactive principal", "gone@example.com", "password123"},
		{"empty password", "writer@example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, token, err := auther.Login(ctx, tt.email, tt.password)
			assert.ErrorIs(t, err, blog.ErrInvalidCredentials)
			assert.Nil(t, user)
			assert.Empty(t, token)
			assert.Equal(t, http.StatusUnauthorized, blog.HTTPStatus(err))
		})
	}

	assert.Equal(t, []blog.ActivityEventType{
		blog.ActivityEventLoginSuccess,
		blog.ActivityEventLoginFailure,
		blog.ActivityEventLoginFailure,
		blog.ActivityEventLoginFailure,
		blog.ActivityEventLoginFailure,
	}, sink.Types())

	failure := sink.Events()[2]
	assert.Equal(t, "unknown", failure.Actor.Type)
	assert.Equal(t, "unknown email", failure.Metadata["reason"])
}

func TestAutherAuthenticate(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)
	auther := newTestAuther(repo)

	user := createUser(t, repo, "reader@example.com", blog.RoleUser)
	token, err := auther.TokenService().Generate(user)
	require.NoError(t, err)

	t.Run("valid token resolves the principal", func(t *testing.T) {
		got, err := auther.Authenticate(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, user.Email, got.Email)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := auther.Authenticate(ctx, "   ")
		assert.ErrorIs(t, err, blog.ErrUnauthenticated)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := auther.Authenticate(ctx, "not.a.jwt")
		require.Error(t, err)
		assert.Equal(t, "TOKEN_MALFORMED", textCode(t, err))
		assert.Equal(t, http.StatusUnauthorized, blog.HTTPStatus(err))
	})

	t.Run("token signed with another key", func(t *testing.T) {
		other := blog.NewTokenService([]byte("another-key"), 30, "go-blog")
		forged, err := other.Generate(user)
		require.NoError(t, err)

		_, err = auther.Authenticate(ctx, forged)
		require.Error(t, err)
		assert.Equal(t, "TOKEN_MALFORMED", textCode(t, err))
	})

	t.Run("expired token", func(t *testing.T) {
		past := blog.NewTokenService([]byte(testSigningKey), 30, "go-blog",
			blog.WithTokenClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }),
		)
		expired, err := past.Generate(user)
		require.NoError(t, err)

		_, err = auther.Authenticate(ctx, expired)
		require.Error(t, err)
		assert.Equal(t, "TOKEN_EXPIRED", textCode(t, err))
		assert.Equal(t, http.StatusUnauthorized, blog.HTTPStatus(err))
	})

	t.Run("subject no longer exists", func(t *testing.T) {
		ghost, err := auther.TokenService().Issue(uuid.NewString())
		require.NoError(t, err)

		_, err = auther.Authenticate(ctx, ghost)
		require.Error(t, err)
		assert.Equal(t, "UNAUTHENTICATED", textCode(t, err))
	})

	t.Run("subject is not a uuid", func(t *testing.T) {
		odd, err := auther.TokenService().Issue("writer@example.com")
		require.NoError(t, err)

		_, err = auther.Authenticate(ctx, odd)
		require.Error(t, err)
		assert.Equal(t, "UNAUTHENTICATED", textCode(t, err))
	})

	t.Run("inactive principal with a live token", func(t *testing.T) {
		other := createUser(t, repo, "paused@example.com", blog.RoleUser)
		live, err := auther.TokenService().Generate(other)
		require.NoError(t, err)

		_, err = repo.Users().UpdateStatusTx(ctx, repo.DB(), other.ID, blog.UserStatusInactive)
		require.NoError(t, err)

		_, err = auther.Authenticate(ctx, live)
		require.Error(t, err)
		assert.Equal(t, "USER_INACTIVE", textCode(t, err))
		assert.Equal(t, http.StatusUnauthorized, blog.HTTPStatus(err))
	})
}

func TestAutherAuthorizeReadsRoleFromStore(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)
	auther := newTestAuther(repo)

	user := createUser(t, repo, "climber@example.com", blog.RoleUser)
	token, err := auther.TokenService().Generate(user)
	require.NoError(t, err)

	_, err = auther.Authorize(ctx, token, blog.RoleEditor)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, blog.HTTPStatus(err))
	assert.Equal(t, "FORBIDDEN", textCode(t, err))

	_, err = repo.Users().UpdateRoleTx(ctx, repo.DB(), user.ID, blog.RoleAdmin)
	require.NoError(t, err)

	got, err := auther.Authorize(ctx, token, blog.RoleEditor)
	require.NoError(t, err)
	assert.Equal(t, blog.RoleAdmin, got.Role)
}

func TestAutherRequire(t *testing.T) {
	auther := blog.NewAuthenticator(&MockUsers{}, &MockTokenService{})

	tests := []struct {
		name    string
		role    blog.UserRole
		min     blog.UserRole
		allowed bool
	}{
		{"user meets user", blog.RoleUser, blog.RoleUser, true},
		{"user below editor", blog.RoleUser, blog.RoleEditor, false},
		{"editor meets editor", blog.RoleEditor, blog.RoleEditor, true},
		{"editor below admin", blog.RoleEditor, blog.RoleAdmin, false},
		{"admin meets everything", blog.RoleAdmin, blog.RoleUser, true},
		{"unknown role", blog.UserRole("root"), blog.RoleUser, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := auther.Require(tt.min)(&blog.User{Role: tt.role})
			if tt.allowed {
				require.NoError(t, err)
				assert.NotNil(t, user)
				return
			}
			require.Error(t, err)
			assert.Equal(t, http.StatusForbidden, blog.HTTPStatus(err))
		})
	}

	_, err := auther.Require(blog.RoleUser)(nil)
	assert.ErrorIs(t, err, blog.ErrUnauthenticated)
}

func TestAutherLoginWithMocks(t *testing.T) {
	ctx := context.Background()
	users := &MockUsers{}
	tokens := &MockTokenService{}

	hash, err := blog.HashPassword("password123")
	require.NoError(t, err)

	user := &blog.User{
		ID:           uuid.New(),
		Email:        "mock@example.com",
		PasswordHash: hash,
		Role:         blog.RoleEditor,
		Status:       blog.UserStatusActive,
	}

	users.On("GetByEmail", mock.Anything, "mock@example.com").Return(user, nil).Once()
	tokens.On("Generate", user).Return("signed-token", nil).Once()

	auther := blog.NewAuthenticator(users, tokens)

	got, token, err := auther.Login(ctx, "MOCK@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, user, got)
	assert.Equal(t, "signed-token", token)

	users.AssertExpectations(t)
	tokens.AssertExpectations(t)
}
