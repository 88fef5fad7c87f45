package blog

import (
	"context"

	"github.com/goliatone/go-blog/middleware/jwtware"
	"github.com/goliatone/go-router"
)

var userCtxKey = &contextKey{"user"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok && raw != nil
}

// UserFromRouter returns the principal stored by the jwt middleware,
// it falls back to the standard context.
func UserFromRouter(ctx router.Context) (*User, bool) {
	if user, ok := ctx.Locals(jwtware.DefaultContextKey).(*User); ok && user != nil {
		return user, true
	}
	return FromContext(ctx.Context())
}

// CurrentUser is UserFromRouter returning ErrUnauthenticated on a miss
func CurrentUser(ctx router.Context) (*User, error) {
	user, ok := UserFromRouter(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return user, nil
}
