package blog

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Gate resolves bearer tokens into principals and checks their role
type Gate interface {
	Authenticate(ctx context.Context, token string) (*User, error)
	Require(minRole UserRole) func(*User) (*User, error)
	Authorize(ctx context.Context, token string, minRole UserRole) (*User, error)
}

// Auther verifies credentials, issues tokens and implements Gate
type Auther struct {
	users        Users
	tokenService TokenService
	passwords    PasswordAuthenticator
	logger       Logger
	activitySink ActivitySink
}

var _ Gate = (*Auther)(nil)

// AutherOption configures an Auther
type AutherOption func(*Auther)

// WithAutherLogger sets the logger
func WithAutherLogger(logger Logger) AutherOption {
	return func(s *Auther) {
		s.logger = ensureLogger(logger)
	}
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func WithActivitySink(sink ActivitySink) AutherOption {
	return func(s *Auther) {
		s.activitySink = normalizeActivitySink(sink)
	}
}

// WithPasswordAuthenticator replaces the bcrypt password checks
func WithPasswordAuthenticator(p PasswordAuthenticator) AutherOption {
	return func(s *Auther) {
		if p != nil {
			s.passwords = p
		}
	}
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(users Users, tokenService TokenService, opts ...AutherOption) *Auther {
	s := &Auther{
		users:        users,
		tokenService: tokenService,
		passwords:    DefaultPasswordAuthenticator,
		logger:       ensureLogger(nil),
		activitySink: noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login checks the credentials of an active principal and returns a
// fresh token. Unknown emails, wrong passwords and inactive principals
// all fail with ErrInvalidCredentials.
func (s *Auther) Login(ctx context.Context, email, password string) (*User, string, error) {
	email = NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !IsNotFound(err) {
			s.logger.Error("login lookup failed", "error", err)
			return nil, "", err
		}
		s.loginFailed(ctx, nil, email, "unknown email")
		return nil, "", ErrInvalidCredentials
	}

	if err := s.passwords.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		s.loginFailed(ctx, user, email, "password mismatch")
		return nil, "", ErrInvalidCredentials
	}

	if !user.IsActive() {
		s.loginFailed(ctx, user, email, "inactive")
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokenService.Generate(user)
	if err != nil {
		s.logger.Error("login failed to issue token", "error", err)
		return nil, "", err
	}

	emitActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorFromUser(user),
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"email": email},
	})

	return user, token, nil
}

func (s *Auther) loginFailed(ctx context.Context, user *User, email, reason string) {
	s.logger.Warn("login rejected", "email", email, "reason", reason)

	event := ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Actor:     ActorRef{Type: "unknown"},
		Metadata:  map[string]any{"email": email, "reason": reason},
	}
	if user != nil {
		event.Actor = ActorFromUser(user)
		event.UserID = user.ID.String()
	}

	emitActivity(ctx, s.activitySink, s.logger, event)
}

// Authenticate validates the token and resolves its subject. Every
// failure is reported as ErrUnauthenticated, expired and malformed
// tokens keep their own text code.
func (s *Auther) Authenticate(ctx context.Context, token string) (*User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := s.tokenService.Validate(token)
	if err != nil {
		s.logger.Debug("token rejected", "error", err)
		return nil, unauthenticated(err, textCodeOf(err))
	}

	id, err := uuid.Parse(claims.Subject())
	if err != nil {
		return nil, unauthenticated(err, ErrUnauthenticated.TextCode)
	}

	user, err := s.users.GetByID(ctx, id.String())
	if err != nil {
		if IsNotFound(err) {
			return nil, unauthenticated(err, ErrUnauthenticated.TextCode)
		}
		return nil, err
	}

	if !user.IsActive() {
		return nil, unauthenticated(goerrors.New("principal is inactive", goerrors.CategoryAuth), "USER_INACTIVE")
	}

	return user, nil
}

// Require returns a check that passes principals whose role rank is at
// least minRole. Unknown roles are always forbidden.
func (s *Auther) Require(minRole UserRole) func(*User) (*User, error) {
	return func(user *User) (*User, error) {
		if user == nil {
			return nil, ErrUnauthenticated
		}
		if !user.Role.IsAtLeast(minRole) {
			return nil, goerrors.Wrap(ErrForbidden, ErrForbidden.Category, ErrForbidden.Message).
				WithCode(ErrForbidden.Code).
				WithTextCode(ErrForbidden.TextCode).
				WithMetadata(map[string]any{
					"required": minRole,
					"role":     user.Role,
				})
		}
		return user, nil
	}
}

// Authorize runs Authenticate followed by Require(minRole)
func (s *Auther) Authorize(ctx context.Context, token string, minRole UserRole) (*User, error) {
	user, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.Require(minRole)(user)
}

func unauthenticated(source error, textCode string) error {
	if textCode == "" {
		textCode = ErrUnauthenticated.TextCode
	}
	return goerrors.Wrap(source, goerrors.CategoryAuth, ErrUnauthenticated.Message).
		WithCode(ErrUnauthenticated.Code).
		WithTextCode(textCode)
}

func textCodeOf(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode
	}
	return ""
}
