package blog

import (
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-blog/pagination"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// LoginRecorder counts login outcomes
type LoginRecorder interface {
	RecordLogin(outcome string)
}

type noopLoginRecorder struct{}

func (noopLoginRecorder) RecordLogin(string) {}

// RegisterAuthRoutes mounts the /auth endpoints
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {

	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("auth.register")

	loginMw := []router.MiddlewareFunc{}
	if controller.Limiter != nil {
		loginMw = append(loginMw, controller.Limiter.Middleware())
	}

	app.Post(controller.Routes.Login, controller.LoginPost, loginMw...).
		SetName("auth.login")

	app.Get(controller.Routes.Me, controller.Me,
		ProtectedRoute(controller.Auther, RoleUser),
	).SetName("auth.me")

	app.Put(controller.Routes.Role+"/:id", controller.SetRole,
		ProtectedRoute(controller.Auther, RoleAdmin),
	).SetName("auth.role")

	app.Put(controller.Routes.Status+"/:id", controller.SetStatus,
		ProtectedRoute(controller.Auther, RoleAdmin),
	).SetName("auth.status")
}

// AuthControllerRoutes holds the route paths
type AuthControllerRoutes struct {
	Register string
	Login    string
	Me       string
	Role     string
	Status   string
}

// AuthController serves registration, login and principal management
type AuthController struct {
	Logger       Logger
	Repo         RepositoryManager
	Routes       *AuthControllerRoutes
	Auther       *Auther
	Limiter      *IPRateLimiter
	Metrics      LoginRecorder
	ActivitySink ActivitySink
	StateMachine UserStateMachine
}

// AuthControllerOption configures an AuthController
type AuthControllerOption func(*AuthController) *AuthController

// WithAuthRepository sets the repository manager
func WithAuthRepository(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

// WithAuthAuther sets the authenticator used for login and the gate
func WithAuthAuther(auther *Auther) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

// WithAuthLimiter rate limits the login route
func WithAuthLimiter(limiter *IPRateLimiter) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Limiter = limiter
		return c
	}
}

// WithAuthMetrics records login outcomes
func WithAuthMetrics(m LoginRecorder) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if m != nil {
			c.Metrics = m
		}
		return c
	}
}

// WithAuthLogger sets the logger
func WithAuthLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = ensureLogger(logger)
		return c
	}
}

// WithAuthActivitySink sets the sink for register and role events
func WithAuthActivitySink(sink ActivitySink) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.ActivitySink = normalizeActivitySink(sink)
		return c
	}
}

// WithAuthStateMachine overrides the status state machine
func WithAuthStateMachine(sm UserStateMachine) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.StateMachine = sm
		return c
	}
}

// NewAuthController builds the controller, it panics without a repository or auther
func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       ensureLogger(nil),
		Metrics:      noopLoginRecorder{},
		ActivitySink: noopActivitySink{},
		Routes: &AuthControllerRoutes{
			Register: "/auth/register",
			Login:    "/auth/login",
			Me:       "/auth/me",
			Role:     "/auth/role",
			Status:   "/auth/status",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing Auther in auth controller...")
	}

	if c.StateMachine == nil {
		c.StateMachine = NewUserStateMachine(c.Repo.Users(),
			WithStateMachineActivitySink(c.ActivitySink),
			WithStateMachineLogger(c.Logger),
		)
	}

	return c
}

// TokenResponse is returned by register and login
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	User        *User  `json:"user"`
}

func (a *AuthController) tokenResponse(user *User, token string) TokenResponse {
	return TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(a.Auther.TokenService().TTL().Seconds()),
		User:        user,
	}
}

// RegistrationCreatePayload is the register payload
type RegistrationCreatePayload struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
	FullName string `form:"full_name" json:"full_name"`
}

func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)
	if err := bindPayload(ctx, payload); err != nil {
		return err
	}

	var user *User
	registerUser := NewRegisterUserHandler(a.Repo, a.ActivitySink, a.Logger)
	if a.Auther.passwords != nil {
		registerUser.passwords = a.Auther.passwords
	}

	err := registerUser.Execute(ctx.Context(), RegisterUserMessage{
		Email:    payload.Email,
		Password: payload.Password,
		FullName: payload.FullName,
		OnResponse: func(u *User) {
			user = u
		},
	})
	if err != nil {
		a.Logger.Info("register user rejected", "email", NormalizeEmail(payload.Email), "error", err)
		return err
	}

	token, err := a.Auther.TokenService().Generate(user)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, a.tokenResponse(user, token))
}

// LoginRequest accepts JSON {email, password} or the OAuth2 password
// form {username, password}
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	if strings.TrimSpace(r.Email) != "" {
		return r.Email
	}
	return r.Username
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	identifier := r.GetIdentifier()
	return validation.Errors{
		"email":    validation.Validate(identifier, validation.Required, is.EmailFormat),
		"password": validation.Validate(r.Password, validation.Required),
	}.Filter()
}

// LoginPost accepts JSON or form credentials and returns a token
func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := bindPayload(ctx, payload); err != nil {
		return err
	}

	if verr := goerrors.ValidateWithOzzo(payload.Validate, "invalid login payload"); verr != nil {
		return verr
	}

	user, token, err := a.Auther.Login(ctx.Context(), payload.GetIdentifier(), payload.Password)
	if err != nil {
		a.Metrics.RecordLogin("failure")
		return err
	}

	a.Metrics.RecordLogin("success")
	return ctx.JSON(http.StatusOK, a.tokenResponse(user, token))
}

func (a *AuthController) Me(ctx router.Context) error {
	user, err := CurrentUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, user)
}

// RoleUpdatePayload holds the new role
type RoleUpdatePayload struct {
	Role string `form:"role" json:"role"`
}

func (a *AuthController) SetRole(ctx router.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}

	payload := new(RoleUpdatePayload)
	if err := bindPayload(ctx, payload); err != nil {
		return err
	}

	actor, err := CurrentUser(ctx)
	if err != nil {
		return err
	}

	role, _ := ParseRole(payload.Role)

	var user *User
	changeRole := NewChangeRoleHandler(a.Repo, a.ActivitySink, a.Logger)
	err = changeRole.Execute(ctx.Context(), ChangeRoleMessage{
		Actor:  actor,
		UserID: id,
		Role:   role,
		OnResponse: func(u *User) {
			user = u
		},
	})
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, user)
}

// StatusUpdatePayload holds the new status
type StatusUpdatePayload struct {
	Status string `form:"status" json:"status"`
	Reason string `form:"reason" json:"reason"`
}

func (a *AuthController) SetStatus(ctx router.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}

	payload := new(StatusUpdatePayload)
	if err := bindPayload(ctx, payload); err != nil {
		return err
	}

	actor, err := CurrentUser(ctx)
	if err != nil {
		return err
	}

	var user *User
	changeStatus := NewChangeStatusHandler(a.Repo, a.StateMachine)
	err = changeStatus.Execute(ctx.Context(), ChangeStatusMessage{
		Actor:  actor,
		UserID: id,
		Status: UserStatus(strings.ToLower(strings.TrimSpace(payload.Status))),
		Reason: strings.TrimSpace(payload.Reason),
		OnResponse: func(u *User) {
			user = u
		},
	})
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, user)
}

func bindPayload(ctx router.Context, payload any) error {
	if err := ctx.Bind(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to parse request body").
			WithCode(http.StatusBadRequest).
			WithTextCode("INVALID_BODY")
	}
	return nil
}

func parseID(ctx router.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(ctx.Param(name)))
	if err != nil {
		return uuid.Nil, ErrInvalidID
	}
	return id, nil
}

// listRequest reads the shared list query parameters, q is an alias of search
func listRequest(ctx router.Context) pagination.Request {
	search := ctx.Query("search")
	if search == "" {
		search = ctx.Query("q")
	}

	return pagination.Request{
		Page:      ctx.QueryInt("page", 0),
		PerPage:   ctx.QueryInt("per_page", 0),
		OrderBy:   ctx.Query("order_by"),
		Direction: ctx.Query("direction"),
		Search:    search,
	}
}
