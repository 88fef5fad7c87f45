package blog

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const commandTimeout = 10 * time.Second

// RegisterUserMessage creates a principal
type RegisterUserMessage struct {
	Email      string      `json:"email"`
	Password   string      `json:"password"`
	FullName   string      `json:"full_name"`
	Role       UserRole    `json:"role"`
	Status     UserStatus  `json:"status"`
	UseHashid  bool        `json:"-"`
	OnResponse func(*User) `json:"-"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate will run validation rules
func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, validation.Length(3, 254), is.EmailFormat),
		validation.Field(&e.Password, validation.Required, validation.Length(8, 72)),
		validation.Field(&e.FullName, validation.Length(0, 120)),
		validation.Field(&e.Role, validation.By(validRole(true))),
	)
}

// RegisterUserHandler stores a new principal in a single transaction
type RegisterUserHandler struct {
	repo         RepositoryManager
	passwords    PasswordAuthenticator
	activitySink ActivitySink
	logger       Logger
}

var _ command.Commander[RegisterUserMessage] = (*RegisterUserHandler)(nil)

// NewRegisterUserHandler returns a handler backed by repo
func NewRegisterUserHandler(repo RepositoryManager, sink ActivitySink, logger Logger) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:         repo,
		passwords:    DefaultPasswordAuthenticator,
		activitySink: normalizeActivitySink(sink),
		logger:       ensureLogger(logger),
	}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	if verr := goerrors.ValidateWithOzzo(event.Validate, "invalid registration payload"); verr != nil {
		return verr
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	hash, err := h.passwords.HashPassword(event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided").
				WithCode(goerrors.CodeBadRequest)
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		Email:        NormalizeEmail(event.Email),
		PasswordHash: hash,
		FullName:     strings.TrimSpace(event.FullName),
		Role:         event.Role,
		Status:       event.Status,
	}

	if event.UseHashid {
		if id, err := hashid.NewUUID(user.Email); err == nil {
			user.ID = id
		}
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := h.repo.Users().RegisterTx(ctx, tx, user)
		if err != nil {
			return err
		}
		user = created
		return nil
	})

	if err != nil {
		if IsDuplicate(err) {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "email already registered").
				WithCode(goerrors.CodeConflict).
				WithTextCode("EMAIL_TAKEN")
		}

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return err
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	emitActivity(ctx, h.activitySink, h.logger, ActivityEvent{
		EventType: ActivityEventUserRegistered,
		Actor:     ActorFromUser(user),
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"email": user.Email, "role": user.Role},
	})

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}

// ChangeRoleMessage updates the role of a principal
type ChangeRoleMessage struct {
	Actor      *User       `json:"-"`
	UserID     uuid.UUID   `json:"user_id"`
	Role       UserRole    `json:"role"`
	OnResponse func(*User) `json:"-"`
}

func (e ChangeRoleMessage) Type() string { return "user.role.change" }

// Validate will run validation rules
func (e ChangeRoleMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.UserID, validation.By(requiredUUID)),
		validation.Field(&e.Role, validation.Required, validation.By(validRole(false))),
	)
}

// ChangeRoleHandler changes roles, only admins may call it
type ChangeRoleHandler struct {
	repo         RepositoryManager
	activitySink ActivitySink
	logger       Logger
}

var _ command.Commander[ChangeRoleMessage] = (*ChangeRoleHandler)(nil)

// NewChangeRoleHandler returns a handler backed by repo
func NewChangeRoleHandler(repo RepositoryManager, sink ActivitySink, logger Logger) *ChangeRoleHandler {
	return &ChangeRoleHandler{
		repo:         repo,
		activitySink: normalizeActivitySink(sink),
		logger:       ensureLogger(logger),
	}
}

func (h *ChangeRoleHandler) Execute(ctx context.Context, event ChangeRoleMessage) error {
	if err := ctx.Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled during role change")
	}

	if verr := goerrors.ValidateWithOzzo(event.Validate, "invalid role payload"); verr != nil {
		return verr
	}

	if event.Actor == nil || !event.Actor.Role.CanManageUsers() {
		return ErrForbidden
	}

	var from UserRole
	var user *User

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current, err := h.repo.Users().GetByIDTx(ctx, tx, event.UserID.String())
		if err != nil {
			return userNotFound(err)
		}
		from = current.Role

		if current.Role == event.Role {
			user = current
			return nil
		}

		if _, err := h.repo.Users().UpdateRoleTx(ctx, tx, current.ID, event.Role); err != nil {
			return err
		}
		current.Role = event.Role
		user = current
		return nil
	})
	if err != nil {
		return err
	}

	if from != event.Role {
		emitActivity(ctx, h.activitySink, h.logger, ActivityEvent{
			EventType: ActivityEventUserRoleChanged,
			Actor:     ActorFromUser(event.Actor),
			UserID:    user.ID.String(),
			Metadata:  map[string]any{"from": from, "to": event.Role},
		})
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}

// ChangeStatusMessage activates or deactivates a principal
type ChangeStatusMessage struct {
	Actor      *User       `json:"-"`
	UserID     uuid.UUID   `json:"user_id"`
	Status     UserStatus  `json:"status"`
	Reason     string      `json:"reason"`
	OnResponse func(*User) `json:"-"`
}

func (e ChangeStatusMessage) Type() string { return "user.status.change" }

// Validate will run validation rules
func (e ChangeStatusMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.UserID, validation.By(requiredUUID)),
		validation.Field(&e.Status, validation.Required, validation.In(UserStatusActive, UserStatusInactive)),
		validation.Field(&e.Reason, validation.Length(0, 255)),
	)
}

// ChangeStatusHandler runs status changes through the state machine
type ChangeStatusHandler struct {
	repo         RepositoryManager
	stateMachine UserStateMachine
}

var _ command.Commander[ChangeStatusMessage] = (*ChangeStatusHandler)(nil)

// NewChangeStatusHandler returns a handler backed by repo
func NewChangeStatusHandler(repo RepositoryManager, sm UserStateMachine) *ChangeStatusHandler {
	return &ChangeStatusHandler{repo: repo, stateMachine: sm}
}

func (h *ChangeStatusHandler) Execute(ctx context.Context, event ChangeStatusMessage) error {
	if err := ctx.Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled during status change")
	}

	if verr := goerrors.ValidateWithOzzo(event.Validate, "invalid status payload"); verr != nil {
		return verr
	}

	if event.Actor == nil || !event.Actor.Role.CanManageUsers() {
		return ErrForbidden
	}

	var user *User
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current, err := h.repo.Users().GetByIDTx(ctx, tx, event.UserID.String())
		if err != nil {
			return userNotFound(err)
		}

		opts := []TransitionOption{
			WithTransitionMetadata(map[string]any{"actor_role": event.Actor.Role}),
			WithBeforeTransitionHook(preventSelfDeactivation),
		}
		if event.Reason != "" {
			opts = append(opts, WithTransitionReason(event.Reason))
		}

		user, err = h.stateMachine.Transition(ctx, tx, ActorFromUser(event.Actor), current, event.Status, opts...)
		return err
	})
	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}

// preventSelfDeactivation keeps an admin from locking themselves out
func preventSelfDeactivation(_ context.Context, tc TransitionContext) error {
	if tc.To == UserStatusInactive && tc.User != nil && tc.Actor.ID == tc.User.ID.String() {
		return ErrSelfDeactivation
	}
	return nil
}

func userNotFound(err error) error {
	if IsNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryNotFound, "user not found").
			WithCode(goerrors.CodeNotFound).
			WithTextCode("USER_NOT_FOUND")
	}
	return err
}

func validRole(allowEmpty bool) validation.RuleFunc {
	return func(value any) error {
		role, _ := value.(UserRole)
		if role == "" && allowEmpty {
			return nil
		}
		if !role.IsValid() {
			return validation.NewError("validation_invalid_role", "must be one of user, editor or admin")
		}
		return nil
	}
}

func requiredUUID(value any) error {
	id, _ := value.(uuid.UUID)
	if id == uuid.Nil {
		return validation.ErrRequired
	}
	return nil
}
