package blog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-blog"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestUserStateMachineDeactivates(t *testing.T) {
	repo := &MockUsers{}
	sink := &capturingSink{}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	before := time.Now().UTC()
	user := &blog.User{ID: uuid.New(), Status: blog.UserStatusActive}

	repo.On("UpdateStatusTx", mock.Anything, mock.Anything, user.ID, blog.UserStatusInactive).
		Return(&blog.User{ID: user.ID, Status: blog.UserStatusInactive, UpdatedAt: &now}, nil).Once()

	sm := blog.NewUserStateMachine(repo, blog.WithStateMachineActivitySink(sink))

	result, err := sm.Transition(context.Background(), nil, blog.ActorRef{ID: "admin", Type: "user"}, user,
		blog.UserStatusInactive,
		blog.WithTransitionReason("spam"),
		blog.WithTransitionMetadata(map[string]any{"ticket": "T-1"}),
	)
	require.NoError(t, err)
	assert.Equal(t, blog.UserStatusInactive, result.Status)
	assert.Equal(t, &now, result.UpdatedAt)

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, blog.ActivityEventUserStatusChanged, events[0].EventType)
	assert.Equal(t, blog.UserStatusActive, events[0].FromStatus)
	assert.Equal(t, blog.UserStatusInactive, events[0].ToStatus)
	assert.Equal(t, "admin", events[0].Actor.ID)
	assert.False(t, events[0].OccurredAt.Before(before))
	assert.Equal(t, "spam", events[0].Metadata["reason"])
	assert.Equal(t, "T-1", events[0].Metadata["ticket"])

	repo.AssertExpectations(t)
}

func TestUserStateMachineSameStatusIsNoop(t *testing.T) {
	repo := &MockUsers{}
	sink := &capturingSink{}
	user := &blog.User{ID: uuid.New(), Status: blog.UserStatusInactive}

	sm := blog.NewUserStateMachine(repo, blog.WithStateMachineActivitySink(sink))

	result, err := sm.Transition(context.Background(), nil, blog.ActorRef{}, user, blog.UserStatusInactive)
	require.NoError(t, err)
	assert.Same(t, user, result)
	assert.Empty(t, sink.Events())
	repo.AssertNotCalled(t, "UpdateStatusTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUserStateMachineRejectsUnknownStatus(t *testing.T) {
	repo := &MockUsers{}
	user := &blog.User{ID: uuid.New(), Status: blog.UserStatusActive}

	sm := blog.NewUserStateMachine(repo)

	_, err := sm.Transition(context.Background(), nil, blog.ActorRef{}, user, blog.UserStatus("archived"))
	require.Error(t, err)
	assert.ErrorIs(t, err, blog.ErrInvalidTransition)
	assert.Equal(t, "INVALID_USER_STATE_TRANSITION", textCode(t, err))

	_, err = sm.Transition(context.Background(), nil, blog.ActorRef{}, nil, blog.UserStatusActive)
	assert.ErrorIs(t, err, blog.ErrInvalidTransition)

	repo.AssertNotCalled(t, "UpdateStatusTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUserStateMachineHooks(t *testing.T) {
	repo := &MockUsers{}
	user := &blog.User{ID: uuid.New(), Status: blog.UserStatusInactive}

	sm := blog.NewUserStateMachine(repo)

	t.Run("before hook aborts", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := sm.Transition(context.Background(), nil, blog.ActorRef{}, user, blog.UserStatusActive,
			blog.WithBeforeTransitionHook(func(context.Context, blog.TransitionContext) error { return boom }),
		)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, blog.UserStatusInactive, user.Status)
	})

	t.Run("hook sees the pending transition", func(t *testing.T) {
		repo.On("UpdateStatusTx", mock.Anything, mock.Anything, user.ID, blog.UserStatusActive).
			Return(&blog.User{ID: user.ID, Status: blog.UserStatusActive}, nil).Once()

		var seen blog.TransitionContext
		_, err := sm.Transition(context.Background(), nil, blog.ActorRef{ID: "admin"}, user, blog.UserStatusActive,
			blog.WithTransitionReason("appeal"),
			blog.WithBeforeTransitionHook(func(_ context.Context, tc blog.TransitionContext) error {
				seen = tc
				return nil
			}),
		)
		require.NoError(t, err)
		assert.Equal(t, blog.UserStatusInactive, seen.From)
		assert.Equal(t, blog.UserStatusActive, seen.To)
		assert.Equal(t, "admin", seen.Actor.ID)
		assert.Equal(t, "appeal", seen.Meta.Reason)
		repo.AssertExpectations(t)
	})
}

func TestUserStateMachineWithStore(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)
	user := createUser(t, repo, "lifecycle@example.com", blog.RoleUser)

	sm := blog.NewUserStateMachine(repo.Users())
	assert.True(t, sm.CanTransition(blog.UserStatusActive, blog.UserStatusInactive))
	assert.True(t, sm.CanTransition(blog.UserStatusInactive, blog.UserStatusActive))
	assert.False(t, sm.CanTransition(blog.UserStatusActive, blog.UserStatus("banned")))

	_, err := sm.Transition(ctx, repo.DB(), blog.ActorRef{Type: "system"}, user, blog.UserStatusInactive)
	require.NoError(t, err)

	stored, err := repo.Users().GetByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.Equal(t, blog.UserStatusInactive, stored.Status)
	assert.False(t, stored.IsActive())
}
