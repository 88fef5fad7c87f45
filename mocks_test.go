package blog_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-blog"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

const testSigningKey = "test-signing-key"

type testDBConfig struct {
	dsn string
}

func (c testDBConfig) GetDebug() bool                { return false }
func (c testDBConfig) GetDriver() string             { return blog.DriverSQLite }
func (c testDBConfig) GetServer() string             { return c.dsn }
func (c testDBConfig) GetDSN() string                { return c.dsn }
func (c testDBConfig) GetPingTimeout() time.Duration { return time.Second }
func (c testDBConfig) GetOtelIdentifier() string     { return "" }

// newTestStore opens a private in-memory database with every migration applied
func newTestStore(t *testing.T) blog.RepositoryManager {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_fk=1", name, uuid.NewString()[:8])

	client, err := blog.NewPersistence(testDBConfig{dsn: dsn}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Migrate(context.Background()))

	return blog.NewRepositoryManager(client.DB())
}

// createUser stores a principal whose password is "password123"
func createUser(t *testing.T, repo blog.RepositoryManager, email string, role blog.UserRole) *blog.User {
	t.Helper()

	hash, err := blog.HashPassword("password123")
	require.NoError(t, err)

	user, err := repo.Users().Register(context.Background(), &blog.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.Split(email, "@")[0],
		Role:         role,
		Status:       blog.UserStatusActive,
	})
	require.NoError(t, err)
	return user
}

func createPost(t *testing.T, repo blog.RepositoryManager, author *blog.User, input blog.PostInput) *blog.Post {
	t.Helper()

	var post *blog.Post
	err := repo.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) (err error) {
		post, err = repo.Posts().CreatePost(ctx, tx, author, input)
		return err
	})
	require.NoError(t, err)
	return post
}

// capturingSink keeps every recorded event
type capturingSink struct {
	mu     sync.Mutex
	events []blog.ActivityEvent
}

func (c *capturingSink) Record(_ context.Context, evt blog.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) Events() []blog.ActivityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]blog.ActivityEvent(nil), c.events...)
}

func (c *capturingSink) Types() []blog.ActivityEventType {
	out := []blog.ActivityEventType{}
	for _, evt := range c.Events() {
		out = append(out, evt.EventType)
	}
	return out
}

// MockUsers implements the lookups used by the gate and the state
// machine, anything else panics through the nil embedded interface
type MockUsers struct {
	mock.Mock
	blog.Users
}

func (m *MockUsers) GetByEmail(ctx context.Context, email string) (*blog.User, error) {
	args := m.Called(ctx, email)
	if u, ok := args.Get(0).(*blog.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) GetByID(ctx context.Context, id string, _ ...repository.SelectCriteria) (*blog.User, error) {
	args := m.Called(ctx, id)
	if u, ok := args.Get(0).(*blog.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status blog.UserStatus) (*blog.User, error) {
	args := m.Called(ctx, tx, id, status)
	if u, ok := args.Get(0).(*blog.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockTokenService implements blog.TokenService
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) Issue(subject string, ttl ...time.Duration) (string, error) {
	args := m.Called(subject)
	return args.String(0), args.Error(1)
}

func (m *MockTokenService) Generate(user *blog.User) (string, error) {
	args := m.Called(user)
	return args.String(0), args.Error(1)
}

func (m *MockTokenService) Validate(token string) (blog.AuthClaims, error) {
	args := m.Called(token)
	if c, ok := args.Get(0).(blog.AuthClaims); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTokenService) TTL() time.Duration {
	return 30 * time.Minute
}
