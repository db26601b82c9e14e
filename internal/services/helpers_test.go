package services

import (
	"context"
	"sync"
	"testing"

	"github.com/devsketch/apiserver/config"
	"github.com/devsketch/apiserver/internal/store"
	"github.com/devsketch/apiserver/internal/store/storetest"
	"github.com/devsketch/apiserver/types"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct-horse"

var testAuthConfig = config.AuthConfig{
	AccessTokenSecret:  "access-secret",
	RefreshTokenSecret: "refresh-secret",
	AccessTokenTTL:     config.DefaultAccessTokenTTL,
	RefreshTokenTTL:    config.DefaultRefreshTokenTTL,
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []types.SecurityEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event types.SecurityEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) eventTypes() []types.SecurityEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.SecurityEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	db          *sqlx.DB
	users       *store.UserRepository
	roles       *store.RoleRepository
	projectRepo *store.ProjectRepository
	events      *recordingPublisher
	tokens      *TokenService
	coordinator *RefreshCoordinator
	authz       *AuthzService
	auth        *AuthService
	projects    *ProjectService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := storetest.Open(t)
	logger := zap.NewNop()
	env := &testEnv{
		db:          db,
		users:       store.NewUserRepository(db),
		roles:       store.NewRoleRepository(db),
		projectRepo: store.NewProjectRepository(db),
		events:      &recordingPublisher{},
	}
	env.tokens = NewTokenService(env.users, testAuthConfig, env.events, logger)
	env.coordinator = NewRefreshCoordinator(env.tokens, logger)
	env.authz = NewAuthzService(env.roles, env.users, env.projectRepo, env.events, logger)
	env.auth = NewAuthService(env.users, env.tokens, env.coordinator, env.events, logger)
	env.projects = NewProjectService(env.projectRepo, env.authz, logger)
	return env
}

// user inserts a user whose password is testPassword.
func (e *testEnv) user(t *testing.T, email string, verified bool) types.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	id := storetest.InsertUser(t, e.db, email, string(hash), verified)
	user, err := e.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return user
}

func (e *testEnv) grantGlobal(t *testing.T, userID int64, name types.RoleName) {
	t.Helper()
	storetest.Grant(t, e.db, userID, storetest.GlobalRoleID(t, e.db, string(name)))
}

func (e *testEnv) grantProject(t *testing.T, userID, projectID int64, name types.RoleName) {
	t.Helper()
	storetest.Grant(t, e.db, userID, storetest.ProjectRoleID(t, e.db, projectID, string(name)))
}

func (e *testEnv) actor(t *testing.T, user types.User) types.Actor {
	t.Helper()
	roles, err := e.authz.ResolveRoles(context.Background(), user.ID)
	require.NoError(t, err)
	return types.Actor{UserID: user.ID, Email: user.Email, Roles: roles}
}

func (e *testEnv) project(t *testing.T, owner types.User, name string) types.Project {
	t.Helper()
	project, _, err := e.projectRepo.CreateWithDefaultRoles(context.Background(), types.Project{Name: name, OwnerID: owner.ID, Public: true})
	require.NoError(t, err)
	return project
}
