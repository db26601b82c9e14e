package services

import (
	"context"
	"strings"
	"testing"

	"github.com/devsketch/apiserver/internal/apperr"
	"github.com/devsketch/apiserver/internal/store/storetest"
	"github.com/devsketch/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectServiceCreate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, "owner@example.com", true)

	private := false
	project, err := env.projects.Create(ctx, env.actor(t, owner), types.ProjectInput{Name: "  Atlas ", Description: "maps", Public: &private})
	require.NoError(t, err)
	assert.Equal(t, "Atlas", project.Name)
	assert.False(t, project.Public)
	assert.Equal(t, owner.ID, project.OwnerID)

	for _, def := range types.DefaultProjectRoles {
		storetest.ProjectRoleID(t, env.db, project.ID, string(def.Name))
	}

	defaulted, err := env.projects.Create(ctx, env.actor(t, owner), types.ProjectInput{Name: "Public"})
	require.NoError(t, err)
	assert.True(t, defaulted.Public)

	_, err = env.projects.Create(ctx, env.actor(t, owner), types.ProjectInput{Name: " "})
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
	_, err = env.projects.Create(ctx, env.actor(t, owner), types.ProjectInput{Name: strings.Repeat("x", 51)})
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
}

func TestProjectServiceGetHidesInvisible(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, "owner@example.com", true)
	stranger := env.user(t, "stranger@example.com", true)
	p := env.project(t, owner, "P")

	got, err := env.projects.Get(ctx, env.actor(t, owner), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = env.projects.Get(ctx, env.actor(t, stranger), p.ID)
	assert.ErrorIs(t, err, ErrProjectNotFound)

	env.grantProject(t, stranger.ID, p.ID, types.RoleProjectRead)
	_, err = env.projects.Get(ctx, env.actor(t, stranger), p.ID)
	require.NoError(t, err)

	listed, err := env.projects.List(ctx, env.actor(t, stranger))
	require.NoError(t, err)
	assert.Equal(t, []int64{p.ID}, projectIDs(listed))
}

func TestProjectServiceMutation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, "owner@example.com", true)
	admin := env.user(t, "admin@example.com", true)
	super := env.user(t, "super@example.com", true)
	env.grantGlobal(t, admin.ID, types.RoleAdmin)
	env.grantGlobal(t, super.ID, types.RoleSuperAdmin)

	p := env.project(t, owner, "P")
	q := env.project(t, owner, "Q")

	updated, err := env.projects.Update(ctx, env.actor(t, owner), p.ID, types.ProjectInput{Name: "P2", Description: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, "P2", updated.Name)

	_, err = env.projects.Update(ctx, env.actor(t, admin), p.ID, types.ProjectInput{Name: "P3"})
	assert.ErrorIs(t, err, ErrForbidden)

	assert.ErrorIs(t, env.projects.Delete(ctx, env.actor(t, admin), p.ID), ErrForbidden)
	require.NoError(t, env.projects.Delete(ctx, env.actor(t, owner), p.ID))
	require.NoError(t, env.projects.Delete(ctx, env.actor(t, super), q.ID))
	assert.ErrorIs(t, env.projects.Delete(ctx, env.actor(t, super), q.ID), ErrProjectNotFound)
}
