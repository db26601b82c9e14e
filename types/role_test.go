package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoleName(t *testing.T) {
	for _, raw := range []string{"super_admin", "admin", "user", "prj_admin", "prj_write", "prj_read"} {
		name, err := ParseRoleName(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, RoleName(raw), name)
	}

	_, err := ParseRoleName("superadmin")
	assert.Error(t, err)
	_, err = ParseRoleName("")
	assert.Error(t, err)
}

func TestRoleNameScope(t *testing.T) {
	assert.Equal(t, ScopeGlobal, RoleSuperAdmin.Scope())
	assert.Equal(t, ScopeGlobal, RoleAdmin.Scope())
	assert.Equal(t, ScopeGlobal, RoleUser.Scope())
	assert.Equal(t, ScopeProject, RoleProjectAdmin.Scope())
	assert.Equal(t, ScopeProject, RoleProjectWrite.Scope())
	assert.Equal(t, ScopeProject, RoleProjectRead.Scope())
	assert.Panics(t, func() { RoleName("guest").Scope() })
}

func TestNewRoleSet(t *testing.T) {
	p1, p2 := int64(1), int64(2)
	set := NewRoleSet([]Role{
		{ID: 1, Name: RoleAdmin},
		{ID: 10, Name: RoleProjectRead, ProjectID: &p2},
		{ID: 11, Name: RoleProjectAdmin, ProjectID: &p1},
		{ID: 12, Name: RoleProjectWrite},
		{ID: 13, Name: RoleName("bogus"), ProjectID: &p1},
	})

	assert.True(t, set.IsGlobalAdmin())
	assert.False(t, set.IsSuperAdmin())
	assert.True(t, set.HasProjectRole(1, RoleProjectAdmin))
	assert.False(t, set.HasProjectRole(1, RoleProjectRead))
	assert.True(t, set.HasProjectRole(2, RoleProjectRead))
	assert.Equal(t, []int64{1, 2}, set.ProjectIDs(), "project roles without a project are dropped")
	assert.Equal(t, RoleAdmin, set.PrimaryRole())
}

func TestRoleSetPrimaryRole(t *testing.T) {
	assert.Equal(t, RoleName(""), NewRoleSet(nil).PrimaryRole())
	assert.Equal(t, RoleSuperAdmin, NewRoleSet([]Role{{Name: RoleUser}, {Name: RoleSuperAdmin}}).PrimaryRole())
}
