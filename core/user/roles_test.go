package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPermission_reflexive(t *testing.T) {
	for _, r := range append(AllRoles, RoleNone) {
		if !HasPermission(r, r) {
			t.Errorf("HasPermission(%q, %q) = false; want true", r, r)
		}
	}
}

func TestHasPermission_order(t *testing.T) {
	// AllRoles is sorted by decreasing rank
	for i, high := range AllRoles {
		for _, low := range AllRoles[i+1:] {
			assert.True(t, HasPermission(high, low), "HasPermission(%s, %s)", high, low)
			assert.False(t, HasPermission(low, high), "HasPermission(%s, %s)", low, high)
		}
		assert.True(t, HasPermission(high, Role("BOGUS")))
		assert.False(t, HasPermission(Role("BOGUS"), high))
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"POWERUSER", RolePowerUser},
		{" admin ", RoleAdmin},
		{"Docente", RoleDocente},
		{"alumno", RoleAlumno},
		{"teacher", RoleNone},
		{"", RoleNone},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRole(tt.in))
		})
	}
}

func TestRole_metadata(t *testing.T) {
	tests := []struct {
		role     Role
		rank     int
		display  string
		badge    string
		redirect string
	}{
		{RolePowerUser, 4, "Power User", "role-poweruser", "admin-dashboard.html"},
		{RoleAdmin, 3, "Administrador", "role-admin", "admin-dashboard.html"},
		{RoleDocente, 2, "Docente", "role-docente", "docente-dashboard.html"},
		{RoleAlumno, 1, "Alumno", "role-alumno", "alumno-dashboard.html"},
		{Role("JANITOR"), 0, "JANITOR", "", LoginPath},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.rank, tt.role.Rank())
			assert.Equal(t, tt.display, tt.role.DisplayName())
			assert.Equal(t, tt.badge, tt.role.BadgeClass())
			assert.Equal(t, tt.redirect, tt.role.RedirectPath())
		})
	}
}

func TestPermissionsFor_unknownRole(t *testing.T) {
	perms := PermissionsFor(Role("JANITOR"))
	assert.Empty(t, perms.CreatableRoles)
	assert.False(t, perms.FullAccess)
	assert.False(t, perms.AdminPanel)
	assert.False(t, perms.ViewAllUsers)
	assert.Equal(t, "", perms.Description)
}

func TestPermissionsFor_isACopy(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(role Role)
	}{
		{"PermissionsFor", func(role Role) {
			perms := PermissionsFor(role)
			for i := range perms.CreatableRoles {
				perms.CreatableRoles[i] = RolePowerUser
			}
		}},
		{"RoleManager.Info", func(role Role) {
			perms := NewRoleManager(role).Info().Permissions
			for i := range perms.CreatableRoles {
				perms.CreatableRoles[i] = RolePowerUser
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mutate(RoleAdmin)
			tt.mutate(RoleDocente)
			assert.False(t, NewRoleManager(RoleAdmin).CanCreateRole(RolePowerUser))
			assert.False(t, NewRoleManager(RoleDocente).CanCreateRole(RolePowerUser))
			assert.Equal(t, []Role{RoleAlumno}, PermissionsFor(RoleDocente).CreatableRoles)
		})
	}
}

func TestPermissionsFor_anyFlagsMonotonic(t *testing.T) {
	for i, high := range AllRoles {
		hp := PermissionsFor(high)
		for _, low := range AllRoles[i+1:] {
			lp := PermissionsFor(low)
			if lp.EditAnyUser && !hp.EditAnyUser ||
				lp.DeleteAnyUser && !hp.DeleteAnyUser ||
				lp.ViewAllUsers && !hp.ViewAllUsers ||
				lp.ViewAllGrades && !hp.ViewAllGrades {
				t.Errorf("%s has an any/all flag that %s lacks", low, high)
			}
		}
	}
}

func TestMaxRole(t *testing.T) {
	assert.Equal(t, RoleNone, MaxRole())
	assert.Equal(t, RoleAdmin, MaxRole(RoleAlumno, RoleAdmin, RoleDocente))
	assert.Equal(t, RoleAlumno, MaxRole(Role("x"), RoleAlumno))
}

func TestRole_Notification(t *testing.T) {
	assert.NotEmpty(t, RoleAdmin.Notification().Restrictions)
	assert.Empty(t, RolePowerUser.Notification().Restrictions)
	assert.Equal(t, RoleNotification{}, Role("x").Notification())
}
