package auth_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/sistemaeducativo/gradebook/core"
	"github.com/sistemaeducativo/gradebook/core/auth"
	"github.com/sistemaeducativo/gradebook/core/user"
	"github.com/sistemaeducativo/gradebook/storage/database/docrepo"
	"github.com/sistemaeducativo/gradebook/storage/database/inmem"
	"github.com/sistemaeducativo/gradebook/tests"
)

type brokenUsers struct{}

func (brokenUsers) GetUser(context.Context, string) (user.User, error) {
	return user.User{}, errors.New("connection reset")
}

func TestGate_Check(t *testing.T) {
	users := docrepo.NewUserRepository(inmemdb.Open())
	docente := testutil.CreateUser(t, users, "d1", "Diana", "diana@escuela.mx", "DOC001", user.RoleDocente)
	testutil.CreateUser(t, users, "p1", "Root", "root@escuela.mx", "ROOT01", user.RolePowerUser)
	logger := &testutil.Logger{}
	gate := auth.NewGate(users, logger)
	ctx := context.Background()

	tests := []struct {
		name      string
		principal *core.Principal
		required  user.Role
		want      auth.GateResult
	}{
		{
			name:     "no principal",
			required: user.RoleDocente,
			want:     auth.GateResult{RedirectTo: user.LoginPath},
		},
		{
			name:      "unknown user",
			principal: &core.Principal{ID: "ghost"},
			required:  user.RoleDocente,
			want:      auth.GateResult{RedirectTo: user.LoginPath, Message: auth.MsgUserNotFound},
		},
		{
			name:      "role mismatch",
			principal: &core.Principal{ID: "d1"},
			required:  user.RoleAlumno,
			want:      auth.GateResult{RedirectTo: user.LoginPath, Message: auth.MsgNoPermission},
		},
		{
			name:      "higher role is not enough",
			principal: &core.Principal{ID: "p1"},
			required:  user.RoleDocente,
			want:      auth.GateResult{RedirectTo: user.LoginPath, Message: auth.MsgNoPermission},
		},
		{
			name:      "allowed",
			principal: &core.Principal{ID: "d1", Email: "diana@escuela.mx"},
			required:  user.RoleDocente,
			want:      auth.GateResult{Allowed: true, User: docente},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gate.Check(ctx, tt.principal, tt.required))
		})
	}
	assert.Equal(t, 0, logger.Count())
}

func TestGate_lookupFailure(t *testing.T) {
	logger := &testutil.Logger{}
	gate := auth.NewGate(brokenUsers{}, logger)
	ctx := context.Background()

	res := gate.Check(ctx, &core.Principal{ID: "d1"}, user.RoleDocente)
	assert.Equal(t, auth.GateResult{RedirectTo: user.LoginPath}, res)
	assert.Nil(t, gate.CurrentUser(ctx, &core.Principal{ID: "d1"}))
	assert.Equal(t, 2, logger.Count())
}

func TestGate_CurrentUser(t *testing.T) {
	users := docrepo.NewUserRepository(inmemdb.Open())
	alumno := testutil.CreateUser(t, users, "s1", "Ana", "ana@escuela.mx", "2023001", user.RoleAlumno)
	gate := auth.NewGate(users, &testutil.Logger{})
	ctx := context.Background()

	assert.Nil(t, gate.CurrentUser(ctx, nil))
	assert.Nil(t, gate.CurrentUser(ctx, &core.Principal{ID: "ghost"}))
	if usr := gate.CurrentUser(ctx, &core.Principal{ID: "s1"}); assert.NotNil(t, usr) {
		assert.Equal(t, alumno, *usr)
	}
}
