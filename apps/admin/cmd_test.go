package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sistemaeducativo/gradebook/core"
	"github.com/sistemaeducativo/gradebook/core/auth"
	"github.com/sistemaeducativo/gradebook/core/grade"
	"github.com/sistemaeducativo/gradebook/core/user"
	"github.com/sistemaeducativo/gradebook/services/identity"
	"github.com/sistemaeducativo/gradebook/storage/database/docrepo"
	"github.com/sistemaeducativo/gradebook/storage/database/inmem"
	"github.com/sistemaeducativo/gradebook/tests"
)

const testPassword = "Xk9#mq2w"

type fixture struct {
	cli       *commandLine
	out       *bytes.Buffer
	usrRepo   user.Repository
	gradeRepo grade.Repository
}

func setup(t *testing.T) fixture {
	t.Helper()
	logger = &testutil.Logger{}

	// set up store & repos
	store := inmemdb.Open()
	usrRepo := docrepo.NewUserRepository(store)
	gradeRepo := docrepo.NewGradeRepository(store)
	conf := &core.Config{Term: "2025-1"}
	validate := testutil.NewValidator()
	provider := identity.NewProvider(store, identity.NewMemorySessionStore(), conf)

	// start CLI
	out := new(bytes.Buffer)
	return fixture{
		cli: &commandLine{
			db:       new(sql.DB),
			usrSvc:   user.NewService(usrRepo, provider, &testutil.Mailer{}, logger, validate),
			gradeSvc: grade.NewService(gradeRepo, usrRepo, logger, validate, conf),
			provider: provider,
			out:      out,
		},
		out:       out,
		usrRepo:   usrRepo,
		gradeRepo: gradeRepo,
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte(pwd), nil }
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	anyErr     bool
	extra      interface{}
}

func checkErr(t *testing.T, tt cliTest, err error) {
	switch {
	case err == nil:
		if tt.wantErr != nil || tt.wantErrStr != "" || tt.anyErr {
			t.Errorf("cli.run() error = nil, want an error")
		}
	case tt.anyErr:
	case tt.wantErr != nil:
		if err != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
		}
	default:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	f := setup(t)
	defer func(orig func(context.Context, *sql.DB, string, ...string) error) { gooseRunFunc = orig }(gooseRunFunc)

	gooseRunFunc = func(_ context.Context, db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, f.cli.run(args))
		})
	}

	f.cli.db = nil
	assert.Equal(t, errNoSQLDatabase, f.cli.run([]string{"admin", "migrate", "up"}))
}

func Test_commandLine_addUser(t *testing.T) {
	f := setup(t)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-email", "a@escuela.mx", "-role", "ADMIN"}, wantErr: errHelp},
		{
			name:   "weak password",
			args:   []string{"adduser", "-email", "a@escuela.mx", "-name", "Alicia", "-control", "ADM001", "-role", "ADMIN"},
			extra:  extra{pwd: "1234"},
			anyErr: true,
		},
		{
			name:  "admin",
			args:  []string{"adduser", "-email", "Alicia@Escuela.mx", "-name", "alicia mora", "-control", "adm001", "-role", "admin"},
			extra: extra{pwd: testPassword},
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		if ex, ok := tt.extra.(extra); ok {
			mockPassword(ex.pwd)
		} else {
			mockPassword("")
		}

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, f.cli.run(args))
		})
	}

	usr, err := f.usrRepo.GetUserByEmail(context.Background(), "alicia@escuela.mx")
	if assert.NoError(t, err) {
		assert.Equal(t, user.RoleAdmin, usr.Role)
		assert.Equal(t, "Alicia Mora", usr.Name)
		assert.Equal(t, "ADM001", usr.ControlNumber)
	}
	_, err = f.cli.provider.Authenticate(context.Background(), "alicia@escuela.mx", testPassword)
	assert.NoError(t, err)
}

func Test_commandLine_resetPassword(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.cli.usrSvc.Create(ctx, user.NewUser{
		Email: "ana@escuela.mx", Name: "Ana", Role: user.RoleAlumno, ControlNumber: "2023001", Password: testPassword,
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "ana@escuela.mx"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@escuela.mx"}, extra: extra{pwd: "lol"}, wantErr: identity.ErrPrincipalNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", "ANA@escuela.mx"}, extra: extra{pwd: "n3w-Secret"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		if ex, ok := tt.extra.(extra); ok {
			mockPassword(ex.pwd)
		} else {
			mockPassword("")
		}

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, f.cli.run(args))
		})
	}

	_, err = f.cli.provider.Authenticate(ctx, "ana@escuela.mx", testPassword)
	assert.Equal(t, auth.ErrInvalidCredentials, err)
	_, err = f.cli.provider.Authenticate(ctx, "ana@escuela.mx", "n3w-Secret")
	assert.NoError(t, err)
}

func Test_commandLine_importUsers(t *testing.T) {
	f := setup(t)
	path := filepath.Join(t.TempDir(), "users.csv")
	data := "email,nombre,role,numeroControl,password\n" +
		"ana@escuela.mx,ana ruiz,ALUMNO,2023001," + testPassword + "\n" +
		"bruno@escuela.mx,Bruno Paz,alumno,2023002," + testPassword + "\n" +
		"ana@escuela.mx,Ana Otra,ALUMNO,2023003," + testPassword + "\n" +
		"diana@escuela.mx,Diana Soto,DOCENTE,DOC001," + testPassword + "\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	tests := []cliTest{
		{name: "no file", args: []string{"importusers"}, wantErr: errHelp},
		{name: "import", args: []string{"importusers", "-file", path}, wantErrStr: "1 users could not be imported"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, f.cli.run(args))
		})
	}

	assert.Contains(t, f.out.String(), "line 4 (ana@escuela.mx)")
	assert.Contains(t, f.out.String(), "imported 3 of 4 users")

	alumnos, _ := f.usrRepo.QueryUsers(context.Background(), user.QueryFilter{Roles: []user.Role{user.RoleAlumno}})
	assert.Len(t, alumnos, 2)
}

func Test_commandLine_export(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.CreateUser(t, f.usrRepo, "s1", "Ana Ruiz", "ana@escuela.mx", "2023001", user.RoleAlumno)
	subject := grade.Subject{ID: "MAT101", Code: "MAT101", Name: "Matemáticas", Units: []string{"U1"}}
	_, _ = f.gradeRepo.SaveSubject(ctx, subject)
	_, _ = f.gradeRepo.CreateEnrollment(ctx, grade.Enrollment{ID: "e1", StudentID: "s1", SubjectID: "MAT101", Group: "A"})
	scores := grade.Scores{"s1": {Units: map[string]grade.CriterionScores{
		"unidad_0": {grade.CritAsistencia: 10, grade.CritDisposicion: 8},
	}}}
	_ = f.gradeRepo.SaveScoreSheet(ctx, grade.SheetKey("MAT101", "A"), grade.ScoreSheet{Students: scores})

	out := filepath.Join(t.TempDir(), "mat.csv")
	tests := []cliTest{
		{name: "no args", args: []string{"export"}, wantErr: errHelp},
		{name: "unknown subject", args: []string{"export", "-subject", "NOPE", "-group", "A", "-out", out}, wantErr: grade.ErrSubjectNotFound},
		{name: "export", args: []string{"export", "-subject", "MAT101", "-group", "A", "-out", out}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, f.cli.run(args))
		})
	}

	data, err := os.ReadFile(out)
	if assert.NoError(t, err) {
		assert.Equal(t, "Estudiante,No. Control,U1_SER,U1_SABER_SER,U1_SABER,TOTAL\nAna Ruiz,2023001,10,8,0,18\n", string(data))
	}
}
