package grade_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/sistemaeducativo/gradebook/core"
	"github.com/sistemaeducativo/gradebook/core/grade"
	"github.com/sistemaeducativo/gradebook/core/user"
	"github.com/sistemaeducativo/gradebook/storage/database/docrepo"
	"github.com/sistemaeducativo/gradebook/storage/database/inmem"
	"github.com/sistemaeducativo/gradebook/tests"
)

type failingRepo struct {
	grade.Repository
}

func (failingRepo) QueryEnrollments(context.Context, string, string) ([]grade.Enrollment, error) {
	return nil, errors.New("unavailable")
}

func (failingRepo) GetScoreSheet(context.Context, string) (grade.ScoreSheet, error) {
	return grade.ScoreSheet{}, errors.New("unavailable")
}

func (failingRepo) SaveScoreSheet(context.Context, string, grade.ScoreSheet) error {
	return errors.New("permission denied")
}

// flakyRepo fails the next reads of score sheets.
type flakyRepo struct {
	grade.Repository
	readFailures int
}

func (r *flakyRepo) GetScoreSheet(ctx context.Context, key string) (grade.ScoreSheet, error) {
	if r.readFailures > 0 {
		r.readFailures--
		return grade.ScoreSheet{}, errors.New("timeout")
	}
	return r.Repository.GetScoreSheet(ctx, key)
}

var matematicas = grade.Subject{ID: "m1", Code: "MAT101", Name: "Matemáticas", Units: []string{"U1", "U2"}}

func setup(t *testing.T) (*grade.Service, grade.Repository, user.Repository, core.DocumentStore, *testutil.Logger) {
	store := inmemdb.Open()
	users := docrepo.NewUserRepository(store)
	repo := docrepo.NewGradeRepository(store)
	logger := &testutil.Logger{}
	svc := grade.NewService(repo, users, logger, testutil.NewValidator(), &core.Config{Term: "2025-1"})

	testutil.CreateUser(t, users, "s1", "Ana", "ana@escuela.mx", "2023001", user.RoleAlumno)
	testutil.CreateUser(t, users, "s2", "Bruno", "bruno@escuela.mx", "2023002", user.RoleAlumno)
	testutil.CreateUser(t, users, "d1", "Diana", "diana@escuela.mx", "DOC001", user.RoleDocente)
	if _, err := repo.SaveSubject(context.Background(), matematicas); err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	return svc, repo, users, store, logger
}

func TestService_LoadRoster(t *testing.T) {
	svc, repo, _, _, logger := setup(t)
	ctx := context.Background()

	for _, e := range []grade.Enrollment{
		{ID: "e1", StudentID: "s2", SubjectID: "m1", Group: "A"},
		{ID: "e2", StudentID: "ghost", SubjectID: "m1", Group: "A"},
		{ID: "e3", StudentID: "s1", SubjectID: "m1", Group: "A"},
		{ID: "e4", StudentID: "s1", SubjectID: "m1", Group: "B"},
	} {
		if _, err := repo.CreateEnrollment(ctx, e); err != nil {
			t.Fatalf("CreateEnrollment() failed: %v", err)
		}
	}

	students := svc.LoadRoster(ctx, "m1", "A")
	assert.Equal(t, []grade.Student{
		{ID: "s2", Name: "Bruno", ControlNumber: "2023002"},
		{ID: "s1", Name: "Ana", ControlNumber: "2023001"},
	}, students)
	assert.Equal(t, 1, logger.Count(), "the unresolved enrollment is logged")

	assert.Empty(t, svc.LoadRoster(ctx, "m1", "Z"))
}

func TestService_failuresDegrade(t *testing.T) {
	logger := &testutil.Logger{}
	svc := grade.NewService(failingRepo{}, nil, logger, testutil.NewValidator(), &core.Config{})
	ctx := context.Background()

	roster := svc.LoadRoster(ctx, "m1", "A")
	assert.NotNil(t, roster)
	assert.Empty(t, roster)

	scores := svc.LoadScoreSheet(ctx, "MAT101", "A")
	assert.NotNil(t, scores)
	assert.Empty(t, scores)

	res := svc.Persist(ctx, grade.ScoreSheet{Metadata: grade.Metadata{SubjectCode: "MAT101", Group: "A"}})
	assert.Equal(t, grade.PersistResult{Success: false, Error: "permission denied"}, res)
	assert.Equal(t, 3, logger.Count())
}

func TestService_Save(t *testing.T) {
	svc, repo, _, _, _ := setup(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	grade.NowFunc = func() time.Time { return now }
	defer func() { grade.NowFunc = time.Now }()

	section := grade.Section{Subject: matematicas, Group: "A"}
	assert.Empty(t, svc.LoadScoreSheet(ctx, "MAT101", "A"))

	invalid := grade.Scores{}
	invalid.RecordEdit("s1", 0, "conocimientos", 11)
	invalid.RecordEdit("s2", 0, "conocimientos", -1)
	_, err := svc.Save(ctx, section, invalid, "d1")
	if verr, ok := errors.Cause(err).(*core.ValidationError); assert.True(t, ok) {
		assert.Equal(t, grade.ErrInvalidScores, verr.Err)
		assert.Len(t, verr.Fields, 2)
	}
	_, err = repo.GetScoreSheet(ctx, "curso_MAT101_A")
	assert.Equal(t, grade.ErrSheetNotFound, err, "invalid scores are never persisted")

	scores := grade.Scores{}
	scores.RecordEdit("s1", 0, "conocimientos", 8)
	res, err := svc.Save(ctx, section, scores, "d1")
	assert.NoError(t, err)
	assert.True(t, res.Success)

	sheet, err := repo.GetScoreSheet(ctx, "curso_MAT101_A")
	if assert.NoError(t, err) {
		assert.Equal(t, grade.Metadata{
			TeacherID:   "d1",
			SubjectID:   "m1",
			SubjectCode: "MAT101",
			SubjectName: "Matemáticas",
			Group:       "A",
			Term:        "2025-1",
			LastUpdated: now,
		}, sheet.Metadata)
	}
	loaded := svc.LoadScoreSheet(ctx, "MAT101", "A")
	assert.Equal(t, float64(8), loaded.Value("s1", 0, "conocimientos"))
	assert.Equal(t, 8.0, grade.Average(loaded))
}

func TestService_ApplyEdits(t *testing.T) {
	svc, repo, _, _, _ := setup(t)
	ctx := context.Background()
	section := grade.Section{Subject: matematicas, Group: "A"}
	for _, e := range []grade.Enrollment{
		{ID: "e1", StudentID: "s1", SubjectID: "m1", Group: "A"},
		{ID: "e2", StudentID: "s2", SubjectID: "m1", Group: "A"},
	} {
		_, _ = repo.CreateEnrollment(ctx, e)
	}

	_, err := svc.ApplyEdits(ctx, section, []grade.Edit{
		{StudentID: "s1", Unit: 0, Criterion: "asistencia", Value: "9"},
	}, "d1")
	assert.NoError(t, err)
	_, err = svc.ApplyEdits(ctx, section, []grade.Edit{
		{StudentID: "s1", Unit: 1, Criterion: "conocimientos", Value: "7"},
		{StudentID: "s2", Unit: 0, Criterion: "conocimientos", Value: "10"},
	}, "d1")
	assert.NoError(t, err)

	tbl := svc.Table(ctx, section, grade.EvalConocimientos)
	if assert.Len(t, tbl.Rows, 2) {
		assert.Equal(t, float64(7), tbl.Rows[0].Total)
		assert.Equal(t, float64(10), tbl.Rows[1].Total)
	}
	scores := svc.LoadScoreSheet(ctx, "MAT101", "A")
	assert.Equal(t, float64(9), scores.Value("s1", 0, "asistencia"), "earlier edits are kept")

	_, err = svc.ApplyEdits(ctx, section, []grade.Edit{{StudentID: "s1", Unit: 0, Criterion: "asistencia", Value: "15"}}, "d1")
	assert.Error(t, err)
}

func TestService_ApplyEdits_unreadableSheet(t *testing.T) {
	_, repo, users, _, _ := setup(t)
	ctx := context.Background()
	section := grade.Section{Subject: matematicas, Group: "A"}
	logger := &testutil.Logger{}
	flaky := &flakyRepo{Repository: repo}
	svc := grade.NewService(flaky, users, logger, testutil.NewValidator(), &core.Config{Term: "2025-1"})

	scores := grade.Scores{}
	scores.RecordEdit("s1", 0, "conocimientos", 9)
	scores.RecordEdit("s2", 0, "conocimientos", 8)
	res, err := svc.Save(ctx, section, scores, "d1")
	assert.NoError(t, err)
	assert.True(t, res.Success)

	flaky.readFailures = 1
	edit := []grade.Edit{{StudentID: "s1", Unit: 0, Criterion: "asistencia", Value: "7"}}
	res, err = svc.ApplyEdits(ctx, section, edit, "d1")
	assert.NoError(t, err)
	assert.Equal(t, grade.PersistResult{Success: false, Error: "timeout"}, res)
	assert.Equal(t, 1, logger.Count())

	stored := svc.LoadScoreSheet(ctx, "MAT101", "A")
	assert.Equal(t, float64(9), stored.Value("s1", 0, "conocimientos"))
	assert.Equal(t, float64(8), stored.Value("s2", 0, "conocimientos"))
	assert.Equal(t, float64(0), stored.Value("s1", 0, "asistencia"), "the edit is not written")

	res, err = svc.ApplyEdits(ctx, section, edit, "d1")
	assert.NoError(t, err)
	assert.True(t, res.Success)
	stored = svc.LoadScoreSheet(ctx, "MAT101", "A")
	assert.Equal(t, float64(7), stored.Value("s1", 0, "asistencia"))
	assert.Equal(t, float64(9), stored.Value("s1", 0, "conocimientos"))
	assert.Equal(t, float64(8), stored.Value("s2", 0, "conocimientos"))
}

func TestService_Enroll(t *testing.T) {
	svc, repo, _, _, _ := setup(t)
	ctx := context.Background()

	e, err := svc.Enroll(ctx, grade.Enrollment{StudentID: "s1", SubjectID: "m1", Group: " A "})
	if assert.NoError(t, err) {
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, "A", e.Group)
	}
	enrollments, _ := repo.QueryEnrollments(ctx, "m1", "A")
	assert.Len(t, enrollments, 1)

	_, err = svc.Enroll(ctx, grade.Enrollment{StudentID: "d1", SubjectID: "m1", Group: "A"})
	assert.Equal(t, grade.ErrNotAStudent, errors.Cause(err).(*core.ValidationError).Err)

	_, err = svc.Enroll(ctx, grade.Enrollment{StudentID: "s1", SubjectID: "nope", Group: "A"})
	assert.Equal(t, grade.ErrSubjectNotFound, errors.Cause(err))

	_, err = svc.Enroll(ctx, grade.Enrollment{StudentID: "ghost", SubjectID: "m1", Group: "A"})
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))

	_, err = svc.Enroll(ctx, grade.Enrollment{SubjectID: "m1"})
	assert.Error(t, err)
}

func TestService_SaveSubject(t *testing.T) {
	svc, _, _, _, _ := setup(t)
	ctx := context.Background()

	s, err := svc.SaveSubject(ctx, grade.Subject{Code: " QUI200 ", Name: "Química", Units: []string{"U1"}})
	if assert.NoError(t, err) {
		assert.Equal(t, "QUI200", s.ID)
	}
	got, err := svc.GetSubject(ctx, "QUI200")
	if assert.NoError(t, err) {
		assert.Equal(t, s, got)
	}

	_, err = svc.SaveSubject(ctx, grade.Subject{Code: "X", Name: "Sin unidades"})
	assert.Error(t, err)
}
