package grade

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/sistemaeducativo/gradebook/core"
	"github.com/sistemaeducativo/gradebook/core/user"
)

var (
	ErrSubjectNotFound = errors.New("subject not found")
	ErrSheetNotFound   = errors.New("score sheet not found")
	ErrNotAStudent     = errors.New("only students can be enrolled")
	ErrInvalidScores   = errors.New("invalid scores")
)

type (
	Repository interface {
		// QueryEnrollments returns the enrollments of a section, in store order.
		QueryEnrollments(ctx context.Context, subjectID, group string) ([]Enrollment, error)
		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		GetSubject(ctx context.Context, id string) (Subject, error)
		SaveSubject(ctx context.Context, s Subject) (Subject, error)
		GetScoreSheet(ctx context.Context, key string) (ScoreSheet, error)
		// SaveScoreSheet overwrites the whole sheet stored under key.
		SaveScoreSheet(ctx context.Context, key string, sheet ScoreSheet) error
	}

	UserGetter interface {
		GetUser(ctx context.Context, id string) (user.User, error)
	}

	// PersistResult reports the outcome of a Persist call.
	PersistResult struct {
		Success bool   `json:"success"`
		Error   string `json:"error,omitempty"`
	}

	Service struct {
		repo     Repository
		users    UserGetter
		logger   core.Logger
		validate *validator.Validate
		term     string
	}
)

func NewService(repo Repository, users UserGetter, logger core.Logger, validate *validator.Validate, conf *core.Config) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		logger:   logger,
		validate: validate,
		term:     conf.Term,
	}
}

// LoadRoster returns the students enrolled in a section. Enrollments whose user
// cannot be found are skipped; any other failure yields an empty roster.
func (svc *Service) LoadRoster(ctx context.Context, subjectID, group string) []Student {
	students := make([]Student, 0)
	enrollments, err := svc.repo.QueryEnrollments(ctx, subjectID, group)
	if err != nil {
		svc.logger.Error("querying enrollments", err, map[string]interface{}{"subject": subjectID, "group": group})
		return students
	}

	for _, e := range enrollments {
		usr, err := svc.users.GetUser(ctx, e.StudentID)
		if err != nil {
			if pkgerrors.Cause(err) == user.ErrNotFound {
				svc.logger.Warn("enrolled student not found", map[string]interface{}{"student": e.StudentID, "enrollment": e.ID})
				continue
			}
			svc.logger.Error("resolving enrolled student", err, map[string]interface{}{"student": e.StudentID})
			return make([]Student, 0)
		}
		students = append(students, StudentFromUser(usr))
	}
	return students
}

// LoadScoreSheet returns the scores of a section; empty when none were saved or on failure.
func (svc *Service) LoadScoreSheet(ctx context.Context, subjectCode, group string) Scores {
	sheet, err := svc.repo.GetScoreSheet(ctx, SheetKey(subjectCode, group))
	if err != nil {
		if pkgerrors.Cause(err) != ErrSheetNotFound {
			svc.logger.Error("getting score sheet", err, map[string]interface{}{"subject": subjectCode, "group": group})
		}
		return make(Scores)
	}
	if sheet.Students == nil {
		return make(Scores)
	}
	return sheet.Students
}

// Persist overwrites the stored sheet of a section. Failures are reported in the result.
func (svc *Service) Persist(ctx context.Context, sheet ScoreSheet) PersistResult {
	key := SheetKey(sheet.Metadata.SubjectCode, sheet.Metadata.Group)
	if err := svc.repo.SaveScoreSheet(ctx, key, sheet); err != nil {
		svc.logger.Error("saving score sheet", err, map[string]interface{}{"sheet": key})
		return PersistResult{Error: pkgerrors.Cause(err).Error()}
	}
	return PersistResult{Success: true}
}

// Save validates scores and persists them as the section's sheet.
func (svc *Service) Save(ctx context.Context, section Section, scores Scores, teacherID string) (PersistResult, error) {
	if violations := Validate(scores); len(violations) > 0 {
		fields := make([]core.FieldError, 0, len(violations))
		for _, v := range violations {
			fields = append(fields, core.FieldError{Field: "scores", Error: v})
		}
		return PersistResult{}, core.NewValidationError(ErrInvalidScores, fields...)
	}

	subjectID := section.Subject.ID
	if subjectID == "" {
		subjectID = "unknown"
	}
	sheet := ScoreSheet{
		Students: scores,
		Metadata: Metadata{
			TeacherID:   teacherID,
			SubjectID:   subjectID,
			SubjectCode: section.Subject.Code,
			SubjectName: section.Subject.Name,
			Group:       section.Group,
			Term:        svc.term,
			LastUpdated: NowFunc().UTC(),
		},
	}
	return svc.Persist(ctx, sheet), nil
}

// ApplyEdits merges raw table inputs into the stored sheet of a section and saves it.
// Nothing is written when the stored sheet cannot be read.
func (svc *Service) ApplyEdits(ctx context.Context, section Section, edits []Edit, teacherID string) (PersistResult, error) {
	key := SheetKey(section.Subject.Code, section.Group)
	sheet, err := svc.repo.GetScoreSheet(ctx, key)
	if err != nil && pkgerrors.Cause(err) != ErrSheetNotFound {
		svc.logger.Error("getting score sheet", err, map[string]interface{}{"sheet": key})
		return PersistResult{Error: pkgerrors.Cause(err).Error()}, nil
	}
	scores := sheet.Students
	if scores == nil {
		scores = make(Scores)
	}
	for _, e := range edits {
		scores.RecordEdit(e.StudentID, e.Unit, e.Criterion, float64(parseLeadingInt(e.Value)))
	}
	return svc.Save(ctx, section, scores, teacherID)
}

// Table loads the roster and scores of a section and renders its table for evalType.
func (svc *Service) Table(ctx context.Context, section Section, evalType EvaluationType) Table {
	students := svc.LoadRoster(ctx, section.Subject.ID, section.Group)
	scores := svc.LoadScoreSheet(ctx, section.Subject.Code, section.Group)
	return BuildTable(students, section.Subject.Units, evalType, scores)
}

func (svc *Service) GetSubject(ctx context.Context, id string) (Subject, error) {
	return svc.repo.GetSubject(ctx, id)
}

func (svc *Service) SaveSubject(ctx context.Context, s Subject) (Subject, error) {
	s.Code = core.CleanString(s.Code)
	s.Name = core.CleanString(s.Name)
	if err := svc.validate.Struct(s); err != nil {
		return Subject{}, err
	}
	if s.ID == "" {
		s.ID = s.Code
	}
	return svc.repo.SaveSubject(ctx, s)
}

// Enroll registers a student in a section.
func (svc *Service) Enroll(ctx context.Context, e Enrollment) (Enrollment, error) {
	e.Group = core.CleanString(e.Group)
	if err := svc.validate.Struct(e); err != nil {
		return Enrollment{}, err
	}
	if _, err := svc.repo.GetSubject(ctx, e.SubjectID); err != nil {
		return Enrollment{}, err
	}
	usr, err := svc.users.GetUser(ctx, e.StudentID)
	if err != nil {
		return Enrollment{}, err
	}
	if !usr.IsStudent() {
		return Enrollment{}, core.NewValidationError(ErrNotAStudent, core.FieldError{Field: "alumnoId", Error: ErrNotAStudent.Error()})
	}
	e.ID = uuid.NewString()
	return svc.repo.CreateEnrollment(ctx, e)
}
