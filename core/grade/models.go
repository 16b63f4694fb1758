package grade

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/sistemaeducativo/gradebook/core/user"
)

// EvaluationType selects which criteria of a unit are graded.
type EvaluationType string

const (
	EvalAsistencia    EvaluationType = "asistencia"
	EvalActitudes     EvaluationType = "actitudes"
	EvalConocimientos EvaluationType = "conocimientos"
)

// Criteria
const (
	CritAsistencia      = "asistencia"
	CritResponsabilidad = "responsabilidad"
	CritDisposicion     = "disposicion"
	CritConocimientos   = "conocimientos"

	// CritDefault is the only criterion of unknown evaluation types.
	CritDefault = "calificacion"
)

const (
	MinScore = 0
	MaxScore = 10
)

var criteria = map[EvaluationType][]string{
	EvalAsistencia:    {CritAsistencia},
	EvalActitudes:     {CritResponsabilidad, CritDisposicion},
	EvalConocimientos: {CritConocimientos},
}

// Criteria returns the criteria graded under t.
func (t EvaluationType) Criteria() []string {
	crits, ok := criteria[t]
	if !ok {
		return []string{CritDefault}
	}
	out := make([]string, len(crits))
	copy(out, crits)
	return out
}

// SheetKey is the document id of the score sheet of a course section.
func SheetKey(subjectCode, group string) string {
	return fmt.Sprintf("curso_%s_%s", subjectCode, group)
}

// UnitKey is the key of the i-th (zero based) unit in StudentScores.Units.
func UnitKey(i int) string {
	return fmt.Sprintf("unidad_%d", i)
}

type (
	Student struct {
		ID            string `json:"id"`
		Name          string `json:"nombre"`
		ControlNumber string `json:"numeroControl"`
	}

	// Subject is a course and its ordered grading units.
	Subject struct {
		ID    string   `json:"id"`
		Code  string   `json:"codigo" validate:"required,alphanum_"`
		Name  string   `json:"nombre" validate:"required"`
		Units []string `json:"unidades" validate:"required,min=1,dive,required"`
	}

	// Section is a subject taught to one group.
	Section struct {
		Subject Subject
		Group   string
	}

	Enrollment struct {
		ID        string `json:"-"`
		StudentID string `json:"alumnoId" validate:"required"`
		SubjectID string `json:"materiaId" validate:"required"`
		Group     string `json:"grupo" validate:"required"`
	}

	// CriterionScores maps a criterion to its score. Values that are not JSON numbers
	// are kept as NaN so they can be reported by Validate.
	CriterionScores map[string]float64

	StudentScores struct {
		Units       map[string]CriterionScores `json:"unidades"`
		LastUpdated time.Time                  `json:"lastUpdated"`
	}

	// Scores maps a student id to its scores.
	Scores map[string]StudentScores

	Metadata struct {
		TeacherID   string    `json:"docenteId"`
		SubjectID   string    `json:"materiaId"`
		SubjectCode string    `json:"materiaCodigo"`
		SubjectName string    `json:"materiaNombre"`
		Group       string    `json:"grupo"`
		Term        string    `json:"periodo"`
		LastUpdated time.Time `json:"lastUpdated"`
	}

	// ScoreSheet is the persisted document holding every score of a section.
	ScoreSheet struct {
		Students Scores   `json:"estudiantes"`
		Metadata Metadata `json:"metadata"`
	}
)

func StudentFromUser(usr user.User) Student {
	return Student{ID: usr.ID, Name: usr.Name, ControlNumber: usr.ControlNumber}
}

func (s Section) Key() string { return SheetKey(s.Subject.Code, s.Group) }

func (cs *CriterionScores) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	scores := make(CriterionScores, len(raw))
	for crit, val := range raw {
		if n, ok := val.(float64); ok {
			scores[crit] = n
		} else {
			scores[crit] = math.NaN()
		}
	}
	*cs = scores
	return nil
}

func isNumber(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Value returns the score of a cell; 0 when it is missing at any level or not a number.
func (s Scores) Value(studentID string, unit int, criterion string) float64 {
	v, ok := s[studentID].Units[UnitKey(unit)][criterion]
	if !ok || !isNumber(v) {
		return 0
	}
	return v
}
