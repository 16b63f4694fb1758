package grade

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var NowFunc = time.Now // mockable

type (
	// HeaderGroup is a unit header spanning the criteria of the rendered evaluation type.
	HeaderGroup struct {
		Unit string `json:"unit"`
		Span int    `json:"span"`
	}

	Cell struct {
		Unit      int     `json:"unit"`
		Criterion string  `json:"criterion"`
		Value     float64 `json:"value"`
	}

	Row struct {
		Student Student `json:"student"`
		Cells   []Cell  `json:"cells"`
		// Total sums the cells of this row only, i.e. the rendered evaluation type.
		Total float64 `json:"total"`
	}

	// Table is the model of a grade table for one evaluation type.
	Table struct {
		EvaluationType EvaluationType `json:"evaluationType"`
		Criteria       []string       `json:"criteria"`
		Headers        []HeaderGroup  `json:"headers"`
		SubHeaders     []string       `json:"subHeaders"`
		Rows           []Row          `json:"rows"`
	}

	// Edit is a raw cell input, as typed in the grade table.
	Edit struct {
		StudentID string `json:"studentId"`
		Unit      int    `json:"unit"`
		Criterion string `json:"criterion"`
		Value     string `json:"value"`
	}
)

// BuildTable renders the grade table of students over units for evalType.
// Rows and header groups keep the order of students and units.
func BuildTable(students []Student, units []string, evalType EvaluationType, existing Scores) Table {
	crits := evalType.Criteria()
	tbl := Table{
		EvaluationType: evalType,
		Criteria:       crits,
		Headers:        make([]HeaderGroup, 0, len(units)),
		SubHeaders:     make([]string, 0, len(units)*len(crits)),
		Rows:           make([]Row, 0, len(students)),
	}
	for _, u := range units {
		tbl.Headers = append(tbl.Headers, HeaderGroup{Unit: u, Span: len(crits)})
		for _, c := range crits {
			tbl.SubHeaders = append(tbl.SubHeaders, capitalize(c))
		}
	}

	for _, st := range students {
		row := Row{Student: st, Cells: make([]Cell, 0, len(units)*len(crits))}
		for i := range units {
			for _, c := range crits {
				v := existing.Value(st.ID, i, c)
				row.Cells = append(row.Cells, Cell{Unit: i, Criterion: c, Value: v})
				row.Total += v
			}
		}
		tbl.Rows = append(tbl.Rows, row)
	}
	return tbl
}

// SetCell updates one cell of the table and the total of its row.
// It reports false if the table has no such cell.
func (t *Table) SetCell(studentID string, unit int, criterion string, value float64) bool {
	for r := range t.Rows {
		row := &t.Rows[r]
		if row.Student.ID != studentID {
			continue
		}
		found := false
		row.Total = 0
		for c := range row.Cells {
			cell := &row.Cells[c]
			if cell.Unit == unit && cell.Criterion == criterion {
				cell.Value = value
				found = true
			}
			row.Total += cell.Value
		}
		return found
	}
	return false
}

// RecordEdit merges one score into s and stamps the student's LastUpdated.
// s must not be nil.
func (s Scores) RecordEdit(studentID string, unit int, criterion string, value float64) {
	st := s[studentID]
	if st.Units == nil {
		st.Units = make(map[string]CriterionScores)
	}
	key := UnitKey(unit)
	if st.Units[key] == nil {
		st.Units[key] = make(CriterionScores)
	}
	st.Units[key][criterion] = value
	st.LastUpdated = NowFunc().UTC()
	s[studentID] = st
}

// CollectScores builds Scores out of raw table inputs. Inputs are truncated
// to their leading integer; anything else counts as 0.
func CollectScores(edits []Edit) Scores {
	scores := make(Scores)
	for _, e := range edits {
		scores.RecordEdit(e.StudentID, e.Unit, e.Criterion, float64(parseLeadingInt(e.Value)))
	}
	return scores
}

func parseLeadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	// out of range inputs come back clamped, so Validate still rejects them
	n, err := strconv.Atoi(s[:end])
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0
	}
	return n
}

// Validate lists every problem found in scores; empty when scores can be saved.
func Validate(scores Scores) []string {
	var violations []string
	for _, id := range sortedKeys(scores) {
		st := scores[id]
		if st.Units == nil {
			violations = append(violations, fmt.Sprintf("Estudiante %s: faltan unidades", id))
			continue
		}
		units := make([]string, 0, len(st.Units))
		for u := range st.Units {
			units = append(units, u)
		}
		sort.Strings(units)

		for _, u := range units {
			crits := make([]string, 0, len(st.Units[u]))
			for c := range st.Units[u] {
				crits = append(crits, c)
			}
			sort.Strings(crits)

			for _, c := range crits {
				v := st.Units[u][c]
				if !isNumber(v) || v < MinScore || v > MaxScore {
					violations = append(violations, fmt.Sprintf("Estudiante %s, %s, %s: valor inválido (%s)", id, u, c, formatScore(v)))
				}
			}
		}
	}
	return violations
}

// Average is the mean of every numeric score, rounded to 2 decimals; 0 when there is none.
func Average(scores Scores) float64 {
	var sum float64
	var count int
	for _, st := range scores {
		for _, crits := range st.Units {
			for _, v := range crits {
				if isNumber(v) {
					sum += v
					count++
				}
			}
		}
	}
	if count == 0 {
		return 0
	}
	return math.Round(sum/float64(count)*100) / 100
}

// Status is the outcome label of a score.
func Status(score float64) string {
	switch {
	case score >= 7:
		return "Aprobado"
	case score >= 6:
		return "Regular"
	default:
		return "Reprobado"
	}
}

// Color is the display color of a score.
func Color(score float64) string {
	switch {
	case score >= 9:
		return "#4caf50"
	case score >= 8:
		return "#8bc34a"
	case score >= 7:
		return "#ffeb3b"
	case score >= 6:
		return "#ff9800"
	default:
		return "#f44336"
	}
}

func sortedKeys(scores Scores) []string {
	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
