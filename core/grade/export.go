package grade

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// ExportFilename is the name of the CSV export of a section.
func ExportFilename(subjectCode, group string) string {
	return fmt.Sprintf("calificaciones_%s_%s.csv", subjectCode, group)
}

// ToCSV flattens the scores of students into one row each. Per unit it emits
// SER (asistencia), SABER_SER (responsabilidad + disposicion) and SABER (conocimientos),
// then a TOTAL of every emitted column.
func ToCSV(students []Student, scores Scores, subject Subject) ([]byte, error) {
	header := make([]string, 0, 2+3*len(subject.Units)+1)
	header = append(header, "Estudiante", "No. Control")
	for _, u := range subject.Units {
		header = append(header, u+"_SER", u+"_SABER_SER", u+"_SABER")
	}
	header = append(header, "TOTAL")

	var buff bytes.Buffer
	w := csv.NewWriter(&buff)
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, st := range students {
		row := make([]string, 0, len(header))
		row = append(row, st.Name, st.ControlNumber)
		var total float64
		for i := range subject.Units {
			ser := scores.Value(st.ID, i, CritAsistencia)
			saberSer := scores.Value(st.ID, i, CritResponsabilidad) + scores.Value(st.ID, i, CritDisposicion)
			saber := scores.Value(st.ID, i, CritConocimientos)
			row = append(row, formatScore(ser), formatScore(saberSer), formatScore(saber))
			total += ser + saberSer + saber
		}
		row = append(row, formatScore(total))
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buff.Bytes(), nil
}
