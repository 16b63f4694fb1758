package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/sistemaeducativo/gradebook/core/grade"
)

func (cli *commandLine) export(subjectID, group, out string) error {
	ctx := context.Background()
	subject, err := cli.gradeSvc.GetSubject(ctx, subjectID)
	if err != nil {
		return err
	}

	students := cli.gradeSvc.LoadRoster(ctx, subject.ID, group)
	scores := cli.gradeSvc.LoadScoreSheet(ctx, subject.Code, group)
	data, err := grade.ToCSV(students, scores, subject)
	if err != nil {
		return errors.Wrap(err, "exporting scores")
	}

	if out == "" {
		out = grade.ExportFilename(subject.Code, group)
	}
	if err = os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "exported %d students to %s\n", len(students), out)
	return nil
}
