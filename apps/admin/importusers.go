package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/sistemaeducativo/gradebook/core/user"
)

// importUsers creates every user of a CSV file. Rows that fail are reported and skipped.
func (cli *commandLine) importUsers(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var rows []*user.NewUser
	if err = gocsv.UnmarshalFile(f, &rows); err != nil {
		return errors.Wrap(err, "reading users file")
	}

	ctx := context.Background()
	var failed int
	for i, nu := range rows {
		if _, err := cli.usrSvc.Create(ctx, *nu); err != nil {
			failed++
			// header is line 1
			fmt.Fprintf(cli.out, "line %d (%s): %v\n", i+2, nu.Email, err)
		}
	}
	fmt.Fprintf(cli.out, "imported %d of %d users\n", len(rows)-failed, len(rows))

	if failed > 0 {
		return errors.Errorf("%d users could not be imported", failed)
	}
	return nil
}
