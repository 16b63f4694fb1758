package main

import (
	"context"
	"errors"

	"github.com/sistemaeducativo/gradebook/storage/database"
)

var (
	gooseRunFunc = database.Migrate // mockable

	errNoSQLDatabase = errors.New("migrations need the postgres engine")
)

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoSQLDatabase
	}
	return gooseRunFunc(context.Background(), cli.db, args[0], args[1:]...)
}
