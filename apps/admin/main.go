package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/sistemaeducativo/gradebook/core"
	"github.com/sistemaeducativo/gradebook/core/grade"
	"github.com/sistemaeducativo/gradebook/core/user"
	emailsvc "github.com/sistemaeducativo/gradebook/services/email"
	"github.com/sistemaeducativo/gradebook/services/identity"
	logsvc "github.com/sistemaeducativo/gradebook/services/logger"
	"github.com/sistemaeducativo/gradebook/storage"
	"github.com/sistemaeducativo/gradebook/storage/database"
	"github.com/sistemaeducativo/gradebook/storage/database/docrepo"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	logger = logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	cli, closeFn, err := newCommandLine(conf, len(os.Args) > 1 && os.Args[1] == "migrate")
	errAndDie(err)

	err = cli.run(os.Args)
	closeFn()
	if err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
		}
		os.Exit(1)
	}
}

// newCommandLine wires the CLI. Migrations only get a raw SQL connection:
// opening the store would apply pending migrations first.
func newCommandLine(conf *core.Config, migrateOnly bool) (*commandLine, func(), error) {
	cli := &commandLine{out: os.Stdout}

	if migrateOnly {
		if conf.Database.Engine != storage.EnginePostgres {
			return cli, func() {}, nil
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, nil, err
		}
		cli.db = db
		return cli, closer(db), nil
	}

	if conf.Database.Engine == storage.EnginePostgres {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, nil, err
		}
	}
	store, err := storage.OpenStore(context.Background(), conf)
	if err != nil {
		return nil, nil, err
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	usrRepo := docrepo.NewUserRepository(store)
	cli.provider = identity.NewProvider(store, identity.NewMemorySessionStore(), conf)
	cli.usrSvc = user.NewService(usrRepo, cli.provider, mailSvc, logger, validate)
	cli.gradeSvc = grade.NewService(docrepo.NewGradeRepository(store), usrRepo, logger, validate, conf)
	return cli, closer(store), nil
}

type closable interface{ Close() error }

func closer(c closable) func() {
	return func() {
		if err := c.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
