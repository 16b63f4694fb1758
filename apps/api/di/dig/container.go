package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/sistemaeducativo/gradebook/apps/api/echo"
	"github.com/sistemaeducativo/gradebook/core"
	"github.com/sistemaeducativo/gradebook/core/auth"
	"github.com/sistemaeducativo/gradebook/core/grade"
	"github.com/sistemaeducativo/gradebook/core/user"
	emailsvc "github.com/sistemaeducativo/gradebook/services/email"
	"github.com/sistemaeducativo/gradebook/services/identity"
	logsvc "github.com/sistemaeducativo/gradebook/services/logger"
	"github.com/sistemaeducativo/gradebook/storage"
	"github.com/sistemaeducativo/gradebook/storage/database"
	"github.com/sistemaeducativo/gradebook/storage/database/docrepo"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type serverParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	UserSvc    *user.Service
	GradeSvc   *grade.Service
	Provider   auth.Provider
	Gate       *auth.Gate
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newStore(conf *core.Config, loggerParam DBLoggerParam) core.DocumentStore {
	setUp := func() (core.DocumentStore, error) {
		if conf.Database.Engine == storage.EnginePostgres {
			if err := database.CreateIfNotExist(conf); err != nil {
				return nil, err
			}
		}
		return storage.OpenStore(context.Background(), conf)
	}

	store, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return store
}

func newSessionStore(conf *core.Config) identity.SessionStore {
	if conf.Redis.Address == "" {
		return identity.NewMemorySessionStore()
	}
	return identity.NewRedisSessionStore(conf)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Conf:       p.Conf,
		Logger:     p.Logger,
		Validate:   p.Validate,
		Translator: p.Translator,
		UserSvc:    p.UserSvc,
		GradeSvc:   p.GradeSvc,
		Provider:   p.Provider,
		Gate:       p.Gate,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStore))
	must(c.Provide(newSessionStore))
	must(c.Provide(newEmailService))
	must(c.Provide(docrepo.NewUserRepository))
	must(c.Provide(docrepo.NewGradeRepository))
	must(c.Provide(identity.NewProvider, dig.As(new(auth.Provider), new(user.Registrar))))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(user.NewService))
	must(c.Provide(func(repo user.Repository) grade.UserGetter { return repo }))
	must(c.Provide(func(repo user.Repository) auth.UserGetter { return repo }))
	must(c.Provide(grade.NewService))
	must(c.Provide(auth.NewGate))
	must(c.Provide(newServer))

	if os.Getenv("DIG_VISUALIZE") != "" {
		_ = dig.Visualize(c, os.Stdout)
	}

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
