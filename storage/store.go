package storage

import (
	"context"

	"github.com/pkg/errors"

	"github.com/sistemaeducativo/gradebook/core"
	"github.com/sistemaeducativo/gradebook/storage/database"
	"github.com/sistemaeducativo/gradebook/storage/database/inmem"
	"github.com/sistemaeducativo/gradebook/storage/database/mongo"
	"github.com/sistemaeducativo/gradebook/storage/database/sqlx"
)

// Database engines
const (
	EnginePostgres = "postgres"
	EngineMongo    = "mongo"
	EngineMemory   = "memory"
)

// OpenStore opens the DocumentStore of the configured engine.
func OpenStore(ctx context.Context, conf *core.Config) (core.DocumentStore, error) {
	switch conf.Database.Engine {
	case EnginePostgres:
		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if err = database.Migrate(ctx, db, "up"); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "migrating database")
		}
		return sqlxdb.New(db), nil
	case EngineMongo:
		return mongodb.Open(ctx, conf)
	case EngineMemory, "":
		return inmemdb.Open(), nil
	default:
		return nil, errors.Errorf("unknown database engine %q", conf.Database.Engine)
	}
}
