package sqlxdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync/atomic"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/sistemaeducativo/gradebook/core"
)

const table = "documents"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type documentRow struct {
	ID        string    `db:"id"`
	Data      null.JSON `db:"data"`
	UpdatedAt null.Time `db:"updated_at"`
}

func (row documentRow) document() core.Document {
	return core.Document{ID: row.ID, Data: json.RawMessage(row.Data.JSON)}
}

// DB is a DocumentStore keeping every collection in one JSONB table.
type DB struct {
	db     *sqlx.DB
	closed atomic.Bool
}

// checkOpen fails with a ShutdownError once Close was called.
func (s *DB) checkOpen() error {
	if s.closed.Load() {
		return core.NewShutdownError(core.ErrStoreClosed)
	}
	return nil
}

var _ core.DocumentStore = (*DB)(nil)

func New(db *sql.DB) *DB {
	return &DB{db: sqlx.NewDb(db, "postgres")}
}

func selectDocuments(coll string, filters ...core.Filter) sq.SelectBuilder {
	query := psql.Select("id", "data", "updated_at").
		From(table).
		Where(sq.Eq{"collection": coll})
	for _, f := range filters {
		query = query.Where(sq.Expr("data->>? = ?", f.Field, f.Value))
	}
	return query
}

func upsertDocument(coll, id string, data []byte) sq.InsertBuilder {
	return psql.Insert(table).
		Columns("collection", "id", "data").
		Values(coll, id, string(data)).
		Suffix("ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()")
}

func (s *DB) GetDocument(ctx context.Context, coll, id string) (core.Document, error) {
	if err := s.checkOpen(); err != nil {
		return core.Document{}, err
	}
	q, args, err := selectDocuments(coll).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return core.Document{}, errors.Wrap(err, "building query")
	}

	var row documentRow
	if err = s.db.GetContext(ctx, &row, q, args...); err != nil {
		if err == sql.ErrNoRows {
			return core.Document{}, core.ErrDocumentNotFound
		}
		return core.Document{}, errors.Wrapf(err, "getting %s/%s", coll, id)
	}
	return row.document(), nil
}

func (s *DB) SetDocument(ctx context.Context, coll, id string, data interface{}) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "encoding document")
	}
	q, args, err := upsertDocument(coll, id, raw).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if _, err = s.db.ExecContext(ctx, q, args...); err != nil {
		return errors.Wrapf(err, "setting %s/%s", coll, id)
	}
	return nil
}

func (s *DB) DeleteDocument(ctx context.Context, coll, id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	q, args, err := psql.Delete(table).Where(sq.Eq{"collection": coll, "id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if _, err = s.db.ExecContext(ctx, q, args...); err != nil {
		return errors.Wrapf(err, "deleting %s/%s", coll, id)
	}
	return nil
}

func (s *DB) QueryDocuments(ctx context.Context, coll string, filters ...core.Filter) ([]core.Document, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	q, args, err := selectDocuments(coll, filters...).OrderBy("id").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	var rows []documentRow
	if err = s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrapf(err, "querying %s", coll)
	}
	docs := make([]core.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, row.document())
	}
	return docs, nil
}

func (s *DB) Close() error {
	s.closed.Store(true)
	return s.db.Close()
}
