package inmemdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/sistemaeducativo/gradebook/core"
)

type collection map[string]json.RawMessage

// DB is a DocumentStore kept in memory. Documents are stored as JSON so that
// callers never share memory with the store.
type DB struct {
	mutex       sync.RWMutex
	collections map[string]collection // nil once closed
}

var errClosed = core.NewShutdownError(core.ErrStoreClosed)

var _ core.DocumentStore = (*DB)(nil)

func Open() *DB {
	return &DB{collections: make(map[string]collection)}
}

func (db *DB) GetDocument(_ context.Context, coll, id string) (core.Document, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	if db.collections == nil {
		return core.Document{}, errClosed
	}

	if data, ok := db.collections[coll][id]; ok {
		return core.Document{ID: id, Data: copyRaw(data)}, nil
	}
	return core.Document{}, core.ErrDocumentNotFound
}

func (db *DB) SetDocument(_ context.Context, coll, id string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "encoding document")
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()
	if db.collections == nil {
		return errClosed
	}
	if _, ok := db.collections[coll]; !ok {
		db.collections[coll] = make(collection)
	}
	db.collections[coll][id] = raw
	return nil
}

func (db *DB) DeleteDocument(_ context.Context, coll, id string) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	if db.collections == nil {
		return errClosed
	}
	delete(db.collections[coll], id)
	return nil
}

func (db *DB) QueryDocuments(_ context.Context, coll string, filters ...core.Filter) ([]core.Document, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	if db.collections == nil {
		return nil, errClosed
	}

	docs := make([]core.Document, 0)
	for id, data := range db.collections[coll] {
		ok, err := match(data, filters)
		if err != nil {
			return nil, errors.Wrapf(err, "filtering %s/%s", coll, id)
		}
		if ok {
			docs = append(docs, core.Document{ID: id, Data: copyRaw(data)})
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.collections = nil
	return nil
}

func match(data json.RawMessage, filters []core.Filter) (bool, error) {
	if len(filters) == 0 {
		return true, nil
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return false, err
	}
	for _, f := range filters {
		val, ok := fields[f.Field]
		if !ok || val == nil {
			return false, nil
		}
		if s, isStr := val.(string); isStr {
			if s != f.Value {
				return false, nil
			}
		} else if fmt.Sprint(val) != f.Value {
			return false, nil
		}
	}
	return true, nil
}

func copyRaw(data json.RawMessage) json.RawMessage {
	cp := make(json.RawMessage, len(data))
	copy(cp, data)
	return cp
}
