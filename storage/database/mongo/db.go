package mongodb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sistemaeducativo/gradebook/core"
)

const idField = "_id"

// DB is a DocumentStore backed by one MongoDB database; the document id is stored as _id.
type DB struct {
	client   *mongo.Client
	database *mongo.Database
}

var _ core.DocumentStore = (*DB)(nil)

func Open(ctx context.Context, conf *core.Config) (*DB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(conf.Database.URI))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongo")
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "pinging mongo")
	}

	database := client.Database(conf.Database.Name)
	for _, coll := range []string{"users", "credentials"} {
		_, err = database.Collection(coll).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, errors.Wrapf(err, "indexing %s", coll)
		}
	}
	return &DB{client: client, database: database}, nil
}

// wrapErr annotates err; a disconnected client is reported as a ShutdownError.
func wrapErr(err error, format string, args ...interface{}) error {
	if errors.Is(err, mongo.ErrClientDisconnected) {
		err = core.NewShutdownError(core.ErrStoreClosed)
	}
	return errors.Wrapf(err, format, args...)
}

// toBSON converts a JSON encodable value into a mongo document with the given id.
func toBSON(id string, data interface{}) (bson.M, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "encoding document")
	}
	var doc bson.M
	if err = bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
		return nil, errors.Wrap(err, "converting document")
	}
	doc[idField] = id
	return doc, nil
}

// fromBSON converts a stored mongo document back to JSON, without its _id.
func fromBSON(raw bson.Raw) (core.Document, error) {
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return core.Document{}, errors.Wrap(err, "decoding document")
	}
	id, _ := doc[idField].(string)
	delete(doc, idField)

	data, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return core.Document{}, errors.Wrapf(err, "converting document %s", id)
	}
	return core.Document{ID: id, Data: data}, nil
}

func (s *DB) GetDocument(ctx context.Context, coll, id string) (core.Document, error) {
	raw, err := s.database.Collection(coll).FindOne(ctx, bson.M{idField: id}).Raw()
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return core.Document{}, core.ErrDocumentNotFound
		}
		return core.Document{}, wrapErr(err, "getting %s/%s", coll, id)
	}
	return fromBSON(raw)
}

func (s *DB) SetDocument(ctx context.Context, coll, id string, data interface{}) error {
	doc, err := toBSON(id, data)
	if err != nil {
		return err
	}
	_, err = s.database.Collection(coll).ReplaceOne(ctx, bson.M{idField: id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return wrapErr(err, "setting %s/%s", coll, id)
	}
	return nil
}

func (s *DB) DeleteDocument(ctx context.Context, coll, id string) error {
	if _, err := s.database.Collection(coll).DeleteOne(ctx, bson.M{idField: id}); err != nil {
		return wrapErr(err, "deleting %s/%s", coll, id)
	}
	return nil
}

func (s *DB) QueryDocuments(ctx context.Context, coll string, filters ...core.Filter) ([]core.Document, error) {
	filter := bson.D{}
	for _, f := range filters {
		filter = append(filter, bson.E{Key: f.Field, Value: f.Value})
	}
	cur, err := s.database.Collection(coll).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: idField, Value: 1}}))
	if err != nil {
		return nil, wrapErr(err, "querying %s", coll)
	}
	defer func() { _ = cur.Close(ctx) }()

	docs := make([]core.Document, 0)
	for cur.Next(ctx) {
		doc, err := fromBSON(cur.Current)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err = cur.Err(); err != nil {
		return nil, wrapErr(err, "querying %s", coll)
	}
	return docs, nil
}

func (s *DB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
