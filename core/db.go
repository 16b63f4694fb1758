package core

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrDocumentNotFound is returned by DocumentStore.GetDocument when no document has the requested id.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrStoreClosed is wrapped in a ShutdownError by stores used after Close.
	ErrStoreClosed = errors.New("document store is closed")
)

type (
	// Document is a stored JSON object and its id within a collection.
	Document struct {
		ID   string
		Data json.RawMessage
	}

	// Filter is an equality condition on a top-level document field.
	Filter struct {
		Field string
		Value string
	}

	// DocumentStore is a collection-oriented store of JSON documents.
	// Documents are always written whole: SetDocument overwrites any previous content.
	DocumentStore interface {
		GetDocument(ctx context.Context, collection, id string) (Document, error)
		SetDocument(ctx context.Context, collection, id string, data interface{}) error
		DeleteDocument(ctx context.Context, collection, id string) error
		// QueryDocuments applies AND on filters; results are ordered by document id.
		QueryDocuments(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
		Close() error
	}
)

// Decode unmarshals the document's data into v.
func (doc Document) Decode(v interface{}) error {
	return json.Unmarshal(doc.Data, v)
}

// Where builds an equality Filter.
func Where(field, value string) Filter {
	return Filter{Field: field, Value: value}
}
