// Package docstore abstracts the document database (Firestore in production)
// behind a small interface covering the operations this service needs:
// point reads/writes, filtered collection queries, and live snapshot watches.
// An in-memory implementation backs tests and local development.
package docstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Filter is a single field comparison applied to a collection query.
// Supported operators: "==", "array-contains".
type Filter struct {
	Field string
	Op    string
	Value interface{}
}

// Document is a raw document: its id within the collection and its fields.
type Document struct {
	ID   string
	Data map[string]interface{}
}

// Snapshot is one full result set delivered by a Watch.
type Snapshot struct {
	Docs []Document
}

// Store is the document-store contract. Paths are slash-separated, Firestore
// style: document paths have an even number of segments
// ("clinics/c1"), collection paths an odd number
// ("clinics/c1/waiting_list/2024-6-1/patients").
type Store interface {
	// Get reads a single document. Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, path string) (*Document, error)

	// Set creates or overwrites a document at the given path.
	Set(ctx context.Context, path string, data map[string]interface{}) error

	// Add creates a document with a generated id in the given collection and
	// returns the id.
	Add(ctx context.Context, collection string, data map[string]interface{}) (string, error)

	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, path string) error

	// Query returns all documents in the collection matching every filter.
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)

	// Watch opens a live subscription on the filtered collection. Every
	// change delivers a complete Snapshot on the returned channel. The
	// channel is closed when ctx is cancelled or the subscription fails;
	// callers that observe a close before ctx is done should degrade to a
	// one-shot Query.
	Watch(ctx context.Context, collection string, filters ...Filter) (<-chan Snapshot, error)
}

// GetString reads a string field from a raw document, returning "" when the
// field is absent or not a string.
func (d *Document) GetString(field string) string {
	s, _ := d.Data[field].(string)
	return s
}

// GetInt reads a numeric field from a raw document. Document stores hand
// numbers back as int64 or float64 depending on how they were written; both
// are accepted. The second return reports whether the field held a number.
func (d *Document) GetInt(field string) (int, bool) {
	switch v := d.Data[field].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
