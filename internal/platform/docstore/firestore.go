package docstore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// firestoreStore implements Store on top of Cloud Firestore.
type firestoreStore struct {
	client *firestore.Client
}

// NewFirestore connects to the given Firestore project. credentialsFile may
// be empty, in which case application default credentials apply.
func NewFirestore(ctx context.Context, projectID, credentialsFile string) (Store, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &firestoreStore{client: client}, nil
}

func (s *firestoreStore) Get(ctx context.Context, path string) (*Document, error) {
	snap, err := s.client.Doc(path).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return &Document{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

func (s *firestoreStore) Set(ctx context.Context, path string, data map[string]interface{}) error {
	if _, err := s.client.Doc(path).Set(ctx, data); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

func (s *firestoreStore) Add(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, data)
	if err != nil {
		return "", fmt.Errorf("add to %s: %w", collection, err)
	}
	return ref.ID, nil
}

func (s *firestoreStore) Delete(ctx context.Context, path string) error {
	if _, err := s.client.Doc(path).Delete(ctx); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (s *firestoreStore) buildQuery(collection string, filters []Filter) firestore.Query {
	q := s.client.Collection(collection).Query
	for _, f := range filters {
		q = q.Where(f.Field, f.Op, f.Value)
	}
	return q
}

func (s *firestoreStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	snaps, err := s.buildQuery(collection, filters).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	docs := make([]Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, Document{ID: snap.Ref.ID, Data: snap.Data()})
	}
	return docs, nil
}

func (s *firestoreStore) Watch(ctx context.Context, collection string, filters ...Filter) (<-chan Snapshot, error) {
	it := s.buildQuery(collection, filters).Snapshots(ctx)
	ch := make(chan Snapshot, 1)

	go func() {
		defer close(ch)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				// Cancellation and terminal stream errors both end the
				// subscription; the consumer decides how to degrade.
				return
			}
			refs, err := snap.Documents.GetAll()
			if err != nil {
				return
			}
			docs := make([]Document, 0, len(refs))
			for _, r := range refs {
				docs = append(docs, Document{ID: r.Ref.ID, Data: r.Data()})
			}
			select {
			case ch <- Snapshot{Docs: docs}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}
