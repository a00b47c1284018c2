package docstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local development. Watches
// deliver a fresh snapshot on registration and after every mutation of the
// watched collection, coalescing to the latest snapshot when the consumer
// lags.
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[string]map[string]memoryDoc // collection -> id -> doc
	seq      int64
	watchers map[int64]*memoryWatcher
	watchSeq int64
}

type memoryDoc struct {
	seq  int64
	data map[string]interface{}
}

type memoryWatcher struct {
	collection string
	filters    []Filter
	ch         chan Snapshot
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]map[string]memoryDoc),
		watchers: make(map[int64]*memoryWatcher),
	}
}

// splitPath splits a slash-separated document path into its collection path
// and document id.
func splitPath(path string) (collection, id string, err error) {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return "", "", fmt.Errorf("invalid document path %q", path)
	}
	return path[:idx], path[idx+1:], nil
}

func (s *MemoryStore) Get(_ context.Context, path string) (*Document, error) {
	collection, id, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Document{ID: id, Data: cloneData(doc.data)}, nil
}

func (s *MemoryStore) Set(_ context.Context, path string, data map[string]interface{}) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]memoryDoc)
	}
	seq := s.seq
	if existing, ok := s.docs[collection][id]; ok {
		seq = existing.seq
	} else {
		s.seq++
	}
	s.docs[collection][id] = memoryDoc{seq: seq, data: cloneData(data)}
	s.notifyLocked(collection)
	return nil
}

func (s *MemoryStore) Add(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	id := uuid.New().String()
	if err := s.Set(ctx, collection+"/"+id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) Delete(_ context.Context, path string) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[collection][id]; !ok {
		return nil
	}
	delete(s.docs[collection], id)
	s.notifyLocked(collection)
	return nil
}

func (s *MemoryStore) Query(_ context.Context, collection string, filters ...Filter) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryLocked(collection, filters), nil
}

func (s *MemoryStore) Watch(ctx context.Context, collection string, filters ...Filter) (<-chan Snapshot, error) {
	s.mu.Lock()
	w := &memoryWatcher{
		collection: collection,
		filters:    filters,
		ch:         make(chan Snapshot, 1),
	}
	s.watchSeq++
	key := s.watchSeq
	s.watchers[key] = w
	push(w.ch, Snapshot{Docs: s.queryLocked(collection, filters)})
	s.mu.Unlock()

	out := make(chan Snapshot)
	go func() {
		defer close(out)
		defer func() {
			s.mu.Lock()
			delete(s.watchers, key)
			s.mu.Unlock()
		}()
		for {
			select {
			case snap := <-w.ch:
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// queryLocked returns matching documents in insertion order. Caller holds at
// least a read lock.
func (s *MemoryStore) queryLocked(collection string, filters []Filter) []Document {
	type seqDoc struct {
		seq int64
		doc Document
	}
	var matched []seqDoc
	for id, d := range s.docs[collection] {
		if matchesFilters(d.data, filters) {
			matched = append(matched, seqDoc{seq: d.seq, doc: Document{ID: id, Data: cloneData(d.data)}})
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	docs := make([]Document, 0, len(matched))
	for _, m := range matched {
		docs = append(docs, m.doc)
	}
	return docs
}

func (s *MemoryStore) notifyLocked(collection string) {
	for _, w := range s.watchers {
		if w.collection != collection {
			continue
		}
		push(w.ch, Snapshot{Docs: s.queryLocked(collection, w.filters)})
	}
}

// push delivers a snapshot without blocking: when the buffer already holds an
// undelivered snapshot, the stale one is replaced.
func push(ch chan Snapshot, snap Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

func matchesFilters(data map[string]interface{}, filters []Filter) bool {
	for _, f := range filters {
		if !matchesFilter(data, f) {
			return false
		}
	}
	return true
}

func matchesFilter(data map[string]interface{}, f Filter) bool {
	v, ok := data[f.Field]
	if !ok {
		return false
	}
	switch f.Op {
	case "==":
		return reflect.DeepEqual(v, f.Value)
	case "array-contains":
		switch arr := v.(type) {
		case []interface{}:
			for _, item := range arr {
				if reflect.DeepEqual(item, f.Value) {
					return true
				}
			}
		case []string:
			want, _ := f.Value.(string)
			for _, item := range arr {
				if item == want {
					return true
				}
			}
		}
		return false
	default:
		return false
	}
}

func cloneData(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
