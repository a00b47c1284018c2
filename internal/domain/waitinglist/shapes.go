package waitinglist

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
)

// Shape identifies which historical storage layout a clinic's waiting list
// lives under. The layout changed twice over the product's lifetime and not
// every clinic was migrated.
type Shape string

const (
	// ShapeCurrent is the current layout: clinics/{id}/waiting_list/{date}/patients.
	ShapeCurrent Shape = "waiting_list"
	// ShapeLegacy is the camel-cased predecessor of ShapeCurrent.
	ShapeLegacy Shape = "waitingList"
	// ShapeFlat is the oldest layout, a single undated collection per clinic.
	ShapeFlat Shape = "flat"
)

// shapeCandidates is the probe order, newest layout first.
var shapeCandidates = []Shape{ShapeCurrent, ShapeLegacy, ShapeFlat}

// Collection returns the collection path for a clinic and local-date key
// under this shape. The date key is yyyy-M-d without zero padding.
func (s Shape) Collection(clinicID, dateKey string) string {
	switch s {
	case ShapeCurrent:
		return fmt.Sprintf("clinics/%s/waiting_list/%s/patients", clinicID, dateKey)
	case ShapeLegacy:
		return fmt.Sprintf("clinics/%s/waitingList/%s/patients", clinicID, dateKey)
	default:
		return fmt.Sprintf("clinics/%s/patients", clinicID)
	}
}

// ShapeStore persists resolved shapes so probing happens once per clinic, not
// on every subscription open.
type ShapeStore interface {
	Get(ctx context.Context, clinicID string) (Shape, bool, error)
	Put(ctx context.Context, clinicID string, shape Shape) error
}

// PGShapeStore keeps resolved shapes in the schema_shapes table.
type PGShapeStore struct {
	pool *pgxpool.Pool
}

func NewPGShapeStore(pool *pgxpool.Pool) *PGShapeStore {
	return &PGShapeStore{pool: pool}
}

func (s *PGShapeStore) Get(ctx context.Context, clinicID string) (Shape, bool, error) {
	var shape string
	err := s.pool.QueryRow(ctx,
		`SELECT shape FROM schema_shapes WHERE clinic_id = $1`, clinicID,
	).Scan(&shape)
	if err == pgx.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("shape lookup: %w", err)
	}
	return Shape(shape), true, nil
}

func (s *PGShapeStore) Put(ctx context.Context, clinicID string, shape Shape) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO schema_shapes (clinic_id, shape, resolved_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (clinic_id) DO UPDATE SET shape = $2, resolved_at = $3`,
		clinicID, string(shape), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("shape store: %w", err)
	}
	return nil
}

// MemShapeStore is the in-memory ShapeStore used by tests and by deployments
// without a database.
type MemShapeStore struct {
	shapes map[string]Shape
}

func NewMemShapeStore() *MemShapeStore {
	return &MemShapeStore{shapes: make(map[string]Shape)}
}

func (s *MemShapeStore) Get(_ context.Context, clinicID string) (Shape, bool, error) {
	shape, ok := s.shapes[clinicID]
	return shape, ok, nil
}

func (s *MemShapeStore) Put(_ context.Context, clinicID string, shape Shape) error {
	s.shapes[clinicID] = shape
	return nil
}

// resolveShape determines the clinic's layout: the cached shape when one is
// stored, otherwise the first candidate whose collection holds any document
// for the given day. All-empty probes settle on the current layout so new
// clinics never re-probe legacy paths.
func resolveShape(ctx context.Context, store docstore.Store, shapes ShapeStore, clinicID, dateKey string) (Shape, error) {
	if shape, ok, err := shapes.Get(ctx, clinicID); err != nil {
		return "", err
	} else if ok {
		return shape, nil
	}

	var probeErr error
	for _, candidate := range shapeCandidates {
		docs, err := store.Query(ctx, candidate.Collection(clinicID, dateKey))
		if err != nil {
			probeErr = err
			continue
		}
		if len(docs) > 0 {
			if err := shapes.Put(ctx, clinicID, candidate); err != nil {
				return "", err
			}
			return candidate, nil
		}
	}
	if probeErr != nil {
		return "", fmt.Errorf("shape probe: %w", probeErr)
	}

	if err := shapes.Put(ctx, clinicID, ShapeCurrent); err != nil {
		return "", err
	}
	return ShapeCurrent, nil
}
