package memory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gestion/internal/core"
	"gestion/internal/records"
)

// Store keeps both partitions in maps keyed by id.
type Store struct {
	mu         sync.Mutex
	expenses   map[string]core.Expense
	provisions map[string]core.Provision
}

func New() *Store {
	return &Store{
		expenses:   make(map[string]core.Expense),
		provisions: make(map[string]core.Provision),
	}
}

// NewFromFiles returns a store seeded from base/seed.json when present.
func NewFromFiles(base string) *Store {
	s := New()
	path := filepath.Join(base, "seed.json")
	f, err := os.Open(path)
	if err != nil {
		return s
	}
	defer f.Close()

	snap, err := records.ReadSnapshot(f)
	if err != nil {
		slog.Warn("Ignoring unreadable seed file", "path", path, "error", err)
		return s
	}
	importSeed(s, snap, path)
	return s
}

// importSeed loads snap into u and logs the outcome. It returns the number of
// records written.
func importSeed(u records.Upserter, snap records.Snapshot, path string) int {
	n, err := records.Import(context.Background(), u, snap)
	if err != nil {
		slog.Warn("Seed file partially imported", "path", path, "records", n, "error", err)
		return n
	}
	slog.Info("Seeded memory store", "path", path, "records", n)
	return n
}

// ListAll returns copies of every record of kind.
func (s *Store) ListAll(_ context.Context, kind core.Kind) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case core.KindExpense:
		out := make([]core.Record, 0, len(s.expenses))
		for _, e := range s.expenses {
			e.Photo = append([]byte(nil), e.Photo...)
			out = append(out, core.ExpenseRecord(e))
		}
		return out, nil
	case core.KindProvision:
		out := make([]core.Record, 0, len(s.provisions))
		for _, p := range s.provisions {
			out = append(out, core.ProvisionRecord(p))
		}
		return out, nil
	}
	return nil, fmt.Errorf("list %q: %w", kind, core.ErrInvalidKind)
}

// Upsert stores r under its id, replacing any previous record.
func (s *Store) Upsert(_ context.Context, r core.Record) error {
	if r.ID() == "" {
		return core.ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case r.Kind == core.KindExpense && r.Expense != nil:
		e := *r.Expense
		e.Photo = append([]byte(nil), e.Photo...)
		s.expenses[e.ID] = e
	case r.Kind == core.KindProvision && r.Provision != nil:
		s.provisions[r.Provision.ID] = *r.Provision
	default:
		return core.ErrInvalidKind
	}
	return nil
}

func (s *Store) Delete(_ context.Context, kind core.Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case core.KindExpense:
		delete(s.expenses, id)
	case core.KindProvision:
		delete(s.provisions, id)
	default:
		return core.ErrInvalidKind
	}
	return nil
}
