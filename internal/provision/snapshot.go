// Package provision generates registry snapshots: batches of fresh
// identifiers with an initial fetch budget, serialized for the service to
// load at startup and for operators to hand out to clients.
package provision

import (
	"fmt"
	"time"
)

// SnapshotVersion is the current snapshot format version.
const SnapshotVersion = 1

// Snapshot is a persisted registry: a set of identifiers and the budget
// each one is provisioned with.
type Snapshot struct {
	Version   int             `toml:"version" yaml:"version" json:"version"`
	Budget    int64           `toml:"budget" yaml:"budget" json:"budget"`
	CreatedAt time.Time       `toml:"created_at" yaml:"created_at" json:"created_at"`
	Entries   []SnapshotEntry `toml:"entries" yaml:"entries" json:"entries"`
}

// SnapshotEntry is one identifier in a snapshot. A zero Budget inherits the
// snapshot budget.
type SnapshotEntry struct {
	ID     string `toml:"id" yaml:"id" json:"id"`
	Budget int64  `toml:"budget,omitempty" yaml:"budget,omitempty" json:"budget,omitempty"`
}

// Generate produces n fresh, collision-free identifiers, each seeded with
// budget.
func Generate(n int, budget int64) (*Snapshot, error) {
	if n <= 0 {
		return nil, fmt.Errorf("number of entries must be > 0")
	}
	if budget <= 0 {
		return nil, fmt.Errorf("budget must be > 0")
	}

	seen := make(map[string]struct{}, n)
	exists := func(id string) (bool, error) {
		_, ok := seen[id]
		return ok, nil
	}

	entries := make([]SnapshotEntry, 0, n)
	for i := 0; i < n; i++ {
		id, err := NewID(exists)
		if err != nil {
			return nil, err
		}
		seen[id] = struct{}{}
		entries = append(entries, SnapshotEntry{ID: id})
	}

	return &Snapshot{
		Version:   SnapshotVersion,
		Budget:    budget,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Entries:   entries,
	}, nil
}

// EntryBudget returns the effective budget of e within the snapshot.
func (s *Snapshot) EntryBudget(e SnapshotEntry) int64 {
	if e.Budget > 0 {
		return e.Budget
	}
	return s.Budget
}

// IDs returns the snapshot identifiers in order.
func (s *Snapshot) IDs() []string {
	ids := make([]string, 0, len(s.Entries))
	for _, e := range s.Entries {
		ids = append(ids, e.ID)
	}
	return ids
}

// Validate checks format version, budgets, and id uniqueness.
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("snapshot is empty")
	}
	if s.Version == 0 {
		s.Version = SnapshotVersion
	}
	if s.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	if s.Budget <= 0 {
		return fmt.Errorf("snapshot budget must be > 0")
	}
	if len(s.Entries) == 0 {
		return fmt.Errorf("snapshot has no entries")
	}
	seen := make(map[string]struct{}, len(s.Entries))
	for i, e := range s.Entries {
		if err := ValidateID(e.ID); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if e.Budget < 0 {
			return fmt.Errorf("entry %s: budget must be >= 0", e.ID)
		}
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("duplicate entry id %s", e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	return nil
}
