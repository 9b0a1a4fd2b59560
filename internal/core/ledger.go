package core

import (
	"context"
	"strings"
	"time"
)

// SwimmerSet is an insertion-ordered set of swimmer ids touched by an import.
type SwimmerSet struct {
	ids  []string
	seen map[string]struct{}
}

// NewSwimmerSet creates an empty set.
func NewSwimmerSet() *SwimmerSet {
	return &SwimmerSet{seen: make(map[string]struct{})}
}

// Add inserts id if it is not already present.
func (s *SwimmerSet) Add(id string) {
	if id == "" {
		return
	}
	if _, ok := s.seen[id]; ok {
		return
	}
	s.seen[id] = struct{}{}
	s.ids = append(s.ids, id)
}

// Len returns the number of distinct ids.
func (s *SwimmerSet) Len() int {
	return len(s.ids)
}

// IDs returns the ids in first-touch order.
func (s *SwimmerSet) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// String serializes the set as a comma-joined list. Treat it as opaque provenance.
func (s *SwimmerSet) String() string {
	return strings.Join(s.ids, ",")
}

// Ledger appends import provenance rows. It never updates or deletes.
type Ledger struct {
	store Store
	now   func() time.Time
}

// NewLedger creates a Ledger writing through store.
func NewLedger(store Store) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// Record appends one ImportHistory row for a completed import.
func (l *Ledger) Record(ctx context.Context, meetID string, dataset Dataset, swimmers *SwimmerSet, rowCount int, duration time.Duration) (ImportHistory, error) {
	entry := ImportHistory{
		LoadTime:    l.now().UTC(),
		MeetID:      meetID,
		Dataset:     dataset,
		NumSwimmers: swimmers.Len(),
		NumEntries:  rowCount,
		DurationMs:  duration.Milliseconds(),
		Swimmers:    swimmers.String(),
	}

	saved, err := l.store.AppendImportHistory(ctx, entry)
	if err != nil {
		return ImportHistory{}, storeErr("append import history", err)
	}
	return saved, nil
}
