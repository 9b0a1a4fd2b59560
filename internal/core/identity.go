package core

import (
	"context"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultNameCacheTTL is how long a resolved name stays cached.
const DefaultNameCacheTTL = 5 * time.Minute

// Resolver maps external records to canonical swimmers.
//
// Only successful name lookups are cached, and only for the lifetime of the
// Resolver. An entries import can add a second swimmer with a cached name, so
// a Resolver must not outlive the import call it was created for. Misses are
// never cached.
type Resolver struct {
	store Store
	names *cache.Cache
}

// NewResolver creates a Resolver. A ttl <= 0 uses DefaultNameCacheTTL.
// The cache runs no janitor; expired entries are dropped on lookup.
func NewResolver(store Store, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultNameCacheTTL
	}
	return &Resolver{
		store: store,
		names: cache.New(ttl, 0),
	}
}

// ByID returns the swimmer id asserted by the external record, trimmed.
func (r *Resolver) ByID(externalID string) string {
	return strings.TrimSpace(externalID)
}

// ByName resolves a "Last, First" label with an exact name lookup.
// Zero or multiple matches return an *IdentityResolutionError.
func (r *Resolver) ByName(ctx context.Context, label string) (Swimmer, error) {
	first, last := SplitNameLabel(label)
	if first == "" || last == "" {
		return Swimmer{}, &IdentityResolutionError{Label: label, Err: ErrSwimmerNotFound}
	}

	key := first + "\x00" + last
	if cached, found := r.names.Get(key); found {
		if s, ok := cached.(Swimmer); ok {
			return s, nil
		}
	}

	matches, err := r.store.FindSwimmersByName(ctx, first, last)
	if err != nil {
		return Swimmer{}, storeErr("find swimmer by name", err)
	}

	switch len(matches) {
	case 0:
		return Swimmer{}, &IdentityResolutionError{Label: label, Err: ErrSwimmerNotFound}
	case 1:
		r.names.Set(key, matches[0], cache.DefaultExpiration)
		return matches[0], nil
	default:
		return Swimmer{}, &IdentityResolutionError{Label: label, Matches: len(matches), Err: ErrAmbiguousSwimmer}
	}
}

// SplitNameLabel splits a results name label into (first, last).
//
// "Doe, Jane" splits on the first comma; the first whitespace token after the
// comma is the first name. A label without a comma is read as "First Last".
func SplitNameLabel(label string) (first, last string) {
	label = strings.TrimSpace(label)
	if before, after, found := strings.Cut(label, ","); found {
		last = strings.TrimSpace(before)
		if fields := strings.Fields(after); len(fields) > 0 {
			first = fields[0]
		}
		return first, last
	}

	fields := strings.Fields(label)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], fields[1]
	}
}

// SplitEntryName splits the entries file's space-joined "Last First" name.
// The first token is the last name and the last token is the first name.
func SplitEntryName(fullName string) (first, last string) {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return "", ""
	}
	last = strings.TrimRight(fields[0], ",")
	first = fields[len(fields)-1]
	return first, last
}
