// Package ignore keeps the operator-maintained list of (raider, target) pairs
// that are noise for a month. The list is additive only.
package ignore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/raidstats/internal/domain/model"
)

// Store is the persistence the manager needs. AddIgnored must be idempotent
// on (month, raiderKey, targetKey) and report whether a record was created.
type Store interface {
	LoadIgnored(ctx context.Context, month string) ([]model.IgnoredRaidKey, error)
	AddIgnored(ctx context.Context, rec model.IgnoredRaidKey) (bool, error)
}

// Set is the in-memory ignore-list of one month.
type Set struct {
	month string
	keys  map[string]struct{}
}

// NewSet builds a set from persisted records; records of other months are skipped.
func NewSet(month string, recs []model.IgnoredRaidKey) *Set {
	s := &Set{month: month, keys: make(map[string]struct{}, len(recs))}
	for _, r := range recs {
		if r.Month == month {
			s.keys[model.PairKey(r.RaiderKey, r.TargetKey)] = struct{}{}
		}
	}
	return s
}

// Month returns the month the set belongs to.
func (s *Set) Month() string { return s.month }

// Len returns the number of ignored pairs.
func (s *Set) Len() int { return len(s.keys) }

// IsIgnored reports whether the pair is ignored for month.
func (s *Set) IsIgnored(month, raiderKey, targetKey string) bool {
	if s == nil || month != s.month {
		return false
	}
	_, ok := s.keys[model.PairKey(raiderKey, targetKey)]
	return ok
}

// Add records a pair in memory; false when it was already present.
func (s *Set) Add(raiderKey, targetKey string) bool {
	k := model.PairKey(raiderKey, targetKey)
	if _, ok := s.keys[k]; ok {
		return false
	}
	s.keys[k] = struct{}{}
	return true
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithClock sets the time source for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator sets the record id generator.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) {
		if gen != nil {
			m.newID = gen
		}
	}
}

// Manager loads and writes ignore-lists through a Store.
type Manager struct {
	store Store
	now   func() time.Time
	newID func() string
}

// NewManager creates a manager over store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{store: store, now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load fetches the month's ignore-list.
func (m *Manager) Load(ctx context.Context, month string) (*Set, error) {
	if _, err := model.ParseMonth(month); err != nil {
		return nil, err
	}
	recs, err := m.store.LoadIgnored(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("load ignore-list %s: %w", month, err)
	}
	return NewSet(month, recs), nil
}

// Ignore suppresses the pair for month. Ignoring an ignored pair is a no-op;
// the returned flag tells whether a new record was written.
func (m *Manager) Ignore(ctx context.Context, month, raiderKey, targetKey, rawText string) (bool, error) {
	if _, err := model.ParseMonth(month); err != nil {
		return false, err
	}
	if raiderKey == "" || targetKey == "" {
		return false, ErrEmptyKey
	}
	rec := model.IgnoredRaidKey{
		ID:        m.newID(),
		Month:     month,
		RaiderKey: raiderKey,
		TargetKey: targetKey,
		RawText:   rawText,
		CreatedAt: m.now().UTC(),
	}
	added, err := m.store.AddIgnored(ctx, rec)
	if err != nil {
		return false, fmt.Errorf("ignore %s -> %s: %w", raiderKey, targetKey, err)
	}
	return added, nil
}
