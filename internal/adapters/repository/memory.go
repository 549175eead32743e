package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/raidstats/internal/domain/model"
	"github.com/okian/raidstats/pkg/metrics"
)

// MemoryStore is a process-local Store. It is the default backend and the
// one tests run against.
type MemoryStore struct {
	mu       sync.RWMutex
	ignored  map[string][]model.IgnoredRaidKey
	ignSeen  map[string]struct{}
	accepted map[string][]model.AcceptedRaid
	members  []model.Member
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		ignored:  make(map[string][]model.IgnoredRaidKey),
		ignSeen:  make(map[string]struct{}),
		accepted: make(map[string][]model.AcceptedRaid),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) LoadIgnored(_ context.Context, month string) ([]model.IgnoredRaidKey, error) {
	defer observe("load_ignored", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.IgnoredRaidKey(nil), s.ignored[month]...), nil
}

func (s *MemoryStore) AddIgnored(_ context.Context, rec model.IgnoredRaidKey) (bool, error) {
	defer observe("add_ignored", time.Now())
	k := rec.Month + "/" + model.PairKey(rec.RaiderKey, rec.TargetKey)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ignSeen[k]; ok {
		return false, nil
	}
	s.ignSeen[k] = struct{}{}
	s.ignored[rec.Month] = append(s.ignored[rec.Month], rec)
	return true, nil
}

func (s *MemoryStore) LoadAccepted(_ context.Context, month string) ([]model.AcceptedRaid, error) {
	defer observe("load_accepted", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.AcceptedRaid(nil), s.accepted[month]...), nil
}

func (s *MemoryStore) AppendAccepted(_ context.Context, month string, raids ...model.AcceptedRaid) error {
	defer observe("append_accepted", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepted[month] = append(s.accepted[month], raids...)
	return nil
}

func (s *MemoryStore) Members(_ context.Context) ([]model.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Member(nil), s.members...), nil
}

func (s *MemoryStore) PutMembers(_ context.Context, members []model.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members = append([]model.Member(nil), members...)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func observe(op string, start time.Time) {
	metrics.RecordRepositoryLatency(op, float64(time.Since(start).Microseconds())/1000)
}
