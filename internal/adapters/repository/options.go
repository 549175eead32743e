package repository

import "github.com/okian/raidstats/internal/domain/model"

// MemoryOption applies a configuration option to the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMembers seeds the roster.
func WithMembers(members []model.Member) MemoryOption {
	return func(s *MemoryStore) {
		s.members = append([]model.Member(nil), members...)
	}
}

// RedisOption applies a configuration option to the RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix namespaces every key, e.g. "raidstats".
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}
