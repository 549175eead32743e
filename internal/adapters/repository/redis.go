package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/raidstats/internal/domain/model"
	"github.com/okian/raidstats/pkg/metrics"
)

const defaultKeyPrefix = "raidstats"

// RedisStore keeps raid state in Redis:
//
//	<prefix>:ignored:<YYYY-MM>   hash  pair -> IgnoredRaidKey JSON
//	<prefix>:accepted:<YYYY-MM>  list  AcceptedRaid JSON, write order
//	<prefix>:members             string  []Member JSON
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects lazily; use Ping to check reachability.
func NewRedisStore(opt *redis.Options, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: redis.NewClient(opt), prefix: defaultKeyPrefix}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *RedisStore) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (s *RedisStore) LoadIgnored(ctx context.Context, month string) ([]model.IgnoredRaidKey, error) {
	defer observe("load_ignored", time.Now())
	vals, err := s.client.HGetAll(ctx, s.key("ignored", month)).Result()
	if err != nil {
		return nil, s.fail("load_ignored", err)
	}
	out := make([]model.IgnoredRaidKey, 0, len(vals))
	for field, raw := range vals {
		var rec model.IgnoredRaidKey
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("ignored %s/%q: %w: %w", month, field, ErrInvalidData, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *RedisStore) AddIgnored(ctx context.Context, rec model.IgnoredRaidKey) (bool, error) {
	defer observe("add_ignored", time.Now())
	b, err := json.Marshal(rec)
	if err != nil {
		return false, err
	}
	added, err := s.client.HSetNX(ctx, s.key("ignored", rec.Month), model.PairKey(rec.RaiderKey, rec.TargetKey), b).Result()
	if err != nil {
		return false, s.fail("add_ignored", err)
	}
	return added, nil
}

func (s *RedisStore) LoadAccepted(ctx context.Context, month string) ([]model.AcceptedRaid, error) {
	defer observe("load_accepted", time.Now())
	vals, err := s.client.LRange(ctx, s.key("accepted", month), 0, -1).Result()
	if err != nil {
		return nil, s.fail("load_accepted", err)
	}
	out := make([]model.AcceptedRaid, 0, len(vals))
	for i, raw := range vals {
		var r model.AcceptedRaid
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("accepted %s[%d]: %w: %w", month, i, ErrInvalidData, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *RedisStore) AppendAccepted(ctx context.Context, month string, raids ...model.AcceptedRaid) error {
	if len(raids) == 0 {
		return nil
	}
	defer observe("append_accepted", time.Now())
	vals := make([]any, 0, len(raids))
	for _, r := range raids {
		b, err := json.Marshal(r)
		if err != nil {
			return err
		}
		vals = append(vals, b)
	}
	if err := s.client.RPush(ctx, s.key("accepted", month), vals...).Err(); err != nil {
		return s.fail("append_accepted", err)
	}
	return nil
}

func (s *RedisStore) Members(ctx context.Context) ([]model.Member, error) {
	b, err := s.client.Get(ctx, s.key("members")).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, s.fail("members", err)
	}
	var out []model.Member
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("members: %w: %w", ErrInvalidData, err)
	}
	return out, nil
}

func (s *RedisStore) PutMembers(ctx context.Context, members []model.Member) error {
	b, err := json.Marshal(members)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key("members"), b, 0).Err(); err != nil {
		return s.fail("put_members", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return s.fail("ping", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) fail(op string, err error) error {
	metrics.RecordStoreError(op)
	return storeErr("redis "+op, err)
}
