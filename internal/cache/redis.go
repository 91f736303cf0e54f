package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/yanizio/hotelstats/internal/metrics"
)

const scanBatch = 500

// RedisStore keeps entries in Redis under <prefix><key>.  Each value is a
// msgpack envelope holding the payload and its computed-at time, so one
// GET or MGET returns a complete Entry.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

type envelope struct {
	Value      []byte `msgpack:"v"`
	ComputedAt int64  `msgpack:"t"`
}

// NewRedisStore wraps client.  keyPrefix isolates this service's keys from
// other users of the same database, e.g. "hotelstats:".
func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, prefix: keyPrefix}
}

func (s *RedisStore) Put(ctx context.Context, key Key, value []byte, computedAt time.Time) error {
	if err := key.Validate(); err != nil {
		return err
	}
	b, err := msgpack.Marshal(envelope{Value: value, ComputedAt: computedAt.UnixNano()})
	if err != nil {
		return fmt.Errorf("cache: redis envelope: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+key.String(), b, 0).Err(); err != nil {
		return fmt.Errorf("cache: redis set %s: %w", key, err)
	}
	metrics.CacheWritesTotal.WithLabelValues(string(key.Namespace), key.Metric).Inc()
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key Key) (Entry, error) {
	if err := key.Validate(); err != nil {
		return Entry{}, err
	}
	b, err := s.client.Get(ctx, s.prefix+key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("cache: redis get %s: %w", key, err)
	}
	return s.unwrap(key, b)
}

func (s *RedisStore) Scan(ctx context.Context, prefix Prefix) ([]Entry, error) {
	if err := prefix.Validate(); err != nil {
		return nil, err
	}
	keys, err := s.scanKeys(ctx, prefix.String())
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("cache: redis mget: %w", err)
	}

	out := make([]Entry, 0, len(keys))
	for i, raw := range vals {
		str, ok := raw.(string)
		if !ok {
			continue // deleted between SCAN and MGET
		}
		k, err := ParseKey(strings.TrimPrefix(keys[i], s.prefix))
		if err != nil {
			return nil, err
		}
		ent, err := s.unwrap(k, []byte(str))
		if err != nil {
			return nil, err
		}
		out = append(out, ent)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out, nil
}

func (s *RedisStore) Clear(ctx context.Context, ns Namespace) (int, error) {
	keys, err := s.scanKeys(ctx, string(ns)+":")
	if err != nil {
		return 0, err
	}
	var n int
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		removed, err := s.client.Del(ctx, keys[start:end]...).Result()
		n += int(removed)
		if err != nil {
			return n, fmt.Errorf("cache: redis del: %w", err)
		}
	}
	metrics.CacheClearsTotal.WithLabelValues(string(ns)).Inc()
	return n, nil
}

// scanKeys walks SCAN MATCH <prefix><p>*.  Key parts are digits, names, and
// dates, so the pattern never needs glob escaping.
func (s *RedisStore) scanKeys(ctx context.Context, p string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
		seen   = make(map[string]struct{})
	)
	match := s.prefix + p + "*"
	for {
		batch, next, err := s.client.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("cache: redis scan %s: %w", match, err)
		}
		// SCAN may return a key more than once.
		for _, k := range batch {
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

func (s *RedisStore) unwrap(key Key, b []byte) (Entry, error) {
	var env envelope
	if err := msgpack.Unmarshal(b, &env); err != nil {
		return Entry{}, fmt.Errorf("cache: redis envelope %s: %w", key, err)
	}
	return Entry{Key: key, Value: env.Value, ComputedAt: time.Unix(0, env.ComputedAt)}, nil
}
