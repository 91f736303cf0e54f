package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanizio/hotelstats/internal/metrics"
)

// MemoryStore keeps entries in a sync.Map keyed by Key.String().  Writes
// to distinct keys never contend; Scan and Clear walk the map.
type MemoryStore struct {
	m     sync.Map
	count atomic.Int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Put(_ context.Context, key Key, value []byte, computedAt time.Time) error {
	if err := key.Validate(); err != nil {
		return err
	}
	ent := Entry{Key: key, Value: clone(value), ComputedAt: computedAt}
	if _, loaded := s.m.Swap(key.String(), ent); !loaded {
		s.count.Add(1)
		metrics.CacheEntries.Inc()
	}
	metrics.CacheWritesTotal.WithLabelValues(string(key.Namespace), key.Metric).Inc()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key Key) (Entry, error) {
	if err := key.Validate(); err != nil {
		return Entry{}, err
	}
	v, ok := s.m.Load(key.String())
	if !ok {
		return Entry{}, ErrNotFound
	}
	ent := v.(Entry)
	ent.Value = clone(ent.Value)
	return ent, nil
}

func (s *MemoryStore) Scan(_ context.Context, prefix Prefix) ([]Entry, error) {
	if err := prefix.Validate(); err != nil {
		return nil, err
	}
	p := prefix.String()
	var out []Entry
	s.m.Range(func(k, v any) bool {
		if strings.HasPrefix(k.(string), p) {
			ent := v.(Entry)
			ent.Value = clone(ent.Value)
			out = append(out, ent)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out, nil
}

func (s *MemoryStore) Clear(_ context.Context, ns Namespace) (int, error) {
	p := string(ns) + ":"
	var n int
	s.m.Range(func(k, _ any) bool {
		if strings.HasPrefix(k.(string), p) {
			if _, loaded := s.m.LoadAndDelete(k); loaded {
				n++
				s.count.Add(-1)
				metrics.CacheEntries.Dec()
			}
		}
		return true
	})
	metrics.CacheClearsTotal.WithLabelValues(string(ns)).Inc()
	return n, nil
}

// Len reports the number of stored entries.
func (s *MemoryStore) Len() int { return int(s.count.Load()) }

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
