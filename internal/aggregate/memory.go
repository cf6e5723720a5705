package aggregate

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/Quok-it/benchmarking/internal/bench"
)

const defaultStripes = 64

// MemoryStore keeps aggregates in process. Rows are guarded by striped locks
// chosen by a murmur3 hash of the key, so writers to one row serialize while
// writers to other rows almost always take a different lock.
type MemoryStore struct {
	stripes []memoryStripe
}

type memoryStripe struct {
	mu   sync.Mutex
	rows map[bench.AggregateKey]bench.Aggregate
}

func NewMemoryStore(stripes int) *MemoryStore {
	if stripes <= 0 {
		stripes = defaultStripes
	}
	s := &MemoryStore{stripes: make([]memoryStripe, stripes)}
	for i := range s.stripes {
		s.stripes[i].rows = map[bench.AggregateKey]bench.Aggregate{}
	}
	return s
}

func (s *MemoryStore) stripe(key bench.AggregateKey) *memoryStripe {
	h := murmur3.Sum32([]byte(key.String()))
	return &s.stripes[h%uint32(len(s.stripes))]
}

func (s *MemoryStore) UpsertAggregate(_ context.Context, key bench.AggregateKey, value float64, at time.Time) error {
	st := s.stripe(key)
	st.mu.Lock()
	defer st.mu.Unlock()

	agg, ok := st.rows[key]
	if !ok {
		st.rows[key] = bench.NewAggregate(key, value, at)
		return nil
	}
	st.rows[key] = agg.Apply(value, at)
	return nil
}

func (s *MemoryStore) ListAggregates(_ context.Context, filter bench.AggregateFilter) ([]bench.Aggregate, error) {
	var out []bench.Aggregate
	for i := range s.stripes {
		st := &s.stripes[i]
		st.mu.Lock()
		for key, agg := range st.rows {
			if matches(filter, key) {
				out = append(out, agg)
			}
		}
		st.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out, nil
}

func matches(f bench.AggregateFilter, key bench.AggregateKey) bool {
	if f.Host != "" && f.Host != key.Host {
		return false
	}
	if f.DeviceModel != "" && f.DeviceModel != key.DeviceModel {
		return false
	}
	if f.Type != "" && f.Type != key.Type {
		return false
	}
	if f.Metric != "" && f.Metric != key.Metric {
		return false
	}
	return true
}
