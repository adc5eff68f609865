package repository

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/regatta/internal/domain/model"
	"github.com/okian/regatta/internal/domain/scoring"
	"github.com/okian/regatta/pkg/metrics"
)

// defaultShardCount is sized for a fleet of a few hundred tracked boats.
const defaultShardCount = 16

// trackKey identifies one competitor's fix history in one race column.
type trackKey struct {
	column     string
	competitor string
}

// shard holds a slice of the tracked state under its own lock.
type shard struct {
	mu    sync.RWMutex
	fixes map[trackKey][]model.Fix // ascending by At, append order on ties
}

// RankStore is a sharded, in-memory Store. It also satisfies the scoring
// engine's metric boundary, so leaderboards read tracked results straight
// from it.
type RankStore struct {
	shards  []*shard
	tracked atomic.Int64 // distinct (column, competitor) pairs
}

var _ Store = (*RankStore)(nil)
var _ scoring.Metric = (*RankStore)(nil)

// NewRankStore creates an empty store with configuration options.
func NewRankStore(opts ...Option) *RankStore {
	s := &RankStore{}
	cfg := options{shardCount: defaultShardCount}
	for _, opt := range opts {
		opt(&cfg)
	}
	s.shards = make([]*shard, cfg.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{fixes: make(map[trackKey][]model.Fix)}
	}
	return s
}

func (s *RankStore) shardFor(k trackKey) *shard {
	h := fnv.New32a()
	h.Write([]byte(k.column))
	h.Write([]byte{0})
	h.Write([]byte(k.competitor))
	return s.shards[int(h.Sum32())%len(s.shards)]
}

// Record folds one fix into the store, keeping the competitor's history
// sorted by observation time.
func (s *RankStore) Record(ctx context.Context, f model.Fix) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreUpdateLatency(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	if f.FixID == "" {
		return ErrEmptyFixID
	}
	if f.Column == "" {
		return ErrEmptyColumn
	}

	k := trackKey{column: f.Column, competitor: f.CompetitorID}
	sh := s.shardFor(k)

	sh.mu.Lock()
	history, known := sh.fixes[k]
	// Upper bound keeps equal-time fixes in arrival order.
	i := sort.Search(len(history), func(i int) bool {
		return history[i].At.After(f.At)
	})
	history = append(history, model.Fix{})
	copy(history[i+1:], history[i:])
	history[i] = f
	sh.fixes[k] = history
	sh.mu.Unlock()

	if !known {
		metrics.UpdateTrackedFixes(int(s.tracked.Add(1)))
	}
	return nil
}

// Rank reports the competitor's latest tracked result in the column at or
// before the given time.
func (s *RankStore) Rank(ctx context.Context, column, competitorID string, at time.Time) (scoring.Ranking, bool) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	k := trackKey{column: column, competitor: competitorID}
	sh := s.shardFor(k)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	history := sh.fixes[k]
	// First fix strictly after at; the one before it is the answer.
	i := sort.Search(len(history), func(i int) bool {
		return history[i].At.After(at)
	})
	if i == 0 {
		return scoring.Ranking{}, false
	}
	f := history[i-1]

	rank := f.Rank
	r := scoring.Ranking{Rank: &rank, TieKey: f.TieKey}
	if f.Points != nil {
		pts := *f.Points
		r.Points = &pts
	}
	return r, true
}

// Latest returns the newest fix per competitor in the column, ordered by
// rank then competitor id.
func (s *RankStore) Latest(ctx context.Context, column string) []model.Fix {
	var out []model.Fix
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k, history := range sh.fixes {
			if k.column != column || len(history) == 0 {
				continue
			}
			out = append(out, history[len(history)-1])
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].CompetitorID < out[j].CompetitorID
	})
	return out
}

// Count returns the number of (column, competitor) pairs tracked.
func (s *RankStore) Count(ctx context.Context) int {
	return int(s.tracked.Load())
}
