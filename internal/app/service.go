// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	fixqueue "github.com/okian/regatta/internal/adapters/mq/queue"
	workerpool "github.com/okian/regatta/internal/adapters/mq/worker"
	repository "github.com/okian/regatta/internal/adapters/repository"
	"github.com/okian/regatta/internal/config"
	"github.com/okian/regatta/internal/domain/dedupe"
	"github.com/okian/regatta/internal/domain/event"
	"github.com/okian/regatta/internal/domain/model"
	"github.com/okian/regatta/internal/domain/regatta"
	"github.com/okian/regatta/internal/domain/scoring"
	"github.com/okian/regatta/internal/domain/types"
	"github.com/okian/regatta/pkg/logger"
	"github.com/okian/regatta/pkg/metrics"
)

// Service implements the API dependencies for the regatta scoring system.
type Service struct {
	mu sync.RWMutex

	// Core components
	registry  *regatta.Registry
	engine    *scoring.Engine
	rankStore *repository.RankStore
	deduper   dedupe.Deduper
	fixQueue  fixqueue.Queue
	pool      *workerpool.Pool
	archive   *repository.Archive

	// Configuration
	workerCount  int
	queueSize    int
	dedupeSize   int
	shardCount   int
	archivePath  string
	leaderboards []config.LeaderboardConfig
	groups       []config.GroupConfig

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of fix ingestion workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the fix queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithShardCount sets the number of rank store shards.
func WithShardCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.shardCount = count
		}
	}
}

// WithArchivePath enables sqlite persistence of race logs at path.
func WithArchivePath(path string) Option {
	return func(s *Service) {
		s.archivePath = path
	}
}

// WithLeaderboards declares the leaderboards assembled at startup.
func WithLeaderboards(cfgs []config.LeaderboardConfig) Option {
	return func(s *Service) {
		s.leaderboards = cfgs
	}
}

// WithGroups declares the meta-leaderboard groups assembled at startup.
func WithGroups(cfgs []config.GroupConfig) Option {
	return func(s *Service) {
		s.groups = cfgs
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(lg logger.Logger) Option {
	return func(s *Service) {
		if lg != nil {
			s.logger = lg
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2,
		queueSize:   100000,
		dedupeSize:  50000,
		shardCount:  16,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting regatta service...")

	s.engine = scoring.NewEngine()
	s.registry = regatta.New(regatta.WithLogger(s.logger))
	s.rankStore = repository.NewRankStore(
		repository.WithShardCount(s.shardCount),
	)
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.fixQueue = fixqueue.NewInMemoryQueue(
		fixqueue.WithCapacity(s.queueSize),
	)

	if err := s.assembleBoards(); err != nil {
		return err
	}
	if err := s.restoreArchive(ctx); err != nil {
		return err
	}

	s.pool = workerpool.NewPool(s.workerCount, s.fixQueue, s.rankStore)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "regatta service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("leaderboards", len(s.leaderboards)),
		logger.Int("groups", len(s.groups)),
	)
	return nil
}

// assembleBoards builds the configured leaderboards and groups. Race states
// are shared by identity through the registry, so two boards naming the same
// race score the same log.
func (s *Service) assembleBoards() error {
	for _, cfg := range s.leaderboards {
		opts := []scoring.LeaderboardOption{
			scoring.WithScheme(parseScheme(cfg.Scheme)),
			scoring.WithMetric(s.rankStore),
		}
		if len(cfg.Discards) > 0 {
			rule, err := scoring.NewDiscardRule(cfg.Discards...)
			if err != nil {
				return fmt.Errorf("leaderboard %s: %w", cfg.Name, err)
			}
			opts = append(opts, scoring.WithDiscardRule(rule))
		}

		lb, err := scoring.NewLeaderboard(cfg.Name, opts...)
		if err != nil {
			return err
		}
		for _, col := range cfg.Columns {
			column := scoring.Column{Name: col.Name}
			for _, raceID := range col.Races {
				column.Races = append(column.Races, s.registry.EnsureRace(raceID))
			}
			if err := lb.AddColumn(column); err != nil {
				return fmt.Errorf("leaderboard %s: %w", cfg.Name, err)
			}
		}
		if err := s.registry.AddLeaderboard(lb); err != nil {
			return err
		}
	}

	for _, cfg := range s.groups {
		members := make([]*scoring.Leaderboard, 0, len(cfg.Members))
		for _, name := range cfg.Members {
			lb, ok := s.registry.Leaderboard(name)
			if !ok {
				return fmt.Errorf("group %s: %w: %s", cfg.Name, regatta.ErrUnknownLeaderboard, name)
			}
			members = append(members, lb)
		}
		g := scoring.NewGroup(cfg.Name,
			scoring.WithGroupScheme(parseScheme(cfg.Scheme)),
			scoring.WithMembers(members...),
		)
		if err := s.registry.AddGroup(g); err != nil {
			return err
		}
	}
	return nil
}

func parseScheme(s string) scoring.Scheme {
	if s == "high_point" {
		return scoring.HighPoint
	}
	return scoring.LowPoint
}

// restoreArchive replays archived race logs into the registry.
func (s *Service) restoreArchive(ctx context.Context) error {
	if s.archivePath == "" {
		return nil
	}
	archive, err := repository.OpenArchive(s.archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	s.archive = archive

	ids, err := archive.LogIDs(ctx)
	if err != nil {
		return fmt.Errorf("list archived logs: %w", err)
	}
	for _, id := range ids {
		stored, err := archive.LoadLog(ctx, id)
		if err != nil {
			return fmt.Errorf("load log %s: %w", id, err)
		}
		if err := s.registry.EnsureRace(id).Restore(ctx, stored); err != nil {
			return fmt.Errorf("restore log %s: %w", id, err)
		}
		s.logger.Info(ctx, "restored race log",
			logger.String("race", id),
			logger.Int("events", len(stored)),
		)
	}
	return nil
}

// Stop gracefully shuts down the service, saving race logs to the archive
// when one is configured.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping regatta service...")

	if s.pool != nil {
		s.pool.Stop()
	}
	if s.fixQueue != nil {
		_ = s.fixQueue.Close()
	}

	if s.archive != nil {
		for _, id := range s.registry.RaceIDs() {
			race, ok := s.registry.Race(id)
			if !ok {
				continue
			}
			if err := s.archive.SaveLog(ctx, id, race.Snapshot()); err != nil {
				s.logger.Error(ctx, "saving race log failed",
					logger.String("race", id),
					logger.Error(err),
				)
			}
		}
		_ = s.archive.Close()
	}

	s.started = false
	s.logger.Info(ctx, "regatta service stopped")
}

// SeenAndRecord atomically checks if a fix id was seen and records it if not.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	return s.deduper.SeenAndRecord(ctx, id)
}

// Unrecord removes a fix id from the seen list, allowing it to be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// Enqueue submits a fix for asynchronous processing.
func (s *Service) Enqueue(ctx context.Context, f model.Fix) bool {
	ok := s.fixQueue.Enqueue(ctx, f)
	if !ok {
		s.logger.Warn(ctx, "fix queue backpressure",
			logger.String("fixID", f.FixID),
			logger.Int("queueLen", s.fixQueue.Len(ctx)),
		)
	}
	return ok
}

// AppendEvent records an event in the named race log, creating the race on
// first use, and returns the event id.
func (s *Service) AppendEvent(ctx context.Context, raceID string, e event.Event) (string, error) {
	race := s.registry.EnsureRace(raceID)
	if err := race.Append(ctx, e); err != nil {
		return "", err
	}
	return e.ID, nil
}

// RevokeEvent retracts an event by appending a tombstone to its race log.
func (s *Service) RevokeEvent(ctx context.Context, raceID, eventID, author string, at time.Time) error {
	race, ok := s.registry.Race(raceID)
	if !ok {
		return fmt.Errorf("%w: %s", regatta.ErrUnknownRace, raceID)
	}
	return race.Revoke(ctx, eventID, author, at)
}

// ApplyCorrection records a jury score correction on a leaderboard.
func (s *Service) ApplyCorrection(ctx context.Context, leaderboard string, corr scoring.Correction) error {
	lb, ok := s.registry.Leaderboard(leaderboard)
	if !ok {
		return fmt.Errorf("%w: %s", regatta.ErrUnknownLeaderboard, leaderboard)
	}
	lb.Corrections().Apply(corr)
	s.logger.Info(ctx, "score correction applied",
		logger.String("leaderboard", leaderboard),
		logger.String("competitor", corr.CompetitorID),
		logger.String("column", corr.Column),
		logger.String("reason", corr.MaxPointsReason),
	)
	return nil
}

// Suppress flags or unflags a competitor on a meta-leaderboard group.
func (s *Service) Suppress(ctx context.Context, group, competitorID string, hidden bool) error {
	g, ok := s.registry.Group(group)
	if !ok {
		return fmt.Errorf("%w: %s", regatta.ErrUnknownLeaderboard, group)
	}
	g.Suppress(competitorID, hidden)
	return nil
}

// Leaderboard computes the named leaderboard or group snapshot.
func (s *Service) Leaderboard(ctx context.Context, name string, state scoring.ResultState, at time.Time, limit int) (scoring.Snapshot, error) {
	if lb, ok := s.registry.Leaderboard(name); ok {
		return s.engine.Compute(ctx, lb, state, at, limit)
	}
	if g, ok := s.registry.Group(name); ok {
		return s.engine.ComputeGroup(ctx, g, state, at, limit)
	}
	return scoring.Snapshot{}, fmt.Errorf("%w: %s", regatta.ErrUnknownLeaderboard, name)
}

// RaceSummary projects one race's derived state.
func (s *Service) RaceSummary(ctx context.Context, raceID string) (types.RaceSummary, error) {
	race, ok := s.registry.Race(raceID)
	if !ok {
		return types.RaceSummary{}, fmt.Errorf("%w: %s", regatta.ErrUnknownRace, raceID)
	}

	summary := types.RaceSummary{
		RaceID:  raceID,
		Status:  string(race.Status()),
		Flags:   race.Flags(),
		Version: race.Version(),
	}
	if t, ok := race.StartTime(); ok {
		summary.StartTime = &t
	}
	if t, ok := race.ProposedStartTime(); ok {
		summary.Proposed = &t
	}
	if c, ok := race.Course(); ok {
		course := types.Course{Name: c.Name}
		for _, m := range c.Marks {
			course.Marks = append(course.Marks, types.Mark{Name: m.Name, Rounding: m.Rounding})
		}
		summary.Course = &course
	}
	if w, ok := race.Wind(); ok {
		summary.Wind = &types.Wind{DirectionDeg: w.DirectionDeg, SpeedKnots: w.SpeedKnots}
	}
	roster := race.Roster()
	summary.Roster = make([]types.Boat, 0, len(roster))
	for _, id := range race.Competitors() {
		b := roster[id]
		summary.Roster = append(summary.Roster, types.Boat{
			CompetitorID: b.CompetitorID,
			Boat:         b.Boat,
			SailNumber:   b.SailNumber,
		})
	}
	return summary, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := types.Stats{}
	if !s.started {
		return stats
	}

	ctx := context.Background()
	races, boards, groups := s.registry.Counts()
	stats.Races = races
	stats.Leaderboards = boards
	stats.Groups = groups
	stats.TrackedFixes = s.rankStore.Count(ctx)
	stats.QueueLen = s.fixQueue.Len(ctx)
	stats.DedupeSize = s.deduper.Size()

	metrics.UpdateQueueSize(stats.QueueLen)
	return stats
}
