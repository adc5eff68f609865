package service_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	service "github.com/okian/regatta/internal/app"
	"github.com/okian/regatta/internal/config"
	"github.com/okian/regatta/internal/domain/event"
	"github.com/okian/regatta/internal/domain/model"
	"github.com/okian/regatta/internal/domain/regatta"
	"github.com/okian/regatta/internal/domain/scoring"
	"github.com/okian/regatta/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var base = time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)

func testBoards() []config.LeaderboardConfig {
	return []config.LeaderboardConfig{
		{
			Name:     "gold",
			Scheme:   "low_point",
			Discards: []int{3},
			Columns: []config.ColumnConfig{
				{Name: "Q1", Races: []string{"race-1"}},
				{Name: "Q2", Races: []string{"race-2"}},
			},
		},
		{
			Name:   "silver",
			Scheme: "low_point",
			Columns: []config.ColumnConfig{
				{Name: "Q1", Races: []string{"race-1"}},
			},
		},
	}
}

func testGroups() []config.GroupConfig {
	return []config.GroupConfig{
		{Name: "season", Scheme: "low_point", Members: []string{"gold", "silver"}},
	}
}

func startService(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()
	opts = append([]service.Option{
		service.WithWorkerCount(2),
		service.WithQueueSize(256),
		service.WithLeaderboards(testBoards()),
		service.WithGroups(testGroups()),
	}, opts...)
	svc := service.New(opts...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	return svc
}

func appendStatus(t *testing.T, svc *service.Service, raceID, eventID string, lt time.Time, status event.Status) {
	t.Helper()
	e := event.New(lt, "committee", event.StatusChanged{Status: status}, event.WithID(eventID))
	if _, err := svc.AppendEvent(context.Background(), raceID, e); err != nil {
		t.Fatalf("append %s: %v", eventID, err)
	}
}

func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestServiceLifecycle(t *testing.T) {
	convey.Convey("Given a started service", t, func() {
		svc := startService(t)
		convey.Reset(svc.Stop)
		ctx := context.Background()

		convey.Convey("Then configured boards and shared races are registered", func() {
			stats := svc.GetStats()
			convey.So(stats.Races, convey.ShouldEqual, 2)
			convey.So(stats.Leaderboards, convey.ShouldEqual, 2)
			convey.So(stats.Groups, convey.ShouldEqual, 1)
		})

		convey.Convey("When an event lands on a shared race", func() {
			appendStatus(t, svc, "race-1", "e1", base, event.StatusRunning)

			convey.Convey("Then both boards see the same state", func() {
				summary, err := svc.RaceSummary(ctx, "race-1")
				convey.So(err, convey.ShouldBeNil)
				convey.So(summary.Status, convey.ShouldEqual, "RUNNING")
				convey.So(summary.Version, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When starting twice", func() {
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
		})

		convey.Convey("When querying unknown names", func() {
			_, err := svc.RaceSummary(ctx, "race-9")
			convey.So(errors.Is(err, regatta.ErrUnknownRace), convey.ShouldBeTrue)

			_, err = svc.Leaderboard(ctx, "bronze", scoring.Live, time.Time{}, 10)
			convey.So(errors.Is(err, regatta.ErrUnknownLeaderboard), convey.ShouldBeTrue)

			err = svc.ApplyCorrection(ctx, "bronze", scoring.Correction{})
			convey.So(errors.Is(err, regatta.ErrUnknownLeaderboard), convey.ShouldBeTrue)

			err = svc.Suppress(ctx, "off-season", "c1", true)
			convey.So(errors.Is(err, regatta.ErrUnknownLeaderboard), convey.ShouldBeTrue)

			err = svc.RevokeEvent(ctx, "race-9", "e1", "jury", time.Time{})
			convey.So(errors.Is(err, regatta.ErrUnknownRace), convey.ShouldBeTrue)
		})
	})
}

func TestServiceScoringFlow(t *testing.T) {
	convey.Convey("Given a service with registered competitors", t, func() {
		svc := startService(t)
		convey.Reset(svc.Stop)
		ctx := context.Background()

		lt := base
		for i, c := range []string{"c1", "c2"} {
			e := event.New(lt, "office", event.CompetitorRegistered{CompetitorID: c, Boat: "boat-" + c},
				event.WithID(fmt.Sprintf("reg-%d", i)))
			_, err := svc.AppendEvent(ctx, "race-1", e)
			convey.So(err, convey.ShouldBeNil)
			lt = lt.Add(time.Second)
		}

		convey.Convey("When fixes flow through the queue into the rank store", func() {
			fixes := []model.Fix{
				{FixID: "f1", Column: "Q1", CompetitorID: "c1", Rank: 1, At: base.Add(time.Minute)},
				{FixID: "f2", Column: "Q1", CompetitorID: "c2", Rank: 2, At: base.Add(time.Minute)},
			}
			for _, f := range fixes {
				convey.So(svc.SeenAndRecord(ctx, f.FixID), convey.ShouldBeFalse)
				convey.So(svc.Enqueue(ctx, f), convey.ShouldBeTrue)
			}
			convey.So(waitFor(5*time.Second, func() bool { return svc.GetStats().TrackedFixes == 2 }), convey.ShouldBeTrue)

			convey.Convey("Then the leaderboard scores from the tracked ranks", func() {
				snap, err := svc.Leaderboard(ctx, "gold", scoring.Live, time.Time{}, 10)
				convey.So(err, convey.ShouldBeNil)
				convey.So(snap.Rows, convey.ShouldHaveLength, 2)
				convey.So(snap.Rows[0].CompetitorID, convey.ShouldEqual, "c1")
				convey.So(snap.Rows[0].Net, convey.ShouldEqual, 1)
			})

			convey.Convey("And a jury correction reorders the result", func() {
				err := svc.ApplyCorrection(ctx, "gold", scoring.Correction{
					CompetitorID:    "c1",
					Column:          "Q1",
					MaxPointsReason: "DSQ",
					ValidFrom:       base.Add(2 * time.Minute),
				})
				convey.So(err, convey.ShouldBeNil)

				snap, err := svc.Leaderboard(ctx, "gold", scoring.Live, time.Time{}, 10)
				convey.So(err, convey.ShouldBeNil)
				convey.So(snap.Rows[0].CompetitorID, convey.ShouldEqual, "c2")
				convey.So(rowCell(snap, "c1", "Q1").Reason, convey.ShouldEqual, "DSQ")
			})

			convey.Convey("And the season group aggregates both boards", func() {
				snap, err := svc.Leaderboard(ctx, "season", scoring.Live, time.Time{}, 10)
				convey.So(err, convey.ShouldBeNil)
				convey.So(snap.Name, convey.ShouldEqual, "season")
				// c1 nets 1 on gold plus 1 on silver.
				convey.So(snap.Rows[0].CompetitorID, convey.ShouldEqual, "c1")
				convey.So(snap.Rows[0].Net, convey.ShouldEqual, 2)
			})

			convey.Convey("And suppression hides a competitor from the group only", func() {
				convey.So(svc.Suppress(ctx, "season", "c2", true), convey.ShouldBeNil)

				group, err := svc.Leaderboard(ctx, "season", scoring.Live, time.Time{}, 10)
				convey.So(err, convey.ShouldBeNil)
				for _, row := range group.Rows {
					convey.So(row.CompetitorID, convey.ShouldNotEqual, "c2")
				}

				member, err := svc.Leaderboard(ctx, "gold", scoring.Live, time.Time{}, 10)
				convey.So(err, convey.ShouldBeNil)
				convey.So(member.Rows, convey.ShouldHaveLength, 2)
			})
		})
	})
}

func rowCell(snap scoring.Snapshot, competitorID, column string) scoring.Cell {
	for _, row := range snap.Rows {
		if row.CompetitorID != competitorID {
			continue
		}
		for _, cell := range row.Cells {
			if cell.Column == column {
				return cell
			}
		}
	}
	return scoring.Cell{}
}

func TestServiceRevocation(t *testing.T) {
	convey.Convey("Given a service with race history", t, func() {
		svc := startService(t)
		convey.Reset(svc.Stop)
		ctx := context.Background()

		appendStatus(t, svc, "race-1", "e1", base, event.StatusRunning)
		appendStatus(t, svc, "race-1", "e2", base.Add(time.Minute), event.StatusFinished)

		convey.Convey("When the finishing event is revoked", func() {
			convey.So(svc.RevokeEvent(ctx, "race-1", "e2", "jury", time.Time{}), convey.ShouldBeNil)

			convey.Convey("Then the derived status rolls back and the version moves on", func() {
				summary, err := svc.RaceSummary(ctx, "race-1")
				convey.So(err, convey.ShouldBeNil)
				convey.So(summary.Status, convey.ShouldEqual, "RUNNING")
				convey.So(summary.Version, convey.ShouldEqual, 3)
			})
		})
	})
}

func TestServiceArchive(t *testing.T) {
	convey.Convey("Given a service with sqlite persistence", t, func() {
		path := filepath.Join(t.TempDir(), "regatta.db")
		ctx := context.Background()

		svc := startService(t, service.WithArchivePath(path))
		appendStatus(t, svc, "race-1", "e1", base, event.StatusRunning)
		e := event.New(base.Add(time.Second), "office",
			event.CompetitorRegistered{CompetitorID: "c1", Boat: "Luna"}, event.WithID("e2"))
		_, err := svc.AppendEvent(ctx, "race-1", e)
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.RevokeEvent(ctx, "race-1", "e1", "jury", time.Time{}), convey.ShouldBeNil)

		convey.Convey("When the service restarts", func() {
			svc.Stop()
			restarted := startService(t, service.WithArchivePath(path))
			convey.Reset(restarted.Stop)

			convey.Convey("Then the race log replays with revocations intact", func() {
				summary, err := restarted.RaceSummary(ctx, "race-1")
				convey.So(err, convey.ShouldBeNil)
				convey.So(summary.Version, convey.ShouldEqual, 3)
				convey.So(summary.Status, convey.ShouldNotEqual, "RUNNING")
				convey.So(summary.Roster, convey.ShouldHaveLength, 1)
				convey.So(summary.Roster[0].CompetitorID, convey.ShouldEqual, "c1")
			})
		})
	})
}
