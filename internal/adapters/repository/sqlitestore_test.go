package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/regatta/internal/adapters/repository"
	"github.com/okian/regatta/internal/domain/event"
	"github.com/okian/regatta/internal/domain/eventlog"
	"github.com/smartystreets/goconvey/convey"
)

func buildLog(t *testing.T, id string) *eventlog.Log {
	t.Helper()
	log := eventlog.New(id)
	ctx := context.Background()

	e1 := event.New(base, "committee", event.StatusChanged{Status: event.StatusScheduled},
		event.WithID(id+"-e1"), event.WithCreatedAt(base))
	e2 := event.New(base.Add(time.Minute), "committee", event.FlagChanged{Flag: "AP", Raised: true},
		event.WithID(id+"-e2"), event.WithCreatedAt(base.Add(time.Second)),
		event.WithCompetitors("c1", "c2"))
	for _, e := range []event.Event{e1, e2} {
		if err := log.Append(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := log.Revoke(ctx, id+"-e2", "jury", base.Add(2*time.Second)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	return log
}

func TestArchiveRoundTrip(t *testing.T) {
	convey.Convey("Given an archive on disk", t, func() {
		path := filepath.Join(t.TempDir(), "regatta.db")
		archive, err := repository.OpenArchive(path)
		convey.So(err, convey.ShouldBeNil)
		convey.Reset(func() { _ = archive.Close() })
		ctx := context.Background()

		convey.Convey("When a log snapshot is saved and loaded", func() {
			log := buildLog(t, "race-1")
			snapshot := log.Snapshot()
			convey.So(archive.SaveLog(ctx, "race-1", snapshot), convey.ShouldBeNil)

			loaded, err := archive.LoadLog(ctx, "race-1")
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the rows replay byte for byte", func() {
				convey.So(loaded, convey.ShouldResemble, snapshot)
			})

			convey.Convey("And a restored log derives the same state", func() {
				restored := eventlog.New("race-1")
				convey.So(restored.Restore(ctx, loaded), convey.ShouldBeNil)
				convey.So(restored.Version(), convey.ShouldEqual, log.Version())
				convey.So(restored.Snapshot(), convey.ShouldResemble, snapshot)
			})
		})

		convey.Convey("When a log is saved twice", func() {
			log := buildLog(t, "race-1")
			convey.So(archive.SaveLog(ctx, "race-1", log.Snapshot()), convey.ShouldBeNil)
			convey.So(archive.SaveLog(ctx, "race-1", log.Snapshot()), convey.ShouldBeNil)

			convey.Convey("Then the save replaces rather than duplicates", func() {
				loaded, err := archive.LoadLog(ctx, "race-1")
				convey.So(err, convey.ShouldBeNil)
				convey.So(loaded, convey.ShouldHaveLength, len(log.Snapshot()))
			})
		})

		convey.Convey("When multiple logs are archived", func() {
			convey.So(archive.SaveLog(ctx, "race-b", buildLog(t, "race-b").Snapshot()), convey.ShouldBeNil)
			convey.So(archive.SaveLog(ctx, "race-a", buildLog(t, "race-a").Snapshot()), convey.ShouldBeNil)

			convey.Convey("Then the ids list lexically", func() {
				ids, err := archive.LogIDs(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(ids, convey.ShouldResemble, []string{"race-a", "race-b"})
			})
		})

		convey.Convey("When loading an unknown log", func() {
			loaded, err := archive.LoadLog(ctx, "race-none")
			convey.So(err, convey.ShouldBeNil)
			convey.So(loaded, convey.ShouldBeEmpty)
		})

		convey.Convey("When the archive survives a reopen", func() {
			log := buildLog(t, "race-1")
			convey.So(archive.SaveLog(ctx, "race-1", log.Snapshot()), convey.ShouldBeNil)
			convey.So(archive.Close(), convey.ShouldBeNil)

			reopened, err := repository.OpenArchive(path)
			convey.So(err, convey.ShouldBeNil)
			convey.Reset(func() { _ = reopened.Close() })

			loaded, err := reopened.LoadLog(ctx, "race-1")
			convey.So(err, convey.ShouldBeNil)
			convey.So(loaded, convey.ShouldResemble, log.Snapshot())
		})
	})
}

func TestArchiveErrors(t *testing.T) {
	convey.Convey("Given archive misuse", t, func() {
		ctx := context.Background()

		convey.Convey("When the path is empty", func() {
			_, err := repository.OpenArchive("  ")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When using a closed archive", func() {
			archive, err := repository.OpenArchive(filepath.Join(t.TempDir(), "regatta.db"))
			convey.So(err, convey.ShouldBeNil)
			convey.So(archive.Close(), convey.ShouldBeNil)

			convey.So(errors.Is(archive.SaveLog(ctx, "race-1", nil), repository.ErrArchiveClosed), convey.ShouldBeTrue)
			_, err = archive.LoadLog(ctx, "race-1")
			convey.So(errors.Is(err, repository.ErrArchiveClosed), convey.ShouldBeTrue)
			_, err = archive.LogIDs(ctx)
			convey.So(errors.Is(err, repository.ErrArchiveClosed), convey.ShouldBeTrue)

			convey.Convey("And closing again is a no-op", func() {
				convey.So(archive.Close(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the context is already canceled", func() {
			archive, err := repository.OpenArchive(filepath.Join(t.TempDir(), "regatta.db"))
			convey.So(err, convey.ShouldBeNil)
			convey.Reset(func() { _ = archive.Close() })

			canceled, cancel := context.WithCancel(ctx)
			cancel()
			convey.So(archive.SaveLog(canceled, "race-1", nil), convey.ShouldNotBeNil)
		})
	})
}
