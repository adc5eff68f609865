package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/regatta/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		Convey("When creating a deduper with default options", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it starts empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When recording ids", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("And the id is new", func() {
				seen := d.SeenAndRecord(context.Background(), "fix-1")

				Convey("Then it is recorded as unseen", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the id was already seen", func() {
				d.SeenAndRecord(context.Background(), "fix-1")
				seen := d.SeenAndRecord(context.Background(), "fix-1")

				Convey("Then the replay is flagged without growing the set", func() {
					So(seen, ShouldBeTrue)
					So(d.Size(), ShouldEqual, 1)
				})
			})
		})

		Convey("When unrecording an id", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(context.Background(), "fix-1")
			d.Unrecord(context.Background(), "fix-1")

			Convey("Then the id may be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(context.Background(), "fix-1"), ShouldBeFalse)
			})

			Convey("And unrecording an unknown id is harmless", func() {
				d.Unrecord(context.Background(), "fix-unknown")
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When the deduper is full", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for i := 0; i < 3; i++ {
				So(d.SeenAndRecord(context.Background(), fmt.Sprintf("fix-%d", i)), ShouldBeFalse)
			}

			Convey("Then a new id evicts the oldest", func() {
				So(d.SeenAndRecord(context.Background(), "fix-3"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 3)

				// fix-0 was evicted; recording it again is a fresh insert.
				So(d.SeenAndRecord(context.Background(), "fix-0"), ShouldBeFalse)
				// fix-2 is still tracked.
				So(d.SeenAndRecord(context.Background(), "fix-2"), ShouldBeTrue)
			})

			Convey("And slots freed by Unrecord are reclaimed before live ids", func() {
				d.Unrecord(context.Background(), "fix-0")
				So(d.SeenAndRecord(context.Background(), "fix-3"), ShouldBeFalse)

				Convey("Then the remaining live ids survive", func() {
					So(d.SeenAndRecord(context.Background(), "fix-1"), ShouldBeTrue)
					So(d.SeenAndRecord(context.Background(), "fix-2"), ShouldBeTrue)
					So(d.SeenAndRecord(context.Background(), "fix-3"), ShouldBeTrue)
				})
			})
		})

		Convey("When an unrecorded id is recorded again before its old slot cycles out", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			So(d.SeenAndRecord(context.Background(), "fix-a"), ShouldBeFalse)
			d.Unrecord(context.Background(), "fix-a")
			So(d.SeenAndRecord(context.Background(), "fix-a"), ShouldBeFalse)
			So(d.SeenAndRecord(context.Background(), "fix-b"), ShouldBeFalse)

			Convey("Then filling the ring reclaims only the stale slot", func() {
				// The insert below evicts the oldest slot, which still names
				// fix-a from before the Unrecord; the re-recorded fix-a must
				// survive it.
				So(d.SeenAndRecord(context.Background(), "fix-c"), ShouldBeFalse)
				So(d.SeenAndRecord(context.Background(), "fix-a"), ShouldBeTrue)
				So(d.SeenAndRecord(context.Background(), "fix-b"), ShouldBeTrue)
				So(d.SeenAndRecord(context.Background(), "fix-c"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 3)
			})
		})

		Convey("When eviction is disabled", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
			for i := 0; i < 100; i++ {
				d.SeenAndRecord(context.Background(), fmt.Sprintf("fix-%d", i))
			}

			Convey("Then every id stays tracked", func() {
				So(d.Size(), ShouldEqual, 100)
				So(d.SeenAndRecord(context.Background(), "fix-0"), ShouldBeTrue)
			})
		})

		Convey("When accessed concurrently", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1000))
			var wg sync.WaitGroup
			var mu sync.Mutex
			unseen := 0
			for g := 0; g < 8; g++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < 50; i++ {
						if !d.SeenAndRecord(context.Background(), fmt.Sprintf("fix-%d", i)) {
							mu.Lock()
							unseen++
							mu.Unlock()
						}
					}
				}()
			}
			wg.Wait()

			Convey("Then each id is admitted exactly once", func() {
				So(unseen, ShouldEqual, 50)
				So(d.Size(), ShouldEqual, 50)
			})
		})
	})
}
