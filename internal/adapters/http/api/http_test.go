package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/regatta/internal/adapters/http/api"
	"github.com/okian/regatta/internal/domain/event"
	"github.com/okian/regatta/internal/domain/eventlog"
	"github.com/okian/regatta/internal/domain/regatta"
	"github.com/okian/regatta/internal/domain/scoring"
	"github.com/okian/regatta/internal/domain/types"
	"github.com/smartystreets/goconvey/convey"
)

// stubDeps satisfies api.Dependencies and api.StatsProvider with canned
// responses, recording the calls it receives.
type stubDeps struct {
	seen        map[string]bool
	enqueueOK   bool
	appended    []event.Event
	appendErr   error
	revoked     []string
	revokeErr   error
	corrections []scoring.Correction
	suppressed  map[string]bool
	snapshot    api.Snapshot
	snapErr     error
	summary     api.RaceSummary
	summaryErr  error
}

func newStubDeps() *stubDeps {
	return &stubDeps{
		seen:       make(map[string]bool),
		enqueueOK:  true,
		suppressed: make(map[string]bool),
	}
}

func (s *stubDeps) SeenAndRecord(_ context.Context, id string) bool {
	if s.seen[id] {
		return true
	}
	s.seen[id] = true
	return false
}

func (s *stubDeps) Unrecord(_ context.Context, id string) { delete(s.seen, id) }

func (s *stubDeps) Size() int64 { return int64(len(s.seen)) }

func (s *stubDeps) Enqueue(_ context.Context, _ api.Fix) bool { return s.enqueueOK }

func (s *stubDeps) AppendEvent(_ context.Context, raceID string, e event.Event) (string, error) {
	if s.appendErr != nil {
		return "", s.appendErr
	}
	s.appended = append(s.appended, e)
	return e.ID, nil
}

func (s *stubDeps) RevokeEvent(_ context.Context, raceID, eventID, author string, _ time.Time) error {
	if s.revokeErr != nil {
		return s.revokeErr
	}
	s.revoked = append(s.revoked, eventID)
	return nil
}

func (s *stubDeps) ApplyCorrection(_ context.Context, leaderboard string, corr scoring.Correction) error {
	s.corrections = append(s.corrections, corr)
	return nil
}

func (s *stubDeps) Suppress(_ context.Context, group, competitorID string, hidden bool) error {
	s.suppressed[group+"/"+competitorID] = hidden
	return nil
}

func (s *stubDeps) Leaderboard(_ context.Context, name string, state scoring.ResultState, at time.Time, limit int) (api.Snapshot, error) {
	return s.snapshot, s.snapErr
}

func (s *stubDeps) RaceSummary(_ context.Context, raceID string) (api.RaceSummary, error) {
	return s.summary, s.summaryErr
}

func (s *stubDeps) GetStats() types.Stats {
	return types.Stats{Races: 2, Leaderboards: 1, Groups: 1, DedupeSize: s.Size()}
}

func newTestServer(deps *stubDeps) *httptest.Server {
	mux := http.NewServeMux()
	api.NewServer(deps, deps, 100).Register(context.Background(), mux)
	return httptest.NewServer(mux)
}

func postJSON(t *testing.T, url string, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func getJSON(t *testing.T, url string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func TestPostEvent(t *testing.T) {
	convey.Convey("Given the API server", t, func() {
		deps := newStubDeps()
		srv := newTestServer(deps)
		convey.Reset(srv.Close)

		convey.Convey("When posting a valid event", func() {
			body := `{
				"race_id": "race-1",
				"event_id": "e1",
				"type": "race.flag_changed",
				"logical_time": "2025-06-14T12:00:00Z",
				"author": "committee",
				"payload": {"flag": "AP", "raised": true}
			}`
			resp, decoded := postJSON(t, srv.URL+"/events", body)

			convey.Convey("Then it is accepted with its id", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusAccepted)
				convey.So(decoded["status"], convey.ShouldEqual, "accepted")
				convey.So(decoded["event_id"], convey.ShouldEqual, "e1")
				convey.So(deps.appended, convey.ShouldHaveLength, 1)
				convey.So(deps.appended[0].Payload, convey.ShouldResemble, event.FlagChanged{Flag: "AP", Raised: true})
			})
		})

		convey.Convey("When required fields are missing", func() {
			resp, decoded := postJSON(t, srv.URL+"/events", `{"race_id": "race-1"}`)
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
			convey.So(decoded["code"], convey.ShouldEqual, "bad_request")
		})

		convey.Convey("When the event type is unknown", func() {
			body := `{
				"race_id": "race-1",
				"type": "race.bogus",
				"logical_time": "2025-06-14T12:00:00Z",
				"author": "committee",
				"payload": {}
			}`
			resp, _ := postJSON(t, srv.URL+"/events", body)
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
		})

		convey.Convey("When the log reports an ordering conflict", func() {
			deps.appendErr = fmt.Errorf("race race-1: %w", eventlog.ErrOutOfOrderCreation)
			body := `{
				"race_id": "race-1",
				"type": "race.status_changed",
				"logical_time": "2025-06-14T12:00:00Z",
				"author": "committee",
				"payload": {"status": "RUNNING"}
			}`
			resp, decoded := postJSON(t, srv.URL+"/events", body)
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusConflict)
			convey.So(decoded["code"], convey.ShouldEqual, "conflict")
		})

		convey.Convey("When the event id already exists", func() {
			deps.appendErr = fmt.Errorf("race race-1: %w", eventlog.ErrDuplicateEvent)
			body := `{
				"race_id": "race-1",
				"event_id": "e1",
				"type": "race.status_changed",
				"logical_time": "2025-06-14T12:00:00Z",
				"author": "committee",
				"payload": {"status": "RUNNING"}
			}`
			resp, _ := postJSON(t, srv.URL+"/events", body)
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusConflict)
		})

		convey.Convey("When the method is not POST", func() {
			resp, err := http.Get(srv.URL + "/events")
			convey.So(err, convey.ShouldBeNil)
			resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestRevokeEvent(t *testing.T) {
	convey.Convey("Given the API server", t, func() {
		deps := newStubDeps()
		srv := newTestServer(deps)
		convey.Reset(srv.Close)

		convey.Convey("When revoking an event", func() {
			body := `{"race_id": "race-1", "event_id": "e1", "author": "jury"}`
			resp, decoded := postJSON(t, srv.URL+"/events/revoke", body)

			convey.Convey("Then the target id is acknowledged", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusAccepted)
				convey.So(decoded["status"], convey.ShouldEqual, "revoked")
				convey.So(decoded["event_id"], convey.ShouldEqual, "e1")
				convey.So(deps.revoked, convey.ShouldResemble, []string{"e1"})
			})
		})

		convey.Convey("When the target event is unknown", func() {
			deps.revokeErr = fmt.Errorf("race race-1: %w", eventlog.ErrUnknownEvent)
			resp, decoded := postJSON(t, srv.URL+"/events/revoke", `{"race_id": "race-1", "event_id": "ghost", "author": "jury"}`)
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusNotFound)
			convey.So(decoded["code"], convey.ShouldEqual, "not_found")
		})

		convey.Convey("When the author is missing", func() {
			resp, _ := postJSON(t, srv.URL+"/events/revoke", `{"race_id": "race-1", "event_id": "e1"}`)
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestPostFix(t *testing.T) {
	convey.Convey("Given the API server", t, func() {
		deps := newStubDeps()
		srv := newTestServer(deps)
		convey.Reset(srv.Close)
		body := `{
			"fix_id": "f1",
			"column": "Q1",
			"competitor_id": "c1",
			"rank": 3,
			"at": "2025-06-14T12:00:00Z"
		}`

		convey.Convey("When posting a fresh fix", func() {
			resp, decoded := postJSON(t, srv.URL+"/fixes", body)

			convey.Convey("Then it is accepted", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusAccepted)
				convey.So(decoded["status"], convey.ShouldEqual, "accepted")
			})
		})

		convey.Convey("When the same fix is posted twice", func() {
			postJSON(t, srv.URL+"/fixes", body)
			resp, decoded := postJSON(t, srv.URL+"/fixes", body)

			convey.Convey("Then the replay is flagged as duplicate", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				convey.So(decoded["duplicate"], convey.ShouldEqual, true)
			})
		})

		convey.Convey("When the queue reports backpressure", func() {
			deps.enqueueOK = false
			resp, decoded := postJSON(t, srv.URL+"/fixes", body)

			convey.Convey("Then the fix is rejected and may be retried", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusTooManyRequests)
				convey.So(decoded["code"], convey.ShouldEqual, "backpressure")
				convey.So(deps.seen, convey.ShouldNotContainKey, "f1")
			})
		})

		convey.Convey("When the rank is invalid", func() {
			resp, _ := postJSON(t, srv.URL+"/fixes", `{"fix_id": "f1", "column": "Q1", "competitor_id": "c1", "rank": 0, "at": "2025-06-14T12:00:00Z"}`)
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestPostCorrectionAndSuppression(t *testing.T) {
	convey.Convey("Given the API server", t, func() {
		deps := newStubDeps()
		srv := newTestServer(deps)
		convey.Reset(srv.Close)

		convey.Convey("When posting a points correction", func() {
			body := `{
				"leaderboard": "gold",
				"competitor_id": "c1",
				"column": "Q1",
				"points": 5.5,
				"valid_from": "2025-06-14T12:00:00Z"
			}`
			resp, _ := postJSON(t, srv.URL+"/corrections", body)

			convey.Convey("Then it is accepted and forwarded", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusAccepted)
				convey.So(deps.corrections, convey.ShouldHaveLength, 1)
				convey.So(*deps.corrections[0].Points, convey.ShouldEqual, 5.5)
			})
		})

		convey.Convey("When a correction has neither points nor a reason", func() {
			body := `{"leaderboard": "gold", "competitor_id": "c1", "column": "Q1", "valid_from": "2025-06-14T12:00:00Z"}`
			resp, _ := postJSON(t, srv.URL+"/corrections", body)
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
		})

		convey.Convey("When posting a max-points correction", func() {
			body := `{
				"leaderboard": "gold",
				"competitor_id": "c1",
				"column": "Q1",
				"max_points_reason": "DSQ",
				"valid_from": "2025-06-14T12:00:00Z"
			}`
			resp, _ := postJSON(t, srv.URL+"/corrections", body)
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusAccepted)
			convey.So(deps.corrections[0].MaxPointsReason, convey.ShouldEqual, "DSQ")
		})

		convey.Convey("When posting a suppression", func() {
			resp, _ := postJSON(t, srv.URL+"/suppressions", `{"group": "season", "competitor_id": "c1", "hidden": true}`)
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusAccepted)
			convey.So(deps.suppressed["season/c1"], convey.ShouldBeTrue)
		})

		convey.Convey("When a suppression misses its group", func() {
			resp, _ := postJSON(t, srv.URL+"/suppressions", `{"competitor_id": "c1"}`)
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestGetLeaderboard(t *testing.T) {
	convey.Convey("Given the API server", t, func() {
		deps := newStubDeps()
		deps.snapshot = api.Snapshot{
			Name:  "gold",
			State: "live",
			Rows: []scoring.Row{
				{Rank: 1, CompetitorID: "c1", Net: 3, Total: 6},
			},
		}
		srv := newTestServer(deps)
		convey.Reset(srv.Close)

		convey.Convey("When querying by name", func() {
			resp, decoded := getJSON(t, srv.URL+"/leaderboard?name=gold")

			convey.Convey("Then the snapshot is served", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				convey.So(decoded["name"], convey.ShouldEqual, "gold")
				rows := decoded["rows"].([]any)
				convey.So(rows, convey.ShouldHaveLength, 1)
			})
		})

		convey.Convey("When the name is missing", func() {
			resp, _ := getJSON(t, srv.URL+"/leaderboard")
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
		})

		convey.Convey("When the state is unknown", func() {
			resp, _ := getJSON(t, srv.URL+"/leaderboard?name=gold&state=provisional")
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
		})

		convey.Convey("When the limit exceeds the configured maximum", func() {
			resp, decoded := getJSON(t, srv.URL+"/leaderboard?name=gold&limit=1000")
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
			convey.So(decoded["code"], convey.ShouldEqual, "limit_exceeded")
		})

		convey.Convey("When the at parameter is malformed", func() {
			resp, _ := getJSON(t, srv.URL+"/leaderboard?name=gold&at=yesterday")
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
		})

		convey.Convey("When the board is unknown", func() {
			deps.snapErr = fmt.Errorf("%w: silver", regatta.ErrUnknownLeaderboard)
			resp, _ := getJSON(t, srv.URL+"/leaderboard?name=silver")
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestGetRace(t *testing.T) {
	convey.Convey("Given the API server", t, func() {
		deps := newStubDeps()
		deps.summary = api.RaceSummary{RaceID: "race-1", Status: "RUNNING", Version: 7}
		srv := newTestServer(deps)
		convey.Reset(srv.Close)

		convey.Convey("When fetching a race summary", func() {
			resp, decoded := getJSON(t, srv.URL+"/races/race-1")
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			convey.So(decoded["race_id"], convey.ShouldEqual, "race-1")
			convey.So(decoded["status"], convey.ShouldEqual, "RUNNING")
		})

		convey.Convey("When the id contains a slash", func() {
			resp, _ := getJSON(t, srv.URL+"/races/race-1/extra")
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
		})

		convey.Convey("When the race is unknown", func() {
			deps.summaryErr = fmt.Errorf("%w: race-9", regatta.ErrUnknownRace)
			resp, _ := getJSON(t, srv.URL+"/races/race-9")
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestStatsAndHealth(t *testing.T) {
	convey.Convey("Given the API server", t, func() {
		deps := newStubDeps()
		srv := newTestServer(deps)
		convey.Reset(srv.Close)

		convey.Convey("When fetching stats", func() {
			resp, decoded := getJSON(t, srv.URL+"/stats")
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			convey.So(decoded["races"], convey.ShouldEqual, 2)
			convey.So(decoded["leaderboards"], convey.ShouldEqual, 1)
		})

		convey.Convey("When probing health", func() {
			resp, err := http.Get(srv.URL + "/healthz")
			convey.So(err, convey.ShouldBeNil)
			defer resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})
	})
}
