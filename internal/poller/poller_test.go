package poller

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"departure-board-backend/config"
	"departure-board-backend/internal/board"
	"departure-board-backend/internal/darwin"
	"departure-board-backend/internal/db"
	"departure-board-backend/internal/dispatch"
	"departure-board-backend/internal/model"
	"departure-board-backend/internal/stations"
	"departure-board-backend/internal/store"
)

// fakeFetcher serves canned boards keyed by station code.
type fakeFetcher struct {
	mu         sync.Mutex
	boards     map[string]*darwin.Board
	details    map[string]darwin.Details
	boardCalls int
}

func (f *fakeFetcher) FetchBoard(ctx context.Context, crs, filterCRS string, rows int) (*darwin.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.boardCalls++
	b, ok := f.boards[crs]
	if !ok {
		return nil, darwin.ErrUnavailable
	}
	return b, nil
}

func (f *fakeFetcher) FetchServiceDetails(ctx context.Context, serviceID string) (darwin.Details, error) {
	d, ok := f.details[serviceID]
	if !ok {
		return darwin.Details{}, darwin.ErrServiceDetails
	}
	return d, nil
}

// recordingRenderer counts jobs and fails while failures remain.
type recordingRenderer struct {
	mu       sync.Mutex
	jobs     []dispatch.Job
	failures int
}

func (r *recordingRenderer) Render(ctx context.Context, job dispatch.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	if r.failures > 0 {
		r.failures--
		return &dispatch.RenderError{Kind: dispatch.KindRenderFault, Style: job.Style, ExitCode: dispatch.ExitRenderFault, Stderr: "font missing"}
	}
	return nil
}

func (r *recordingRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

type recordingNotifier struct {
	routes []string
}

func (n *recordingNotifier) Dispatch(routeID string) { n.routes = append(n.routes, routeID) }

func wokingBoard() *darwin.Board {
	return &darwin.Board{
		CRS:          "WOK",
		LocationName: "Woking",
		Generated:    time.Date(2024, 1, 15, 14, 30, 45, 0, time.UTC),
		Messages:     []string{"<p>Engineering works at Clapham Junction</p>"},
		Services: []board.ServiceRecord{
			{Destination: "London Waterloo", Scheduled: "14:30", Estimated: "14:35", OperatorName: "South Western Railway", Platform: "2", ServiceID: "svc-1"},
			{Destination: "Guildford", Scheduled: "14:40", Estimated: "On time", OperatorName: "South Western Railway", ServiceID: "svc-2"},
			{Destination: "Reading", Scheduled: "14:50", Estimated: "On time", OperatorName: "Great Western Railway", ServiceID: "svc-3"},
		},
	}
}

func newFetcher() *fakeFetcher {
	return &fakeFetcher{
		boards: map[string]*darwin.Board{"WOK": wokingBoard()},
		details: map[string]darwin.Details{
			"svc-1": {
				CallingPoints: []board.CallingPoint{{Name: "Surbiton", Scheduled: "14:45", Estimated: "On time"}},
				DelayReason:   "This train has been delayed by a signalling fault",
			},
			"svc-2": {CallingPoints: []board.CallingPoint{{Name: "Worplesdon", Scheduled: "14:46", Estimated: "On time"}}},
		},
	}
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Poller: config.PollerConfig{Enabled: true, Interval: time.Minute},
		Images: config.ImagesConfig{
			Enabled:            true,
			OutputDir:          t.TempDir(),
			Styles:             []string{"classic"},
			ForegroundColor:    "#0F0",
			BackgroundColor:    "#000",
			IssueColor:         "#F00",
			TitleColor:         "#0FF",
			CallingPointsColor: "#FFF",
			FontSize:           9,
			LeftPad:            3,
			RightPad:           3,
			Width:              720,
		},
		Board:  config.BoardConfig{MaxServices: 10},
		Routes: []config.RouteConfig{{ID: "wok", Name: "Woking", Station: "Woking", Destination: "ALL", Active: true, IncludeCallingPoints: true}},
	}
}

func testDirectory(t *testing.T) *stations.Directory {
	d, err := stations.Parse(bytes.NewBufferString("WOK,Woking\nWAT,London Waterloo\nGLD,Guildford\n"))
	require.NoError(t, err)
	return d
}

func newSQLiteStore(t *testing.T) store.Store {
	gdb, err := db.Init(&config.DatabaseConfig{DSN: filepath.Join(t.TempDir(), "boards.db")}, false)
	require.NoError(t, err)
	return store.NewGormStore(gdb)
}

type harness struct {
	svc      *Service
	cfg      *config.Config
	store    store.Store
	fetcher  *fakeFetcher
	renderer *recordingRenderer
	notifier *recordingNotifier
	logs     *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	h := &harness{
		cfg:      testConfig(t),
		store:    newSQLiteStore(t),
		fetcher:  newFetcher(),
		renderer: &recordingRenderer{},
		notifier: &recordingNotifier{},
		logs:     &bytes.Buffer{},
	}
	logger := log.New(h.logs, "", 0)
	load := func() (*config.Config, error) { return h.cfg, nil }
	h.svc = NewService(load, h.store, h.fetcher, dispatch.New(h.renderer, logger), h.notifier, testDirectory(t), logger)
	return h
}

func (h *harness) states(t *testing.T, routeID string) map[string]string {
	s, err := h.store.States(context.Background(), routeID)
	require.NoError(t, err)
	return s
}

func TestPollOnce_BuildsBoardAndStates(t *testing.T) {
	h := newHarness(t)

	results := h.svc.PollOnce(context.Background())

	require.Len(t, results, 1)
	res := results[0]
	assert.Equal(t, PhaseDoneSuccess, res.Phase)
	assert.Equal(t, 2, res.Services, "service without details is dropped")
	assert.True(t, res.Departures)
	assert.True(t, res.Rendered)
	assert.Equal(t, StatusIssues, res.DeviceStatus)

	text, err := os.ReadFile(PathsFor(h.cfg.Images.OutputDir, "wok").Text)
	require.NoError(t, err)
	doc := string(text)
	assert.Contains(t, doc, "WOK to ALL\n")
	assert.Contains(t, doc, "Departures - Woking")
	assert.Contains(t, doc, "Generated on:Mon 14:30:45 UK Time")
	assert.Contains(t, doc, "Status:5 mins late")
	assert.Contains(t, doc, ">>> Surbiton(14:45)")
	assert.NotContains(t, doc, "Reading")

	states := h.states(t, "wok")
	assert.Equal(t, "Woking", states[KeyStationLong])
	assert.Equal(t, "true", states[KeyStationIssues])
	assert.Equal(t, "Engineering works at Clapham Junction", states[KeyStationMessages])
	assert.Equal(t, StatusIssues, states[KeyDeviceStatus])
	assert.Equal(t, "London Waterloo", states["train1Dest"])
	assert.Equal(t, "5 mins late", states["train1Delay"])
	assert.Equal(t, "true", states["train1Issue"])
	assert.Equal(t, "This train has been delayed by a signalling fault", states["train1Reason"])
	assert.Equal(t, "Guildford", states["train2Dest"])
	assert.Equal(t, "", states["train2Reason"])
	assert.Equal(t, "Worplesdon(14:46) ", states["train2Calling"])
	assert.Equal(t, "", states["train3Dest"])
	assert.NotEmpty(t, states[KeyDigest])

	require.Len(t, h.renderer.jobs, 1)
	job := h.renderer.jobs[0]
	assert.Equal(t, dispatch.Classic, job.Style)
	assert.True(t, job.Departures)
	assert.Equal(t, filepath.Join(h.cfg.Images.OutputDir, "wok.png"), job.ImagePath)

	var cycles []model.CycleRecord
	require.NoError(t, h.store.DB().Find(&cycles).Error)
	require.Len(t, cycles, 1)
	assert.Equal(t, string(PhaseDoneSuccess), cycles[0].State)
	assert.True(t, cycles[0].Rendered)
}

func TestPollOnce_UnchangedBoardRendersOnce(t *testing.T) {
	h := newHarness(t)
	h.cfg.Images.Styles = []string{"classic", "modern"}
	ctx := context.Background()

	first := h.svc.PollOnce(ctx)
	second := h.svc.PollOnce(ctx)

	assert.Equal(t, 2, h.renderer.count(), "one job per style, only in the first cycle")
	assert.True(t, first[0].Rendered)
	assert.False(t, second[0].Rendered)
	assert.True(t, second[0].Skipped)
	assert.Equal(t, PhaseDoneSuccess, second[0].Phase)
	assert.Equal(t, []string{"wok"}, h.notifier.routes, "issues only alert when they appear")

	// A colour change alters the digest even though the text did not.
	h.cfg.Images.IssueColor = "#FF8800"
	third := h.svc.PollOnce(ctx)
	assert.True(t, third[0].Rendered)
	assert.Equal(t, 4, h.renderer.count())
}

func TestPollOnce_FailedRenderIsRetried(t *testing.T) {
	h := newHarness(t)
	h.renderer.failures = 1
	ctx := context.Background()

	first := h.svc.PollOnce(ctx)
	require.Len(t, first, 1)
	assert.Equal(t, PhaseDoneFailure, first[0].Phase)
	assert.Error(t, first[0].Err)
	assert.Equal(t, StatusIssues, first[0].DeviceStatus, "data was still refreshed")
	states := h.states(t, "wok")
	assert.Contains(t, states[KeyLastRenderError], "render_fault")
	assert.Empty(t, states[KeyDigest])

	second := h.svc.PollOnce(ctx)
	assert.True(t, second[0].Rendered)
	assert.Equal(t, 2, h.renderer.count())
	states = h.states(t, "wok")
	assert.Empty(t, states[KeyLastRenderError])
	assert.NotEmpty(t, states[KeyDigest])
}

func TestPollOnce_PartlyFailedRenderIsRetried(t *testing.T) {
	h := newHarness(t)
	h.cfg.Images.Styles = []string{"classic", "modern"}
	h.renderer.failures = 1
	ctx := context.Background()

	first := h.svc.PollOnce(ctx)
	require.Len(t, first, 1)
	assert.True(t, first[0].Rendered, "the modern image still rendered")
	assert.Equal(t, PhaseDoneSuccess, first[0].Phase)
	states := h.states(t, "wok")
	assert.Contains(t, states[KeyLastRenderError], "classic")
	assert.Empty(t, states[KeyDigest])

	second := h.svc.PollOnce(ctx)
	assert.True(t, second[0].Rendered)
	assert.Equal(t, 4, h.renderer.count())
	states = h.states(t, "wok")
	assert.Empty(t, states[KeyLastRenderError])
	assert.NotEmpty(t, states[KeyDigest])

	third := h.svc.PollOnce(ctx)
	assert.True(t, third[0].Skipped)
	assert.Equal(t, 4, h.renderer.count())
}

func TestPollOnce_RouteFailureDoesNotStopOthers(t *testing.T) {
	h := newHarness(t)
	h.cfg.Routes = []config.RouteConfig{
		{ID: "gld", Name: "Guildford", Station: "GLD", Destination: "London Waterloo", Active: true},
		{ID: "wok", Name: "Woking", Station: "Woking", Active: true},
		{ID: "old", Name: "Retired", Station: "WAT", Active: false},
	}
	ctx := context.Background()

	results := h.svc.PollOnce(ctx)

	require.Len(t, results, 3)
	assert.Equal(t, PhaseDoneFailure, results[0].Phase)
	assert.ErrorIs(t, results[0].Err, darwin.ErrUnavailable)
	assert.Equal(t, StatusAwaiting, results[0].DeviceStatus)
	assert.Equal(t, PhaseDoneSuccess, results[1].Phase)
	assert.Equal(t, StatusInactive, results[2].DeviceStatus)
	assert.Equal(t, 2, h.fetcher.boardCalls, "inactive route is not fetched")
	assert.Equal(t, 1, h.renderer.count())

	assert.Equal(t, StatusAwaiting, h.states(t, "gld")[KeyDeviceStatus])
	assert.Equal(t, StatusInactive, h.states(t, "old")[KeyDeviceStatus])

	var route model.Route
	require.NoError(t, h.store.DB().Where("id = ?", "gld").First(&route).Error)
	assert.Equal(t, "WAT", route.DestinationCRS)
	assert.Equal(t, "London Waterloo", route.DestinationName)
}

func TestPollOnce_NoDepartures(t *testing.T) {
	h := newHarness(t)
	h.fetcher.boards["WOK"] = &darwin.Board{CRS: "WOK", LocationName: "Woking"}

	results := h.svc.PollOnce(context.Background())

	require.Len(t, results, 1)
	assert.False(t, results[0].Departures)
	assert.Equal(t, StatusOnTime, results[0].DeviceStatus)
	require.Len(t, h.renderer.jobs, 1)
	assert.False(t, h.renderer.jobs[0].Departures)

	text, err := os.ReadFile(PathsFor(h.cfg.Images.OutputDir, "wok").Text)
	require.NoError(t, err)
	assert.Contains(t, string(text), "** No departures found from Woking today **")
	assert.Empty(t, h.notifier.routes)
}

func TestPollOnce_ImageSettings(t *testing.T) {
	testCases := []struct {
		name     string
		mutate   func(cfg *config.Config)
		rendered bool
		digest   bool
	}{
		{"no styles enabled", func(cfg *config.Config) { cfg.Images.Styles = nil }, false, false},
		{"images disabled", func(cfg *config.Config) { cfg.Images.Enabled = false }, false, false},
		{"unknown style ignored", func(cfg *config.Config) { cfg.Images.Styles = []string{"retro", "modern"} }, true, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			tc.mutate(h.cfg)

			results := h.svc.PollOnce(context.Background())

			require.Len(t, results, 1)
			assert.Equal(t, PhaseDoneSuccess, results[0].Phase)
			assert.Equal(t, tc.rendered, results[0].Rendered)
			assert.Equal(t, tc.digest, h.states(t, "wok")[KeyDigest] != "")
			_, err := os.Stat(PathsFor(h.cfg.Images.OutputDir, "wok").Text)
			assert.NoError(t, err, "board text is always written")
		})
	}
}

func TestPollOnce_KeepsLastGoodConfig(t *testing.T) {
	h := newHarness(t)
	good := h.cfg
	calls := 0
	h.svc.load = func() (*config.Config, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("yaml: line 3: did not find expected key")
		}
		return good, nil
	}

	h.svc.PollOnce(context.Background())
	results := h.svc.PollOnce(context.Background())

	require.Len(t, results, 1)
	assert.Contains(t, h.logs.String(), "keeping previous")
}

// mockStore is a mock implementation of the store.Store interface.
type mockStore struct {
	SyncRoutesFunc  func(ctx context.Context, routes []model.Route) error
	SetStatesFunc   func(ctx context.Context, routeID string, states map[string]string) error
	StatesFunc      func(ctx context.Context, routeID string) (map[string]string, error)
	DigestFunc      func(ctx context.Context, routeID string) (string, error)
	SaveDigestFunc  func(ctx context.Context, routeID, digest string) error
	RecordCycleFunc func(ctx context.Context, rec model.CycleRecord) error
	DBFunc          func() *gorm.DB
}

func (m *mockStore) SyncRoutes(ctx context.Context, routes []model.Route) error {
	return m.SyncRoutesFunc(ctx, routes)
}

func (m *mockStore) SetStates(ctx context.Context, routeID string, states map[string]string) error {
	return m.SetStatesFunc(ctx, routeID, states)
}

func (m *mockStore) States(ctx context.Context, routeID string) (map[string]string, error) {
	return m.StatesFunc(ctx, routeID)
}

func (m *mockStore) Digest(ctx context.Context, routeID string) (string, error) {
	return m.DigestFunc(ctx, routeID)
}

func (m *mockStore) SaveDigest(ctx context.Context, routeID, digest string) error {
	return m.SaveDigestFunc(ctx, routeID, digest)
}

func (m *mockStore) RecordCycle(ctx context.Context, rec model.CycleRecord) error {
	return m.RecordCycleFunc(ctx, rec)
}

func (m *mockStore) DB() *gorm.DB {
	return m.DBFunc()
}

func TestPollOnce_StoreErrorsAreAbsorbed(t *testing.T) {
	dbDown := errors.New("connection refused")
	var saved string
	ms := &mockStore{
		SyncRoutesFunc:  func(ctx context.Context, routes []model.Route) error { return dbDown },
		SetStatesFunc:   func(ctx context.Context, routeID string, states map[string]string) error { return dbDown },
		StatesFunc:      func(ctx context.Context, routeID string) (map[string]string, error) { return nil, dbDown },
		DigestFunc:      func(ctx context.Context, routeID string) (string, error) { return "", dbDown },
		SaveDigestFunc:  func(ctx context.Context, routeID, digest string) error { saved = digest; return nil },
		RecordCycleFunc: func(ctx context.Context, rec model.CycleRecord) error { return dbDown },
		DBFunc:          func() *gorm.DB { return nil },
	}
	cfg := testConfig(t)
	renderer := &recordingRenderer{}
	var logs bytes.Buffer
	logger := log.New(&logs, "", 0)
	svc := NewService(func() (*config.Config, error) { return cfg, nil }, ms, newFetcher(), dispatch.New(renderer, logger), nil, testDirectory(t), logger)

	results := svc.PollOnce(context.Background())

	require.Len(t, results, 1)
	assert.Equal(t, PhaseDoneSuccess, results[0].Phase)
	assert.Equal(t, 1, renderer.count(), "an unreadable digest renders anyway")
	assert.NotEmpty(t, saved)
	assert.Contains(t, logs.String(), "could not sync routes")
}

func TestRun_Disabled(t *testing.T) {
	h := newHarness(t)
	h.cfg.Poller.Enabled = false

	done := make(chan struct{})
	go func() {
		h.svc.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled poller did not return")
	}
	assert.Zero(t, h.fetcher.boardCalls)
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.svc.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return h.renderer.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}
