// Package poller runs the refresh loop: for each configured route it
// fetches the live board, rebuilds the board text, and re-renders the
// images when their content changed.
package poller

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"departure-board-backend/config"
	"departure-board-backend/internal/board"
	"departure-board-backend/internal/darwin"
	"departure-board-backend/internal/delay"
	"departure-board-backend/internal/digest"
	"departure-board-backend/internal/dispatch"
	"departure-board-backend/internal/metrics"
	"departure-board-backend/internal/model"
	"departure-board-backend/internal/params"
	"departure-board-backend/internal/stations"
	"departure-board-backend/internal/store"
)

// Phase is a step of a route's poll cycle.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseFetching    Phase = "fetching"
	PhaseBuilding    Phase = "building"
	PhaseHashCompare Phase = "hash_compare"
	PhaseSkipRender  Phase = "skip_render"
	PhaseRendering   Phase = "rendering"
	PhaseDoneSuccess Phase = "done_success"
	PhaseDoneFailure Phase = "done_failure"
)

// Fetcher is the upstream board source.
type Fetcher interface {
	FetchBoard(ctx context.Context, crs, filterCRS string, rows int) (*darwin.Board, error)
	FetchServiceDetails(ctx context.Context, serviceID string) (darwin.Details, error)
}

// Notifier is told about routes whose issues just appeared.
type Notifier interface {
	Dispatch(routeID string)
}

// Loader returns the current configuration.
type Loader func() (*config.Config, error)

// Result is the outcome of one route in one cycle.
type Result struct {
	RouteID      string
	Phase        Phase
	DeviceStatus string
	Services     int
	Departures   bool
	Rendered     bool
	Skipped      bool
	Err          error
}

// Service orchestrates the poll cycles.
type Service struct {
	load       Loader
	cfg        *config.Config
	store      store.Store
	fetcher    Fetcher
	dispatcher *dispatch.Dispatcher
	notifier   Notifier
	stations   *stations.Directory
	now        func() time.Time
	logger     *log.Logger
}

// NewService creates a poller. notifier may be nil.
func NewService(load Loader, st store.Store, fetcher Fetcher, d *dispatch.Dispatcher, notifier Notifier, dir *stations.Directory, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	if dir == nil {
		dir = stations.Empty()
	}
	return &Service{
		load:       load,
		store:      st,
		fetcher:    fetcher,
		dispatcher: d,
		notifier:   notifier,
		stations:   dir,
		now:        time.Now,
		logger:     logger,
	}
}

// Run polls until ctx is cancelled. The interval is taken from the
// configuration read by the latest cycle.
func (s *Service) Run(ctx context.Context) {
	cfg, err := s.snapshot()
	if err != nil {
		s.logger.Printf("Poller cannot start: %v", err)
		return
	}
	if !cfg.Poller.Enabled {
		s.logger.Println("Poller is disabled. Not starting.")
		return
	}
	s.logger.Println("Starting poller service...")

	s.PollOnce(ctx)

	timer := time.NewTimer(s.interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Println("Poller service shutting down.")
			return
		case <-timer.C:
			s.PollOnce(ctx)
			timer.Reset(s.interval())
		}
	}
}

func (s *Service) interval() time.Duration {
	if s.cfg == nil || s.cfg.Poller.Interval <= 0 {
		return time.Duration(config.DefaultIntervalSeconds) * time.Second
	}
	return s.cfg.Poller.Interval
}

// snapshot re-reads the configuration, keeping the last good one when the
// file became invalid.
func (s *Service) snapshot() (*config.Config, error) {
	cfg, err := s.load()
	if err != nil {
		if s.cfg == nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		s.logger.Printf("Warning: could not reload configuration, keeping previous: %v", err)
		return s.cfg, nil
	}
	s.cfg = cfg
	return cfg, nil
}

// PollOnce runs a single cycle over every configured route. Routes are
// handled one after another and a failing route does not stop the rest.
func (s *Service) PollOnce(ctx context.Context) []Result {
	cfg, err := s.snapshot()
	if err != nil {
		s.logger.Printf("Error starting poll cycle: %v", err)
		return nil
	}
	cycleID := uuid.NewString()[:8]
	s.logger.Printf("[%s] Executing poll cycle for %d routes...", cycleID, len(cfg.Routes))

	routes := s.resolveRoutes(cfg.Routes)
	if err := s.store.SyncRoutes(ctx, routes); err != nil {
		s.logger.Printf("[%s] Warning: could not sync routes: %v", cycleID, err)
	}

	results := make([]Result, 0, len(routes))
	for i, route := range routes {
		if ctx.Err() != nil {
			break
		}
		res := s.pollRoute(ctx, cfg, cfg.Routes[i], route, cycleID)
		results = append(results, res)
	}

	s.logger.Printf("[%s] Poll cycle finished.", cycleID)
	return results
}

// resolveRoutes maps configured station names to codes.
func (s *Service) resolveRoutes(rcs []config.RouteConfig) []model.Route {
	routes := make([]model.Route, 0, len(rcs))
	for _, rc := range rcs {
		r := ResolveRoute(s.stations, rc)
		if r.StationCRS == stations.Unknown {
			s.logger.Printf("Warning: route %s station %q is not a known station", rc.ID, rc.Station)
		}
		routes = append(routes, r)
	}
	return routes
}

// ResolveRoute turns a configured route into its stored form.
func ResolveRoute(dir *stations.Directory, rc config.RouteConfig) model.Route {
	r := model.Route{
		ID:             rc.ID,
		Name:           rc.Name,
		StationCRS:     dir.Code(rc.Station),
		DestinationCRS: dir.Destination(rc.Destination),
		Active:         rc.Active,
	}
	r.StationName = nameOf(dir, r.StationCRS, rc.Station)
	if r.DestinationCRS != board.AllDestinations {
		r.DestinationName = nameOf(dir, r.DestinationCRS, rc.Destination)
	}
	return r
}

func nameOf(dir *stations.Directory, crs, configured string) string {
	if name, ok := dir.Name(crs); ok {
		return name
	}
	return configured
}

// cycle tracks one route through the phases of a poll.
type cycle struct {
	id      string
	routeID string
	debug   bool
	phase   Phase
	logger  *log.Logger
}

func (c *cycle) enter(p Phase) {
	c.phase = p
	if c.debug {
		c.logger.Printf("[%s] route %s: %s", c.id, c.routeID, p)
	}
}

func (s *Service) pollRoute(ctx context.Context, cfg *config.Config, rc config.RouteConfig, route model.Route, cycleID string) Result {
	c := &cycle{id: cycleID, routeID: route.ID, debug: cfg.Debug, phase: PhaseIdle, logger: s.logger}
	res := Result{RouteID: route.ID, Phase: PhaseIdle}

	if !route.Active {
		res.DeviceStatus = StatusInactive
		if err := s.store.SetStates(ctx, route.ID, map[string]string{KeyDeviceStatus: StatusInactive}); err != nil {
			s.logger.Printf("[%s] Warning: could not update states for route %s: %v", cycleID, route.ID, err)
		}
		return res
	}

	started := s.now().UTC()
	previous, err := s.store.States(ctx, route.ID)
	if err != nil {
		s.logger.Printf("[%s] Warning: could not read states for route %s: %v", cycleID, route.ID, err)
	}

	states := make(map[string]string)
	res = s.runRoute(ctx, c, cfg, rc, route, states)
	res.Phase = c.phase

	if res.Err != nil && res.DeviceStatus == StatusAwaiting {
		// Only the status changes; the last good board stays visible.
		states = map[string]string{KeyDeviceStatus: StatusAwaiting, KeyLastRenderError: res.Err.Error()}
	}
	if err := s.store.SetStates(ctx, route.ID, states); err != nil {
		s.logger.Printf("[%s] Warning: could not update states for route %s: %v", cycleID, route.ID, err)
	}

	if s.notifier != nil && previous[KeyStationIssues] != "true" && states[KeyStationIssues] == "true" {
		s.logger.Printf("[%s] Route %s has new issues, dispatching notifications", cycleID, route.ID)
		s.notifier.Dispatch(route.ID)
	}

	outcome := "success"
	if c.phase == PhaseDoneFailure {
		outcome = "failure"
	}
	metrics.PollCycles.WithLabelValues(route.ID, outcome).Inc()

	rec := model.CycleRecord{
		RouteID:      route.ID,
		CycleID:      cycleID,
		StartedAt:    started,
		FinishedAt:   s.now().UTC(),
		State:        string(c.phase),
		DeviceStatus: res.DeviceStatus,
		Services:     res.Services,
		Rendered:     res.Rendered,
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	if err := s.store.RecordCycle(ctx, rec); err != nil {
		s.logger.Printf("[%s] Warning: %v", cycleID, err)
	}
	return res
}

// runRoute walks Fetching, Building, HashCompare and then SkipRender or
// Rendering, filling states along the way.
func (s *Service) runRoute(ctx context.Context, c *cycle, cfg *config.Config, rc config.RouteConfig, route model.Route, states map[string]string) Result {
	res := Result{RouteID: route.ID}
	fail := func(status string, err error) Result {
		c.enter(PhaseDoneFailure)
		res.DeviceStatus = status
		res.Err = err
		s.logger.Printf("[%s] Error polling route %s: %v", c.id, route.ID, err)
		return res
	}

	c.enter(PhaseFetching)
	b, err := s.fetcher.FetchBoard(ctx, route.StationCRS, route.DestinationCRS, cfg.Board.MaxServices)
	if err != nil {
		return fail(StatusAwaiting, err)
	}

	c.enter(PhaseBuilding)
	compiled := Compile(ctx, s.fetcher, b, cfg, rc, route, s.now, s.logger)
	for k, v := range compiled.States {
		states[k] = v
	}
	doc, found := compiled.Doc, compiled.Departures
	res.Services = compiled.Services
	res.Departures = found
	res.DeviceStatus = compiled.States[KeyDeviceStatus]

	paths := PathsFor(cfg.Images.OutputDir, route.ID)
	if err := os.MkdirAll(cfg.Images.OutputDir, 0o755); err != nil {
		return fail(StatusAwaiting, fmt.Errorf("failed to create output dir: %w", err))
	}
	if err := os.WriteFile(paths.Text, []byte(doc), 0o644); err != nil {
		return fail(StatusAwaiting, fmt.Errorf("failed to write board text: %w", err))
	}

	if !cfg.Images.Enabled {
		c.enter(PhaseDoneSuccess)
		return res
	}

	p := ParamsFrom(cfg.Images)
	if err := params.Save(paths.Params, p); err != nil {
		return fail(StatusAwaiting, fmt.Errorf("failed to write render parameters: %w", err))
	}

	c.enter(PhaseHashCompare)
	current := digest.Compute(doc, p)
	previous, err := s.store.Digest(ctx, route.ID)
	if err != nil {
		s.logger.Printf("[%s] Warning: %v; rendering anyway", c.id, err)
	}
	if !digest.ShouldRender(current, previous) {
		c.enter(PhaseSkipRender)
		metrics.RenderSkips.WithLabelValues(route.ID).Inc()
		if cfg.Debug {
			s.logger.Printf("[%s] Board for route %s unchanged, skipping render", c.id, route.ID)
		}
		res.Skipped = true
		c.enter(PhaseDoneSuccess)
		return res
	}

	c.enter(PhaseRendering)
	report := s.dispatcher.Dispatch(ctx, dispatch.Request{
		ImagePath:  paths.Image,
		TextPath:   paths.Text,
		ParamsPath: paths.Params,
		Departures: found,
		Styles:     enabledStyles(cfg.Images),
	})
	switch {
	case report.NoStyles:
		// Nothing to render; leave the digest so enabling a style renders.
	case report.Success():
		res.Rendered = true
		states[KeyLastRenderError] = ""
		// A style that failed is retried next cycle only while the digest
		// is left stale.
		if !report.Complete() {
			break
		}
		if err := s.store.SaveDigest(ctx, route.ID, current); err != nil {
			s.logger.Printf("[%s] Warning: could not save digest for route %s: %v", c.id, route.ID, err)
		}
	default:
		err := report.LastError()
		states[KeyLastRenderError] = err.Error()
		res.Err = err
		c.enter(PhaseDoneFailure)
		return res
	}
	if err := report.LastError(); err != nil {
		states[KeyLastRenderError] = err.Error()
	}

	c.enter(PhaseDoneSuccess)
	return res
}

// Compiled is a built board and the states describing it.
type Compiled struct {
	Doc        board.Document
	Departures bool
	Services   int
	Issues     bool
	States     map[string]string
}

// Compile fetches details for the services on b and builds the board
// document. A service whose details cannot be fetched is left out.
func Compile(ctx context.Context, f Fetcher, b *darwin.Board, cfg *config.Config, rc config.RouteConfig, route model.Route, now func() time.Time, logger *log.Logger) Compiled {
	classifier := delay.Classifier{LegacyMidnight: cfg.Board.LegacyMidnight}
	messages := strings.Join(b.Messages, " ")
	states := clearedStates()

	var entries []board.Entry
	issues := false
	for _, svc := range b.Services {
		if len(entries) >= cfg.Board.MaxServices {
			break
		}
		details, err := f.FetchServiceDetails(ctx, svc.ServiceID)
		if err != nil {
			logger.Printf("Warning: skipping service %s on route %s: %v", svc.ServiceID, route.ID, err)
			continue
		}
		entries = append(entries, board.Entry{Service: svc, CallingPoints: details.CallingPoints})

		r := classifier.Classify(svc.Scheduled, svc.Estimated)
		issues = issues || r.IsProblem
		setTrain(states, len(entries), svc, r, details.Reason(), board.CallingPointsText(details.CallingPoints))
	}

	generatedAt := b.Generated
	if generatedAt.IsZero() {
		generatedAt = now()
	}
	in := board.Input{
		StationCRS:           route.StationCRS,
		DestinationCRS:       route.DestinationCRS,
		StationName:          firstNonEmpty(b.LocationName, route.StationName),
		DestinationName:      firstNonEmpty(b.FilterLocationName, route.DestinationName),
		Generated:            board.UKTime(generatedAt),
		Messages:             messages,
		Entries:              entries,
		IncludeCallingPoints: cfg.Images.IncludeCallingPoints || rc.IncludeCallingPoints,
		Classifier:           classifier,
	}
	doc, found := board.Build(in)

	states[KeyStationLong] = in.StationName
	states[KeyTimeGenerated] = in.Generated
	states[KeyStationIssues] = fmt.Sprint(issues)
	states[KeyStationMessages] = stationMessages(messages)
	states[KeyDeviceStatus] = StatusOnTime
	if issues {
		states[KeyDeviceStatus] = StatusIssues
	}

	return Compiled{Doc: doc, Departures: found, Services: len(entries), Issues: issues, States: states}
}

// Paths are the files written for a route.
type Paths struct {
	Text   string
	Params string
	Image  string
}

// PathsFor lays out the files of a route under dir.
func PathsFor(dir, routeID string) Paths {
	return Paths{
		Text:   filepath.Join(dir, routeID+"_timetable.txt"),
		Params: filepath.Join(dir, routeID+"_params.txt"),
		Image:  filepath.Join(dir, routeID+".png"),
	}
}

// ParamsFrom builds the render parameters from the image settings.
func ParamsFrom(img config.ImagesConfig) params.Parameters {
	return params.Parameters{
		Foreground:    img.ForegroundColor,
		Background:    img.BackgroundColor,
		Issue:         img.IssueColor,
		Title:         img.TitleColor,
		CallingPoints: img.CallingPointsColor,
		FontSize:      img.FontSize,
		LeftPad:       img.LeftPad,
		RightPad:      img.RightPad,
		Width:         img.Width,
	}
}

func enabledStyles(img config.ImagesConfig) []dispatch.Style {
	var styles []dispatch.Style
	for _, st := range []dispatch.Style{dispatch.Classic, dispatch.Modern} {
		if img.HasStyle(string(st)) {
			styles = append(styles, st)
		}
	}
	return styles
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
