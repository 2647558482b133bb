// Package daemon provides the long-running background plot and harvester
// monitor service.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/theirongolddev/plotlog/internal/engine"
	"github.com/theirongolddev/plotlog/internal/harvest"
	"github.com/theirongolddev/plotlog/internal/model"
	"github.com/theirongolddev/plotlog/internal/pipeline"
	"github.com/theirongolddev/plotlog/internal/plot"
	"github.com/theirongolddev/plotlog/internal/store"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = "127.0.0.1:8787"

// Config controls the daemon runtime behavior.
type Config struct {
	PlotDir      string
	HarvesterLog string
	Location     *time.Location
	Interval     time.Duration
	PollInterval time.Duration // fallback poll for followed logs
	Addr         string
	EventsBuffer int
	Cache        *store.Cache // optional
	Logger       *slog.Logger
}

// Snapshot is a compact farm state for status/event payloads.
type Snapshot struct {
	At            time.Time `json:"at"`
	Plots         int       `json:"plots"`
	Finished      int       `json:"finished"`
	InProgress    int       `json:"in_progress"`
	Errored       int       `json:"errored"`
	TotalSizeGiB  float64   `json:"total_size_gib"`
	PlotsPerDay   float64   `json:"plots_per_day"`
	AvgPlotSecs   float64   `json:"avg_plot_secs"`
	SignagePoints int       `json:"signage_points"`
	ProofsFound   int64     `json:"proofs_found"`
	Warnings      int       `json:"warnings"`
}

// Delta captures snapshot deltas between polls.
type Delta struct {
	Plots       int   `json:"plots"`
	Finished    int   `json:"finished"`
	Errored     int   `json:"errored"`
	ProofsFound int64 `json:"proofs_found"`
}

func (d Delta) isZero() bool {
	return d.Plots == 0 &&
		d.Finished == 0 &&
		d.Errored == 0 &&
		d.ProofsFound == 0
}

// Event types besides the parser event kinds.
const (
	EventSnapshot  = "snapshot"
	EventFarmDelta = "farm_delta"
)

// Event is published for every farm snapshot change and for every
// forwarded plot or harvester event.
type Event struct {
	ID        int64        `json:"id"`
	Type      string       `json:"type"`
	Timestamp time.Time    `json:"timestamp"`
	Path      string       `json:"path,omitempty"`
	Phase     int          `json:"phase,omitempty"`
	Percent   int          `json:"percent,omitempty"`
	Payload   model.Record `json:"payload,omitempty"`
	Error     string       `json:"error,omitempty"`
	Snapshot  *Snapshot    `json:"snapshot,omitempty"`
	Delta     *Delta       `json:"delta,omitempty"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time `json:"started_at"`
	LastPollAt      time.Time `json:"last_poll_at"`
	PollIntervalSec int       `json:"poll_interval_sec"`
	PollCount       int64     `json:"poll_count"`
	PlotDir         string    `json:"plot_dir"`
	HarvesterLog    string    `json:"harvester_log,omitempty"`
	Harvesting      bool      `json:"harvesting"`
	Watching        []string  `json:"watching"`
	Summary         Snapshot  `json:"summary"`
	LastError       string    `json:"last_error,omitempty"`
	EventCount      int       `json:"event_count"`
	SubscriberCount int       `json:"subscriber_count"`
}

// Service provides the daemon runtime and HTTP API.
type Service struct {
	cfg Config
	log *slog.Logger

	mu          sync.RWMutex
	startedAt   time.Time
	lastPollAt  time.Time
	pollCount   int64
	lastError   string
	hasSnapshot bool
	snapshot    Snapshot
	nextEventID int64
	events      []Event

	nextSubID int
	subs      map[int]chan Event

	watching  map[string]*plot.Parser
	harvester *harvest.Parser
	farm      harvestCounters
	wg        sync.WaitGroup
}

type harvestCounters struct {
	signagePoints int
	proofs        int64
	warnings      int
}

// New returns a new daemon service with the provided config.
func New(cfg Config) *Service {
	if cfg.Interval < 2*time.Second {
		cfg.Interval = 30 * time.Second
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 500
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = engine.DefaultPollInterval
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Service{
		cfg:       cfg,
		log:       cfg.Logger.With("component", "daemon"),
		startedAt: time.Now(),
		subs:      make(map[int]chan Event),
		watching:  make(map[string]*plot.Parser),
	}
}

// Run starts HTTP endpoints, log followers and polling until ctx is
// canceled.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	defer s.stopFollowers()

	// Seed initial snapshot so status is useful immediately.
	s.pollOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			s.pollOnce(ctx)
		case err := <-errCh:
			return fmt.Errorf("daemon http server: %w", err)
		}
	}
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/events", s.handleEvents)
	mux.HandleFunc("/v1/stream", s.handleStream)
	return mux
}

func (s *Service) pollOnce(ctx context.Context) {
	plots, err := s.loadPlots(ctx)
	if err != nil {
		s.mu.Lock()
		s.lastError = err.Error()
		s.lastPollAt = time.Now()
		s.pollCount++
		s.mu.Unlock()
		s.log.Warn("poll failed", "dir", s.cfg.PlotDir, "err", err)
		return
	}

	for _, p := range plots {
		if p.State == model.StateDone || p.State == model.StateErrored {
			continue
		}
		s.followPlot(ctx, p.FilePath)
	}
	s.followHarvester(ctx)

	now := time.Now()
	stats := pipeline.Aggregate(plots, time.Time{}, time.Time{})

	s.mu.Lock()
	snap := snapshotFromStats(stats, s.farm, now)
	prev := s.snapshot
	prevExists := s.hasSnapshot

	s.hasSnapshot = true
	s.snapshot = snap
	s.lastPollAt = now
	s.pollCount++
	s.lastError = ""
	s.mu.Unlock()

	if !prevExists {
		s.publishEvent(Event{Type: EventSnapshot, Timestamp: now, Snapshot: &snap})
	} else if delta := diffSnapshots(prev, snap); !delta.isZero() {
		s.publishEvent(Event{Type: EventFarmDelta, Timestamp: now, Snapshot: &snap, Delta: &delta})
	}
}

func (s *Service) loadPlots(ctx context.Context) ([]model.PlotStats, error) {
	opts := s.plotOptions()
	if s.cfg.Cache != nil {
		cr, err := pipeline.LoadWithCache(ctx, s.cfg.PlotDir, s.cfg.Cache, opts, nil)
		if err == nil {
			return cr.Plots, nil
		}
		s.log.Warn("cache load failed, doing full parse", "err", err)
	}

	result, err := pipeline.Load(ctx, s.cfg.PlotDir, opts, nil)
	if err != nil {
		return nil, err
	}
	return result.Plots, nil
}

func (s *Service) plotOptions() []plot.Option {
	return []plot.Option{
		plot.WithLocation(s.cfg.Location),
		plot.WithLogger(s.cfg.Logger),
		plot.WithPollInterval(s.cfg.PollInterval),
	}
}

func snapshotFromStats(stats model.FarmStats, h harvestCounters, at time.Time) Snapshot {
	return Snapshot{
		At:            at,
		Plots:         stats.TotalPlots,
		Finished:      stats.Finished,
		InProgress:    stats.InProgress,
		Errored:       stats.Errored,
		TotalSizeGiB:  stats.TotalSizeGiB,
		PlotsPerDay:   stats.PlotsPerDay,
		AvgPlotSecs:   stats.AvgTotalSecs,
		SignagePoints: h.signagePoints,
		ProofsFound:   h.proofs,
		Warnings:      h.warnings,
	}
}

func diffSnapshots(prev, curr Snapshot) Delta {
	return Delta{
		Plots:       curr.Plots - prev.Plots,
		Finished:    curr.Finished - prev.Finished,
		Errored:     curr.Errored - prev.Errored,
		ProofsFound: curr.ProofsFound - prev.ProofsFound,
	}
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.nextEventID++
	ev.ID = s.nextEventID
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	watching := make([]string, 0, len(s.watching))
	for path := range s.watching {
		watching = append(watching, path)
	}
	slices.Sort(watching)

	return Status{
		StartedAt:       s.startedAt,
		LastPollAt:      s.lastPollAt,
		PollIntervalSec: int(s.cfg.Interval.Seconds()),
		PollCount:       s.pollCount,
		PlotDir:         s.cfg.PlotDir,
		HarvesterLog:    s.cfg.HarvesterLog,
		Harvesting:      s.harvester != nil,
		Watching:        watching,
		Summary:         s.snapshot,
		LastError:       s.lastError,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.snapshotStatus())
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 64)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	// Send current snapshot immediately.
	summary := s.snapshotStatus().Summary
	writeSSE(w, Event{Type: EventSnapshot, Timestamp: time.Now(), Snapshot: &summary})
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if ev.ID > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", ev.ID)
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
