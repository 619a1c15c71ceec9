// Package collector drives the periodic telemetry collection loop: it
// polls the dish, scores samples, tracks outage transitions and feeds the
// persistent store. All mutable state is owned by the loop goroutine and
// exposed only as a read-only snapshot.
package collector

import (
	"context"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/talkincode/dishwatch/internal/analytics"
	"github.com/talkincode/dishwatch/internal/domain"
	"github.com/talkincode/dishwatch/internal/store"
	"github.com/talkincode/dishwatch/internal/telemetry"
	"github.com/talkincode/dishwatch/pkg/metrics"
)

// Outage record reasons
const (
	ReasonRestored = "Connection restored"
	ReasonShutdown = "System shutdown"
)

// Event bus topics published by the collector
const (
	TopicOutageOpened     = "outage.opened"
	TopicOutageClosed     = "outage.closed"
	TopicPerformanceEvent = "performance.event"
)

// historyWindowSeconds is how much throughput history each tick requests.
const historyWindowSeconds = 300

// WeatherProvider supplies ambient conditions for outage annotation and
// the periodic weather sampling task. Both methods return empty/nil when
// the weather source is unconfigured or unreachable.
type WeatherProvider interface {
	ConditionNote() string
	Sample() *domain.WeatherSample
}

// Config holds the collector cadences. Each periodic sub-task runs on its
// own deadline timer, decoupled from the main tick interval.
type Config struct {
	Interval         time.Duration
	WeatherInterval  time.Duration
	AnalysisInterval time.Duration
}

// Status is the read-only collector snapshot exposed to the health probe.
type Status struct {
	Running                  bool       `json:"running"`
	IntervalSeconds          int        `json:"collection_interval"`
	Connected                bool       `json:"last_connection_state"`
	OutageInProgress         bool       `json:"outage_in_progress"`
	OutageStartTime          *time.Time `json:"outage_start_time"`
	ConsecutiveFailures      int        `json:"consecutive_failures"`
	LastSuccessfulCollection *time.Time `json:"last_successful_collection"`
	WeatherEnabled           bool       `json:"weather_enabled"`
}

type Collector struct {
	cfg       Config
	store     *store.Store
	source    telemetry.Source
	weather   WeatherProvider
	analytics *analytics.Engine
	bus       EventBus.Bus
	detector  *Detector

	// now is swappable in tests
	now func() time.Time

	mu             sync.Mutex
	running        bool
	stopCh         chan struct{}
	doneCh         chan struct{}
	lastSuccess    time.Time
	openOutageID   int64
	nextWeatherAt  time.Time
	nextAnalysisAt time.Time
}

func New(cfg Config, st *store.Store, source telemetry.Source, weather WeatherProvider, engine *analytics.Engine, bus EventBus.Bus) *Collector {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.WeatherInterval <= 0 {
		cfg.WeatherInterval = 10 * time.Minute
	}
	if cfg.AnalysisInterval <= 0 {
		cfg.AnalysisInterval = time.Hour
	}
	return &Collector{
		cfg:       cfg,
		store:     st,
		source:    source,
		weather:   weather,
		analytics: engine,
		bus:       bus,
		detector:  NewDetector(),
		now:       time.Now,
	}
}

// Start launches the background loop. Starting a running collector is a no-op.
func (c *Collector) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		zap.S().Warn("collector is already running")
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	now := c.now()
	c.nextWeatherAt = now.Add(c.cfg.WeatherInterval)
	c.nextAnalysisAt = now.Add(c.cfg.AnalysisInterval)
	c.mu.Unlock()

	go c.loop()
	zap.S().Infof("collector started (interval: %s)", c.cfg.Interval)
}

// Stop signals the loop, waits briefly for a graceful exit, and
// force-closes any outage still open.
func (c *Collector) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	done := c.doneCh
	c.mu.Unlock()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		zap.S().Warn("collector loop did not stop in time")
	}

	if t := c.detector.ForceClose(c.now()); t.Kind == TransitionUp {
		c.finalizeOutage(t, ReasonShutdown)
	}
	zap.S().Info("collector stopped")
}

// Status returns an immutable snapshot of the loop's in-memory state.
func (c *Collector) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		Running:             c.running,
		IntervalSeconds:     int(c.cfg.Interval / time.Second),
		Connected:           c.detector.Connected(),
		OutageInProgress:    c.detector.OutageOpen(),
		ConsecutiveFailures: c.detector.Failures(),
		WeatherEnabled:      c.weather != nil,
	}
	if c.detector.OutageOpen() {
		start := c.detector.OutageStart()
		st.OutageStartTime = &start
	}
	if !c.lastSuccess.IsZero() {
		last := c.lastSuccess
		st.LastSuccessfulCollection = &last
	}
	return st
}

func (c *Collector) loop() {
	defer close(c.doneCh)
	for {
		c.tick(c.now())
		if !c.sleep(c.cfg.Interval) {
			return
		}
	}
}

// sleep blocks for d in roughly one-second increments so a stop request is
// observed promptly. Returns false when stop was requested.
func (c *Collector) sleep(d time.Duration) bool {
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		if remaining > time.Second {
			remaining = time.Second
		}
		select {
		case <-c.stopCh:
			return false
		case <-time.After(remaining):
		}
	}
}

// tick runs one collection cycle plus any due periodic sub-tasks. Errors
// are logged and fed to the failure heuristic; they never stop the loop.
func (c *Collector) tick(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			zap.S().Errorf("collector tick panic: %v", r)
		}
	}()

	if err := c.collect(now); err != nil {
		zap.S().Errorf("collection cycle failed: %v", err)
		if t := c.detector.RecordFailure(now); t.Kind == TransitionDown {
			zap.S().Warn("multiple collection failures - possible major outage")
			c.openOutage(t)
		}
	} else {
		c.detector.ResetFailures()
		c.mu.Lock()
		c.lastSuccess = now
		c.mu.Unlock()
		metrics.SetGauge("collector_last_success", now.Unix())
	}

	c.runSideTasks(now)
}

// collect fetches telemetry, drives outage detection and persists one
// sample. A telemetry fetch failure is converted into an unavailable
// reading first, then returned so the caller can count it.
func (c *Collector) collect(now time.Time) error {
	ctx := context.Background()

	status, fetchErr := c.source.Status(ctx)
	var hist *telemetry.ThroughputHistory
	if fetchErr == nil {
		// history is best effort; the speed policy handles its absence
		hist, _ = c.source.ThroughputHistory(ctx, historyWindowSeconds)
	}

	reading := Reading{Unavailable: fetchErr != nil}
	if status != nil {
		reading.LatencyMs = status.LatencyMs
	}
	c.applyTransition(c.detector.Observe(now, reading))

	if fetchErr != nil {
		return errors.Wrap(fetchErr, "telemetry fetch")
	}

	speed := ResolveSpeed(hist, status)
	obstructionPct := status.ObstructionFrac * 100
	score := Score(status.LatencyMs, speed.DownloadMbps, speed.UploadMbps, obstructionPct, status.SnrAboveNoise)

	metric := &domain.ConnectionMetric{
		Timestamp:      now,
		LatencyMs:      status.LatencyMs,
		DownloadMbps:   speed.DownloadMbps,
		UploadMbps:     speed.UploadMbps,
		ObstructionPct: obstructionPct,
		QualityScore:   score,
		SnrAboveNoise:  status.SnrAboveNoise,
		UptimeSeconds:  status.UptimeSeconds,
		GpsValid:       status.GpsValid,
		GpsSatellites:  status.GpsSatellites,
		EthSpeedMbps:   status.EthSpeedMbps,
		SpeedSource:    speed.Source,
	}
	if err := c.store.InsertMetric(metric); err != nil {
		return err
	}

	if score < 50 {
		c.recordEvent(domain.EventPoorPerformance, map[string]interface{}{
			"quality_score":   score,
			"latency_ms":      status.LatencyMs,
			"download_mbps":   speed.DownloadMbps,
			"upload_mbps":     speed.UploadMbps,
			"obstruction_pct": obstructionPct,
		})
	}
	if speed.DownloadMbps > 50 || speed.UploadMbps > 20 {
		c.recordEvent(domain.EventHighSpeed, map[string]interface{}{
			"download_mbps": speed.DownloadMbps,
			"upload_mbps":   speed.UploadMbps,
		})
	}

	zap.S().Debugf("collected: %.1fMbps down %.1fMbps up %.0fms quality %d%%",
		speed.DownloadMbps, speed.UploadMbps, status.LatencyMs, score)
	return nil
}

func (c *Collector) applyTransition(t Transition) {
	switch t.Kind {
	case TransitionDown:
		zap.S().Warn("connection outage detected")
		c.openOutage(t)
	case TransitionUp:
		zap.S().Infof("connection restored after %.0f seconds (severity: %s)",
			t.Duration.Seconds(), t.Severity)
		c.finalizeOutage(t, ReasonRestored)
	}
}

func (c *Collector) openOutage(t Transition) {
	var note string
	if c.weather != nil {
		note = c.weather.ConditionNote()
	}
	rec, err := c.store.OpenOutage(t.Start, note)
	if err != nil {
		if errors.Is(err, store.ErrOutageOpen) {
			zap.S().Debug("outage record already open, keeping it")
			return
		}
		zap.S().Errorf("failed to open outage record: %v", err)
		return
	}
	c.mu.Lock()
	c.openOutageID = rec.ID
	c.mu.Unlock()
	c.publish(TopicOutageOpened, rec.ID, t.Start)
}

func (c *Collector) finalizeOutage(t Transition, reason string) {
	c.mu.Lock()
	id := c.openOutageID
	c.openOutageID = 0
	c.mu.Unlock()

	if id == 0 {
		// in-memory id lost (e.g. the record was opened before a restart)
		open, err := c.store.OpenedOutage()
		if err != nil || open == nil {
			return
		}
		id = open.ID
	}

	if err := c.store.CloseOutage(id, t.End, t.Severity, reason); err != nil {
		zap.S().Errorf("failed to close outage record: %v", err)
		return
	}
	c.recordEvent(domain.EventOutage, map[string]interface{}{
		"duration_seconds": int64(t.Duration.Seconds()),
		"severity":         t.Severity,
		"reason":           reason,
	})
	c.publish(TopicOutageClosed, id, t.Severity, t.Duration)
}

func (c *Collector) recordEvent(eventType string, details map[string]interface{}) {
	if err := c.store.RecordEvent(eventType, details); err != nil {
		zap.S().Errorf("failed to record %s event: %v", eventType, err)
		return
	}
	c.publish(TopicPerformanceEvent, eventType, details)
}

func (c *Collector) publish(topic string, args ...interface{}) {
	if c.bus != nil {
		c.bus.Publish(topic, args...)
	}
}

// runSideTasks fires the slower-cadence sub-tasks whose deadline has
// passed. Each failure is logged and the next deadline still advances.
func (c *Collector) runSideTasks(now time.Time) {
	c.mu.Lock()
	weatherDue := !now.Before(c.nextWeatherAt)
	analysisDue := !now.Before(c.nextAnalysisAt)
	if weatherDue {
		c.nextWeatherAt = now.Add(c.cfg.WeatherInterval)
	}
	if analysisDue {
		c.nextAnalysisAt = now.Add(c.cfg.AnalysisInterval)
	}
	c.mu.Unlock()

	if weatherDue && c.weather != nil {
		if sample := c.weather.Sample(); sample != nil {
			sample.Timestamp = now
			if err := c.store.InsertWeather(sample); err != nil {
				zap.S().Warnf("weather collection failed: %v", err)
			} else {
				zap.S().Debugf("weather collected: %s", sample.Condition)
			}
		}
	}

	if analysisDue {
		c.runPerformanceAnalysis(now)
	}
}

// runPerformanceAnalysis persists a per-hour performance summary for the
// current hour when it has enough samples.
func (c *Collector) runPerformanceAnalysis(now time.Time) {
	if c.analytics == nil {
		return
	}
	patterns, err := c.analytics.HourlyPatterns(7)
	if err != nil {
		zap.S().Errorf("performance analysis failed: %v", err)
		return
	}
	if len(patterns) == 0 {
		return
	}

	best := patterns[0]
	worst := patterns[0]
	for _, p := range patterns {
		if p.AvgQuality > best.AvgQuality {
			best = p
		}
		if p.AvgQuality < worst.AvgQuality {
			worst = p
		}
	}
	zap.S().Infof("best performance hour: %02d:00 (quality: %.0f%%)", best.Hour, best.AvgQuality)
	if worst.AvgQuality < 60 {
		zap.S().Warnf("poor performance hour: %02d:00 (quality: %.0f%%)", worst.Hour, worst.AvgQuality)
	}

	for _, p := range patterns {
		if p.Hour != now.Hour() || p.SampleCount <= 5 {
			continue
		}
		var note string
		if c.weather != nil {
			note = c.weather.ConditionNote()
		}
		err := c.store.UpsertHourlyPerformance(&domain.HourlyPerformance{
			Date:        now.Format(domain.DateLayout),
			HourOfDay:   p.Hour,
			AvgDownload: p.AvgDownload,
			AvgUpload:   p.AvgUpload,
			AvgLatency:  p.AvgLatency,
			AvgQuality:  p.AvgQuality,
			SampleCount: p.SampleCount,
			WeatherNote: note,
		})
		if err != nil {
			zap.S().Errorf("failed to store performance analysis: %v", err)
		}
		break
	}
}
