package collector

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/talkincode/dishwatch/internal/domain"
	"github.com/talkincode/dishwatch/internal/store"
	"github.com/talkincode/dishwatch/internal/telemetry"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dbfile := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbfile), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrator().AutoMigrate(domain.Tables...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.NewStore(db)
}

// scriptedSource replays a fixed sequence of status fetches.
type scriptedSource struct {
	steps []func() (*telemetry.DishStatus, error)
	i     int
}

func (s *scriptedSource) Status(context.Context) (*telemetry.DishStatus, error) {
	if s.i >= len(s.steps) {
		return nil, errors.New("script exhausted")
	}
	step := s.steps[s.i]
	s.i++
	return step()
}

func (s *scriptedSource) ThroughputHistory(context.Context, int) (*telemetry.ThroughputHistory, error) {
	return nil, errors.New("history unavailable")
}

func healthyStatus(latency float64) func() (*telemetry.DishStatus, error) {
	return func() (*telemetry.DishStatus, error) {
		return &telemetry.DishStatus{
			LatencyMs:     latency,
			DownlinkBps:   80e6,
			UplinkBps:     12e6,
			SnrAboveNoise: true,
		}, nil
	}
}

func failedFetch() (*telemetry.DishStatus, error) {
	return nil, errors.New("dish unreachable")
}

func TestCollectorOutageLifecycle(t *testing.T) {
	st := newTestStore(t)
	src := &scriptedSource{steps: []func() (*telemetry.DishStatus, error){
		healthyStatus(30),
		failedFetch,
		healthyStatus(25),
	}}

	c := New(Config{Interval: 30 * time.Second}, st, src, nil, nil, nil)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.Local)

	c.tick(base)
	c.tick(base.Add(30 * time.Second))
	c.tick(base.Add(60 * time.Second))

	// two successful ticks stored two samples
	count, err := st.CountMetricsSince(base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("count metrics: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 stored samples, got %d", count)
	}

	outages, err := st.OutagesSince(base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("query outages: %v", err)
	}
	if len(outages) != 1 {
		t.Fatalf("expected 1 outage record, got %d", len(outages))
	}
	rec := outages[0]
	if rec.Open() {
		t.Fatal("outage should be closed after recovery")
	}
	if rec.DurationSeconds == nil || *rec.DurationSeconds != 30 {
		t.Fatalf("expected 30s outage duration, got %v", rec.DurationSeconds)
	}
	if rec.Severity != domain.SeverityMinor {
		t.Fatalf("expected minor severity for a one-interval outage, got %s", rec.Severity)
	}
	if rec.Reason != ReasonRestored {
		t.Fatalf("unexpected close reason %q", rec.Reason)
	}

	status := c.Status()
	if !status.Connected || status.OutageInProgress {
		t.Fatal("collector status should show a healthy connection")
	}
	if status.LastSuccessfulCollection == nil {
		t.Fatal("last successful collection not recorded")
	}
}

func TestCollectorFailureDoesNotDoubleOpen(t *testing.T) {
	st := newTestStore(t)
	steps := make([]func() (*telemetry.DishStatus, error), 0, 8)
	for i := 0; i < 8; i++ {
		steps = append(steps, failedFetch)
	}
	src := &scriptedSource{steps: steps}

	c := New(Config{Interval: time.Minute}, st, src, nil, nil, nil)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.Local)
	for i := 0; i < 8; i++ {
		c.tick(base.Add(time.Duration(i) * time.Minute))
	}

	outages, err := st.OutagesSince(base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("query outages: %v", err)
	}
	if len(outages) != 1 {
		t.Fatalf("repeated failures must keep a single open outage, got %d", len(outages))
	}
	if !outages[0].Open() {
		t.Fatal("outage should still be open while fetches keep failing")
	}
	if c.Status().ConsecutiveFailures != 8 {
		t.Fatalf("expected 8 consecutive failures, got %d", c.Status().ConsecutiveFailures)
	}
}

func TestCollectorPerformanceEvents(t *testing.T) {
	st := newTestStore(t)
	src := &scriptedSource{steps: []func() (*telemetry.DishStatus, error){
		func() (*telemetry.DishStatus, error) {
			// high latency, weak throughput, obstructed: quality under 50
			return &telemetry.DishStatus{
				LatencyMs:       150,
				DownlinkBps:     5e6,
				UplinkBps:       1e6,
				ObstructionFrac: 0.12,
			}, nil
		},
	}}

	c := New(Config{Interval: time.Minute}, st, src, nil, nil, nil)
	c.tick(time.Now())

	events, err := st.EventsSince(time.Now().Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	found := false
	for _, e := range events {
		if e.EventType == domain.EventPoorPerformance {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a poor performance event for a low quality sample")
	}
}

func TestStatusConcurrentWithLoop(t *testing.T) {
	st := newTestStore(t)
	steps := make([]func() (*telemetry.DishStatus, error), 0, 64)
	for i := 0; i < 64; i++ {
		steps = append(steps, healthyStatus(30), failedFetch)
	}
	src := &scriptedSource{steps: steps}

	c := New(Config{Interval: time.Millisecond}, st, src, nil, nil, nil)
	c.Start()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			deadline := time.Now().Add(50 * time.Millisecond)
			for time.Now().Before(deadline) {
				s := c.Status()
				if s.ConsecutiveFailures < 0 {
					t.Error("snapshot exposed torn state")
					return
				}
			}
		}()
	}
	wg.Wait()
	c.Stop()

	if c.Status().Running {
		t.Fatal("collector still marked running after stop")
	}
}

func TestCollectorStartStopIdempotent(t *testing.T) {
	st := newTestStore(t)
	src := &scriptedSource{steps: []func() (*telemetry.DishStatus, error){
		healthyStatus(30), healthyStatus(30), healthyStatus(30),
	}}

	c := New(Config{Interval: time.Hour}, st, src, nil, nil, nil)
	c.Start()
	c.Start() // second start must not spawn a second loop
	time.Sleep(50 * time.Millisecond)
	c.Stop()
	c.Stop() // second stop must not panic

	if c.Status().Running {
		t.Fatal("collector still marked running after stop")
	}
}
