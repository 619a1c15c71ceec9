package speedtest

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/talkincode/dishwatch/internal/domain"
	"github.com/talkincode/dishwatch/internal/store"
)

// checkInterval is how often the scheduler looks for due schedules.
const checkInterval = 60 * time.Second

// cronParser accepts standard five-field expressions. Expressions are
// validated once at creation; runtime only evaluates stored Next times.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// ParseCron validates a schedule expression and returns its evaluator.
func ParseCron(expr string) (cron.Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid cron expression %q", expr)
	}
	return sched, nil
}

type Scheduler struct {
	store  *store.Store
	engine *Engine

	// now is swappable in tests
	now func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	runs    sync.WaitGroup
}

func NewScheduler(st *store.Store, engine *Engine) *Scheduler {
	return &Scheduler{store: st, engine: engine, now: time.Now}
}

// CreateSchedule validates the expression, stamps the first next-run time
// and persists the schedule.
func (s *Scheduler) CreateSchedule(name, expr string, enabled bool) (*domain.SpeedTestSchedule, error) {
	sched, err := ParseCron(expr)
	if err != nil {
		return nil, err
	}
	next := sched.Next(s.now())
	rec := &domain.SpeedTestSchedule{
		Name:     name,
		CronExpr: expr,
		Enabled:  enabled,
		NextRun:  &next,
	}
	if err := s.store.CreateSchedule(rec); err != nil {
		return nil, err
	}
	zap.S().Infof("speed test schedule %q created (%s), next run %s", name, expr, next)
	return rec, nil
}

// Start launches the periodic due-schedule check.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.loop()
	zap.S().Info("speed test scheduler started")
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		zap.S().Warn("speed test scheduler did not stop in time")
	}

	// dispatched test runs finish on their own goroutines
	finished := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		zap.S().Warn("a dispatched speed test is still running at shutdown")
	}
}

func (s *Scheduler) loop() {
	defer close(s.doneCh)
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.RunDue()
		}
	}
}

// RunDue dispatches every enabled schedule whose next-run time has passed
// onto its own goroutine and advances the next-run stamp at dispatch time,
// so a slow measurement never delays later schedule checks. The engine's
// single-flight guard serializes the actual tests. Schedules with a broken
// stored expression are skipped.
func (s *Scheduler) RunDue() {
	now := s.now()
	schedules, err := s.store.Schedules(true)
	if err != nil {
		zap.S().Errorf("failed to load speed test schedules: %v", err)
		return
	}

	for _, rec := range schedules {
		if rec.NextRun == nil {
			// backfill a missing next-run stamp without running
			if sched, perr := ParseCron(rec.CronExpr); perr == nil {
				next := sched.Next(now)
				_ = s.store.UpdateScheduleRun(rec.ID, nil, &next)
			}
			continue
		}
		if rec.NextRun.After(now) {
			continue
		}

		sched, perr := ParseCron(rec.CronExpr)
		if perr != nil {
			zap.S().Errorf("schedule %q has an invalid stored expression: %v", rec.Name, perr)
			continue
		}

		ran := now
		next := sched.Next(now)
		if err := s.store.UpdateScheduleRun(rec.ID, &ran, &next); err != nil {
			zap.S().Errorf("failed to advance schedule %q: %v", rec.Name, err)
			continue
		}

		zap.S().Infof("dispatching scheduled speed test %q", rec.Name)
		name := rec.Name
		s.runs.Add(1)
		go func() {
			defer s.runs.Done()
			if _, rerr := s.engine.Run(domain.SpeedTestScheduled); rerr != nil {
				if errors.Is(rerr, ErrTestRunning) {
					zap.S().Infof("scheduled speed test %q skipped, another test is in flight", name)
					return
				}
				zap.S().Errorf("scheduled speed test %q failed: %v", name, rerr)
			}
		}()
	}
}
