package collector

import (
	"sync"
	"time"

	"github.com/talkincode/dishwatch/internal/domain"
)

// Severity classification thresholds
const (
	minorMaxDuration    = 60 * time.Second
	criticalMinDuration = 1800 * time.Second
)

// maxConsecutiveFailures is how many collection-cycle failures are
// tolerated before the detector forces a down transition even without a
// latency reading to compare.
const maxConsecutiveFailures = 5

// ClassifySeverity maps an outage duration to its severity label.
func ClassifySeverity(d time.Duration) string {
	switch {
	case d >= criticalMinDuration:
		return domain.SeverityCritical
	case d >= minorMaxDuration:
		return domain.SeverityMajor
	default:
		return domain.SeverityMinor
	}
}

// Reading is the connectivity signal for one tick. A failed fetch is an
// explicit Unavailable value rather than an exception path.
type Reading struct {
	LatencyMs   float64
	Unavailable bool
}

// ConnectionOK is the connectivity predicate. Latency of exactly zero
// counts as down: a terminal that has not measured latency yet is
// indistinguishable from a dead link at this boundary, and the
// consecutive-failure heuristic covers the cold-start case.
func (r Reading) ConnectionOK() bool {
	return !r.Unavailable && r.LatencyMs > 0 && r.LatencyMs < 2000
}

// TransitionKind identifies what the detector observed for a tick.
type TransitionKind int

const (
	TransitionNone TransitionKind = iota
	TransitionDown
	TransitionUp
)

// Transition carries the outcome of one observation. Start/End/Duration
// and Severity are populated on TransitionUp; Start on TransitionDown.
type Transition struct {
	Kind     TransitionKind
	Start    time.Time
	End      time.Time
	Duration time.Duration
	Severity string
}

// Detector is the UP/DOWN connectivity state machine. Transitions are
// driven by the collector loop; the mutex makes the snapshot getters safe
// to call from request goroutines. Durable outage records live in the
// store.
type Detector struct {
	mu          sync.Mutex
	connected   bool
	outageStart time.Time
	failures    int
}

func NewDetector() *Detector {
	return &Detector{connected: true}
}

// Observe advances the state machine with one reading taken at now and
// reports the resulting transition, if any.
func (d *Detector) Observe(now time.Time, r Reading) Transition {
	d.mu.Lock()
	defer d.mu.Unlock()
	ok := r.ConnectionOK()

	switch {
	case !ok && d.connected:
		d.connected = false
		d.outageStart = now
		return Transition{Kind: TransitionDown, Start: now}

	case ok && !d.connected:
		d.connected = true
		t := Transition{Kind: TransitionNone}
		if !d.outageStart.IsZero() {
			duration := now.Sub(d.outageStart)
			t = Transition{
				Kind:     TransitionUp,
				Start:    d.outageStart,
				End:      now,
				Duration: duration,
				Severity: ClassifySeverity(duration),
			}
		}
		d.outageStart = time.Time{}
		return t
	}

	return Transition{Kind: TransitionNone}
}

// RecordFailure counts one collection-cycle failure. When the threshold is
// exceeded while no outage is tracked, the detector forces a down
// transition starting at now.
func (d *Detector) RecordFailure(now time.Time) Transition {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures++
	if d.failures > maxConsecutiveFailures && d.outageStart.IsZero() {
		d.connected = false
		d.outageStart = now
		return Transition{Kind: TransitionDown, Start: now}
	}
	return Transition{Kind: TransitionNone}
}

// ResetFailures clears the consecutive-failure counter after a successful cycle.
func (d *Detector) ResetFailures() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = 0
}

// ForceClose finalizes any tracked outage at now, used on controlled
// shutdown. Returns a TransitionUp when an outage was open.
func (d *Detector) ForceClose(now time.Time) Transition {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.outageStart.IsZero() {
		return Transition{Kind: TransitionNone}
	}
	duration := now.Sub(d.outageStart)
	t := Transition{
		Kind:     TransitionUp,
		Start:    d.outageStart,
		End:      now,
		Duration: duration,
		Severity: ClassifySeverity(duration),
	}
	d.outageStart = time.Time{}
	d.connected = true
	return t
}

// Snapshot of in-memory detector state for the status probe.

func (d *Detector) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

func (d *Detector) OutageOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.outageStart.IsZero()
}

func (d *Detector) OutageStart() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.outageStart
}

func (d *Detector) Failures() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.failures
}
