package speedtest

import (
	"testing"
	"time"

	"github.com/talkincode/dishwatch/internal/domain"
)

func TestParseCron(t *testing.T) {
	valid := []string{"0 3 * * *", "*/15 * * * *", "30 6 * * 1"}
	for _, expr := range valid {
		if _, err := ParseCron(expr); err != nil {
			t.Errorf("%q rejected: %v", expr, err)
		}
	}

	invalid := []string{"", "not a cron", "61 * * * *", "* * * *", "@reboot-ish"}
	for _, expr := range invalid {
		if _, err := ParseCron(expr); err == nil {
			t.Errorf("%q accepted but should fail", expr)
		}
	}
}

func TestCreateScheduleValidates(t *testing.T) {
	st := newTestStore(t)
	sched := NewScheduler(st, nil)

	if _, err := sched.CreateSchedule("broken", "every day at noon", true); err == nil {
		t.Fatal("invalid expression should be rejected at creation")
	}
	rows, err := st.Schedules(false)
	if err != nil {
		t.Fatalf("query schedules: %v", err)
	}
	if len(rows) != 0 {
		t.Fatal("rejected schedule must not be persisted")
	}

	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.Local)
	sched.now = func() time.Time { return now }

	rec, err := sched.CreateSchedule("nightly", "0 3 * * *", true)
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	if rec.NextRun == nil {
		t.Fatal("next run not stamped at creation")
	}
	want := time.Date(2026, 8, 29, 3, 0, 0, 0, time.Local)
	if !rec.NextRun.Equal(want) {
		t.Fatalf("next run %s, want %s", rec.NextRun, want)
	}
}

func TestRunDueAdvancesAtDispatchTime(t *testing.T) {
	st := newTestStore(t)
	srv := newMeasurementServer(t)
	engine := NewEngine(st, testConfig(srv))
	sched := NewScheduler(st, engine)

	now := time.Date(2026, 8, 28, 10, 0, 30, 0, time.Local)
	sched.now = func() time.Time { return now }

	past := now.Add(-time.Minute)
	rec := &domain.SpeedTestSchedule{Name: "due", CronExpr: "*/5 * * * *", Enabled: true, NextRun: &past}
	if err := st.CreateSchedule(rec); err != nil {
		t.Fatalf("create schedule: %v", err)
	}

	// another test is in flight: the dispatched run is skipped, but the
	// schedule must still advance so the check loop never stalls on it
	engine.mu.Lock()
	engine.active = true
	engine.mu.Unlock()

	sched.RunDue()
	sched.runs.Wait()

	rows, err := st.Schedules(true)
	if err != nil {
		t.Fatalf("query schedules: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 schedule, got %d", len(rows))
	}
	if rows[0].NextRun == nil || !rows[0].NextRun.After(now) {
		t.Fatalf("next run not advanced at dispatch: %v", rows[0].NextRun)
	}

	results, err := st.SpeedTestsSince(now.Add(-time.Hour), domain.SpeedTestScheduled, 10)
	if err != nil {
		t.Fatalf("query results: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("busy engine must skip the dispatched run, got %d results", len(results))
	}
}

func TestRunDueExecutesAndAdvances(t *testing.T) {
	st := newTestStore(t)
	srv := newMeasurementServer(t)
	engine := NewEngine(st, testConfig(srv))
	sched := NewScheduler(st, engine)

	now := time.Date(2026, 8, 28, 10, 0, 30, 0, time.Local)
	sched.now = func() time.Time { return now }

	past := now.Add(-time.Minute)
	rec := &domain.SpeedTestSchedule{Name: "due", CronExpr: "*/5 * * * *", Enabled: true, NextRun: &past}
	if err := st.CreateSchedule(rec); err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	future := now.Add(time.Hour)
	notDue := &domain.SpeedTestSchedule{Name: "later", CronExpr: "0 3 * * *", Enabled: true, NextRun: &future}
	if err := st.CreateSchedule(notDue); err != nil {
		t.Fatalf("create second schedule: %v", err)
	}

	sched.RunDue()
	sched.runs.Wait()

	results, err := st.SpeedTestsSince(time.Now().Add(-time.Hour), domain.SpeedTestScheduled, 10)
	if err != nil {
		t.Fatalf("query results: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly one scheduled run, got %d", len(results))
	}

	rows, err := st.Schedules(true)
	if err != nil {
		t.Fatalf("query schedules: %v", err)
	}
	for _, r := range rows {
		switch r.Name {
		case "due":
			if r.RunCount != 1 {
				t.Fatalf("due schedule run count %d, want 1", r.RunCount)
			}
			if r.NextRun == nil || !r.NextRun.After(now) {
				t.Fatalf("due schedule next run not advanced: %v", r.NextRun)
			}
			if r.LastRun == nil {
				t.Fatal("due schedule last run not stamped")
			}
		case "later":
			if r.RunCount != 0 {
				t.Fatalf("future schedule ran early, count %d", r.RunCount)
			}
		}
	}
}
