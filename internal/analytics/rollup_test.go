package analytics

import (
	"testing"
	"time"

	"github.com/talkincode/dishwatch/internal/domain"
)

func TestRecomputeDailyStats(t *testing.T) {
	engine, st := newTestEngine(t)
	now := time.Date(2026, 8, 28, 23, 0, 0, 0, time.Local)
	engine.now = func() time.Time { return now }

	today := time.Date(2026, 8, 28, 10, 0, 0, 0, time.Local)
	yesterday := today.AddDate(0, 0, -1)
	seedMetric(t, st, today, 20, 100, 10, 90)
	seedMetric(t, st, today.Add(time.Hour), 40, 60, 20, 70)
	seedMetric(t, st, yesterday, 30, 80, 15, 85)

	rec, err := st.OpenOutage(today.Add(2*time.Hour), "")
	if err != nil {
		t.Fatalf("open outage: %v", err)
	}
	if err := st.CloseOutage(rec.ID, today.Add(2*time.Hour+3*time.Minute), domain.SeverityMajor, "x"); err != nil {
		t.Fatalf("close outage: %v", err)
	}

	if err := engine.RecomputeDailyStats(); err != nil {
		t.Fatalf("rollup: %v", err)
	}

	rows, err := st.DailyStatsSince("2026-08-01")
	if err != nil {
		t.Fatalf("query daily stats: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected rollup rows for 2 dates, got %d", len(rows))
	}

	// newest first
	todayRow := rows[0]
	if todayRow.Date != "2026-08-28" {
		t.Fatalf("unexpected first row date %s", todayRow.Date)
	}
	if todayRow.DataPoints != 2 {
		t.Fatalf("expected 2 data points, got %d", todayRow.DataPoints)
	}
	if todayRow.AvgLatencyMs != 30 || todayRow.MaxLatencyMs != 40 || todayRow.MinLatencyMs != 20 {
		t.Fatalf("unexpected latency rollup %+v", todayRow)
	}
	if todayRow.OutageCount != 1 || todayRow.TotalOutageMinutes != 3 {
		t.Fatalf("outage rollup wrong: count %d minutes %d", todayRow.OutageCount, todayRow.TotalOutageMinutes)
	}

	// recomputing must not duplicate or drift
	if err := engine.RecomputeDailyStats(); err != nil {
		t.Fatalf("second rollup: %v", err)
	}
	rows, err = st.DailyStatsSince("2026-08-01")
	if err != nil {
		t.Fatalf("query daily stats again: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("second rollup changed row count to %d", len(rows))
	}
	if rows[0].AvgLatencyMs != 30 || rows[0].DataPoints != 2 {
		t.Fatalf("second rollup drifted: %+v", rows[0])
	}
}
