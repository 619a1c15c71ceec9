package speedtest

import (
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/talkincode/dishwatch/internal/domain"
)

func seedResult(t *testing.T, e *Engine, ts time.Time, status string, download, upload, pingMs float64) {
	t.Helper()
	err := e.store.InsertSpeedTest(&domain.SpeedTestResult{
		Timestamp:    ts,
		TestType:     domain.SpeedTestManual,
		Status:       status,
		DownloadMbps: download,
		UploadMbps:   upload,
		PingMs:       pingMs,
	})
	if err != nil {
		t.Fatalf("seed result: %v", err)
	}
}

func TestSummaryAggregates(t *testing.T) {
	st := newTestStore(t)
	engine := NewEngine(st, testConfig(newMeasurementServer(t)))
	now := time.Now()

	seedResult(t, engine, now.Add(-2*time.Hour), domain.SpeedTestCompleted, 100, 12, 30)
	seedResult(t, engine, now.Add(-1*time.Hour), domain.SpeedTestCompleted, 80, 10, 40)
	seedResult(t, engine, now.Add(-30*time.Minute), domain.SpeedTestFailed, 0, 0, 0)
	seedResult(t, engine, now.Add(-15*time.Minute), domain.SpeedTestCancelled, 0, 0, 0)
	// outside the window
	seedResult(t, engine, now.AddDate(0, 0, -10), domain.SpeedTestCompleted, 1, 1, 500)

	sum, err := engine.Summary(7)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Count != 4 || sum.Completed != 2 || sum.Failed != 1 || sum.Cancelled != 1 {
		t.Fatalf("unexpected counters %+v", sum)
	}
	if sum.Download.Avg != 90 || sum.Download.Min != 80 || sum.Download.Max != 100 {
		t.Fatalf("failed tests must not dilute the rate stats: %+v", sum.Download)
	}
	if sum.Ping.Avg != 35 {
		t.Fatalf("ping average %.1f, want 35", sum.Ping.Avg)
	}
	if sum.ByType[domain.SpeedTestManual] != 4 {
		t.Fatalf("unexpected type breakdown %v", sum.ByType)
	}
}

func TestSummaryNoResults(t *testing.T) {
	st := newTestStore(t)
	engine := NewEngine(st, testConfig(newMeasurementServer(t)))

	if _, err := engine.Summary(7); !errors.Is(err, ErrNoResults) {
		t.Fatalf("expected ErrNoResults, got %v", err)
	}
}

func TestDailyTrendBuckets(t *testing.T) {
	st := newTestStore(t)
	engine := NewEngine(st, testConfig(newMeasurementServer(t)))
	now := time.Now()
	yesterday := now.AddDate(0, 0, -1)

	seedResult(t, engine, yesterday, domain.SpeedTestCompleted, 60, 8, 50)
	seedResult(t, engine, yesterday.Add(time.Minute), domain.SpeedTestCompleted, 80, 10, 30)
	seedResult(t, engine, now, domain.SpeedTestCompleted, 100, 12, 20)
	// failed runs carry no rates and stay out of the buckets
	seedResult(t, engine, now.Add(time.Minute), domain.SpeedTestFailed, 0, 0, 0)

	points, err := engine.Trends(7)
	if err != nil {
		t.Fatalf("trends: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 daily points, got %d", len(points))
	}
	if points[0].Date != yesterday.Format(domain.DateLayout) {
		t.Fatalf("points not sorted oldest first: %+v", points)
	}
	if points[0].AvgDownload != 70 || points[0].Count != 2 {
		t.Fatalf("unexpected first bucket %+v", points[0])
	}
	if points[1].AvgDownload != 100 || points[1].Count != 1 {
		t.Fatalf("unexpected second bucket %+v", points[1])
	}
}
