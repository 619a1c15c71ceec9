package analytics

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/talkincode/dishwatch/internal/domain"
	"github.com/talkincode/dishwatch/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
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
	st := store.NewStore(db)
	return NewEngine(st), st
}

func seedMetric(t *testing.T, st *store.Store, ts time.Time, latency, download, upload float64, quality int) {
	t.Helper()
	err := st.InsertMetric(&domain.ConnectionMetric{
		Timestamp:    ts,
		LatencyMs:    latency,
		DownloadMbps: download,
		UploadMbps:   upload,
		QualityScore: quality,
	})
	if err != nil {
		t.Fatalf("seed metric: %v", err)
	}
}

func TestSummary(t *testing.T) {
	engine, st := newTestEngine(t)
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.Local)
	engine.now = func() time.Time { return now }

	seedMetric(t, st, now.Add(-2*time.Hour), 20, 100, 10, 90)
	seedMetric(t, st, now.Add(-1*time.Hour), 40, 50, 20, 70)
	// outside the window, must be ignored
	seedMetric(t, st, now.Add(-30*time.Hour), 500, 1, 1, 5)

	sum, err := engine.Summary(1)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.SampleCount != 2 {
		t.Fatalf("expected 2 samples, got %d", sum.SampleCount)
	}
	if sum.FirstSample == nil || !sum.FirstSample.Equal(now.Add(-2*time.Hour)) {
		t.Fatalf("oldest sample timestamp wrong: %v", sum.FirstSample)
	}
	if sum.LastSample == nil || !sum.LastSample.Equal(now.Add(-1*time.Hour)) {
		t.Fatalf("newest sample timestamp wrong: %v", sum.LastSample)
	}
	if sum.Latency.Avg != 30 || sum.Latency.Min != 20 || sum.Latency.Max != 40 {
		t.Fatalf("unexpected latency stats %+v", sum.Latency)
	}
	if sum.Download.Avg != 75 {
		t.Fatalf("expected 75 Mbps avg download, got %.1f", sum.Download.Avg)
	}
	if sum.AvgQuality != 80 {
		t.Fatalf("expected avg quality 80, got %.1f", sum.AvgQuality)
	}
	if sum.Latest == nil || sum.Latest.QualityScore != 70 {
		t.Fatal("latest sample not the most recent one")
	}
	if sum.UptimePct != 100 {
		t.Fatalf("no outages should mean 100%% uptime, got %.1f", sum.UptimePct)
	}
}

func TestSummaryNoData(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.Summary(1)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestTrendRejectsBadInput(t *testing.T) {
	engine, _ := newTestEngine(t)

	if _, err := engine.Trend("bogus", "hour", 1); !errors.Is(err, ErrUnknownMetric) {
		t.Fatalf("expected ErrUnknownMetric, got %v", err)
	}
	if _, err := engine.Trend("latency", "fortnight", 1); !errors.Is(err, ErrBadPeriod) {
		t.Fatalf("expected ErrBadPeriod, got %v", err)
	}
}

func TestTrendHourBuckets(t *testing.T) {
	engine, st := newTestEngine(t)
	now := time.Date(2026, 8, 28, 12, 30, 0, 0, time.Local)
	engine.now = func() time.Time { return now }

	seedMetric(t, st, now.Add(-90*time.Minute), 20, 100, 10, 90)
	seedMetric(t, st, now.Add(-80*time.Minute), 40, 100, 10, 90)
	seedMetric(t, st, now.Add(-10*time.Minute), 60, 100, 10, 90)

	points, err := engine.Trend("latency", "hour", 1)
	if err != nil {
		t.Fatalf("trend: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 hour buckets, got %d", len(points))
	}
	if points[0].Avg != 30 || points[0].Samples != 2 {
		t.Fatalf("unexpected first bucket %+v", points[0])
	}
	if points[1].Avg != 60 {
		t.Fatalf("unexpected second bucket %+v", points[1])
	}
	if !(points[0].Bucket < points[1].Bucket) {
		t.Fatal("buckets not sorted ascending")
	}
}

func TestComparisonWeekdayNumbering(t *testing.T) {
	engine, st := newTestEngine(t)
	// 2026-08-23 is a Sunday
	sunday := time.Date(2026, 8, 23, 10, 0, 0, 0, time.Local)
	now := sunday.Add(2 * time.Hour)
	engine.now = func() time.Time { return now }

	seedMetric(t, st, sunday, 20, 100, 10, 90)

	if _, err := engine.Comparison("bogus"); !errors.Is(err, ErrUnknownMetric) {
		t.Fatalf("expected ErrUnknownMetric, got %v", err)
	}

	cmp, err := engine.Comparison("quality")
	if err != nil {
		t.Fatalf("comparison: %v", err)
	}
	if cmp.Metric != "quality" || cmp.Days != 30 {
		t.Fatalf("unexpected comparison window %+v", cmp)
	}
	if len(cmp.ByWeekday) != 1 {
		t.Fatalf("expected 1 weekday entry, got %d", len(cmp.ByWeekday))
	}
	if cmp.ByWeekday[0].Day != 0 || cmp.ByWeekday[0].Name != "Sunday" {
		t.Fatalf("Sunday should be day 0, got %+v", cmp.ByWeekday[0])
	}
	if cmp.ByWeekday[0].Avg != 90 {
		t.Fatalf("weekday average %.1f, want 90", cmp.ByWeekday[0].Avg)
	}
	if len(cmp.ByHour) != 1 || cmp.ByHour[0].Hour != 10 {
		t.Fatalf("unexpected hour profile %+v", cmp.ByHour)
	}
}

func TestAdvancedDistributionAndConsistency(t *testing.T) {
	engine, st := newTestEngine(t)
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.Local)
	engine.now = func() time.Time { return now }

	day := time.Date(2026, 8, 28, 10, 0, 0, 0, time.Local)
	night := time.Date(2026, 8, 28, 2, 0, 0, 0, time.Local)
	seedMetric(t, st, day, 20, 100, 10, 95)
	seedMetric(t, st, day.Add(time.Minute), 20, 104, 10, 80)
	seedMetric(t, st, night, 30, 50, 5, 55)

	adv, err := engine.Advanced(7)
	if err != nil {
		t.Fatalf("advanced: %v", err)
	}
	if adv.Daytime.SampleCount != 2 || adv.Nighttime.SampleCount != 1 {
		t.Fatalf("day/night split wrong: %d/%d", adv.Daytime.SampleCount, adv.Nighttime.SampleCount)
	}

	dist := map[string]int{}
	for _, b := range adv.QualityBuckets {
		dist[b.Label] = b.Count
	}
	if dist["excellent"] != 1 || dist["good"] != 1 || dist["poor"] != 1 {
		t.Fatalf("unexpected quality distribution %v", dist)
	}

	// spread 104-50 = 54 Mbps
	if adv.SpeedConsistency.Rating != "inconsistent" {
		t.Fatalf("expected inconsistent rating for 54 Mbps spread, got %s", adv.SpeedConsistency.Rating)
	}
	if len(adv.TopDownloadHours) == 0 || adv.TopDownloadHours[0].Hour != 10 {
		t.Fatalf("top download hour wrong: %+v", adv.TopDownloadHours)
	}
}

func TestInsightsOutageFrequency(t *testing.T) {
	engine, st := newTestEngine(t)
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.Local)
	engine.now = func() time.Time { return now }

	for i := 0; i < 6; i++ {
		start := now.Add(-time.Duration(i+1) * 12 * time.Hour)
		rec, err := st.OpenOutage(start, "")
		if err != nil {
			t.Fatalf("open outage %d: %v", i, err)
		}
		if err := st.CloseOutage(rec.ID, start.Add(time.Minute), domain.SeverityMajor, "x"); err != nil {
			t.Fatalf("close outage %d: %v", i, err)
		}
	}

	insights, err := engine.Insights(7)
	if err != nil {
		t.Fatalf("insights: %v", err)
	}
	found := false
	for _, ins := range insights {
		if ins.Title == "Frequent outages" {
			found = true
			if ins.Severity != "warning" || ins.Recommendation == "" {
				t.Fatalf("incomplete insight %+v", ins)
			}
		}
	}
	if !found {
		t.Fatalf("expected an outage frequency insight with 6 outages, got %+v", insights)
	}
}

func TestInsightsQuietLink(t *testing.T) {
	engine, st := newTestEngine(t)
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.Local)
	engine.now = func() time.Time { return now }

	seedMetric(t, st, now.Add(-time.Hour), 20, 100, 10, 95)

	insights, err := engine.Insights(7)
	if err != nil {
		t.Fatalf("insights: %v", err)
	}
	if len(insights) != 0 {
		t.Fatalf("healthy link should produce no insights, got %+v", insights)
	}
}
