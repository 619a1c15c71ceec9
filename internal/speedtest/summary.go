package speedtest

import (
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"github.com/talkincode/dishwatch/internal/domain"
)

// ErrNoResults is returned by the aggregate queries over an empty window.
var ErrNoResults = errors.New("no speed test results in the requested period")

// RateStats is an avg/min/max triple over completed measurements.
type RateStats struct {
	Avg float64 `json:"avg"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Summary aggregates the speed test results of a trailing window. Rate
// statistics cover completed tests only; the counters cover every result.
type Summary struct {
	Days      int            `json:"days"`
	Count     int            `json:"count"`
	Completed int            `json:"completed"`
	Failed    int            `json:"failed"`
	Cancelled int            `json:"cancelled"`
	ByType    map[string]int `json:"by_type"`
	Download  RateStats      `json:"download_mbps"`
	Upload    RateStats      `json:"upload_mbps"`
	Ping      RateStats      `json:"ping_ms"`
}

// TrendPoint is one day of completed-test averages, oldest first.
type TrendPoint struct {
	Date        string  `json:"date"`
	AvgDownload float64 `json:"avg_download_mbps"`
	AvgUpload   float64 `json:"avg_upload_mbps"`
	AvgPing     float64 `json:"avg_ping_ms"`
	Count       int     `json:"count"`
}

// Summary aggregates the stored results of the trailing window of days.
func (e *Engine) Summary(days int) (*Summary, error) {
	if days <= 0 {
		days = 7
	}
	rows, err := e.store.AllSpeedTestsSince(time.Now().AddDate(0, 0, -days))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoResults
	}
	return summarize(days, rows), nil
}

// Trends groups the completed results of the trailing window into daily
// average points.
func (e *Engine) Trends(days int) ([]TrendPoint, error) {
	if days <= 0 {
		days = 7
	}
	rows, err := e.store.AllSpeedTestsSince(time.Now().AddDate(0, 0, -days))
	if err != nil {
		return nil, err
	}
	points := dailyTrends(rows)
	if len(points) == 0 {
		return nil, ErrNoResults
	}
	return points, nil
}

func summarize(days int, rows []domain.SpeedTestResult) *Summary {
	sum := &Summary{Days: days, Count: len(rows), ByType: map[string]int{}}

	var downloads, uploads, pings []float64
	for i := range rows {
		r := &rows[i]
		sum.ByType[r.TestType]++
		switch r.Status {
		case domain.SpeedTestCompleted:
			sum.Completed++
			downloads = append(downloads, r.DownloadMbps)
			uploads = append(uploads, r.UploadMbps)
			pings = append(pings, r.PingMs)
		case domain.SpeedTestFailed:
			sum.Failed++
		case domain.SpeedTestCancelled:
			sum.Cancelled++
		}
	}
	sum.Download = rateStats(downloads)
	sum.Upload = rateStats(uploads)
	sum.Ping = rateStats(pings)
	return sum
}

func rateStats(values []float64) RateStats {
	if len(values) == 0 {
		return RateStats{}
	}
	avg, _ := stats.Mean(values)
	min, _ := stats.Min(values)
	max, _ := stats.Max(values)
	return RateStats{Avg: avg, Min: min, Max: max}
}

func dailyTrends(rows []domain.SpeedTestResult) []TrendPoint {
	type bucket struct {
		downloads, uploads, pings []float64
	}
	buckets := map[string]*bucket{}
	for i := range rows {
		r := &rows[i]
		if r.Status != domain.SpeedTestCompleted {
			continue
		}
		key := r.Timestamp.Format(domain.DateLayout)
		b := buckets[key]
		if b == nil {
			b = &bucket{}
			buckets[key] = b
		}
		b.downloads = append(b.downloads, r.DownloadMbps)
		b.uploads = append(b.uploads, r.UploadMbps)
		b.pings = append(b.pings, r.PingMs)
	}

	out := make([]TrendPoint, 0, len(buckets))
	for date, b := range buckets {
		dl, _ := stats.Mean(b.downloads)
		ul, _ := stats.Mean(b.uploads)
		pg, _ := stats.Mean(b.pings)
		out = append(out, TrendPoint{
			Date:        date,
			AvgDownload: dl,
			AvgUpload:   ul,
			AvgPing:     pg,
			Count:       len(b.downloads),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
