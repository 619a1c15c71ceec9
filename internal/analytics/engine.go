// Package analytics computes summaries, trends, comparisons, reports and
// insights from stored samples. Grouping happens in Go so the same code
// serves both the sqlite and postgres backends.
package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"github.com/talkincode/dishwatch/internal/domain"
	"github.com/talkincode/dishwatch/internal/store"
)

var (
	ErrNoData        = errors.New("no samples in the requested period")
	ErrUnknownMetric = errors.New("unknown metric name")
	ErrBadPeriod     = errors.New("period must be minute, hour or day")
)

// comparisonWindowDays is the fixed lookback for hour/weekday comparisons.
const comparisonWindowDays = 30

type Engine struct {
	store *store.Store

	// now is swappable in tests
	now func() time.Time
}

func NewEngine(st *store.Store) *Engine {
	return &Engine{store: st, now: time.Now}
}

// MetricStats is an avg/min/max triple for one metric over a window.
type MetricStats struct {
	Avg float64 `json:"avg"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Summary is the headline view over a trailing window of days.
type Summary struct {
	PeriodDays     int                      `json:"period_days"`
	SampleCount    int                      `json:"sample_count"`
	FirstSample    *time.Time               `json:"first_sample"`
	LastSample     *time.Time               `json:"last_sample"`
	Latency        MetricStats              `json:"latency_ms"`
	Download       MetricStats              `json:"download_mbps"`
	Upload         MetricStats              `json:"upload_mbps"`
	AvgQuality     float64                  `json:"avg_quality_score"`
	AvgObstruction float64                  `json:"avg_obstruction_pct"`
	OutageCount    int64                    `json:"outage_count"`
	OutageSeconds  int64                    `json:"outage_seconds"`
	UptimePct      float64                  `json:"uptime_pct"`
	Latest         *domain.ConnectionMetric `json:"latest"`
}

// Summary computes the trailing-window summary. ErrNoData when the window
// holds no samples.
func (e *Engine) Summary(days int) (*Summary, error) {
	if days <= 0 {
		days = 1
	}
	since := e.now().AddDate(0, 0, -days)
	rows, err := e.store.MetricsSince(since)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	outageCount, outageSeconds, err := e.store.OutageStats(since)
	if err != nil {
		return nil, err
	}

	first := rows[0].Timestamp
	last := rows[len(rows)-1].Timestamp
	latest := rows[len(rows)-1]
	windowSeconds := float64(days) * 24 * 3600
	uptime := 100 * (1 - float64(outageSeconds)/windowSeconds)
	if uptime < 0 {
		uptime = 0
	}

	return &Summary{
		PeriodDays:     days,
		SampleCount:    len(rows),
		FirstSample:    &first,
		LastSample:     &last,
		Latency:        metricStats(rows, metricLatency),
		Download:       metricStats(rows, metricDownload),
		Upload:         metricStats(rows, metricUpload),
		AvgQuality:     average(rows, metricQuality),
		AvgObstruction: average(rows, metricObstruction),
		OutageCount:    outageCount,
		OutageSeconds:  outageSeconds,
		UptimePct:      uptime,
		Latest:         &latest,
	}, nil
}

// Metric names accepted by Trend and Comparison
const (
	metricLatency     = "latency"
	metricDownload    = "download"
	metricUpload      = "upload"
	metricQuality     = "quality"
	metricObstruction = "obstruction"
)

func metricValue(m *domain.ConnectionMetric, name string) (float64, error) {
	switch name {
	case metricLatency:
		return m.LatencyMs, nil
	case metricDownload:
		return m.DownloadMbps, nil
	case metricUpload:
		return m.UploadMbps, nil
	case metricQuality:
		return float64(m.QualityScore), nil
	case metricObstruction:
		return m.ObstructionPct, nil
	}
	return 0, errors.Wrapf(ErrUnknownMetric, "%q", name)
}

// TrendPoint is one time bucket of a metric trend, oldest first.
type TrendPoint struct {
	Bucket  string  `json:"bucket"`
	Avg     float64 `json:"avg"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Samples int     `json:"samples"`
}

// Trend groups a metric into minute, hour or day buckets over a trailing
// window of days. Unknown metrics and periods are rejected, never
// defaulted.
func (e *Engine) Trend(metric, period string, days int) ([]TrendPoint, error) {
	var layout string
	switch period {
	case "minute":
		layout = "2006-01-02 15:04"
	case "hour":
		layout = "2006-01-02 15:00"
	case "day":
		layout = domain.DateLayout
	default:
		return nil, errors.Wrapf(ErrBadPeriod, "%q", period)
	}
	if _, err := metricValue(&domain.ConnectionMetric{}, metric); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 1
	}

	rows, err := e.store.MetricsSince(e.now().AddDate(0, 0, -days))
	if err != nil {
		return nil, err
	}

	buckets := map[string][]float64{}
	for i := range rows {
		v, _ := metricValue(&rows[i], metric)
		key := rows[i].Timestamp.Format(layout)
		buckets[key] = append(buckets[key], v)
	}

	out := make([]TrendPoint, 0, len(buckets))
	for key, values := range buckets {
		avg, _ := stats.Mean(values)
		min, _ := stats.Min(values)
		max, _ := stats.Max(values)
		out = append(out, TrendPoint{Bucket: key, Avg: avg, Min: min, Max: max, Samples: len(values)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bucket < out[j].Bucket })
	return out, nil
}

// ComparisonPoint is one hour-of-day group of a compared metric.
type ComparisonPoint struct {
	Hour    int     `json:"hour"`
	Avg     float64 `json:"avg"`
	Samples int     `json:"samples"`
}

// WeekdayPoint is one day-of-week group; Day follows time.Weekday
// numbering with Sunday as 0.
type WeekdayPoint struct {
	Day     int     `json:"day"`
	Name    string  `json:"name"`
	Avg     float64 `json:"avg"`
	Samples int     `json:"samples"`
}

type Comparison struct {
	Metric    string            `json:"metric"`
	Days      int               `json:"days"`
	ByHour    []ComparisonPoint `json:"by_hour"`
	ByWeekday []WeekdayPoint    `json:"by_weekday"`
}

// Comparison profiles one metric by hour of day and day of week over the
// last 30 days.
func (e *Engine) Comparison(metric string) (*Comparison, error) {
	if _, err := metricValue(&domain.ConnectionMetric{}, metric); err != nil {
		return nil, err
	}
	rows, err := e.store.MetricsSince(e.now().AddDate(0, 0, -comparisonWindowDays))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	byHour := groupMetrics(rows, func(m *domain.ConnectionMetric) int { return m.Timestamp.Hour() })
	byDay := groupMetrics(rows, func(m *domain.ConnectionMetric) int { return int(m.Timestamp.Weekday()) })

	cmp := &Comparison{Metric: metric, Days: comparisonWindowDays}
	for hour := 0; hour < 24; hour++ {
		if g, ok := byHour[hour]; ok {
			cmp.ByHour = append(cmp.ByHour, ComparisonPoint{
				Hour:    hour,
				Avg:     g.avg(metric),
				Samples: len(g),
			})
		}
	}
	for day := 0; day < 7; day++ {
		if g, ok := byDay[day]; ok {
			cmp.ByWeekday = append(cmp.ByWeekday, WeekdayPoint{
				Day:     day,
				Name:    time.Weekday(day).String(),
				Avg:     g.avg(metric),
				Samples: len(g),
			})
		}
	}
	return cmp, nil
}

// HourStat is the per-hour-of-day aggregate used by the peak-usage
// analysis and the advanced view.
type HourStat struct {
	Hour        int     `json:"hour"`
	AvgQuality  float64 `json:"avg_quality"`
	AvgDownload float64 `json:"avg_download"`
	AvgUpload   float64 `json:"avg_upload"`
	AvgLatency  float64 `json:"avg_latency"`
	SampleCount int64   `json:"sample_count"`
}

// HourlyPatterns returns the hour-of-day profile over a trailing window of
// days, one entry per hour that has samples, ordered by hour.
func (e *Engine) HourlyPatterns(days int) ([]HourStat, error) {
	if days <= 0 {
		days = 7
	}
	rows, err := e.store.MetricsSince(e.now().AddDate(0, 0, -days))
	if err != nil {
		return nil, err
	}
	byHour := groupMetrics(rows, func(m *domain.ConnectionMetric) int { return m.Timestamp.Hour() })

	out := make([]HourStat, 0, len(byHour))
	for hour := 0; hour < 24; hour++ {
		if g, ok := byHour[hour]; ok {
			out = append(out, hourStat(hour, g))
		}
	}
	return out, nil
}

func hourStat(hour int, g metricGroup) HourStat {
	return HourStat{
		Hour:        hour,
		AvgQuality:  g.avg(metricQuality),
		AvgDownload: g.avg(metricDownload),
		AvgUpload:   g.avg(metricUpload),
		AvgLatency:  g.avg(metricLatency),
		SampleCount: int64(len(g)),
	}
}

// ---- grouping helpers ----

type metricGroup []domain.ConnectionMetric

func (g metricGroup) avg(metric string) float64 {
	values := make([]float64, len(g))
	for i := range g {
		values[i], _ = metricValue(&g[i], metric)
	}
	avg, _ := stats.Mean(values)
	return avg
}

func groupMetrics(rows []domain.ConnectionMetric, key func(*domain.ConnectionMetric) int) map[int]metricGroup {
	out := map[int]metricGroup{}
	for i := range rows {
		k := key(&rows[i])
		out[k] = append(out[k], rows[i])
	}
	return out
}

func metricStats(rows []domain.ConnectionMetric, metric string) MetricStats {
	values := make([]float64, len(rows))
	for i := range rows {
		values[i], _ = metricValue(&rows[i], metric)
	}
	avg, _ := stats.Mean(values)
	min, _ := stats.Min(values)
	max, _ := stats.Max(values)
	return MetricStats{Avg: avg, Min: min, Max: max}
}

func average(rows []domain.ConnectionMetric, metric string) float64 {
	return metricStats(rows, metric).Avg
}

// ---- advanced analytics ----

// PeriodAverages are the day/night split averages.
type PeriodAverages struct {
	AvgQuality  float64 `json:"avg_quality"`
	AvgDownload float64 `json:"avg_download"`
	AvgUpload   float64 `json:"avg_upload"`
	AvgLatency  float64 `json:"avg_latency"`
	SampleCount int64   `json:"sample_count"`
}

// QualityBucket is one slice of the quality distribution.
type QualityBucket struct {
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// SpeedConsistency rates how stable download throughput was.
type SpeedConsistency struct {
	AvgDownload float64 `json:"avg_download"`
	SpreadMbps  float64 `json:"spread_mbps"`
	Rating      string  `json:"rating"`
}

type Advanced struct {
	Days             int              `json:"days"`
	Daytime          PeriodAverages   `json:"daytime"`
	Nighttime        PeriodAverages   `json:"nighttime"`
	TopDownloadHours []HourStat       `json:"top_download_hours"`
	QualityBuckets   []QualityBucket  `json:"quality_distribution"`
	SpeedConsistency SpeedConsistency `json:"speed_consistency"`
}

// Advanced computes the day/night split (daytime is 06:00-18:59), the top
// three download hours, the quality distribution and a speed consistency
// rating over a trailing window of days.
func (e *Engine) Advanced(days int) (*Advanced, error) {
	if days <= 0 {
		days = 7
	}
	rows, err := e.store.MetricsSince(e.now().AddDate(0, 0, -days))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	var day, night metricGroup
	for i := range rows {
		h := rows[i].Timestamp.Hour()
		if h >= 6 && h < 19 {
			day = append(day, rows[i])
		} else {
			night = append(night, rows[i])
		}
	}

	byHour := groupMetrics(rows, func(m *domain.ConnectionMetric) int { return m.Timestamp.Hour() })
	var hourStats []HourStat
	for hour, g := range byHour {
		hourStats = append(hourStats, hourStat(hour, g))
	}
	sort.Slice(hourStats, func(i, j int) bool { return hourStats[i].AvgDownload > hourStats[j].AvgDownload })
	top := hourStats
	if len(top) > 3 {
		top = top[:3]
	}

	return &Advanced{
		Days:             days,
		Daytime:          periodAverages(day),
		Nighttime:        periodAverages(night),
		TopDownloadHours: top,
		QualityBuckets:   qualityDistribution(rows),
		SpeedConsistency: speedConsistency(rows),
	}, nil
}

func periodAverages(g metricGroup) PeriodAverages {
	if len(g) == 0 {
		return PeriodAverages{}
	}
	return PeriodAverages{
		AvgQuality:  g.avg(metricQuality),
		AvgDownload: g.avg(metricDownload),
		AvgUpload:   g.avg(metricUpload),
		AvgLatency:  g.avg(metricLatency),
		SampleCount: int64(len(g)),
	}
}

func qualityDistribution(rows []domain.ConnectionMetric) []QualityBucket {
	buckets := []struct {
		label string
		min   int
	}{
		{"excellent", 90},
		{"good", 80},
		{"fair", 70},
		{"poor", 50},
		{"bad", 0},
	}
	counts := make([]int, len(buckets))
	for i := range rows {
		for b := range buckets {
			if rows[i].QualityScore >= buckets[b].min {
				counts[b]++
				break
			}
		}
	}
	total := float64(len(rows))
	out := make([]QualityBucket, len(buckets))
	for b := range buckets {
		out[b] = QualityBucket{
			Label:   buckets[b].label,
			Count:   counts[b],
			Percent: 100 * float64(counts[b]) / total,
		}
	}
	return out
}

func speedConsistency(rows []domain.ConnectionMetric) SpeedConsistency {
	values := make([]float64, len(rows))
	for i := range rows {
		values[i] = rows[i].DownloadMbps
	}
	avg, _ := stats.Mean(values)
	min, _ := stats.Min(values)
	max, _ := stats.Max(values)
	spread := max - min

	rating := "inconsistent"
	switch {
	case spread < 10:
		rating = "very_consistent"
	case spread < 25:
		rating = "consistent"
	case spread < 50:
		rating = "moderate"
	}
	return SpeedConsistency{AvgDownload: avg, SpreadMbps: spread, Rating: rating}
}

// ---- insights ----

type Insight struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Severity       string `json:"severity"`
	Recommendation string `json:"recommendation"`
}

// Insights derives advisory findings over a trailing window of days:
// recurring poor hours (worst three), obstruction growth and outage
// frequency.
func (e *Engine) Insights(days int) ([]Insight, error) {
	if days <= 0 {
		days = 7
	}

	var insights []Insight

	patterns, err := e.HourlyPatterns(days)
	if err != nil {
		return nil, err
	}
	var poor []HourStat
	for _, p := range patterns {
		if p.AvgQuality < 60 && p.SampleCount > 5 {
			poor = append(poor, p)
		}
	}
	sort.Slice(poor, func(i, j int) bool { return poor[i].AvgQuality < poor[j].AvgQuality })
	if len(poor) > 3 {
		poor = poor[:3]
	}
	for _, p := range poor {
		insights = append(insights, Insight{
			Title:          "Recurring poor performance",
			Description:    fmt.Sprintf("Average quality drops to %.0f%% around %02d:00", p.AvgQuality, p.Hour),
			Severity:       "warning",
			Recommendation: "Check for network congestion or local interference during this hour",
		})
	}

	since := e.now().AddDate(0, 0, -days)
	rows, err := e.store.MetricsSince(since)
	if err != nil {
		return nil, err
	}
	var obstructed metricGroup
	for i := range rows {
		if rows[i].ObstructionPct > 0 {
			obstructed = append(obstructed, rows[i])
		}
	}
	if len(obstructed) > 0 {
		if avgObs := obstructed.avg(metricObstruction); avgObs > 1 {
			insights = append(insights, Insight{
				Title:          "Obstruction detected",
				Description:    fmt.Sprintf("Average obstruction is %.1f%% across affected samples", avgObs),
				Severity:       "warning",
				Recommendation: "Check the dish for debris, snow or growing foliage",
			})
		}
	}

	outageCount, _, err := e.store.OutageStats(since)
	if err != nil {
		return nil, err
	}
	if outageCount > 5 {
		insights = append(insights, Insight{
			Title:          "Frequent outages",
			Description:    fmt.Sprintf("%d outages in the last %d days", outageCount, days),
			Severity:       "warning",
			Recommendation: "Consider repositioning the dish or contacting support",
		})
	}

	return insights, nil
}
