package analytics

import (
	"fmt"
	"time"

	"github.com/talkincode/dishwatch/internal/domain"
)

// Report is a graded performance summary for a calendar window.
type Report struct {
	Period         string      `json:"period"`
	Label          string      `json:"label"`
	Start          time.Time   `json:"start"`
	End            time.Time   `json:"end"`
	DataPoints     int         `json:"data_points"`
	DayCount       int         `json:"day_count,omitempty"`
	Latency        MetricStats `json:"latency_ms"`
	Download       MetricStats `json:"download_mbps"`
	Upload         MetricStats `json:"upload_mbps"`
	AvgQuality     float64     `json:"avg_quality_score"`
	AvgObstruction float64     `json:"avg_obstruction_pct"`
	OutageCount    int64       `json:"outage_count"`
	OutageMinutes  float64     `json:"outage_minutes"`
	UptimePct      float64     `json:"uptime_pct"`
	Grade          string      `json:"grade"`
}

// ReportRow is the flat CSV export shape for a report.
type ReportRow struct {
	Label         string  `csv:"label"`
	Period        string  `csv:"period"`
	DataPoints    int     `csv:"data_points"`
	AvgLatencyMs  float64 `csv:"avg_latency_ms"`
	AvgDownload   float64 `csv:"avg_download_mbps"`
	AvgUpload     float64 `csv:"avg_upload_mbps"`
	AvgQuality    float64 `csv:"avg_quality_score"`
	OutageCount   int64   `csv:"outage_count"`
	OutageMinutes float64 `csv:"outage_minutes"`
	UptimePct     float64 `csv:"uptime_pct"`
	Grade         string  `csv:"grade"`
}

// Row flattens a report for CSV export.
func (r *Report) Row() ReportRow {
	return ReportRow{
		Label:         r.Label,
		Period:        r.Period,
		DataPoints:    r.DataPoints,
		AvgLatencyMs:  r.Latency.Avg,
		AvgDownload:   r.Download.Avg,
		AvgUpload:     r.Upload.Avg,
		AvgQuality:    r.AvgQuality,
		OutageCount:   r.OutageCount,
		OutageMinutes: r.OutageMinutes,
		UptimePct:     r.UptimePct,
		Grade:         r.Grade,
	}
}

// DailyReport covers one calendar date, computed from raw samples.
func (e *Engine) DailyReport(date time.Time) (*Report, error) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	end := start.AddDate(0, 0, 1)

	rows, err := e.store.MetricsBetween(start, end)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}
	outageCount, outageSeconds, err := e.store.OutageStatsBetween(start, end)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		Period:         "daily",
		Label:          start.Format(domain.DateLayout),
		Start:          start,
		End:            end,
		DataPoints:     len(rows),
		Latency:        metricStats(rows, metricLatency),
		Download:       metricStats(rows, metricDownload),
		Upload:         metricStats(rows, metricUpload),
		AvgQuality:     average(rows, metricQuality),
		AvgObstruction: average(rows, metricObstruction),
		OutageCount:    outageCount,
		OutageMinutes:  float64(outageSeconds) / 60,
	}
	rep.UptimePct = uptimePct(rep.OutageMinutes, end.Sub(start))
	rep.Grade = grade(rep.AvgQuality, rep.Latency.Avg, rep.Download.Avg)
	return rep, nil
}

// WeeklyReport covers the ISO week containing date, Monday through Sunday.
// Week and month reports aggregate per-day figures so that each day weighs
// the same regardless of how many samples it holds.
func (e *Engine) WeeklyReport(date time.Time) (*Report, error) {
	offset := (int(date.Weekday()) + 6) % 7
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location()).
		AddDate(0, 0, -offset)
	end := start.AddDate(0, 0, 7)
	year, week := start.ISOWeek()
	return e.aggregateDays("weekly", fmt.Sprintf("%d-W%02d", year, week), start, end)
}

// MonthlyReport covers the calendar month containing date.
func (e *Engine) MonthlyReport(date time.Time) (*Report, error) {
	start := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, date.Location())
	end := start.AddDate(0, 1, 0)
	return e.aggregateDays("monthly", start.Format("2006-01"), start, end)
}

func (e *Engine) aggregateDays(period, label string, start, end time.Time) (*Report, error) {
	var days []domain.DailyStat
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		stat, err := e.dayStat(d)
		if err != nil {
			return nil, err
		}
		if stat != nil {
			days = append(days, *stat)
		}
	}
	if len(days) == 0 {
		return nil, ErrNoData
	}

	rep := &Report{
		Period:   period,
		Label:    label,
		Start:    start,
		End:      end,
		DayCount: len(days),
		Latency:  MetricStats{Min: days[0].MinLatencyMs, Max: days[0].MaxLatencyMs},
		Download: MetricStats{Min: days[0].MinDownloadMbps, Max: days[0].MaxDownloadMbps},
		Upload:   MetricStats{Min: days[0].MinUploadMbps, Max: days[0].MaxUploadMbps},
	}
	var outageMinutes int64
	for _, d := range days {
		rep.DataPoints += int(d.DataPoints)
		rep.Latency.Avg += d.AvgLatencyMs
		rep.Download.Avg += d.AvgDownloadMbps
		rep.Upload.Avg += d.AvgUploadMbps
		rep.AvgQuality += d.AvgQualityScore
		rep.AvgObstruction += d.AvgObstructionPct
		rep.OutageCount += d.OutageCount
		outageMinutes += d.TotalOutageMinutes

		rep.Latency.Min = minf(rep.Latency.Min, d.MinLatencyMs)
		rep.Latency.Max = maxf(rep.Latency.Max, d.MaxLatencyMs)
		rep.Download.Min = minf(rep.Download.Min, d.MinDownloadMbps)
		rep.Download.Max = maxf(rep.Download.Max, d.MaxDownloadMbps)
		rep.Upload.Min = minf(rep.Upload.Min, d.MinUploadMbps)
		rep.Upload.Max = maxf(rep.Upload.Max, d.MaxUploadMbps)
	}
	n := float64(len(days))
	rep.Latency.Avg /= n
	rep.Download.Avg /= n
	rep.Upload.Avg /= n
	rep.AvgQuality /= n
	rep.AvgObstruction /= n
	rep.OutageMinutes = float64(outageMinutes)
	rep.UptimePct = uptimePct(rep.OutageMinutes, end.Sub(start))
	rep.Grade = grade(rep.AvgQuality, rep.Latency.Avg, rep.Download.Avg)
	return rep, nil
}

func uptimePct(outageMinutes float64, window time.Duration) float64 {
	uptime := 100 * (1 - outageMinutes*60/window.Seconds())
	if uptime < 0 {
		return 0
	}
	return uptime
}

func minf(a, b float64) float64 {
	if b < a {
		return b
	}
	return a
}

func maxf(a, b float64) float64 {
	if b > a {
		return b
	}
	return a
}

// grade assigns the letter grade for a window. Each tier requires quality,
// latency and download to all clear its bar.
func grade(avgQuality, avgLatencyMs, avgDownloadMbps float64) string {
	switch {
	case avgQuality >= 90 && avgLatencyMs < 30 && avgDownloadMbps > 50:
		return "A"
	case avgQuality >= 80 && avgLatencyMs < 50 && avgDownloadMbps > 25:
		return "B"
	case avgQuality >= 70 && avgLatencyMs < 75 && avgDownloadMbps > 15:
		return "C"
	case avgQuality >= 60 && avgLatencyMs < 100 && avgDownloadMbps > 10:
		return "D"
	default:
		return "F"
	}
}
