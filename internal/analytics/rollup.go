package analytics

import (
	"time"

	"go.uber.org/zap"

	"github.com/talkincode/dishwatch/internal/domain"
)

// rollupWindowDays is how many trailing dates each rollup pass recomputes,
// so late-arriving outage closures still land in the right row.
const rollupWindowDays = 7

// RecomputeDailyStats rebuilds the daily rollup rows for the trailing
// window including today. Dates without samples are skipped; recomputing
// an existing row from the same samples leaves it unchanged.
func (e *Engine) RecomputeDailyStats() error {
	now := e.now()
	for i := 0; i < rollupWindowDays; i++ {
		stat, err := e.dayStat(now.AddDate(0, 0, -i))
		if err != nil {
			return err
		}
		if stat == nil {
			continue
		}
		if err := e.store.UpsertDailyStat(stat); err != nil {
			return err
		}
		zap.S().Debugf("daily stats updated for %s (%d points)", stat.Date, stat.DataPoints)
	}
	return nil
}

// dayStat aggregates one calendar date from raw samples. Returns nil when
// the date has no samples.
func (e *Engine) dayStat(day time.Time) (*domain.DailyStat, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	rows, err := e.store.MetricsBetween(start, end)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	outageCount, outageSeconds, err := e.store.OutageStatsBetween(start, end)
	if err != nil {
		return nil, err
	}

	latency := metricStats(rows, metricLatency)
	download := metricStats(rows, metricDownload)
	upload := metricStats(rows, metricUpload)

	return &domain.DailyStat{
		Date:               start.Format(domain.DateLayout),
		AvgLatencyMs:       latency.Avg,
		MaxLatencyMs:       latency.Max,
		MinLatencyMs:       latency.Min,
		AvgDownloadMbps:    download.Avg,
		MaxDownloadMbps:    download.Max,
		MinDownloadMbps:    download.Min,
		AvgUploadMbps:      upload.Avg,
		MaxUploadMbps:      upload.Max,
		MinUploadMbps:      upload.Min,
		AvgQualityScore:    average(rows, metricQuality),
		AvgObstructionPct:  average(rows, metricObstruction),
		TotalOutageMinutes: outageSeconds / 60,
		OutageCount:        outageCount,
		DataPoints:         int64(len(rows)),
	}, nil
}
