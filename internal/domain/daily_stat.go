package domain

import "time"

// DateLayout is the calendar-date key format used by rollup rows.
const DateLayout = "2006-01-02"

// DailyStat is the per-calendar-date rollup row. Rows inside the trailing
// refresh window are recomputed idempotently; older rows are frozen history.
type DailyStat struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Date               string    `gorm:"uniqueIndex;size:10" json:"date"`
	AvgLatencyMs       float64   `json:"avg_latency_ms"`
	MaxLatencyMs       float64   `json:"max_latency_ms"`
	MinLatencyMs       float64   `json:"min_latency_ms"`
	AvgDownloadMbps    float64   `json:"avg_download_mbps"`
	MaxDownloadMbps    float64   `json:"max_download_mbps"`
	MinDownloadMbps    float64   `json:"min_download_mbps"`
	AvgUploadMbps      float64   `json:"avg_upload_mbps"`
	MaxUploadMbps      float64   `json:"max_upload_mbps"`
	MinUploadMbps      float64   `json:"min_upload_mbps"`
	AvgQualityScore    float64   `json:"avg_quality_score"`
	AvgObstructionPct  float64   `json:"avg_obstruction_pct"`
	TotalOutageMinutes int64     `json:"total_outage_minutes"`
	OutageCount        int64     `json:"outage_count"`
	DataPoints         int64     `json:"data_points"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// TableName Specify table name
func (DailyStat) TableName() string {
	return "daily_stat"
}
