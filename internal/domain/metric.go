package domain

import "time"

// Speed resolution markers recorded with each sample (see collector speed policy)
const (
	SpeedSourceActive  = "active_usage"
	SpeedSourceRecent  = "recent_activity"
	SpeedSourceInstant = "instantaneous"
	SpeedSourceNone    = "no_data"
)

// ConnectionMetric is one immutable telemetry observation. QualityScore is
// derived at insert time and never recomputed.
type ConnectionMetric struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Timestamp      time.Time `gorm:"index" json:"timestamp"`
	LatencyMs      float64   `json:"latency_ms"`
	DownloadMbps   float64   `json:"download_mbps"`
	UploadMbps     float64   `json:"upload_mbps"`
	ObstructionPct float64   `json:"obstruction_pct"`
	QualityScore   int       `json:"quality_score"`
	SnrAboveNoise  bool      `json:"snr_above_noise"`
	UptimeSeconds  int64     `json:"uptime_seconds"`
	GpsValid       bool      `json:"gps_valid"`
	GpsSatellites  int       `json:"gps_satellites"`
	EthSpeedMbps   int       `json:"eth_speed_mbps"`
	SpeedSource    string    `json:"speed_source"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName Specify table name
func (ConnectionMetric) TableName() string {
	return "connection_metric"
}
