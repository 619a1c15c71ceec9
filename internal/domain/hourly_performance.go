package domain

import "time"

// HourlyPerformance is a per-hour performance summary written by the
// collector's periodic peak-usage analysis.
type HourlyPerformance struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Date        string    `gorm:"index:idx_hourly_perf_date_hour,unique;size:10" json:"date"`
	HourOfDay   int       `gorm:"index:idx_hourly_perf_date_hour,unique" json:"hour_of_day"`
	AvgDownload float64   `json:"avg_download"`
	AvgUpload   float64   `json:"avg_upload"`
	AvgLatency  float64   `json:"avg_latency"`
	AvgQuality  float64   `json:"avg_quality"`
	SampleCount int64     `json:"sample_count"`
	WeatherNote string    `json:"weather_note"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName Specify table name
func (HourlyPerformance) TableName() string {
	return "hourly_performance"
}
