package domain

import "time"

// Outage severity, classified from duration on recovery
const (
	SeverityMinor    = "minor"    // < 60s
	SeverityMajor    = "major"    // 60s - 1799s
	SeverityCritical = "critical" // >= 1800s
)

// OutageRecord is one contiguous connectivity loss. EndTime and
// DurationSeconds stay null while the outage is open; at most one record
// may be open at any instant.
type OutageRecord struct {
	ID                int64      `json:"id,string"`
	StartTime         time.Time  `gorm:"index" json:"start_time"`
	EndTime           *time.Time `json:"end_time"`
	DurationSeconds   *int64     `json:"duration_seconds"`
	Reason            string     `json:"reason"`
	Severity          string     `json:"severity"`
	WeatherConditions string     `json:"weather_conditions"`
	CreatedAt         time.Time  `json:"created_at"`
}

// TableName Specify table name
func (OutageRecord) TableName() string {
	return "outage_record"
}

// Open reports whether the outage has not been finalized yet.
func (o *OutageRecord) Open() bool {
	return o.EndTime == nil
}
