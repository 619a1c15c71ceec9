package domain

import "time"

// Performance event types written by the collector on threshold crossings
const (
	EventPoorPerformance = "poor_performance"
	EventHighSpeed       = "high_speed"
	EventSpeedTest       = "speed_test"
	EventOutage          = "outage"
)

// PerformanceEvent is an append-only diagnostic event with a JSON payload.
type PerformanceEvent struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
	EventType string    `gorm:"index" json:"event_type"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName Specify table name
func (PerformanceEvent) TableName() string {
	return "performance_event"
}
