package domain

import "time"

// Speed test lifecycle states
const (
	SpeedTestRunning   = "running"
	SpeedTestCompleted = "completed"
	SpeedTestFailed    = "failed"
	SpeedTestCancelled = "cancelled"
)

// Speed test trigger types
const (
	SpeedTestManual    = "manual"
	SpeedTestScheduled = "scheduled"
	SpeedTestAutomated = "automated"
)

// SpeedTestResult is created in running state when a test starts and
// finalized once; immutable afterwards.
type SpeedTestResult struct {
	ID              int64     `json:"id,string"`
	Timestamp       time.Time `gorm:"index" json:"timestamp"`
	TestType        string    `gorm:"index" json:"test_type"`
	ServerLocation  string    `json:"server_location"`
	PingMs          float64   `json:"ping_ms"`
	DownloadMbps    float64   `json:"download_mbps"`
	UploadMbps      float64   `json:"upload_mbps"`
	JitterMs        float64   `json:"jitter_ms"`
	PacketLossPct   float64   `json:"packet_loss_pct"`
	DurationSeconds int64     `json:"duration_seconds"`
	Status          string    `json:"status"`
	ErrorMessage    string    `json:"error_message"`
	Method          string    `json:"method"`
	RawData         string    `json:"raw_data"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName Specify table name
func (SpeedTestResult) TableName() string {
	return "speed_test_result"
}

// SpeedTestSchedule is a cron-style recurring test definition. The
// expression is validated at creation time, never at run time.
type SpeedTestSchedule struct {
	ID        int64      `json:"id,string" form:"id"`
	Name      string     `json:"name" form:"name"`
	CronExpr  string     `json:"cron_expr" form:"cron_expr"`
	Enabled   bool       `gorm:"index" json:"enabled" form:"enabled"`
	LastRun   *time.Time `json:"last_run"`
	NextRun   *time.Time `gorm:"index" json:"next_run"`
	RunCount  int64      `json:"run_count"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName Specify table name
func (SpeedTestSchedule) TableName() string {
	return "speed_test_schedule"
}
