// Package store owns all durable entities: the append-only metric and
// event logs, the outage log, rollup tables and speed test records.
// Timestamps are stored and compared at second granularity in the process
// local timezone.
package store

import (
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/talkincode/dishwatch/internal/domain"
	"github.com/talkincode/dishwatch/pkg/common"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrOutageOpen is returned when opening an outage while one is already open.
var ErrOutageOpen = errors.New("an outage record is already open")

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// ---- metrics ----

func (s *Store) InsertMetric(m *domain.ConnectionMetric) error {
	m.Timestamp = m.Timestamp.Truncate(time.Second)
	if err := s.db.Create(m).Error; err != nil {
		return errors.Wrap(err, "insert metric")
	}
	return nil
}

// MetricsSince returns samples at or after since, oldest first.
func (s *Store) MetricsSince(since time.Time) ([]domain.ConnectionMetric, error) {
	var rows []domain.ConnectionMetric
	err := s.db.Where("timestamp >= ?", since).
		Order("timestamp ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "query metrics")
	}
	return rows, nil
}

// MetricsRange returns up to limit samples in [start, end], newest first.
func (s *Store) MetricsRange(start, end time.Time, limit int) ([]domain.ConnectionMetric, error) {
	if limit <= 0 {
		limit = 1000
	}
	query := s.db.Model(&domain.ConnectionMetric{})
	if !start.IsZero() {
		query = query.Where("timestamp >= ?", start)
	}
	if !end.IsZero() {
		query = query.Where("timestamp <= ?", end)
	}
	var rows []domain.ConnectionMetric
	err := query.Order("timestamp DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "query metrics range")
	}
	return rows, nil
}

// MetricsBetween returns all samples in [start, end), oldest first. Used
// by report and rollup computations that need a full calendar window.
func (s *Store) MetricsBetween(start, end time.Time) ([]domain.ConnectionMetric, error) {
	var rows []domain.ConnectionMetric
	err := s.db.Where("timestamp >= ? AND timestamp < ?", start, end).
		Order("timestamp ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "query metrics between")
	}
	return rows, nil
}

func (s *Store) CountMetricsSince(since time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&domain.ConnectionMetric{}).
		Where("timestamp >= ?", since).
		Count(&count).Error
	return count, errors.Wrap(err, "count metrics")
}

func (s *Store) LatestMetric() (*domain.ConnectionMetric, error) {
	var m domain.ConnectionMetric
	err := s.db.Order("timestamp DESC").First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "latest metric")
	}
	return &m, nil
}

// ---- outages ----

// OpenOutage inserts a new open outage record. The single-open-record
// invariant is enforced here, not by callers.
func (s *Store) OpenOutage(start time.Time, weatherConditions string) (*domain.OutageRecord, error) {
	open, err := s.OpenedOutage()
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, ErrOutageOpen
	}

	rec := &domain.OutageRecord{
		ID:                common.UUIDint64(),
		StartTime:         start.Truncate(time.Second),
		WeatherConditions: weatherConditions,
	}
	if err := s.db.Create(rec).Error; err != nil {
		return nil, errors.Wrap(err, "open outage")
	}
	return rec, nil
}

// OpenedOutage returns the currently open outage record, or nil.
func (s *Store) OpenedOutage() (*domain.OutageRecord, error) {
	var rec domain.OutageRecord
	err := s.db.Where("end_time IS NULL").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query open outage")
	}
	return &rec, nil
}

// CloseOutage finalizes an open outage with its end time, derived duration,
// severity and reason.
func (s *Store) CloseOutage(id int64, end time.Time, severity, reason string) error {
	var rec domain.OutageRecord
	if err := s.db.First(&rec, id).Error; err != nil {
		return errors.Wrap(err, "close outage: load")
	}
	if !rec.Open() {
		return errors.Errorf("outage %d already closed", id)
	}

	end = end.Truncate(time.Second)
	duration := int64(end.Sub(rec.StartTime).Seconds())
	err := s.db.Model(&domain.OutageRecord{}).Where("id = ?", id).Updates(map[string]interface{}{
		"end_time":         end,
		"duration_seconds": duration,
		"severity":         severity,
		"reason":           reason,
	}).Error
	return errors.Wrap(err, "close outage")
}

func (s *Store) OutagesSince(since time.Time) ([]domain.OutageRecord, error) {
	var rows []domain.OutageRecord
	err := s.db.Where("start_time >= ?", since).
		Order("start_time DESC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "query outages")
	}
	return rows, nil
}

// OutageStats returns the count and summed closed duration of outages that
// started at or after since.
func (s *Store) OutageStats(since time.Time) (count int64, totalSeconds int64, err error) {
	var result struct {
		Count        int64
		TotalSeconds int64
	}
	err = s.db.Model(&domain.OutageRecord{}).
		Select("COUNT(*) AS count, COALESCE(SUM(duration_seconds), 0) AS total_seconds").
		Where("start_time >= ?", since).
		Scan(&result).Error
	if err != nil {
		return 0, 0, errors.Wrap(err, "outage stats")
	}
	return result.Count, result.TotalSeconds, nil
}

// OutageStatsBetween is OutageStats bounded to [start, end).
func (s *Store) OutageStatsBetween(start, end time.Time) (count int64, totalSeconds int64, err error) {
	var result struct {
		Count        int64
		TotalSeconds int64
	}
	err = s.db.Model(&domain.OutageRecord{}).
		Select("COUNT(*) AS count, COALESCE(SUM(duration_seconds), 0) AS total_seconds").
		Where("start_time >= ? AND start_time < ?", start, end).
		Scan(&result).Error
	if err != nil {
		return 0, 0, errors.Wrap(err, "outage stats between")
	}
	return result.Count, result.TotalSeconds, nil
}

// ---- performance events ----

// RecordEvent appends a performance event; details is marshalled to JSON.
func (s *Store) RecordEvent(eventType string, details interface{}) error {
	var payload string
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return errors.Wrap(err, "encode event details")
		}
		payload = string(b)
	}
	err := s.db.Create(&domain.PerformanceEvent{
		Timestamp: time.Now().Truncate(time.Second),
		EventType: eventType,
		Details:   payload,
	}).Error
	return errors.Wrap(err, "record event")
}

func (s *Store) EventsSince(since time.Time, limit int) ([]domain.PerformanceEvent, error) {
	if limit <= 0 {
		limit = 200
	}
	var rows []domain.PerformanceEvent
	err := s.db.Where("timestamp >= ?", since).
		Order("timestamp DESC").Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "query events")
	}
	return rows, nil
}

// ---- daily stats ----

// UpsertDailyStat replaces the rollup row for its date. Recomputing from
// the same samples yields an identical row.
func (s *Store) UpsertDailyStat(stat *domain.DailyStat) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"avg_latency_ms", "max_latency_ms", "min_latency_ms",
			"avg_download_mbps", "max_download_mbps", "min_download_mbps",
			"avg_upload_mbps", "max_upload_mbps", "min_upload_mbps",
			"avg_quality_score", "avg_obstruction_pct",
			"total_outage_minutes", "outage_count", "data_points", "updated_at",
		}),
	}).Create(stat).Error
	return errors.Wrap(err, "upsert daily stat")
}

// DailyStatsSince returns rollup rows for dates >= fromDate, newest first.
func (s *Store) DailyStatsSince(fromDate string) ([]domain.DailyStat, error) {
	var rows []domain.DailyStat
	err := s.db.Where("date >= ?", fromDate).
		Order("date DESC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "query daily stats")
	}
	return rows, nil
}

// ---- hourly performance ----

func (s *Store) UpsertHourlyPerformance(hp *domain.HourlyPerformance) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}, {Name: "hour_of_day"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"avg_download", "avg_upload", "avg_latency", "avg_quality",
			"sample_count", "weather_note", "updated_at",
		}),
	}).Create(hp).Error
	return errors.Wrap(err, "upsert hourly performance")
}

// ---- speed tests ----

func (s *Store) InsertSpeedTest(r *domain.SpeedTestResult) error {
	if r.ID == 0 {
		r.ID = common.UUIDint64()
	}
	r.Timestamp = r.Timestamp.Truncate(time.Second)
	return errors.Wrap(s.db.Create(r).Error, "insert speed test")
}

func (s *Store) UpdateSpeedTest(r *domain.SpeedTestResult) error {
	return errors.Wrap(s.db.Save(r).Error, "update speed test")
}

func (s *Store) SpeedTestsSince(since time.Time, testType string, limit int) ([]domain.SpeedTestResult, error) {
	if limit <= 0 {
		limit = 100
	}
	query := s.db.Where("timestamp >= ?", since)
	if testType != "" {
		query = query.Where("test_type = ?", testType)
	}
	var rows []domain.SpeedTestResult
	err := query.Order("timestamp DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "query speed tests")
	}
	return rows, nil
}

// AllSpeedTestsSince returns every result in the window, oldest first,
// for aggregation.
func (s *Store) AllSpeedTestsSince(since time.Time) ([]domain.SpeedTestResult, error) {
	var rows []domain.SpeedTestResult
	err := s.db.Where("timestamp >= ?", since).
		Order("timestamp ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "query speed tests")
	}
	return rows, nil
}

// ---- speed test schedules ----

func (s *Store) CreateSchedule(sched *domain.SpeedTestSchedule) error {
	if sched.ID == 0 {
		sched.ID = common.UUIDint64()
	}
	return errors.Wrap(s.db.Create(sched).Error, "create schedule")
}

func (s *Store) Schedules(enabledOnly bool) ([]domain.SpeedTestSchedule, error) {
	query := s.db.Model(&domain.SpeedTestSchedule{})
	if enabledOnly {
		query = query.Where("enabled = ?", true)
	}
	var rows []domain.SpeedTestSchedule
	err := query.Order("name ASC").Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "query schedules")
	}
	return rows, nil
}

// UpdateScheduleRun stamps last/next run; lastRun may be nil when only the
// next-run time is being initialized.
func (s *Store) UpdateScheduleRun(id int64, lastRun, nextRun *time.Time) error {
	updates := map[string]interface{}{
		"next_run":   nextRun,
		"updated_at": time.Now(),
	}
	if lastRun != nil {
		updates["last_run"] = lastRun
		updates["run_count"] = gorm.Expr("run_count + 1")
	}
	err := s.db.Model(&domain.SpeedTestSchedule{}).Where("id = ?", id).Updates(updates).Error
	return errors.Wrap(err, "update schedule run")
}

func (s *Store) DeleteSchedule(id int64) error {
	return errors.Wrap(s.db.Delete(&domain.SpeedTestSchedule{}, id).Error, "delete schedule")
}

// ---- weather ----

func (s *Store) InsertWeather(w *domain.WeatherSample) error {
	w.Timestamp = w.Timestamp.Truncate(time.Second)
	return errors.Wrap(s.db.Create(w).Error, "insert weather")
}

func (s *Store) LatestWeather() (*domain.WeatherSample, error) {
	var w domain.WeatherSample
	err := s.db.Order("timestamp DESC").First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "latest weather")
	}
	return &w, nil
}

// ---- retention ----

// Cleanup deletes metrics and outages older than cutoff; rollup rows are
// kept as frozen history.
func (s *Store) Cleanup(cutoff time.Time) (deletedMetrics, deletedOutages int64, err error) {
	res := s.db.Where("timestamp < ?", cutoff).Delete(&domain.ConnectionMetric{})
	if res.Error != nil {
		return 0, 0, errors.Wrap(res.Error, "cleanup metrics")
	}
	deletedMetrics = res.RowsAffected

	res = s.db.Where("start_time < ?", cutoff).Delete(&domain.OutageRecord{})
	if res.Error != nil {
		return deletedMetrics, 0, errors.Wrap(res.Error, "cleanup outages")
	}
	deletedOutages = res.RowsAffected
	return deletedMetrics, deletedOutages, nil
}
