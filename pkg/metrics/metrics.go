// Package metrics keeps small process gauges in an embedded time-series
// store under the workdir, so the health endpoint and ops tooling can read
// them without touching the relational database.
package metrics

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nakabonne/tstorage"
)

var (
	mu      sync.RWMutex
	storage tstorage.Storage
)

// InitMetrics opens the gauge storage under workdir/metrics.
func InitMetrics(workdir string) error {
	dataPath := filepath.Join(workdir, "metrics")
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return err
	}

	s, err := tstorage.NewStorage(
		tstorage.WithDataPath(dataPath),
		tstorage.WithTimestampPrecision(tstorage.Seconds),
		tstorage.WithRetention(7*24*time.Hour),
	)
	if err != nil {
		return err
	}

	mu.Lock()
	storage = s
	mu.Unlock()
	return nil
}

// SetGauge records the current value of a named gauge.
func SetGauge(name string, value int64) {
	mu.RLock()
	s := storage
	mu.RUnlock()
	if s == nil {
		return
	}
	_ = s.InsertRows([]tstorage.Row{
		{
			Metric:    name,
			DataPoint: tstorage.DataPoint{Timestamp: time.Now().Unix(), Value: float64(value)},
		},
	})
}

// Gauge returns the most recent value of a named gauge, or 0 when unset.
func Gauge(name string) int64 {
	mu.RLock()
	s := storage
	mu.RUnlock()
	if s == nil {
		return 0
	}
	end := time.Now().Unix() + 1
	start := end - int64(24*time.Hour/time.Second)
	points, err := s.Select(name, nil, start, end)
	if err != nil || len(points) == 0 {
		return 0
	}
	return int64(points[len(points)-1].Value)
}

// Close flushes and closes the gauge storage.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if storage == nil {
		return nil
	}
	err := storage.Close()
	storage = nil
	return err
}
