package app

import (
	"time"

	"go.uber.org/zap"

	"github.com/talkincode/dishwatch/internal/collector"
	"github.com/talkincode/dishwatch/pkg/metrics"
)

// initEventSubscribers wires the bus consumers: outage bookkeeping gauges
// and event logging. Subscribers must stay cheap, the bus delivers
// synchronously from the collector loop.
func (a *Application) initEventSubscribers() {
	_ = a.bus.Subscribe(collector.TopicOutageOpened, func(id int64, start time.Time) {
		metrics.SetGauge("connection_state", 0)
		zap.S().Warnf("outage %d opened at %s", id, start.Format(time.RFC3339))
	})

	_ = a.bus.Subscribe(collector.TopicOutageClosed, func(id int64, severity string, duration time.Duration) {
		metrics.SetGauge("connection_state", 1)
		zap.S().Infof("outage %d closed: %s, lasted %s", id, severity, duration)
	})

	_ = a.bus.Subscribe(collector.TopicPerformanceEvent, func(eventType string, details map[string]interface{}) {
		zap.S().Debugf("performance event: %s", eventType)
	})
}
