// Package telemetry defines the boundary to the dish telemetry source.
// Optional vendor fields are resolved to neutral defaults exactly once,
// inside the adapters of this package; consumers always see a fully
// populated snapshot.
package telemetry

import "context"

// DishStatus is the normalized current-status snapshot. A field the vendor
// client did not report carries its zero value (0, false, "").
type DishStatus struct {
	LatencyMs       float64 `json:"latency_ms"`
	DownlinkBps     float64 `json:"downlink_throughput_bps"`
	UplinkBps       float64 `json:"uplink_throughput_bps"`
	ObstructionFrac float64 `json:"obstruction_fraction"`
	SnrAboveNoise   bool    `json:"is_snr_above_noise_floor"`
	UptimeSeconds   int64   `json:"uptime_s"`
	GpsValid        bool    `json:"gps_valid"`
	GpsSatellites   int     `json:"gps_satellites"`
	EthSpeedMbps    int     `json:"eth_speed_mbps"`
	HardwareVersion string  `json:"hardware_version"`
	SoftwareVersion string  `json:"software_version"`
}

// ThroughputHistory is a time-ordered series of byte-rate samples, oldest
// first. Either slice may be empty or partially populated.
type ThroughputHistory struct {
	DownlinkBps []float64 `json:"downlink_throughput_bps"`
	UplinkBps   []float64 `json:"uplink_throughput_bps"`
}

// Source is the dish telemetry collaborator. Errors mean the terminal was
// unreachable; the collector converts them into an explicit down signal.
type Source interface {
	Status(ctx context.Context) (*DishStatus, error)
	ThroughputHistory(ctx context.Context, windowSeconds int) (*ThroughputHistory, error)
}
