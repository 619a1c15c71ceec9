package telemetry

import (
	"context"
	"time"

	"github.com/guonaihong/gout"
	"github.com/pkg/errors"
)

// statusWire mirrors the terminal's status payload. Every field is a
// pointer so an absent key is distinguishable from a reported zero; the
// normalization below is the single place defaults are decided.
type statusWire struct {
	PopPingLatencyMs *float64 `json:"pop_ping_latency_ms"`
	DownlinkBps      *float64 `json:"downlink_throughput_bps"`
	UplinkBps        *float64 `json:"uplink_throughput_bps"`
	ObstructionStats *struct {
		FractionObstructed *float64 `json:"fraction_obstructed"`
	} `json:"obstruction_stats"`
	SnrAboveNoise *bool `json:"is_snr_above_noise_floor"`
	DeviceState   *struct {
		UptimeS *int64 `json:"uptime_s"`
	} `json:"device_state"`
	GpsStats *struct {
		GpsValid *bool `json:"gps_valid"`
		GpsSats  *int  `json:"gps_sats"`
	} `json:"gps_stats"`
	EthSpeedMbps *int `json:"eth_speed_mbps"`
	DeviceInfo   *struct {
		HardwareVersion *string `json:"hardware_version"`
		SoftwareVersion *string `json:"software_version"`
	} `json:"device_info"`
}

type historyWire struct {
	DownlinkBps []float64 `json:"downlink_throughput_bps"`
	UplinkBps   []float64 `json:"uplink_throughput_bps"`
}

// HTTPSource reads telemetry from the terminal's local HTTP bridge.
type HTTPSource struct {
	baseURL string
	timeout time.Duration
}

var _ Source = (*HTTPSource)(nil)

func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{baseURL: baseURL, timeout: timeout}
}

func (s *HTTPSource) Status(ctx context.Context) (*DishStatus, error) {
	var wire statusWire
	err := gout.GET(s.baseURL + "/api/status").
		WithContext(ctx).
		SetTimeout(s.timeout).
		BindJSON(&wire).
		Do()
	if err != nil {
		return nil, errors.Wrap(err, "dish status fetch failed")
	}
	return normalizeStatus(&wire), nil
}

func (s *HTTPSource) ThroughputHistory(ctx context.Context, windowSeconds int) (*ThroughputHistory, error) {
	var wire historyWire
	err := gout.GET(s.baseURL + "/api/history").
		WithContext(ctx).
		SetTimeout(s.timeout).
		SetQuery(gout.H{"window": windowSeconds}).
		BindJSON(&wire).
		Do()
	if err != nil {
		return nil, errors.Wrap(err, "dish history fetch failed")
	}
	return &ThroughputHistory{DownlinkBps: wire.DownlinkBps, UplinkBps: wire.UplinkBps}, nil
}

func normalizeStatus(w *statusWire) *DishStatus {
	st := &DishStatus{}
	if w.PopPingLatencyMs != nil {
		st.LatencyMs = *w.PopPingLatencyMs
	}
	if w.DownlinkBps != nil {
		st.DownlinkBps = *w.DownlinkBps
	}
	if w.UplinkBps != nil {
		st.UplinkBps = *w.UplinkBps
	}
	if w.ObstructionStats != nil && w.ObstructionStats.FractionObstructed != nil {
		st.ObstructionFrac = *w.ObstructionStats.FractionObstructed
	}
	if w.SnrAboveNoise != nil {
		st.SnrAboveNoise = *w.SnrAboveNoise
	}
	if w.DeviceState != nil && w.DeviceState.UptimeS != nil {
		st.UptimeSeconds = *w.DeviceState.UptimeS
	}
	if w.GpsStats != nil {
		if w.GpsStats.GpsValid != nil {
			st.GpsValid = *w.GpsStats.GpsValid
		}
		if w.GpsStats.GpsSats != nil {
			st.GpsSatellites = *w.GpsStats.GpsSats
		}
	}
	if w.EthSpeedMbps != nil {
		st.EthSpeedMbps = *w.EthSpeedMbps
	}
	if w.DeviceInfo != nil {
		if w.DeviceInfo.HardwareVersion != nil {
			st.HardwareVersion = *w.DeviceInfo.HardwareVersion
		}
		if w.DeviceInfo.SoftwareVersion != nil {
			st.SoftwareVersion = *w.DeviceInfo.SoftwareVersion
		}
	}
	return st
}
