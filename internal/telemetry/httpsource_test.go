package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const statusPayload = `{
	"pop_ping_latency_ms": 28.5,
	"downlink_throughput_bps": 85000000,
	"uplink_throughput_bps": 12000000,
	"obstruction_stats": {"fraction_obstructed": 0.012},
	"is_snr_above_noise_floor": true,
	"device_state": {"uptime_s": 86400},
	"gps_stats": {"gps_valid": true, "gps_sats": 12},
	"eth_speed_mbps": 1000,
	"device_info": {"hardware_version": "rev3", "software_version": "2026.08.1"}
}`

func TestStatusParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(statusPayload))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, time.Second)
	st, err := src.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.LatencyMs != 28.5 {
		t.Fatalf("latency %.1f, want 28.5", st.LatencyMs)
	}
	if st.ObstructionFrac != 0.012 {
		t.Fatalf("obstruction %.3f, want 0.012", st.ObstructionFrac)
	}
	if !st.SnrAboveNoise || !st.GpsValid || st.GpsSatellites != 12 {
		t.Fatalf("flags not parsed: %+v", st)
	}
	if st.SoftwareVersion != "2026.08.1" {
		t.Fatalf("software version %q", st.SoftwareVersion)
	}
}

func TestStatusMissingFieldsDefaultToZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, time.Second)
	st, err := src.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.LatencyMs != 0 || st.DownlinkBps != 0 || st.SnrAboveNoise {
		t.Fatalf("absent fields should normalize to zero values: %+v", st)
	}
}

func TestStatusFetchError(t *testing.T) {
	src := NewHTTPSource("http://127.0.0.1:1", 200*time.Millisecond)
	if _, err := src.Status(context.Background()); err == nil {
		t.Fatal("unreachable terminal should return an error")
	}
}

func TestHistoryParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/history" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("window") != "300" {
			t.Errorf("window query not forwarded: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"downlink_throughput_bps": [1e6, 2e6], "uplink_throughput_bps": [5e5]}`))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, time.Second)
	hist, err := src.ThroughputHistory(context.Background(), 300)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist.DownlinkBps) != 2 || len(hist.UplinkBps) != 1 {
		t.Fatalf("history not parsed: %+v", hist)
	}
}
