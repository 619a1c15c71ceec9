package collector

import (
	"testing"

	"github.com/talkincode/dishwatch/internal/domain"
	"github.com/talkincode/dishwatch/internal/telemetry"
)

func TestResolveSpeedActiveUsage(t *testing.T) {
	hist := &telemetry.ThroughputHistory{
		DownlinkBps: []float64{50e6, 150e6, 0.5e6},
		UplinkBps:   []float64{10e6, 20e6, 0},
	}
	got := ResolveSpeed(hist, &telemetry.DishStatus{DownlinkBps: 1e6})
	if got.Source != domain.SpeedSourceActive {
		t.Fatalf("expected active source, got %s", got.Source)
	}
	if got.DownloadMbps != 100 {
		t.Fatalf("expected 100 Mbps mean download, got %.1f", got.DownloadMbps)
	}
	if got.PeakDownload != 150 {
		t.Fatalf("expected 150 Mbps peak download, got %.1f", got.PeakDownload)
	}
	if got.UploadMbps != 15 {
		t.Fatalf("expected 15 Mbps mean upload, got %.1f", got.UploadMbps)
	}
}

func TestResolveSpeedRecentActivity(t *testing.T) {
	// all samples below the 1 Mbps activity floor but non-zero
	hist := &telemetry.ThroughputHistory{
		DownlinkBps: []float64{0.2e6, 0.4e6},
		UplinkBps:   []float64{0.1e6, 0.3e6},
	}
	got := ResolveSpeed(hist, nil)
	if got.Source != domain.SpeedSourceRecent {
		t.Fatalf("expected recent source, got %s", got.Source)
	}
	if got.DownloadMbps != 0.3 {
		t.Fatalf("expected 0.3 Mbps download, got %.2f", got.DownloadMbps)
	}
}

func TestResolveSpeedInstantaneous(t *testing.T) {
	hist := &telemetry.ThroughputHistory{
		DownlinkBps: []float64{0, 0, 0},
		UplinkBps:   []float64{0, 0, 0},
	}
	status := &telemetry.DishStatus{DownlinkBps: 42e6, UplinkBps: 7e6}
	got := ResolveSpeed(hist, status)
	if got.Source != domain.SpeedSourceInstant {
		t.Fatalf("expected instantaneous source, got %s", got.Source)
	}
	if got.DownloadMbps != 42 || got.UploadMbps != 7 {
		t.Fatalf("unexpected throughput %.1f/%.1f", got.DownloadMbps, got.UploadMbps)
	}
}

func TestResolveSpeedNoData(t *testing.T) {
	got := ResolveSpeed(nil, nil)
	if got.Source != domain.SpeedSourceNone {
		t.Fatalf("expected no-data marker, got %s", got.Source)
	}
	if got.DownloadMbps != 0 || got.UploadMbps != 0 {
		t.Fatal("no-data sample should carry zero throughput")
	}
}

func TestResolveSpeedRecentWindowOnlyLooksBack(t *testing.T) {
	// one old burst outside the 60-point window, idle since
	down := make([]float64, 70)
	up := make([]float64, 70)
	down[0] = 0.9e6
	up[0] = 0.9e6
	got := ResolveSpeed(&telemetry.ThroughputHistory{DownlinkBps: down, UplinkBps: up},
		&telemetry.DishStatus{})
	if got.Source != domain.SpeedSourceInstant {
		t.Fatalf("stale history should fall through to status, got %s", got.Source)
	}
}
