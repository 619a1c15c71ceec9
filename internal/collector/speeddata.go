package collector

import (
	"github.com/montanaflynn/stats"

	"github.com/talkincode/dishwatch/internal/domain"
	"github.com/talkincode/dishwatch/internal/telemetry"
)

// activityFloorBps marks throughput worth treating as real usage; idle
// links hover near zero and are not representative of achievable speed.
const activityFloorBps = 1e6

// recentWindow is how many trailing history points the second fallback
// tier considers.
const recentWindow = 60

// SpeedSample is the resolved throughput figure for one collection tick,
// tagged with which fallback tier produced it.
type SpeedSample struct {
	DownloadMbps float64
	UploadMbps   float64
	PeakDownload float64
	PeakUpload   float64
	Source       string
}

// ResolveSpeed derives speed figures from history and status using the
// ordered fallback policy: active (>1 Mbps) history samples first, then any
// non-zero samples in the last 60 points, then the instantaneous status
// throughput, else an explicit no-data marker.
func ResolveSpeed(hist *telemetry.ThroughputHistory, status *telemetry.DishStatus) SpeedSample {
	if hist != nil {
		activeDown := filterAbove(hist.DownlinkBps, activityFloorBps)
		activeUp := filterAbove(hist.UplinkBps, activityFloorBps)
		if len(activeDown) > 0 && len(activeUp) > 0 {
			return summarize(activeDown, activeUp, domain.SpeedSourceActive)
		}

		recentDown := filterAbove(tail(hist.DownlinkBps, recentWindow), 0)
		recentUp := filterAbove(tail(hist.UplinkBps, recentWindow), 0)
		if len(recentDown) > 0 && len(recentUp) > 0 {
			return summarize(recentDown, recentUp, domain.SpeedSourceRecent)
		}
	}

	if status != nil {
		return SpeedSample{
			DownloadMbps: status.DownlinkBps / 1e6,
			UploadMbps:   status.UplinkBps / 1e6,
			PeakDownload: status.DownlinkBps / 1e6,
			PeakUpload:   status.UplinkBps / 1e6,
			Source:       domain.SpeedSourceInstant,
		}
	}

	return SpeedSample{Source: domain.SpeedSourceNone}
}

func summarize(down, up []float64, source string) SpeedSample {
	meanDown, _ := stats.Mean(down)
	meanUp, _ := stats.Mean(up)
	maxDown, _ := stats.Max(down)
	maxUp, _ := stats.Max(up)
	return SpeedSample{
		DownloadMbps: meanDown / 1e6,
		UploadMbps:   meanUp / 1e6,
		PeakDownload: maxDown / 1e6,
		PeakUpload:   maxUp / 1e6,
		Source:       source,
	}
}

func filterAbove(values []float64, floor float64) []float64 {
	var out []float64
	for _, v := range values {
		if v > floor {
			out = append(out, v)
		}
	}
	return out
}

func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}
