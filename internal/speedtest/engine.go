// Package speedtest runs active throughput measurements against public
// endpoints and manages cron-style recurring test schedules. Results live
// in the store next to the passive telemetry samples.
package speedtest

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/go-ping/ping"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/talkincode/dishwatch/config"
	"github.com/talkincode/dishwatch/internal/domain"
	"github.com/talkincode/dishwatch/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrTestRunning is returned when a test is requested while one is active.
var ErrTestRunning = errors.New("a speed test is already running")

// Measurement caps. Downloads stop after the cap even when the file is
// larger; the observed bytes and elapsed time still yield a valid rate.
const (
	downloadCapBytes = 10 << 20
	uploadBytes      = 1 << 20
	pingCount        = 5
	stageTimeout     = 30 * time.Second
)

// Measurement method markers stored with each result
const (
	MethodHTTP     = "http"
	MethodICMP     = "icmp"
	MethodTCP      = "tcp"
	MethodEstimate = "estimate"
)

type Engine struct {
	store  *store.Store
	cfg    config.SpeedTestConfig
	client *http.Client

	mu     sync.Mutex
	active bool
	cancel context.CancelFunc
}

func NewEngine(st *store.Store, cfg config.SpeedTestConfig) *Engine {
	return &Engine{
		store:  st,
		cfg:    cfg,
		client: &http.Client{Timeout: stageTimeout},
	}
}

// Running reports whether a test is currently in flight.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Cancel aborts the in-flight test. Returns false when no test is running.
// The aborted run still finalizes its result row, in cancelled state.
func (e *Engine) Cancel() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active || e.cancel == nil {
		return false
	}
	e.cancel()
	return true
}

// Run executes one full measurement: ping, download, upload. The result
// row is created in running state first and finalized exactly once. Only
// one test runs at a time.
func (e *Engine) Run(testType string) (*domain.SpeedTestResult, error) {
	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	if e.active {
		e.mu.Unlock()
		cancel()
		return nil, ErrTestRunning
	}
	e.active = true
	e.cancel = cancel
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.active = false
		e.cancel = nil
		e.mu.Unlock()
		cancel()
	}()

	started := time.Now()
	result := &domain.SpeedTestResult{
		Timestamp: started,
		TestType:  testType,
		Status:    domain.SpeedTestRunning,
	}
	if err := e.store.InsertSpeedTest(result); err != nil {
		return nil, err
	}

	raw := map[string]interface{}{}

	pingMs, jitter, loss, pingMethod, pingErr := e.measurePing()
	if pingErr != nil {
		raw["ping_error"] = pingErr.Error()
	} else {
		result.PingMs = pingMs
		result.JitterMs = jitter
		result.PacketLossPct = loss
		raw["ping_method"] = pingMethod
	}

	download, downloadURL, dlErr := e.measureDownload(ctx)
	upload, ulErr := e.measureUpload(ctx)

	switch {
	case ctx.Err() != nil:
		result.Status = domain.SpeedTestCancelled
		result.ErrorMessage = "cancelled by request"
	case dlErr == nil:
		result.DownloadMbps = download
		result.Method = MethodHTTP
		result.ServerLocation = downloadURL
		if ulErr == nil {
			result.UploadMbps = upload
		} else {
			raw["upload_error"] = ulErr.Error()
		}
		result.Status = domain.SpeedTestCompleted
	default:
		raw["download_error"] = dlErr.Error()
		if est := e.estimateFromTelemetry(); est != nil {
			result.DownloadMbps = est.DownloadMbps
			result.UploadMbps = est.UploadMbps
			result.Method = MethodEstimate
			result.Status = domain.SpeedTestCompleted
			raw["estimate_source"] = "latest telemetry sample"
		} else {
			result.Status = domain.SpeedTestFailed
			result.ErrorMessage = dlErr.Error()
		}
	}

	result.DurationSeconds = int64(time.Since(started).Seconds())
	if b, err := json.Marshal(raw); err == nil {
		result.RawData = string(b)
	}

	if err := e.store.UpdateSpeedTest(result); err != nil {
		return nil, err
	}
	zap.S().Infof("speed test %s finished: %.1f/%.1f Mbps ping %.0fms (%s)",
		testType, result.DownloadMbps, result.UploadMbps, result.PingMs, result.Status)
	return result, nil
}

// measurePing tries ICMP first and falls back to timing TCP connects when
// raw sockets are unavailable.
func (e *Engine) measurePing() (pingMs, jitterMs, lossPct float64, method string, err error) {
	host := e.cfg.PingHost
	if host == "" {
		host = "8.8.8.8"
	}

	pinger, perr := ping.NewPinger(host)
	if perr == nil {
		pinger.Count = pingCount
		pinger.Timeout = 10 * time.Second
		pinger.SetPrivileged(true)
		if rerr := pinger.Run(); rerr == nil {
			st := pinger.Statistics()
			if st.PacketsRecv > 0 {
				return float64(st.AvgRtt) / float64(time.Millisecond),
					float64(st.StdDevRtt) / float64(time.Millisecond),
					st.PacketLoss, MethodICMP, nil
			}
		}
	}

	return e.tcpPing(host)
}

func (e *Engine) tcpPing(host string) (pingMs, jitterMs, lossPct float64, method string, err error) {
	addr := net.JoinHostPort(host, "443")
	var rtts []float64
	for i := 0; i < pingCount; i++ {
		start := time.Now()
		conn, derr := net.DialTimeout("tcp", addr, 5*time.Second)
		if derr != nil {
			continue
		}
		rtts = append(rtts, float64(time.Since(start))/float64(time.Millisecond))
		_ = conn.Close()
	}
	if len(rtts) == 0 {
		return 0, 0, 0, "", errors.Errorf("tcp ping to %s failed", addr)
	}
	avg, _ := stats.Mean(rtts)
	sd, _ := stats.StandardDeviation(rtts)
	loss := 100 * float64(pingCount-len(rtts)) / float64(pingCount)
	return avg, sd, loss, MethodTCP, nil
}

// measureDownload streams from the first reachable test URL, capped at
// downloadCapBytes, and derives the rate from observed bytes and elapsed
// time.
func (e *Engine) measureDownload(ctx context.Context) (mbps float64, url string, err error) {
	if len(e.cfg.DownloadURLs) == 0 {
		return 0, "", errors.New("no download test URLs configured")
	}

	var lastErr error
	for _, u := range e.cfg.DownloadURLs {
		req, rerr := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if rerr != nil {
			lastErr = rerr
			continue
		}
		start := time.Now()
		resp, rerr := e.client.Do(req)
		if rerr != nil {
			lastErr = rerr
			continue
		}
		n, cerr := io.CopyN(io.Discard, resp.Body, downloadCapBytes)
		_ = resp.Body.Close()
		if cerr != nil && !errors.Is(cerr, io.EOF) {
			lastErr = cerr
			continue
		}
		elapsed := time.Since(start).Seconds()
		if n == 0 || elapsed <= 0 {
			lastErr = errors.Errorf("empty download from %s", u)
			continue
		}
		return float64(n) * 8 / elapsed / 1e6, u, nil
	}
	return 0, "", errors.Wrap(lastErr, "all download URLs failed")
}

// measureUpload posts a fixed payload and derives the rate the same way.
func (e *Engine) measureUpload(ctx context.Context) (float64, error) {
	if e.cfg.UploadURL == "" {
		return 0, errors.New("no upload test URL configured")
	}
	payload := bytes.Repeat([]byte("0123456789abcdef"), uploadBytes/16)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.UploadURL, bytes.NewReader(payload))
	if err != nil {
		return 0, errors.Wrap(err, "upload test")
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "upload test")
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	elapsed := time.Since(start).Seconds()
	if elapsed <= 0 {
		return 0, errors.New("upload finished too fast to measure")
	}
	return float64(len(payload)) * 8 / elapsed / 1e6, nil
}

// estimateFromTelemetry falls back to the most recent passive sample when
// every active measurement path failed.
func (e *Engine) estimateFromTelemetry() *domain.ConnectionMetric {
	m, err := e.store.LatestMetric()
	if err != nil || m == nil {
		return nil
	}
	if m.DownloadMbps == 0 && m.UploadMbps == 0 {
		return nil
	}
	return m
}
