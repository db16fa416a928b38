// Package analytics polls the MediaMTX runtime API and derives
// per-path health state (bitrate, staleness) from raw byte counters.
package analytics

import (
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/internal/mediamtx"
	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/internal/models"
	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/pkg/config"
	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/pkg/logging"
)

const (
	// pollInterval is the cadence of stat collection.
	pollInterval = 3 * time.Second
	// staleThreshold marks a path stale when no bytes arrived for longer
	// than this. Strictly greater than, the boundary itself is healthy.
	staleThreshold = 10 * time.Second
)

var (
	streamBitrate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stream_bitrate_kbps",
			Help: "Derived ingest bitrate per path in kbit/s",
		},
		[]string{"path"},
	)

	streamReady = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stream_ready",
			Help: "Whether the media server reports the path as ready",
		},
		[]string{"path"},
	)

	streamStale = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stream_stale",
			Help: "Whether the path received no bytes beyond the stale threshold",
		},
		[]string{"path"},
	)

	streamReaders = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stream_readers",
			Help: "Number of readers per path",
		},
		[]string{"path"},
	)
)

// historyEntry carries the per-path state needed across polls.
type historyEntry struct {
	bytesReceived int64
	sampledAt     time.Time
	lastActive    time.Time
}

// Poller periodically fetches path statistics and publishes a derived
// analytics snapshot. Readers always get a copy of the snapshot, never
// a live reference.
type Poller struct {
	mu      sync.Mutex
	data    map[string]models.PathAnalytics
	history map[string]historyEntry

	client   *mediamtx.Client
	interval time.Duration
	logger   logging.Logger

	running  bool
	stopChan chan struct{}
}

// NewPoller creates a poller against the given runtime API client.
// STATS_POLL_INTERVAL overrides the default cadence.
func NewPoller(client *mediamtx.Client, logger logging.Logger) *Poller {
	return &Poller{
		data:     make(map[string]models.PathAnalytics),
		history:  make(map[string]historyEntry),
		client:   client,
		interval: config.GetEnvDuration("STATS_POLL_INTERVAL", pollInterval),
		logger:   logger,
	}
}

// Start launches the background polling loop.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopChan = make(chan struct{})
	stop := p.stopChan
	p.mu.Unlock()

	go p.run(stop)
	p.logger.WithField("interval", p.interval.String()).Info("Analytics poller started")
}

// Stop terminates the polling loop.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	close(p.stopChan)
}

func (p *Poller) run(stop chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.poll()
		case <-stop:
			return
		}
	}
}

// poll fetches the current path list and publishes the derived
// snapshot. Fetch errors are swallowed on purpose: during a media
// server restart the API is briefly unreachable and the previous
// snapshot stays in place as last known good.
func (p *Poller) poll() {
	samples, err := p.client.ListPaths()
	if err != nil {
		p.logger.WithError(err).Debug("Stat poll failed, keeping previous snapshot")
		return
	}
	p.observe(samples, time.Now())
}

// observe derives analytics for one poll tick and replaces the
// published snapshot atomically.
func (p *Poller) observe(samples []mediamtx.PathStat, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := make(map[string]models.PathAnalytics, len(samples))

	for i := range samples {
		sample := &samples[i]
		if sample.Name == "" {
			continue
		}

		entry := models.PathAnalytics{
			Ready:         sample.Ready,
			Tracks:        sample.Tracks,
			Readers:       len(sample.Readers),
			Source:        sample.SourceType(),
			BytesReceived: sample.BytesReceived,
			BytesSent:     sample.BytesSent,
		}

		prev, seen := p.history[sample.Name]
		if seen {
			deltaBytes := sample.BytesReceived - prev.bytesReceived
			deltaTime := now.Sub(prev.sampledAt).Seconds()

			if deltaBytes > 0 {
				entry.LastActive = now
			} else {
				entry.LastActive = prev.lastActive
			}

			// Negative deltas happen when the subprocess restarted and
			// its counters reset. Those ticks report zero, not an error.
			if deltaTime > 0 && deltaBytes >= 0 {
				entry.BitrateKbps = round1(float64(deltaBytes) * 8 / (1024 * deltaTime))
			}
		} else {
			entry.LastActive = now
		}

		p.history[sample.Name] = historyEntry{
			bytesReceived: sample.BytesReceived,
			sampledAt:     now,
			lastActive:    entry.LastActive,
		}

		entry.SinceActive = now.Sub(entry.LastActive)
		entry.Stale = entry.SinceActive > staleThreshold
		snapshot[sample.Name] = entry

		readiness := 0.0
		if entry.Ready {
			readiness = 1.0
		}
		staleness := 0.0
		if entry.Stale {
			staleness = 1.0
		}
		streamBitrate.WithLabelValues(sample.Name).Set(entry.BitrateKbps)
		streamReady.WithLabelValues(sample.Name).Set(readiness)
		streamStale.WithLabelValues(sample.Name).Set(staleness)
		streamReaders.WithLabelValues(sample.Name).Set(float64(entry.Readers))
	}

	for name := range p.data {
		if _, ok := snapshot[name]; !ok {
			streamBitrate.DeleteLabelValues(name)
			streamReady.DeleteLabelValues(name)
			streamStale.DeleteLabelValues(name)
			streamReaders.DeleteLabelValues(name)
		}
	}

	p.data = snapshot
}

// GetAnalytics returns a copy of the latest snapshot.
func (p *Poller) GetAnalytics() map[string]models.PathAnalytics {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]models.PathAnalytics, len(p.data))
	for name, entry := range p.data {
		out[name] = entry
	}
	return out
}

// GetStreamStats returns the latest analytics for a single path. A path
// missing from the snapshot yields a zero-valued entry.
func (p *Poller) GetStreamStats(pathName string) models.PathAnalytics {
	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, ok := p.data[pathName]; ok {
		return entry
	}
	return models.PathAnalytics{Tracks: []string{}}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
