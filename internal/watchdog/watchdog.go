// Package watchdog detects zombie streams, paths the media server
// reports as ready while no bytes arrive, and triggers a supervised
// restart to recover them.
package watchdog

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/internal/models"
	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/pkg/logging"
)

const (
	// startupGrace delays the first check so the media server and
	// upstream cameras can stabilize after launch.
	startupGrace = 30 * time.Second
	// checkInterval is the health check cadence.
	checkInterval = 15 * time.Second
	// zombieThreshold is how long a publisher path may stay ready and
	// stale before a restart is triggered.
	zombieThreshold = 120 * time.Second
	// postRestartGrace pauses checks after a triggered restart so the
	// recovered streams are not immediately re-flagged.
	postRestartGrace = 30 * time.Second
)

var watchdogRestarts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "watchdog_restarts_total",
	Help: "Number of media server restarts triggered by the stream watchdog",
})

// AnalyticsSource supplies the latest per-path health snapshot.
type AnalyticsSource interface {
	GetAnalytics() map[string]models.PathAnalytics
}

// RestartFunc performs a full media server restart with freshly
// captured camera and settings state.
type RestartFunc func() error

// Watchdog is the background loop accumulating per-path unhealthy
// windows. The tracker map is owned exclusively by the loop.
type Watchdog struct {
	analytics AnalyticsSource
	restart   RestartFunc
	logger    logging.Logger

	// staleSince maps path name to the first instant the path was seen
	// continuously ready, stale and publishing.
	staleSince map[string]time.Time

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
}

// New creates a watchdog wired to an analytics source and restart hook.
func New(analytics AnalyticsSource, restart RestartFunc, logger logging.Logger) *Watchdog {
	return &Watchdog{
		analytics:  analytics,
		restart:    restart,
		logger:     logger,
		staleSince: make(map[string]time.Time),
	}
}

// Start launches the watchdog loop.
func (w *Watchdog) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopChan = make(chan struct{})
	stop := w.stopChan
	w.mu.Unlock()

	go w.run(stop)
	w.logger.Info("Stream health watchdog started")
}

// Stop terminates the watchdog loop.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	close(w.stopChan)
}

func (w *Watchdog) run(stop chan struct{}) {
	select {
	case <-time.After(startupGrace):
	case <-stop:
		return
	}

	for {
		if w.checkStreamHealth(time.Now()) {
			// Give just-restarted streams time to reconnect before the
			// next evaluation.
			select {
			case <-time.After(postRestartGrace):
			case <-stop:
				return
			}
		}

		select {
		case <-time.After(checkInterval):
		case <-stop:
			return
		}
	}
}

// checkStreamHealth runs one watchdog iteration and reports whether a
// restart was triggered.
func (w *Watchdog) checkStreamHealth(now time.Time) bool {
	snapshot := w.analytics.GetAnalytics()

	stalePaths := w.evaluate(snapshot, now)
	if len(stalePaths) == 0 {
		return false
	}

	w.logger.WithFields(logging.Fields{
		"paths": stalePaths,
		"count": len(stalePaths),
	}).Warn("Restarting media server to recover stalled streams")

	watchdogRestarts.Inc()
	if err := w.restart(); err != nil {
		w.logger.WithError(err).Error("Watchdog-triggered restart failed")
	}

	// Clear every tracked path, not only the triggering ones, so paths
	// that have not yet reconnected must re-accumulate a full window.
	w.staleSince = make(map[string]time.Time)
	return true
}

// evaluate applies the per-path state machine against the tracker map
// and returns the paths whose continuous unhealthy window exceeds the
// zombie threshold.
func (w *Watchdog) evaluate(snapshot map[string]models.PathAnalytics, now time.Time) []string {
	var triggered []string

	for pathName, stats := range snapshot {
		unhealthy := stats.Ready && stats.Stale && stats.Source == "publisher"
		if !unhealthy {
			delete(w.staleSince, pathName)
			continue
		}

		since, tracked := w.staleSince[pathName]
		if !tracked {
			w.staleSince[pathName] = now
			continue
		}

		if staleFor := now.Sub(since); staleFor > zombieThreshold {
			w.logger.WithFields(logging.Fields{
				"path":      pathName,
				"stale_for": staleFor.Truncate(time.Second).String(),
			}).Warn("Path has been dead beyond the recovery threshold")
			triggered = append(triggered, pathName)
		}
	}

	// Tracked paths that vanished from the snapshot are no longer
	// unhealthy.
	for pathName := range w.staleSince {
		if _, ok := snapshot[pathName]; !ok {
			delete(w.staleSince, pathName)
		}
	}

	return triggered
}
