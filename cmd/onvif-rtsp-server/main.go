package main

import (
	"fmt"
	"os"

	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/internal/analytics"
	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/internal/handlers"
	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/internal/manager"
	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/internal/mediamtx"
	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/internal/watchdog"
	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/pkg/config"
	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/pkg/logging"
	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/pkg/monitoring"
	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/pkg/server"
)

const version = "1.0.0"

func main() {
	// Setup structured logger
	logger := logging.NewLoggerWithService("onvif-rtsp-server")

	// Load environment variables from .env files
	config.LoadEnv(logger)

	logger.Info("Starting ONVIF RTSP virtual camera server")

	// Media server components
	supervisor := mediamtx.NewSupervisor(logger)
	apiClient := mediamtx.NewClient(logger)

	mgr, err := manager.New(supervisor, apiClient, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("onvif-rtsp-server", version)
	metricsCollector := monitoring.NewMetricsCollector("onvif-rtsp-server")

	apiPort := config.GetEnvInt("MEDIAMTX_API_PORT", 9997)
	healthChecker.AddCheck("mediamtx_api", monitoring.HTTPServiceHealthCheck(
		"MediaMTX API", fmt.Sprintf("http://127.0.0.1:%d/v3/paths/list", apiPort)))
	healthChecker.AddCheck("mediamtx_process", monitoring.ProcessHealthCheck("MediaMTX", supervisor.IsRunning))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"SESSION_SECRET": config.GetEnv("SESSION_SECRET", "dev-session-secret"),
	}))

	// Boot the media server with auto-start cameras. A boot failure is
	// fatal; runtime restart failures later are not.
	started := mgr.StartAutoStart()
	logger.WithField("auto_start", started).Info("Launching media server")
	if err := mgr.StartMedia(); err != nil {
		logger.WithError(err).Fatal("Media server failed to start")
	}

	// Stream health pipeline: poller feeds the watchdog, the watchdog
	// restarts through the manager with freshly captured state.
	poller := analytics.NewPoller(apiClient, logger)
	poller.Start()

	dog := watchdog.New(poller, mgr.RestartMedia, logger)
	if config.GetEnvBool("WATCHDOG_ENABLED", true) {
		dog.Start()
	} else {
		logger.Warn("Stream watchdog disabled by configuration")
	}

	// REST API
	jwtSecret := []byte(config.GetEnv("SESSION_SECRET", "dev-session-secret"))
	h := handlers.New(mgr, poller, jwtSecret, logger)

	r := server.SetupServiceRouter(logger, "onvif-rtsp-server", healthChecker, metricsCollector)
	h.RegisterRoutes(r)

	// Start blocks until SIGINT/SIGTERM and the HTTP server has drained.
	serverConfig := server.DefaultConfig("onvif-rtsp-server", "8080")
	if err := server.Start(serverConfig, r, logger); err != nil {
		logger.WithError(err).Error("Server shutdown with error")
	}

	dog.Stop()
	poller.Stop()
	mgr.StopMedia()
	logger.Info("Shutdown complete")
	os.Exit(0)
}
