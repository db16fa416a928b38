package mediamtx

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/pkg/config"
	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/pkg/logging"
)

const (
	// launchVerifyDelay is how long to wait after launch before checking
	// the process survived startup.
	launchVerifyDelay = 3 * time.Second
	// gracefulStopTimeout bounds the wait for a terminating process
	// before escalating to a kill.
	gracefulStopTimeout = 5 * time.Second
	// restartSettleDelay separates stop from start so ports are released.
	restartSettleDelay = 3 * time.Second
)

// Supervisor owns the MediaMTX subprocess. All lifecycle transitions
// are serialized: overlapping restart callers block and then run their
// own stop/start sequence with freshly captured parameters.
type Supervisor struct {
	mu         sync.Mutex
	cmd        *exec.Cmd
	waitDone   chan error
	configPath string
	apiPort    int
	logger     logging.Logger

	// test seams
	sleep      func(time.Duration)
	lookupExec func() (string, error)
}

// NewSupervisor creates a supervisor writing its config file next to
// the working directory.
func NewSupervisor(logger logging.Logger) *Supervisor {
	return &Supervisor{
		configPath: config.GetEnv("MEDIAMTX_CONFIG", "mediamtx.yml"),
		apiPort:    config.GetEnvInt("MEDIAMTX_API_PORT", 9997),
		logger:     logger,
		sleep:      time.Sleep,
		lookupExec: findExecutable,
	}
}

// findExecutable locates the mediamtx binary on PATH or in the working
// directory.
func findExecutable() (string, error) {
	if path, err := exec.LookPath("mediamtx"); err == nil {
		return path, nil
	}
	local := "mediamtx"
	if _, err := os.Stat(local); err == nil {
		return filepath.Abs(local)
	}
	return "", fmt.Errorf("mediamtx executable not found in PATH or working directory")
}

// IsRunning reports whether the subprocess is currently alive.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunningLocked()
}

func (s *Supervisor) isRunningLocked() bool {
	if s.cmd == nil || s.cmd.Process == nil {
		return false
	}
	select {
	case <-s.waitDone:
		s.cmd = nil
		return false
	default:
		return true
	}
}

// Start writes the config file and launches MediaMTX. It waits briefly
// and verifies the process survived startup; an immediate exit is
// returned as an error, not a panic.
func (s *Supervisor) Start(params ConfigParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(params)
}

func (s *Supervisor) startLocked(params ConfigParams) error {
	if s.isRunningLocked() {
		s.logger.Warn("MediaMTX already running, ignoring start request")
		return nil
	}

	exePath, err := s.lookupExec()
	if err != nil {
		return err
	}

	if err := WriteConfig(s.configPath, s.apiPort, params); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	configPath, err := filepath.Abs(s.configPath)
	if err != nil {
		configPath = s.configPath
	}

	s.logger.WithFields(logging.Fields{
		"executable": exePath,
		"config":     configPath,
		"rtsp_port":  params.RTSPPort,
	}).Info("Starting MediaMTX")

	cmd := exec.Command(exePath, configPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to launch MediaMTX: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
		close(done)
	}()

	// The process has to survive the first few seconds or the launch is
	// considered failed (bad config, port in use).
	select {
	case err := <-done:
		return fmt.Errorf("MediaMTX exited during startup: %v", err)
	case <-time.After(launchVerifyDelay):
	}

	s.cmd = cmd
	s.waitDone = done

	s.logger.WithField("rtsp_port", params.RTSPPort).Info("MediaMTX running")
	return nil
}

// Stop requests graceful termination and escalates to a kill after a
// bounded wait. Calling Stop on a stopped supervisor is a no-op.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Supervisor) stopLocked() {
	if s.cmd == nil || s.cmd.Process == nil {
		return
	}

	proc := s.cmd.Process
	if err := proc.Signal(os.Interrupt); err != nil {
		// Already gone
		s.cmd = nil
		return
	}

	select {
	case <-s.waitDone:
	case <-time.After(gracefulStopTimeout):
		s.logger.Warn("MediaMTX did not stop gracefully, killing")
		proc.Kill()
		<-s.waitDone
	}

	s.cmd = nil
	s.logger.Info("MediaMTX stopped")
}

// Restart stops the subprocess, waits for ports to settle and starts it
// with freshly supplied parameters. Safe for concurrent callers.
func (s *Supervisor) Restart(params ConfigParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("Restarting MediaMTX")
	s.stopLocked()
	s.sleep(restartSettleDelay)
	if err := s.startLocked(params); err != nil {
		s.logger.WithError(err).Error("MediaMTX restart failed, media server left stopped")
		return err
	}
	return nil
}
