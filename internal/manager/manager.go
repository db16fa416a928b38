// Package manager owns the shared camera, settings and layout state,
// persists it atomically to disk and coordinates media server restarts.
package manager

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/internal/mediamtx"
	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/internal/models"
	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/pkg/config"
	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/pkg/logging"
)

// configDocument is the on-disk JSON layout of the config file.
type configDocument struct {
	Cameras          []models.Camera         `json:"cameras"`
	Settings         models.Settings         `json:"settings"`
	Auth             models.AuthConfig       `json:"auth"`
	AdvancedSettings models.AdvancedSettings `json:"advancedSettings"`
	GridFusion       gridFusionDocument      `json:"gridFusion"`
}

type gridFusionDocument struct {
	Layouts []models.Layout `json:"layouts"`
}

// MediaSupervisor is the subset of the process supervisor the manager
// drives. All methods serialize internally.
type MediaSupervisor interface {
	Start(params mediamtx.ConfigParams) error
	Stop()
	Restart(params mediamtx.ConfigParams) error
	IsRunning() bool
}

// SessionLister fetches active client sessions from the runtime API.
type SessionLister interface {
	ListSessions() []mediamtx.SessionStat
}

// Manager holds all mutable configuration state behind a single coarse
// lock. Every read and write path takes the lock, including the disk
// persistence sequence, so concurrent REST calls cannot race on the
// camera list.
type Manager struct {
	mu sync.Mutex

	cameras       []models.Camera
	nextID        int
	nextONVIFPort int

	settings models.Settings
	advanced models.AdvancedSettings
	layouts  []models.Layout
	auth     models.AuthConfig

	configFile string
	supervisor MediaSupervisor
	sessions   SessionLister
	logger     logging.Logger
}

// New creates a manager and loads state from the config file, writing
// defaults when none exists.
func New(supervisor MediaSupervisor, sessions SessionLister, logger logging.Logger) (*Manager, error) {
	m := &Manager{
		nextID:        1,
		nextONVIFPort: 8001,
		settings:      models.DefaultSettings(),
		advanced:      models.DefaultAdvancedSettings(),
		layouts:       []models.Layout{models.DefaultLayout()},
		configFile:    config.GetEnv("CONFIG_FILE", "cameras.json"),
		supervisor:    supervisor,
		sessions:      sessions,
		logger:        logger,
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

// load reads the config file into memory. A missing file seeds
// defaults and writes them out.
func (m *Manager) load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := os.ReadFile(m.configFile)
	if os.IsNotExist(err) {
		m.logger.WithField("file", m.configFile).Info("No config file found, writing defaults")
		return m.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var doc configDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	m.cameras = doc.Cameras
	for i := range m.cameras {
		cam := &m.cameras[i]
		// Status is runtime only and never trusted from disk.
		cam.Status = models.CameraStatusStopped
		if cam.ID >= m.nextID {
			m.nextID = cam.ID + 1
		}
		if cam.ONVIFPort >= m.nextONVIFPort {
			m.nextONVIFPort = cam.ONVIFPort + 1
		}
	}

	m.settings = doc.Settings
	if m.settings.ServerIP == "" {
		m.settings.ServerIP = "localhost"
	}
	if m.settings.RTSPPort == 0 {
		m.settings.RTSPPort = 8554
	}
	m.advanced = doc.AdvancedSettings
	if m.advanced.MediaMTX.ReadTimeout == "" {
		m.advanced = models.DefaultAdvancedSettings()
	}

	if len(doc.GridFusion.Layouts) > 0 {
		m.layouts = doc.GridFusion.Layouts
	}

	m.auth = doc.Auth

	m.logger.WithFields(logging.Fields{
		"cameras": len(m.cameras),
		"layouts": len(m.layouts),
	}).Info("Configuration loaded")
	return nil
}

// saveLocked persists the current state atomically: write to a temp
// file in the same directory, then rename over the config file.
// Callers must hold m.mu.
func (m *Manager) saveLocked() error {
	persisted := make([]models.Camera, len(m.cameras))
	copy(persisted, m.cameras)
	for i := range persisted {
		// Runtime status is excluded so autoStart is respected on boot.
		persisted[i].Status = ""
	}

	doc := configDocument{
		Cameras:          persisted,
		Settings:         m.settings,
		Auth:             m.auth,
		AdvancedSettings: m.advanced,
		GridFusion:       gridFusionDocument{Layouts: m.layouts},
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(m.configFile)
	tmp, err := os.CreateTemp(dir, ".cameras-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp config: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp config: %w", err)
	}
	if err := os.Rename(tmpPath, m.configFile); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

// restartParamsLocked captures the state a media server (re)start needs.
// Callers must hold m.mu.
func (m *Manager) restartParamsLocked() mediamtx.ConfigParams {
	cameras := make([]models.Camera, len(m.cameras))
	copy(cameras, m.cameras)
	layouts := make([]models.Layout, len(m.layouts))
	copy(layouts, m.layouts)

	user, pass := "", ""
	if m.settings.RTSPAuthEnabled {
		user = m.settings.GlobalUsername
		pass = m.settings.GlobalPassword
	}

	return mediamtx.ConfigParams{
		Cameras:          cameras,
		RTSPPort:         m.settings.RTSPPort,
		RTSPUsername:     user,
		RTSPPassword:     pass,
		Layouts:          layouts,
		DebugMode:        m.settings.DebugMode,
		AdvancedSettings: m.advanced,
	}
}

// RestartParams returns a snapshot of the current restart parameters.
func (m *Manager) RestartParams() mediamtx.ConfigParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restartParamsLocked()
}

// RestartMedia restarts the media server with freshly captured state.
// Used by the watchdog and by the REST layer. The snapshot is taken
// under the manager lock but the restart itself runs without it, so a
// long stop/start sequence does not block config reads.
func (m *Manager) RestartMedia() error {
	params := m.RestartParams()
	return m.supervisor.Restart(params)
}

// StartMedia boots the media server with the current state.
func (m *Manager) StartMedia() error {
	return m.supervisor.Start(m.RestartParams())
}

// StopMedia stops the media server.
func (m *Manager) StopMedia() {
	m.supervisor.Stop()
}

// MediaRunning reports whether the media server subprocess is alive.
func (m *Manager) MediaRunning() bool {
	return m.supervisor.IsRunning()
}
