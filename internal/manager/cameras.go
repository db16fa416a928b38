package manager

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/internal/models"
	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/pkg/logging"
)

// CameraInput is the payload for camera create and update operations.
type CameraInput struct {
	Name          string `json:"name" binding:"required"`
	Host          string `json:"host" binding:"required"`
	RTSPPort      int    `json:"rtspPort"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	MainPath      string `json:"mainPath"`
	SubPath       string `json:"subPath"`
	AutoStart     bool   `json:"autoStart"`
	MainWidth     int    `json:"mainWidth"`
	MainHeight    int    `json:"mainHeight"`
	SubWidth      int    `json:"subWidth"`
	SubHeight     int    `json:"subHeight"`
	MainFramerate int    `json:"mainFramerate"`
	SubFramerate  int    `json:"subFramerate"`
	ONVIFPort     *int   `json:"onvifPort"`
	TranscodeMain bool   `json:"transcodeMain"`
	TranscodeSub  bool   `json:"transcodeSub"`
}

func (in *CameraInput) applyDefaults() {
	if in.RTSPPort == 0 {
		in.RTSPPort = 554
	}
	if in.MainWidth == 0 {
		in.MainWidth = 1920
	}
	if in.MainHeight == 0 {
		in.MainHeight = 1080
	}
	if in.SubWidth == 0 {
		in.SubWidth = 640
	}
	if in.SubHeight == 0 {
		in.SubHeight = 480
	}
	if in.MainFramerate == 0 {
		in.MainFramerate = 30
	}
	if in.SubFramerate == 0 {
		in.SubFramerate = 15
	}
}

// buildStreamURL assembles an upstream RTSP URL with URL-encoded
// credentials.
func buildStreamURL(host string, port int, username, password, path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	userEnc := url.QueryEscape(username)
	passEnc := url.QueryEscape(password)

	switch {
	case username != "" && password != "":
		return fmt.Sprintf("rtsp://%s:%s@%s:%d%s", userEnc, passEnc, host, port, path)
	case username != "":
		return fmt.Sprintf("rtsp://%s@%s:%d%s", userEnc, host, port, path)
	default:
		return fmt.Sprintf("rtsp://%s:%d%s", host, port, path)
	}
}

// sanitizePathName derives a media server path name from a camera
// name: lowercase, spaces and hyphens become underscores, everything
// else non-alphanumeric is dropped.
func sanitizePathName(name string) string {
	lowered := strings.ToLower(name)
	lowered = strings.ReplaceAll(lowered, " ", "_")
	lowered = strings.ReplaceAll(lowered, "-", "_")

	var b strings.Builder
	for _, r := range lowered {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// isPortAvailableLocked reports whether an ONVIF port is free among the
// other cameras. Callers must hold m.mu.
func (m *Manager) isPortAvailableLocked(port, excludeID int) bool {
	for i := range m.cameras {
		if m.cameras[i].ID != excludeID && m.cameras[i].ONVIFPort == port {
			return false
		}
	}
	return true
}

// ListCameras returns a copy of the camera list.
func (m *Manager) ListCameras() []models.Camera {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Camera, len(m.cameras))
	copy(out, m.cameras)
	return out
}

// GetCamera returns a camera by ID.
func (m *Manager) GetCamera(id int) (models.Camera, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.cameras {
		if m.cameras[i].ID == id {
			return m.cameras[i], true
		}
	}
	return models.Camera{}, false
}

// AddCamera creates a new camera from the input, assigns an ONVIF port
// and persists the config.
func (m *Manager) AddCamera(in CameraInput) (models.Camera, error) {
	in.applyDefaults()

	m.mu.Lock()
	defer m.mu.Unlock()

	onvifPort := m.nextONVIFPort
	if in.ONVIFPort != nil {
		onvifPort = *in.ONVIFPort
		if !m.isPortAvailableLocked(onvifPort, 0) {
			return models.Camera{}, fmt.Errorf("ONVIF port %d is already in use by another camera", onvifPort)
		}
	}

	cam := models.Camera{
		ID:            m.nextID,
		UUID:          uuid.New().String(),
		Name:          in.Name,
		MainStreamURL: buildStreamURL(in.Host, in.RTSPPort, in.Username, in.Password, in.MainPath),
		SubStreamURL:  buildStreamURL(in.Host, in.RTSPPort, in.Username, in.Password, in.SubPath),
		RTSPPort:      m.settings.RTSPPort,
		ONVIFPort:     onvifPort,
		PathName:      sanitizePathName(in.Name),
		Username:      in.Username,
		Password:      in.Password,
		AutoStart:     in.AutoStart,
		Status:        models.CameraStatusStopped,
		MainWidth:     in.MainWidth,
		MainHeight:    in.MainHeight,
		SubWidth:      in.SubWidth,
		SubHeight:     in.SubHeight,
		MainFramerate: in.MainFramerate,
		SubFramerate:  in.SubFramerate,
		ONVIFUsername: m.settings.GlobalUsername,
		ONVIFPassword: m.settings.GlobalPassword,
		TranscodeMain: in.TranscodeMain,
		TranscodeSub:  in.TranscodeSub,
	}

	m.cameras = append(m.cameras, cam)
	m.nextID++
	if onvifPort >= m.nextONVIFPort {
		m.nextONVIFPort = onvifPort + 1
	}

	if err := m.saveLocked(); err != nil {
		return models.Camera{}, err
	}

	m.logger.WithFields(logging.Fields{
		"camera":     cam.Name,
		"path":       cam.PathName,
		"onvif_port": cam.ONVIFPort,
	}).Info("Camera added")
	return cam, nil
}

// UpdateCamera replaces a camera's configuration. A running camera is
// restarted with the new parameters, which also triggers a media
// server restart.
func (m *Manager) UpdateCamera(id int, in CameraInput) (models.Camera, error) {
	in.applyDefaults()

	m.mu.Lock()

	idx := -1
	for i := range m.cameras {
		if m.cameras[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		m.mu.Unlock()
		return models.Camera{}, fmt.Errorf("camera %d not found", id)
	}

	cam := &m.cameras[idx]
	wasRunning := cam.IsRunning()

	onvifPort := cam.ONVIFPort
	if in.ONVIFPort != nil {
		onvifPort = *in.ONVIFPort
		if !m.isPortAvailableLocked(onvifPort, id) {
			m.mu.Unlock()
			return models.Camera{}, fmt.Errorf("ONVIF port %d is already in use by another camera", onvifPort)
		}
	}

	cam.Name = in.Name
	cam.MainStreamURL = buildStreamURL(in.Host, in.RTSPPort, in.Username, in.Password, in.MainPath)
	cam.SubStreamURL = buildStreamURL(in.Host, in.RTSPPort, in.Username, in.Password, in.SubPath)
	cam.PathName = sanitizePathName(in.Name)
	cam.Username = in.Username
	cam.Password = in.Password
	cam.AutoStart = in.AutoStart
	cam.ONVIFPort = onvifPort
	cam.MainWidth = in.MainWidth
	cam.MainHeight = in.MainHeight
	cam.SubWidth = in.SubWidth
	cam.SubHeight = in.SubHeight
	cam.MainFramerate = in.MainFramerate
	cam.SubFramerate = in.SubFramerate
	cam.ONVIFUsername = m.settings.GlobalUsername
	cam.ONVIFPassword = m.settings.GlobalPassword
	cam.TranscodeMain = in.TranscodeMain
	cam.TranscodeSub = in.TranscodeSub

	updated := *cam
	err := m.saveLocked()
	restart := wasRunning
	restartParams := m.restartParamsLocked()
	m.mu.Unlock()

	if err != nil {
		return models.Camera{}, err
	}

	if restart {
		m.logger.WithField("camera", updated.Name).Info("Camera updated, restarting media server")
		if rerr := m.supervisor.Restart(restartParams); rerr != nil {
			m.logger.WithError(rerr).Error("Media server restart after camera update failed")
		}
	} else {
		m.logger.WithField("camera", updated.Name).Info("Camera updated")
	}
	return updated, nil
}

// DeleteCamera removes a camera and restarts the media server so its
// paths disappear.
func (m *Manager) DeleteCamera(id int) error {
	m.mu.Lock()

	idx := -1
	for i := range m.cameras {
		if m.cameras[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		m.mu.Unlock()
		return fmt.Errorf("camera %d not found", id)
	}

	name := m.cameras[idx].Name
	m.cameras = append(m.cameras[:idx], m.cameras[idx+1:]...)
	err := m.saveLocked()
	restartParams := m.restartParamsLocked()
	m.mu.Unlock()

	if err != nil {
		return err
	}

	m.logger.WithField("camera", name).Info("Camera deleted, restarting media server")
	if rerr := m.supervisor.Restart(restartParams); rerr != nil {
		m.logger.WithError(rerr).Error("Media server restart after camera delete failed")
	}
	return nil
}

// SetCameraStatus flips one camera's running flag and restarts the
// media server so its path set matches.
func (m *Manager) SetCameraStatus(id int, running bool) (models.Camera, error) {
	m.mu.Lock()

	idx := -1
	for i := range m.cameras {
		if m.cameras[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		m.mu.Unlock()
		return models.Camera{}, fmt.Errorf("camera %d not found", id)
	}

	if running {
		m.cameras[idx].Status = models.CameraStatusRunning
	} else {
		m.cameras[idx].Status = models.CameraStatusStopped
	}
	updated := m.cameras[idx]
	restartParams := m.restartParamsLocked()
	m.mu.Unlock()

	if err := m.supervisor.Restart(restartParams); err != nil {
		m.logger.WithError(err).Error("Media server restart after camera status change failed")
	}
	return updated, nil
}

// StartAll marks every camera running and restarts the media server.
func (m *Manager) StartAll() error {
	m.mu.Lock()
	for i := range m.cameras {
		m.cameras[i].Status = models.CameraStatusRunning
	}
	restartParams := m.restartParamsLocked()
	m.mu.Unlock()

	return m.supervisor.Restart(restartParams)
}

// StopAll marks every camera stopped and restarts the media server.
func (m *Manager) StopAll() error {
	m.mu.Lock()
	for i := range m.cameras {
		m.cameras[i].Status = models.CameraStatusStopped
	}
	restartParams := m.restartParamsLocked()
	m.mu.Unlock()

	return m.supervisor.Restart(restartParams)
}

// StartAutoStart marks cameras flagged for auto start as running. Used
// during boot before the first media server start.
func (m *Manager) StartAutoStart() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for i := range m.cameras {
		if m.cameras[i].AutoStart {
			m.cameras[i].Status = models.CameraStatusRunning
			count++
		}
	}
	return count
}
