package manager

import (
	"reflect"

	"golang.org/x/crypto/bcrypt"

	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/internal/models"
)

// SettingsUpdate is the settings save payload. Auth fields are applied
// only when present so a plain settings save cannot wipe credentials.
type SettingsUpdate struct {
	models.Settings
	AdvancedSettings *models.AdvancedSettings `json:"advancedSettings,omitempty"`
	AuthEnabled      *bool                    `json:"authEnabled,omitempty"`
	Username         string                   `json:"username,omitempty"`
	Password         string                   `json:"password,omitempty"`
}

// GetSettings returns the current global settings.
func (m *Manager) GetSettings() models.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// GetAdvancedSettings returns the current tuning settings.
func (m *Manager) GetAdvancedSettings() models.AdvancedSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.advanced
}

// restartAffecting reports whether the settings change touches a field
// the media server configuration depends on. Unrelated fields such as
// the UI theme never cause a restart.
func restartAffecting(old, new models.Settings, oldAdv models.AdvancedSettings, newAdv *models.AdvancedSettings) bool {
	if old.RTSPPort != new.RTSPPort {
		return true
	}
	if old.GlobalUsername != new.GlobalUsername {
		return true
	}
	if old.GlobalPassword != new.GlobalPassword {
		return true
	}
	if old.RTSPAuthEnabled != new.RTSPAuthEnabled {
		return true
	}
	if old.DebugMode != new.DebugMode {
		return true
	}
	if newAdv != nil && !reflect.DeepEqual(oldAdv, *newAdv) {
		return true
	}
	return false
}

// SaveSettings applies a settings update, persists it and restarts the
// media server only when a restart-affecting field changed.
func (m *Manager) SaveSettings(update SettingsUpdate) (models.Settings, error) {
	m.mu.Lock()

	restartNeeded := restartAffecting(m.settings, update.Settings, m.advanced, update.AdvancedSettings)

	m.settings = update.Settings
	if update.AdvancedSettings != nil {
		m.advanced = *update.AdvancedSettings
	}

	if update.AuthEnabled != nil {
		m.auth.Enabled = *update.AuthEnabled
		if update.Username != "" {
			m.auth.Username = update.Username
		}
		if update.Password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(update.Password), bcrypt.DefaultCost)
			if err != nil {
				m.mu.Unlock()
				return models.Settings{}, err
			}
			m.auth.PasswordHash = string(hash)
		}
	}

	err := m.saveLocked()
	saved := m.settings
	restartParams := m.restartParamsLocked()
	m.mu.Unlock()

	if err != nil {
		return models.Settings{}, err
	}

	if restartNeeded {
		m.logger.Info("Settings changed, restarting media server")
		if rerr := m.supervisor.Restart(restartParams); rerr != nil {
			m.logger.WithError(rerr).Error("Media server restart after settings change failed")
		}
	}
	return saved, nil
}
