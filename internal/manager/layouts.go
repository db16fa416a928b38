package manager

import (
	"reflect"

	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/internal/models"
)

// layoutStreamConfig is the stream-affecting subset of a layout. Only
// changes to these fields warrant a media server restart; cosmetic
// editor state (snap, grid, snapshots) does not.
type layoutStreamConfig struct {
	ID              string
	Enabled         bool
	Resolution      string
	Cameras         []models.LayoutCamera
	OutputFramerate int
}

func extractStreamConfig(layouts []models.Layout) []layoutStreamConfig {
	out := make([]layoutStreamConfig, len(layouts))
	for i, l := range layouts {
		out[i] = layoutStreamConfig{
			ID:              l.ID,
			Enabled:         l.Enabled,
			Resolution:      l.Resolution,
			Cameras:         l.Cameras,
			OutputFramerate: l.OutputFramerate,
		}
	}
	return out
}

// GetLayouts returns a copy of the composite layout list.
func (m *Manager) GetLayouts() []models.Layout {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Layout, len(m.layouts))
	copy(out, m.layouts)
	return out
}

// SaveLayouts replaces the layout list, persists it and restarts the
// media server only when the stream-affecting subset changed.
func (m *Manager) SaveLayouts(layouts []models.Layout) ([]models.Layout, error) {
	m.mu.Lock()

	restartNeeded := !reflect.DeepEqual(extractStreamConfig(m.layouts), extractStreamConfig(layouts))

	m.layouts = make([]models.Layout, len(layouts))
	copy(m.layouts, layouts)

	err := m.saveLocked()
	saved := make([]models.Layout, len(m.layouts))
	copy(saved, m.layouts)
	restartParams := m.restartParamsLocked()
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}

	if restartNeeded {
		m.logger.Info("Layouts changed, restarting media server")
		if rerr := m.supervisor.Restart(restartParams); rerr != nil {
			m.logger.WithError(rerr).Error("Media server restart after layout change failed")
		}
	}
	return saved, nil
}
