package manager

import (
	"sync"
	"testing"

	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/internal/models"
)

func TestSaveSettingsRestartGating(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*models.Settings)
		expectRestart bool
	}{
		{"theme change", func(s *models.Settings) { s.Theme = "nord" }, false},
		{"grid columns change", func(s *models.Settings) { s.GridColumns = 4 }, false},
		{"whitelist change", func(s *models.Settings) { s.IPWhitelist = []string{"10.0.0.1"} }, false},
		{"rtsp port change", func(s *models.Settings) { s.RTSPPort = 9554 }, true},
		{"global username change", func(s *models.Settings) { s.GlobalUsername = "operator" }, true},
		{"global password change", func(s *models.Settings) { s.GlobalPassword = "secret" }, true},
		{"rtsp auth toggle", func(s *models.Settings) { s.RTSPAuthEnabled = true }, true},
		{"debug mode toggle", func(s *models.Settings) { s.DebugMode = true }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, sup := newTestManager(t)

			settings := m.GetSettings()
			tt.mutate(&settings)
			if _, err := m.SaveSettings(SettingsUpdate{Settings: settings}); err != nil {
				t.Fatalf("save settings: %v", err)
			}

			got := sup.restartCount()
			if tt.expectRestart && got != 1 {
				t.Fatalf("expected a restart, got %d", got)
			}
			if !tt.expectRestart && got != 0 {
				t.Fatalf("expected no restart, got %d", got)
			}
		})
	}
}

func TestSaveSettingsAdvancedChangeRestarts(t *testing.T) {
	m, sup := newTestManager(t)

	advanced := m.GetAdvancedSettings()
	advanced.MediaMTX.WriteQueueSize = advanced.MediaMTX.WriteQueueSize * 2
	if _, err := m.SaveSettings(SettingsUpdate{Settings: m.GetSettings(), AdvancedSettings: &advanced}); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	if sup.restartCount() != 1 {
		t.Fatalf("tuning change must restart, got %d restarts", sup.restartCount())
	}

	// Saving the identical tuning again is a no-op.
	if _, err := m.SaveSettings(SettingsUpdate{Settings: m.GetSettings(), AdvancedSettings: &advanced}); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	if sup.restartCount() != 1 {
		t.Fatalf("unchanged tuning must not restart, got %d restarts", sup.restartCount())
	}
}

func TestRestartParamsOmitCredentialsWhenAuthDisabled(t *testing.T) {
	m, _ := newTestManager(t)

	params := m.RestartParams()
	if params.RTSPUsername != "" || params.RTSPPassword != "" {
		t.Fatalf("credentials must be empty while RTSP auth is off, got %q/%q",
			params.RTSPUsername, params.RTSPPassword)
	}

	settings := m.GetSettings()
	settings.RTSPAuthEnabled = true
	if _, err := m.SaveSettings(SettingsUpdate{Settings: settings}); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	params = m.RestartParams()
	if params.RTSPUsername != "admin" || params.RTSPPassword != "admin" {
		t.Fatalf("credentials missing with RTSP auth on, got %q/%q",
			params.RTSPUsername, params.RTSPPassword)
	}
}

func TestSaveLayoutsRestartGating(t *testing.T) {
	m, sup := newTestManager(t)

	layouts := m.GetLayouts()
	if len(layouts) != 1 {
		t.Fatalf("expected the default layout, got %d", len(layouts))
	}

	// Cosmetic editor state never restarts the media server.
	layouts[0].SnapToGrid = false
	layouts[0].ShowGrid = false
	layouts[0].ShowSnapshots = false
	layouts[0].Name = "Lobby Wall"
	if _, err := m.SaveLayouts(layouts); err != nil {
		t.Fatalf("save layouts: %v", err)
	}
	if sup.restartCount() != 0 {
		t.Fatalf("cosmetic layout change must not restart, got %d", sup.restartCount())
	}

	// Enabling a layout changes the published path set.
	layouts[0].Enabled = true
	layouts[0].Cameras = []models.LayoutCamera{{CameraID: 1, Width: 0.5, Height: 0.5}}
	if _, err := m.SaveLayouts(layouts); err != nil {
		t.Fatalf("save layouts: %v", err)
	}
	if sup.restartCount() != 1 {
		t.Fatalf("stream-affecting layout change must restart, got %d", sup.restartCount())
	}

	// Tile geometry is part of the stream output too.
	layouts = m.GetLayouts()
	layouts[0].Cameras[0].X = 0.5
	if _, err := m.SaveLayouts(layouts); err != nil {
		t.Fatalf("save layouts: %v", err)
	}
	if sup.restartCount() != 2 {
		t.Fatalf("tile move must restart, got %d", sup.restartCount())
	}
}

// Two settings saves issued from separate goroutines: one cosmetic, one
// restart-affecting. Whichever order they land in, exactly one restart
// must result, because gating is computed under the lock against the
// state each save replaces. The handshake pins the order so the second
// writer's document is built from the state it actually overwrites.
func TestSaveSettingsConcurrentSavesSingleRestart(t *testing.T) {
	orders := []struct {
		name       string
		themeFirst bool
	}{
		{"cosmetic save lands first", true},
		{"port save lands first", false},
	}

	for _, order := range orders {
		t.Run(order.name, func(t *testing.T) {
			m, sup := newTestManager(t)

			firstDone := make(chan struct{})
			var wg sync.WaitGroup
			wg.Add(2)

			saveTheme := func(wait bool) {
				defer wg.Done()
				if wait {
					<-firstDone
				}
				settings := m.GetSettings()
				settings.Theme = "nord"
				if _, err := m.SaveSettings(SettingsUpdate{Settings: settings}); err != nil {
					t.Errorf("theme save: %v", err)
				}
				if !wait {
					close(firstDone)
				}
			}
			savePort := func(wait bool) {
				defer wg.Done()
				if wait {
					<-firstDone
				}
				settings := m.GetSettings()
				settings.RTSPPort = 9554
				if _, err := m.SaveSettings(SettingsUpdate{Settings: settings}); err != nil {
					t.Errorf("port save: %v", err)
				}
				if !wait {
					close(firstDone)
				}
			}

			go saveTheme(!order.themeFirst)
			go savePort(order.themeFirst)
			wg.Wait()

			if got := sup.restartCount(); got != 1 {
				t.Fatalf("expected exactly one restart, got %d", got)
			}
			final := m.GetSettings()
			if final.RTSPPort != 9554 {
				t.Fatalf("port change lost, got %d", final.RTSPPort)
			}
			if final.Theme != "nord" {
				t.Fatalf("theme change lost, got %q", final.Theme)
			}
		})
	}
}
