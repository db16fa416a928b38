package mediamtx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v2"

	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/internal/models"
)

func testCamera(id int, name string, running bool) models.Camera {
	status := models.CameraStatusStopped
	if running {
		status = models.CameraStatusRunning
	}
	return models.Camera{
		ID:            id,
		Name:          name,
		MainStreamURL: "rtsp://cam.local:554/main",
		SubStreamURL:  "rtsp://cam.local:554/sub",
		PathName:      strings.ToLower(name),
		Status:        status,
		MainWidth:     1920,
		MainHeight:    1080,
		SubWidth:      640,
		SubHeight:     480,
		MainFramerate: 30,
		SubFramerate:  15,
	}
}

func writeAndParse(t *testing.T, params ConfigParams) serverConfig {
	t.Helper()

	path := filepath.Join(t.TempDir(), "mediamtx.yml")
	if err := WriteConfig(path, 9997, params); err != nil {
		t.Fatalf("write config: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	var cfg serverConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

func TestWriteConfigEmitsRunningCamerasOnly(t *testing.T) {
	cfg := writeAndParse(t, ConfigParams{
		Cameras: []models.Camera{
			testCamera(1, "front", true),
			testCamera(2, "garage", false),
		},
		RTSPPort:         8554,
		AdvancedSettings: models.DefaultAdvancedSettings(),
	})

	if cfg.RTSPAddress != ":8554" {
		t.Fatalf("rtsp address: got %q", cfg.RTSPAddress)
	}
	if !cfg.API || cfg.APIAddress != ":9997" {
		t.Fatalf("runtime API must be enabled on :9997, got %v %q", cfg.API, cfg.APIAddress)
	}

	for _, want := range []string{"front_main", "front_sub"} {
		p, ok := cfg.Paths[want]
		if !ok {
			t.Fatalf("missing path %q", want)
		}
		if p.Source == "" || p.Source == "publisher" {
			t.Fatalf("proxied path %q must carry the upstream URL, got %q", want, p.Source)
		}
	}
	for _, absent := range []string{"garage_main", "garage_sub"} {
		if _, ok := cfg.Paths[absent]; ok {
			t.Fatalf("stopped camera leaked path %q", absent)
		}
	}
}

func TestWriteConfigTranscodePathPublishes(t *testing.T) {
	cam := testCamera(1, "front", true)
	cam.TranscodeSub = true

	cfg := writeAndParse(t, ConfigParams{
		Cameras:          []models.Camera{cam},
		RTSPPort:         8554,
		AdvancedSettings: models.DefaultAdvancedSettings(),
	})

	sub, ok := cfg.Paths["front_sub"]
	if !ok {
		t.Fatalf("missing transcoded sub path")
	}
	if sub.Source != "publisher" {
		t.Fatalf("transcoded path must be publisher-sourced, got %q", sub.Source)
	}
	if !strings.Contains(sub.RunOnInit, "ffmpeg") || !strings.Contains(sub.RunOnInit, "scale=640:480") {
		t.Fatalf("transcode command malformed: %q", sub.RunOnInit)
	}
	if !sub.RunOnInitRestart {
		t.Fatalf("transcode command must restart on exit")
	}

	// The main path is untouched.
	if cfg.Paths["front_main"].Source != "rtsp://cam.local:554/main" {
		t.Fatalf("main path must still proxy, got %q", cfg.Paths["front_main"].Source)
	}
}

func TestWriteConfigAuthUsers(t *testing.T) {
	base := ConfigParams{
		RTSPPort:         8554,
		AdvancedSettings: models.DefaultAdvancedSettings(),
	}

	cfg := writeAndParse(t, base)
	if len(cfg.AuthInternalUsers) != 0 {
		t.Fatalf("no auth users expected without credentials, got %d", len(cfg.AuthInternalUsers))
	}

	base.RTSPUsername = "viewer"
	base.RTSPPassword = "secret"
	cfg = writeAndParse(t, base)
	if len(cfg.AuthInternalUsers) != 2 {
		t.Fatalf("expected credential user plus localhost bypass, got %d", len(cfg.AuthInternalUsers))
	}
	if cfg.AuthInternalUsers[0].User != "viewer" || cfg.AuthInternalUsers[0].Pass != "secret" {
		t.Fatalf("credential user wrong: %+v", cfg.AuthInternalUsers[0])
	}
	// The runtime API poller connects from localhost without credentials.
	local := cfg.AuthInternalUsers[1]
	if local.User != "any" || len(local.IPs) == 0 {
		t.Fatalf("localhost bypass user wrong: %+v", local)
	}
}

func TestWriteConfigLayoutPaths(t *testing.T) {
	cfg := writeAndParse(t, ConfigParams{
		RTSPPort: 8554,
		Layouts: []models.Layout{
			{ID: "matrix", Enabled: true, Resolution: "1920x1080", OutputFramerate: 5},
			{ID: "lobby", Enabled: false, Resolution: "1280x720", OutputFramerate: 5},
		},
		AdvancedSettings: models.DefaultAdvancedSettings(),
	})

	p, ok := cfg.Paths["layout_matrix"]
	if !ok {
		t.Fatalf("enabled layout must produce a path")
	}
	if p.Source != "publisher" || !strings.Contains(p.RunOnInit, "layout_matrix") {
		t.Fatalf("layout path wrong: %+v", p)
	}
	if _, ok := cfg.Paths["layout_lobby"]; ok {
		t.Fatalf("disabled layout must not produce a path")
	}
}

func TestWriteConfigDebugModeRaisesLogLevel(t *testing.T) {
	params := ConfigParams{RTSPPort: 8554, AdvancedSettings: models.DefaultAdvancedSettings()}

	if cfg := writeAndParse(t, params); cfg.LogLevel != "warn" {
		t.Fatalf("default log level: got %q", cfg.LogLevel)
	}
	params.DebugMode = true
	if cfg := writeAndParse(t, params); cfg.LogLevel != "info" {
		t.Fatalf("debug log level: got %q", cfg.LogLevel)
	}
}
