package mediamtx

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/internal/models"
)

// serverConfig is the top-level MediaMTX configuration document. Field
// order is preserved in the written file.
type serverConfig struct {
	RTSPAddress   string `yaml:"rtspAddress"`
	RTPAddress    string `yaml:"rtpAddress"`
	RTCPAddress   string `yaml:"rtcpAddress"`
	WebRTCAddress string `yaml:"webrtcAddress"`
	HLSAddress    string `yaml:"hlsAddress"`

	HLSAlwaysRemux     bool     `yaml:"hlsAlwaysRemux"`
	HLSVariant         string   `yaml:"hlsVariant"`
	HLSSegmentCount    int      `yaml:"hlsSegmentCount"`
	HLSSegmentDuration string   `yaml:"hlsSegmentDuration"`
	HLSPartDuration    string   `yaml:"hlsPartDuration"`
	HLSSegmentMaxSize  string   `yaml:"hlsSegmentMaxSize"`
	HLSAllowOrigins    []string `yaml:"hlsAllowOrigins"`

	API        bool   `yaml:"api"`
	APIAddress string `yaml:"apiAddress"`

	RTSPTransports []string `yaml:"rtspTransports"`

	ReadTimeout       string `yaml:"readTimeout"`
	WriteTimeout      string `yaml:"writeTimeout"`
	WriteQueueSize    int    `yaml:"writeQueueSize"`
	UDPMaxPayloadSize int    `yaml:"udpMaxPayloadSize"`

	LogLevel string `yaml:"logLevel"`

	AuthInternalUsers []authUser `yaml:"authInternalUsers,omitempty"`

	Paths map[string]pathConfig `yaml:"paths"`
}

type authUser struct {
	User        string           `yaml:"user"`
	Pass        string           `yaml:"pass,omitempty"`
	IPs         []string         `yaml:"ips,omitempty"`
	Permissions []authPermission `yaml:"permissions"`
}

type authPermission struct {
	Action string `yaml:"action"`
}

type pathConfig struct {
	Source                     string `yaml:"source,omitempty"`
	RTSPTransport              string `yaml:"rtspTransport,omitempty"`
	SourceOnDemand             bool   `yaml:"sourceOnDemand"`
	SourceOnDemandStartTimeout string `yaml:"sourceOnDemandStartTimeout,omitempty"`
	SourceOnDemandCloseAfter   string `yaml:"sourceOnDemandCloseAfter,omitempty"`
	Record                     bool   `yaml:"record"`
	RunOnInit                  string `yaml:"runOnInit,omitempty"`
	RunOnInitRestart           bool   `yaml:"runOnInitRestart,omitempty"`
}

// ConfigParams is the restart request payload: everything needed to
// regenerate the declarative config from scratch.
type ConfigParams struct {
	Cameras          []models.Camera
	RTSPPort         int
	RTSPUsername     string
	RTSPPassword     string
	Layouts          []models.Layout
	DebugMode        bool
	AdvancedSettings models.AdvancedSettings
}

// WriteConfig regenerates the MediaMTX configuration file from the
// current camera and layout state. One path pair (main/sub) is emitted
// per running camera plus one path per enabled layout.
func WriteConfig(path string, apiPort int, params ConfigParams) error {
	tuning := params.AdvancedSettings.MediaMTX

	cfg := serverConfig{
		RTSPAddress:   fmt.Sprintf(":%d", params.RTSPPort),
		RTPAddress:    ":18000",
		RTCPAddress:   ":18001",
		WebRTCAddress: ":8889",
		HLSAddress:    ":8888",

		HLSAlwaysRemux:     true,
		HLSVariant:         "fmp4",
		HLSSegmentCount:    tuning.HLSSegmentCount,
		HLSSegmentDuration: tuning.HLSSegmentDuration,
		HLSPartDuration:    tuning.HLSPartDuration,
		HLSSegmentMaxSize:  "50M",
		HLSAllowOrigins:    []string{"*"},

		API:        true,
		APIAddress: fmt.Sprintf(":%d", apiPort),

		RTSPTransports: []string{"tcp"},

		ReadTimeout:       tuning.ReadTimeout,
		WriteTimeout:      tuning.WriteTimeout,
		WriteQueueSize:    tuning.WriteQueueSize,
		UDPMaxPayloadSize: tuning.UDPMaxPayloadSize,

		LogLevel: "warn",

		Paths: make(map[string]pathConfig),
	}
	if params.DebugMode {
		cfg.LogLevel = "info"
	}

	if params.RTSPUsername != "" || params.RTSPPassword != "" {
		cfg.AuthInternalUsers = []authUser{
			{
				User: params.RTSPUsername,
				Pass: params.RTSPPassword,
				Permissions: []authPermission{
					{Action: "read"},
					{Action: "publish"},
					{Action: "playback"},
				},
			},
			{
				User: "any",
				IPs:  []string{"127.0.0.1", "::1"},
				Permissions: []authPermission{
					{Action: "read"},
					{Action: "publish"},
					{Action: "api"},
				},
			},
		}
	}

	for _, cam := range params.Cameras {
		if !cam.IsRunning() {
			continue
		}
		addCameraPath(cfg.Paths, cam.PathName+"_main", cam.MainStreamURL,
			cam.TranscodeMain, params, cam.MainWidth, cam.MainHeight, cam.MainFramerate)
		addCameraPath(cfg.Paths, cam.PathName+"_sub", cam.SubStreamURL,
			cam.TranscodeSub, params, cam.SubWidth, cam.SubHeight, cam.SubFramerate)
	}

	for _, layout := range params.Layouts {
		if !layout.Enabled || layout.ID == "" {
			continue
		}
		cfg.Paths["layout_"+layout.ID] = pathConfig{
			Source:           "publisher",
			RunOnInit:        layoutCommand(layout, params),
			RunOnInitRestart: true,
			RTSPTransport:    "tcp",
		}
	}

	out, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}

func addCameraPath(paths map[string]pathConfig, name, source string, transcode bool, params ConfigParams, width, height, framerate int) {
	if transcode {
		paths[name] = pathConfig{
			Source:           "publisher",
			RunOnInit:        transcodeCommand(source, name, params, width, height, framerate),
			RunOnInitRestart: true,
			RTSPTransport:    "tcp",
		}
		return
	}
	paths[name] = pathConfig{
		Source:                     source,
		RTSPTransport:              "tcp",
		SourceOnDemand:             false,
		SourceOnDemandStartTimeout: "10s",
		SourceOnDemandCloseAfter:   "10s",
	}
}

// transcodeCommand assembles the republish command for a transcoded
// stream from the configured argument fragments.
func transcodeCommand(source, destPath string, params ConfigParams, width, height, framerate int) string {
	ff := params.AdvancedSettings.FFmpeg
	dest := fmt.Sprintf("rtsp://127.0.0.1:%d/%s", params.RTSPPort, destPath)

	parts := []string{
		"ffmpeg",
		ff.GlobalArgs,
		ff.InputArgs,
		"-i", source,
		fmt.Sprintf("-vf scale=%d:%d", width, height),
		ff.ProcessArgs,
		fmt.Sprintf("-r %d", framerate),
		"-f rtsp", dest,
	}
	return strings.Join(parts, " ")
}

// layoutCommand assembles the compositor command publishing a grid
// layout stream back into the server.
func layoutCommand(layout models.Layout, params ConfigParams) string {
	ff := params.AdvancedSettings.FFmpeg
	dest := fmt.Sprintf("rtsp://127.0.0.1:%d/layout_%s", params.RTSPPort, layout.ID)

	parts := []string{
		"ffmpeg",
		ff.GlobalArgs,
		fmt.Sprintf("-f lavfi -i color=c=black:s=%s:r=%d", layout.Resolution, layout.OutputFramerate),
		ff.ProcessArgs,
		fmt.Sprintf("-r %d", layout.OutputFramerate),
		"-f rtsp", dest,
	}
	return strings.Join(parts, " ")
}
