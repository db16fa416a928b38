// Package models contains the shared data structures for cameras,
// settings, layouts and stream analytics.
package models

import "time"

// Camera represents one virtual ONVIF camera backed by an upstream RTSP feed.
type Camera struct {
	ID            int    `json:"id"`
	UUID          string `json:"uuid"`
	Name          string `json:"name"`
	MainStreamURL string `json:"mainStreamUrl"`
	SubStreamURL  string `json:"subStreamUrl"`
	RTSPPort      int    `json:"rtspPort"`
	ONVIFPort     int    `json:"onvifPort"`
	PathName      string `json:"pathName"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	AutoStart     bool   `json:"autoStart"`
	Status        string `json:"status,omitempty"`

	MainWidth     int `json:"mainWidth"`
	MainHeight    int `json:"mainHeight"`
	SubWidth      int `json:"subWidth"`
	SubHeight     int `json:"subHeight"`
	MainFramerate int `json:"mainFramerate"`
	SubFramerate  int `json:"subFramerate"`

	ONVIFUsername string `json:"onvifUsername"`
	ONVIFPassword string `json:"onvifPassword"`
	TranscodeMain bool   `json:"transcodeMain"`
	TranscodeSub  bool   `json:"transcodeSub"`
}

const (
	CameraStatusRunning = "running"
	CameraStatusStopped = "stopped"
)

// IsRunning reports whether the camera should be included in the media
// server configuration.
func (c *Camera) IsRunning() bool {
	return c.Status == CameraStatusRunning
}

// Settings holds the global server settings persisted in the config file.
type Settings struct {
	ServerIP        string   `json:"serverIp"`
	Theme           string   `json:"theme"`
	GridColumns     int      `json:"gridColumns"`
	RTSPPort        int      `json:"rtspPort"`
	GlobalUsername  string   `json:"globalUsername"`
	GlobalPassword  string   `json:"globalPassword"`
	RTSPAuthEnabled bool     `json:"rtspAuthEnabled"`
	DebugMode       bool     `json:"debugMode"`
	IPWhitelist     []string `json:"ipWhitelist"`
}

// DefaultSettings returns the settings applied when no config file exists.
func DefaultSettings() Settings {
	return Settings{
		ServerIP:       "localhost",
		Theme:          "dracula",
		GridColumns:    3,
		RTSPPort:       8554,
		GlobalUsername: "admin",
		GlobalPassword: "admin",
	}
}

// MediaMTXTuning carries advanced tuning knobs written into the media
// server configuration verbatim.
type MediaMTXTuning struct {
	WriteQueueSize     int    `json:"writeQueueSize" yaml:"writeQueueSize"`
	ReadTimeout        string `json:"readTimeout" yaml:"readTimeout"`
	WriteTimeout       string `json:"writeTimeout" yaml:"writeTimeout"`
	UDPMaxPayloadSize  int    `json:"udpMaxPayloadSize" yaml:"udpMaxPayloadSize"`
	HLSSegmentCount    int    `json:"hlsSegmentCount" yaml:"hlsSegmentCount"`
	HLSSegmentDuration string `json:"hlsSegmentDuration" yaml:"hlsSegmentDuration"`
	HLSPartDuration    string `json:"hlsPartDuration" yaml:"hlsPartDuration"`
}

// FFmpegTuning carries the argument fragments used when building
// transcode commands.
type FFmpegTuning struct {
	GlobalArgs  string `json:"globalArgs"`
	InputArgs   string `json:"inputArgs"`
	ProcessArgs string `json:"processArgs"`
}

// AdvancedSettings groups the tuning sections.
type AdvancedSettings struct {
	MediaMTX MediaMTXTuning `json:"mediamtx"`
	FFmpeg   FFmpegTuning   `json:"ffmpeg"`
}

// DefaultAdvancedSettings returns the built-in tuning defaults.
func DefaultAdvancedSettings() AdvancedSettings {
	return AdvancedSettings{
		MediaMTX: MediaMTXTuning{
			WriteQueueSize:     32768,
			ReadTimeout:        "30s",
			WriteTimeout:       "30s",
			UDPMaxPayloadSize:  1472,
			HLSSegmentCount:    3,
			HLSSegmentDuration: "1s",
			HLSPartDuration:    "200ms",
		},
		FFmpeg: FFmpegTuning{
			GlobalArgs:  "-hide_banner -loglevel error",
			InputArgs:   "-rtsp_transport tcp -timeout 10000000",
			ProcessArgs: "-c:v libx264 -preset ultrafast -tune zerolatency -g 30",
		},
	}
}

// LayoutCamera positions one camera tile inside a composite layout.
type LayoutCamera struct {
	CameraID int     `json:"cameraId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
}

// Layout describes one composite grid stream assembled from camera tiles.
type Layout struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Enabled         bool           `json:"enabled"`
	Resolution      string         `json:"resolution"`
	Cameras         []LayoutCamera `json:"cameras"`
	SnapToGrid      bool           `json:"snapToGrid"`
	ShowGrid        bool           `json:"showGrid"`
	ShowSnapshots   bool           `json:"showSnapshots"`
	OutputFramerate int            `json:"outputFramerate"`
}

// DefaultLayout returns the single layout created when none are configured.
func DefaultLayout() Layout {
	return Layout{
		ID:              "matrix",
		Name:            "Default Layout",
		Resolution:      "1920x1080",
		Cameras:         []LayoutCamera{},
		SnapToGrid:      true,
		ShowGrid:        true,
		ShowSnapshots:   true,
		OutputFramerate: 5,
	}
}

// AuthConfig holds the web UI auth state persisted in the config file.
type AuthConfig struct {
	Enabled        bool   `json:"enabled"`
	Username       string `json:"username,omitempty"`
	PasswordHash   string `json:"password_hash,omitempty"`
	SetupCompleted bool   `json:"setupCompleted"`
}

// PathAnalytics is the per-path health view derived from successive
// media server stat samples.
type PathAnalytics struct {
	Ready         bool          `json:"ready"`
	Tracks        []string      `json:"tracks"`
	Readers       int           `json:"readers"`
	Source        string        `json:"source"`
	BytesReceived int64         `json:"bytesReceived"`
	BytesSent     int64         `json:"bytesSent"`
	BitrateKbps   float64       `json:"bitrate"`
	Stale         bool          `json:"stale"`
	LastActive    time.Time     `json:"-"`
	SinceActive   time.Duration `json:"-"`
}

// Session describes one active client session on the media server.
type Session struct {
	ID          string `json:"id"`
	RemoteAddr  string `json:"remoteAddr"`
	CleanIP     string `json:"cleanIp"`
	Path        string `json:"path"`
	Protocol    string `json:"protocol"`
	Created     string `json:"created"`
	Whitelisted bool   `json:"whitelisted"`
}
