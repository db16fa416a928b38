// Package mediamtx manages the MediaMTX subprocess: its runtime API
// client, declarative configuration generation and process lifecycle.
package mediamtx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/pkg/config"
	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/pkg/logging"
)

// PathSource identifies the origin of a path on the media server.
type PathSource struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// PathStat is one path entry returned by the runtime API.
type PathStat struct {
	Name          string            `json:"name"`
	Ready         bool              `json:"ready"`
	Source        *PathSource       `json:"source"`
	Tracks        []string          `json:"tracks"`
	Readers       []json.RawMessage `json:"readers"`
	BytesReceived int64             `json:"bytesReceived"`
	BytesSent     int64             `json:"bytesSent"`
}

// SourceType returns the source type or "unknown" when absent.
func (p *PathStat) SourceType() string {
	if p.Source == nil || p.Source.Type == "" {
		return "unknown"
	}
	return p.Source.Type
}

// SessionStat is one client session entry returned by the runtime API.
type SessionStat struct {
	ID         string `json:"id"`
	RemoteAddr string `json:"remoteAddr"`
	Path       string `json:"path"`
	Protocol   string `json:"protocol"`
	Created    string `json:"created"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

// Client talks to the MediaMTX runtime API (v3).
type Client struct {
	BaseURL    string
	httpClient *http.Client
	logger     logging.Logger
}

// NewClient creates a runtime API client. The short timeout keeps a hung
// media server from stalling the polling loop.
func NewClient(logger logging.Logger) *Client {
	apiPort := config.GetEnvInt("MEDIAMTX_API_PORT", 9997)
	return &Client{
		BaseURL: fmt.Sprintf("http://127.0.0.1:%d", apiPort),
		httpClient: &http.Client{
			Timeout: 2 * time.Second,
		},
		logger: logger,
	}
}

func (c *Client) getJSON(endpoint string, out interface{}) error {
	url := strings.TrimRight(c.BaseURL, "/") + endpoint
	resp, err := c.httpClient.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("runtime API returned %d for %s", resp.StatusCode, endpoint)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ListPaths returns all configured paths with their traffic counters.
func (c *Client) ListPaths() ([]PathStat, error) {
	var result listResponse[PathStat]
	if err := c.getJSON("/v3/paths/list", &result); err != nil {
		return nil, err
	}
	return result.Items, nil
}

// sessionEndpoints maps endpoint name to a protocol override. MediaMTX
// reports RTSP sessions with their own protocol field, HLS and WebRTC
// endpoints do not.
var sessionEndpoints = []struct {
	endpoint string
	protocol string
}{
	{"rtspsessions", ""},
	{"hlssessions", "HLS"},
	{"webrtcsessions", "WebRTC"},
}

// ListSessions returns all active client sessions across protocols.
// Endpoints that fail are skipped, not fatal.
func (c *Client) ListSessions() []SessionStat {
	var all []SessionStat
	for _, ep := range sessionEndpoints {
		var result listResponse[SessionStat]
		if err := c.getJSON("/v3/"+ep.endpoint+"/list", &result); err != nil {
			c.logger.WithFields(logging.Fields{
				"endpoint": ep.endpoint,
				"error":    err,
			}).Debug("Session endpoint unavailable")
			continue
		}
		for _, s := range result.Items {
			if ep.protocol != "" {
				s.Protocol = ep.protocol
			} else if s.Protocol == "" {
				s.Protocol = "RTSP"
			}
			all = append(all, s)
		}
	}
	return all
}
