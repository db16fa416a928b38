package manager

import (
	"net/netip"
	"sort"
	"strings"

	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/internal/models"
)

// cleanRemoteAddr strips the port (and IPv6 brackets) from a remote
// address as reported by the media server.
func cleanRemoteAddr(remoteAddr string) string {
	if remoteAddr == "" {
		return remoteAddr
	}
	if strings.HasPrefix(remoteAddr, "[") {
		if end := strings.Index(remoteAddr, "]"); end > 0 {
			return remoteAddr[1:end]
		}
	}
	if strings.Contains(remoteAddr, ".") && strings.Contains(remoteAddr, ":") {
		if idx := strings.LastIndex(remoteAddr, ":"); idx > 0 {
			return remoteAddr[:idx]
		}
	}
	return remoteAddr
}

// IsIPWhitelisted checks an address against the configured whitelist.
// Entries may be single addresses or CIDR prefixes.
func (m *Manager) IsIPWhitelisted(address string) bool {
	if address == "" || address == "Unknown" {
		return false
	}

	address = cleanRemoteAddr(address)
	if address == "::1" || address == "localhost" {
		address = "127.0.0.1"
	}

	m.mu.Lock()
	whitelist := make([]string, len(m.settings.IPWhitelist))
	copy(whitelist, m.settings.IPWhitelist)
	m.mu.Unlock()

	if len(whitelist) == 0 {
		return false
	}

	clientIP, err := netip.ParseAddr(address)
	if err != nil {
		return false
	}

	for _, entry := range whitelist {
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				continue
			}
			if prefix.Contains(clientIP) {
				return true
			}
			continue
		}
		entryIP, err := netip.ParseAddr(entry)
		if err != nil {
			continue
		}
		if entryIP == clientIP {
			return true
		}
	}
	return false
}

// GetActiveSessions lists all client sessions across protocols with
// whitelist status attached, most recent first.
func (m *Manager) GetActiveSessions() []models.Session {
	stats := m.sessions.ListSessions()

	out := make([]models.Session, 0, len(stats))
	for _, s := range stats {
		clean := cleanRemoteAddr(s.RemoteAddr)
		out = append(out, models.Session{
			ID:          s.ID,
			RemoteAddr:  s.RemoteAddr,
			CleanIP:     clean,
			Path:        s.Path,
			Protocol:    s.Protocol,
			Created:     s.Created,
			Whitelisted: m.IsIPWhitelisted(clean),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Created > out[j].Created
	})
	return out
}
