package manager

import (
	"golang.org/x/crypto/bcrypt"
)

// IsSetupRequired reports whether the first-run auth setup has never
// been completed or skipped.
func (m *Manager) IsSetupRequired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.auth.SetupCompleted
}

// SkipSetup disables auth and marks first-run setup as completed.
func (m *Manager) SkipSetup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.auth.Enabled = false
	m.auth.Username = ""
	m.auth.PasswordHash = ""
	m.auth.SetupCompleted = true
	return m.saveLocked()
}

// SetupUser stores the initial credentials and enables auth.
func (m *Manager) SetupUser(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.auth.Username = username
	m.auth.PasswordHash = string(hash)
	m.auth.Enabled = true
	m.auth.SetupCompleted = true
	return m.saveLocked()
}

// AuthEnabled reports whether web UI auth is currently on.
func (m *Manager) AuthEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.auth.Enabled
}

// VerifyLogin checks credentials against the stored hash. When auth is
// disabled every login succeeds.
func (m *Manager) VerifyLogin(username, password string) bool {
	m.mu.Lock()
	enabled := m.auth.Enabled
	storedUser := m.auth.Username
	storedHash := m.auth.PasswordHash
	m.mu.Unlock()

	if !enabled {
		return true
	}
	if username != storedUser || storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)) == nil
}
