package manager

import (
	"testing"

	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/pkg/logging"
)

func TestSetupUserEnablesAuth(t *testing.T) {
	m, _ := newTestManager(t)

	if !m.IsSetupRequired() {
		t.Fatalf("fresh install must require setup")
	}
	if m.AuthEnabled() {
		t.Fatalf("auth must start disabled")
	}

	if err := m.SetupUser("admin", "hunter2"); err != nil {
		t.Fatalf("setup user: %v", err)
	}

	if m.IsSetupRequired() {
		t.Fatalf("setup must be marked complete")
	}
	if !m.AuthEnabled() {
		t.Fatalf("auth must be enabled after setup")
	}
	if !m.VerifyLogin("admin", "hunter2") {
		t.Fatalf("valid credentials rejected")
	}
	if m.VerifyLogin("admin", "wrong") {
		t.Fatalf("wrong password accepted")
	}
	if m.VerifyLogin("intruder", "hunter2") {
		t.Fatalf("wrong username accepted")
	}
}

func TestSkipSetupDisablesAuth(t *testing.T) {
	m, _ := newTestManager(t)

	if err := m.SkipSetup(); err != nil {
		t.Fatalf("skip setup: %v", err)
	}

	if m.IsSetupRequired() {
		t.Fatalf("skipped setup must still count as complete")
	}
	if m.AuthEnabled() {
		t.Fatalf("auth must stay disabled after skip")
	}
	// With auth off every login passes.
	if !m.VerifyLogin("anyone", "anything") {
		t.Fatalf("login must succeed while auth is disabled")
	}
}

func TestAuthStateSurvivesReload(t *testing.T) {
	m, _ := newTestManager(t)

	if err := m.SetupUser("admin", "hunter2"); err != nil {
		t.Fatalf("setup user: %v", err)
	}

	m2, err := New(&fakeSupervisor{}, &fakeSessions{}, logging.NewLogger())
	if err != nil {
		t.Fatalf("manager reload: %v", err)
	}
	if m2.IsSetupRequired() {
		t.Fatalf("setup completion lost across reload")
	}
	if !m2.VerifyLogin("admin", "hunter2") {
		t.Fatalf("stored credentials lost across reload")
	}
}
