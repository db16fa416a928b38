package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthChecker_Basic(t *testing.T) {
	hc := NewHealthChecker("svc", "v1")
	hc.AddCheck("ok", func() CheckResult { return CheckResult{Status: StatusHealthy} })
	status := hc.CheckHealth()
	if status.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %q", status.Status)
	}
}

func TestHealthChecker_Aggregation(t *testing.T) {
	hc := NewHealthChecker("svc", "v1")
	hc.AddCheck("ok", func() CheckResult { return CheckResult{Status: StatusHealthy} })
	hc.AddCheck("meh", func() CheckResult { return CheckResult{Status: StatusDegraded} })
	if got := hc.CheckHealth().Status; got != StatusDegraded {
		t.Fatalf("expected degraded, got %q", got)
	}

	hc.AddCheck("bad", func() CheckResult { return CheckResult{Status: StatusUnhealthy} })
	if got := hc.CheckHealth().Status; got != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %q", got)
	}
}

func TestHTTPServiceHealthCheck(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) }))
	defer s.Close()
	res := HTTPServiceHealthCheck("svc", s.URL)()
	if res.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %q", res.Status)
	}
}

func TestHTTPServiceHealthCheck_ErrorStatus(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500) }))
	defer s.Close()
	res := HTTPServiceHealthCheck("svc", s.URL)()
	if res.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %q", res.Status)
	}
}

func TestProcessHealthCheck(t *testing.T) {
	alive := true
	check := ProcessHealthCheck("mediamtx", func() bool { return alive })

	if res := check(); res.Status != StatusHealthy {
		t.Fatalf("expected healthy while running, got %q", res.Status)
	}
	alive = false
	// A stopped subprocess is degraded, not unhealthy: the API still works.
	if res := check(); res.Status != StatusDegraded {
		t.Fatalf("expected degraded while stopped, got %q", res.Status)
	}
}

func TestConfigurationHealthCheck(t *testing.T) {
	res := ConfigurationHealthCheck(map[string]string{"SESSION_SECRET": "x"})()
	if res.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %q", res.Status)
	}
	res = ConfigurationHealthCheck(map[string]string{"SESSION_SECRET": ""})()
	if res.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy for missing value, got %q", res.Status)
	}
}
