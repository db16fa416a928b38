package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/pkg/logging"
	"github.com/BigTonyTones/Tonys-Onvf-RTSP-Server/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func TestSetupServiceRouter(t *testing.T) {
	logger := logging.NewLogger()
	hc := monitoring.NewHealthChecker("svc", "v1")
	mc := monitoring.NewMetricsCollector("svc")
	r := SetupServiceRouter(logger, "svc", hc, mc)
	r.GET("/ping", func(c *gin.Context) { c.String(200, "pong") })

	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), "GET", "/ping", nil)
	r.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	logger := logging.NewLogger()
	hc := monitoring.NewHealthChecker("svc", "v1")
	hc.AddCheck("bad", func() monitoring.CheckResult {
		return monitoring.CheckResult{Status: monitoring.StatusUnhealthy}
	})
	mc := monitoring.NewMetricsCollector("svc")
	r := SetupServiceRouter(logger, "svc", hc, mc)

	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), "GET", "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy service must return 503, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	logger := logging.NewLogger()
	hc := monitoring.NewHealthChecker("svc", "v1")
	mc := monitoring.NewMetricsCollector("svc")
	r := SetupServiceRouter(logger, "svc", hc, mc)

	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), "GET", "/metrics", nil)
	r.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
