package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/fulfillment/internal/health"
	"github.com/vladislavdragonenkov/fulfillment/internal/version"
)

func TestMetricsServer_Endpoints(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "fulfillment_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	srv := newMetricsServer(registry, healthHandler)
	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	cases := []struct {
		path     string
		wantCode int
		wantBody string
	}{
		{path: "/metrics", wantCode: http.StatusOK, wantBody: "fulfillment_test_total 1"},
		{path: "/healthz", wantCode: http.StatusOK, wantBody: `"status":"healthy"`},
		{path: "/livez", wantCode: http.StatusOK, wantBody: "ok"},
		{path: "/readyz", wantCode: http.StatusOK, wantBody: "ready"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			code, body := httpGet(t, ts.URL+tc.path)
			if code != tc.wantCode {
				t.Fatalf("expected status %d, got %d", tc.wantCode, code)
			}
			if !contains(body, tc.wantBody) {
				t.Fatalf("expected body to contain %q, got %q", tc.wantBody, body)
			}
		})
	}
}

func TestMetricsServer_ReadyzReflectsUnhealthyDependency(t *testing.T) {
	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("outbox", healthcheck.NewBacklogChecker("outbox", 10, func() (int, error) {
		return 0, context.DeadlineExceeded
	}))
	ts := httptest.NewServer(newMetricsServer(prometheus.NewRegistry(), healthHandler).Handler)
	defer ts.Close()

	if code, _ := httpGet(t, ts.URL+"/readyz"); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	if code, _ := httpGet(t, ts.URL+"/livez"); code != http.StatusOK {
		t.Fatalf("liveness must not depend on checks, got %d", code)
	}
}

func TestShutdownHTTP_NilServer(_ *testing.T) {
	shutdownHTTP(nil, time.Second, log.WithField("test", "http-nil"))
}

func TestShutdownHTTP_WithServer(t *testing.T) {
	ts := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("test"))
	}))
	ts.Start()
	defer ts.Close()

	if code, _ := httpGet(t, ts.URL); code != http.StatusOK {
		t.Fatalf("server should be running, got %d", code)
	}

	shutdownHTTP(ts.Config, 0, log.WithField("test", "http-shutdown"))

	if _, err := http.Get(ts.URL); err == nil {
		t.Fatal("server should be stopped after shutdown")
	}
}

func httpGet(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}
