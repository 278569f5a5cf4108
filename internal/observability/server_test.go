package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("trident", reg)
	m.RecordFill()

	ts := httptest.NewServer(NewServer(":0", reg).Handler)
	defer ts.Close()

	body := get(t, ts.URL+"/health")
	if body != "ok" {
		t.Errorf("/health = %q, want ok", body)
	}
	body = get(t, ts.URL+"/metrics")
	if !strings.Contains(body, "trident_") {
		t.Errorf("/metrics missing namespace, got %q", body)
	}
}

func get(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}
