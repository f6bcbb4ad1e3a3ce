package metric

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestRegistryHandlerExposesMetrics(t *testing.T) {
	r := NewRegistry()
	r.ObserveCommand("GET", false, 0.001)
	r.ObserveCommand("SET", true, 0.002)
	r.KeysLive.Set(42)

	body := scrape(t, r)

	for _, want := range []string{
		`slatekv_commands_total{cmd="GET",status="ok"} 1`,
		`slatekv_commands_total{cmd="SET",status="error"} 1`,
		`slatekv_keys_live 42`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestObserveSnapshot(t *testing.T) {
	r := NewRegistry()

	r.ObserveSnapshot(nil, 0.5, 100)
	r.ObserveSnapshot(errors.New("boom"), 0, 0)

	// Both attempts counted, only the success moves the sequence.
	body := scrape(t, r)

	for _, want := range []string{
		`slatekv_snapshots_total{status="ok"} 1`,
		`slatekv_snapshots_total{status="error"} 1`,
		`slatekv_snapshot_last_sequence 100`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMultipleRegistriesDoNotCollide(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()
	a.ConnectionsTotal.Inc()
	b.ConnectionsTotal.Inc()
}
