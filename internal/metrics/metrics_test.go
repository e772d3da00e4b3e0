package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.MessageReceived()
	m.MessageReceived()
	m.MessageProcessed("done")
	m.MessageProcessed("rejected")
	m.MessageProcessed("done")
	m.BroadcastSent(3)
	m.BroadcastSent(0)
	m.BroadcastFailed()
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"received", testutil.ToFloat64(m.messagesReceived), 2},
		{"done", testutil.ToFloat64(m.outcomes.WithLabelValues("done")), 2},
		{"rejected", testutil.ToFloat64(m.outcomes.WithLabelValues("rejected")), 1},
		{"sent", testutil.ToFloat64(m.broadcastSent), 3},
		{"failed", testutil.ToFloat64(m.broadcastFailed), 1},
		{"connections", testutil.ToFloat64(m.activeConnections), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.MessageReceived()
	m.MessageProcessed("failed")
	m.BroadcastSent(1)
	m.BroadcastFailed()
	m.ConnectionOpened()
	m.ConnectionClosed()
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.MessageReceived()

	srv := httptest.NewServer(m.Handler())
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
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), "hydroquest_messages_received_total 1") {
		t.Errorf("exposition missing received counter:\n%s", body)
	}
}
