package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Waelalhamad/HydroQuest-Project/internal/modules/telemetry/types"
)

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error { return p.err }

func newTestServer(t *testing.T, store Pinger, metrics http.Handler, extra func(*http.ServeMux)) *httptest.Server {
	t.Helper()
	mux := NewMux(store, metrics)
	if extra != nil {
		extra(mux)
	}
	srv := NewServer(":0", mux, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func mustGetJSON[T any](t *testing.T, url string, out *T) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	return resp
}

func TestHealthz(t *testing.T) {
	t.Run("ok when store answers", func(t *testing.T) {
		ts := newTestServer(t, fakePinger{}, nil, nil)
		var body map[string]string
		resp := mustGetJSON(t, ts.URL+"/healthz", &body)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
		if body["status"] != "ok" {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("503 when store is unavailable", func(t *testing.T) {
		ts := newTestServer(t, fakePinger{err: types.ErrStoreUnavailable}, nil, nil)
		var body map[string]string
		resp := mustGetJSON(t, ts.URL+"/healthz", &body)
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", resp.StatusCode)
		}
		if body["error"] != http.StatusText(http.StatusServiceUnavailable) || body["message"] != "store unavailable" {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("POST is not allowed", func(t *testing.T) {
		ts := newTestServer(t, fakePinger{}, nil, nil)
		resp, err := http.Post(ts.URL+"/healthz", "application/json", nil)
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", resp.StatusCode)
		}
	})
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "hydroquest_up 1\n")
	})

	t.Run("mounted", func(t *testing.T) {
		ts := newTestServer(t, fakePinger{}, metrics, nil)
		resp, err := http.Get(ts.URL + "/metrics")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK || !strings.Contains(string(b), "hydroquest_up 1") {
			t.Errorf("status = %d body = %q", resp.StatusCode, b)
		}
	})

	t.Run("absent without handler", func(t *testing.T) {
		ts := newTestServer(t, fakePinger{}, nil, nil)
		resp, err := http.Get(ts.URL + "/metrics")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})
}

func TestRequestLoggerAllowsWebSocketUpgrade(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ts := newTestServer(t, fakePinger{}, nil, func(mux *http.ServeMux) {
		mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
			ws, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer ws.Close()
			_, msg, err := ws.ReadMessage()
			if err != nil {
				return
			}
			_ = ws.WriteMessage(websocket.TextMessage, msg)
		})
	})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial through request logger: %v", err)
	}
	defer ws.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Errorf("status = %d, want 101", resp.StatusCode)
	}

	if err := ws.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, got, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "ping" {
		t.Errorf("echo = %q, want ping", got)
	}
}

func TestStatusRecorder_HijackUnsupported(t *testing.T) {
	sr := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := sr.Hijack(); err == nil {
		t.Errorf("Hijack on recorder = %v, want error", err)
	}
}
