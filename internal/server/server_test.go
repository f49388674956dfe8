package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	testingclock "k8s.io/utils/clock/testing"
	ws "nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/friendsincode/starboard/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:    "test",
		HTTPBind:       "127.0.0.1",
		HTTPPort:       0,
		BootstrapDelay: 20 * time.Second,
		MinHold:        2 * time.Second,
		FadeDuration:   300 * time.Millisecond,
		SwapDelay:      800 * time.Millisecond,
		ColorDuration:  500 * time.Millisecond,
		FrameRate:      30,
		EventBus:       config.EventBusMemory,
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *testingclock.FakeClock, *httptest.Server) {
	t.Helper()
	fc := testingclock.NewFakeClock(time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC))
	srv, err := newServer(cfg, fc, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		if err := srv.Close(); err != nil {
			t.Errorf("close server: %v", err)
		}
	})
	return srv, fc, ts
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestHealthz(t *testing.T) {
	srv, _, ts := newTestServer(t, testConfig())
	eventually(t, "mount", func() bool { return srv.Overlay().State().Mounted })

	var body map[string]any
	if code := getJSON(t, ts.URL+"/healthz", &body); code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	if body["status"] != "ok" || body["mounted"] != true || body["event_bus"] != "memory" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestScoreboardEventIsAppliedThroughBus(t *testing.T) {
	srv, _, ts := newTestServer(t, testConfig())

	code, body := postJSON(t, ts.URL+"/api/v1/scoreboard/events",
		`{"type":"scoreboard.player_name","payload":{"competitor":2,"value":"Clem"}}`)
	if code != http.StatusAccepted {
		t.Fatalf("unexpected status %d: %v", code, body)
	}
	eventually(t, "name update", func() bool {
		return srv.Scoreboard().Snapshot().Players[1].Name == "Clem"
	})
}

func TestScoreboardEventValidation(t *testing.T) {
	_, _, ts := newTestServer(t, testConfig())

	tests := []struct {
		name string
		body string
		code string
	}{
		{"bad json", `{`, "invalid_json"},
		{"unknown type", `{"type":"scoreboard.score","payload":{}}`, "unknown_event"},
		{"bad slot", `{"type":"scoreboard.subbar_time","payload":{"slot":7,"seconds":3}}`, "invalid_payload"},
		{"missing value", `{"type":"scoreboard.player_color","payload":{"competitor":1}}`, "invalid_payload"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			status, body := postJSON(t, ts.URL+"/api/v1/scoreboard/events", tt.body)
			if status != http.StatusBadRequest || body["error"] != tt.code {
				t.Fatalf("expected 400 %s, got %d %v", tt.code, status, body)
			}
		})
	}
}

func TestOverlayEndpointFollowsRotation(t *testing.T) {
	srv, fc, ts := newTestServer(t, testConfig())
	srv.Scoreboard().SetSubbarLine(0, "Grand final")
	srv.Scoreboard().SetSubbarLine(1, "Best of 7")
	srv.Scoreboard().SetSubbarTime(0, 5)
	eventually(t, "mount", func() bool { return srv.Overlay().State().Mounted })

	var v overlayView
	getJSON(t, ts.URL+"/api/v1/overlay", &v)
	if v.Slot != -1 || v.Text != "Grand final" || v.Players[0].Name != "Player 1" {
		t.Fatalf("unexpected pre-roll view: %+v", v)
	}

	start := fc.Now()
	// NextRotation is published once the next timer is armed.
	fc.Step(20 * time.Second)
	eventually(t, "first rotation", func() bool {
		return srv.Overlay().State().NextRotation.Equal(start.Add(25 * time.Second))
	})
	fc.Step(5 * time.Second)
	eventually(t, "second rotation", func() bool {
		return srv.Overlay().State().NextRotation.Equal(start.Add(55 * time.Second))
	})
	fc.Step(800 * time.Millisecond)
	eventually(t, "swap", func() bool { return srv.Overlay().State().Label == "SubbarLine2" })

	getJSON(t, ts.URL+"/api/v1/overlay", &v)
	if v.Slot != 1 || v.Text != "Best of 7" {
		t.Fatalf("unexpected view after rotation: %+v", v)
	}
}

func TestMountAndUnmountEndpoints(t *testing.T) {
	srv, fc, ts := newTestServer(t, testConfig())
	eventually(t, "mount", func() bool { return srv.Overlay().State().Mounted })

	if code, _ := postJSON(t, ts.URL+"/api/v1/overlay/unmount", ""); code != http.StatusOK {
		t.Fatalf("unmount status %d", code)
	}
	eventually(t, "unmount", func() bool { return !srv.Overlay().State().Mounted })
	eventually(t, "timer release", func() bool { return !fc.HasWaiters() })
	if n := srv.Scoreboard().Subscribers(0); n != 0 {
		t.Fatalf("expected no color observers after unmount, have %d", n)
	}

	if code, _ := postJSON(t, ts.URL+"/api/v1/overlay/mount", ""); code != http.StatusOK {
		t.Fatalf("mount status %d", code)
	}
	eventually(t, "remount", func() bool { return srv.Overlay().State().Mounted })
	if n := srv.Scoreboard().Subscribers(0); n != 1 {
		t.Fatalf("expected one color observer after remount, have %d", n)
	}
}

func TestPreviewServerArmsNothing(t *testing.T) {
	cfg := testConfig()
	cfg.Preview = true
	srv, fc, _ := newTestServer(t, cfg)

	eventually(t, "preview mount", func() bool { return srv.Overlay().State().Mounted })
	if fc.HasWaiters() {
		t.Fatal("preview server armed a timer")
	}
	if n := srv.Scoreboard().Subscribers(0); n != 0 {
		t.Fatalf("preview server subscribed %d observers", n)
	}
}

func TestSeedFileIsLoaded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	seed := "players:\n  - name: Serral\n    color: blue\nsubbar:\n  - text: Finals\n    seconds: 9\n"
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	cfg := testConfig()
	cfg.SeedFile = path
	srv, _, _ := newTestServer(t, cfg)

	snap := srv.Scoreboard().Snapshot()
	if snap.Players[0].Name != "Serral" || snap.Subbar[0].Seconds != 9 {
		t.Fatalf("seed not applied: %+v", snap)
	}
}

func TestMissingSeedFileFails(t *testing.T) {
	cfg := testConfig()
	cfg.SeedFile = filepath.Join(t.TempDir(), "missing.toml")
	if _, err := newServer(cfg, testingclock.NewFakeClock(time.Now()), nil, zerolog.Nop()); err == nil {
		t.Fatal("expected error for missing seed file")
	}
}

func TestOverlayFeedSendsChanges(t *testing.T) {
	srv, fc, ts := newTestServer(t, testConfig())
	srv.Scoreboard().SetSubbarLine(0, "before")
	eventually(t, "mount", func() bool { return srv.Overlay().State().Mounted })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/overlay", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	views := make(chan overlayView, 16)
	go func() {
		for {
			var v overlayView
			if err := wsjson.Read(ctx, conn, &v); err != nil {
				close(views)
				return
			}
			views <- v
		}
	}()

	first := <-views
	if first.Text != "before" {
		t.Fatalf("unexpected initial view: %+v", first)
	}

	srv.Scoreboard().SetSubbarLine(0, "after")
	interval := frameInterval(30)
	deadline := time.After(3 * time.Second)
	for {
		fc.Step(interval)
		select {
		case v, ok := <-views:
			if !ok {
				t.Fatal("feed closed")
			}
			if v.Text == "after" {
				return
			}
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatal("changed view not sent")
		}
	}
}

func TestOverlayJSONShape(t *testing.T) {
	srv, _, ts := newTestServer(t, testConfig())
	eventually(t, "mount", func() bool { return srv.Overlay().State().Mounted })

	resp, err := http.Get(ts.URL + "/api/v1/overlay")
	if err != nil {
		t.Fatalf("get overlay: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)

	for _, key := range []string{`"slot":-1`, `"opacity":1`, `"colors":["#`, `"players":[`, `"next_rotation":`} {
		if !strings.Contains(buf.String(), key) {
			t.Fatalf("overlay JSON missing %s: %s", key, buf.String())
		}
	}
}
