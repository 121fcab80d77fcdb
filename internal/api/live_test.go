package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/kiosk-fleet-core/internal/live"
)

// sseEvent is one parsed Server-Sent Event.
type sseEvent struct {
	name string
	data string
}

// readSSE reads events from body until n have arrived or the deadline passes.
func readSSE(t *testing.T, body *bufio.Reader, n int) []sseEvent {
	t.Helper()

	done := make(chan []sseEvent, 1)
	go func() {
		var (
			events []sseEvent
			cur    sseEvent
		)
		for len(events) < n {
			line, err := body.ReadString('\n')
			if err != nil {
				break
			}
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				cur.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				cur.data = strings.TrimPrefix(line, "data: ")
			case line == "":
				events = append(events, cur)
				cur = sseEvent{}
			}
		}
		done <- events
	}()

	select {
	case events := <-done:
		return events
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %d events", n)
		return nil
	}
}

func TestLiveSSE_DeviceStream(t *testing.T) {
	f := testServer(t)
	d := f.pair(t, "Streamer")

	ts := httptest.NewServer(f.router)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/live?device="+strings.ToUpper(d.ID), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET live: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	body := bufio.NewReader(resp.Body)
	events := readSSE(t, body, 2)
	if len(events) != 2 || events[0].name != live.EventReady || events[1].name != live.EventDevice {
		t.Fatalf("events = %+v", events)
	}

	var ready map[string]any
	if err := json.Unmarshal([]byte(events[0].data), &ready); err != nil {
		t.Fatal(err)
	}
	if ready["scope"] != "device" || ready["deviceId"] != d.ID {
		t.Errorf("ready = %v", ready)
	}

	// A rename reaches the open stream.
	if _, err := f.registry.Rename(context.Background(), d.ID, "Renamed"); err != nil {
		t.Fatal(err)
	}
	next := readSSE(t, body, 1)
	if len(next) != 1 || next[0].name != live.EventDevice || !strings.Contains(next[0].data, "Renamed") {
		t.Errorf("after rename = %+v", next)
	}

	if got := f.srv.hub.Stats().Device; got != 1 {
		t.Errorf("open device streams = %d, want 1", got)
	}
}

func TestLiveSSE_BadScope(t *testing.T) {
	f := testServer(t)

	expectError(t, f.do(t, http.MethodGet, "/api/v1/live?device=dev_0123456789ab&pair=123456", "", ""),
		http.StatusBadRequest, ErrCodeBadRequest)
	expectError(t, f.do(t, http.MethodGet, "/api/v1/live?device=bogus", "", ""),
		http.StatusBadRequest, ErrCodeInvalidDevice)
}

func TestLiveWS_GlobalStream(t *testing.T) {
	f := testServer(t)
	f.pair(t, "Wall")

	ts := httptest.NewServer(f.router)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/live/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Errorf("status = %d", resp.StatusCode)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline

	var first, second live.WSMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read ready: %v", err)
	}
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("read state: %v", err)
	}
	if first.Type != live.EventReady || second.Type != live.EventState {
		t.Fatalf("frames = %q, %q", first.Type, second.Type)
	}

	var state live.State
	if err := json.Unmarshal(second.Payload, &state); err != nil {
		t.Fatal(err)
	}
	if len(state.Devices) != 1 || state.Devices[0].Name != "Wall" {
		t.Errorf("state devices = %+v", state.Devices)
	}
}

func TestLiveWS_RejectsBadScopeBeforeUpgrade(t *testing.T) {
	f := testServer(t)

	ts := httptest.NewServer(f.router)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/live/ws?device=bogus"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("response = %+v", resp)
	}
}
