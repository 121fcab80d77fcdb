package live

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWSEmitter_StreamsUntilClientCloses(t *testing.T) {
	e := newEnv(t)
	hub := NewHub(e.src, fastOptions)

	served := make(chan error, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			served <- err
			return
		}
		emitter := NewWSEmitter(conn, WSOptions{WriteTimeout: time.Second, MaxMessageSize: 1024})
		defer emitter.Close() //nolint:errcheck // Test cleanup

		ctx, cancel := emitter.Watch(r.Context())
		defer cancel()
		served <- hub.Serve(ctx, Scope{Kind: ScopeGlobal}, emitter)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	for _, want := range []string{EventReady, EventState} {
		var msg WSMessage
		//nolint:errcheck // Read deadline failures surface in ReadJSON
		client.SetReadDeadline(time.Now().Add(waitFor))
		if err := client.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		if msg.Type != want {
			t.Fatalf("message type = %q, want %q", msg.Type, want)
		}
		if len(msg.Payload) == 0 || msg.Timestamp == "" {
			t.Errorf("message %q missing payload or timestamp", msg.Type)
		}
	}
	if got := hub.Stats(); got.Global != 1 {
		t.Errorf("Stats() = %+v", got)
	}

	client.Close()

	select {
	case err := <-served:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(waitFor):
		t.Fatal("stream did not stop after client closed")
	}
	if got := hub.Stats(); got.Total() != 0 {
		t.Errorf("Stats() after close = %+v", got)
	}
}
