package gateway

import (
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"jianghu-lite/apps/server/internal/codec"
	"jianghu-lite/apps/server/internal/lobby"
	"jianghu-lite/content"
	"jianghu-lite/engine"
	"jianghu-lite/savegame"
)

func newTestServer(t *testing.T, store savegame.Store) (*httptest.Server, *lobby.Lobby) {
	t.Helper()
	log.SetOutput(io.Discard)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	cfg := engine.DefaultConfig()
	cfg.Seed = 3
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg.RandomChance = func(int) float64 { return 0 }
	lby := lobby.New(content.MustLoad(), store, cfg)
	gw := New(lby)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWebSocket)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, lby
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, cmd string) (string, map[string]any) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(cmd)); err != nil {
		t.Fatalf("write: %v", err)
	}
	f := readFrame(t, conn)
	return f.Type, f.Payload
}

func readFrame(t *testing.T, conn *websocket.Conn) codec.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if mt != websocket.BinaryMessage {
		t.Fatalf("message type %d", mt)
	}
	f, err := codec.DecodeFrame(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return f
}

const answers = `{"background":"family","personality":"resilient","ambition":"fame","age":"23-25","talent":"martial"}`

func TestGatewayPlaysARound(t *testing.T) {
	srv, lby := newTestServer(t, savegame.NewMemoryStore())
	conn := dial(t, srv)

	kind, payload := roundTrip(t, conn, `{"type":"state"}`)
	if kind != codec.FrameError {
		t.Fatalf("state without session: %s", kind)
	}

	kind, payload = roundTrip(t, conn, `{"type":"start"}`)
	if kind != codec.FrameState || payload["phase"] != "questionnaire" {
		t.Fatalf("start: %s %v", kind, payload)
	}
	if lby.Count() != 1 {
		t.Fatalf("lobby sessions: %d", lby.Count())
	}

	_, payload = roundTrip(t, conn, `{"type":"answer","answers":`+answers+`}`)
	if payload["phase"] != "playing" || payload["stage"] != "awaiting_choice" {
		t.Fatalf("after answers: %v", payload)
	}
	ev, _ := payload["event"].(map[string]any)
	if ev["id"] != float64(1) {
		t.Fatalf("first event: %v", ev)
	}

	_, payload = roundTrip(t, conn, `{"type":"choose","option":"B"}`)
	last, _ := payload["lastResult"].(map[string]any)
	if last["success"] != true || payload["stage"] != "resolved" {
		t.Fatalf("after choice: %v", payload)
	}

	kind, _ = roundTrip(t, conn, `{"type":"choose","option":"B"}`)
	if kind != codec.FrameError {
		t.Fatalf("second choice: %s", kind)
	}
	// the rejected command is followed by a state frame
	if f := readFrame(t, conn); f.Type != codec.FrameState {
		t.Fatalf("after rejection: %s", f.Type)
	}

	_, payload = roundTrip(t, conn, `{"type":"next"}`)
	progress, _ := payload["progress"].(map[string]any)
	if progress["current"] != float64(1) {
		t.Fatalf("progress: %v", progress)
	}

	kind, _ = roundTrip(t, conn, `not json`)
	if kind != codec.FrameError {
		t.Fatalf("garbage: %s", kind)
	}
}

func TestGatewayResumesSavedSession(t *testing.T) {
	store := savegame.NewMemoryStore()
	srv, lby := newTestServer(t, store)

	first := dial(t, srv)
	roundTrip(t, first, `{"type":"start"}`)
	_, payload := roundTrip(t, first, `{"type":"answer","answers":`+answers+`}`)
	if payload["phase"] != "playing" {
		t.Fatalf("answers: %v", payload)
	}
	if err := first.WriteMessage(websocket.TextMessage, []byte(`{"type":"save"}`)); err != nil {
		t.Fatal(err)
	}
	saved := readFrame(t, first)
	if saved.Type != codec.FrameState || saved.SessionID == "" {
		t.Fatalf("save: %+v", saved)
	}

	second := dial(t, srv)
	resume := `{"type":"resume","sessionId":"` + saved.SessionID + `"}`
	kind, payload := roundTrip(t, second, resume)
	if kind != codec.FrameError {
		t.Fatalf("resume while attached elsewhere: %s %v", kind, payload)
	}

	first.Close()
	deadline := time.Now().Add(5 * time.Second)
	for lby.Get(saved.SessionID) != nil {
		if time.Now().After(deadline) {
			t.Fatal("session still open after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
	kind, payload = roundTrip(t, second, resume)
	if kind != codec.FrameState || payload["phase"] != "playing" {
		t.Fatalf("resume: %s %v", kind, payload)
	}

	kind, _ = roundTrip(t, second, `{"type":"resume","sessionId":"00000000-0000-0000-0000-000000000000"}`)
	if kind != codec.FrameError {
		t.Fatalf("resume unknown: %s", kind)
	}
}
