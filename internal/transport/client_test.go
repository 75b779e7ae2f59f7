package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mockvoice/mockvoice/internal/call"
	"github.com/mockvoice/mockvoice/internal/interview"
)

type agentServer struct {
	*httptest.Server
	auth   chan string
	frames chan []byte
	audio  chan []byte
	conns  chan *websocket.Conn
}

func newAgentServer(t *testing.T) *agentServer {
	t.Helper()
	a := &agentServer{
		auth:   make(chan string, 1),
		frames: make(chan []byte, 16),
		audio:  make(chan []byte, 16),
		conns:  make(chan *websocket.Conn, 1),
	}
	upgrader := websocket.Upgrader{}
	a.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.auth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		a.conns <- conn
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.BinaryMessage {
				a.audio <- data
				continue
			}
			a.frames <- data
		}
	}))
	t.Cleanup(a.Close)
	return a
}

func (a *agentServer) wsURL() string {
	return "ws" + strings.TrimPrefix(a.URL, "http")
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for value")
	}
	var zero T
	return zero
}

func TestClientStartSendsStartFrameAndDeliversEvents(t *testing.T) {
	agent := newAgentServer(t)
	client := NewClient(Config{URL: agent.wsURL(), APIKey: "secret"}, nil)

	events := make(chan call.Event, 8)
	unsubscribe := client.Subscribe(func(ev call.Event) { events <- ev })
	defer unsubscribe()

	err := client.Start(context.Background(), call.StartConfig{Mode: interview.ModeInterview, Script: "hi"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := receive(t, agent.auth); got != "Bearer secret" {
		t.Fatalf("expected bearer auth, got %q", got)
	}

	var start map[string]any
	if err := json.Unmarshal(receive(t, agent.frames), &start); err != nil {
		t.Fatalf("unmarshal start frame: %v", err)
	}
	if start["type"] != "start" || start["script"] != "hi" {
		t.Fatalf("unexpected start frame: %v", start)
	}

	conn := receive(t, agent.conns)
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"call-start"}`))
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"transcript","role":"user","transcriptType":"final","transcript":"hello"}`))

	if _, ok := receive(t, events).(call.SessionStarted); !ok {
		t.Fatal("expected SessionStarted first")
	}
	utt, ok := receive(t, events).(call.Utterance)
	if !ok || utt.Text != "hello" || !utt.Final {
		t.Fatalf("unexpected utterance: %#v", utt)
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "meeting has ended"))
	ended, ok := receive(t, events).(call.SessionEnded)
	if !ok || ended.Reason != "meeting has ended" {
		t.Fatalf("expected SessionEnded with reason, got %#v", ended)
	}
}

func TestClientWritesAudioAsBinaryFrames(t *testing.T) {
	agent := newAgentServer(t)
	client := NewClient(Config{URL: agent.wsURL()}, nil)

	if n, err := client.Write([]byte{1, 2}); err != nil || n != 2 {
		t.Fatalf("write before connect should be dropped silently, got n=%d err=%v", n, err)
	}

	if err := client.Start(context.Background(), call.StartConfig{Mode: interview.ModeGenerate}); err != nil {
		t.Fatalf("start: %v", err)
	}
	receive(t, agent.frames)

	if _, err := client.Write([]byte{0x01, 0x02, 0x03}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := receive(t, agent.audio); len(got) != 3 {
		t.Fatalf("expected 3 audio bytes, got %v", got)
	}
}

func TestClientStopSendsStopFrame(t *testing.T) {
	agent := newAgentServer(t)
	client := NewClient(Config{URL: agent.wsURL()}, nil)

	if err := client.Start(context.Background(), call.StartConfig{Mode: interview.ModeGenerate}); err != nil {
		t.Fatalf("start: %v", err)
	}
	receive(t, agent.frames)

	if err := client.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := string(receive(t, agent.frames)); got != `{"type":"stop"}` {
		t.Fatalf("expected stop frame, got %s", got)
	}
	if client.Connected() {
		t.Fatal("expected client to be disconnected after stop")
	}
	if err := client.Stop(context.Background()); err != nil {
		t.Fatalf("second stop should be a no-op, got %v", err)
	}
}

func TestClientReportsAbnormalDisconnect(t *testing.T) {
	agent := newAgentServer(t)
	client := NewClient(Config{URL: agent.wsURL()}, nil)

	uncaught := make(chan error, 1)
	client.OnUncaught(func(err error) { uncaught <- err })
	events := make(chan call.Event, 4)
	client.Subscribe(func(ev call.Event) { events <- ev })

	if err := client.Start(context.Background(), call.StartConfig{Mode: interview.ModeGenerate}); err != nil {
		t.Fatalf("start: %v", err)
	}
	conn := receive(t, agent.conns)
	_ = conn.UnderlyingConn().Close()

	if _, ok := receive(t, events).(call.SessionError); !ok {
		t.Fatal("expected SessionError")
	}
	if err := receive(t, uncaught); err == nil {
		t.Fatal("expected uncaught error")
	}
}

func TestClientStartDialFailure(t *testing.T) {
	client := NewClient(Config{URL: "ws://127.0.0.1:1/agent", HandshakeTimeout: time.Second}, nil)
	if err := client.Start(context.Background(), call.StartConfig{}); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestClientStartWithoutURL(t *testing.T) {
	client := NewClient(Config{}, nil)
	err := client.Start(context.Background(), call.StartConfig{Mode: interview.ModeGenerate})
	if !errors.Is(err, ErrNoAgentURL) {
		t.Fatalf("expected ErrNoAgentURL, got %v", err)
	}
	if client.Connected() {
		t.Fatal("expected no connection")
	}
}

func TestClientUnsubscribe(t *testing.T) {
	client := NewClient(Config{}, nil)
	calls := 0
	unsubscribe := client.Subscribe(func(call.Event) { calls++ })
	client.publish(call.SessionStarted{})
	unsubscribe()
	client.publish(call.SessionStarted{})
	if calls != 1 {
		t.Fatalf("expected 1 delivery, got %d", calls)
	}
}
