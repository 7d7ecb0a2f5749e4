package network

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestCodec(t *testing.T) {
	in := Package{IsHotfixPackage: true, MsgID: 7, BodyBytes: []byte{0x01, 0x02}}

	data, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	out, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !out.IsHotfixPackage || out.MsgID != 7 || !bytes.Equal(out.BodyBytes, in.BodyBytes) {
		t.Errorf("round trip mismatch: %+v", out)
	}

	if _, err := Decode([]byte{0xff, 0x00}); err == nil {
		t.Error("expected error decoding garbage")
	}
}

// pumpUntil pumps m until at least want packages were delivered or the
// deadline passes.
func pumpUntil(t *testing.T, m *Manager, want int) int {
	t.Helper()
	got := 0
	deadline := time.Now().Add(2 * time.Second)
	for got < want && time.Now().Before(deadline) {
		got += m.Pump()
		if got < want {
			time.Sleep(time.Millisecond)
		}
	}
	return got
}

func TestManagerRoutesByChannel(t *testing.T) {
	m := NewManager(Loopback())

	var hotfix, core []int32
	m.SubscribeHotfix(func(p Package) { hotfix = append(hotfix, p.MsgID) })
	m.Subscribe(func(p Package) { core = append(core, p.MsgID) })

	m.Receive(Package{IsHotfixPackage: true, MsgID: 1})
	m.Receive(Package{MsgID: 2})
	m.Receive(Package{IsHotfixPackage: true, MsgID: 3})

	if len(hotfix) != 0 || len(core) != 0 {
		t.Fatal("callbacks ran before Pump")
	}

	if n := m.Pump(); n != 3 {
		t.Errorf("expected 3 delivered, got %d", n)
	}
	if len(hotfix) != 2 || hotfix[0] != 1 || hotfix[1] != 3 {
		t.Errorf("unexpected hotfix deliveries %v", hotfix)
	}
	if len(core) != 1 || core[0] != 2 {
		t.Errorf("unexpected core deliveries %v", core)
	}
	if n := m.Pump(); n != 0 {
		t.Errorf("expected empty pump, got %d", n)
	}
}

func TestManagerQueueFull(t *testing.T) {
	m := NewManager(Loopback(), WithQueueSize(2))

	m.Receive(Package{MsgID: 1})
	m.Receive(Package{MsgID: 2})
	if err := m.Receive(Package{MsgID: 3}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}

func TestManagerSendOverPipe(t *testing.T) {
	a, b := Pipe()
	sender := NewManager(a)
	receiver := NewManager(b)

	ctx := context.Background()
	sender.Start(ctx)
	receiver.Start(ctx)
	defer sender.Close()
	defer receiver.Close()

	var got []Package
	receiver.SubscribeHotfix(func(p Package) { got = append(got, p) })

	err := sender.SendMessage(Package{IsHotfixPackage: true, MsgID: 7, BodyBytes: []byte{0x01, 0x02}})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if n := pumpUntil(t, receiver, 1); n != 1 {
		t.Fatalf("expected 1 package, got %d", n)
	}
	if len(got) != 1 || got[0].MsgID != 7 || !bytes.Equal(got[0].BodyBytes, []byte{0x01, 0x02}) {
		t.Errorf("unexpected delivery %+v", got)
	}

	time.Sleep(10 * time.Millisecond)
	if n := receiver.Pump(); n != 0 {
		t.Errorf("package delivered more than once (%d extra)", n)
	}
}

func TestManagerClose(t *testing.T) {
	m := NewManager(Loopback())
	m.Start(context.Background())

	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := m.SendMessage(Package{MsgID: 1}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

func TestManagerDropsMalformedFrames(t *testing.T) {
	m := NewManager(Loopback())
	m.deliver([]byte("not cbor"))
	if n := m.Pump(); n != 0 {
		t.Errorf("malformed frame was delivered")
	}
}

func TestWebSocketTransport(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, err := DialWebSocket(context.Background(), url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}

	m := NewManager(ws)
	m.Start(context.Background())
	defer m.Close()

	var got []int32
	m.SubscribeHotfix(func(p Package) { got = append(got, p.MsgID) })

	if err := m.SendMessage(Package{IsHotfixPackage: true, MsgID: 42, BodyBytes: []byte("hi")}); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if n := pumpUntil(t, m, 1); n != 1 {
		t.Fatalf("expected echo, got %d packages", n)
	}
	if len(got) != 1 || got[0] != 42 {
		t.Errorf("unexpected echo %v", got)
	}
}

func TestWebSocketReadLimit(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.BinaryMessage, []byte("small"))
		conn.WriteMessage(websocket.BinaryMessage, bytes.Repeat([]byte("x"), 2048))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, err := DialWebSocket(context.Background(), url, nil, WithReadLimit(1024))
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer ws.Close()

	var frames [][]byte
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = ws.Run(ctx, func(b []byte) { frames = append(frames, b) })
	if !errors.Is(err, websocket.ErrReadLimit) {
		t.Fatalf("expected ErrReadLimit, got %v", err)
	}
	if len(frames) != 1 || string(frames[0]) != "small" {
		t.Errorf("expected only the small frame, got %d frames", len(frames))
	}
}
