package stream

import (
	"encoding/binary"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pthm-cable/fieldfx/field"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func connect(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func solid(t *testing.T, w, h int, values ...float32) field.View {
	t.Helper()
	f, err := field.NewHeapAllocator(0).Allocate(field.Shape{Width: w, Height: h, Channels: 4})
	if err != nil {
		t.Fatal(err)
	}
	f.Fill(values...)
	return f.View()
}

func read(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if kind != websocket.BinaryMessage {
		t.Fatalf("message type %d, want binary", kind)
	}
	return msg
}

func TestHub_BroadcastsFrame(t *testing.T) {
	h := NewHub(1, false, quiet())
	conn := connect(t, h)

	if err := h.Present(solid(t, 3, 2, 1, 0, 0.5, 1)); err != nil {
		t.Fatal(err)
	}
	msg := read(t, conn)

	if len(msg) != HeaderSize+3*2*4 {
		t.Fatalf("len = %d", len(msg))
	}
	if w := binary.LittleEndian.Uint32(msg[0:]); w != 3 {
		t.Errorf("width = %d", w)
	}
	if hgt := binary.LittleEndian.Uint32(msg[4:]); hgt != 2 {
		t.Errorf("height = %d", hgt)
	}
	px := msg[HeaderSize : HeaderSize+4]
	if px[0] != 255 || px[1] != 0 || px[2] != 128 || px[3] != 255 {
		t.Errorf("first pixel = %v", px)
	}
}

func TestHub_EveryNthFrame(t *testing.T) {
	h := NewHub(2, false, quiet())
	conn := connect(t, h)

	for _, r := range []float32{0.2, 0.4, 0.6} {
		h.Present(solid(t, 1, 1, r, 0, 0, 1))
	}

	first := read(t, conn)
	second := read(t, conn)
	if first[HeaderSize] != 51 {
		t.Errorf("first frame red = %d, want 51", first[HeaderSize])
	}
	if second[HeaderSize] != 153 {
		t.Errorf("second frame red = %d, want 153 (frame 2 skipped)", second[HeaderSize])
	}
}

func TestHub_NoClients(t *testing.T) {
	h := NewHub(1, false, quiet())
	if err := h.Present(solid(t, 2, 2, 1)); err != nil {
		t.Errorf("Present with no clients: %v", err)
	}
}

func TestHub_Close(t *testing.T) {
	h := NewHub(1, false, quiet())
	conn := connect(t, h)

	h.Close()
	if h.Clients() != 0 {
		t.Errorf("Clients() = %d after Close", h.Clients())
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected read error after Close")
	}
}

func TestHub_FlipY(t *testing.T) {
	f, err := field.NewHeapAllocator(0).Allocate(field.Shape{Width: 1, Height: 2, Channels: 4})
	if err != nil {
		t.Fatal(err)
	}
	copy(f.Texel(0, 0), []float32{1, 0, 0, 1})
	copy(f.Texel(0, 1), []float32{0, 0, 1, 1})

	for _, tc := range []struct {
		flip       bool
		topR, topB byte
	}{
		{flip: false, topR: 255, topB: 0},
		{flip: true, topR: 0, topB: 255},
	} {
		h := NewHub(1, tc.flip, quiet())
		conn := connect(t, h)
		if err := h.Present(f.View()); err != nil {
			t.Fatal(err)
		}
		msg := read(t, conn)
		top := msg[HeaderSize : HeaderSize+4]
		if top[0] != tc.topR || top[2] != tc.topB {
			t.Errorf("flip=%v: first row pixel = %v", tc.flip, top)
		}
		h.Close()
	}
}
