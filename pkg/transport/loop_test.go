package transport

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/voxhire/interviewd/pkg/protocol"
	"github.com/voxhire/interviewd/pkg/relay"
)

// fakeSocket feeds scripted inbound messages and records outbound writes.
type fakeSocket struct {
	mu      sync.Mutex
	inbound [][]byte
	written [][]byte
	closed  bool
}

var errSocketClosed = errors.New("socket closed")

func (f *fakeSocket) ReadMessage() (int, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inbound) == 0 || f.closed {
		return 0, nil, errSocketClosed
	}
	data := f.inbound[0]
	f.inbound = f.inbound[1:]
	return 1, data, nil
}

func (f *fakeSocket) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errSocketClosed
	}
	f.written = append(f.written, data)
	return nil
}

func (f *fakeSocket) SetReadLimit(int64)                {}
func (f *fakeSocket) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeSocket) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeSocket) SetPongHandler(func(string) error) {}
func (f *fakeSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSocket) writes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.written))
	copy(out, f.written)
	return out
}

// fakeRouter records registry interactions.
type fakeRouter struct {
	mu           sync.Mutex
	registered   []string
	deregistered []string
	frames       [][]byte
}

func (f *fakeRouter) RegisterTransport(id string, t relay.Transport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, id)
}

func (f *fakeRouter) DeregisterTransport(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deregistered = append(f.deregistered, id)
}

func (f *fakeRouter) RouteInboundFrame(id string, audio []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, audio)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func audioMessage(t *testing.T, payload []byte) []byte {
	t.Helper()
	data, err := json.Marshal(protocol.NewAudio(base64.StdEncoding.EncodeToString(payload)))
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestServe(t *testing.T) {
	t.Run("acknowledges, routes audio, deregisters on close", func(t *testing.T) {
		sock := &fakeSocket{
			inbound: [][]byte{
				audioMessage(t, []byte{1, 2}),
				audioMessage(t, []byte{3, 4}),
			},
		}
		router := &fakeRouter{}
		conn := NewConn("s1", sock, discardLogger())

		Serve(router, conn)

		if len(router.registered) != 1 || router.registered[0] != "s1" {
			t.Errorf("transport not registered: %v", router.registered)
		}
		if len(router.deregistered) != 1 || router.deregistered[0] != "s1" {
			t.Errorf("transport not deregistered: %v", router.deregistered)
		}

		writes := sock.writes()
		if len(writes) == 0 {
			t.Fatal("no acknowledgment written")
		}
		ack, err := protocol.Parse(writes[0])
		if err != nil {
			t.Fatalf("ack unparseable: %v", err)
		}
		if ack.Type != protocol.TypeConnection || ack.Status != protocol.StatusEstablished || ack.SessionID != "s1" {
			t.Errorf("unexpected ack: %+v", ack)
		}

		if len(router.frames) != 2 {
			t.Fatalf("expected 2 routed frames, got %d", len(router.frames))
		}
		if router.frames[0][0] != 1 || router.frames[1][0] != 3 {
			t.Error("frames not decoded from base64")
		}
	})

	t.Run("malformed payloads are skipped, not fatal", func(t *testing.T) {
		sock := &fakeSocket{
			inbound: [][]byte{
				[]byte("not json"),
				[]byte(`{"nope":1}`),
				[]byte(`{"type":"audio","data":"!!not-base64!!"}`),
				audioMessage(t, []byte{9}),
			},
		}
		router := &fakeRouter{}
		conn := NewConn("s1", sock, discardLogger())

		Serve(router, conn)

		if len(router.frames) != 1 {
			t.Fatalf("expected the one valid frame to be routed, got %d", len(router.frames))
		}
		if len(router.deregistered) != 1 {
			t.Error("transport must deregister exactly once on exit")
		}
	})

	t.Run("unknown message types are ignored", func(t *testing.T) {
		sock := &fakeSocket{
			inbound: [][]byte{
				[]byte(`{"type":"chatter","text":"hi"}`),
			},
		}
		router := &fakeRouter{}
		conn := NewConn("s1", sock, discardLogger())

		Serve(router, conn)

		if len(router.frames) != 0 {
			t.Errorf("unexpected routed frames: %d", len(router.frames))
		}
	})
}

func TestConnWrite(t *testing.T) {
	t.Run("concurrent writes are serialized", func(t *testing.T) {
		sock := &fakeSocket{}
		conn := NewConn("s1", sock, discardLogger())

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = conn.WriteMessage(protocol.NewAudio("Zg=="))
			}()
		}
		wg.Wait()

		if got := len(sock.writes()); got != 16 {
			t.Errorf("expected 16 writes, got %d", got)
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		sock := &fakeSocket{}
		conn := NewConn("s1", sock, discardLogger())

		if err := conn.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if err := conn.Close(); err != nil {
			t.Fatalf("second close must be a no-op, got %v", err)
		}
	})
}
