package relay

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/voxhire/interviewd/pkg/protocol"
)

// fakeTransport records written messages and optionally fails.
type fakeTransport struct {
	mu       sync.Mutex
	messages []protocol.Message
	failWith error
}

func (f *fakeTransport) WriteMessage(msg protocol.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeTransport) written() []protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.Message, len(f.messages))
	copy(out, f.messages)
	return out
}

func TestRelayDeliver(t *testing.T) {
	t.Run("writes immediately regardless of capture state", func(t *testing.T) {
		ft := &fakeTransport{}
		r := New(ft, nil)

		r.Play([]byte{1, 2, 3})
		r.StartCapture(func([]byte) error { return nil })
		r.Play([]byte{4, 5, 6})

		msgs := ft.written()
		if len(msgs) != 2 {
			t.Fatalf("expected 2 writes, got %d", len(msgs))
		}
		for _, msg := range msgs {
			if msg.Type != protocol.TypeAudio {
				t.Errorf("expected audio message, got %s", msg.Type)
			}
		}
		if msgs[0].Data != base64.StdEncoding.EncodeToString([]byte{1, 2, 3}) {
			t.Error("audio payload not base64 of the raw frame")
		}
	})

	t.Run("buffers only while not capturing", func(t *testing.T) {
		ft := &fakeTransport{}
		r := New(ft, nil)

		r.Play([]byte{1})
		r.Play([]byte{2})
		if got := r.Buffered(); got != 2 {
			t.Fatalf("expected 2 buffered frames, got %d", got)
		}

		r.StartCapture(func([]byte) error { return nil })
		r.Play([]byte{3})
		if got := r.Buffered(); got != 0 {
			t.Errorf("expected empty buffer while capturing, got %d", got)
		}
	})

	t.Run("buffer never exceeds capacity, evicts oldest", func(t *testing.T) {
		ft := &fakeTransport{}
		r := New(ft, nil)

		for i := 0; i < DefaultBufferCap+5; i++ {
			r.Deliver(fmt.Sprintf("frame-%d", i))
		}
		if got := r.Buffered(); got != DefaultBufferCap {
			t.Fatalf("expected %d buffered frames, got %d", DefaultBufferCap, got)
		}

		frames := r.buffer.Frames()
		if frames[0] != "frame-5" {
			t.Errorf("expected oldest frames evicted first, head is %s", frames[0])
		}
		if frames[len(frames)-1] != fmt.Sprintf("frame-%d", DefaultBufferCap+4) {
			t.Errorf("newest frame missing, tail is %s", frames[len(frames)-1])
		}
	})

	t.Run("transport failure is swallowed", func(t *testing.T) {
		ft := &fakeTransport{failWith: errors.New("socket closed")}
		r := New(ft, nil)

		r.Play([]byte{1}) // must not panic
		r.Play([]byte{2})
		if got := r.Buffered(); got != 2 {
			t.Errorf("relay stopped accepting frames after write failure, buffered %d", got)
		}
	})
}

func TestRelayCapture(t *testing.T) {
	t.Run("start clears buffer and sets capturing", func(t *testing.T) {
		ft := &fakeTransport{}
		r := New(ft, nil)

		r.Deliver("stale")
		if r.IsCapturing() {
			t.Fatal("should not capture initially")
		}

		r.StartCapture(func([]byte) error { return nil })
		if !r.IsCapturing() {
			t.Error("should capture after StartCapture")
		}
		if got := r.Buffered(); got != 0 {
			t.Errorf("StartCapture must clear buffer, got %d frames", got)
		}
	})

	t.Run("stop clears callback and capturing", func(t *testing.T) {
		ft := &fakeTransport{}
		r := New(ft, nil)

		r.StartCapture(func([]byte) error { return nil })
		r.StopCapture()

		if r.IsCapturing() {
			t.Error("should not capture after StopCapture")
		}
		if r.HandleInbound([]byte{1}) {
			t.Error("frames must be dropped after StopCapture")
		}
	})
}

func TestRelayHandleInbound(t *testing.T) {
	t.Run("forwards frames while capturing", func(t *testing.T) {
		ft := &fakeTransport{}
		r := New(ft, nil)

		var got [][]byte
		r.StartCapture(func(audio []byte) error {
			got = append(got, audio)
			return nil
		})

		if !r.HandleInbound([]byte{9, 9}) {
			t.Fatal("frame dropped while capturing")
		}
		if len(got) != 1 || got[0][0] != 9 {
			t.Errorf("frame not forwarded: %v", got)
		}
	})

	t.Run("drops frames while not capturing", func(t *testing.T) {
		ft := &fakeTransport{}
		r := New(ft, nil)

		if r.HandleInbound([]byte{1}) {
			t.Error("frame accepted without capture")
		}
	})

	t.Run("notifies activity hook", func(t *testing.T) {
		ft := &fakeTransport{}
		r := New(ft, nil)

		var touched int
		r.OnActivity(func() { touched++ })
		r.StartCapture(func([]byte) error { return nil })

		r.HandleInbound([]byte{1})
		r.HandleInbound([]byte{2})
		if touched != 2 {
			t.Errorf("expected 2 activity notifications, got %d", touched)
		}
	})

	t.Run("send failure does not stop capture", func(t *testing.T) {
		ft := &fakeTransport{}
		r := New(ft, nil)

		r.StartCapture(func([]byte) error { return errors.New("provider gone") })
		if !r.HandleInbound([]byte{1}) {
			t.Error("frame should still count as accepted")
		}
		if !r.IsCapturing() {
			t.Error("capture must survive a send failure")
		}
	})
}
