package testing

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/Alia5/psxpad/device/dualshock2"
	"github.com/Alia5/psxpad/internal/auth"
	"github.com/Alia5/psxpad/internal/log"
	"github.com/Alia5/psxpad/internal/server/bus"
	"github.com/Alia5/psxpad/virtualbus"
)

// FakeLink is an in-memory host link. Feedback written by the device is
// delivered on Feedback; frames that do not fit are dropped, like the real
// link does when its queue is full.
type FakeLink struct {
	rx       chan byte
	Feedback chan []byte
}

func NewFakeLink() *FakeLink {
	return &FakeLink{
		rx:       make(chan byte, 1024),
		Feedback: make(chan []byte, 64),
	}
}

func (l *FakeLink) Bytes() <-chan byte { return l.rx }

func (l *FakeLink) Write(p []byte) (int, error) {
	select {
	case l.Feedback <- append([]byte(nil), p...):
	default:
	}
	return len(p), nil
}

// Push queues raw bytes without waiting for a reply.
func (l *FakeLink) Push(data []byte) {
	for _, b := range data {
		l.rx <- b
	}
}

// Send pushes a frame and waits for the feedback it produces.
func (l *FakeLink) Send(t *testing.T, frame []byte) dualshock2.OutputState {
	t.Helper()
	l.Push(frame)
	select {
	case fb := <-l.Feedback:
		var out dualshock2.OutputState
		if err := out.UnmarshalBinary(fb); err != nil {
			t.Fatalf("bad feedback % X: %v", fb, err)
		}
		return out
	case <-time.After(2 * time.Second):
		t.Fatal("no feedback from device")
		return dualshock2.OutputState{}
	}
}

// SendInput encodes in as a normal frame and sends it.
func (l *FakeLink) SendInput(t *testing.T, in dualshock2.InputState) dualshock2.OutputState {
	t.Helper()
	return l.Send(t, dualshock2.EncodeFrame(&in, dualshock2.TermNormal))
}

// StartDevice runs a controller on a new virtual bus until the test ends
// and connects it with a neutral frame.
func StartDevice(t *testing.T, opts *dualshock2.Options) (*virtualbus.VirtualBus, *FakeLink) {
	t.Helper()
	vb := virtualbus.New(virtualbus.Config{
		AckTimeout:    50 * time.Millisecond,
		SelectTimeout: 500 * time.Millisecond,
	})
	link := NewFakeLink()
	d := dualshock2.New(opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx, vb, link)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = vb.Close()
	})

	link.SendInput(t, dualshock2.NeutralInput())
	return vb, link
}

// StartBusServer serves vb on a free loopback port until the test ends.
// key enables authentication when non-empty.
func StartBusServer(t *testing.T, vb *virtualbus.VirtualBus, key auth.Key) string {
	t.Helper()
	srv := bus.New(bus.ServerConfig{Addr: "127.0.0.1:0"}, vb, key, slog.Default(), log.NewRaw(nil))
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-srv.Ready():
	case err := <-errCh:
		t.Fatalf("bus server failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("bus server not ready")
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv.Addr().String()
}
