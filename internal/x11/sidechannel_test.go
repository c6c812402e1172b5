package x11

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rox-desktop/rox-filer-sub001/internal/remote"
)

const testMarker = "_FILER_TEST_MARKER"

// connect opens a side channel on $DISPLAY (run under Xvfb in CI).
func connect(t *testing.T) *SideChannel {
	t.Helper()
	if os.Getenv("DISPLAY") == "" {
		t.Skip("DISPLAY not set")
	}
	c, err := NewConnection()
	if err != nil {
		t.Skipf("no X server: %v", err)
	}
	s, err := NewSideChannel(c)
	if err != nil {
		c.Close()
		t.Fatal(err)
	}
	t.Cleanup(func() {
		started := true
		c.loopOnce.Do(func() { started = false })
		if started {
			c.Quit()
			select {
			case <-c.loopDone:
			case <-time.After(2 * time.Second):
			}
		}
		c.Close()
	})
	return s
}

func newReceiver(t *testing.T, s *SideChannel) remote.Handle {
	t.Helper()
	h, err := s.CreateReceiver()
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestMarkerRoundTrip(t *testing.T) {
	s := connect(t)
	w := newReceiver(t, s)
	defer s.DestroyReceiver(w)

	if _, err := s.Marker(w, testMarker); !errors.Is(err, remote.ErrNoMarker) {
		t.Fatalf("Marker on fresh window = %v, want ErrNoMarker", err)
	}
	if err := s.SetMarker(w, testMarker, w); err != nil {
		t.Fatal(err)
	}
	got, err := s.Marker(w, testMarker)
	if err != nil || got != w {
		t.Fatalf("Marker = 0x%x, %v; want 0x%x", uint32(got), err, uint32(w))
	}
}

func TestMarkerOnDestroyedWindow(t *testing.T) {
	s := connect(t)
	w := newReceiver(t, s)
	if err := s.SetMarker(w, testMarker, w); err != nil {
		t.Fatal(err)
	}
	s.DestroyReceiver(w)
	if _, err := s.Marker(w, testMarker); !errors.Is(err, remote.ErrNoMarker) {
		t.Fatalf("Marker on destroyed window = %v, want ErrNoMarker", err)
	}
}

func TestTakePayloadDeletes(t *testing.T) {
	s := connect(t)
	w := newReceiver(t, s)
	defer s.DestroyReceiver(w)

	doc := []byte(`<env:Envelope xmlns:env="http://www.w3.org/2001/12/soap-envelope"/>`)
	if err := s.SetPayload(w, doc); err != nil {
		t.Fatal(err)
	}
	got, err := s.TakePayload(w)
	if err != nil || string(got) != string(doc) {
		t.Fatalf("TakePayload = %q, %v", got, err)
	}
	if _, err := s.TakePayload(w); !errors.Is(err, remote.ErrNoPayload) {
		t.Fatalf("second TakePayload = %v, want ErrNoPayload", err)
	}
}

func TestNotifyAcrossConnections(t *testing.T) {
	server := connect(t)
	client := connect(t)

	target := newReceiver(t, server)
	defer server.DestroyReceiver(target)
	from := newReceiver(t, client)
	defer client.DestroyReceiver(from)

	if err := client.Notify(target, from); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got, err := server.WaitNotify(ctx, target)
	if err != nil {
		t.Fatalf("WaitNotify: %v", err)
	}
	if got != from {
		t.Fatalf("notified by 0x%x, want 0x%x", uint32(got), uint32(from))
	}

	// Nothing else is pending, so the next wait runs into the deadline.
	short, cancel2 := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel2()
	if _, err := server.WaitNotify(short, target); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("idle WaitNotify = %v, want deadline", err)
	}
}

func TestWaitNotifyRejectsUnknownWindow(t *testing.T) {
	s := connect(t)
	if _, err := s.WaitNotify(context.Background(), s.Root()); err == nil {
		t.Fatal("expected error for a window that is not a receiver")
	}
}
