package cli

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer guards a buffer written by the spinner goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinner(t *testing.T) {
	var out syncBuffer
	s := newSpinner(&out, "resolving")
	s.interval = time.Millisecond
	s.Start()

	time.Sleep(20 * time.Millisecond)
	s.Update("pruning")
	time.Sleep(20 * time.Millisecond)
	s.Stop()
	s.Stop()

	got := out.String()
	for _, want := range []string{"resolving", "pruning"} {
		if !strings.Contains(got, want) {
			t.Errorf("spinner output lacks %q: %q", want, got)
		}
	}
	if !strings.HasSuffix(got, "\r") {
		t.Errorf("spinner did not clear its line: %q", got)
	}
}

func TestSpinner_StopWithoutStart(t *testing.T) {
	s := newSpinner(&bytes.Buffer{}, "idle")
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked")
	}
}
