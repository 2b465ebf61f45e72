package homeassistant

import (
	"sync"
	"testing"
	"time"

	"github.com/timmo001/home-assistant-assist-desktop/internal/hatest"
)

func TestDispatcherRunsCallbacksInOrder(t *testing.T) {
	d := newDispatcher()
	defer d.stop()

	var (
		mu  sync.Mutex
		got []int
	)
	for i := range 5 {
		d.enqueue(func() {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, i)
		})
	}

	hatest.WaitFor(t, 2*time.Second, "queued callbacks", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 5
	})

	mu.Lock()
	defer mu.Unlock()
	for i, value := range got {
		if value != i {
			t.Fatalf("expected callbacks in order, got %v", got)
		}
	}
}

func TestDispatcherStopFromCallbackWithFullQueue(t *testing.T) {
	d := newDispatcher()

	started := make(chan struct{})
	release := make(chan struct{})
	stopped := make(chan struct{})
	d.enqueue(func() {
		close(started)
		<-release
		d.stop()
		close(stopped)
	})
	<-started

	for range cap(d.queue) {
		d.enqueue(func() {})
	}
	blocked := make(chan struct{})
	go func() {
		d.enqueue(func() {})
		close(blocked)
	}()

	close(release)

	for _, wait := range []struct {
		ch   <-chan struct{}
		what string
	}{
		{stopped, "stop inside a callback"},
		{blocked, "blocked enqueue to return"},
		{d.done, "dispatcher to exit"},
	} {
		select {
		case <-wait.ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", wait.what)
		}
	}
}

func TestDispatcherIgnoresCallbacksAfterStop(t *testing.T) {
	d := newDispatcher()
	d.stop()

	d.enqueue(func() { t.Errorf("expected callback after stop to be dropped") })

	select {
	case <-d.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for dispatcher to exit")
	}
}
