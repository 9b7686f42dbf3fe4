package events

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPublish_NeverBlocksWhenFull(t *testing.T) {
	bus := NewBus(2)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Status("step")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full bus")
	}

	if got := bus.Dropped(); got != 8 {
		t.Errorf("Dropped() = %d, want 8", got)
	}
	if len(bus.C()) != 2 {
		t.Errorf("buffered = %d, want 2", len(bus.C()))
	}
}

func TestAdaptersSetKind(t *testing.T) {
	bus := NewBus(DefaultCapacity)
	stopErr := errors.New("exit status 1")

	bus.Status("Creating virtual environment...")
	bus.Log("Resolved 3 packages")
	bus.Line("Starting development server at http://127.0.0.1:8000/")
	bus.Stopped(stopErr)
	bus.Close()

	var kinds []Kind
	var last Event
	for e := range bus.C() {
		kinds = append(kinds, e.Kind)
		last = e
	}

	want := []Kind{Status, Log, ServerLine, ServerStopped}
	if len(kinds) != len(want) {
		t.Fatalf("got %d events, want %d", len(kinds), len(want))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event %d kind = %v, want %v", i, kinds[i], want[i])
		}
	}
	if !errors.Is(last.Err, stopErr) {
		t.Errorf("stopped event err = %v", last.Err)
	}
}

func TestPublishAfterClose(t *testing.T) {
	bus := NewBus(4)
	bus.Close()
	bus.Close()

	if bus.Publish(Event{Kind: Status, Text: "late"}) {
		t.Error("publish after close should report false")
	}
	if bus.Dropped() != 0 {
		t.Error("closed-bus publishes are not counted as drops")
	}
}

func TestConcurrentPublishAndClose(t *testing.T) {
	bus := NewBus(8)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.Log("line")
			}
		}()
	}
	go func() {
		for range bus.C() {
		}
	}()
	bus.Close()
	wg.Wait()
}
