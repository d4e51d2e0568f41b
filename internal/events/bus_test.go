package events

import (
	"testing"
	"time"
)

// TestPublishSubscribe verifies basic publish/subscribe functionality.
func TestPublishSubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicSample, 10)

	bus.Publish(TopicSample, SampleStartedEvent{Index: 41, Backend: "http://localhost:8000/v1", Timestamp: time.Now()})

	select {
	case received := <-ch:
		if received.SampleIndex() != 41 {
			t.Errorf("expected sample index 41, got %d", received.SampleIndex())
		}
		if received.EventType() != EventTypeSampleStarted {
			t.Errorf("expected event type '%s', got '%s'", EventTypeSampleStarted, received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

// TestMultipleSubscribers verifies multiple subscribers receive the same event.
func TestMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch1 := bus.Subscribe(TopicSample, 10)
	ch2 := bus.Subscribe(TopicSample, 10)

	bus.Publish(TopicSample, SampleWrittenEvent{Index: 2, Outcome: "completed", Duration: 100 * time.Millisecond})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			if received.SampleIndex() != 2 {
				t.Errorf("subscriber %d: expected index 2, got %d", i+1, received.SampleIndex())
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("subscriber %d: timeout waiting for event", i+1)
		}
	}
}

// TestNonBlockingSendCountsDrops verifies publishing doesn't block when channels are full.
func TestNonBlockingSendCountsDrops(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicSample, 1)

	done := make(chan bool)
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(TopicSample, SampleStartedEvent{Index: i})
		}
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("publisher blocked (expected non-blocking behavior)")
	}

	select {
	case received := <-ch:
		if received.SampleIndex() != 0 {
			t.Errorf("expected first event to be kept, got index %d", received.SampleIndex())
		}
	default:
		t.Error("expected at least one event in buffer")
	}

	if bus.Dropped() != 9 {
		t.Errorf("expected 9 dropped deliveries, got %d", bus.Dropped())
	}
}

// TestCloseSignalsSubscribers verifies that closing the bus closes subscriber channels.
func TestCloseSignalsSubscribers(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe(TopicSample, 10)
	all := bus.SubscribeAll(10)

	bus.Close()
	bus.Close()

	for range ch {
		t.Error("unexpected event after close")
	}
	for range all {
		t.Error("unexpected event after close")
	}
}

// TestSubscribeAfterClose verifies late subscribers get a closed channel.
func TestSubscribeAfterClose(t *testing.T) {
	bus := NewEventBus()
	bus.Close()

	if _, ok := <-bus.Subscribe(TopicRun, 1); ok {
		t.Error("expected closed channel")
	}
	if _, ok := <-bus.SubscribeAll(1); ok {
		t.Error("expected closed channel")
	}
}

// TestPublishAfterClose verifies publishing after close doesn't panic.
func TestPublishAfterClose(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe(TopicSample, 10)

	bus.Close()

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("publishing after close caused panic: %v", r)
		}
	}()

	bus.Publish(TopicSample, SampleStartedEvent{Index: 1})

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("received event after bus was closed")
		}
	default:
	}
}

// TestMultipleTopics verifies topic isolation.
func TestMultipleTopics(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	sampleCh := bus.Subscribe(TopicSample, 10)
	runCh := bus.Subscribe(TopicRun, 10)

	bus.Publish(TopicSample, SampleAbandonedEvent{Index: 3, Outcome: "failed", Error: "boom"})
	bus.Publish(TopicRun, RunProgressEvent{Total: 10, Done: 5, Written: 4, Abandoned: 1, Running: 2})

	select {
	case received := <-sampleCh:
		if received.EventType() != EventTypeSampleAbandoned {
			t.Errorf("sample channel: expected abandoned event, got %s", received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("sample channel: timeout waiting for event")
	}

	select {
	case received := <-runCh:
		if received.EventType() != EventTypeRunProgress || received.SampleIndex() != -1 {
			t.Errorf("run channel: unexpected event %s (%d)", received.EventType(), received.SampleIndex())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("run channel: timeout waiting for event")
	}

	select {
	case <-sampleCh:
		t.Error("sample channel received unexpected event")
	case <-runCh:
		t.Error("run channel received unexpected event")
	case <-time.After(10 * time.Millisecond):
	}
}

// TestSubscribeAll verifies that SubscribeAll receives events from all topics.
func TestSubscribeAll(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	allCh := bus.SubscribeAll(20)

	bus.Publish(TopicRun, RunStartedEvent{RunID: "r", Pending: 3})
	bus.Publish(TopicSample, SampleStartedEvent{Index: 0})
	bus.Publish(TopicRun, RunFinishedEvent{RunID: "r", Dispatched: 3})

	want := []string{EventTypeRunStarted, EventTypeSampleStarted, EventTypeRunFinished}
	for _, typ := range want {
		select {
		case received := <-allCh:
			if received.EventType() != typ {
				t.Errorf("expected %s, got %s", typ, received.EventType())
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for event")
		}
	}

	select {
	case <-allCh:
		t.Error("received unexpected extra event")
	case <-time.After(10 * time.Millisecond):
	}
}
