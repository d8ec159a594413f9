package bus

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestPublishSync(t *testing.T) {
	b := NewEventBus()

	var got atomic.Value
	b.Subscribe(EventTypeSpeechStarted, func(ev Event) {
		got.Store(ev.Data["text"])
	})

	b.PublishSync(Event{Type: EventTypeSpeechStarted, Data: map[string]any{"text": "hi"}})

	if got.Load() != "hi" {
		t.Errorf("handler saw %v, want hi", got.Load())
	}
}

func TestPublishOnlyMatchingType(t *testing.T) {
	b := NewEventBus()

	var count int32
	b.Subscribe(EventTypeModelLoaded, func(Event) {
		atomic.AddInt32(&count, 1)
	})

	b.PublishSync(Event{Type: EventTypeModelFailed})
	b.PublishSync(Event{Type: EventTypeModelLoaded})

	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("handler fired %d times, want 1", count)
	}
}

func TestSubscribeMultiple(t *testing.T) {
	b := NewEventBus()

	var wg sync.WaitGroup
	wg.Add(2)
	b.SubscribeMultiple([]EventType{EventTypeSpeechStarted, EventTypeSpeechEnded}, func(Event) {
		wg.Done()
	})

	b.PublishSync(Event{Type: EventTypeSpeechStarted})
	b.PublishSync(Event{Type: EventTypeSpeechEnded})
	wg.Wait()
}

func TestClear(t *testing.T) {
	b := NewEventBus()
	b.Subscribe(EventTypeGestureTriggered, func(Event) {
		t.Error("handler fired after Clear")
	})
	b.Clear()
	b.PublishSync(Event{Type: EventTypeGestureTriggered})
}
