package events

import (
	"testing"
	"time"
)

func TestTopic(t *testing.T) {
	cases := []struct {
		typ  Type
		want string
	}{
		{SessionStarted, TopicSession},
		{SessionCompleted, TopicSession},
		{TaskStarted, TopicTask},
		{TaskRequeued, TopicTask},
		{Type("bare"), "bare"},
	}
	for _, tc := range cases {
		if got := tc.typ.Topic(); got != tc.want {
			t.Errorf("%s.Topic() = %q, want %q", tc.typ, got, tc.want)
		}
	}
}

func TestPublishRoutesByTopic(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sessionCh := bus.Subscribe(TopicSession, 4)
	taskCh := bus.Subscribe(TopicTask, 4)

	bus.Publish(Event{Type: TaskStarted, TaskID: "t1"})
	bus.Publish(Event{Type: SessionStarted, SessionID: "s1"})

	select {
	case ev := <-taskCh:
		if ev.Type != TaskStarted || ev.TaskID != "t1" {
			t.Errorf("task subscriber got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("task subscriber received nothing")
	}

	select {
	case ev := <-sessionCh:
		if ev.Type != SessionStarted {
			t.Errorf("session subscriber got %+v, want session:started", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("session subscriber received nothing")
	}

	select {
	case ev := <-sessionCh:
		t.Errorf("session subscriber got task event %+v", ev)
	default:
	}
}

func TestSubscribeAllSeesEveryTopic(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	all := bus.SubscribeAll(4)

	bus.Publish(Event{Type: TaskStarted})
	bus.Publish(Event{Type: SessionPaused})

	for _, want := range []Type{TaskStarted, SessionPaused} {
		select {
		case ev := <-all:
			if ev.Type != want {
				t.Errorf("got %s, want %s", ev.Type, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("all-topic subscriber missed %s", want)
		}
	}
}

func TestPublishStampsTime(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch := bus.SubscribeAll(1)
	bus.Publish(Event{Type: TaskStarted})

	ev := <-ch
	if ev.Time.IsZero() {
		t.Error("Publish() left Time zero")
	}

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	bus.Publish(Event{Type: TaskStarted, Time: fixed})
	if ev := <-ch; !ev.Time.Equal(fixed) {
		t.Errorf("Publish() overwrote explicit time: %v", ev.Time)
	}
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	slow := bus.Subscribe(TopicTask, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(Event{Type: TaskStarted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish() blocked on a full subscriber channel")
	}

	// Exactly one event fits the buffer, the rest are dropped.
	if ev := <-slow; ev.Type != TaskStarted {
		t.Errorf("got %+v", ev)
	}
	select {
	case ev, ok := <-slow:
		if ok {
			t.Errorf("buffered more than one event: %+v", ev)
		}
	default:
	}
}

func TestCloseIsIdempotentAndStopsDelivery(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(TopicSession, 1)

	bus.Close()
	bus.Close()

	if _, ok := <-ch; ok {
		t.Error("subscriber channel still open after Close()")
	}

	// Publishing after close is a no-op, not a panic.
	bus.Publish(Event{Type: SessionStarted})

	if late := bus.Subscribe(TopicSession, 1); late == nil {
		t.Error("Subscribe() after Close() returned nil channel")
	} else if _, ok := <-late; ok {
		t.Error("Subscribe() after Close() returned an open channel")
	}
}
