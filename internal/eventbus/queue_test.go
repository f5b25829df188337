package eventbus

import "testing"

func TestQueueDropsOldestUnderPressure(t *testing.T) {
	q := NewQueue(2)
	q.Push(Event{Sender: "1"})
	q.Push(Event{Sender: "2"})
	q.Push(Event{Sender: "3"})

	e, ok := q.Pop()
	if !ok || e.Sender != "2" {
		t.Fatalf("expected oldest event dropped, got %+v", e)
	}
	e, ok = q.Pop()
	if !ok || e.Sender != "3" {
		t.Fatalf("expected second event 3, got %+v", e)
	}
	if d := q.Dropped(); d != 1 {
		t.Fatalf("expected 1 dropped event, got %d", d)
	}
}

func TestQueueCloseUnblocksPop(t *testing.T) {
	q := NewQueue(4)
	done := make(chan struct{})
	go func() {
		_, ok := q.Pop()
		if ok {
			t.Error("expected Pop to report closed queue")
		}
		close(done)
	}()
	q.Close()
	<-done
}

func TestQueuePushAfterCloseIsDiscarded(t *testing.T) {
	q := NewQueue(4)
	q.Close()
	q.Push(Event{Sender: "dropped"})
	_, ok := q.Pop()
	if ok {
		t.Fatal("expected no events after close")
	}
}
