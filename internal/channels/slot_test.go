package channels

import "testing"

func TestSendFailsWithNoPublishedChannel(t *testing.T) {
	s := NewSlot()
	delivered, active := s.Send(PushMessage{MonitorID: "mon-1"})
	if delivered || active {
		t.Errorf("Send() = (%v, %v), want (false, false) with no channel published", delivered, active)
	}
}

func TestPublishThenSendDelivers(t *testing.T) {
	s := NewSlot()
	ch := make(chan PushMessage, 1)
	s.Publish(ch)

	delivered, active := s.Send(PushMessage{MonitorID: "mon-1"})
	if !delivered || !active {
		t.Fatalf("Send() = (%v, %v), want (true, true) once a channel is published", delivered, active)
	}
	msg := <-ch
	if msg.MonitorID != "mon-1" {
		t.Errorf("msg.MonitorID = %q, want mon-1", msg.MonitorID)
	}
}

func TestSendReportsActiveButNotDeliveredWhenBufferFull(t *testing.T) {
	s := NewSlot()
	ch := make(chan PushMessage, 1)
	s.Publish(ch)

	if delivered, active := s.Send(PushMessage{MonitorID: "first"}); !delivered || !active {
		t.Fatalf("first Send() = (%v, %v), want (true, true)", delivered, active)
	}
	delivered, active := s.Send(PushMessage{MonitorID: "second"})
	if delivered {
		t.Error("second Send() delivered = true, want false when buffer is full (non-blocking drop)")
	}
	if !active {
		t.Error("second Send() active = false, want true: a channel is published, just momentarily full")
	}
}

func TestClearStopsDelivery(t *testing.T) {
	s := NewSlot()
	ch := make(chan PushMessage, 1)
	s.Publish(ch)
	s.Clear()

	delivered, active := s.Send(PushMessage{MonitorID: "mon-1"})
	if delivered || active {
		t.Errorf("Send() = (%v, %v) after Clear(), want (false, false)", delivered, active)
	}
}
