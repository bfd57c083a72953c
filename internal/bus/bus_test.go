package bus_test

import (
	"testing"
	"time"

	"github.com/aurorae-haven/aurorae/internal/bus"
)

func TestSubscribePrefixMatch(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe("store.")
	defer b.Unsubscribe(sub)

	b.Publish(bus.TopicRecordPut, bus.RecordEvent{Collection: "tasks", Key: "1"})

	select {
	case ev := <-sub.Ch():
		if ev.Topic != bus.TopicRecordPut {
			t.Errorf("topic = %q, want %q", ev.Topic, bus.TopicRecordPut)
		}
		payload, ok := ev.Payload.(bus.RecordEvent)
		if !ok {
			t.Fatalf("payload type = %T, want RecordEvent", ev.Payload)
		}
		if payload.Collection != "tasks" {
			t.Errorf("collection = %q, want tasks", payload.Collection)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribeNonMatchingPrefix(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe("backup.")
	defer b.Unsubscribe(sub)

	b.Publish(bus.TopicRecordPut, nil)

	select {
	case ev := <-sub.Ch():
		t.Fatalf("unexpected event: %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmptyPrefixMatchesAll(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe("")
	defer b.Unsubscribe(sub)

	b.Publish(bus.TopicBackupCreated, bus.BackupEvent{BackupID: "b1", Size: 42})

	select {
	case ev := <-sub.Ch():
		if ev.Topic != bus.TopicBackupCreated {
			t.Errorf("topic = %q, want %q", ev.Topic, bus.TopicBackupCreated)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe("store.")
	b.Unsubscribe(sub)

	if _, ok := <-sub.Ch(); ok {
		t.Error("channel should be closed after unsubscribe")
	}
	if got := b.SubscriberCount(); got != 0 {
		t.Errorf("SubscriberCount = %d, want 0", got)
	}

	// Double unsubscribe must not panic.
	b.Unsubscribe(sub)
}

func TestFullBufferDropsEvents(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe("store.")
	defer b.Unsubscribe(sub)

	for i := 0; i < 200; i++ {
		b.Publish(bus.TopicRecordPut, i)
	}

	// Publisher must not have blocked; drain what was buffered.
	count := 0
	for {
		select {
		case <-sub.Ch():
			count++
		default:
			if count == 0 || count > 100 {
				t.Errorf("buffered events = %d, want 1..100", count)
			}
			return
		}
	}
}
