package realtime

import (
	"context"
	"testing"
	"time"
)

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case evt, ok := <-sub.C():
		if !ok {
			t.Fatalf("subscription closed")
		}
		return evt
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return Event{}
}

func TestHubDeliversOnlySubscribedTopics(t *testing.T) {
	hub := NewHub(4)
	sub := hub.Subscribe(MessagesTopic(1), ChatTopic(1))
	defer sub.Close()

	hub.Emit(context.Background(), TypeMessageCreated, MessagesTopic(2), map[string]string{"content": "other"})
	hub.Emit(context.Background(), TypeMessageCreated, MessagesTopic(1), map[string]string{"content": "hi"})

	evt := receive(t, sub)
	if evt.Topic != MessagesTopic(1) || evt.Type != TypeMessageCreated {
		t.Fatalf("unexpected event: %+v", evt)
	}
	var payload map[string]string
	if err := evt.Decode(&payload); err != nil || payload["content"] != "hi" {
		t.Fatalf("unexpected payload: %v err=%v", payload, err)
	}
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe(DeliveryTopic(9))
	defer sub.Close()

	for i := 0; i < 3; i++ {
		hub.Emit(context.Background(), TypeDeliveryUpdated, DeliveryTopic(9), map[string]int{"i": i})
	}
	if hub.Dropped() != 2 {
		t.Fatalf("expected 2 dropped events, got %d", hub.Dropped())
	}
}

func TestSubscriptionCloseTearsDown(t *testing.T) {
	hub := NewHub(2)
	sub := hub.Subscribe(ChatTopic(3), MessagesTopic(3))
	if hub.SubscriberCount(ChatTopic(3)) != 1 {
		t.Fatalf("expected one subscriber")
	}
	sub.Close()
	sub.Close()
	if hub.SubscriberCount(ChatTopic(3)) != 0 || hub.SubscriberCount(MessagesTopic(3)) != 0 {
		t.Fatalf("topics should be empty after close")
	}
	if _, ok := <-sub.C(); ok {
		t.Fatalf("channel should be closed")
	}
	hub.Emit(context.Background(), TypeChatUpdated, ChatTopic(3), nil)
}

func TestParseTopic(t *testing.T) {
	kind, id, err := ParseTopic("deliveries:42")
	if err != nil || kind != KindDeliveries || id != 42 {
		t.Fatalf("unexpected parse: %s %d %v", kind, id, err)
	}
	for _, bad := range []string{"", "deliveries", "deliveries:0", "orders:1", "chats:x"} {
		if _, _, err := ParseTopic(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
