package store

import (
	"testing"
	"time"

	"github.com/wethinkt/go-histview/internal/history"
)

func TestHub_SubscribeAndPublish(t *testing.T) {
	h := NewHub()

	ch, unsub := h.Subscribe("chat-1")
	defer unsub()

	fills := map[int64]history.HoleFill{3: {Direction: history.UpperToLower}}
	h.Publish(Change{ChatID: "chat-1", HoleFills: fills})

	select {
	case got := <-ch:
		if got.ChatID != "chat-1" || got.HoleFills[3].Direction != history.UpperToLower {
			t.Errorf("unexpected change: %+v", got)
		}
		fills[4] = history.HoleFill{}
		if len(got.HoleFills) != 1 {
			t.Error("subscribers should get their own copy of the fills")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published change")
	}
}

func TestHub_DifferentChat(t *testing.T) {
	h := NewHub()

	ch, unsub := h.Subscribe("chat-1")
	defer unsub()

	h.Publish(Change{ChatID: "chat-2"})

	select {
	case <-ch:
		t.Fatal("should not receive changes for a different chat")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	h := NewHub()

	ch, unsub := h.Subscribe("chat-1")
	unsub()
	unsub()

	h.Publish(Change{ChatID: "chat-1"})
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
	if n := h.Subscribers("chat-1"); n != 0 {
		t.Errorf("expected no subscribers, got %d", n)
	}
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub()
	_, unsub := h.Subscribe("chat-1")
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			h.Publish(Change{ChatID: "chat-1"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}
