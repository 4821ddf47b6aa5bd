package api

import (
	"testing"
)

func TestTrySend_AfterClose(t *testing.T) {
	c := &WSClient{send: make(chan WSMessage, 1)}
	c.closeSend()

	// A render goroutine finishing after disconnect must not panic
	c.trySend(WSMessage{Event: EventFrame})
}

func TestCloseSend_Idempotent(t *testing.T) {
	c := &WSClient{send: make(chan WSMessage, 1)}
	c.closeSend()
	c.closeSend()
}

func TestTrySend_DropsWhenFull(t *testing.T) {
	c := &WSClient{send: make(chan WSMessage, 1)}

	c.trySend(WSMessage{Event: EventFrame})
	c.trySend(WSMessage{Event: EventFrame})

	if got := len(c.send); got != 1 {
		t.Errorf("Expected 1 buffered message, got %d", got)
	}
}
