package realtime

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func testHub() *Hub {
	return NewHub(slog.Default())
}

// ---------------------------------------------------------------------------
// shouldSend tests
// ---------------------------------------------------------------------------

func TestShouldSend_OwnerOnly(t *testing.T) {
	h := testHub()
	client := &Client{userID: "usr_a"}

	mine := &Event{Type: EventInvoiceCreated, UserID: "usr_a"}
	theirs := &Event{Type: EventInvoiceCreated, UserID: "usr_b"}

	if !h.shouldSend(client, mine) {
		t.Error("Client should receive own events")
	}
	if h.shouldSend(client, theirs) {
		t.Error("Client should NOT receive another user's events")
	}
}

func TestShouldSend_EventTypeFilter(t *testing.T) {
	h := testHub()

	client := &Client{userID: "usr_a", sub: Subscription{
		EventTypes: []string{EventInvoicePaid, EventLimitDenied},
	}}

	paid := &Event{Type: EventInvoicePaid, UserID: "usr_a"}
	denied := &Event{Type: EventLimitDenied, UserID: "usr_a"}
	created := &Event{Type: EventInvoiceCreated, UserID: "usr_a"}

	if !h.shouldSend(client, paid) {
		t.Error("Should receive invoice.paid events")
	}
	if !h.shouldSend(client, denied) {
		t.Error("Should receive limit.denied events")
	}
	if h.shouldSend(client, created) {
		t.Error("Should NOT receive invoice.created events")
	}
}

func TestShouldSend_EmptySubscription(t *testing.T) {
	h := testHub()

	client := &Client{userID: "usr_a", sub: Subscription{}}

	event := &Event{Type: EventSubscriptionUpdated, UserID: "usr_a"}
	if !h.shouldSend(client, event) {
		t.Error("Empty subscription (no filters) should receive all own events")
	}
}

// ---------------------------------------------------------------------------
// Hub lifecycle tests
// ---------------------------------------------------------------------------

func TestHub_Stats_Initial(t *testing.T) {
	h := testHub()

	stats := h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients, got %v", stats["connectedClients"])
	}
	if stats["totalEvents"].(int64) != 0 {
		t.Errorf("Expected 0 total events, got %v", stats["totalEvents"])
	}
}

func TestHub_PublishAndStats(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	h.Publish("usr_a", EventInvoiceCreated, map[string]interface{}{"id": "inv_1"})
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["totalEvents"].(int64) != 1 {
		t.Errorf("Expected 1 total event, got %v", stats["totalEvents"])
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:    h,
		send:   make(chan []byte, 256),
		userID: "usr_a",
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["connectedClients"].(int) != 1 {
		t.Errorf("Expected 1 connected client, got %v", stats["connectedClients"])
	}

	h.unregister <- client
	time.Sleep(50 * time.Millisecond)

	stats = h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients after unregister, got %v", stats["connectedClients"])
	}
}

func TestHub_PublishRoutesToOwner(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	owner := &Client{hub: h, send: make(chan []byte, 256), userID: "usr_a"}
	other := &Client{hub: h, send: make(chan []byte, 256), userID: "usr_b"}

	h.register <- owner
	h.register <- other
	time.Sleep(50 * time.Millisecond)

	h.Publish("usr_a", EventInvoicePaid, map[string]interface{}{"id": "inv_1"})

	select {
	case msg := <-owner.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Timeout waiting for owner's event")
	}

	select {
	case <-other.send:
		t.Error("Other user should NOT receive the event")
	default:
		// Good - not delivered
	}
}

func TestHub_ContextCancellation(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
		// Hub stopped
	case <-time.After(2 * time.Second):
		t.Error("Hub did not stop after context cancellation")
	}
}

func TestHub_FilteredPublish(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	// Client only wants subscription changes
	client := &Client{
		hub:    h,
		send:   make(chan []byte, 256),
		userID: "usr_a",
		sub:    Subscription{EventTypes: []string{EventSubscriptionUpdated}},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	h.Publish("usr_a", EventInvoiceCreated, nil)
	time.Sleep(100 * time.Millisecond)

	select {
	case <-client.send:
		t.Error("Client should NOT receive invoice.created event")
	default:
		// Good - filtered out
	}

	h.Publish("usr_a", EventSubscriptionUpdated, map[string]interface{}{"plan": "pro"})

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Client should receive subscription.updated event")
	}
}
