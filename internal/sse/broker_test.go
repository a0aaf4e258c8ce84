package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncRecorder guards the body so the handler goroutine and the test can
// both touch it.
type syncRecorder struct {
	*httptest.ResponseRecorder
	mu sync.Mutex
}

func (r *syncRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Write(p)
}

func (r *syncRecorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Body.String()
}

func drain(ch chan Event) []Event {
	var out []Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe("")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: TypeCanvasCreated, CanvasID: "c1", Data: map[string]string{"id": "c1"}})

	select {
	case ev := <-ch:
		if ev.Type != TypeCanvasCreated || ev.CanvasID != "c1" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestSubscribeFiltersByCanvas(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	only := b.Subscribe("c1")
	defer b.Unsubscribe(only)

	b.PublishCanvasEvent("updated", "c2")
	b.PublishCanvasEvent("canvas.updated", "c1")
	time.Sleep(50 * time.Millisecond)

	got := drain(only)
	if len(got) != 1 || got[0].CanvasID != "c1" || got[0].Type != TypeCanvasUpdated {
		t.Errorf("events = %+v, want only c1 update", got)
	}
}

func TestPublishCanvasEvent_ListThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	// First event triggers canvases.changed; the second is inside the window.
	b.PublishCanvasEvent("created", "a")
	b.PublishCanvasEvent("canvas.updated", "b")
	b.PublishCanvasEvent("bogus", "c")

	time.Sleep(50 * time.Millisecond)
	listCount, canvasCount := 0, 0
	for _, ev := range drain(ch) {
		if ev.Type == TypeCanvasesListed {
			listCount++
		} else {
			canvasCount++
		}
	}

	if canvasCount != 2 {
		t.Errorf("canvas events = %d, want 2", canvasCount)
	}
	if listCount != 1 {
		t.Errorf("list events = %d, want 1 (throttled)", listCount)
	}
}

func TestFormat(t *testing.T) {
	msg, err := Format(Event{Type: TypeCanvasDeleted, Data: map[string]string{"id": "x"}})
	if err != nil {
		t.Fatal(err)
	}
	if string(msg) != "event: canvas.deleted\ndata: {\"id\":\"x\"}\n\n" {
		t.Errorf("msg = %q", msg)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := &syncRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishCanvasEvent("updated", "c9")
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.body()
	if !strings.Contains(body, "event: canvas.updated") || !strings.Contains(body, `"id":"c9"`) {
		t.Errorf("handler output missing event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	// Buffer holds 64; the rest must be dropped without blocking.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe("")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	b.Publish(Event{Type: TypeCanvasUpdated})
	b.PublishCanvasEvent("updated", "x")
}
