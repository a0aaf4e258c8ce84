// Package sse implements the event broker behind the live-update endpoints.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Event types.
const (
	TypeCanvasCreated  = "canvas.created"
	TypeCanvasUpdated  = "canvas.updated"
	TypeCanvasDeleted  = "canvas.deleted"
	TypeCanvasesListed = "canvases.changed"
)

// Event is one broadcast message. CanvasID is empty for workspace-wide events.
type Event struct {
	Type     string `json:"type"`
	CanvasID string `json:"canvasId,omitempty"`
	Data     any    `json:"data"`
}

type subscriber struct {
	ch       chan Event
	canvasID string
}

type canvasEventReq struct {
	kind     string
	canvasID string
}

// Broker fans events out to subscribers.
//
// A single internal event loop owns the subscriber set and the listing
// throttle timestamp; public methods talk to it over channels.
type Broker struct {
	listMin time.Duration

	subscribeCh   chan subscriber
	unsubscribeCh chan chan Event
	publishCh     chan Event
	canvasEventCh chan canvasEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits at most one canvases.changed event
// per throttle interval.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = 2 * time.Second
	}

	b := &Broker{
		listMin:       throttle,
		subscribeCh:   make(chan subscriber),
		unsubscribeCh: make(chan chan Event),
		publishCh:     make(chan Event, 256),
		canvasEventCh: make(chan canvasEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan Event]string)
	var lastList time.Time

	broadcast := func(event Event) {
		for ch, filter := range clients {
			if filter != "" && event.CanvasID != filter {
				continue
			}
			select {
			case ch <- event:
			default:
				// Client buffer full; skip to avoid blocking the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.canvasID

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.canvasEventCh:
			typ := canvasEventType(req.kind)
			if typ == "" {
				continue
			}
			broadcast(Event{Type: typ, CanvasID: req.canvasID, Data: map[string]string{"id": req.canvasID}})

			now := time.Now()
			if now.Sub(lastList) >= b.listMin {
				lastList = now
				broadcast(Event{Type: TypeCanvasesListed, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// canvasEventType accepts both store kinds ("canvas.updated") and watcher
// kinds ("updated").
func canvasEventType(kind string) string {
	switch strings.TrimPrefix(kind, "canvas.") {
	case "created":
		return TypeCanvasCreated
	case "updated":
		return TypeCanvasUpdated
	case "deleted":
		return TypeCanvasDeleted
	}
	return ""
}

// Close gracefully stops the broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client. A non-empty canvasID restricts delivery to events
// for that canvas.
func (b *Broker) Subscribe(canvasID string) chan Event {
	ch := make(chan Event, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscriber{ch: ch, canvasID: canvasID}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all matching clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishCanvasEvent publishes a canvas change and a throttled
// canvases.changed event. Its signature matches the store and watcher
// callbacks.
func (b *Broker) PublishCanvasEvent(kind, canvasID string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.canvasEventCh <- canvasEventReq{kind: kind, canvasID: canvasID}:
	case <-b.stopped:
	}
}

// Format renders event in text/event-stream framing.
func Format(event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)), nil
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). The optional
// canvas query parameter filters to one canvas.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(r.URL.Query().Get("canvas"))
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			msg, err := Format(event)
			if err != nil {
				continue
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
