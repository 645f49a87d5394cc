// Package sse fans classified library changes out to Server-Sent Events
// clients and in-process listeners.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/deckhand/internal/models"
)

// Event types sent to SSE clients.
const (
	EventContentChanged   = "content.changed"
	EventStructureChanged = "structure.changed"
	EventLibraryUpdated   = "library.updated"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type listenReq struct {
	ch chan models.Change
}

// Broker broadcasts changes to SSE clients and in-process listeners.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable
// state (clients, listeners, library throttle timestamp). Public methods
// communicate with this loop through channels, so no mutexes are required.
type Broker struct {
	libraryMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	listenCh      chan listenReq
	unlistenCh    chan chan models.Change
	changeCh      chan models.Change
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker. libraryThrottle bounds how often
// library.updated is sent.
func NewBroker(libraryThrottle time.Duration) *Broker {
	if libraryThrottle <= 0 {
		libraryThrottle = 2 * time.Second
	}

	b := &Broker{
		libraryMin:    libraryThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		listenCh:      make(chan listenReq),
		unlistenCh:    make(chan chan models.Change),
		changeCh:      make(chan models.Change, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	listeners := make(map[chan models.Change]struct{})
	var lastLibrary time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	notify := func(c models.Change) {
		for ch := range listeners {
			select {
			case ch <- c:
			default:
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			for ch := range listeners {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case req := <-b.listenCh:
			listeners[req.ch] = struct{}{}

		case ch := <-b.unlistenCh:
			if _, ok := listeners[ch]; ok {
				delete(listeners, ch)
				close(ch)
			}

		case c := <-b.changeCh:
			notify(c)
			switch c.Kind {
			case models.ChangeContent:
				broadcast(Event{Type: EventContentChanged, Data: c})
			case models.ChangeStructure:
				broadcast(Event{Type: EventStructureChanged, Data: c})
				now := time.Now()
				if now.Sub(lastLibrary) >= b.libraryMin {
					lastLibrary = now
					broadcast(Event{Type: EventLibraryUpdated, Data: map[string]string{}})
				}
			}

		case resp := <-b.countReqCh:
			resp <- len(clients) + len(listeners)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new SSE client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// Listen registers an in-process observer. The returned cancel func
// unregisters it and closes the channel. Slow listeners miss changes and
// are expected to re-derive on the next one.
func (b *Broker) Listen() (<-chan models.Change, func()) {
	ch := make(chan models.Change, 16)
	if b.closed.Load() {
		close(ch)
		return ch, func() {}
	}
	select {
	case b.listenCh <- listenReq{ch: ch}:
	case <-b.stopped:
		close(ch)
		return ch, func() {}
	}
	return ch, func() {
		if b.closed.Load() {
			return
		}
		select {
		case b.unlistenCh <- ch:
		case <-b.stopped:
		}
	}
}

// ClientCount returns the number of connected clients and listeners.
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

// PublishChange propagates a classified change. Structure changes also
// trigger a throttled library.updated event.
func (b *Broker) PublishChange(c models.Change) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- c:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
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

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
