// Package sse streams view lifecycle events to browsers over Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/starford/folio/internal/folder"
	"github.com/starford/folio/internal/models"
)

// Event types sent to clients besides the folder.Event* lifecycle kinds.
const (
	EventTreeUpdated     = "tree.updated"
	EventDocumentChanged = "document.changed"
	EventDocumentRemoved = "document.removed"
)

// Event is one SSE message.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ViewData is the payload of view.* events.
type ViewData struct {
	ID          uuid.UUID          `json:"id"`
	WorkspaceID uuid.UUID          `json:"workspace_id"`
	ParentID    uuid.UUID          `json:"parent_id"`
	Name        string             `json:"name"`
	ContentType models.ContentType `json:"content_type"`
}

type viewEvent struct {
	kind string
	view models.View
}

// Broker fans events out to subscribed clients.
//
// A single loop goroutine owns the client set and the tree.updated throttle
// state; public methods talk to it over channels.
type Broker struct {
	treeMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	viewCh        chan viewEvent
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker that emits tree.updated at most once per
// workspace every treeThrottle.
func NewBroker(treeThrottle time.Duration) *Broker {
	if treeThrottle <= 0 {
		treeThrottle = 2 * time.Second
	}
	b := &Broker{
		treeMin:       treeThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		viewCh:        make(chan viewEvent, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.run()
	return b
}

func encode(e Event) ([]byte, error) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "event: %s\ndata: %s\n\n", e.Type, payload), nil
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	lastTree := make(map[uuid.UUID]time.Time)

	broadcast := func(e Event) {
		raw, err := encode(e)
		if err != nil {
			return
		}
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than stall the loop.
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

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case e := <-b.publishCh:
			broadcast(e)

		case ve := <-b.viewCh:
			v := ve.view
			broadcast(Event{Type: ve.kind, Data: ViewData{
				ID:          v.ID,
				WorkspaceID: v.WorkspaceID,
				ParentID:    v.ParentID,
				Name:        v.Name,
				ContentType: v.Type,
			}})
			switch ve.kind {
			case folder.EventViewOpened, folder.EventViewClosed, folder.EventViewUpdated:
				continue
			}
			now := time.Now()
			if now.Sub(lastTree[v.WorkspaceID]) >= b.treeMin {
				lastTree[v.WorkspaceID] = now
				broadcast(Event{Type: EventTreeUpdated, Data: map[string]string{"workspace_id": v.WorkspaceID.String()}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client and returns its message channel.
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

// Publish sends e to every client.
func (b *Broker) Publish(e Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- e:
	case <-b.stopped:
	}
}

// PublishView reports a folder lifecycle event. Tree-changing kinds are
// followed by a throttled tree.updated for the view's workspace. Its
// signature matches folder.EventFunc.
func (b *Broker) PublishView(kind string, v models.View) {
	if b.closed.Load() {
		return
	}
	select {
	case b.viewCh <- viewEvent{kind: kind, view: v}:
	case <-b.stopped:
	}
}

// PublishCatalog reports a snapshot change noticed by the catalog watcher.
// Its signature matches index.EventCallback.
func (b *Broker) PublishCatalog(kind string, viewID uuid.UUID) {
	typ := EventDocumentChanged
	if kind == "deleted" {
		typ = EventDocumentRemoved
	}
	b.Publish(Event{Type: typ, Data: map[string]string{"view_id": viewID.String(), "change": kind}})
}

// ServeHTTP is the SSE endpoint (GET /api/events).
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
