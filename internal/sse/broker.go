// Package sse implements a Server-Sent Events broker for publish run updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/pagefeed/internal/ledger"
)

// Event types.
const (
	EventFeedPublished = "feed.published"
	EventRunFailed     = "run.failed"
	EventSourceChanged = "source.changed"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// RunData is the payload of run events.
type RunData struct {
	RunID     string `json:"run_id"`
	Items     int    `json:"items"`
	Committed int    `json:"committed"`
	Error     string `json:"error,omitempty"`
}

// Broker fans events out to SSE clients.
//
// One goroutine owns the client set, the change throttle and the last run
// event; every public method talks to it over channels. Each broadcast
// carries an increasing id. A client that connects after a run receives
// that run's event first, so a dashboard can show the current feed state
// without polling.
type Broker struct {
	changeMin time.Duration
	keepAlive time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan []string
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// DefaultKeepAlive is the interval of comment frames sent to idle clients.
const DefaultKeepAlive = 30 * time.Second

// NewBroker starts a broker. Source-change events closer together than
// changeThrottle are dropped.
func NewBroker(changeThrottle time.Duration) *Broker {
	if changeThrottle <= 0 {
		changeThrottle = 2 * time.Second
	}

	b := &Broker{
		changeMin:     changeThrottle,
		keepAlive:     DefaultKeepAlive,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan []string, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.loop()
	return b
}

func isRunEvent(typ string) bool {
	return typ == EventFeedPublished || typ == EventRunFailed
}

func (b *Broker) loop() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var (
		seq        uint64
		lastChange time.Time
		lastRun    []byte
	)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		seq++
		frame := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload))
		if isRunEvent(event.Type) {
			lastRun = frame
		}
		for ch := range clients {
			select {
			case ch <- frame:
			default:
				// slow client, drop
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
			if lastRun != nil {
				ch <- lastRun
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case paths := <-b.changeCh:
			if now := time.Now(); now.Sub(lastChange) >= b.changeMin {
				lastChange = now
				broadcast(Event{Type: EventSourceChanged, Data: map[string][]string{"paths": paths}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
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

// Subscribe adds a new client and returns its channel.
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

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// NotifyRun broadcasts feed.published for a successful run and
// run.failed otherwise.
func (b *Broker) NotifyRun(r ledger.Run) {
	data := RunData{RunID: r.ID, Items: r.Items, Committed: r.Committed, Error: r.Error}
	if r.Status == ledger.RunFailed {
		b.Publish(Event{Type: EventRunFailed, Data: data})
		return
	}
	b.Publish(Event{Type: EventFeedPublished, Data: data})
}

// PublishSourceChange broadcasts a throttled source.changed event.
func (b *Broker) PublishSourceChange(paths []string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- paths:
	case <-b.stopped:
	}
}

// ServeHTTP streams events to one client until it disconnects. Idle
// connections get a comment frame every keepAlive so proxies keep them open.
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

	ping := time.NewTicker(b.keepAlive)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
