// Package hub fans events out from the demo server's publishers to its
// stream subscribers. Deliveries go through a bounded worker pool so one
// slow subscriber never stalls the publishing path.
package hub

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/irobothq/irobot/pkg/logger"
)

var (
	defaultNumWorkers   uint = 3
	defaultQueueSize    uint = 256
	defaultSubscriberBuffer  = 16
)

// Event is one server event to broadcast: a name and its data payload.
type Event struct {
	Name string
	Data []byte
}

// Config holds the hub's pool settings.
type Config struct {
	// NumWorkers is the number of delivery workers (defaults to 3).
	NumWorkers uint

	// QueueSize is the capacity of the delivery queue (defaults to 256).
	QueueSize uint

	// Logger is the hub's logger.
	Logger *slog.Logger
}

// delivery is one unit of work: one event bound for one subscriber.
type delivery struct {
	id uint64
	ev Event
}

// Hub broadcasts events to any number of subscribers.
type Hub struct {
	logger *slog.Logger
	queue  chan delivery
	wg     sync.WaitGroup

	mu     sync.Mutex
	subs   map[uint64]chan Event
	nextID uint64
	closed bool
}

// New creates a Hub and starts its delivery workers.
func New(c Config) (*Hub, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	h := &Hub{
		logger: c.Logger,
		queue:  make(chan delivery, c.QueueSize),
		subs:   make(map[uint64]chan Event),
	}

	h.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go h.worker(i)
	}

	return h, nil
}

// Subscribe registers a new subscriber and returns its event channel along
// with a cancel function. The channel is closed on cancel or hub Close.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, defaultSubscriberBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.nextID++
	id := h.nextID
	h.subs[id] = ch
	h.mu.Unlock()

	h.logger.Debug("subscriber joined", "id", id)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(ch)
			}
			h.mu.Unlock()
			h.logger.Debug("subscriber left", "id", id)
		})
	}
	return ch, cancel
}

// Publish queues the event for delivery to every current subscriber.
// Returns the number of deliveries queued; deliveries beyond the queue's
// capacity are dropped.
func (h *Hub) Publish(ev Event) int {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return 0
	}
	targets := make([]uint64, 0, len(h.subs))
	for id := range h.subs {
		targets = append(targets, id)
	}
	h.mu.Unlock()

	queued := 0
	for _, id := range targets {
		select {
		case h.queue <- delivery{id: id, ev: ev}:
			queued++
		default:
			h.logger.Error("delivery queue full, event dropped", "event", ev.Name)
		}
	}
	return queued
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close drops all subscribers, stops the workers and waits for queued
// deliveries to drain.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
	h.mu.Unlock()

	close(h.queue)
	h.wg.Wait()
}

// worker continuously pulls deliveries off the queue and hands them to
// subscribers. A subscriber with a full buffer misses the event rather than
// blocking the pool.
func (h *Hub) worker(id uint) {
	defer h.wg.Done()
	h.logger.Debug("delivery worker started", "worker_id", id)

	for d := range h.queue {
		h.deliver(d)
	}

	h.logger.Debug("delivery worker stopped", "worker_id", id)
}

// deliver sends one event to one subscriber. The lookup and the non-blocking
// send happen under the lock so a concurrent cancel cannot close the channel
// mid-send. A subscriber that canceled after Publish snapshotted the targets
// simply misses the event.
func (h *Hub) deliver(d delivery) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.subs[d.id]
	if !ok {
		return
	}
	select {
	case ch <- d.ev:
	default:
		h.logger.Warn("subscriber buffer full, event missed", "event", d.ev.Name)
	}
}
