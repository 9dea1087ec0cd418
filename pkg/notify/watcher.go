package notify

import (
	"context"
	"sync"

	"github.com/irobothq/irobot/pkg/api"
)

// DocumentWatcher follows one document's processing stream until the
// document reaches a terminal status, then closes the subscription itself.
// A terminal status is an answer, not an outage, so no retry follows it.
type DocumentWatcher struct {
	consumer *Consumer

	mu     sync.Mutex
	status string
	fns    []func(DocumentStatusPayload)
	done   chan struct{}
}

// NewDocumentWatcher builds a watcher for the given document. The consumer
// options apply to the underlying subscription.
func NewDocumentWatcher(baseURL, documentID string, opts ...ConsumerOption) *DocumentWatcher {
	w := &DocumentWatcher{
		consumer: NewConsumer(EndpointDocumentStatus(baseURL, documentID), opts...),
		done:     make(chan struct{}),
	}
	w.consumer.On(EventDocumentStatus, w.observe)
	w.consumer.On("status", w.observe)
	w.consumer.OnDown(func(error) { w.finish() })
	return w
}

// OnStatus registers a handler for every status update, terminal included.
func (w *DocumentWatcher) OnStatus(fn func(DocumentStatusPayload)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fns = append(w.fns, fn)
}

// Watch opens the subscription.
func (w *DocumentWatcher) Watch(ctx context.Context) error {
	return w.consumer.Connect(ctx)
}

// Stop closes the subscription without waiting for a terminal status.
func (w *DocumentWatcher) Stop() {
	w.consumer.Disconnect()
	w.finish()
}

// Done is closed once the watcher has stopped, whether by terminal status,
// exhausted retries or Stop.
func (w *DocumentWatcher) Done() <-chan struct{} {
	return w.done
}

// Status returns the last status observed.
func (w *DocumentWatcher) Status() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Err surfaces a terminal subscription error, if retries were exhausted
// before a terminal status arrived.
func (w *DocumentWatcher) Err() error {
	return w.consumer.Err()
}

func (w *DocumentWatcher) observe(ev Event) {
	if ev.DocumentStatus == nil {
		return
	}
	payload := *ev.DocumentStatus

	w.mu.Lock()
	w.status = payload.Status
	fns := w.fns
	w.mu.Unlock()

	for _, fn := range fns {
		fn(payload)
	}

	if api.IsTerminalDocumentStatus(payload.Status) {
		w.consumer.Disconnect()
		w.finish()
	}
}

func (w *DocumentWatcher) finish() {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.done:
	default:
		close(w.done)
	}
}
