package notify_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/irobothq/irobot/pkg/credentials"
	"github.com/irobothq/irobot/pkg/notify"
	"github.com/irobothq/irobot/pkg/stream"
)

// pushScript writes the given frames, then holds the connection open until
// the client goes away, like a real push endpoint between events.
func pushScript(frames ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		Expect(ok).To(BeTrue())

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for _, frame := range frames {
			fmt.Fprint(w, frame)
			flusher.Flush()
		}
		<-r.Context().Done()
	}
}

// silentStream accepts the subscription and then never sends a byte.
func silentStream() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}
}

// heartbeatStream sends comment heartbeats at the given interval and
// nothing else.
func heartbeatStream(interval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n")
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	}
}

func frame(name, data string) string {
	if name == "" {
		return "data: " + data + "\n\n"
	}
	return "event: " + name + "\ndata: " + data + "\n\n"
}

var _ = Describe("Consumer", func() {
	var server *httptest.Server

	AfterEach(func() {
		if server != nil {
			server.CloseClientConnections()
			server.Close()
			server = nil
		}
	})

	Describe("event dispatch", func() {
		It("decodes typed events and runs handlers in registration order", func() {
			server = httptest.NewServer(pushScript(
				frame(notify.EventConnected, `{}`),
				frame(notify.EventNotification, `{"id":"n1","type":"system","title":"Maintenance tonight"}`),
			))

			consumer := notify.NewConsumer(server.URL)
			var mu sync.Mutex
			var order []string
			consumer.On(notify.EventNotification, func(ev notify.Event) {
				mu.Lock()
				defer mu.Unlock()
				Expect(ev.Notification).NotTo(BeNil())
				Expect(ev.Notification.Title).To(Equal("Maintenance tonight"))
				Expect(ev.ReceivedAt).NotTo(BeZero())
				order = append(order, "first")
			})
			consumer.On(notify.EventNotification, func(notify.Event) {
				mu.Lock()
				defer mu.Unlock()
				order = append(order, "second")
			})

			Expect(consumer.Connect(context.Background())).To(Succeed())
			defer consumer.Disconnect()

			Eventually(func() []string {
				mu.Lock()
				defer mu.Unlock()
				return append([]string(nil), order...)
			}).Should(Equal([]string{"first", "second"}))
		})

		It("falls back to the raw payload for unknown and malformed events", func() {
			server = httptest.NewServer(pushScript(
				frame("totally_new", `{"whatever":1}`),
				frame(notify.EventNotification, `{not json`),
			))

			consumer := notify.NewConsumer(server.URL)
			var mu sync.Mutex
			var seen []notify.Event
			consumer.OnAny(func(ev notify.Event) {
				mu.Lock()
				defer mu.Unlock()
				seen = append(seen, ev)
			})

			Expect(consumer.Connect(context.Background())).To(Succeed())
			defer consumer.Disconnect()

			Eventually(func() int {
				mu.Lock()
				defer mu.Unlock()
				return len(seen)
			}).Should(Equal(2))

			mu.Lock()
			defer mu.Unlock()
			Expect(seen[0].Name).To(Equal("totally_new"))
			Expect(seen[0].Raw).To(Equal(`{"whatever":1}`))
			Expect(seen[1].Notification).To(BeNil())
			Expect(seen[1].Raw).To(Equal(`{not json`))
		})

		It("normalizes the rating carried by feedback events", func() {
			server = httptest.NewServer(pushScript(
				frame(notify.EventFeedback, `{"message_id":"m1","rating":"THUMBS_UP"}`),
			))

			consumer := notify.NewConsumer(server.URL)
			var mu sync.Mutex
			var got notify.Event
			consumer.On(notify.EventFeedback, func(ev notify.Event) {
				mu.Lock()
				defer mu.Unlock()
				got = ev
			})

			Expect(consumer.Connect(context.Background())).To(Succeed())
			defer consumer.Disconnect()

			Eventually(func() bool {
				mu.Lock()
				defer mu.Unlock()
				return got.Feedback != nil
			}).Should(BeTrue())

			mu.Lock()
			defer mu.Unlock()
			Expect(string(got.Feedback.Rating)).To(Equal("thumbs_up"))
		})
	})

	Describe("authentication", func() {
		It("carries the token as a query parameter on a GET subscription", func() {
			var gotToken atomic.Value
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotToken.Store(r.URL.Query().Get("token"))
				Expect(r.Method).To(Equal(http.MethodGet))
				Expect(r.Header.Get("Authorization")).To(BeEmpty())
				w.Header().Set("Content-Type", "text/event-stream")
				w.WriteHeader(http.StatusOK)
				w.(http.Flusher).Flush()
				<-r.Context().Done()
			}))

			consumer := notify.NewConsumer(server.URL,
				notify.WithTokenSource(credentials.StaticSource("tok-123")))
			Expect(consumer.Connect(context.Background())).To(Succeed())
			defer consumer.Disconnect()

			Eventually(gotToken.Load).Should(Equal("tok-123"))
		})
	})

	Describe("liveness", func() {
		It("stays connected while heartbeats arrive within the idle window", func() {
			server = httptest.NewServer(heartbeatStream(20 * time.Millisecond))

			consumer := notify.NewConsumer(server.URL,
				notify.WithHeartbeatTimeout(80*time.Millisecond))
			Expect(consumer.Connect(context.Background())).To(Succeed())
			defer consumer.Disconnect()

			Eventually(consumer.State).Should(Equal(stream.StateOpen))
			Consistently(consumer.State, "300ms", "20ms").Should(Equal(stream.StateOpen))
		})

		It("fails a silent connection and retries on the schedule", func() {
			var requests atomic.Int64
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requests.Add(1)
				silentStream()(w, r)
			}))

			consumer := notify.NewConsumer(server.URL,
				notify.WithHeartbeatTimeout(40*time.Millisecond),
				notify.WithPolicy(stream.Policy{
					MaxAttempts: 4,
					BaseDelay:   10 * time.Millisecond,
					MaxDelay:    50 * time.Millisecond,
					Multiplier:  2.0,
				}))

			var mu sync.Mutex
			var states []stream.State
			consumer.OnStateChange(func(s stream.State) {
				mu.Lock()
				defer mu.Unlock()
				states = append(states, s)
			})

			Expect(consumer.Connect(context.Background())).To(Succeed())
			defer consumer.Disconnect()

			Eventually(func() int64 { return requests.Load() }, "2s").Should(BeNumerically(">=", 2))
			Eventually(func() []stream.State {
				mu.Lock()
				defer mu.Unlock()
				return append([]stream.State(nil), states...)
			}).Should(ContainElement(stream.StateFailed))
		})

		It("gives up with an exhaustion error carrying the timeout cause", func() {
			server = httptest.NewServer(silentStream())

			consumer := notify.NewConsumer(server.URL,
				notify.WithHeartbeatTimeout(30*time.Millisecond),
				notify.WithPolicy(stream.Policy{
					MaxAttempts: 1,
					BaseDelay:   10 * time.Millisecond,
					MaxDelay:    10 * time.Millisecond,
					Multiplier:  1.0,
				}))

			down := make(chan error, 1)
			consumer.OnDown(func(err error) { down <- err })

			Expect(consumer.Connect(context.Background())).To(Succeed())
			defer consumer.Disconnect()

			var err error
			Eventually(down, "2s").Should(Receive(&err))

			var exhausted *stream.ExhaustedError
			Expect(errors.As(err, &exhausted)).To(BeTrue())
			Expect(exhausted.Attempts).To(Equal(1))

			var timeout *stream.TimeoutError
			Expect(errors.As(exhausted.LastErr, &timeout)).To(BeTrue())
			Expect(consumer.Err()).To(Equal(err))
		})
	})

	Describe("Disconnect", func() {
		It("stops the subscription without scheduling a retry", func() {
			var requests atomic.Int64
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requests.Add(1)
				heartbeatStream(10*time.Millisecond)(w, r)
			}))

			consumer := notify.NewConsumer(server.URL)
			Expect(consumer.Connect(context.Background())).To(Succeed())
			Eventually(consumer.State).Should(Equal(stream.StateOpen))

			consumer.Disconnect()
			Expect(consumer.State()).To(Equal(stream.StateClosed))
			Consistently(func() int64 { return requests.Load() }, "200ms", "20ms").Should(Equal(int64(1)))
		})

		It("Reconnect restores the retry budget and opens again", func() {
			var requests atomic.Int64
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requests.Add(1)
				heartbeatStream(10*time.Millisecond)(w, r)
			}))

			consumer := notify.NewConsumer(server.URL)
			Expect(consumer.Connect(context.Background())).To(Succeed())
			Eventually(consumer.State).Should(Equal(stream.StateOpen))

			Expect(consumer.Reconnect(context.Background())).To(Succeed())
			defer consumer.Disconnect()

			Eventually(func() int64 { return requests.Load() }).Should(Equal(int64(2)))
			Eventually(consumer.State).Should(Equal(stream.StateOpen))
		})
	})
})
