package stream_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/irobothq/irobot/pkg/credentials"
	"github.com/irobothq/irobot/pkg/sse"
	"github.com/irobothq/irobot/pkg/stream"
)

// eventScript serves a fixed SSE body with a flush per frame, then ends the
// stream.
func eventScript(frames ...string) http.HandlerFunc {
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
	}
}

// recorder collects everything a Conn reports, for assertions.
type recorder struct {
	mu          sync.Mutex
	events      []sse.Event
	states      []stream.State
	disconnects []stream.Disconnect
}

func (r *recorder) options() []stream.Option {
	return []stream.Option{
		stream.WithEventHandler(func(ev sse.Event) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, ev)
		}),
		stream.WithStateHandler(func(s stream.State) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.states = append(r.states, s)
		}),
		stream.WithDisconnectHandler(func(d stream.Disconnect) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.disconnects = append(r.disconnects, d)
		}),
	}
}

func (r *recorder) Events() []sse.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sse.Event(nil), r.events...)
}

func (r *recorder) States() []stream.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]stream.State(nil), r.states...)
}

func (r *recorder) Disconnects() []stream.Disconnect {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]stream.Disconnect(nil), r.disconnects...)
}

var _ = Describe("Conn", func() {
	var server *httptest.Server

	AfterEach(func() {
		if server != nil {
			server.CloseClientConnections()
			server.Close()
			server = nil
		}
	})

	Describe("Open", func() {
		It("delivers events in arrival order and ends cleanly on the sentinel", func() {
			server = httptest.NewServer(eventScript(
				"data: one\n\n",
				"event: note\ndata: two\n\n",
				"data: [DONE]\n\n",
			))

			rec := &recorder{}
			conn := stream.New(server.URL, rec.options()...)
			Expect(conn.Open(context.Background())).To(Succeed())

			Eventually(rec.Disconnects).Should(HaveLen(1))
			Expect(rec.Events()).To(Equal([]sse.Event{
				{Data: "one"},
				{Name: "note", Data: "two"},
			}))
			Expect(rec.Disconnects()[0]).To(Equal(stream.Disconnect{Done: true}))
			Expect(conn.State()).To(Equal(stream.StateClosed))
			Expect(rec.States()).To(Equal([]stream.State{
				stream.StateConnecting,
				stream.StateOpen,
				stream.StateClosed,
			}))
		})

		It("reports a server stream ending without the sentinel", func() {
			server = httptest.NewServer(eventScript("data: partial\n\n"))

			rec := &recorder{}
			conn := stream.New(server.URL, rec.options()...)
			Expect(conn.Open(context.Background())).To(Succeed())

			Eventually(rec.Disconnects).Should(HaveLen(1))
			d := rec.Disconnects()[0]
			Expect(d.Done).To(BeFalse())
			Expect(d.Cause).NotTo(HaveOccurred())
			Expect(conn.State()).To(Equal(stream.StateClosed))
		})

		It("fails a non-2xx response with a TransportError and no disconnect report", func() {
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "bad gateway", http.StatusBadGateway)
			}))

			rec := &recorder{}
			conn := stream.New(server.URL, rec.options()...)
			err := conn.Open(context.Background())

			var terr *stream.TransportError
			Expect(errors.As(err, &terr)).To(BeTrue())
			Expect(terr.Status).To(Equal(http.StatusBadGateway))
			Expect(conn.State()).To(Equal(stream.StateFailed))
			Consistently(rec.Disconnects, "100ms", "20ms").Should(BeEmpty())
		})

		It("fails an unreachable server with a TransportError", func() {
			server = httptest.NewServer(eventScript())
			dead := server.URL
			server.Close()
			server = nil

			conn := stream.New(dead)
			err := conn.Open(context.Background())

			var terr *stream.TransportError
			Expect(errors.As(err, &terr)).To(BeTrue())
			Expect(terr.Status).To(BeZero())
			Expect(terr.Unwrap()).To(HaveOccurred())
			Expect(conn.State()).To(Equal(stream.StateFailed))
		})

		It("rejects a second Open while active", func() {
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				w.WriteHeader(http.StatusOK)
				w.(http.Flusher).Flush()
				<-r.Context().Done()
			}))

			conn := stream.New(server.URL)
			Expect(conn.Open(context.Background())).To(Succeed())
			defer conn.Close()

			Expect(conn.Open(context.Background())).To(MatchError(stream.ErrActive))
		})

		It("may be reopened after it closes, replaying the request body", func() {
			var bodies atomic.Int64
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, err := io.ReadAll(r.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(Equal(`{"q":"hi"}`))
				Expect(r.Header.Get("Content-Type")).To(Equal("application/json"))
				bodies.Add(1)
				eventScript("data: [DONE]\n\n")(w, r)
			}))

			rec := &recorder{}
			opts := append(rec.options(),
				stream.WithMethod(http.MethodPost),
				stream.WithBody("application/json", []byte(`{"q":"hi"}`)),
			)
			conn := stream.New(server.URL, opts...)

			Expect(conn.Open(context.Background())).To(Succeed())
			Eventually(rec.Disconnects).Should(HaveLen(1))

			Expect(conn.Open(context.Background())).To(Succeed())
			Eventually(rec.Disconnects).Should(HaveLen(2))
			Expect(bodies.Load()).To(Equal(int64(2)))
		})
	})

	Describe("authentication", func() {
		It("resolves the token once per open and sends it as a bearer header", func() {
			headers := make(chan string, 2)
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				headers <- r.Header.Get("Authorization")
				eventScript("data: [DONE]\n\n")(w, r)
			}))

			var calls atomic.Int64
			src := credentials.SourceFunc(func(context.Context) (string, error) {
				return fmt.Sprintf("tok-%d", calls.Add(1)), nil
			})

			rec := &recorder{}
			opts := append(rec.options(), stream.WithTokenSource(src))
			conn := stream.New(server.URL, opts...)

			Expect(conn.Open(context.Background())).To(Succeed())
			Eventually(rec.Disconnects).Should(HaveLen(1))
			Expect(conn.Open(context.Background())).To(Succeed())
			Eventually(rec.Disconnects).Should(HaveLen(2))

			Expect(<-headers).To(Equal("Bearer tok-1"))
			Expect(<-headers).To(Equal("Bearer tok-2"))
			Expect(calls.Load()).To(Equal(int64(2)))
		})

		It("carries the token in the query string when configured", func() {
			query := make(chan string, 1)
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				query <- r.URL.Query().Get("token")
				Expect(r.Header.Get("Authorization")).To(BeEmpty())
				eventScript("data: [DONE]\n\n")(w, r)
			}))

			conn := stream.New(server.URL,
				stream.WithTokenInQuery(credentials.StaticSource("secret"), ""))
			Expect(conn.Open(context.Background())).To(Succeed())
			Eventually(query).Should(Receive(Equal("secret")))
		})

		It("fails the open when the token source has nothing", func() {
			server = httptest.NewServer(eventScript())

			conn := stream.New(server.URL,
				stream.WithTokenSource(credentials.StaticSource("")))
			err := conn.Open(context.Background())
			Expect(errors.Is(err, credentials.ErrNoToken)).To(BeTrue())
			Expect(conn.State()).To(Equal(stream.StateFailed))
		})
	})

	Describe("heartbeat watchdog", func() {
		It("fails a silent connection with a TimeoutError", func() {
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				w.WriteHeader(http.StatusOK)
				w.(http.Flusher).Flush()
				<-r.Context().Done()
			}))

			rec := &recorder{}
			opts := append(rec.options(), stream.WithHeartbeatTimeout(50*time.Millisecond))
			conn := stream.New(server.URL, opts...)
			Expect(conn.Open(context.Background())).To(Succeed())

			Eventually(rec.Disconnects, "2s").Should(HaveLen(1))
			var timeout *stream.TimeoutError
			Expect(errors.As(rec.Disconnects()[0].Cause, &timeout)).To(BeTrue())
			Expect(timeout.Idle).To(Equal(50 * time.Millisecond))
			Expect(conn.State()).To(Equal(stream.StateFailed))
		})

		It("treats comment lines as liveness", func() {
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				flusher := w.(http.Flusher)
				w.Header().Set("Content-Type", "text/event-stream")
				w.WriteHeader(http.StatusOK)
				flusher.Flush()

				ticker := time.NewTicker(20 * time.Millisecond)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						fmt.Fprint(w, ": keepalive\n")
						flusher.Flush()
					case <-r.Context().Done():
						return
					}
				}
			}))

			conn := stream.New(server.URL, stream.WithHeartbeatTimeout(80*time.Millisecond))
			Expect(conn.Open(context.Background())).To(Succeed())
			defer conn.Close()

			Consistently(conn.State, "300ms", "20ms").Should(Equal(stream.StateOpen))
		})
	})

	Describe("Close", func() {
		It("is idempotent and never reaches the disconnect handler", func() {
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				w.WriteHeader(http.StatusOK)
				w.(http.Flusher).Flush()
				<-r.Context().Done()
			}))

			rec := &recorder{}
			conn := stream.New(server.URL, rec.options()...)
			Expect(conn.Open(context.Background())).To(Succeed())
			Eventually(conn.State).Should(Equal(stream.StateOpen))

			conn.Close()
			conn.Close()
			Expect(conn.State()).To(Equal(stream.StateClosed))
			Consistently(rec.Disconnects, "150ms", "20ms").Should(BeEmpty())
		})

		It("context cancellation reports an intentional disconnect", func() {
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				w.WriteHeader(http.StatusOK)
				w.(http.Flusher).Flush()
				<-r.Context().Done()
			}))

			rec := &recorder{}
			conn := stream.New(server.URL, rec.options()...)
			ctx, cancel := context.WithCancel(context.Background())
			Expect(conn.Open(ctx)).To(Succeed())
			Eventually(conn.State).Should(Equal(stream.StateOpen))

			cancel()
			Eventually(rec.Disconnects).Should(HaveLen(1))
			d := rec.Disconnects()[0]
			Expect(d.Intentional).To(BeTrue())
			Expect(d.Cause).To(MatchError(context.Canceled))
			Expect(conn.State()).To(Equal(stream.StateClosed))
		})
	})
})
