package demo_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/irobothq/irobot/demo"
	"github.com/irobothq/irobot/pkg/chat"
	"github.com/irobothq/irobot/pkg/credentials"
	"github.com/irobothq/irobot/pkg/notify"
	"github.com/irobothq/irobot/pkg/sse"
)

var _ = Describe("Server", func() {
	var (
		server  *demo.Server
		baseURL string
		tokens  credentials.Source
	)

	BeforeEach(func() {
		var err error
		server, err = demo.New(demo.Config{
			HeartbeatInterval: 30 * time.Millisecond,
			DeltaInterval:     time.Millisecond,
			StatusInterval:    5 * time.Millisecond,
		})
		Expect(err).NotTo(HaveOccurred())

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		baseURL = "http://" + listener.Addr().String()
		tokens = credentials.StaticSource("demo-access-token")

		go func() {
			defer GinkgoRecover()
			_ = server.RunWithListener(listener)
		}()

		Eventually(func() error {
			resp, err := http.Get(baseURL + "/api/auth/me")
			if err != nil {
				return err
			}
			resp.Body.Close()
			return nil
		}).Should(Succeed())
	})

	AfterEach(func() {
		Expect(server.Close()).To(Succeed())
	})

	postJSON := func(path string, payload any, headers map[string]string) *http.Response {
		GinkgoHelper()
		body, err := json.Marshal(payload)
		Expect(err).NotTo(HaveOccurred())
		req, err := http.NewRequest(http.MethodPost, baseURL+path, bytes.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	Describe("auth stubs", func() {
		It("issues demo tokens on login", func() {
			resp := postJSON("/api/auth/login", map[string]string{
				"email":    "demo@irobot.local",
				"password": "anything",
			}, nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body struct {
				AccessToken  string `json:"access_token"`
				RefreshToken string `json:"refresh_token"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body.AccessToken).NotTo(BeEmpty())
			Expect(body.RefreshToken).NotTo(BeEmpty())
		})

		It("rejects unauthenticated access to protected endpoints", func() {
			resp, err := http.Get(baseURL + "/api/conversations")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("chat stream", func() {
		It("plays a scripted answer through the real chat consumer", func() {
			consumer := chat.New(baseURL, chat.WithTokenSource(tokens))

			res, err := consumer.Send(context.Background(), "", "What is the refund policy?")
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Content).To(ContainSubstring("Refunds are available within 30 days"))
			Expect(res.Sources).NotTo(BeEmpty())
			Expect(res.Sources[0].Title).To(Equal("Refund Policy"))
			Expect(res.ConversationID).NotTo(BeEmpty())
		})

		It("records the turn so the conversation endpoints serve it", func() {
			consumer := chat.New(baseURL, chat.WithTokenSource(tokens))
			res, err := consumer.Send(context.Background(), "", "shipping times?")
			Expect(err).NotTo(HaveOccurred())

			req, err := http.NewRequest(http.MethodGet, baseURL+"/api/conversations", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization", "Bearer demo-access-token")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			var conversations []struct {
				ID    string `json:"id"`
				Title string `json:"title"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&conversations)).To(Succeed())
			Expect(conversations).To(HaveLen(1))
			Expect(conversations[0].ID).To(Equal(res.ConversationID))
			Expect(conversations[0].Title).To(Equal("shipping times?"))
		})
	})

	Describe("notification stream", func() {
		It("announces the subscription and relays published events", func() {
			consumer := notify.NewConsumer(
				notify.EndpointNotifications(baseURL),
				notify.WithTokenSource(tokens))

			var mu sync.Mutex
			var names []string
			consumer.OnAny(func(ev notify.Event) {
				mu.Lock()
				defer mu.Unlock()
				names = append(names, ev.Name)
			})

			Expect(consumer.Connect(context.Background())).To(Succeed())
			defer consumer.Disconnect()

			Eventually(func() []string {
				mu.Lock()
				defer mu.Unlock()
				return append([]string(nil), names...)
			}).Should(ContainElement(notify.EventConnected))

			server.Notify("notification", []byte(`{"id":"n1","type":"system","title":"hi"}`))
			Eventually(func() []string {
				mu.Lock()
				defer mu.Unlock()
				return append([]string(nil), names...)
			}, "2s").Should(ContainElement(notify.EventNotification))
		})

		It("keeps the connection alive with heartbeat comments", func() {
			req, err := http.NewRequest(http.MethodGet,
				notify.EndpointNotifications(baseURL)+"?token=demo-access-token", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/event-stream"))

			sawComment := make(chan struct{}, 1)
			reader := sse.NewReader(resp.Body)
			reader.OnLine = func(line sse.Line) {
				if line.Kind == sse.LineComment {
					select {
					case sawComment <- struct{}{}:
					default:
					}
				}
			}
			go func() {
				defer GinkgoRecover()
				for {
					ev, err := reader.Next()
					if err != nil || ev == nil {
						return
					}
				}
			}()

			Eventually(sawComment, "2s").Should(Receive())
		})
	})

	Describe("document stream", func() {
		It("walks a document to a terminal status the watcher acts on", func() {
			watcher := notify.NewDocumentWatcher(baseURL, "doc-42",
				notify.WithTokenSource(tokens))

			var mu sync.Mutex
			var statuses []string
			watcher.OnStatus(func(p notify.DocumentStatusPayload) {
				mu.Lock()
				defer mu.Unlock()
				Expect(p.DocumentID).To(Equal("doc-42"))
				statuses = append(statuses, p.Status)
			})

			Expect(watcher.Watch(context.Background())).To(Succeed())
			Eventually(watcher.Done(), "2s").Should(BeClosed())

			mu.Lock()
			defer mu.Unlock()
			Expect(statuses).To(Equal([]string{"PENDING", "PROCESSING", "COMPLETED"}))
		})
	})

	Describe("feedback", func() {
		authHeader := map[string]string{"Authorization": "Bearer demo-access-token"}

		It("normalizes ratings and broadcasts them", func() {
			consumer := notify.NewConsumer(
				notify.EndpointNotifications(baseURL),
				notify.WithTokenSource(tokens))

			got := make(chan notify.Event, 1)
			consumer.On(notify.EventFeedback, func(ev notify.Event) {
				select {
				case got <- ev:
				default:
				}
			})
			Expect(consumer.Connect(context.Background())).To(Succeed())
			defer consumer.Disconnect()

			// Give the subscription a moment to register before publishing.
			time.Sleep(50 * time.Millisecond)

			resp := postJSON("/api/feedback", map[string]string{
				"message_id": "msg-1",
				"rating":     "THUMBS_UP",
			}, authHeader)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var body struct {
				Rating string `json:"rating"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body.Rating).To(Equal("thumbs_up"))

			var ev notify.Event
			Eventually(got, "2s").Should(Receive(&ev))
			Expect(ev.Feedback).NotTo(BeNil())
			Expect(string(ev.Feedback.Rating)).To(Equal("thumbs_up"))
		})

		It("rejects an unknown rating", func() {
			resp := postJSON("/api/feedback", map[string]string{
				"message_id": "msg-1",
				"rating":     "five-stars",
			}, authHeader)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})
})

var _ = Describe("Config defaults", func() {
	It("applies sane defaults for zero values", func() {
		server, err := demo.New(demo.Config{})
		Expect(err).NotTo(HaveOccurred())
		Expect(server.Close()).To(Succeed())
	})
})
