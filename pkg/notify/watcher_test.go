package notify_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/irobothq/irobot/pkg/notify"
)

var _ = Describe("DocumentWatcher", func() {
	var server *httptest.Server

	AfterEach(func() {
		if server != nil {
			server.CloseClientConnections()
			server.Close()
			server = nil
		}
	})

	It("follows status updates and closes itself on a terminal status", func() {
		var requests atomic.Int64
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			pushScript(
				frame("status", `{"document_id":"doc-1","status":"PROCESSING"}`),
				frame("status", `{"document_id":"doc-1","status":"COMPLETED"}`),
			)(w, r)
		}))

		watcher := notify.NewDocumentWatcher(server.URL, "doc-1")
		var mu sync.Mutex
		var statuses []string
		watcher.OnStatus(func(p notify.DocumentStatusPayload) {
			mu.Lock()
			defer mu.Unlock()
			statuses = append(statuses, p.Status)
		})

		Expect(watcher.Watch(context.Background())).To(Succeed())
		Eventually(watcher.Done(), "2s").Should(BeClosed())

		mu.Lock()
		Expect(statuses).To(Equal([]string{"PROCESSING", "COMPLETED"}))
		mu.Unlock()
		Expect(watcher.Status()).To(Equal("COMPLETED"))
		Expect(watcher.Err()).NotTo(HaveOccurred())

		// A terminal status is an answer, so no reconnect may follow it.
		Consistently(func() int64 { return requests.Load() }, "200ms", "20ms").Should(Equal(int64(1)))
	})

	It("subscribes to the per-document endpoint", func() {
		gotPath := make(chan string, 1)
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath <- r.URL.Path
			pushScript(frame("status", `{"document_id":"doc 7","status":"FAILED"}`))(w, r)
		}))

		watcher := notify.NewDocumentWatcher(server.URL, "doc 7")
		Expect(watcher.Watch(context.Background())).To(Succeed())
		defer watcher.Stop()

		var path string
		Eventually(gotPath).Should(Receive(&path))
		Expect(path).To(Equal("/api/events/documents/" + url.PathEscape("doc 7")))
		Eventually(watcher.Done(), "2s").Should(BeClosed())
		Expect(watcher.Status()).To(Equal("FAILED"))
	})

	It("Stop closes the watcher before any terminal status", func() {
		server = httptest.NewServer(heartbeatStream(10 * time.Millisecond))

		watcher := notify.NewDocumentWatcher(server.URL, "doc-1")
		Expect(watcher.Watch(context.Background())).To(Succeed())

		watcher.Stop()
		Eventually(watcher.Done()).Should(BeClosed())
		Expect(watcher.Status()).To(Equal(""))
	})
})
