package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/irobothq/irobot/pkg/api"
	"github.com/irobothq/irobot/pkg/credentials"
)

var _ = Describe("Client", func() {
	var (
		server *httptest.Server
		mux    *http.ServeMux
		client *api.Client
	)

	BeforeEach(func() {
		mux = http.NewServeMux()
		server = httptest.NewServer(mux)
		client = api.NewClient(server.URL,
			api.WithTokenSource(credentials.StaticSource("test-token")),
		)
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("authentication", func() {
		It("sends the bearer token on authenticated calls", func() {
			var gotAuth string
			mux.HandleFunc("/api/conversations", func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				json.NewEncoder(w).Encode(map[string]any{"conversations": []any{}})
			})

			_, err := client.ListConversations(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(gotAuth).To(Equal("Bearer test-token"))
		})

		It("does not send a stored token on login", func() {
			var gotAuth string
			mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")

				var req api.LoginRequest
				Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
				Expect(req.Email).To(Equal("admin@irobot.example"))

				json.NewEncoder(w).Encode(api.TokenPair{
					AccessToken:  "fresh-access",
					RefreshToken: "fresh-refresh",
				})
			})

			pair, err := client.Login(context.Background(), "admin@irobot.example", "hunter2")
			Expect(err).NotTo(HaveOccurred())
			Expect(gotAuth).To(BeEmpty())
			Expect(pair.AccessToken).To(Equal("fresh-access"))
			Expect(pair.RefreshToken).To(Equal("fresh-refresh"))
		})

		It("surfaces 401 as ErrUnauthorized", func() {
			mux.HandleFunc("/api/conversations", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "token expired"})
			})

			_, err := client.ListConversations(context.Background())
			Expect(err).To(MatchError(api.ErrUnauthorized))

			var apiErr *api.Error
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.Status).To(Equal(http.StatusUnauthorized))
			Expect(apiErr.Message).To(Equal("token expired"))
		})
	})

	Describe("conversations", func() {
		It("lists, gets and deletes conversations", func() {
			mux.HandleFunc("GET /api/conversations", func(w http.ResponseWriter, _ *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{
					"conversations": []api.Conversation{
						{ID: "c1", Title: "Refund policy"},
						{ID: "c2", Title: "Shipping"},
					},
				})
			})
			mux.HandleFunc("GET /api/conversations/c1", func(w http.ResponseWriter, _ *http.Request) {
				json.NewEncoder(w).Encode(api.Conversation{ID: "c1", Title: "Refund policy"})
			})
			mux.HandleFunc("DELETE /api/conversations/c1", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})

			convs, err := client.ListConversations(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(convs).To(HaveLen(2))

			conv, err := client.GetConversation(context.Background(), "c1")
			Expect(err).NotTo(HaveOccurred())
			Expect(conv.Title).To(Equal("Refund policy"))

			Expect(client.DeleteConversation(context.Background(), "c1")).To(Succeed())
		})
	})

	Describe("config store", func() {
		It("round-trips config entries with audit history", func() {
			mux.HandleFunc("PUT /api/config/pricing.per_seat", func(w http.ResponseWriter, r *http.Request) {
				var body struct {
					Value string `json:"value"`
				}
				Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
				json.NewEncoder(w).Encode(api.ConfigEntry{Key: "pricing.per_seat", Value: body.Value})
			})
			mux.HandleFunc("GET /api/config/pricing.per_seat/audit", func(w http.ResponseWriter, _ *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{
					"audit": []api.ConfigAuditEntry{
						{Key: "pricing.per_seat", OldValue: "10", NewValue: "12", ChangedBy: "admin"},
					},
				})
			})

			entry, err := client.SetConfig(context.Background(), "pricing.per_seat", "12")
			Expect(err).NotTo(HaveOccurred())
			Expect(entry.Value).To(Equal("12"))

			audit, err := client.ConfigAudit(context.Background(), "pricing.per_seat")
			Expect(err).NotTo(HaveOccurred())
			Expect(audit).To(HaveLen(1))
			Expect(audit[0].ChangedBy).To(Equal("admin"))
		})
	})

	Describe("documents", func() {
		It("reports terminal statuses", func() {
			Expect(api.IsTerminalDocumentStatus(api.DocumentStatusCompleted)).To(BeTrue())
			Expect(api.IsTerminalDocumentStatus(api.DocumentStatusFailed)).To(BeTrue())
			Expect(api.IsTerminalDocumentStatus(api.DocumentStatusProcessing)).To(BeFalse())
			Expect(api.IsTerminalDocumentStatus(api.DocumentStatusPending)).To(BeFalse())
		})
	})
})
