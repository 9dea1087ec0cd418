package dotdir_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/irobothq/irobot/pkg/dotdir"
)

var _ = Describe("dotdir.Manager session", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-test-*")
		Expect(err).NotTo(HaveOccurred())
		m = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("LoadSessionState", func() {
		It("returns nil when no session file exists", func() {
			state, err := m.LoadSessionState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(BeNil())
		})

		It("loads a valid session state", func() {
			// Write a session file manually
			data := `{"conversation_id":"conv-42","title":"Refund policy"}`
			err := os.WriteFile(filepath.Join(tmpDir, "session.json"), []byte(data), 0o644)
			Expect(err).NotTo(HaveOccurred())

			state, err := m.LoadSessionState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).NotTo(BeNil())
			Expect(state.ConversationID).To(Equal("conv-42"))
			Expect(state.Title).To(Equal("Refund policy"))
		})

		It("errors on malformed JSON", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "session.json"), []byte("{nope"), 0o644)
			Expect(err).NotTo(HaveOccurred())

			_, err = m.LoadSessionState(tmpDir)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("SaveSession", func() {
		It("rejects nil state", func() {
			Expect(m.SaveSession(nil, tmpDir)).NotTo(Succeed())
		})
	})

	Describe("ClearSession", func() {
		It("removes an existing session file", func() {
			state := &dotdir.SessionState{ConversationID: "conv-1"}
			Expect(m.SaveSession(state, tmpDir)).To(Succeed())

			// Clear it
			Expect(m.ClearSession(tmpDir)).To(Succeed())

			// Verify it's gone
			loaded, err := m.LoadSessionState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(BeNil())
		})

		It("succeeds when no session file exists", func() {
			Expect(m.ClearSession(tmpDir)).To(Succeed())
		})
	})

	Describe("round-trip", func() {
		It("saves and loads session state correctly", func() {
			state := &dotdir.SessionState{
				ConversationID: "conv-abc123",
				Title:          "Pricing questions",
				LastActive:     time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC),
			}

			Expect(m.SaveSession(state, tmpDir)).To(Succeed())

			loaded, err := m.LoadSessionState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(state))
		})
	})
})
