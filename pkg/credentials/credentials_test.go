package credentials_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/irobothq/irobot/pkg/credentials"
	"github.com/irobothq/irobot/pkg/logger"
)

var _ = Describe("Manager", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "credentials-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("NewManager", func() {
		It("creates a manager with an override directory", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr).NotTo(BeNil())
			Expect(mgr.GetTarget()).To(Equal(filepath.Join(tmpDir, "credentials.toml")))
		})
	})

	Describe("Load", func() {
		It("returns empty credentials when no file exists", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			creds, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(creds).NotTo(BeNil())
			Expect(creds.Profiles).To(BeEmpty())
		})

		It("loads existing credentials", func() {
			data := `version = 0

[profiles.default]
access_token = "irb-test-token"
refresh_token = "irb-refresh"
`
			err := os.WriteFile(filepath.Join(tmpDir, "credentials.toml"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			creds, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(creds.Profiles).To(HaveKey("default"))
			Expect(creds.Profiles["default"].AccessToken).To(Equal("irb-test-token"))
			Expect(creds.Profiles["default"].RefreshToken).To(Equal("irb-refresh"))
		})

		It("returns error for malformed TOML", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "credentials.toml"), []byte("not valid [[["), 0o600)
			Expect(err).NotTo(HaveOccurred())

			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			creds, err := mgr.Load()
			Expect(err).To(HaveOccurred())
			Expect(creds).To(BeNil())
		})
	})

	Describe("Save", func() {
		It("persists credentials to disk with restricted permissions", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			creds := &credentials.Credentials{
				Profiles: map[string]credentials.Profile{
					"default": {AccessToken: "irb-test"},
				},
			}
			err = mgr.Save(creds)
			Expect(err).NotTo(HaveOccurred())

			info, err := os.Stat(filepath.Join(tmpDir, "credentials.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
		})

		It("returns error for nil credentials", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			err = mgr.Save(nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("SetProfile", func() {
		It("stores a new profile", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			err = mgr.SetProfile("default", credentials.Profile{AccessToken: "irb-new"})
			Expect(err).NotTo(HaveOccurred())

			p, err := mgr.Profile("default")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.AccessToken).To(Equal("irb-new"))
		})

		It("overwrites an existing profile", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(mgr.SetProfile("default", credentials.Profile{AccessToken: "irb-old"})).To(Succeed())
			Expect(mgr.SetProfile("default", credentials.Profile{AccessToken: "irb-new"})).To(Succeed())

			p, err := mgr.Profile("default")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.AccessToken).To(Equal("irb-new"))
		})

		It("preserves other profiles", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(mgr.SetProfile("default", credentials.Profile{AccessToken: "irb-default"})).To(Succeed())
			Expect(mgr.SetProfile("staging", credentials.Profile{AccessToken: "irb-staging"})).To(Succeed())

			p, err := mgr.Profile("default")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.AccessToken).To(Equal("irb-default"))

			p, err = mgr.Profile("staging")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.AccessToken).To(Equal("irb-staging"))
		})
	})

	Describe("RemoveProfile", func() {
		It("deletes a stored profile", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(mgr.SetProfile("default", credentials.Profile{AccessToken: "irb-x"})).To(Succeed())
			Expect(mgr.RemoveProfile("default")).To(Succeed())

			p, err := mgr.Profile("default")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.AccessToken).To(BeEmpty())
		})
	})

	Describe("ListProfiles", func() {
		It("returns sorted profile names", func() {
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(mgr.SetProfile("staging", credentials.Profile{AccessToken: "a"})).To(Succeed())
			Expect(mgr.SetProfile("default", credentials.Profile{AccessToken: "b"})).To(Succeed())

			names, err := mgr.ListProfiles()
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{"default", "staging"}))
		})
	})
})

var _ = Describe("Source", func() {
	var tmpDir string
	var mgr *credentials.Manager

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "credentials-test-*")
		Expect(err).NotTo(HaveOccurred())
		mgr, err = credentials.NewManager(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("StaticSource", func() {
		It("returns the fixed token", func() {
			tok, err := credentials.StaticSource("irb-static").Token(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(tok).To(Equal("irb-static"))
		})

		It("reports missing token", func() {
			_, err := credentials.StaticSource("").Token(context.Background())
			Expect(err).To(MatchError(credentials.ErrNoToken))
		})
	})

	Describe("file-backed source", func() {
		It("re-reads the store on every call", func() {
			src := mgr.Source("default")

			_, err := src.Token(context.Background())
			Expect(err).To(MatchError(credentials.ErrNoToken))

			Expect(mgr.SetProfile("default", credentials.Profile{AccessToken: "irb-1"})).To(Succeed())
			tok, err := src.Token(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(tok).To(Equal("irb-1"))

			Expect(mgr.SetProfile("default", credentials.Profile{AccessToken: "irb-2"})).To(Succeed())
			tok, err = src.Token(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(tok).To(Equal("irb-2"))
		})
	})

	Describe("WatchingSource", func() {
		It("picks up token rotation from disk", func() {
			Expect(mgr.SetProfile("default", credentials.Profile{AccessToken: "irb-before"})).To(Succeed())

			src, err := credentials.NewWatchingSource(mgr, "default", logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			defer src.Close()

			tok, err := src.Token(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(tok).To(Equal("irb-before"))

			Expect(mgr.SetProfile("default", credentials.Profile{AccessToken: "irb-after"})).To(Succeed())

			Eventually(func() string {
				tok, _ := src.Token(context.Background())
				return tok
			}).Should(Equal("irb-after"))
		})
	})
})
