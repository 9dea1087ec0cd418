package postgres_test

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/irobothq/irobot/pkg/history"
	"github.com/irobothq/irobot/pkg/history/postgres"
)

// connStr returns the PostgreSQL connection string from the environment or
// skips the test.
func connStr() string {
	dsn := os.Getenv("IROBOT_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("IROBOT_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = Describe("Driver", func() {
	var (
		driver *postgres.Driver
		ctx    context.Context
		conv   string
	)

	BeforeEach(func() {
		ctx = context.Background()
		conv = uuid.NewString()

		var err error
		driver, err = postgres.NewDriver(ctx, connStr())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	It("round-trips a turn with its sources", func() {
		turn := &history.Turn{
			ConversationID: conv,
			Question:       "Refund policy?",
			Answer:         "30 days.",
			Sources:        []string{"Policy Doc"},
		}
		Expect(driver.SaveTurn(ctx, turn)).To(Succeed())

		turns, err := driver.Turns(ctx, conv)
		Expect(err).NotTo(HaveOccurred())
		Expect(turns).To(HaveLen(1))
		Expect(turns[0].Question).To(Equal("Refund policy?"))
		Expect(turns[0].Sources).To(Equal([]string{"Policy Doc"}))
	})

	It("orders a conversation's turns chronologically", func() {
		base := time.Now().UTC().Truncate(time.Second)
		Expect(driver.SaveTurn(ctx, &history.Turn{
			ConversationID: conv, Question: "later", Answer: "a", CreatedAt: base.Add(time.Minute),
		})).To(Succeed())
		Expect(driver.SaveTurn(ctx, &history.Turn{
			ConversationID: conv, Question: "earlier", Answer: "a", CreatedAt: base,
		})).To(Succeed())

		turns, err := driver.Turns(ctx, conv)
		Expect(err).NotTo(HaveOccurred())
		Expect(turns[0].Question).To(Equal("earlier"))
		Expect(turns[1].Question).To(Equal("later"))
	})

	It("returns ErrNotFound for an unknown conversation", func() {
		_, err := driver.Turns(ctx, uuid.NewString())
		Expect(errors.Is(err, history.ErrNotFound)).To(BeTrue())
	})
})
