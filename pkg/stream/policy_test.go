package stream_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/irobothq/irobot/pkg/stream"
)

var _ = Describe("Policy", func() {
	Describe("DefaultPolicy", func() {
		It("doubles from one second up to four attempts", func() {
			p := stream.DefaultPolicy()
			Expect(p.MaxAttempts).To(Equal(4))
			Expect(p.Delay(0)).To(Equal(1 * time.Second))
			Expect(p.Delay(1)).To(Equal(2 * time.Second))
			Expect(p.Delay(2)).To(Equal(4 * time.Second))
			Expect(p.Delay(3)).To(Equal(8 * time.Second))
		})
	})

	Describe("Delay", func() {
		p := stream.Policy{
			MaxAttempts: 10,
			BaseDelay:   100 * time.Millisecond,
			MaxDelay:    time.Second,
			Multiplier:  2.0,
		}

		It("is deterministic without jitter", func() {
			for attempt := 0; attempt < 10; attempt++ {
				Expect(p.Delay(attempt)).To(Equal(p.Delay(attempt)))
			}
		})

		It("never decreases as attempts grow", func() {
			prev := time.Duration(0)
			for attempt := 0; attempt < 10; attempt++ {
				d := p.Delay(attempt)
				Expect(d).To(BeNumerically(">=", prev))
				prev = d
			}
		})

		It("caps at MaxDelay", func() {
			Expect(p.Delay(50)).To(Equal(time.Second))
		})

		It("treats a negative attempt as the first", func() {
			Expect(p.Delay(-3)).To(Equal(p.Delay(0)))
		})

		It("keeps jittered delays non-negative and near the base schedule", func() {
			jp := p
			jp.Jitter = 0.5
			for attempt := 0; attempt < 6; attempt++ {
				base := p.Delay(attempt)
				d := jp.Delay(attempt)
				Expect(d).To(BeNumerically(">=", 0))
				Expect(d).To(BeNumerically("<=", base+base/2))
			}
		})
	})
})
