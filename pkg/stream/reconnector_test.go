package stream_test

import (
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/irobothq/irobot/pkg/stream"
)

var _ = Describe("Reconnector", func() {
	quick := stream.Policy{
		MaxAttempts: 2,
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    20 * time.Millisecond,
		Multiplier:  2.0,
	}

	It("runs the retry callback after the policy delay", func() {
		r := stream.NewReconnector(quick)

		fired := make(chan struct{})
		Expect(r.Schedule(errors.New("drop"), func() { close(fired) })).To(Succeed())
		Expect(r.Attempt()).To(Equal(1))
		Eventually(fired).Should(BeClosed())
	})

	It("returns ExhaustedError once the budget is spent", func() {
		r := stream.NewReconnector(quick)

		cause := errors.New("still down")
		Expect(r.Schedule(cause, func() {})).To(Succeed())
		Expect(r.Schedule(cause, func() {})).To(Succeed())

		err := r.Schedule(cause, func() { Fail("must not arm a timer past the budget") })
		var exhausted *stream.ExhaustedError
		Expect(errors.As(err, &exhausted)).To(BeTrue())
		Expect(exhausted.Attempts).To(Equal(2))
		Expect(errors.Is(err, cause)).To(BeTrue())
	})

	It("keeps at most one pending timer", func() {
		r := stream.NewReconnector(stream.Policy{
			MaxAttempts: 5,
			BaseDelay:   50 * time.Millisecond,
			MaxDelay:    50 * time.Millisecond,
			Multiplier:  1.0,
		})

		var first, second atomic.Int64
		Expect(r.Schedule(errors.New("a"), func() { first.Add(1) })).To(Succeed())
		Expect(r.Schedule(errors.New("b"), func() { second.Add(1) })).To(Succeed())

		Eventually(func() int64 { return second.Load() }).Should(Equal(int64(1)))
		Consistently(func() int64 { return first.Load() }, "150ms", "20ms").Should(BeZero())
	})

	It("Reset restores the full budget", func() {
		r := stream.NewReconnector(quick)

		Expect(r.Schedule(errors.New("x"), func() {})).To(Succeed())
		Expect(r.Schedule(errors.New("x"), func() {})).To(Succeed())
		r.Reset()
		Expect(r.Attempt()).To(BeZero())
		Expect(r.Schedule(errors.New("x"), func() {})).To(Succeed())
	})

	It("Stop cancels the pending timer without touching the counter", func() {
		r := stream.NewReconnector(quick)

		var fired atomic.Int64
		Expect(r.Schedule(errors.New("x"), func() { fired.Add(1) })).To(Succeed())
		r.Stop()

		Consistently(func() int64 { return fired.Load() }, "100ms", "10ms").Should(BeZero())
		Expect(r.Attempt()).To(Equal(1))
	})
})
