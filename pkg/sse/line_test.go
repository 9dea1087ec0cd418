package sse

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseLine", func() {
	It("classifies blank lines", func() {
		Expect(ParseLine("").Kind).To(Equal(LineEmpty))
	})

	It("classifies comment lines", func() {
		l := ParseLine(": heartbeat")
		Expect(l.Kind).To(Equal(LineComment))
		Expect(l.Value).To(Equal("heartbeat"))
	})

	It("classifies a bare colon as a comment", func() {
		Expect(ParseLine(":").Kind).To(Equal(LineComment))
	})

	It("parses data fields", func() {
		l := ParseLine("data: hello world")
		Expect(l.Kind).To(Equal(LineData))
		Expect(l.Value).To(Equal("hello world"))
	})

	It("strips only a single leading space after the colon", func() {
		Expect(ParseLine("data:  padded").Value).To(Equal(" padded"))
		Expect(ParseLine("data:tight").Value).To(Equal("tight"))
	})

	It("parses event fields", func() {
		l := ParseLine("event: notification")
		Expect(l.Kind).To(Equal(LineEvent))
		Expect(l.Value).To(Equal("notification"))
	})

	It("parses id fields", func() {
		l := ParseLine("id: 42")
		Expect(l.Kind).To(Equal(LineID))
		Expect(l.Value).To(Equal("42"))
	})

	It("ignores retry fields", func() {
		Expect(ParseLine("retry: 3000").Kind).To(Equal(LineComment))
	})

	It("carries unrecognized lines verbatim", func() {
		l := ParseLine("garbage without a prefix")
		Expect(l.Kind).To(Equal(LineRaw))
		Expect(l.Value).To(Equal("garbage without a prefix"))
	})

	It("treats a field with no colon as an empty value", func() {
		l := ParseLine("data")
		Expect(l.Kind).To(Equal(LineData))
		Expect(l.Value).To(BeEmpty())
	})
})

var _ = Describe("Event", func() {
	Describe("Payload", func() {
		It("decodes well-formed JSON", func() {
			ev := &Event{Data: `{"content":"Refund"}`}
			payload, ok := ev.Payload().(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(payload["content"]).To(Equal("Refund"))
		})

		It("degrades malformed JSON to the raw string", func() {
			ev := &Event{Data: `{"content": unterminated`}
			Expect(ev.Payload()).To(Equal(`{"content": unterminated`))
		})

		It("decodes JSON scalars", func() {
			ev := &Event{Data: `"plain"`}
			Expect(ev.Payload()).To(Equal("plain"))
		})
	})

	Describe("Done", func() {
		It("recognizes the termination sentinel", func() {
			Expect((&Event{Data: "[DONE]"}).Done()).To(BeTrue())
			Expect((&Event{Data: `{"content":"x"}`}).Done()).To(BeFalse())
		})
	})

	Describe("Decode", func() {
		It("unmarshals into a typed value", func() {
			var delta struct {
				Content string `json:"content"`
			}
			ev := &Event{Data: `{"content":" policy"}`}
			Expect(ev.Decode(&delta)).To(Succeed())
			Expect(delta.Content).To(Equal(" policy"))
		})

		It("surfaces decode errors", func() {
			var v map[string]any
			ev := &Event{Data: "not json"}
			Expect(ev.Decode(&v)).NotTo(Succeed())
		})
	})
})
