package cputime

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RuntimeSource", func() {
	It("should produce non-decreasing readings", func() {
		src := NewRuntimeSource()

		first, err := src.Reading()
		Expect(err).NotTo(HaveOccurred())

		spin := 0
		for i := 0; i < 1_000_000; i++ {
			spin += i
		}
		_ = spin

		second, err := src.Reading()
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(BeNumerically(">=", first))
	})
})

var _ = Describe("Detect", func() {
	It("should return a working source", func() {
		src := Detect()
		Expect(src).NotTo(BeNil())

		reading, err := src.Reading()
		Expect(err).NotTo(HaveOccurred())
		Expect(reading).To(BeNumerically(">=", time.Duration(0)))
	})
})
