package txn

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/txcore/config"
	"github.com/sarchlab/txcore/naming"
)

var _ = Describe("Naming state machine", func() {
	var (
		agent *Agent
		ec    *ExecutionContext
		clock *stubClock
	)

	BeforeEach(func() {
		clock = &stubClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
		agent = NewAgent(config.DefaultConfig()).WithClock(clock.Now)
		ec = NewExecutionContext()
	})

	It("should freeze idempotently", func() {
		t := agent.StartTransaction(ec, StartOptions{Name: "Foo#bar"})

		first := t.FrozenName()
		second := t.FrozenName()

		Expect(first).To(Equal("Controller/Foo#bar"))
		Expect(second).To(Equal(first))
	})

	It("should reject renames after freezing without raising", func() {
		t := agent.StartTransaction(ec, StartOptions{Name: "Foo#bar"})
		t.FrozenName()

		Expect(t.SetOverriddenName(
			"Controller/Other#name", naming.CategoryController)).To(BeFalse())
		Expect(t.FrozenName()).To(Equal("Controller/Foo#bar"))
	})

	It("should prefer an overridden name over the default", func() {
		t := agent.StartTransaction(ec, StartOptions{Name: "Foo#bar"})
		t.SetOverriddenName(
			"Controller/Renamed#action", naming.CategoryController)

		Expect(t.FrozenName()).To(Equal("Controller/Renamed#action"))
	})

	It("should never let an incompatible category override the name", func() {
		t := agent.StartTransaction(ec, StartOptions{Name: "A#x"})
		agent.StartTransaction(ec, StartOptions{
			Category: naming.CategoryTask,
			Name:     "Job#run",
		})

		Expect(t.SetOverriddenName(
			"OtherTransaction/Background/Job#run", naming.CategoryTask)).
			To(BeFalse())
		Expect(t.FrozenName()).To(Equal("Controller/A#x"))
	})

	It("should fall back to the unknown sentinel without any name", func() {
		t := agent.StartTransaction(ec, StartOptions{})

		Expect(t.FrozenName()).To(Equal("Controller/Unknown"))
	})

	It("should let a same-subset nested call rename the transaction", func() {
		t := agent.StartTransaction(ec, StartOptions{Name: "A#x"})
		agent.StartTransaction(ec, StartOptions{
			Category: naming.CategoryRack,
			Name:     "B#y",
		})

		Expect(t.FrozenName()).To(Equal("Controller/B#y"))
	})

	It("should never let an incompatible nested category rename the "+
		"transaction", func() {
		t := agent.StartTransaction(ec, StartOptions{Name: "A#x"})
		agent.StartTransaction(ec, StartOptions{
			Category: naming.CategoryTask,
			Name:     "Job#run",
		})

		Expect(t.Category()).To(Equal(naming.CategoryController))
		Expect(t.FrozenName()).To(Equal("Controller/A#x"))
	})

	It("should keep the nested marker off non-transaction names", func() {
		Expect(nestedName("Controller/A#x")).
			To(Equal("Nested/Controller/A#x"))
		Expect(nestedName("OtherTransaction/Background/Job#run")).
			To(Equal("Nested/OtherTransaction/Background/Job#run"))
		Expect(nestedName("Custom/thing")).To(Equal("Custom/thing"))
	})
})
