package vm

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/copyengine/sim"
)

type recordingClient struct {
	finished []*Translation
	times    []sim.VTimeInSec
	engine   sim.Engine
}

func (c *recordingClient) FinishTranslation(t *Translation) {
	c.finished = append(c.finished, t)
	c.times = append(c.times, c.engine.CurrentTime())
}

var _ = Describe("PageTableTranslator", func() {
	var (
		engine *sim.SerialEngine
		pt     PageTable
		client *recordingClient
	)

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		pt = NewPageTable(12)
		pt.Insert(Page{PID: 1, VAddr: 0x1000, PAddr: 0x9000,
			PageSize: 4096, Valid: true})
		pt.Insert(Page{PID: 1, VAddr: 0x3000, PAddr: 0xA000,
			PageSize: 4096, Valid: false})
		client = &recordingClient{engine: engine}
	})

	Context("without latency", func() {
		var translator *PageTableTranslator

		BeforeEach(func() {
			translator = MakeBuilder().
				WithPageTable(pt).
				Build("Translator")
		})

		It("should translate immediately", func() {
			tr := &Translation{PID: 1, VAddr: 0x1040, Kind: AccessRead}

			done := translator.StartTranslation(tr, client)

			Expect(done).To(BeTrue())
			Expect(tr.Err).NotTo(HaveOccurred())
			Expect(tr.PAddr).To(Equal(uint64(0x9040)))
			Expect(client.finished).To(BeEmpty())
			Expect(translator.NumTranslations()).To(Equal(uint64(1)))
		})

		It("should fault on a missing page", func() {
			tr := &Translation{PID: 1, VAddr: 0x2000, Kind: AccessWrite}

			translator.StartTranslation(tr, client)

			Expect(tr.Err).To(MatchError(ErrTranslationFault))
			Expect(translator.NumFaults()).To(Equal(uint64(1)))
		})

		It("should fault on an invalid page", func() {
			tr := &Translation{PID: 1, VAddr: 0x3000}

			translator.StartTranslation(tr, client)

			Expect(tr.Err).To(MatchError(ErrTranslationFault))
		})

		It("should invoke the translation done hook", func() {
			var items []interface{}
			translator.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
				items = append(items, ctx.Item)
			}))

			tr := &Translation{PID: 1, VAddr: 0x1000}
			translator.StartTranslation(tr, client)

			Expect(items).To(ConsistOf(tr))
		})
	})

	Context("with latency", func() {
		var translator *PageTableTranslator

		BeforeEach(func() {
			translator = MakeBuilder().
				WithEngine(engine).
				WithFreq(1).
				WithLatency(10).
				WithPageTable(pt).
				Build("Translator")
		})

		It("should call the client back after the walk", func() {
			tr := &Translation{PID: 1, VAddr: 0x1100, Context: "ctx"}

			done := translator.StartTranslation(tr, client)

			Expect(done).To(BeFalse())
			Expect(translator.NumPending()).To(Equal(1))

			Expect(engine.Run()).To(Succeed())

			Expect(client.finished).To(ConsistOf(tr))
			Expect(client.times).To(ConsistOf(sim.VTimeInSec(10)))
			Expect(tr.PAddr).To(Equal(uint64(0x9100)))
			Expect(tr.Context).To(Equal("ctx"))
			Expect(translator.NumPending()).To(Equal(0))
		})

		It("should report faults through the callback", func() {
			tr := &Translation{PID: 1, VAddr: 0x5000}

			translator.StartTranslation(tr, client)
			Expect(engine.Run()).To(Succeed())

			Expect(client.finished).To(ConsistOf(tr))
			Expect(tr.Err).To(MatchError(ErrTranslationFault))
		})
	})

	It("should allocate pages on demand", func() {
		translator := MakeBuilder().
			WithLog2PageSize(12).
			WithAutoPageAllocation(0x100000).
			Build("Translator")

		tr1 := &Translation{PID: 2, VAddr: 0x7008}
		tr2 := &Translation{PID: 2, VAddr: 0x9010}
		tr3 := &Translation{PID: 2, VAddr: 0x7010}

		translator.StartTranslation(tr1, client)
		translator.StartTranslation(tr2, client)
		translator.StartTranslation(tr3, client)

		Expect(tr1.PAddr).To(Equal(uint64(0x100008)))
		Expect(tr2.PAddr).To(Equal(uint64(0x101010)))
		Expect(tr3.PAddr).To(Equal(uint64(0x100010)))
	})
})

var _ = Describe("IdentityTranslator", func() {
	It("should map addresses to themselves", func() {
		tr := &Translation{VAddr: 0x1234}

		Expect(IdentityTranslator{}.StartTranslation(tr, nil)).To(BeTrue())
		Expect(tr.PAddr).To(Equal(uint64(0x1234)))
		Expect(tr.Err).NotTo(HaveOccurred())
	})
})
