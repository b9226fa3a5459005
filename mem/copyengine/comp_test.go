package copyengine

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/copyengine/mem/mem"
	"github.com/sarchlab/copyengine/mem/vm"
	"github.com/sarchlab/copyengine/sim"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Comp", func() {
	var (
		mockCtrl   *gomock.Controller
		engine     *MockEngine
		hostPort   *MockPort
		translator *MockTranslator
		now        sim.VTimeInSec
		ce         *Comp
		issued     []AccessInfo
		results    []TransferResult
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewMockEngine(mockCtrl)
		hostPort = NewMockPort(mockCtrl)
		translator = NewMockTranslator(mockCtrl)
		now = 0
		issued = nil
		results = nil

		engine.EXPECT().CurrentTime().
			DoAndReturn(func() sim.VTimeInSec { return now }).
			AnyTimes()
		engine.EXPECT().Schedule(gomock.Any()).AnyTimes()
		hostPort.EXPECT().AsRemote().
			Return(sim.RemotePort("CE.HostPort")).
			AnyTimes()

		ce = MakeBuilder().
			WithEngine(engine).
			WithHostTranslator(translator).
			WithHostMemory(&mem.SinglePortMapper{Port: "HostMem.TopPort"}).
			WithDeviceMemory(&mem.SinglePortMapper{Port: "DeviceMem.TopPort"}).
			Build("CE")
		ce.host.port = hostPort

		ce.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
			if ctx.Pos == HookPosAccessIssue {
				issued = append(issued, ctx.Item.(AccessInfo))
			}
		}))
		ce.AddCompletionListener(CompletionListenerFunc(func(r TransferResult) {
			results = append(results, r)
		}))
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	tickAt := func(cycle int) {
		now = sim.VTimeInSec(float64(cycle) * 1e-9)
		ce.Tick()
	}

	translateNow := func() {
		translator.EXPECT().
			StartTranslation(gomock.Any(), ce).
			DoAndReturn(func(t *vm.Translation, _ vm.TranslationClient) bool {
				t.PAddr = t.VAddr
				return true
			}).
			AnyTimes()
	}

	It("should send a refused transaction exactly once", func() {
		translateNow()

		var sent []sim.Msg

		hostPort.EXPECT().Send(gomock.Any()).
			DoAndReturn(func(msg sim.Msg) *sim.SendError {
				sent = append(sent, msg)
				if len(sent) <= 3 {
					return sim.NewSendError()
				}

				return nil
			}).
			Times(4)

		Expect(ce.Memcpy(0x1000, 0x5000, 256, HostToDevice)).To(Succeed())

		tickAt(1)
		Expect(ce.readPort.stalled()).To(BeTrue())
		Expect(issued).To(BeEmpty())

		tickAt(2)
		tickAt(3)
		Expect(sent).To(HaveLen(1))

		ce.NotifyPortFree(hostPort)
		ce.NotifyPortFree(hostPort)
		Expect(ce.readPort.stalled()).To(BeTrue())

		ce.NotifyPortFree(hostPort)
		Expect(ce.readPort.stalled()).To(BeFalse())

		Expect(sent).To(HaveLen(4))
		for _, msg := range sent {
			Expect(msg).To(BeIdenticalTo(sent[0]))
		}
		Expect(issued).To(HaveLen(1))
		Expect(issued[0].VAddr).To(Equal(uint64(0x1000)))

		ce.NotifyPortFree(hostPort)
		Expect(issued).To(HaveLen(1))
	})

	It("should ignore port-free signals when nothing is stalled", func() {
		ce.NotifyPortFree(hostPort)

		translateNow()
		hostPort.EXPECT().Send(gomock.Any()).Return(nil)

		Expect(ce.Memcpy(0x1000, 0x5000, 64, HostToDevice)).To(Succeed())
		tickAt(1)
		ce.NotifyPortFree(hostPort)

		Expect(issued).To(HaveLen(1))
	})

	It("should space translations by the access delay", func() {
		var started []uint64

		translator.EXPECT().
			StartTranslation(gomock.Any(), ce).
			DoAndReturn(func(t *vm.Translation, _ vm.TranslationClient) bool {
				started = append(started, t.VAddr)
				return false
			}).
			AnyTimes()

		Expect(ce.Memcpy(0x1000, 0x5000, 256, HostToDevice)).To(Succeed())

		tickAt(1)
		ce.NotifyRecv(ce.DevicePort())
		tickAt(2)

		Expect(started).To(Equal([]uint64{0x1000, 0x1040}))
	})

	It("should resume deferred translations in address order", func() {
		var pending []*vm.Translation

		translator.EXPECT().
			StartTranslation(gomock.Any(), ce).
			DoAndReturn(func(t *vm.Translation, _ vm.TranslationClient) bool {
				pending = append(pending, t)
				return false
			}).
			AnyTimes()

		var sent []sim.Msg

		hostPort.EXPECT().Send(gomock.Any()).
			DoAndReturn(func(msg sim.Msg) *sim.SendError {
				sent = append(sent, msg)
				return nil
			}).
			AnyTimes()

		Expect(ce.Memcpy(0x1000, 0x5000, 128, HostToDevice)).To(Succeed())
		tickAt(1)
		tickAt(2)
		Expect(pending).To(HaveLen(2))

		pending[1].PAddr = 0x11040
		ce.FinishTranslation(pending[1])
		Expect(sent).To(BeEmpty())

		pending[0].PAddr = 0x11000
		ce.FinishTranslation(pending[0])
		Expect(sent).To(HaveLen(2))
		Expect(sent[0].(*mem.ReadReq).Address).To(Equal(uint64(0x11000)))
		Expect(sent[1].(*mem.ReadReq).Address).To(Equal(uint64(0x11040)))
		Expect(sent[0].Meta().Dst).To(Equal(sim.RemotePort("HostMem.TopPort")))
	})

	It("should abort on a fault after the issued reads land", func() {
		var pending []*vm.Translation

		translator.EXPECT().
			StartTranslation(gomock.Any(), ce).
			DoAndReturn(func(t *vm.Translation, _ vm.TranslationClient) bool {
				pending = append(pending, t)
				return false
			}).
			AnyTimes()

		var sent []sim.Msg

		hostPort.EXPECT().Send(gomock.Any()).
			DoAndReturn(func(msg sim.Msg) *sim.SendError {
				sent = append(sent, msg)
				return nil
			}).
			AnyTimes()

		Expect(ce.Memcpy(0x1000, 0x5000, 256, HostToDevice)).To(Succeed())
		tickAt(1)
		tickAt(2)
		tickAt(3)

		pending[0].PAddr = 0x1000
		ce.FinishTranslation(pending[0])
		Expect(sent).To(HaveLen(1))

		pending[1].Err = fmt.Errorf("%w: no page", vm.ErrTranslationFault)
		ce.FinishTranslation(pending[1])
		Expect(ce.IsBusy()).To(BeTrue())

		tickAt(4)
		Expect(pending).To(HaveLen(3))

		rsp := mem.DataReadyRspBuilder{}.
			WithSrc("HostMem.TopPort").
			WithDst("CE.HostPort").
			WithRspTo(sent[0].Meta().ID).
			WithData(make([]byte, 64)).
			Build()
		hostPort.EXPECT().RetrieveIncoming().Return(rsp)
		hostPort.EXPECT().RetrieveIncoming().Return(nil)
		ce.NotifyRecv(hostPort)

		Expect(ce.IsBusy()).To(BeFalse())
		Expect(results).To(HaveLen(1))
		Expect(results[0].Err).To(MatchError(vm.ErrTranslationFault))
		Expect(results[0].Cursor.ReadCompleted).To(Equal(uint64(64)))

		pending[2].PAddr = 0x1080
		ce.FinishTranslation(pending[2])
		Expect(sent).To(HaveLen(1))
		Expect(results).To(HaveLen(1))
	})

	It("should mirror finished transfers into data recorders", func() {
		ce.stats.append(TransferRecord{
			ID:        "T1",
			Kind:      KindCopy,
			Direction: HostToDevice,
			Bytes:     64,
			Cycles:    12,
		})

		var rows []transferRow

		recorder := NewMockDataRecorder(mockCtrl)
		recorder.EXPECT().ListTables().Return(nil)
		recorder.EXPECT().CreateTable(TransferTableName, transferRow{})
		recorder.EXPECT().InsertData(TransferTableName, gomock.Any()).
			Do(func(_ string, entry any) {
				rows = append(rows, entry.(transferRow))
			})

		ce.RecordStats(recorder)

		Expect(rows).To(Equal([]transferRow{{
			ID:        "T1",
			Location:  "CE",
			Kind:      "memcpy",
			Direction: "HostToDevice",
			Bytes:     64,
			Cycles:    12,
		}}))

		shared := NewMockDataRecorder(mockCtrl)
		shared.EXPECT().ListTables().Return([]string{TransferTableName})
		shared.EXPECT().InsertData(TransferTableName, gomock.Any())

		ce.RecordStats(shared)
	})

	It("should panic on a response to an unknown request", func() {
		translateNow()
		hostPort.EXPECT().Send(gomock.Any()).Return(nil)

		Expect(ce.Memcpy(0x1000, 0x5000, 64, HostToDevice)).To(Succeed())
		tickAt(1)

		rsp := mem.DataReadyRspBuilder{}.
			WithSrc("HostMem.TopPort").
			WithDst("CE.HostPort").
			WithRspTo("unknown").
			Build()
		hostPort.EXPECT().RetrieveIncoming().Return(rsp)

		Expect(func() { ce.NotifyRecv(hostPort) }).To(Panic())
	})

	It("should reject the builder without memories", func() {
		Expect(func() {
			MakeBuilder().WithEngine(engine).Build("CE")
		}).To(Panic())
	})

	It("should reject a zero chunk size", func() {
		Expect(func() {
			MakeBuilder().
				WithEngine(engine).
				WithChunkSize(0).
				WithHostMemory(&mem.SinglePortMapper{}).
				WithDeviceMemory(&mem.SinglePortMapper{}).
				Build("CE")
		}).To(Panic())
	})
})
