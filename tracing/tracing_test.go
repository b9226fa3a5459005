package tracing

import (
	"database/sql"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/copyengine/datarecording"
	"github.com/sarchlab/copyengine/sim"
)

type fakeTimeTeller struct {
	now sim.VTimeInSec
}

func (t *fakeTimeTeller) CurrentTime() sim.VTimeInSec {
	return t.now
}

type sampleDomain struct {
	sim.HookableBase
}

func (d *sampleDomain) Name() string {
	return "Domain"
}

type sampleMsg struct {
	sim.MsgMeta
}

func (m *sampleMsg) Meta() *sim.MsgMeta {
	return &m.MsgMeta
}

func (m *sampleMsg) Clone() sim.Msg {
	c := *m
	return &c
}

var _ = Describe("Tracing API", func() {
	var (
		timeTeller *fakeTimeTeller
		domain     *sampleDomain
	)

	BeforeEach(func() {
		timeTeller = &fakeTimeTeller{}
		domain = &sampleDomain{}
	})

	It("should not build tasks when nobody listens", func() {
		Expect(func() {
			StartTask("", "", domain, "", "", nil)
		}).NotTo(Panic())
	})

	It("should panic on incomplete tasks", func() {
		CollectTrace(domain, NewTotalTimeTracer(timeTeller, KindFilter("k")))

		Expect(func() {
			StartTask("", "", domain, "kind", "what", nil)
		}).To(Panic())
	})

	It("should not register the same tracer twice", func() {
		tracer := NewTotalTimeTracer(timeTeller, KindFilter("k"))
		CollectTrace(domain, tracer)

		Expect(func() { CollectTrace(domain, tracer) }).To(Panic())
	})

	It("should accumulate total time", func() {
		tracer := NewTotalTimeTracer(timeTeller, KindFilter("copy"))
		CollectTrace(domain, tracer)

		StartTask("1", "", domain, "copy", "memcpy", nil)
		StartTask("2", "", domain, "other", "x", nil)
		timeTeller.now = 5
		EndTask("1", domain)
		EndTask("2", domain)

		Expect(tracer.TotalTime()).To(Equal(sim.VTimeInSec(5)))
	})

	It("should average task time", func() {
		tracer := NewAverageTimeTracer(timeTeller, KindFilter("copy"))
		CollectTrace(domain, tracer)

		StartTask("1", "", domain, "copy", "memcpy", nil)
		timeTeller.now = 2
		EndTask("1", domain)

		StartTask("2", "", domain, "copy", "memcpy", nil)
		timeTeller.now = 6
		EndTask("2", domain)

		Expect(tracer.TotalCount()).To(Equal(uint64(2)))
		Expect(tracer.AverageTime()).To(Equal(sim.VTimeInSec(3)))
	})

	It("should trace requests on both ends", func() {
		tracer := NewTotalTimeTracer(timeTeller, KindFilter("req_out"))
		CollectTrace(domain, tracer)

		msg := &sampleMsg{}
		msg.ID = "Msg"

		TraceReqInitiate(msg, domain, "")
		timeTeller.now = 3
		TraceReqFinalize(msg, domain)

		Expect(tracer.TotalTime()).To(Equal(sim.VTimeInSec(3)))
		Expect(MsgIDAtReceiver(msg, domain)).To(Equal("Msg@Domain"))
	})

	It("should write finished tasks into a database", func() {
		dir := GinkgoT().TempDir()
		db, err := sql.Open("sqlite3", filepath.Join(dir, "trace.sqlite3"))
		Expect(err).NotTo(HaveOccurred())
		defer db.Close()

		recorder := datarecording.NewWithDB(db)
		tracer := NewDBTracer(timeTeller, recorder, nil)
		CollectTrace(domain, tracer)

		StartTask("1", "", domain, "copy", "memcpy", nil)
		AddTaskStep("1", domain, "translate")
		timeTeller.now = 4
		EndTask("1", domain)
		recorder.Flush()

		var what string
		var end float64
		var steps int
		err = db.QueryRow(
			"SELECT What, EndTime, NumSteps FROM trace WHERE ID='1';",
		).Scan(&what, &end, &steps)

		Expect(err).NotTo(HaveOccurred())
		Expect(what).To(Equal("memcpy"))
		Expect(end).To(Equal(4.0))
		Expect(steps).To(Equal(1))
	})
})
