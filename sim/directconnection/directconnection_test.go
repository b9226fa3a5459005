package directconnection

import (
	"fmt"
	"math/rand"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/copyengine/sim"
)

type sampleMsg struct {
	sim.MsgMeta
}

func newSampleMsg() *sampleMsg {
	return &sampleMsg{}
}

func (m *sampleMsg) Meta() *sim.MsgMeta {
	return &m.MsgMeta
}

func (m *sampleMsg) Clone() sim.Msg {
	cloneMsg := *m
	cloneMsg.ID = sim.GetIDGenerator().Generate()

	return &cloneMsg
}

type agent struct {
	*sim.TickingComponent

	msgsOut []sim.Msg
	msgsIn  []sim.Msg

	OutPort sim.Port
}

func newAgent(engine sim.Engine, freq sim.Freq, name string) *agent {
	a := new(agent)
	a.TickingComponent = sim.NewTickingComponent(name, engine, freq, a)
	a.OutPort = sim.NewPort(a, 4, 4, name+".OutPort")

	return a
}

func (a *agent) Tick() bool {
	madeProgress := false

	msgIn := a.OutPort.RetrieveIncoming()
	if msgIn != nil {
		a.msgsIn = append(a.msgsIn, msgIn)
		madeProgress = true
	}

	if len(a.msgsOut) > 0 {
		err := a.OutPort.Send(a.msgsOut[0])
		if err == nil {
			madeProgress = true
			a.msgsOut = a.msgsOut[1:]
		}
	}

	return madeProgress
}

var _ = Describe("DirectConnection", func() {
	var (
		engine     sim.Engine
		connection *Comp
		agents     []*agent
		numAgents  = 10
		numMsgs    = 200
	)

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		connection = MakeBuilder().WithEngine(engine).WithFreq(1).Build("Conn")
		agents = nil

		for i := 0; i < numAgents; i++ {
			a := newAgent(engine, 1, fmt.Sprintf("Agent[%d]", i))
			agents = append(agents, a)
			connection.PlugIn(a.OutPort)
		}
	})

	It("should panic when plugging in the same port twice", func() {
		Expect(func() { connection.PlugIn(agents[0].OutPort) }).To(Panic())
	})

	It("should deliver all messages", func() {
		for _, a := range agents {
			for i := 0; i < numMsgs; i++ {
				msg := newSampleMsg()
				msg.ID = fmt.Sprintf("%s(%d)", a.Name(), i)
				msg.Src = a.OutPort.AsRemote()
				msg.Dst = agents[rand.Intn(len(agents))].OutPort.AsRemote()

				for msg.Dst == msg.Src {
					msg.Dst = agents[rand.Intn(len(agents))].OutPort.AsRemote()
				}

				a.msgsOut = append(a.msgsOut, msg)
			}

			a.TickLater()
		}

		Expect(engine.Run()).To(Succeed())

		totalRecvd := 0
		for _, a := range agents {
			totalRecvd += len(a.msgsIn)
		}

		Expect(totalRecvd).To(Equal(numAgents * numMsgs))
	})

	It("should invoke the deliver hook", func() {
		delivered := 0
		connection.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
			if ctx.Pos == sim.HookPosConnDeliver {
				delivered++
			}
		}))

		msg := newSampleMsg()
		msg.Src = agents[0].OutPort.AsRemote()
		msg.Dst = agents[1].OutPort.AsRemote()
		agents[0].msgsOut = append(agents[0].msgsOut, msg)
		agents[0].TickLater()

		Expect(engine.Run()).To(Succeed())
		Expect(delivered).To(Equal(1))
		Expect(agents[1].msgsIn).To(ConsistOf(msg))
	})

	It("should run deterministically", func() {
		seed := time.Now().UTC().UnixNano()
		time1 := directConnectionTest(seed)
		time2 := directConnectionTest(seed)

		Expect(time1).To(Equal(time2))
	})
})

func directConnectionTest(seed int64) sim.VTimeInSec {
	r := rand.New(rand.NewSource(seed))

	numAgents := 20
	numMsgsPerAgent := 100
	engine := sim.NewSerialEngine()
	connection := MakeBuilder().WithEngine(engine).WithFreq(1).Build("Conn")
	agents := make([]*agent, 0, numAgents)

	for i := 0; i < numAgents; i++ {
		a := newAgent(engine, 1, fmt.Sprintf("Agent%d", i))
		agents = append(agents, a)
		connection.PlugIn(a.OutPort)
	}

	for _, a := range agents {
		for i := 0; i < numMsgsPerAgent; i++ {
			msg := newSampleMsg()
			msg.ID = fmt.Sprintf("%s(%d)", a.Name(), i)
			msg.Src = a.OutPort.AsRemote()
			msg.Dst = agents[r.Intn(len(agents))].OutPort.AsRemote()

			for msg.Dst == msg.Src {
				msg.Dst = agents[r.Intn(len(agents))].OutPort.AsRemote()
			}

			a.msgsOut = append(a.msgsOut, msg)
		}

		a.TickLater()
	}

	_ = engine.Run()

	return engine.CurrentTime()
}
