// Package idealmemcontroller provides a memory controller that responds to
// every request after a fixed latency.
package idealmemcontroller

import (
	"log"
	"reflect"

	"github.com/sarchlab/copyengine/mem/mem"
	"github.com/sarchlab/copyengine/sim"
	"github.com/sarchlab/copyengine/tracing"
)

type readRespondEvent struct {
	*sim.EventBase
	req *mem.ReadReq
}

func newReadRespondEvent(
	time sim.VTimeInSec,
	handler sim.Handler,
	req *mem.ReadReq,
) *readRespondEvent {
	return &readRespondEvent{sim.NewEventBase(time, handler), req}
}

type writeRespondEvent struct {
	*sim.EventBase
	req *mem.WriteReq
}

func newWriteRespondEvent(
	time sim.VTimeInSec,
	handler sim.Handler,
	req *mem.WriteReq,
) *writeRespondEvent {
	return &writeRespondEvent{sim.NewEventBase(time, handler), req}
}

// A Comp is an ideal memory controller. It responds to each request a fixed
// number of cycles after taking it from the top port, with no limit on the
// number of requests in flight.
type Comp struct {
	*sim.TickingComponent

	topPort       sim.Port
	Storage       *mem.Storage
	Latency       int
	width         int
	addressOffset uint64

	numReads, numWrites uint64
}

// TopPort returns the port that receives memory requests.
func (c *Comp) TopPort() sim.Port {
	return c.topPort
}

// NumReads returns the number of reads served.
func (c *Comp) NumReads() uint64 {
	return c.numReads
}

// NumWrites returns the number of writes served.
func (c *Comp) NumWrites() uint64 {
	return c.numWrites
}

// Handle defines how the Comp handles event
func (c *Comp) Handle(e sim.Event) error {
	switch e := e.(type) {
	case *readRespondEvent:
		return c.handleReadRespondEvent(e)
	case *writeRespondEvent:
		return c.handleWriteRespondEvent(e)
	case sim.TickEvent:
		return c.TickingComponent.Handle(e)
	default:
		log.Panicf("cannot handle event of %s", reflect.TypeOf(e))
	}

	return nil
}

// Tick takes new requests from the top port.
func (c *Comp) Tick() bool {
	madeProgress := false

	for i := 0; i < c.width; i++ {
		msg := c.topPort.RetrieveIncoming()
		if msg == nil {
			break
		}

		tracing.TraceReqReceive(msg, c)

		respondTime := c.Freq.NCyclesLater(c.Latency, c.CurrentTime())

		switch req := msg.(type) {
		case *mem.ReadReq:
			c.Engine.Schedule(newReadRespondEvent(respondTime, c, req))
		case *mem.WriteReq:
			c.Engine.Schedule(newWriteRespondEvent(respondTime, c, req))
		default:
			log.Panicf("cannot handle request of type %s",
				reflect.TypeOf(msg))
		}

		madeProgress = true
	}

	return madeProgress
}

func (c *Comp) storageAddr(addr uint64) uint64 {
	if addr < c.addressOffset {
		log.Panicf("address 0x%x is below the controller base 0x%x",
			addr, c.addressOffset)
	}

	return addr - c.addressOffset
}

func (c *Comp) handleReadRespondEvent(e *readRespondEvent) error {
	req := e.req

	data, err := c.Storage.Read(c.storageAddr(req.Address), req.AccessByteSize)
	if err != nil {
		log.Panic(err)
	}

	rsp := mem.DataReadyRspBuilder{}.
		WithSrc(c.topPort.AsRemote()).
		WithDst(req.Src).
		WithRspTo(req.ID).
		WithData(data).
		Build()

	if sendErr := c.topPort.Send(rsp); sendErr != nil {
		retry := newReadRespondEvent(c.Freq.NextTick(e.Time()), c, req)
		c.Engine.Schedule(retry)

		return nil
	}

	c.numReads++

	tracing.TraceReqComplete(req, c)
	c.TickLater()

	return nil
}

func (c *Comp) handleWriteRespondEvent(e *writeRespondEvent) error {
	req := e.req

	rsp := mem.WriteDoneRspBuilder{}.
		WithSrc(c.topPort.AsRemote()).
		WithDst(req.Src).
		WithRspTo(req.ID).
		Build()

	if sendErr := c.topPort.Send(rsp); sendErr != nil {
		retry := newWriteRespondEvent(c.Freq.NextTick(e.Time()), c, req)
		c.Engine.Schedule(retry)

		return nil
	}

	c.write(req)
	c.numWrites++

	tracing.TraceReqComplete(req, c)
	c.TickLater()

	return nil
}

func (c *Comp) write(req *mem.WriteReq) {
	addr := c.storageAddr(req.Address)

	if req.DirtyMask == nil {
		if err := c.Storage.Write(addr, req.Data); err != nil {
			log.Panic(err)
		}

		return
	}

	data, err := c.Storage.Read(addr, uint64(len(req.Data)))
	if err != nil {
		log.Panic(err)
	}

	for i := range req.Data {
		if req.DirtyMask[i] {
			data[i] = req.Data[i]
		}
	}

	if err := c.Storage.Write(addr, data); err != nil {
		log.Panic(err)
	}
}
