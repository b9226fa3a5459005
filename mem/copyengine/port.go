package copyengine

import (
	"log"

	"github.com/sarchlab/copyengine/mem/mem"
	"github.com/sarchlab/copyengine/mem/vm"
	"github.com/sarchlab/copyengine/sim"
)

// A memSide bundles what the engine needs to access one address space.
type memSide struct {
	space      Space
	port       sim.Port
	translator vm.Translator
	mapper     mem.AddressToPortMapper
	addrRange  *AddressRange
}

func (s *memSide) checkRange(addr, length uint64) error {
	if addr+length < addr {
		return invalidRequest("range 0x%x+%d overflows", addr, length)
	}

	if s.addrRange == nil {
		return nil
	}

	if !s.addrRange.Contains(addr, length) {
		return invalidRequest("[0x%x, 0x%x) is outside the %s range %s",
			addr, addr+length, s.space, s.addrRange)
	}

	return nil
}

// A roleBinding tells which space serves the reads and which serves the
// writes of a transfer. It is fixed when the transfer is accepted.
type roleBinding struct {
	read, write *memSide
}

// A cePort sends the memory transactions of one role. It holds at most one
// transaction that the transport refused; while it holds one, nothing else is
// sent.
type cePort struct {
	role        vm.AccessKind
	port        sim.Port
	outstanding sim.Msg
}

func (p *cePort) bind(port sim.Port) {
	if p.outstanding != nil {
		log.Panicf("rebinding the %s port while a send is pending", p.role)
	}

	p.port = port
}

func (p *cePort) stalled() bool {
	return p.outstanding != nil
}

// send returns false when the transport is full. The message is then kept
// and resent by retry.
func (p *cePort) send(msg sim.Msg) bool {
	if p.stalled() {
		log.Panicf("sending on the stalled %s port", p.role)
	}

	if err := p.port.Send(msg); err != nil {
		p.outstanding = msg
		return false
	}

	return true
}

// retry resends the kept message and returns it if the transport takes it.
func (p *cePort) retry() sim.Msg {
	if !p.stalled() {
		return nil
	}

	if err := p.port.Send(p.outstanding); err != nil {
		return nil
	}

	msg := p.outstanding
	p.outstanding = nil

	return msg
}

// drop forgets the kept message without sending it.
func (p *cePort) drop() sim.Msg {
	msg := p.outstanding
	p.outstanding = nil

	return msg
}
