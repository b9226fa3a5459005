package copyengine

import (
	"fmt"
	"log"

	"github.com/sarchlab/copyengine/mem/vm"
	"github.com/sarchlab/copyengine/sim"
)

// An AddressRange is the half-open range [Low, High).
type AddressRange struct {
	Low, High uint64
}

// Contains tells if [addr, addr+length) is inside the range.
func (r AddressRange) Contains(addr, length uint64) bool {
	return addr >= r.Low && addr+length <= r.High && addr+length >= addr
}

func (r AddressRange) String() string {
	return fmt.Sprintf("[0x%x, 0x%x)", r.Low, r.High)
}

type copyRequest struct {
	kind      Kind
	src, dst  uint64
	length    uint64
	value     byte
	direction Direction
	ctrlReq   sim.Msg
}

// A TransferCursor is the progress of the active transfer. ReadCompleted +
// ReadRemaining and WriteCompleted + WriteRemaining both equal the transfer
// length, except that fills have nothing to read.
type TransferCursor struct {
	BeginAddress        uint64
	CurrentReadAddress  uint64
	CurrentWriteAddress uint64
	ReadRemaining       uint64
	ReadCompleted       uint64
	WriteRemaining      uint64
	WriteCompleted      uint64
	NeedToRead          bool
	NeedToWrite         bool
}

func (c *TransferCursor) readLanded(size uint64) {
	c.ReadCompleted += size
	c.ReadRemaining -= size
	c.CurrentReadAddress += size
	c.NeedToRead = c.ReadRemaining > 0
}

func (c *TransferCursor) writeLanded(size uint64) {
	c.WriteCompleted += size
	c.WriteRemaining -= size
	c.CurrentWriteAddress += size
	c.NeedToWrite = c.WriteRemaining > 0
}

// A chunk is one memory transaction of a transfer. It never crosses a
// chunk-size boundary of its own address space, nor the end of the page it
// is translated in.
type chunk struct {
	stream      *accessStream
	addr        uint64
	offset      uint64
	size        uint64
	translation vm.Translation
	translated  bool
	req         sim.Msg
}

// An accessStream walks one role of a transfer through its chunks, in
// address order.
type accessStream struct {
	transfer  *transfer
	role      vm.AccessKind
	side      *memSide
	port      *cePort
	base      uint64
	length    uint64
	chunkSize uint64

	nextOffset     uint64
	pending        []*chunk
	started        bool
	lastStartCycle uint64
}

func (s *accessStream) allChunksStarted() bool {
	return s.nextOffset >= s.length
}

func (s *accessStream) peekChunk() *chunk {
	addr := s.base + s.nextOffset

	size := s.chunkSize - addr%s.chunkSize
	if remaining := s.length - s.nextOffset; size > remaining {
		size = remaining
	}

	return &chunk{
		stream: s,
		addr:   addr,
		offset: s.nextOffset,
		size:   size,
	}
}

// insertAfter puts ch right behind prev in the pending chunks, so that
// chunks are still sent in address order.
func (s *accessStream) insertAfter(prev, ch *chunk) {
	for i, p := range s.pending {
		if p == prev {
			s.pending = append(s.pending[:i+1],
				append([]*chunk{ch}, s.pending[i+1:]...)...)

			return
		}
	}

	log.Panicf("chunk at 0x%x is not pending", prev.addr)
}

func (s *accessStream) takeChunk(ch *chunk, cycle uint64) {
	s.nextOffset += ch.size
	s.pending = append(s.pending, ch)
	s.started = true
	s.lastStartCycle = cycle
}

// transfer is the state of the active memcpy or memset. It lives on the
// engine so that every callback can resume it.
type transfer struct {
	id              string
	req             copyRequest
	cursor          TransferCursor
	staging         *stagingBuffer
	read, write     *accessStream
	start           sim.VTimeInSec
	firstIssueCycle uint64
	inflight        map[string]*chunk
	fault           *TransferFaultError
}

func (t *transfer) record(end sim.VTimeInSec, cycles uint64) TransferRecord {
	return TransferRecord{
		ID:        t.id,
		Kind:      t.req.kind,
		Direction: t.req.direction,
		Src:       t.req.src,
		Dst:       t.req.dst,
		Bytes:     t.req.length,
		Start:     t.start,
		End:       end,
		Cycles:    cycles,
		Faulted:   t.fault != nil,
	}
}

func (t *transfer) streams() []*accessStream {
	if t.read == nil {
		return []*accessStream{t.write}
	}

	return []*accessStream{t.read, t.write}
}
