// Package copyengine models a DMA copy engine that moves data between a host
// memory and a device memory without involving any processor.
//
// The engine handles one transfer at a time. A transfer is cut into chunks
// that never cross a chunk-size boundary. Each chunk is translated and then
// sent as a memory transaction; reads land in a staging buffer and writes
// take their data from it once every read covering them has returned.
package copyengine

import (
	"log"
	"reflect"

	"github.com/sarchlab/copyengine/mem/mem"
	"github.com/sarchlab/copyengine/mem/vm"
	"github.com/sarchlab/copyengine/sim"
	"github.com/sarchlab/copyengine/tracing"
)

// Hook positions of the copy engine.
var (
	// HookPosTransferStart is invoked with a TransferRecord that has no end
	// time yet when a transfer is accepted.
	HookPosTransferStart = &sim.HookPos{Name: "CopyEngine Transfer Start"}

	// HookPosAccessIssue is invoked with an AccessInfo when the transport
	// takes a memory transaction.
	HookPosAccessIssue = &sim.HookPos{Name: "CopyEngine Access Issue"}

	// HookPosAccessDone is invoked with an AccessInfo when the response of a
	// memory transaction arrives.
	HookPosAccessDone = &sim.HookPos{Name: "CopyEngine Access Done"}

	// HookPosTransferComplete is invoked with a TransferResult when a
	// transfer finishes or aborts.
	HookPosTransferComplete = &sim.HookPos{Name: "CopyEngine Transfer Complete"}
)

// AccessInfo describes one memory transaction of a transfer.
type AccessInfo struct {
	TransferID string
	Access     vm.AccessKind
	Space      Space
	VAddr      uint64
	PAddr      uint64
	Size       uint64
	Msg        sim.Msg
}

// TransferResult is what completion listeners learn about a finished
// transfer. Err is nil on success and a *TransferFaultError otherwise.
type TransferResult struct {
	Record TransferRecord
	Cursor TransferCursor
	Err    error
}

// A CompletionListener is notified every time a transfer finishes.
type CompletionListener interface {
	TransferCompleted(result TransferResult)
}

// CompletionListenerFunc turns a function into a CompletionListener.
type CompletionListenerFunc func(result TransferResult)

// TransferCompleted calls f.
func (f CompletionListenerFunc) TransferCompleted(result TransferResult) {
	f(result)
}

// Comp is a copy engine.
type Comp struct {
	*sim.TickingComponent

	ctrlPort sim.Port
	host     *memSide
	device   *memSide

	readPort  *cePort
	writePort *cePort

	pid         vm.PID
	chunkSize   uint64
	accessDelay int
	driverDelay int

	transfer  *transfer
	ctrlRsps  []sim.Msg
	stats     StatsLedger
	recorders []statsRecorder
	listeners []CompletionListener
}

// HostPort returns the port that talks to the host memory.
func (c *Comp) HostPort() sim.Port {
	return c.host.port
}

// DevicePort returns the port that talks to the device memory.
func (c *Comp) DevicePort() sim.Port {
	return c.device.port
}

// CtrlPort returns the port that receives CopyReq and FillReq messages.
func (c *Comp) CtrlPort() sim.Port {
	return c.ctrlPort
}

// IsBusy tells if a transfer is active.
func (c *Comp) IsBusy() bool {
	return c.transfer != nil
}

// Cursor returns the progress of the active transfer. The second return
// value is false when the engine is idle.
func (c *Comp) Cursor() (TransferCursor, bool) {
	if c.transfer == nil {
		return TransferCursor{}, false
	}

	return c.transfer.cursor, true
}

// Stats returns the records of all the finished transfers.
func (c *Comp) Stats() *StatsLedger {
	return &c.stats
}

// AddCompletionListener registers a listener that is notified every time a
// transfer finishes.
func (c *Comp) AddCompletionListener(l CompletionListener) {
	c.listeners = append(c.listeners, l)
}

// Memcpy starts copying length bytes from src to dst. It returns ErrBusy if
// a transfer is active and an error wrapping ErrInvalidRequest if the request
// is malformed. The copy itself happens as the simulation runs.
func (c *Comp) Memcpy(src, dst, length uint64, direction Direction) error {
	return c.accept(copyRequest{
		kind:      KindCopy,
		src:       src,
		dst:       dst,
		length:    length,
		direction: direction,
	})
}

// Memset starts setting length bytes of device memory, starting at dst, to
// value. It fails in the same way as Memcpy.
func (c *Comp) Memset(dst uint64, value byte, length uint64) error {
	return c.accept(copyRequest{
		kind:   KindFill,
		dst:    dst,
		length: length,
		value:  value,
	})
}

func (c *Comp) accept(req copyRequest) error {
	if c.transfer != nil {
		return ErrBusy
	}

	if err := c.validate(req); err != nil {
		return err
	}

	c.startTransfer(req)

	return nil
}

func (c *Comp) validate(req copyRequest) error {
	if req.length == 0 {
		return invalidRequest("length must not be 0")
	}

	switch req.kind {
	case KindCopy:
		if !req.direction.Valid() {
			return invalidRequest("direction %s", req.direction)
		}

		binding := c.bind(req)

		if err := binding.read.checkRange(req.src, req.length); err != nil {
			return err
		}

		return binding.write.checkRange(req.dst, req.length)
	case KindFill:
		return c.device.checkRange(req.dst, req.length)
	default:
		return invalidRequest("kind %s", req.kind)
	}
}

func (c *Comp) bind(req copyRequest) roleBinding {
	if req.kind == KindFill {
		return roleBinding{write: c.device}
	}

	src, dst := req.direction.Spaces()

	return roleBinding{read: c.side(src), write: c.side(dst)}
}

func (c *Comp) side(space Space) *memSide {
	if space == SpaceHost {
		return c.host
	}

	return c.device
}

func (c *Comp) startTransfer(req copyRequest) {
	now := c.CurrentTime()
	binding := c.bind(req)

	t := &transfer{
		id:              sim.GetIDGenerator().Generate(),
		req:             req,
		start:           now,
		firstIssueCycle: c.Freq.Cycle(now) + uint64(c.driverDelay),
		inflight:        make(map[string]*chunk),
		cursor: TransferCursor{
			BeginAddress:        req.dst,
			CurrentWriteAddress: req.dst,
			WriteRemaining:      req.length,
			NeedToWrite:         true,
		},
	}

	if req.kind == KindCopy {
		t.staging = newStagingBuffer(req.src, req.length, c.chunkSize)
		t.read = c.newStream(t, binding.read, c.readPort, req.src)
		t.cursor.CurrentReadAddress = req.src
		t.cursor.ReadRemaining = req.length
		t.cursor.NeedToRead = true
	} else {
		t.staging = newFilledStagingBuffer(req.length, req.value)
	}

	t.write = c.newStream(t, binding.write, c.writePort, req.dst)
	c.transfer = t

	parentID := ""
	if req.ctrlReq != nil {
		parentID = tracing.MsgIDAtReceiver(req.ctrlReq, c)
	}

	tracing.StartTask(t.id, parentID, c,
		"copy_engine_transfer", req.kind.String(), req)
	c.invokeHook(HookPosTransferStart, t.record(0, 0))

	// The current cycle may already have been ticked.
	c.TickAfter(max(c.driverDelay, 1))
}

func (c *Comp) newStream(
	t *transfer,
	side *memSide,
	port *cePort,
	base uint64,
) *accessStream {
	port.bind(side.port)

	return &accessStream{
		transfer:  t,
		role:      port.role,
		side:      side,
		port:      port,
		base:      base,
		length:    t.req.length,
		chunkSize: c.chunkSize,
	}
}

// Tick advances the active transfer, reads before writes. It keeps the engine
// ticking until the transfer finishes.
func (c *Comp) Tick() bool {
	madeProgress := c.sendCtrlRsps()

	t := c.transfer
	if t == nil {
		madeProgress = c.acceptFromCtrlPort() || madeProgress
		return madeProgress
	}

	c.advance(t)
	c.checkCompletion()

	return c.transfer != nil || c.ctrlPort.PeekIncoming() != nil
}

func (c *Comp) advance(t *transfer) {
	if c.Freq.Cycle(c.CurrentTime()) < t.firstIssueCycle {
		return
	}

	for _, s := range t.streams() {
		if t.fault != nil {
			return
		}

		c.startTranslation(s)
		c.sendTranslated(s)
	}
}

func (c *Comp) acceptFromCtrlPort() bool {
	msg := c.ctrlPort.RetrieveIncoming()
	if msg == nil {
		return false
	}

	tracing.TraceReqReceive(msg, c)

	var req copyRequest

	switch msg := msg.(type) {
	case *CopyReq:
		req = copyRequest{
			kind:      KindCopy,
			src:       msg.SrcAddress,
			dst:       msg.DstAddress,
			length:    msg.Length,
			direction: msg.Direction,
		}
	case *FillReq:
		req = copyRequest{
			kind:   KindFill,
			dst:    msg.DstAddress,
			length: msg.Length,
			value:  msg.Value,
		}
	default:
		log.Panicf("cannot handle message of type %s", reflect.TypeOf(msg))
	}

	req.ctrlReq = msg

	if err := c.validate(req); err != nil {
		c.respondCtrl(msg, TransferRecord{}, err)
		return true
	}

	c.startTransfer(req)

	return true
}

// startTranslation translates the next chunk of the stream, at most one
// chunk every accessDelay cycles.
func (c *Comp) startTranslation(s *accessStream) bool {
	if s.allChunksStarted() || s.port.stalled() {
		return false
	}

	cycle := c.Freq.Cycle(c.CurrentTime())
	if s.started && cycle < s.lastStartCycle+uint64(c.accessDelay) {
		return false
	}

	ch := s.peekChunk()
	if s.role == vm.AccessWrite &&
		!s.transfer.staging.ready(ch.offset, ch.size) {
		return false
	}

	s.takeChunk(ch, cycle)
	c.translate(ch)

	return true
}

func (c *Comp) translate(ch *chunk) {
	s := ch.stream
	ch.translation = vm.Translation{
		PID:     c.pid,
		VAddr:   ch.addr,
		Kind:    s.role,
		Context: ch,
	}

	if s.side.translator.StartTranslation(&ch.translation, c) {
		c.translationFinished(ch)
	} else {
		tracing.AddTaskStep(s.transfer.id, c, "wait_"+s.role.String()+"_translation")
	}
}

// FinishTranslation resumes the chunk that waited for the translation.
// Translations that belong to a finished or aborted transfer are ignored.
func (c *Comp) FinishTranslation(tr *vm.Translation) {
	ch, ok := tr.Context.(*chunk)
	if !ok {
		log.Panicf("cannot handle translation context of type %s",
			reflect.TypeOf(tr.Context))
	}

	if c.translationFinished(ch) {
		c.sendTranslated(ch.stream)
	}

	c.checkCompletion()
}

func (c *Comp) translationFinished(ch *chunk) bool {
	t := ch.stream.transfer
	if t != c.transfer || t.fault != nil {
		return false
	}

	if ch.translation.Err != nil {
		c.abort(ch, ch.translation.Err)
		return false
	}

	ch.translated = true
	c.splitAtPageEnd(ch)

	return true
}

// splitAtPageEnd keeps the chunk inside its translated page. The bytes past
// the page end become a new chunk, right behind this one, with a translation
// of its own.
func (c *Comp) splitAtPageEnd(ch *chunk) {
	page := ch.translation.Page
	if page.PageSize == 0 {
		return
	}

	pageEnd := page.VAddr + page.PageSize
	if ch.addr+ch.size <= pageEnd {
		return
	}

	tail := &chunk{
		stream: ch.stream,
		addr:   pageEnd,
		offset: ch.offset + pageEnd - ch.addr,
		size:   ch.addr + ch.size - pageEnd,
	}
	ch.size = pageEnd - ch.addr

	ch.stream.insertAfter(ch, tail)
	c.translate(tail)
}

// sendTranslated sends the translated chunks at the head of the stream, in
// address order, until the port stalls.
func (c *Comp) sendTranslated(s *accessStream) bool {
	t := s.transfer
	madeProgress := false

	for len(s.pending) > 0 && t.fault == nil && !s.port.stalled() {
		ch := s.pending[0]
		if !ch.translated {
			break
		}

		s.pending = s.pending[1:]
		ch.req = c.buildReq(ch)
		t.inflight[ch.req.Meta().ID] = ch
		madeProgress = true

		if !s.port.send(ch.req) {
			break
		}

		c.accessIssued(ch)
	}

	return madeProgress
}

func (c *Comp) buildReq(ch *chunk) sim.Msg {
	s := ch.stream
	paddr := ch.translation.PAddr
	dst := s.side.mapper.Find(paddr)

	if s.role == vm.AccessRead {
		return mem.ReadReqBuilder{}.
			WithSrc(s.port.port.AsRemote()).
			WithDst(dst).
			WithPID(c.pid).
			WithAddress(paddr).
			WithByteSize(ch.size).
			Build()
	}

	return mem.WriteReqBuilder{}.
		WithSrc(s.port.port.AsRemote()).
		WithDst(dst).
		WithPID(c.pid).
		WithAddress(paddr).
		WithData(s.transfer.staging.extract(ch.offset, ch.size)).
		Build()
}

func (c *Comp) accessIssued(ch *chunk) {
	tracing.TraceReqInitiate(ch.req, c, ch.stream.transfer.id)
	c.invokeHook(HookPosAccessIssue, c.accessInfo(ch))
}

func (c *Comp) accessInfo(ch *chunk) AccessInfo {
	return AccessInfo{
		TransferID: ch.stream.transfer.id,
		Access:     ch.stream.role,
		Space:      ch.stream.side.space,
		VAddr:      ch.addr,
		PAddr:      ch.translation.PAddr,
		Size:       ch.size,
		Msg:        ch.req,
	}
}

// abort stops the transfer after a translation fault. Transactions that the
// transport already took are still waited for.
func (c *Comp) abort(ch *chunk, err error) {
	t := ch.stream.transfer

	t.fault = &TransferFaultError{
		TransferID: t.id,
		Access:     ch.stream.role,
		Space:      ch.stream.side.space,
		VAddr:      ch.addr,
		Err:        err,
	}

	for _, s := range t.streams() {
		s.pending = nil

		if msg := s.port.drop(); msg != nil {
			delete(t.inflight, msg.Meta().ID)
		}
	}

	tracing.AddTaskStep(t.id, c, "translation_fault")
}

// NotifyRecv handles memory responses as soon as they arrive.
func (c *Comp) NotifyRecv(port sim.Port) {
	if port == c.ctrlPort {
		c.TickLater()
		return
	}

	for msg := port.RetrieveIncoming(); msg != nil; msg = port.RetrieveIncoming() {
		c.handleRsp(msg)
	}

	if t := c.transfer; t != nil && t.fault == nil {
		c.advance(t)
	}

	c.checkCompletion()
}

func (c *Comp) handleRsp(msg sim.Msg) {
	t := c.transfer
	if t == nil {
		log.Panicf("response %s arrives while no transfer is active",
			msg.Meta().ID)
	}

	rsp, ok := msg.(sim.Rsp)
	if !ok {
		log.Panicf("cannot handle message of type %s", reflect.TypeOf(msg))
	}

	ch, found := t.inflight[rsp.GetRspTo()]
	if !found {
		log.Panicf("cannot find the request of response %s", rsp.GetRspTo())
	}

	delete(t.inflight, rsp.GetRspTo())

	switch rsp := rsp.(type) {
	case *mem.DataReadyRsp:
		c.roleMustBe(ch, vm.AccessRead, rsp)
		t.staging.fill(ch.offset, rsp.Data)
		t.cursor.readLanded(ch.size)
	case *mem.WriteDoneRsp:
		c.roleMustBe(ch, vm.AccessWrite, rsp)
		t.cursor.writeLanded(ch.size)
	default:
		log.Panicf("cannot handle message of type %s", reflect.TypeOf(rsp))
	}

	tracing.TraceReqFinalize(ch.req, c)
	c.invokeHook(HookPosAccessDone, c.accessInfo(ch))
}

func (c *Comp) roleMustBe(ch *chunk, role vm.AccessKind, rsp sim.Msg) {
	if ch.stream.role != role {
		log.Panicf("%s answers a %s request", reflect.TypeOf(rsp), ch.stream.role)
	}
}

// NotifyPortFree resends the transactions that the transport refused.
func (c *Comp) NotifyPortFree(port sim.Port) {
	if port == c.ctrlPort {
		c.sendCtrlRsps()
		return
	}

	t := c.transfer
	if t == nil {
		return
	}

	for _, s := range t.streams() {
		if s.port.port != port {
			continue
		}

		if msg := s.port.retry(); msg != nil {
			c.accessIssued(t.inflight[msg.Meta().ID])
		}

		c.sendTranslated(s)
	}
}

func (c *Comp) checkCompletion() {
	t := c.transfer
	if t == nil {
		return
	}

	if t.fault != nil {
		if len(t.inflight) == 0 {
			c.finish(t.fault)
		}

		return
	}

	if t.cursor.ReadRemaining == 0 && t.cursor.WriteRemaining == 0 {
		c.finish(nil)
	}
}

func (c *Comp) finish(err error) {
	t := c.transfer
	now := c.CurrentTime()
	record := t.record(now, c.Freq.Cycle(now)-c.Freq.Cycle(t.start))

	c.stats.append(record)
	for _, r := range c.recorders {
		r.record(record)
	}

	t.staging = nil
	c.transfer = nil

	tracing.EndTask(t.id, c)

	if t.req.ctrlReq != nil {
		c.respondCtrl(t.req.ctrlReq, record, err)
	}

	result := TransferResult{Record: record, Cursor: t.cursor, Err: err}
	c.invokeHook(HookPosTransferComplete, result)

	for _, l := range c.listeners {
		l.TransferCompleted(result)
	}

	if c.ctrlPort.PeekIncoming() != nil {
		c.TickLater()
	}
}

func (c *Comp) respondCtrl(req sim.Msg, record TransferRecord, err error) {
	c.ctrlRsps = append(c.ctrlRsps, newCopyDoneRsp(req, record, err))
	c.sendCtrlRsps()

	tracing.TraceReqComplete(req, c)
}

func (c *Comp) sendCtrlRsps() bool {
	madeProgress := false

	for len(c.ctrlRsps) > 0 {
		if err := c.ctrlPort.Send(c.ctrlRsps[0]); err != nil {
			break
		}

		c.ctrlRsps = c.ctrlRsps[1:]
		madeProgress = true
	}

	return madeProgress
}

func (c *Comp) invokeHook(pos *sim.HookPos, item interface{}) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   item,
	})
}
