package copyengine

import (
	"github.com/sarchlab/copyengine/sim"
)

// A CopyReq asks the copy engine, through its control port, to copy Length
// bytes from SrcAddress to DstAddress.
type CopyReq struct {
	sim.MsgMeta

	SrcAddress uint64
	DstAddress uint64
	Length     uint64
	Direction  Direction
}

// Meta returns the metadata of the message.
func (r *CopyReq) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// Clone returns a copy of the request with a new ID.
func (r *CopyReq) Clone() sim.Msg {
	cloneMsg := *r
	cloneMsg.ID = sim.GetIDGenerator().Generate()

	return &cloneMsg
}

// CopyReqBuilder can build copy requests.
type CopyReqBuilder struct {
	src, dst         sim.RemotePort
	srcAddr, dstAddr uint64
	length           uint64
	direction        Direction
}

// WithSrc sets the port that sends the request.
func (b CopyReqBuilder) WithSrc(src sim.RemotePort) CopyReqBuilder {
	b.src = src
	return b
}

// WithDst sets the control port of the copy engine.
func (b CopyReqBuilder) WithDst(dst sim.RemotePort) CopyReqBuilder {
	b.dst = dst
	return b
}

// WithSrcAddress sets the address to copy from.
func (b CopyReqBuilder) WithSrcAddress(addr uint64) CopyReqBuilder {
	b.srcAddr = addr
	return b
}

// WithDstAddress sets the address to copy to.
func (b CopyReqBuilder) WithDstAddress(addr uint64) CopyReqBuilder {
	b.dstAddr = addr
	return b
}

// WithLength sets the number of bytes to copy.
func (b CopyReqBuilder) WithLength(length uint64) CopyReqBuilder {
	b.length = length
	return b
}

// WithDirection sets the direction of the copy.
func (b CopyReqBuilder) WithDirection(d Direction) CopyReqBuilder {
	b.direction = d
	return b
}

// Build creates a new CopyReq.
func (b CopyReqBuilder) Build() *CopyReq {
	r := &CopyReq{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.TrafficBytes = 24
	r.SrcAddress = b.srcAddr
	r.DstAddress = b.dstAddr
	r.Length = b.length
	r.Direction = b.direction

	return r
}

// A FillReq asks the copy engine to set Length bytes of device memory,
// starting at DstAddress, to Value.
type FillReq struct {
	sim.MsgMeta

	DstAddress uint64
	Value      byte
	Length     uint64
}

// Meta returns the metadata of the message.
func (r *FillReq) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// Clone returns a copy of the request with a new ID.
func (r *FillReq) Clone() sim.Msg {
	cloneMsg := *r
	cloneMsg.ID = sim.GetIDGenerator().Generate()

	return &cloneMsg
}

// FillReqBuilder can build fill requests.
type FillReqBuilder struct {
	src, dst sim.RemotePort
	dstAddr  uint64
	value    byte
	length   uint64
}

// WithSrc sets the port that sends the request.
func (b FillReqBuilder) WithSrc(src sim.RemotePort) FillReqBuilder {
	b.src = src
	return b
}

// WithDst sets the control port of the copy engine.
func (b FillReqBuilder) WithDst(dst sim.RemotePort) FillReqBuilder {
	b.dst = dst
	return b
}

// WithDstAddress sets the first address to fill.
func (b FillReqBuilder) WithDstAddress(addr uint64) FillReqBuilder {
	b.dstAddr = addr
	return b
}

// WithValue sets the byte to fill with.
func (b FillReqBuilder) WithValue(v byte) FillReqBuilder {
	b.value = v
	return b
}

// WithLength sets the number of bytes to fill.
func (b FillReqBuilder) WithLength(length uint64) FillReqBuilder {
	b.length = length
	return b
}

// Build creates a new FillReq.
func (b FillReqBuilder) Build() *FillReq {
	r := &FillReq{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.TrafficBytes = 17
	r.DstAddress = b.dstAddr
	r.Value = b.value
	r.Length = b.length

	return r
}

// A CopyDoneRsp is sent back on the control port when a transfer requested
// by a CopyReq or a FillReq finishes. Err is nil on success.
type CopyDoneRsp struct {
	sim.MsgMeta

	RespondTo string
	Record    TransferRecord
	Err       error
}

// Meta returns the metadata of the message.
func (r *CopyDoneRsp) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// Clone returns a copy of the response with a new ID.
func (r *CopyDoneRsp) Clone() sim.Msg {
	cloneMsg := *r
	cloneMsg.ID = sim.GetIDGenerator().Generate()

	return &cloneMsg
}

// GetRspTo returns the ID of the request that the response answers.
func (r *CopyDoneRsp) GetRspTo() string {
	return r.RespondTo
}

func newCopyDoneRsp(req sim.Msg, record TransferRecord, err error) *CopyDoneRsp {
	rsp := &CopyDoneRsp{
		RespondTo: req.Meta().ID,
		Record:    record,
		Err:       err,
	}
	rsp.ID = sim.GetIDGenerator().Generate()
	rsp.Src = req.Meta().Dst
	rsp.Dst = req.Meta().Src
	rsp.TrafficBytes = 4

	return rsp
}
