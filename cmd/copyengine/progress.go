package main

import (
	"github.com/sarchlab/copyengine/mem/copyengine"
	"github.com/sarchlab/copyengine/mem/vm"
	"github.com/sarchlab/copyengine/monitoring"
	"github.com/sarchlab/copyengine/sim"
)

// transferProgress shows every transfer as a progress bar on the monitor. A
// byte is in progress once its write is issued and finished once the write is
// acknowledged.
type transferProgress struct {
	monitor *monitoring.Monitor
	bars    map[string]*monitoring.ProgressBar
}

func newTransferProgress(monitor *monitoring.Monitor) *transferProgress {
	return &transferProgress{
		monitor: monitor,
		bars:    make(map[string]*monitoring.ProgressBar),
	}
}

func (p *transferProgress) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case copyengine.HookPosTransferStart:
		record := ctx.Item.(copyengine.TransferRecord)
		name := ctx.Domain.(sim.Named).Name() + " " + record.Kind.String()
		p.bars[record.ID] = p.monitor.CreateProgressBar(name, record.Bytes)
	case copyengine.HookPosAccessIssue:
		if bar, info := p.writeAccess(ctx); bar != nil {
			bar.IncrementInProgress(info.Size)
		}
	case copyengine.HookPosAccessDone:
		if bar, info := p.writeAccess(ctx); bar != nil {
			bar.MoveInProgressToFinished(info.Size)
		}
	case copyengine.HookPosTransferComplete:
		result := ctx.Item.(copyengine.TransferResult)
		if bar, found := p.bars[result.Record.ID]; found {
			p.monitor.CompleteProgressBar(bar)
			delete(p.bars, result.Record.ID)
		}
	}
}

func (p *transferProgress) writeAccess(
	ctx sim.HookCtx,
) (*monitoring.ProgressBar, copyengine.AccessInfo) {
	info := ctx.Item.(copyengine.AccessInfo)
	if info.Access != vm.AccessWrite {
		return nil, info
	}

	return p.bars[info.TransferID], info
}
