package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sarchlab/copyengine/mem/copyengine"
	"github.com/sarchlab/copyengine/mem/idealmemcontroller"
	"github.com/sarchlab/copyengine/mem/mem"
	"github.com/sarchlab/copyengine/mem/trace"
	"github.com/sarchlab/copyengine/mem/vm"
	"github.com/sarchlab/copyengine/sim"
	"github.com/sarchlab/copyengine/sim/directconnection"
	"github.com/sarchlab/copyengine/simulation"
	"github.com/sarchlab/copyengine/tracing"
)

const pid = vm.PID(1)

// An addressSpace is one side of the platform: a memory controller, the page
// table that maps virtual pages onto it, and the translator walking that
// table.
type addressSpace struct {
	space      copyengine.Space
	mem        *idealmemcontroller.Comp
	pageTable  vm.PageTable
	translator *vm.PageTableTranslator
	pageSize   uint64
	nextPAddr  uint64
}

// mapRange makes every page touched by [vAddr, vAddr+length) valid. Pages
// that are already mapped are kept.
func (s *addressSpace) mapRange(vAddr, length uint64) {
	if length == 0 {
		return
	}

	first := vAddr &^ (s.pageSize - 1)
	for page := first; page < vAddr+length; page += s.pageSize {
		if _, found := s.pageTable.Find(pid, page); found {
			continue
		}

		s.pageTable.Insert(vm.Page{
			PID:      pid,
			VAddr:    page,
			PAddr:    s.nextPAddr,
			PageSize: s.pageSize,
			Valid:    true,
		})
		s.nextPAddr += s.pageSize
	}
}

// walk calls f with the physical address of every page-sized piece of
// [vAddr, vAddr+length).
func (s *addressSpace) walk(
	vAddr, length uint64,
	f func(pAddr, offset, size uint64) error,
) error {
	offset := uint64(0)
	for offset < length {
		addr := vAddr + offset
		page, found := s.pageTable.Find(pid, addr)
		if !found {
			return fmt.Errorf("%s address 0x%x is not mapped", s.space, addr)
		}

		size := page.VAddr + page.PageSize - addr
		if size > length-offset {
			size = length - offset
		}

		if err := f(page.PAddr+addr-page.VAddr, offset, size); err != nil {
			return err
		}

		offset += size
	}

	return nil
}

func (s *addressSpace) write(vAddr uint64, data []byte) error {
	return s.walk(vAddr, uint64(len(data)),
		func(pAddr, offset, size uint64) error {
			return s.mem.Storage.Write(pAddr, data[offset:offset+size])
		})
}

func (s *addressSpace) read(vAddr, length uint64) ([]byte, error) {
	data := make([]byte, length)
	err := s.walk(vAddr, length, func(pAddr, offset, size uint64) error {
		chunk, err := s.mem.Storage.Read(pAddr, size)
		copy(data[offset:], chunk)

		return err
	})

	return data, err
}

// platform is a copy engine between a host memory and a device memory.
type platform struct {
	simulation *simulation.Simulation
	engine     sim.Engine
	host       *addressSpace
	device     *addressSpace
	ce         *copyengine.Comp
	conn       *directconnection.Comp
	progress   *transferProgress
	results    []copyengine.TransferResult
}

func buildSimulation(cfg config) *simulation.Simulation {
	b := simulation.MakeBuilder()

	if cfg.monitor {
		if cfg.monitorPort != 0 {
			b = b.WithMonitorPort(cfg.monitorPort)
		}
	} else {
		b = b.WithoutMonitoring()
	}

	if cfg.record != "" {
		b = b.WithOutputFileName(cfg.record)
	} else {
		b = b.WithoutRecording()
	}

	return b.Build()
}

func buildPlatform(cfg config) *platform {
	s := buildSimulation(cfg)
	p := &platform{
		simulation: s,
		engine:     s.GetEngine(),
	}

	p.host = p.buildAddressSpace(cfg, copyengine.SpaceHost, "HostMem")
	p.device = p.buildAddressSpace(cfg, copyengine.SpaceDevice, "DeviceMem")

	b := copyengine.MakeBuilder().
		WithEngine(p.engine).
		WithPID(pid).
		WithChunkSize(cfg.chunkSize).
		WithAccessDelay(cfg.accessDelay).
		WithDriverDelay(cfg.driverDelay).
		WithHostTranslator(p.host.translator).
		WithDeviceTranslator(p.device.translator).
		WithHostMemory(&mem.SinglePortMapper{
			Port: p.host.mem.TopPort().AsRemote(),
		}).
		WithDeviceMemory(&mem.SinglePortMapper{
			Port: p.device.mem.TopPort().AsRemote(),
		}).
		WithStatsFile(cfg.statsFile)
	if recorder := s.GetDataRecorder(); recorder != nil {
		b = b.WithDataRecorder(recorder)
	}

	p.ce = b.Build("CE")
	p.ce.AddCompletionListener(copyengine.CompletionListenerFunc(
		func(r copyengine.TransferResult) {
			p.results = append(p.results, r)
		}))

	p.conn = directconnection.MakeBuilder().
		WithEngine(p.engine).
		Build("Conn")
	p.conn.PlugIn(p.ce.HostPort())
	p.conn.PlugIn(p.ce.DevicePort())
	p.conn.PlugIn(p.host.mem.TopPort())
	p.conn.PlugIn(p.device.mem.TopPort())

	s.RegisterComponent(p.ce)
	s.RegisterComponent(p.host.mem)
	s.RegisterComponent(p.device.mem)
	s.RegisterComponent(p.conn)

	if monitor := s.GetMonitor(); monitor != nil {
		p.progress = newTransferProgress(monitor)
		p.ce.AcceptHook(p.progress)

		if cfg.openMonitor {
			if err := monitor.OpenInBrowser(); err != nil {
				log.Printf("cannot open the monitor: %v", err)
			}
		}
	}

	p.attachLoggers(cfg)

	return p
}

func (p *platform) buildAddressSpace(
	cfg config,
	space copyengine.Space,
	name string,
) *addressSpace {
	s := &addressSpace{
		space:     space,
		pageTable: vm.NewPageTable(cfg.log2PageSize),
		pageSize:  1 << cfg.log2PageSize,
	}

	s.mem = idealmemcontroller.MakeBuilder().
		WithEngine(p.engine).
		WithNewStorage(cfg.memSize).
		WithLatency(cfg.memLatency).
		Build(name)

	s.translator = vm.MakeBuilder().
		WithEngine(p.engine).
		WithLog2PageSize(cfg.log2PageSize).
		WithPageTable(s.pageTable).
		WithLatency(cfg.pageWalkLatency).
		Build(name + ".Translator")

	return s
}

func (p *platform) attachLoggers(cfg config) {
	logger := log.New(os.Stderr, "", 0)
	mems := []tracing.NamedHookable{p.host.mem, p.device.mem}

	if cfg.traceMem {
		t := trace.NewTracer(logger, p.engine)
		for _, m := range mems {
			tracing.CollectTrace(m, t)
		}
	}

	if recorder := p.simulation.GetDataRecorder(); recorder != nil {
		t := trace.NewDBTracer(recorder, p.engine)
		for _, m := range mems {
			tracing.CollectTrace(m, t)
		}
	}

	if cfg.logEvents {
		p.engine.AcceptHook(sim.NewEventLogger(logger))
	}

	if cfg.logMsgs {
		msgLogger := sim.NewPortMsgLogger(logger, p.engine)
		for _, c := range []sim.Component{p.ce, p.host.mem, p.device.mem} {
			for _, port := range c.Ports() {
				port.AcceptHook(msgLogger)
			}
		}
	}
}

func (p *platform) spaceOf(space copyengine.Space) *addressSpace {
	if space == copyengine.SpaceHost {
		return p.host
	}

	return p.device
}

// run executes the simulation until every event is processed and returns the
// result of the last transfer.
func (p *platform) run() (copyengine.TransferResult, error) {
	defer p.simulation.Terminate()

	if err := p.engine.Run(); err != nil {
		return copyengine.TransferResult{}, err
	}

	p.engine.Finished()

	if len(p.results) == 0 {
		return copyengine.TransferResult{}, fmt.Errorf("no transfer finished")
	}

	return p.results[len(p.results)-1], nil
}
