package vm

import "github.com/sarchlab/copyengine/sim"

// A Builder can build PageTableTranslators.
type Builder struct {
	engine             sim.Engine
	freq               sim.Freq
	log2PageSize       uint64
	pageTable          PageTable
	latency            int
	autoPageAllocation bool
	allocBase          uint64
}

// MakeBuilder creates a new builder
func MakeBuilder() Builder {
	return Builder{
		freq:         1 * sim.GHz,
		log2PageSize: 12,
	}
}

// WithEngine sets the engine that page walks are scheduled on.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency that the translator works at.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithLog2PageSize sets the page size that the translator supports.
func (b Builder) WithLog2PageSize(log2PageSize uint64) Builder {
	b.log2PageSize = log2PageSize
	return b
}

// WithPageTable sets the page table to walk.
func (b Builder) WithPageTable(pageTable PageTable) Builder {
	b.pageTable = pageTable
	return b
}

// WithLatency sets the number of cycles required for walking the page table.
func (b Builder) WithLatency(n int) Builder {
	b.latency = n
	return b
}

// WithAutoPageAllocation makes the translator create a page on a miss,
// instead of faulting. Pages are allocated contiguously from base.
func (b Builder) WithAutoPageAllocation(base uint64) Builder {
	b.autoPageAllocation = true
	b.allocBase = base

	return b
}

// Build creates a new PageTableTranslator.
func (b Builder) Build(name string) *PageTableTranslator {
	sim.NameMustBeValid(name)

	if b.latency < 0 {
		panic("latency must not be negative")
	}

	if b.latency > 0 && b.engine == nil {
		panic("engine is required for a translator with latency")
	}

	t := &PageTableTranslator{
		name:               name,
		engine:             b.engine,
		freq:               b.freq,
		latency:            b.latency,
		log2PageSize:       b.log2PageSize,
		pageTable:          b.pageTable,
		autoPageAllocation: b.autoPageAllocation,
		nextPAddr:          b.allocBase,
	}

	if t.pageTable == nil {
		t.pageTable = NewPageTable(b.log2PageSize)
	}

	return t
}
