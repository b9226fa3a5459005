package idealmemcontroller

import (
	"github.com/sarchlab/copyengine/mem/mem"
	"github.com/sarchlab/copyengine/sim"
)

// Builder can build ideal memory controllers.
type Builder struct {
	width         int
	latency       int
	freq          sim.Freq
	capacity      uint64
	engine        sim.Engine
	topBufSize    int
	storage       *mem.Storage
	addressOffset uint64
}

// MakeBuilder returns a new Builder
func MakeBuilder() Builder {
	return Builder{
		latency:    100,
		freq:       1 * sim.GHz,
		capacity:   4 * mem.GB,
		width:      1,
		topBufSize: 16,
	}
}

// WithWidth sets the number of requests the controller takes per cycle.
func (b Builder) WithWidth(width int) Builder {
	b.width = width
	return b
}

// WithLatency sets the latency of the memory controller in cycles.
func (b Builder) WithLatency(latency int) Builder {
	b.latency = latency
	return b
}

// WithFreq sets the frequency of the memory controller
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithNewStorage makes the controller create its own storage of the given
// capacity.
func (b Builder) WithNewStorage(capacity uint64) Builder {
	b.capacity = capacity
	return b
}

// WithEngine sets the engine of the memory controller
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithTopBufSize sets the size of the incoming and outgoing buffers of the
// top port.
func (b Builder) WithTopBufSize(topBufSize int) Builder {
	b.topBufSize = topBufSize
	return b
}

// WithStorage sets the storage of the memory controller
func (b Builder) WithStorage(storage *mem.Storage) Builder {
	b.storage = storage
	return b
}

// WithAddressOffset sets the address that maps to byte 0 of the storage.
func (b Builder) WithAddressOffset(offset uint64) Builder {
	b.addressOffset = offset
	return b
}

// Build builds a new Comp
func (b Builder) Build(name string) *Comp {
	b.parametersMustBeValid()

	c := &Comp{
		Latency:       b.latency,
		width:         b.width,
		addressOffset: b.addressOffset,
	}

	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	if b.storage == nil {
		c.Storage = mem.NewStorage(b.capacity)
	} else {
		c.Storage = b.storage
	}

	c.topPort = sim.NewPort(c, b.topBufSize, b.topBufSize, name+".TopPort")
	c.AddPort("Top", c.topPort)

	return c
}

func (b Builder) parametersMustBeValid() {
	if b.engine == nil {
		panic("engine is not set")
	}

	if b.width <= 0 {
		panic("width must be positive")
	}

	if b.latency < 0 {
		panic("latency must not be negative")
	}

	if b.topBufSize <= 0 {
		panic("top buffer size must be positive")
	}
}
