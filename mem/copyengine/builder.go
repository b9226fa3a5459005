package copyengine

import (
	"os"

	"github.com/sarchlab/copyengine/datarecording"
	"github.com/sarchlab/copyengine/mem/mem"
	"github.com/sarchlab/copyengine/mem/vm"
	"github.com/sarchlab/copyengine/sim"
	"github.com/tebeka/atexit"
)

// A Builder can build copy engines.
type Builder struct {
	engine      sim.Engine
	freq        sim.Freq
	pid         vm.PID
	chunkSize   uint64
	accessDelay int
	driverDelay int
	bufSize     int

	hostTranslator   vm.Translator
	deviceTranslator vm.Translator
	hostMemory       mem.AddressToPortMapper
	deviceMemory     mem.AddressToPortMapper
	hostRange        *AddressRange
	deviceRange      *AddressRange

	statsFile string
	recorder  datarecording.DataRecorder
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		freq:             1 * sim.GHz,
		chunkSize:        64,
		accessDelay:      1,
		bufSize:          16,
		hostTranslator:   vm.IdentityTranslator{},
		deviceTranslator: vm.IdentityTranslator{},
	}
}

// WithEngine sets the engine.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithPID sets the process whose addresses are translated.
func (b Builder) WithPID(pid vm.PID) Builder {
	b.pid = pid
	return b
}

// WithChunkSize sets the largest number of bytes a single memory transaction
// moves.
func (b Builder) WithChunkSize(n uint64) Builder {
	b.chunkSize = n
	return b
}

// WithAccessDelay sets the number of cycles between two chunks of the same
// side.
func (b Builder) WithAccessDelay(cycles int) Builder {
	b.accessDelay = cycles
	return b
}

// WithDriverDelay sets the number of cycles between accepting a transfer and
// issuing its first chunk.
func (b Builder) WithDriverDelay(cycles int) Builder {
	b.driverDelay = cycles
	return b
}

// WithBufferSize sets the buffer sizes of all the ports.
func (b Builder) WithBufferSize(n int) Builder {
	b.bufSize = n
	return b
}

// WithHostTranslator sets the translator for host addresses.
func (b Builder) WithHostTranslator(t vm.Translator) Builder {
	b.hostTranslator = t
	return b
}

// WithDeviceTranslator sets the translator for device addresses.
func (b Builder) WithDeviceTranslator(t vm.Translator) Builder {
	b.deviceTranslator = t
	return b
}

// WithHostMemory sets how host physical addresses map to memory ports.
func (b Builder) WithHostMemory(m mem.AddressToPortMapper) Builder {
	b.hostMemory = m
	return b
}

// WithDeviceMemory sets how device physical addresses map to memory ports.
func (b Builder) WithDeviceMemory(m mem.AddressToPortMapper) Builder {
	b.deviceMemory = m
	return b
}

// WithHostAddressRange limits host accesses to [low, high).
func (b Builder) WithHostAddressRange(low, high uint64) Builder {
	b.hostRange = &AddressRange{Low: low, High: high}
	return b
}

// WithDeviceAddressRange limits device accesses to [low, high).
func (b Builder) WithDeviceAddressRange(low, high uint64) Builder {
	b.deviceRange = &AddressRange{Low: low, High: high}
	return b
}

// WithStatsFile makes the engine write its statistics to path when the
// program exits through atexit.Exit.
func (b Builder) WithStatsFile(path string) Builder {
	b.statsFile = path
	return b
}

// WithDataRecorder makes the engine record every finished transfer.
func (b Builder) WithDataRecorder(r datarecording.DataRecorder) Builder {
	b.recorder = r
	return b
}

// Build creates a copy engine.
func (b Builder) Build(name string) *Comp {
	b.parametersMustBeValid()

	c := &Comp{
		pid:         b.pid,
		chunkSize:   b.chunkSize,
		accessDelay: b.accessDelay,
		driverDelay: b.driverDelay,
		readPort:    &cePort{role: vm.AccessRead},
		writePort:   &cePort{role: vm.AccessWrite},
	}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	c.host = &memSide{
		space:      SpaceHost,
		port:       sim.NewPort(c, b.bufSize, b.bufSize, name+".HostPort"),
		translator: b.hostTranslator,
		mapper:     b.hostMemory,
		addrRange:  b.hostRange,
	}
	c.device = &memSide{
		space:      SpaceDevice,
		port:       sim.NewPort(c, b.bufSize, b.bufSize, name+".DevicePort"),
		translator: b.deviceTranslator,
		mapper:     b.deviceMemory,
		addrRange:  b.deviceRange,
	}
	c.ctrlPort = sim.NewPort(c, b.bufSize, b.bufSize, name+".CtrlPort")

	c.AddPort("Host", c.host.port)
	c.AddPort("Device", c.device.port)
	c.AddPort("Ctrl", c.ctrlPort)

	if b.recorder != nil {
		c.RecordStats(b.recorder)
	}

	if b.statsFile != "" {
		path := b.statsFile
		atexit.Register(func() { c.exportStatsToFile(path) })
	}

	return c
}

func (b Builder) parametersMustBeValid() {
	if b.engine == nil {
		panic("engine is not set")
	}

	if b.chunkSize == 0 {
		panic("chunk size must be positive")
	}

	if b.accessDelay <= 0 {
		panic("access delay must be at least one cycle")
	}

	if b.driverDelay < 0 {
		panic("driver delay must not be negative")
	}

	if b.bufSize <= 0 {
		panic("buffer size must be positive")
	}

	if b.hostMemory == nil || b.deviceMemory == nil {
		panic("both host memory and device memory must be set")
	}

	if b.hostTranslator == nil || b.deviceTranslator == nil {
		panic("translators must not be nil")
	}

	for _, r := range []*AddressRange{b.hostRange, b.deviceRange} {
		if r != nil && r.Low >= r.High {
			panic("address range " + r.String() + " is empty")
		}
	}
}

func (c *Comp) exportStatsToFile(path string) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	if err := c.ExportStats(f); err != nil {
		panic(err)
	}
}
