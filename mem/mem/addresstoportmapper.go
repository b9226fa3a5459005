package mem

import "github.com/sarchlab/copyengine/sim"

// AddressToPortMapper finds the memory module port that serves an address.
type AddressToPortMapper interface {
	Find(address uint64) sim.RemotePort
}

// SinglePortMapper is used when all addresses are served by one module.
type SinglePortMapper struct {
	Port sim.RemotePort
}

// Find returns the only port.
func (m *SinglePortMapper) Find(_ uint64) sim.RemotePort {
	return m.Port
}

// InterleavedAddressPortMapper spreads an address space across several
// modules at a fixed interleaving granularity. Addresses outside
// [LowAddress, HighAddress) go to ModuleForOtherAddresses when
// UseAddressSpaceLimitation is set.
type InterleavedAddressPortMapper struct {
	UseAddressSpaceLimitation bool
	LowAddress                uint64
	HighAddress               uint64
	InterleavingSize          uint64
	LowModules                []sim.RemotePort
	ModuleForOtherAddresses   sim.RemotePort
}

// NewInterleavedAddressPortMapper creates a mapper with no modules attached.
func NewInterleavedAddressPortMapper(
	interleavingSize uint64,
) *InterleavedAddressPortMapper {
	if interleavingSize == 0 {
		panic("interleaving size must be positive")
	}

	return &InterleavedAddressPortMapper{
		InterleavingSize: interleavingSize,
	}
}

// Find returns the module that serves the address.
func (m *InterleavedAddressPortMapper) Find(address uint64) sim.RemotePort {
	if m.UseAddressSpaceLimitation &&
		(address >= m.HighAddress || address < m.LowAddress) {
		return m.ModuleForOtherAddresses
	}

	offset := address
	if m.UseAddressSpaceLimitation {
		offset -= m.LowAddress
	}

	i := offset / m.InterleavingSize % uint64(len(m.LowModules))

	return m.LowModules[i]
}
