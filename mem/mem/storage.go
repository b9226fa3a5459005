package mem

import (
	"errors"
	"fmt"
	"sync"
)

// For capacity
const (
	_         = iota
	KB uint64 = 1 << (10 * iota)
	MB
	GB
	TB
)

// ErrAccessBeyondCapacity is returned when an access touches bytes beyond
// the capacity of a storage.
var ErrAccessBeyondCapacity = errors.New("access beyond storage capacity")

// A Storage keeps the bytes of a simulated memory.
//
// The storage is organized in units of 4KB. Units are only allocated when
// first touched, so that a large capacity costs nothing until it is used.
type Storage struct {
	sync.Mutex

	unitSize uint64
	capacity uint64
	data     map[uint64][]byte
}

// NewStorage creates a storage object with the specified capacity.
func NewStorage(capacity uint64) *Storage {
	return NewStorageWithUnitSize(capacity, 4*KB)
}

// NewStorageWithUnitSize creates a storage with a custom allocation unit.
func NewStorageWithUnitSize(capacity, unitSize uint64) *Storage {
	if unitSize == 0 {
		panic("unit size must be positive")
	}

	return &Storage{
		unitSize: unitSize,
		capacity: capacity,
		data:     make(map[uint64][]byte),
	}
}

// Capacity returns the number of bytes the storage can hold.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

// Read returns a copy of length bytes starting at address.
func (s *Storage) Read(address, length uint64) ([]byte, error) {
	s.Lock()
	defer s.Unlock()

	if err := s.accessMustFit(address, length); err != nil {
		return nil, err
	}

	res := make([]byte, length)
	s.walk(address, length, func(unit []byte, inUnit, offset, n uint64) {
		copy(res[offset:offset+n], unit[inUnit:inUnit+n])
	})

	return res, nil
}

// Write stores data starting at address.
func (s *Storage) Write(address uint64, data []byte) error {
	s.Lock()
	defer s.Unlock()

	length := uint64(len(data))
	if err := s.accessMustFit(address, length); err != nil {
		return err
	}

	s.walk(address, length, func(unit []byte, inUnit, offset, n uint64) {
		copy(unit[inUnit:inUnit+n], data[offset:offset+n])
	})

	return nil
}

func (s *Storage) accessMustFit(address, length uint64) error {
	if address+length > s.capacity || address+length < address {
		return fmt.Errorf("%w: [0x%x, 0x%x) with capacity 0x%x",
			ErrAccessBeyondCapacity, address, address+length, s.capacity)
	}

	return nil
}

func (s *Storage) walk(
	address, length uint64,
	f func(unit []byte, inUnit, offset, n uint64),
) {
	offset := uint64(0)
	for offset < length {
		curr := address + offset
		inUnit := curr % s.unitSize
		base := curr - inUnit

		n := s.unitSize - inUnit
		if n > length-offset {
			n = length - offset
		}

		f(s.unit(base), inUnit, offset, n)

		offset += n
	}
}

func (s *Storage) unit(base uint64) []byte {
	unit, ok := s.data[base]
	if !ok {
		unit = make([]byte, s.unitSize)
		s.data[base] = unit
	}

	return unit
}
