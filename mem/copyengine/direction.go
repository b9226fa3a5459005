package copyengine

import "fmt"

// Space names one of the two address spaces the engine connects.
type Space int

// The address spaces.
const (
	SpaceHost Space = iota
	SpaceDevice
)

func (s Space) String() string {
	switch s {
	case SpaceHost:
		return "host"
	case SpaceDevice:
		return "device"
	default:
		return fmt.Sprintf("Space(%d)", int(s))
	}
}

// Direction tells which space a copy reads from and which space it writes
// to.
type Direction int

// The supported copy directions.
const (
	HostToDevice Direction = iota
	DeviceToHost
	HostToHost
	DeviceToDevice
)

var directionNames = map[Direction]string{
	HostToDevice:   "HostToDevice",
	DeviceToHost:   "DeviceToHost",
	HostToHost:     "HostToHost",
	DeviceToDevice: "DeviceToDevice",
}

func (d Direction) String() string {
	if name, ok := directionNames[d]; ok {
		return name
	}

	return fmt.Sprintf("Direction(%d)", int(d))
}

// Valid tells if the direction is one of the supported directions.
func (d Direction) Valid() bool {
	_, ok := directionNames[d]
	return ok
}

// Spaces returns the space to read from and the space to write to.
func (d Direction) Spaces() (src, dst Space) {
	switch d {
	case HostToDevice:
		return SpaceHost, SpaceDevice
	case DeviceToHost:
		return SpaceDevice, SpaceHost
	case HostToHost:
		return SpaceHost, SpaceHost
	case DeviceToDevice:
		return SpaceDevice, SpaceDevice
	default:
		panic("invalid direction " + d.String())
	}
}

// ParseDirection converts a direction name, as printed by String, back to a
// Direction.
func ParseDirection(name string) (Direction, error) {
	for d, n := range directionNames {
		if n == name {
			return d, nil
		}
	}

	return 0, fmt.Errorf("%w: unknown direction %q", ErrInvalidRequest, name)
}

// Kind tells if a transfer copies data or fills memory with a value.
type Kind int

// The transfer kinds.
const (
	KindCopy Kind = iota
	KindFill
)

func (k Kind) String() string {
	switch k {
	case KindCopy:
		return "memcpy"
	case KindFill:
		return "memset"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}
