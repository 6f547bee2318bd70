package coupling

import (
	"fmt"

	"github.com/notargets/DGCoupling/mesh"
)

// Direction is a transfer direction bitmask
type Direction int

const (
	DirSend Direction = 1 << iota
	DirRecv
	DirBoth = DirSend | DirRecv
)

func (d Direction) String() string {
	switch d {
	case DirSend:
		return "send"
	case DirRecv:
		return "recv"
	case DirBoth:
		return "both"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// Has reports whether d includes every bit of other
func (d Direction) Has(other Direction) bool {
	return other != 0 && d&other == other
}

// Location of field values on a mesh
type Location = mesh.Location

const (
	OnCells = mesh.OnCells
	OnNodes = mesh.OnNodes
)

// TimeDiscretization describes how field values evolve between exchanges
type TimeDiscretization int

const (
	NoTime TimeDiscretization = iota
	OneTime
	LinearTime
	ConstOnTimeInterval
)

func (td TimeDiscretization) String() string {
	switch td {
	case NoTime:
		return "no_time"
	case OneTime:
		return "one_time"
	case LinearTime:
		return "linear_time"
	case ConstOnTimeInterval:
		return "const_on_time_interval"
	}
	return fmt.Sprintf("TimeDiscretization(%d)", int(td))
}

// Handle addresses a session in a Registry
type Handle int

// InvalidHandle is returned when no session could be created or found
const InvalidHandle Handle = -1

// InterpOptions configures the interpolation built at synchronization
type InterpOptions struct {
	KNearest     int
	Tolerance    float64
	MaxDistance  float64
	DefaultValue float64 // Written to target points with no source match
}

func DefaultInterpOptions() InterpOptions {
	return InterpOptions{KNearest: 1, Tolerance: 1e-10}
}
