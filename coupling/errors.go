package coupling

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported is returned by every operation of a build without
	// coupling support (the nocoupling build tag).
	ErrUnsupported = errors.New("coupling support not available in this build")
	// ErrConfiguration reports inconsistent groups, meshes or fields.
	ErrConfiguration = errors.New("invalid coupling configuration")
	// ErrOrdering reports a call made before its prerequisite, or repeated.
	ErrOrdering = errors.New("coupling call out of order")
	// ErrLookup reports an unknown handle, mesh id or field id.
	ErrLookup = errors.New("unknown coupling object")
)

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func orderErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrOrdering, fmt.Sprintf(format, args...))
}

func lookupErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrLookup, fmt.Sprintf(format, args...))
}
