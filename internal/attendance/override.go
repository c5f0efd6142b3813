package attendance

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnknownProgram is returned when an override names a code with no boundary.
	ErrUnknownProgram = errors.New("unknown program code")
	// ErrInvalidOverride is returned for malformed or inconsistent override input.
	ErrInvalidOverride = errors.New("invalid boundary override")
)

// Override replaces the boundary of code with the given ends. Either end may be nil.
func (b Boundaries) Override(code string, start, stop *int) error {
	if _, ok := b[code]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, code)
	}
	if (start != nil && *start < 1) || (stop != nil && *stop < 1) {
		return fmt.Errorf("%w: rows are 1-based", ErrInvalidOverride)
	}
	if start != nil && stop != nil && *start > *stop {
		return fmt.Errorf("%w: start %d is after stop %d", ErrInvalidOverride, *start, *stop)
	}
	b[code] = Boundary{Start: copyEnd(start), Stop: copyEnd(stop)}
	return nil
}

// ApplyOverrides applies every override in overrides to a copy of b. The first
// failing override aborts and its error is returned.
func ApplyOverrides(b Boundaries, overrides map[string]Boundary) (Boundaries, error) {
	out := b.Clone()
	for code, o := range overrides {
		if err := out.Override(code, o.Start, o.Stop); err != nil {
			return b, err
		}
	}
	return out, nil
}

// ParseOverride parses manual input of the form "start, stop". Either side may be
// "none" or blank to clear that end.
func ParseOverride(s string) (Boundary, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Boundary{}, fmt.Errorf("%w: expected \"start, stop\", got %q", ErrInvalidOverride, s)
	}
	start, err := parseOverrideEnd(parts[0])
	if err != nil {
		return Boundary{}, err
	}
	stop, err := parseOverrideEnd(parts[1])
	if err != nil {
		return Boundary{}, err
	}
	return Boundary{Start: start, Stop: stop}, nil
}

func parseOverrideEnd(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a row number", ErrInvalidOverride, s)
	}
	return Row(n), nil
}
