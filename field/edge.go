package field

import (
	"fmt"
	"strings"
)

// Edge selects how coordinates outside a Field's extent are resolved.
type Edge uint8

const (
	EdgeWrap  Edge = iota // toroidal
	EdgeClamp             // clamp to the nearest border texel
	EdgeZero              // out-of-range reads return zero
)

var edgeNames = [...]string{
	EdgeWrap:  "wrap",
	EdgeClamp: "clamp",
	EdgeZero:  "zero",
}

func (e Edge) String() string {
	if int(e) < len(edgeNames) {
		return edgeNames[e]
	}
	return fmt.Sprintf("edge(%d)", e)
}

// ParseEdge converts a config string into an Edge. Empty means wrap.
func ParseEdge(s string) (Edge, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "wrap", "repeat":
		return EdgeWrap, nil
	case "clamp", "clamp-to-edge":
		return EdgeClamp, nil
	case "zero", "zero-pad", "border":
		return EdgeZero, nil
	}
	return 0, fmt.Errorf("field: unknown edge policy %q", s)
}

// Resolve maps i into [0, n) under the edge policy. ok is false when the
// policy is EdgeZero and i lies outside the extent.
func Resolve(i, n int, e Edge) (int, bool) {
	if i >= 0 && i < n {
		return i, true
	}
	switch e {
	case EdgeClamp:
		if i < 0 {
			return 0, true
		}
		return n - 1, true
	case EdgeZero:
		return 0, false
	default:
		r := i % n
		if r < 0 {
			r += n
		}
		return r, true
	}
}
