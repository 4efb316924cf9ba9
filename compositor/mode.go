// Package compositor maps one or more slot Fields to a display colour.
// Every mode is a pure per-pixel function; nothing here mutates state.
package compositor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidMode is returned for unrecognised mode values. There is no
	// fallback colour.
	ErrInvalidMode = errors.New("compositor: invalid mode")
	// ErrMissingSource is returned when a mode is bound to too few or too
	// narrow sources.
	ErrMissingSource = errors.New("compositor: missing source")
)

// Mode selects the compositing function.
type Mode uint8

const (
	ModeDifference             Mode = iota // |b − a| grey
	ModeChannelA                           // a as grey
	ModeChannelB                           // b as grey
	ModeThreshold                          // 1 where b ≥ a
	ModeHue                                // angle → hue, magnitude → saturation
	ModeInterleave                         // r, g, b from three delayed sources
	ModeMotion                             // base plus weighted frame differences
	ModeMotionMasked                       // base masked by frame differences
	ModeKaleidoscope                       // folded resample of one source
	ModeKaleidoscopeInterleave             // folded resample, per-channel sources
	ModeColor                              // rgb passthrough
	ModeLogCount                           // log(count)/log(ceiling) grey
	modeCount
)

var modeNames = [...]string{
	ModeDifference:             "difference",
	ModeChannelA:               "channel-a",
	ModeChannelB:               "channel-b",
	ModeThreshold:              "threshold",
	ModeHue:                    "hue",
	ModeInterleave:             "interleave",
	ModeMotion:                 "motion",
	ModeMotionMasked:           "motion-masked",
	ModeKaleidoscope:           "kaleidoscope",
	ModeKaleidoscopeInterleave: "kaleidoscope-interleave",
	ModeColor:                  "color",
	ModeLogCount:               "log-count",
}

func (m Mode) String() string {
	if m < modeCount {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", m)
}

// Valid reports whether m names a known mode.
func (m Mode) Valid() bool { return m < modeCount }

// Sources returns the minimum number of bound sources the mode reads.
func (m Mode) Sources() int {
	switch m {
	case ModeInterleave, ModeKaleidoscopeInterleave:
		return 3
	case ModeMotion, ModeMotionMasked:
		return 2
	}
	return 1
}

// grey reports whether the mode produces a single grey value.
func (m Mode) grey() bool {
	switch m {
	case ModeDifference, ModeChannelA, ModeChannelB, ModeThreshold, ModeLogCount:
		return true
	}
	return false
}

// ModeFromIndex converts the integer selector used by display settings.
func ModeFromIndex(i int) (Mode, error) {
	if i < 0 || i >= int(modeCount) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidMode, i)
	}
	return Mode(i), nil
}

// ParseMode accepts a mode name or its integer index.
func ParseMode(s string) (Mode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.ReplaceAll(name, "_", "-")
	for i, n := range modeNames {
		if n == name {
			return Mode(i), nil
		}
	}
	if i, err := strconv.Atoi(name); err == nil {
		return ModeFromIndex(i)
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}
