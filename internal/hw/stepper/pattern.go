package stepper

import "fmt"

// DefaultStepsPerRevolution is the calibration for a 28BYJ-48 motor:
// 32 steps per rotor turn behind a (32/9)/(22/11)x(26/9)x(31/10) = 63.68395
// gear train, i.e. 2037.886 steps, rounded.
const DefaultStepsPerRevolution = 2038

// Pattern is an immutable, ordered sequence of 4-bit coil masks.
// Bit i of a mask energizes coil i.
type Pattern struct {
	name  string
	masks []uint8
}

// NewPattern copies masks into a new Pattern. Masks must fit in 4 bits.
func NewPattern(name string, masks ...uint8) (Pattern, error) {
	if len(masks) == 0 {
		return Pattern{}, fmt.Errorf("pattern %q: no masks", name)
	}
	cp := make([]uint8, len(masks))
	for i, m := range masks {
		if m > 0b1111 {
			return Pattern{}, fmt.Errorf("pattern %q: mask %d (%#b) exceeds 4 coils", name, i, m)
		}
		cp[i] = m
	}
	return Pattern{name: name, masks: cp}, nil
}

func mustPattern(name string, masks ...uint8) Pattern {
	p, err := NewPattern(name, masks...)
	if err != nil {
		panic(err)
	}
	return p
}

var (
	// WeakFast energizes one coil at a time: least current, smoothest motion,
	// lowest torque.
	WeakFast = mustPattern("weak_fast", 0b0001, 0b0010, 0b0100, 0b1000)

	// StrongSlow energizes two adjacent coils at a time: double current and
	// double torque.
	StrongSlow = mustPattern("strong_slow", 0b0011, 0b0110, 0b1100, 0b1001)

	// StrongestSlowest alternates one and two coils (half stepping), eight
	// entries per electrical cycle.
	StrongestSlowest = mustPattern("strongest_slowest",
		0b0001, 0b0011, 0b0010, 0b0110, 0b0100, 0b1100, 0b1000, 0b1001)
)

// PatternByName resolves a configured pattern name.
func PatternByName(name string) (Pattern, error) {
	switch name {
	case WeakFast.name:
		return WeakFast, nil
	case StrongSlow.name:
		return StrongSlow, nil
	case StrongestSlowest.name:
		return StrongestSlowest, nil
	default:
		return Pattern{}, fmt.Errorf("unknown step pattern %q", name)
	}
}

// Name returns the pattern's identifier.
func (p Pattern) Name() string { return p.name }

// Len returns the number of masks in one electrical cycle.
func (p Pattern) Len() int { return len(p.masks) }

// At returns the mask at index i, wrapping modulo Len in both directions.
func (p Pattern) At(i int) uint8 {
	n := len(p.masks)
	return p.masks[((i%n)+n)%n]
}

// Masks returns a copy of the pattern's masks.
func (p Pattern) Masks() []uint8 {
	cp := make([]uint8, len(p.masks))
	copy(cp, p.masks)
	return cp
}

func (p Pattern) String() string { return p.name }
