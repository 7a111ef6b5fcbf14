package domain

import "fmt"

// Box is a rectangle in frequency/time space. Both axes are half-open:
// [FreqStart, FreqEnd) x [TimeStart, TimeEnd).
type Box struct {
	FreqStart float64
	FreqEnd   float64
	TimeStart float64
	TimeEnd   float64
}

// Validate returns ErrInvalidDomain when either axis is empty or inverted.
func (b Box) Validate() error {
	if !(b.FreqEnd > b.FreqStart) || !(b.TimeEnd > b.TimeStart) {
		return fmt.Errorf("%w: %s", ErrInvalidDomain, b)
	}
	return nil
}

// Contains reports whether the point lies inside the box.
func (b Box) Contains(freq, time float64) bool {
	return freq >= b.FreqStart && freq < b.FreqEnd && time >= b.TimeStart && time < b.TimeEnd
}

// Overlaps reports whether the two boxes share a region of non-zero area.
func (b Box) Overlaps(o Box) bool {
	return b.FreqStart < o.FreqEnd && o.FreqStart < b.FreqEnd &&
		b.TimeStart < o.TimeEnd && o.TimeStart < b.TimeEnd
}

// Area returns the size of the box.
func (b Box) Area() float64 {
	return (b.FreqEnd - b.FreqStart) * (b.TimeEnd - b.TimeStart)
}

func (b Box) String() string {
	return fmt.Sprintf("freq[%g,%g) time[%g,%g)", b.FreqStart, b.FreqEnd, b.TimeStart, b.TimeEnd)
}

// Shape controls how the full domain is cut into work domains. A non-positive
// size on an axis means the axis is not split.
type Shape struct {
	FreqSize float64
	TimeSize float64
}

// InitInfo is the one-time handshake payload sent to every worker.
type InitInfo struct {
	Dataset    string
	Column     string
	Models     []string
	SubBand    uint32
	CalcUVW    bool
	FullDomain Box
}
