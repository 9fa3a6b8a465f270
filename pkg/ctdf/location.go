package ctdf

import "math"

// Location is a position on the schematic network plane (0-100 on both axes)
type Location struct {
	X float64 `groups:"basic" yaml:"x"`
	Y float64 `groups:"basic" yaml:"y"`
}

func (l Location) Distance(other Location) float64 {
	return math.Hypot(other.X-l.X, other.Y-l.Y)
}

// Interpolate returns the point a fraction of the way from l to other, fraction is clamped to [0,1]
func (l Location) Interpolate(other Location, fraction float64) Location {
	fraction = math.Max(0, math.Min(1, fraction))

	return Location{
		X: l.X + (other.X-l.X)*fraction,
		Y: l.Y + (other.Y-l.Y)*fraction,
	}
}
