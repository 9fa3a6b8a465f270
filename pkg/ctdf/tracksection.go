package ctdf

type TrackSection struct {
	PrimaryIdentifier string `groups:"basic" yaml:"id"`

	FromStationRef string `groups:"basic" yaml:"from"`
	ToStationRef   string `groups:"basic" yaml:"to"`

	LengthKm    float64 `groups:"basic" yaml:"length_km"`
	MaxSpeedKmh float64 `groups:"basic" yaml:"max_speed_kmh"`

	// Number of trains allowed on the section at once, 0 in a definition means single track
	Capacity int `groups:"detailed" yaml:"capacity"`

	Blocked bool `groups:"basic" yaml:"blocked"`
}

// Connects reports whether the section joins the two stations in either direction
func (t *TrackSection) Connects(a string, b string) bool {
	return (t.FromStationRef == a && t.ToStationRef == b) || (t.FromStationRef == b && t.ToStationRef == a)
}

func (t *TrackSection) Touches(stationRef string) bool {
	return t.FromStationRef == stationRef || t.ToStationRef == stationRef
}

// OtherEnd returns the station at the opposite end to stationRef
func (t *TrackSection) OtherEnd(stationRef string) string {
	if t.FromStationRef == stationRef {
		return t.ToStationRef
	}

	return t.FromStationRef
}

// TraversalMinutes is the unimpeded running time at line speed
func (t *TrackSection) TraversalMinutes() float64 {
	if t.MaxSpeedKmh <= 0 {
		return 0
	}

	return t.LengthKm / t.MaxSpeedKmh * 60
}
