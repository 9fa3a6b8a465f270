package ctdf

type Train struct {
	PrimaryIdentifier string `groups:"basic" yaml:"id"`
	PrimaryName       string `groups:"basic" yaml:"name"`

	Type   TrainType   `groups:"basic" yaml:"type"`
	Status TrainStatus `groups:"basic" yaml:"status"`

	Route      []string `groups:"basic" yaml:"route"`
	RouteIndex int      `groups:"detailed" yaml:"route_index"`

	// Exactly one of these is set
	CurrentStationRef string `groups:"basic" yaml:"station"`
	CurrentSectionRef string `groups:"basic" yaml:"section"`

	Progress float64 `groups:"basic" yaml:"progress"`
	Platform int     `groups:"detailed" yaml:"platform"`

	SpeedKmh       float64 `groups:"basic" yaml:"speed_kmh"`
	CruiseSpeedKmh float64 `groups:"detailed" yaml:"cruise_speed_kmh"`

	DelayMinutes float64 `groups:"basic" yaml:"delay_minutes"`

	HeldTicks     int   `groups:"detailed" yaml:"-"`
	HoldUntilTick int64 `groups:"internal" yaml:"-"`
	Precedence    int   `groups:"internal" yaml:"-"`
	Removed       bool  `groups:"internal" yaml:"-"`
}

type TrainType string

const (
	TrainTypeHighSpeed TrainType = "PASSENGER_HIGH_SPEED"
	TrainTypeRegional  TrainType = "PASSENGER_REGIONAL"
	TrainTypeFreight   TrainType = "FREIGHT"
)

// DefaultCruiseSpeed is the rolling stock top speed used when a definition leaves it out
func (t TrainType) DefaultCruiseSpeed() float64 {
	switch t {
	case TrainTypeHighSpeed:
		return 300
	case TrainTypeRegional:
		return 160
	case TrainTypeFreight:
		return 100
	default:
		return 120
	}
}

type TrainStatus string

const (
	TrainStatusOnTime   TrainStatus = "ON_TIME"
	TrainStatusDelayed  TrainStatus = "DELAYED"
	TrainStatusCritical TrainStatus = "CRITICAL"
	TrainStatusStopped  TrainStatus = "STOPPED"
)

func (t *Train) AtStation() bool {
	return t.CurrentSectionRef == "" && t.CurrentStationRef != ""
}

func (t *Train) OnSection() bool {
	return t.CurrentSectionRef != ""
}

// PreviousStationRef is the last station the train departed from or is standing at
func (t *Train) PreviousStationRef() string {
	if t.RouteIndex < 0 || t.RouteIndex >= len(t.Route) {
		return ""
	}

	return t.Route[t.RouteIndex]
}

func (t *Train) NextStationRef() string {
	if t.RouteIndex+1 >= len(t.Route) {
		return ""
	}

	return t.Route[t.RouteIndex+1]
}

func (t *Train) AtTerminus() bool {
	return t.AtStation() && t.RouteIndex == len(t.Route)-1
}

// Held reports whether a dispatcher hold keeps the train in place at the given tick
func (t *Train) Held(tick int64) bool {
	return t.HoldUntilTick > tick
}
