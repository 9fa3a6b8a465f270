package ctdf

type Station struct {
	PrimaryIdentifier string `groups:"basic" yaml:"id"`
	PrimaryName       string `groups:"basic" yaml:"name"`

	Location Location `groups:"basic" yaml:"location"`

	Platforms       int `groups:"basic" yaml:"platforms"`
	ClosedPlatforms int `groups:"detailed" yaml:"closed_platforms"`
}

func (s *Station) AvailablePlatforms() int {
	available := s.Platforms - s.ClosedPlatforms
	if available < 0 {
		return 0
	}

	return available
}
