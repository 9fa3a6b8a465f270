package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/railops/pkg/ctdf"
)

func line(stations ...string) ([]ctdf.Station, []ctdf.TrackSection) {
	var stationList []ctdf.Station
	var tracks []ctdf.TrackSection

	for i, identifier := range stations {
		stationList = append(stationList, ctdf.Station{PrimaryIdentifier: identifier, Platforms: 2})

		if i > 0 {
			tracks = append(tracks, ctdf.TrackSection{
				PrimaryIdentifier: "TRK-" + stations[i-1] + identifier,
				FromStationRef:    stations[i-1],
				ToStationRef:      identifier,
				LengthKm:          10,
				MaxSpeedKmh:       100,
			})
		}
	}

	return stationList, tracks
}

func TestLoadValidatesTopology(t *testing.T) {
	stations, tracks := line("A", "B", "C")

	tests := []struct {
		name   string
		mutate func(stations []ctdf.Station, tracks []ctdf.TrackSection) ([]ctdf.Station, []ctdf.TrackSection)
	}{
		{
			name: "unknown endpoint",
			mutate: func(s []ctdf.Station, tr []ctdf.TrackSection) ([]ctdf.Station, []ctdf.TrackSection) {
				tr[0].ToStationRef = "Z"
				return s, tr
			},
		},
		{
			name: "disconnected",
			mutate: func(s []ctdf.Station, tr []ctdf.TrackSection) ([]ctdf.Station, []ctdf.TrackSection) {
				return append(s, ctdf.Station{PrimaryIdentifier: "ISLAND", Platforms: 1}), tr
			},
		},
		{
			name: "duplicate station",
			mutate: func(s []ctdf.Station, tr []ctdf.TrackSection) ([]ctdf.Station, []ctdf.TrackSection) {
				return append(s, ctdf.Station{PrimaryIdentifier: "A", Platforms: 1}), tr
			},
		},
		{
			name: "zero length",
			mutate: func(s []ctdf.Station, tr []ctdf.TrackSection) ([]ctdf.Station, []ctdf.TrackSection) {
				tr[1].LengthKm = 0
				return s, tr
			},
		},
		{
			name: "no platforms",
			mutate: func(s []ctdf.Station, tr []ctdf.TrackSection) ([]ctdf.Station, []ctdf.TrackSection) {
				s[1].Platforms = 0
				return s, tr
			},
		},
		{
			name: "empty",
			mutate: func(s []ctdf.Station, tr []ctdf.TrackSection) ([]ctdf.Station, []ctdf.TrackSection) {
				return nil, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stationsCopy := append([]ctdf.Station{}, stations...)
			tracksCopy := append([]ctdf.TrackSection{}, tracks...)

			_, err := Load(tt.mutate(stationsCopy, tracksCopy))
			assert.ErrorIs(t, err, ctdf.ErrInvalidTopology)
		})
	}
}

func TestLoadDefaultsCapacity(t *testing.T) {
	network, err := Load(line("A", "B"))
	require.NoError(t, err)

	section, exists := network.Section("TRK-AB")
	require.True(t, exists)
	assert.Equal(t, 1, section.Capacity)
}

func TestNeighbors(t *testing.T) {
	network, err := Load(line("A", "B", "C"))
	require.NoError(t, err)

	neighbors, err := network.Neighbors("B")
	require.NoError(t, err)
	require.Len(t, neighbors, 2)
	assert.Equal(t, "TRK-AB", neighbors[0].PrimaryIdentifier)
	assert.Equal(t, "TRK-BC", neighbors[1].PrimaryIdentifier)

	_, err = network.Neighbors("Z")
	assert.ErrorIs(t, err, ctdf.ErrUnknownLocation)
}

func TestApplyBlock(t *testing.T) {
	network, err := Load(line("A", "B"))
	require.NoError(t, err)

	require.NoError(t, network.ApplyBlock("TRK-AB", true))
	assert.True(t, network.IsBlocked("TRK-AB"))

	require.NoError(t, network.ApplyBlock("TRK-AB", false))
	assert.False(t, network.IsBlocked("TRK-AB"))

	assert.ErrorIs(t, network.ApplyBlock("TRK-ZZ", true), ctdf.ErrUnknownLocation)
}

func TestCloneIsIndependent(t *testing.T) {
	network, err := Load(line("A", "B"))
	require.NoError(t, err)

	clone := network.Clone()
	require.NoError(t, clone.ApplyBlock("TRK-AB", true))
	require.NoError(t, clone.SetClosedPlatforms("A", 1))

	assert.False(t, network.IsBlocked("TRK-AB"))
	assert.Equal(t, 2, network.AvailablePlatforms("A"))
	assert.Equal(t, 1, clone.AvailablePlatforms("A"))
}

func TestValidateRoute(t *testing.T) {
	network, err := Load(line("A", "B", "C"))
	require.NoError(t, err)

	assert.NoError(t, network.ValidateRoute([]string{"A", "B", "C"}))
	assert.Error(t, network.ValidateRoute([]string{"A", "C"}))
	assert.Error(t, network.ValidateRoute([]string{"A"}))
	assert.ErrorIs(t, network.ValidateRoute([]string{"A", "Z"}), ctdf.ErrUnknownLocation)
}

func TestBundledDemoDefinition(t *testing.T) {
	definition, err := BundledDefinition("demo")
	require.NoError(t, err)

	network, err := definition.Load()
	require.NoError(t, err)

	assert.Len(t, network.Stations(), 5)
	assert.Len(t, network.Sections(), 6)
	assert.Len(t, definition.Trains, 3)
	assert.Len(t, definition.Incidents, 1)

	station, exists := network.Station("STN-C")
	require.True(t, exists)
	assert.Equal(t, "Charlie Central", station.PrimaryName)
	assert.Equal(t, 6, station.Platforms)

	_, err = BundledDefinition("atlantis")
	assert.Error(t, err)
}
