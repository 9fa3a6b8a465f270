package occupancy

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/railops/pkg/ctdf"
	"github.com/travigo/railops/pkg/network"
)

func twoStations(t *testing.T, capacity int, platforms int) *network.Network {
	net, err := network.Load(
		[]ctdf.Station{
			{PrimaryIdentifier: "A", Platforms: platforms},
			{PrimaryIdentifier: "B", Platforms: platforms},
		},
		[]ctdf.TrackSection{
			{PrimaryIdentifier: "AB", FromStationRef: "A", ToStationRef: "B", LengthKm: 10, MaxSpeedKmh: 100, Capacity: capacity},
		},
	)
	require.NoError(t, err)

	return net
}

func TestTryEnterRespectsCapacity(t *testing.T) {
	tracker := NewTracker(twoStations(t, 2, 1))

	require.NoError(t, tracker.TryEnter("T1", "AB"))
	require.NoError(t, tracker.TryEnter("T2", "AB"))
	assert.ErrorIs(t, tracker.TryEnter("T3", "AB"), ctdf.ErrSectionFull)

	assert.Equal(t, []string{"T1", "T2"}, tracker.Occupants("AB"))
	assert.Equal(t, 0, tracker.FreeCapacity("AB"))
	assert.NoError(t, tracker.Verify())
}

func TestTryEnterIsIdempotentForOccupant(t *testing.T) {
	tracker := NewTracker(twoStations(t, 1, 1))

	require.NoError(t, tracker.TryEnter("T1", "AB"))
	assert.NoError(t, tracker.TryEnter("T1", "AB"))
	assert.Equal(t, []string{"T1"}, tracker.Occupants("AB"))
}

func TestTryEnterBlocked(t *testing.T) {
	net := twoStations(t, 2, 1)
	tracker := NewTracker(net)

	require.NoError(t, tracker.TryEnter("T1", "AB"))
	require.NoError(t, net.ApplyBlock("AB", true))

	assert.ErrorIs(t, tracker.TryEnter("T2", "AB"), ctdf.ErrSectionBlocked)
	assert.Equal(t, []string{"T1"}, tracker.Occupants("AB"), "blocking does not evict")
}

func TestTryEnterUnknownSection(t *testing.T) {
	tracker := NewTracker(twoStations(t, 1, 1))

	assert.ErrorIs(t, tracker.TryEnter("T1", "ZZ"), ctdf.ErrUnknownLocation)
}

func TestLeaveIsIdempotent(t *testing.T) {
	tracker := NewTracker(twoStations(t, 1, 1))

	require.NoError(t, tracker.TryEnter("T1", "AB"))
	tracker.Leave("T1", "AB")
	tracker.Leave("T1", "AB")
	tracker.Leave("T9", "ZZ")

	assert.Empty(t, tracker.Occupants("AB"))
	require.NoError(t, tracker.TryEnter("T2", "AB"))
}

func TestPlatforms(t *testing.T) {
	net := twoStations(t, 1, 2)
	tracker := NewTracker(net)

	platform, err := tracker.TryOccupyPlatform("T1", "A")
	require.NoError(t, err)
	assert.Equal(t, 1, platform)

	platform, err = tracker.TryOccupyPlatform("T1", "A")
	require.NoError(t, err)
	assert.Equal(t, 1, platform, "already holding returns the same platform")

	platform, err = tracker.TryOccupyPlatform("T2", "A")
	require.NoError(t, err)
	assert.Equal(t, 2, platform)

	_, err = tracker.TryOccupyPlatform("T3", "A")
	assert.ErrorIs(t, err, ctdf.ErrNoPlatformAvailable)

	tracker.ReleasePlatform("T1", "A")
	tracker.ReleasePlatform("T1", "A")

	platform, err = tracker.TryOccupyPlatform("T3", "A")
	require.NoError(t, err)
	assert.Equal(t, 1, platform)
	assert.Equal(t, []string{"T3", "T2"}, tracker.PlatformOccupants("A"))
}

func TestClosedPlatformsAreUnavailable(t *testing.T) {
	net := twoStations(t, 1, 2)
	tracker := NewTracker(net)
	require.NoError(t, net.SetClosedPlatforms("B", 1))

	_, err := tracker.TryOccupyPlatform("T1", "B")
	require.NoError(t, err)

	_, err = tracker.TryOccupyPlatform("T2", "B")
	assert.ErrorIs(t, err, ctdf.ErrNoPlatformAvailable)
	assert.Equal(t, 0, tracker.FreePlatforms("B"))
}

func TestOccupyPlatform(t *testing.T) {
	tracker := NewTracker(twoStations(t, 1, 3))

	_, err := tracker.TryOccupyPlatform("T1", "A")
	require.NoError(t, err)

	require.NoError(t, tracker.OccupyPlatform("T1", "A", 3))
	stationRef, platform, holding := tracker.Platform("T1")
	assert.True(t, holding)
	assert.Equal(t, "A", stationRef)
	assert.Equal(t, 3, platform)
	assert.Equal(t, []string{"", "", "T1"}, tracker.PlatformOccupants("A"))

	assert.ErrorIs(t, tracker.OccupyPlatform("T2", "A", 3), ctdf.ErrNoPlatformAvailable)
	assert.ErrorIs(t, tracker.OccupyPlatform("T2", "A", 4), ctdf.ErrNoPlatformAvailable)
}

func TestCapacityInvariantUnderContention(t *testing.T) {
	for capacity := 1; capacity <= 3; capacity++ {
		t.Run(fmt.Sprintf("capacity %d", capacity), func(t *testing.T) {
			tracker := NewTracker(twoStations(t, capacity, 1))

			entered := 0
			for i := 0; i < 10; i++ {
				if tracker.TryEnter(fmt.Sprintf("T%d", i), "AB") == nil {
					entered++
				}
				assert.NoError(t, tracker.Verify())
			}

			assert.Equal(t, capacity, entered)
		})
	}
}

func TestVerifyDetectsDoubleLocation(t *testing.T) {
	tracker := NewTracker(twoStations(t, 1, 1))

	_, err := tracker.TryOccupyPlatform("T1", "A")
	require.NoError(t, err)
	require.NoError(t, tracker.TryEnter("T1", "AB"))

	assert.Error(t, tracker.Verify())

	tracker.ReleasePlatform("T1", "A")
	assert.NoError(t, tracker.Verify())
}

func TestCloneIsIndependent(t *testing.T) {
	net := twoStations(t, 1, 1)
	tracker := NewTracker(net)
	require.NoError(t, tracker.TryEnter("T1", "AB"))

	clone := tracker.Clone(net.Clone())
	clone.Leave("T1", "AB")
	require.NoError(t, clone.TryEnter("T2", "AB"))

	assert.Equal(t, []string{"T1"}, tracker.Occupants("AB"))
	assert.Equal(t, []string{"T2"}, clone.Occupants("AB"))
}

func TestForget(t *testing.T) {
	tracker := NewTracker(twoStations(t, 1, 1))

	_, err := tracker.TryOccupyPlatform("T1", "B")
	require.NoError(t, err)
	tracker.Forget("T1")

	assert.Equal(t, 1, tracker.FreePlatforms("B"))
	_, _, holding := tracker.Platform("T1")
	assert.False(t, holding)
}
