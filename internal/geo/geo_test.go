package geo

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmaffei/rotafoto/internal/models"
)

func TestDMSToDecimal(t *testing.T) {
	got := DMSToDecimal(10, 30, 0, false)
	assert.Equal(t, 10.5, got)

	got = DMSToDecimal(10, 30, 0, true)
	assert.Equal(t, -10.5, got)

	// Seconds contribute at 1/3600.
	got = DMSToDecimal(45, 0, 36, false)
	assert.InDelta(t, 45.01, got, 1e-9)
}

func TestDMSToDecimalMalformed(t *testing.T) {
	assert.Equal(t, 0.0, DMSToDecimal(math.NaN(), 30, 0, false))
	assert.Equal(t, 0.0, DMSToDecimal(10, math.Inf(1), 0, true))
}

func TestDisplayUTMSentinelPropagates(t *testing.T) {
	got := DisplayUTM(models.Coordinate{})
	assert.Equal(t, models.Unavailable, got)
}

func TestDisplayUTMComputeError(t *testing.T) {
	got := DisplayUTM(models.NewCoordinate(math.NaN(), -46.63))
	assert.Equal(t, ComputeError, got)
	// The failure marker must stay distinguishable from the sentinel.
	assert.NotEqual(t, models.Unavailable, got)
}

func TestDisplayUTMEquatorOnCentralMeridian(t *testing.T) {
	// lon 3 is the central meridian of zone 31: easting is exactly the
	// false easting and northing is zero.
	got := DisplayUTM(models.NewCoordinate(0, 3))
	assert.Equal(t, "500000.000, 0.000", got)
}

func TestDisplayUTMSouthernHemisphere(t *testing.T) {
	// São Paulo, zone 23 south: easting sits well west of the central
	// meridian and the false northing applies.
	got := DisplayUTM(models.NewCoordinate(-23.55, -46.6333))
	parts := strings.Split(got, ", ")
	require.Len(t, parts, 2)

	easting, err := strconv.ParseFloat(parts[0], 64)
	require.NoError(t, err)
	northing, err := strconv.ParseFloat(parts[1], 64)
	require.NoError(t, err)

	assert.InDelta(t, 333000, easting, 2500)
	assert.InDelta(t, 7394000, northing, 5000)
	assert.Greater(t, northing, falseNorthing/2)
}

func TestDistance(t *testing.T) {
	assert.Equal(t, 0.0, Distance(10, 20, 10, 20))

	// One degree of longitude on the equator.
	d := Distance(0, 0, 0, 1)
	assert.InDelta(t, 111195, d, 5)

	// Distance is symmetric.
	assert.InDelta(t, Distance(-23.55, -46.63, -22.9, -43.2),
		Distance(-22.9, -43.2, -23.55, -46.63), 1e-6)
}

func TestInverseDirectRoundTrip(t *testing.T) {
	lat1, lon1 := -23.55, -46.6333

	inv := Inverse(lat1, lon1, -22.9068, -43.1729)
	require.Greater(t, inv.DistanceMeters, 0.0)
	assert.InDelta(t, math.Mod(inv.InitialAzimuth+180, 360), inv.FinalAzimuth, 1e-9)

	lat2, lon2, _ := Direct(lat1, lon1, inv.InitialAzimuth, inv.DistanceMeters)
	assert.InDelta(t, -22.9068, lat2, 0.05)
	assert.InDelta(t, -43.1729, lon2, 0.05)
}
