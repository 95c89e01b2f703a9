// Package geo implements the coordinate engine: DMS conversion, a
// transverse-Mercator display projection and great-circle distances.
package geo

import (
	"fmt"
	"math"

	"github.com/rmaffei/rotafoto/internal/models"
)

// WGS84 ellipsoid constants.
const (
	semiMajorAxis = 6378137.0
	flattening    = 1 / 298.257223563
	scaleFactor   = 0.9996
	falseEasting  = 500000.0
	falseNorthing = 10000000.0

	// Spherical radius used by the haversine distance.
	earthRadius = 6371000.0
)

// ComputeError is returned by DisplayUTM when the projection fails on
// bad numeric input. Callers must treat it as distinct from the
// models.Unavailable marker: one means "no data", the other "bad data".
const ComputeError = "Erro no cálculo"

// DMSToDecimal converts a degrees/minutes/seconds triple to decimal
// degrees, negated when the hemisphere is South or West. Malformed
// input yields 0 rather than an error so a single bad tag never takes
// down a whole extraction.
func DMSToDecimal(deg, min, sec float64, southOrWest bool) float64 {
	if !finite(deg) || !finite(min) || !finite(sec) {
		return 0
	}
	dd := deg + min/60 + sec/3600
	if southOrWest {
		dd = -dd
	}
	return dd
}

// DisplayUTM projects a coordinate to a human-readable UTM-like
// easting/northing string. An absent coordinate passes through as the
// unavailable marker; a numeric failure yields ComputeError.
func DisplayUTM(c models.Coordinate) string {
	if !c.Valid {
		return models.Unavailable
	}
	easting, northing, ok := project(c.Lat, c.Lon)
	if !ok {
		return ComputeError
	}
	return fmt.Sprintf("%.3f, %.3f", easting, northing)
}

// project runs a Krüger/Gauss series expansion for the UTM zone that
// contains lon. It is an approximation meant for display, not a full
// geodesy implementation.
func project(lat, lon float64) (easting, northing float64, ok bool) {
	zone := math.Floor((lon+180)/6) + 1

	latRad := lat * math.Pi / 180
	lonRad := lon * math.Pi / 180
	lonCentralRad := ((zone-1)*6 - 180 + 3) * math.Pi / 180

	e := math.Sqrt(2*flattening - flattening*flattening)
	n := flattening / (2 - flattening)
	a := semiMajorAxis / (1 + n) * (1 + n*n/4 + n*n*n*n/64)

	t := math.Sinh(math.Atanh(math.Sin(latRad)) - e*math.Atanh(e*math.Sin(latRad)))
	xi := math.Atan(t / math.Cos(lonRad-lonCentralRad))
	eta := math.Atanh(math.Sin(lonRad-lonCentralRad) / math.Sqrt(1+t*t))

	alpha1 := n/2 - 2.0/3.0*n*n + 5.0/16.0*n*n*n
	alpha2 := 13.0/48.0*n*n - 3.0/5.0*n*n*n
	alpha3 := 61.0 / 240.0 * n * n * n

	easting = falseEasting + scaleFactor*a*(eta+
		alpha1*math.Cos(2*xi)*math.Sinh(2*eta)+
		alpha2*math.Cos(4*xi)*math.Sinh(4*eta)+
		alpha3*math.Cos(6*xi)*math.Sinh(6*eta))

	northing = scaleFactor * a * (xi +
		alpha1*math.Sin(2*xi)*math.Cosh(2*eta) +
		alpha2*math.Sin(4*xi)*math.Cosh(4*eta) +
		alpha3*math.Sin(6*xi)*math.Cosh(6*eta))

	if lat < 0 {
		northing += falseNorthing
	}

	if !finite(easting) || !finite(northing) {
		return 0, 0, false
	}
	return easting, northing, true
}

// Distance returns the haversine great-circle distance in meters
// between two points on a spherical Earth.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
