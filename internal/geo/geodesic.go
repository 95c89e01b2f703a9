package geo

import "math"

// equatorialRadius is the WGS84 semi-major axis, used by the geodesic
// helpers below (they predate the haversine Distance and kept the
// equatorial radius of the library they replaced).
const equatorialRadius = semiMajorAxis

// InverseResult holds the solution of the inverse geodesic problem.
type InverseResult struct {
	DistanceMeters float64
	InitialAzimuth float64 // degrees, 0..360
	FinalAzimuth   float64 // degrees, 0..360
}

// Inverse computes distance and azimuths between two points.
func Inverse(lat1, lon1, lat2, lon2 float64) InverseResult {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	y := math.Sin(dLon) * math.Cos(toRad(lat2))
	x := math.Cos(toRad(lat1))*math.Sin(toRad(lat2)) -
		math.Sin(toRad(lat1))*math.Cos(toRad(lat2))*math.Cos(dLon)
	azimuth := toDeg(math.Atan2(y, x))
	if azimuth < 0 {
		azimuth += 360
	}

	return InverseResult{
		DistanceMeters: equatorialRadius * c,
		InitialAzimuth: azimuth,
		FinalAzimuth:   math.Mod(azimuth+180, 360),
	}
}

// Direct computes the destination of traveling distanceMeters from
// (lat, lon) along the initial azimuth (degrees).
func Direct(lat, lon, azimuthDeg, distanceMeters float64) (lat2, lon2, finalAzimuth float64) {
	latRad := toRad(lat)
	lonRad := toRad(lon)
	aziRad := toRad(azimuthDeg)
	angular := distanceMeters / equatorialRadius

	lat2Rad := math.Asin(math.Sin(latRad)*math.Cos(angular) +
		math.Cos(latRad)*math.Sin(angular)*math.Cos(aziRad))

	lon2Rad := lonRad + math.Atan2(
		math.Sin(aziRad)*math.Sin(angular)*math.Cos(latRad),
		math.Cos(angular)-math.Sin(latRad)*math.Sin(lat2Rad))

	// Normalize longitude to -180..180.
	lon2 = math.Mod(toDeg(lon2Rad)+540, 360) - 180

	y := math.Sin(aziRad) * math.Sin(angular) * math.Cos(latRad)
	x := math.Cos(angular) - math.Sin(latRad)*math.Sin(lat2Rad)
	finalAzimuth = math.Mod(toDeg(math.Atan2(y, x))+180, 360)

	return toDeg(lat2Rad), lon2, finalAzimuth
}
