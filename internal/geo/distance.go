package geo

import "math"

// earthRadiusM is the mean Earth radius used by the spherical approximation.
const earthRadiusM = 6371000.0

// Distance returns the great-circle distance in meters between two points
// given in signed decimal degrees. Pure haversine on a spherical Earth.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := radians(lat1)
	phi2 := radians(lat2)
	dPhi := radians(lat2 - lat1)
	dLambda := radians(lon2 - lon1)

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda

	// Round-off can push a hair outside [0, 1] for antipodal or identical
	// points; clamp before the inverse-trig step.
	if a < 0 {
		a = 0
	}
	if a > 1 {
		a = 1
	}

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
