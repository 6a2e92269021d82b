// Package geo provides geolocation utilities for photo-proof validation:
// great-circle distance, geofence scoring, and geohash encoding for
// coarse location handling.
package geo

import (
	"fmt"
	"math"
)

// DefaultFenceRadiusMeters is the default maximum allowed distance between
// a quest's expected location and the photo's claimed location.
const DefaultFenceRadiusMeters = 500.0

// NeutralScore is returned when GPS coordinates are unavailable on either
// side of the comparison. Missing location data is deliberately non-punitive:
// many cameras never embed GPS, and rejecting on absence alone would punish
// legitimate submissions.
const NeutralScore = 0.5

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// FenceResult is the outcome of comparing a candidate location against an
// expected quest location. DistanceMeters is nil when either coordinate
// pair was unavailable.
type FenceResult struct {
	Score          float64  `json:"score"`
	DistanceMeters *float64 `json:"distance_meters"`
	WithinFence    bool     `json:"within_fence"`
	Reason         string   `json:"reason"`
}

// Haversine returns the great-circle distance in meters between two
// coordinate pairs given in decimal degrees.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// ScoreFence scores how well a candidate location matches the expected quest
// location. Either point may be nil, in which case the result is the neutral
// score with no distance.
//
// Within the fence radius the score falls linearly from 1.0 at zero distance
// to 0.0 at the radius. Beyond the radius the score decays gently,
// max(0, 0.3 - d/(10*radius)), so a photo one block past the boundary is not
// zeroed discontinuously while an implausibly distant one still bottoms out.
// Consumer GPS error is typically tens of meters; a hard cutoff at the
// boundary would flap on that noise.
func ScoreFence(expected, candidate *Point, radiusMeters float64) FenceResult {
	if radiusMeters <= 0 {
		radiusMeters = DefaultFenceRadiusMeters
	}

	if expected == nil {
		return FenceResult{
			Score:  NeutralScore,
			Reason: "no expected location for quest; geofence not evaluated",
		}
	}
	if candidate == nil {
		return FenceResult{
			Score:  NeutralScore,
			Reason: "no GPS available for photo; geofence not evaluated",
		}
	}

	d := Haversine(expected.Lat, expected.Lng, candidate.Lat, candidate.Lng)

	if d <= radiusMeters {
		score := 1.0 - d/radiusMeters
		if score < 0 {
			score = 0
		}
		return FenceResult{
			Score:          score,
			DistanceMeters: &d,
			WithinFence:    true,
			Reason:         fmt.Sprintf("photo location %.0fm from quest location (within %.0fm fence)", d, radiusMeters),
		}
	}

	score := 0.3 - d/(10*radiusMeters)
	if score < 0 {
		score = 0
	}
	return FenceResult{
		Score:          score,
		DistanceMeters: &d,
		WithinFence:    false,
		Reason:         fmt.Sprintf("photo location %.0fm from quest location (outside %.0fm fence)", d, radiusMeters),
	}
}
