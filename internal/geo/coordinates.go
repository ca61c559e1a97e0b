package geo

import (
	"fmt"
	"math"
)

const earthRadiusKm = 6371.0

// roadCircuityMultiplier approximates real road distance from a great-circle
// distance when no routed distance is available.
const roadCircuityMultiplier = 1.4

// Coordinates is an immutable latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewCoordinates validates and creates a Coordinates value.
func NewCoordinates(lat, lng float64) (Coordinates, error) {
	if lat < -90 || lat > 90 {
		return Coordinates{}, fmt.Errorf("latitude %v out of range [-90, 90]", lat)
	}
	if lng < -180 || lng > 180 {
		return Coordinates{}, fmt.Errorf("longitude %v out of range [-180, 180]", lng)
	}
	return Coordinates{Latitude: lat, Longitude: lng}, nil
}

// Equal reports whether both coordinates are exactly the same point.
func (c Coordinates) Equal(other Coordinates) bool {
	return c.Latitude == other.Latitude && c.Longitude == other.Longitude
}

// HaversineKm returns the great-circle distance in kilometres to other.
func (c Coordinates) HaversineKm(other Coordinates) float64 {
	dLat := degreesToRadians(other.Latitude - c.Latitude)
	dLng := degreesToRadians(other.Longitude - c.Longitude)

	rLat1 := degreesToRadians(c.Latitude)
	rLat2 := degreesToRadians(other.Latitude)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	h := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * h
}

// EstimateRoadKm returns the geometric road-distance estimate between two
// points: great-circle distance corrected by the road-circuity multiplier,
// rounded to one decimal.
func EstimateRoadKm(from, to Coordinates) float64 {
	return RoundKm(from.HaversineKm(to) * roadCircuityMultiplier)
}

// RoundKm rounds a distance to one decimal kilometre.
func RoundKm(km float64) float64 {
	return math.Round(km*10) / 10
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
