package common

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// EarthRadius is the mean earth radius in meters.
// It matches the radius most web mapping toolkits measure with,
// so thresholds in feet agree with what a map client shows.
const EarthRadius = 6371008.8

// Unit is a unit of length.
type Unit string

const (
	UnitMeters     Unit = "meters"
	UnitKilometers Unit = "kilometers"
	UnitFeet       Unit = "feet"
	UnitMiles      Unit = "miles"
)

const (
	MetersPerFoot = 0.3048
	MetersPerMile = 1609.344
)

// MetersPer returns the number of meters in one u.
// Unknown units are treated as meters.
func MetersPer(u Unit) float64 {
	switch u {
	case UnitKilometers:
		return 1000
	case UnitFeet:
		return MetersPerFoot
	case UnitMiles:
		return MetersPerMile
	default:
		return 1
	}
}

// Haversine returns the great-circle distance between a and b in the given unit.
// Points are orb-ordered: [lon, lat]. orb measures on its equatorial radius,
// so the result is rescaled to EarthRadius.
func Haversine(a, b orb.Point, unit Unit) float64 {
	meters := geo.DistanceHaversine(a, b) * EarthRadius / orb.EarthRadius
	return meters / MetersPer(unit)
}

// Convert converts v from one unit to another.
func Convert(v float64, from, to Unit) float64 {
	return v * MetersPer(from) / MetersPer(to)
}
