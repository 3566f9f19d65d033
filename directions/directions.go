// Package directions requests driving routes from a Mapbox-compatible
// directions API.
package directions

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/everystreet/common"
	"github.com/rotblauer/everystreet/params"
)

var (
	// ErrNoRoute is wrapped by every *RouteError.
	ErrNoRoute          = errors.New("no route found")
	ErrTooManyWaypoints = fmt.Errorf("more than %d waypoints", params.MaxWaypoints)
	ErrTooFewWaypoints  = errors.New("fewer than 2 waypoints")
)

// DefaultNoRouteMessage is used when the provider gives no message of its own.
const DefaultNoRouteMessage = "No route found by Mapbox Directions API."

// Provider computes a route visiting waypoints in order.
type Provider interface {
	Route(ctx context.Context, waypoints []orb.Point) (*Route, error)
}

// RouteError is a provider response that carried no usable route.
// Its message is the provider's own, suitable for showing to the user.
type RouteError struct {
	StatusCode int
	Message    string
}

func (e *RouteError) Error() string {
	return e.Message
}

func (e *RouteError) Unwrap() error {
	return ErrNoRoute
}

// Route is the first route of a directions response.
type Route struct {
	Geometry orb.Geometry
	// Distance is in meters.
	Distance float64
	// Duration is in seconds.
	Duration float64
	// Steps are flattened leg by leg.
	Steps []Step
}

// Miles is the route distance in miles.
func (r *Route) Miles() float64 {
	return common.Convert(r.Distance, common.UnitMeters, common.UnitMiles)
}

// GeometryLength is the geodesic length of the route geometry in meters.
func (r *Route) GeometryLength() float64 {
	if r.Geometry == nil {
		return 0
	}
	return geo.Length(r.Geometry)
}

// Feature wraps the route geometry for display.
func (r *Route) Feature() *geojson.Feature {
	f := geojson.NewFeature(r.Geometry)
	f.Properties["distance"] = r.Distance
	f.Properties["duration"] = r.Duration
	return f
}

// Maneuver describes what to do at the start of a step.
type Maneuver struct {
	Type        string    `json:"type"`
	Modifier    string    `json:"modifier,omitempty"`
	Instruction string    `json:"instruction"`
	Location    orb.Point `json:"location"`
}

// Step is one turn-by-turn instruction.
type Step struct {
	Maneuver    Maneuver `json:"maneuver"`
	Instruction string   `json:"instruction"`
	Name        string   `json:"name,omitempty"`
	// Distance is in meters.
	Distance float64 `json:"distance"`
	// Duration is in seconds.
	Duration float64 `json:"duration"`
}

// String formats the step as "Turn left (328 feet, 25 seconds)".
func (s Step) String() string {
	feet := math.Round(common.Convert(s.Distance, common.UnitMeters, common.UnitFeet))
	return fmt.Sprintf("%s (%d feet, %d seconds)", s.Instruction, int(feet), int(math.Round(s.Duration)))
}

// WaypointString renders waypoints as "lon,lat;lon,lat".
func WaypointString(waypoints []orb.Point) string {
	parts := make([]string, len(waypoints))
	for i, p := range waypoints {
		parts[i] = fmt.Sprintf("%.6f,%.6f", p.Lon(), p.Lat())
	}
	return strings.Join(parts, ";")
}

func checkWaypoints(waypoints []orb.Point) error {
	if len(waypoints) < 2 {
		return ErrTooFewWaypoints
	}
	if len(waypoints) > params.MaxWaypoints {
		return fmt.Errorf("%w: got %d", ErrTooManyWaypoints, len(waypoints))
	}
	return nil
}
