package fix

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
)

var ErrInvalidFix = errors.New("invalid location fix")

// Fix is one location reading from the device.
// Each fix supersedes the previous one.
type Fix struct {
	Lat      float64   `json:"lat"`
	Lon      float64   `json:"lon"`
	Accuracy float64   `json:"accuracy,omitempty"`
	Heading  *float64  `json:"heading,omitempty"`
	Time     time.Time `json:"time,omitempty"`
}

// Point returns the fix as an orb.Point, which is [lon, lat].
func (f Fix) Point() orb.Point {
	return orb.Point{f.Lon, f.Lat}
}

func (f Fix) Validate() error {
	if math.IsNaN(f.Lat) || math.IsNaN(f.Lon) {
		return fmt.Errorf("%w: NaN coordinate", ErrInvalidFix)
	}
	if f.Lat < -90 || f.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidFix, f.Lat)
	}
	if f.Lon < -180 || f.Lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidFix, f.Lon)
	}
	return nil
}

func (f Fix) String() string {
	return fmt.Sprintf("%.4f, %.4f", f.Lat, f.Lon)
}

// Event carries either a fix or a location error from the device.
type Event struct {
	Fix *Fix
	Err error
}
