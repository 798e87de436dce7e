// Package reference builds the immutable reference polyline that rider
// tracks are matched against.
package reference

import (
	"math"

	"github.com/banshee-data/trackmatch/internal/track/geo"
	"github.com/banshee-data/trackmatch/internal/track/parse"
	"github.com/banshee-data/trackmatch/internal/track/trackerr"
)

// TrackOrigin anchors a reference track and every rider track matched
// against it to a single planar coordinate pair, so both are expressed
// in the same local frame.
type TrackOrigin struct {
	X0, Y0 float64
}

// Point is one vertex of a ReferenceTrack: a planar offset from the
// track's origin, an elevation, and the cumulative planar arc length
// from the track's first point.
type Point struct {
	X, Y, Z       float64
	TotalDistance float64
}

// Track is the immutable reference polyline: constructed once, read-only
// during matching, shared by every rider match.
type Track struct {
	Class      string
	Projection string
	Origin     TrackOrigin
	Points     []Point
}

// Build projects samples into the destination CRS and assembles a
// Track. The first projected sample becomes the track's origin; every
// subsequent point's (x, y) is relative to it, and total distance
// accumulates the planar Euclidean distance between consecutive points.
//
// Fails with EmptyTrackError if samples is empty, or with
// CoordinateConversionError if any sample cannot be projected.
func Build(class, sourceCRS, destinationCRS string, samples []parse.GeographicSample, projector geo.Projector) (*Track, error) {
	if len(samples) == 0 {
		return nil, &trackerr.EmptyTrackError{Source: class}
	}

	x0, y0, err := projector.Project(sourceCRS, destinationCRS, samples[0].Lon, samples[0].Lat)
	if err != nil {
		return nil, err
	}
	origin := TrackOrigin{X0: x0, Y0: y0}

	points := make([]Point, len(samples))
	for i, s := range samples {
		x, y, err := projector.Project(sourceCRS, destinationCRS, s.Lon, s.Lat)
		if err != nil {
			return nil, err
		}
		z := 0.0
		if s.Elev != nil {
			z = *s.Elev
		}
		points[i] = Point{X: x - x0, Y: y - y0, Z: z}
	}

	points[0].TotalDistance = 0
	for i := 1; i < len(points); i++ {
		dx := points[i].X - points[i-1].X
		dy := points[i].Y - points[i-1].Y
		points[i].TotalDistance = points[i-1].TotalDistance + math.Sqrt(dx*dx+dy*dy)
	}

	return &Track{
		Class:      class,
		Projection: destinationCRS,
		Origin:     origin,
		Points:     points,
	}, nil
}
