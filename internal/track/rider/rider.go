// Package rider builds a rider's planar polyline against a reference
// track's origin and carries rider identity.
package rider

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/trackmatch/internal/track/geo"
	"github.com/banshee-data/trackmatch/internal/track/parse"
	"github.com/banshee-data/trackmatch/internal/track/reference"
	"github.com/banshee-data/trackmatch/internal/track/trackerr"
)

// TrackOrigin is re-exported from reference so callers building a rider
// track never need to import both packages just to name the type.
type TrackOrigin = reference.TrackOrigin

// Point is one vertex of a rider's polyline: a planar offset from the
// shared track origin, an elevation, and the offset (in seconds) from
// the start timestamp of the rider's GPX (the first <time> it contains).
type Point struct {
	X, Y, Z      float64
	DeltaSeconds float64
}

// Track is a rider's polyline in the same planar frame as the reference
// track it will be matched against.
type Track struct {
	ID         uuid.UUID
	Variant    uint32
	Projection string
	Origin     TrackOrigin
	StartTime  time.Time
	Points     []Point
}

// NewTrack builds a rider Track by projecting samples into the
// destination CRS, relative to origin (taken from the reference track
// this rider will be matched against — spec.md §4.4). id and variant are
// caller-supplied, mirroring the original pipeline's explicit
// rider_uuid/variant parameters. startTime is stored as the track's
// StartTime; pipeline.LoadRider passes the start timestamp parsed from
// the rider's own GPX.
//
// Fails with EmptyTrackError if samples is empty.
func NewTrack(id uuid.UUID, variant uint32, sourceCRS, destinationCRS string, origin TrackOrigin, startTime time.Time, samples []parse.GeographicSample, projector geo.Projector) (*Track, error) {
	if len(samples) == 0 {
		return nil, &trackerr.EmptyTrackError{Source: id.String()}
	}

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
		delta := 0.0
		if s.DeltaSeconds != nil {
			delta = *s.DeltaSeconds
		}
		points[i] = Point{X: x - origin.X0, Y: y - origin.Y0, Z: z, DeltaSeconds: delta}
	}

	return &Track{
		ID:         id,
		Variant:    variant,
		Projection: destinationCRS,
		Origin:     origin,
		StartTime:  startTime,
		Points:     points,
	}, nil
}

// IdentityFromFilename parses the "{day}_{bib}_{variant}" stem convention
// used by older GPX drop feeds, returning the bib number and variant tag.
// Newer ingestion paths should prefer an explicit caller-supplied UUID via
// NewTrack; this exists for filenames that still follow the legacy
// convention.
func IdentityFromFilename(name string) (bib, variant uint32, err error) {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	parts := strings.Split(stem, "_")
	if len(parts) != 3 {
		return 0, 0, fmt.Errorf("filename %q does not match {day}_{bib}_{variant}", name)
	}
	b, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("filename %q has non-numeric bib: %w", name, err)
	}
	v, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("filename %q has non-numeric variant: %w", name, err)
	}
	return uint32(b), uint32(v), nil
}
