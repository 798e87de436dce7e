// Package trackerr defines the structured error taxonomy shared by every
// stage of the track matching pipeline. Each error type identifies what
// it concerns (a Source track/file identifier, the CRS pair and point of
// a failed conversion, or the rider and reference of a failed snap) and,
// where applicable, wraps an underlying cause so callers can use
// errors.As/errors.Is instead of matching on an error code.
package trackerr

import "fmt"

// InvalidFormatError reports that a byte stream does not look like a GPX
// document the parser can handle: its file name does not end in .gpx.
type InvalidFormatError struct {
	Source string // track/file identifier
	Reason string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid format for %q: %s", e.Source, e.Reason)
}

// ReaderFailureError reports that the underlying byte source returned an
// error while the parser was reading from it.
type ReaderFailureError struct {
	Source string
	Cause  error
}

func (e *ReaderFailureError) Error() string {
	return fmt.Sprintf("reader failure for %q: %v", e.Source, e.Cause)
}

func (e *ReaderFailureError) Unwrap() error { return e.Cause }

// ParseFailureError reports malformed XML or numeric fields within an
// otherwise well-formed byte stream.
type ParseFailureError struct {
	Source string
	Cause  error
}

func (e *ParseFailureError) Error() string {
	return fmt.Sprintf("parse failure for %q: %v", e.Source, e.Cause)
}

func (e *ParseFailureError) Unwrap() error { return e.Cause }

// CoordinateConversionError reports that the projector could not map a
// point from the origin CRS to the destination CRS.
type CoordinateConversionError struct {
	Origin      string
	Destination string
	Lon, Lat    float64
	Reason      string
	Cause       error
}

func (e *CoordinateConversionError) Error() string {
	return fmt.Sprintf("cannot convert (%g, %g) from %s to %s: %s",
		e.Lon, e.Lat, e.Origin, e.Destination, e.Reason)
}

func (e *CoordinateConversionError) Unwrap() error { return e.Cause }

// EmptyTrackError reports that a track builder was given zero samples.
type EmptyTrackError struct {
	Source string
}

func (e *EmptyTrackError) Error() string {
	return fmt.Sprintf("empty track: %q has no samples", e.Source)
}

// TrackSnappingError reports a precondition failure at the start of a
// snap operation — the rider and reference tracks disagree on CRS or
// track origin.
type TrackSnappingError struct {
	Reason    string
	Rider     string
	Reference string
}

func (e *TrackSnappingError) Error() string {
	return fmt.Sprintf("cannot snap rider %q onto reference %q: %s", e.Rider, e.Reference, e.Reason)
}
