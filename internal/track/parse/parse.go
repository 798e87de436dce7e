// Package parse streams a GPX byte source into an ordered sequence of
// geographic samples without holding the whole document in memory.
package parse

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/trackmatch/internal/monitoring"
	"github.com/banshee-data/trackmatch/internal/track/trackerr"
)

// GeographicSample is a single parsed trkpt: signed decimal-degree
// longitude/latitude, optional elevation in meters, and an optional
// monotonic offset (in seconds) from the track's start timestamp.
type GeographicSample struct {
	Lon, Lat     float64
	Elev         *float64
	DeltaSeconds *float64
}

// Result is the output of a successful parse: the ordered samples plus
// the track's start timestamp (the first <time> observed).
type Result struct {
	Samples   []GeographicSample
	StartTime time.Time
}

// Stream parses name (used only for the .gpx extension check and for
// identifying the source in returned errors and the progress log line;
// pass "" to skip the extension check) from r. r is read once, forward-only, via a buffered
// XML decoder — the document is never loaded whole into memory.
func Stream(r io.Reader, name string) (Result, error) {
	if name != "" && !strings.HasSuffix(strings.ToLower(name), ".gpx") {
		return Result{}, &trackerr.InvalidFormatError{Source: name, Reason: "file name does not end in .gpx"}
	}

	dec := xml.NewDecoder(r)

	var (
		samples   []GeographicSample
		startTime time.Time
		haveStart bool
		lastDelta float64
		haveDelta bool

		inTrkpt bool
		inEle   bool
		inTime  bool
		cur     GeographicSample
		haveLat bool
		haveLon bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			var syntaxErr *xml.SyntaxError
			if errors.As(err, &syntaxErr) {
				return Result{}, &trackerr.ParseFailureError{Source: name, Cause: err}
			}
			return Result{}, &trackerr.ReaderFailureError{Source: name, Cause: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "trkpt":
				inTrkpt = true
				cur = GeographicSample{}
				haveLat, haveLon = false, false
				for _, a := range t.Attr {
					switch a.Name.Local {
					case "lat":
						v, perr := strconv.ParseFloat(a.Value, 64)
						if perr != nil {
							return Result{}, &trackerr.ParseFailureError{Source: name, Cause: fmt.Errorf("bad lat %q: %w", a.Value, perr)}
						}
						cur.Lat = v
						haveLat = true
					case "lon":
						v, perr := strconv.ParseFloat(a.Value, 64)
						if perr != nil {
							return Result{}, &trackerr.ParseFailureError{Source: name, Cause: fmt.Errorf("bad lon %q: %w", a.Value, perr)}
						}
						cur.Lon = v
						haveLon = true
					}
				}
			case "ele":
				inEle = true
			case "time":
				inTime = true
			}
		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" {
				continue
			}
			if inEle {
				v, perr := strconv.ParseFloat(text, 64)
				if perr != nil {
					return Result{}, &trackerr.ParseFailureError{Source: name, Cause: fmt.Errorf("bad ele %q: %w", text, perr)}
				}
				if inTrkpt {
					cur.Elev = &v
				}
			}
			if inTime {
				ts, perr := parseTimestamp(text, startTime, haveStart)
				if perr != nil {
					return Result{}, &trackerr.ParseFailureError{Source: name, Cause: perr}
				}
				switch {
				case !inTrkpt:
					// A <time> outside any trkpt (e.g. <metadata><time>)
					// seeds the track's start timestamp, the way
					// track_loader.rs's in_time flag is set unconditionally
					// on any Start event, not just inside a trkpt.
					if !haveStart {
						startTime = ts
						haveStart = true
					}
				case !haveStart:
					startTime = ts
					haveStart = true
					zero := 0.0
					cur.DeltaSeconds = &zero
					lastDelta, haveDelta = 0, true
				default:
					delta := ts.Sub(startTime).Seconds()
					if haveDelta && delta < lastDelta {
						return Result{}, &trackerr.ParseFailureError{Source: name, Cause: fmt.Errorf("non-monotonic time at %s: delta %f < previous %f", text, delta, lastDelta)}
					}
					cur.DeltaSeconds = &delta
					lastDelta, haveDelta = delta, true
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "ele":
				inEle = false
			case "time":
				inTime = false
			case "trkpt":
				if !haveLat || !haveLon {
					return Result{}, &trackerr.ParseFailureError{Source: name, Cause: fmt.Errorf("trkpt missing lat/lon")}
				}
				samples = append(samples, cur)
				inTrkpt = false
			}
		}
	}

	monitoring.Logf("parse: %s -> %d samples", name, len(samples))
	return Result{Samples: samples, StartTime: startTime}, nil
}

// parseTimestamp parses an RFC 3339 <time> value. When a start timestamp
// is already known, it first tries a fixed-layout fast path that assumes
// the date matches the start's date (spec.md §4.1); on any mismatch it
// falls back to the fully general RFC 3339 parse.
func parseTimestamp(raw string, start time.Time, haveStart bool) (time.Time, error) {
	if haveStart {
		if t, ok := fastParseSameDay(raw, start); ok {
			return t, nil
		}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad time %q: %w", raw, err)
	}
	return t, nil
}

// fastParseSameDay extracts hh:mm:ss[.fff] from a UTC ("Z"-suffixed)
// RFC 3339 string whose date prefix matches start's date, avoiding a full
// time.Parse call on the hot path. Returns ok=false on any deviation from
// the expected fixed layout, letting the caller fall back to the generic
// parser.
func fastParseSameDay(raw string, start time.Time) (time.Time, bool) {
	if len(raw) < len("2006-01-02T15:04:05Z") || raw[len(raw)-1] != 'Z' {
		return time.Time{}, false
	}
	datePrefix := start.UTC().Format("2006-01-02")
	if raw[:10] != datePrefix || raw[10] != 'T' {
		return time.Time{}, false
	}
	hh, err1 := strconv.Atoi(raw[11:13])
	mm, err2 := strconv.Atoi(raw[14:16])
	ss, err3 := strconv.Atoi(raw[17:19])
	if raw[13] != ':' || raw[16] != ':' || err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	nanos := 0
	rest := raw[19 : len(raw)-1]
	if rest != "" {
		if rest[0] != '.' {
			return time.Time{}, false
		}
		frac := rest[1:]
		if frac == "" {
			return time.Time{}, false
		}
		fv, err := strconv.Atoi(frac)
		if err != nil {
			return time.Time{}, false
		}
		for i := len(frac); i < 9; i++ {
			fv *= 10
		}
		nanos = fv
	}
	y, mo, d := start.UTC().Date()
	return time.Date(y, mo, d, hh, mm, ss, nanos, time.UTC), true
}
