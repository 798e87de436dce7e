package parse

import (
	"errors"
	"strings"
	"testing"

	"github.com/banshee-data/trackmatch/internal/track/trackerr"
)

const sampleGPX = `<?xml version="1.0"?>
<gpx><trk><trkseg>
<trkpt lat="44.1" lon="26.1"><ele>85.2</ele><time>2026-07-31T08:00:00.000Z</time></trkpt>
<trkpt lat="44.2" lon="26.2"><ele>86.0</ele><time>2026-07-31T08:00:01.500Z</time></trkpt>
<trkpt lat="44.3" lon="26.3"><time>2026-07-31T08:00:03Z</time></trkpt>
</trkseg></trk></gpx>`

func TestStreamBasic(t *testing.T) {
	res, err := Stream(strings.NewReader(sampleGPX), "ride.gpx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Samples) != 3 {
		t.Fatalf("got %d samples, want 3", len(res.Samples))
	}
	if res.Samples[0].Lat != 44.1 || res.Samples[0].Lon != 26.1 {
		t.Errorf("sample 0 = %+v", res.Samples[0])
	}
	if res.Samples[0].Elev == nil || *res.Samples[0].Elev != 85.2 {
		t.Errorf("sample 0 elevation = %v, want 85.2", res.Samples[0].Elev)
	}
	if res.Samples[2].Elev != nil {
		t.Errorf("sample 2 elevation should be absent, got %v", *res.Samples[2].Elev)
	}
	if d := res.Samples[0].DeltaSeconds; d == nil || *d != 0 {
		t.Errorf("sample 0 delta = %v, want 0", d)
	}
	if d := res.Samples[1].DeltaSeconds; d == nil || *d != 1.5 {
		t.Errorf("sample 1 delta = %v, want 1.5", d)
	}
	if d := res.Samples[2].DeltaSeconds; d == nil || *d != 3 {
		t.Errorf("sample 2 delta = %v, want 3", d)
	}
}

func TestStreamRejectsNonGPXName(t *testing.T) {
	_, err := Stream(strings.NewReader(sampleGPX), "ride.txt")
	var target *trackerr.InvalidFormatError
	if !errors.As(err, &target) {
		t.Fatalf("expected InvalidFormatError, got %v", err)
	}
}

func TestStreamSkipsExtensionCheckWhenNameEmpty(t *testing.T) {
	_, err := Stream(strings.NewReader(sampleGPX), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStreamMissingLatLon(t *testing.T) {
	const bad = `<gpx><trkpt lat="1.0"></trkpt></gpx>`
	_, err := Stream(strings.NewReader(bad), "ride.gpx")
	var target *trackerr.ParseFailureError
	if !errors.As(err, &target) {
		t.Fatalf("expected ParseFailureError for missing lon, got %v", err)
	}
}

func TestStreamNonMonotonicTime(t *testing.T) {
	const bad = `<gpx>
<trkpt lat="1" lon="1"><time>2026-07-31T08:00:05Z</time></trkpt>
<trkpt lat="1" lon="1"><time>2026-07-31T08:00:01Z</time></trkpt>
</gpx>`
	_, err := Stream(strings.NewReader(bad), "ride.gpx")
	var target *trackerr.ParseFailureError
	if !errors.As(err, &target) {
		t.Fatalf("expected ParseFailureError for non-monotonic time, got %v", err)
	}
}

func TestStreamMalformedXML(t *testing.T) {
	const bad = `<gpx><trkpt lat="1" lon="1">`
	_, err := Stream(strings.NewReader(bad), "ride.gpx")
	if err == nil {
		t.Fatal("expected an error for truncated XML")
	}
}

func TestFastParseSameDayMatchesGenericPath(t *testing.T) {
	res, err := Stream(strings.NewReader(sampleGPX), "ride.gpx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The fast path and the generic RFC3339 path must agree: delta for
	// sample 1 (1.5s with fractional seconds) must be exact.
	if *res.Samples[1].DeltaSeconds != 1.5 {
		t.Errorf("delta = %v, want 1.5", *res.Samples[1].DeltaSeconds)
	}
}

func TestStreamNestedAtAnyDepth(t *testing.T) {
	const bare = `<gpx><trkpt lat="2" lon="3"></trkpt></gpx>`
	res, err := Stream(strings.NewReader(bare), "ride.gpx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(res.Samples))
	}
}

// A <metadata><time> preceding the first trkpt must seed the track's
// start timestamp, the way track_loader.rs sets in_time unconditionally
// on any <time> Start event rather than only inside a trkpt.
func TestStreamMetadataTimeSeedsStart(t *testing.T) {
	const withMetadata = `<gpx>
<metadata><time>2026-07-31T08:00:00Z</time></metadata>
<trk><trkseg>
<trkpt lat="1" lon="1"><time>2026-07-31T08:00:02Z</time></trkpt>
<trkpt lat="2" lon="2"><time>2026-07-31T08:00:05Z</time></trkpt>
</trkseg></trk></gpx>`

	res, err := Stream(strings.NewReader(withMetadata), "ride.gpx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantStart := "2026-07-31T08:00:00Z"
	if got := res.StartTime.UTC().Format("2006-01-02T15:04:05Z"); got != wantStart {
		t.Fatalf("StartTime = %s, want %s", got, wantStart)
	}
	if d := res.Samples[0].DeltaSeconds; d == nil || *d != 2 {
		t.Errorf("sample 0 delta = %v, want 2 (relative to metadata start)", d)
	}
	if d := res.Samples[1].DeltaSeconds; d == nil || *d != 5 {
		t.Errorf("sample 1 delta = %v, want 5 (relative to metadata start)", d)
	}
}
