package pipeline

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/banshee-data/trackmatch/internal/track/reference"
	"github.com/banshee-data/trackmatch/internal/track/rider"
	"github.com/banshee-data/trackmatch/internal/track/severity"
	"github.com/banshee-data/trackmatch/internal/track/snap"
)

// identityProjector treats (lon, lat) as already-planar (x, y), avoiding a
// real CRS transform in pipeline-level tests.
type identityProjector struct{}

func (identityProjector) Project(_, _ string, lon, lat float64) (float64, float64, error) {
	return lon, lat, nil
}

const refGPX = `<?xml version="1.0"?>
<gpx><trk><trkseg>
<trkpt lat="0" lon="0"><ele>10</ele><time>2026-01-01T00:00:00Z</time></trkpt>
<trkpt lat="0" lon="1"><ele>10</ele><time>2026-01-01T00:00:01Z</time></trkpt>
<trkpt lat="0" lon="2"><ele>10</ele><time>2026-01-01T00:00:02Z</time></trkpt>
<trkpt lat="0" lon="3"><ele>10</ele><time>2026-01-01T00:00:03Z</time></trkpt>
</trkseg></trk></gpx>`

const riderGPX = `<?xml version="1.0"?>
<gpx><trk><trkseg>
<trkpt lat="0.1" lon="0"><ele>10</ele><time>2026-01-01T00:00:00Z</time></trkpt>
<trkpt lat="0.1" lon="1"><ele>10</ele><time>2026-01-01T00:00:01Z</time></trkpt>
<trkpt lat="0.1" lon="2"><ele>10</ele><time>2026-01-01T00:00:02Z</time></trkpt>
</trkseg></trk></gpx>`

func testConfig() Config {
	return Config{
		SourceCRS:      "EPSG:4326",
		DestinationCRS: "EPSG:4326",
		Projector:      identityProjector{},
		GridCellSize:   1.0,
		SnapConfig:     snap.Config{ContinuityClamp: 5},
		SeverityConfig: severity.Config{AllowedDeviance: 0.05, IncrementalSeverity: 0.05, DirectionalDeviance: 0.6, MinimumContinuousError: 1},
	}
}

func TestLoadReferenceAndRiderEndToEnd(t *testing.T) {
	cfg := testConfig()

	ref, err := LoadReference(cfg, "course", "course.gpx", strings.NewReader(refGPX))
	if err != nil {
		t.Fatalf("LoadReference: %v", err)
	}
	if len(ref.Points) != 4 {
		t.Fatalf("len(ref.Points) = %d, want 4", len(ref.Points))
	}

	riderTrack, err := LoadRider(cfg, uuid.New(), 1, ref, "rider.gpx", strings.NewReader(riderGPX))
	if err != nil {
		t.Fatalf("LoadRider: %v", err)
	}
	if len(riderTrack.Points) != 3 {
		t.Fatalf("len(rider.Points) = %d, want 3", len(riderTrack.Points))
	}

	result, err := Run(cfg, ref, riderTrack)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Matched.Points) != 3 {
		t.Fatalf("len(Matched.Points) = %d, want 3", len(result.Matched.Points))
	}
	if len(result.Severities) != 3 {
		t.Fatalf("len(Severities) = %d, want 3", len(result.Severities))
	}
	// The rider track is offset 0.1 degrees latitude away from the
	// reference the whole way, so every point should be flagged non-Ok.
	for i, s := range result.Severities {
		if s == severity.Ok {
			t.Errorf("Severities[%d] = Ok, want non-Ok for a constantly offset rider", i)
		}
	}
}

// RunAll must share one grid across concurrently-processed, independent
// riders, returning one RiderResult per input in the same order —
// including a per-rider error for a rider whose origin disagrees with
// the reference, without aborting the others.
func TestRunAllSharesGridAcrossRiders(t *testing.T) {
	cfg := testConfig()

	ref, err := LoadReference(cfg, "course", "course.gpx", strings.NewReader(refGPX))
	if err != nil {
		t.Fatalf("LoadReference: %v", err)
	}

	var riders []*rider.Track
	for i := 0; i < 5; i++ {
		rt, err := LoadRider(cfg, uuid.New(), uint32(i), ref, "rider.gpx", strings.NewReader(riderGPX))
		if err != nil {
			t.Fatalf("LoadRider %d: %v", i, err)
		}
		riders = append(riders, rt)
	}
	// One rider disagrees with the reference's track origin; it must fail
	// on its own without affecting the others.
	riders[2].Origin = reference.TrackOrigin{X0: 999, Y0: 999}

	results := RunAll(cfg, ref, riders)
	if len(results) != len(riders) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(riders))
	}

	for i, rr := range results {
		if rr.Rider != riders[i] {
			t.Errorf("results[%d].Rider does not match riders[%d]", i, i)
		}
		if i == 2 {
			if rr.Err == nil {
				t.Errorf("results[2].Err = nil, want a TrackSnappingError for the origin mismatch")
			}
			continue
		}
		if rr.Err != nil {
			t.Errorf("results[%d].Err = %v, want nil", i, rr.Err)
		}
		if rr.Result == nil || len(rr.Result.Matched.Points) != 3 {
			t.Errorf("results[%d].Result missing or wrong length", i)
		}
	}
}

// fakeMatcher/fakeClassifier let RunStages be exercised without touching
// the concrete snap/severity packages.
type fakeMatcher struct{ mt *snap.MatchedTrack }

func (f fakeMatcher) Match(*rider.Track, *reference.Track) (*snap.MatchedTrack, error) { return f.mt, nil }

type fakeClassifier struct{ sevs []severity.Severity }

func (f fakeClassifier) Classify(*snap.MatchedTrack) []severity.Severity { return f.sevs }

func TestRunStagesSubstitutesFakes(t *testing.T) {
	mt := &snap.MatchedTrack{RiderID: uuid.New(), Points: []snap.MatchPoint{{Lateral: 0.1}, {Lateral: 0.2}}}
	sevs := []severity.Severity{severity.Ok, severity.Minor}

	result, err := RunStages(fakeMatcher{mt}, fakeClassifier{sevs}, &reference.Track{}, &rider.Track{})
	if err != nil {
		t.Fatalf("RunStages: %v", err)
	}
	if result.Matched != mt {
		t.Errorf("RunStages did not use the substituted Matcher's output")
	}
	if len(result.Severities) != 2 || result.Severities[1] != severity.Minor {
		t.Errorf("RunStages did not use the substituted Classifier's output, got %v", result.Severities)
	}
}

type failingMatcher struct{ err error }

func (f failingMatcher) Match(*rider.Track, *reference.Track) (*snap.MatchedTrack, error) {
	return nil, f.err
}

func TestRunStagesPropagatesMatchError(t *testing.T) {
	want := errors.New("boom")
	_, err := RunStages(failingMatcher{want}, fakeClassifier{nil}, &reference.Track{}, &rider.Track{})
	if !errors.Is(err, want) {
		t.Fatalf("RunStages error = %v, want %v", err, want)
	}
}
