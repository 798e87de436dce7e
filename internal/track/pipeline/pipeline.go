// Package pipeline is the composition root that wires the parse,
// geo, reference, rider, grid, snap, and severity stages into the
// end-to-end course/rider matching flow.
//
// This package imports every stage package; none of those packages
// import pipeline, so the dependency graph stays one-directional the
// way the teacher's own composition root does.
package pipeline

import (
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/trackmatch/internal/config"
	"github.com/banshee-data/trackmatch/internal/monitoring"
	"github.com/banshee-data/trackmatch/internal/track/geo"
	"github.com/banshee-data/trackmatch/internal/track/grid"
	"github.com/banshee-data/trackmatch/internal/track/parse"
	"github.com/banshee-data/trackmatch/internal/track/reference"
	"github.com/banshee-data/trackmatch/internal/track/rider"
	"github.com/banshee-data/trackmatch/internal/track/severity"
	"github.com/banshee-data/trackmatch/internal/track/snap"
)

// ---------------------------------------------------------------------------
// Stage interfaces — layer-aligned contracts so each stage can be
// substituted with a fake in tests without pulling in the whole pipeline.
// ---------------------------------------------------------------------------

// ReferenceBuilder constructs the immutable reference polyline from a
// parsed course GPX (C2+C3).
type ReferenceBuilder interface {
	BuildReference(class, sourceCRS, destinationCRS string, samples []parse.GeographicSample) (*reference.Track, error)
}

// RiderBuilder constructs a rider's planar polyline relative to a
// reference origin (C2+C4).
type RiderBuilder interface {
	BuildRider(id uuid.UUID, variant uint32, sourceCRS, destinationCRS string, origin reference.TrackOrigin, startTime time.Time, samples []parse.GeographicSample) (*rider.Track, error)
}

// Matcher snaps a rider track onto a reference track's grid (C5+C6).
// Fails with trackerr.TrackSnappingError if riderTrack and refTrack
// disagree on CRS projection or track origin.
type Matcher interface {
	Match(riderTrack *rider.Track, refTrack *reference.Track) (*snap.MatchedTrack, error)
}

// Classifier assigns and filters severities over a matched track (C7).
type Classifier interface {
	Classify(mt *snap.MatchedTrack) []severity.Severity
}

// Config holds every dependency and tuning value the pipeline needs to
// run end to end. Build with NewConfig from a loaded TuningConfig.
type Config struct {
	SourceCRS      string
	DestinationCRS string
	Projector      geo.Projector
	GridCellSize   float64
	SnapConfig     snap.Config
	SeverityConfig severity.Config
}

// NewConfig builds a Config from a loaded TuningConfig and a Projector,
// the way TrackingPipelineConfig is assembled from *l3grid.BackgroundManager
// plus the tracker/classifier dependencies in the teacher's pipeline.
func NewConfig(tuning *config.TuningConfig, sourceCRS, destinationCRS string, projector geo.Projector) Config {
	return Config{
		SourceCRS:      sourceCRS,
		DestinationCRS: destinationCRS,
		Projector:      projector,
		GridCellSize:   tuning.GetGridCellSize(),
		SnapConfig:     snap.ConfigFromTuning(tuning),
		SeverityConfig: severity.ConfigFromTuning(tuning),
	}
}

// defaultBuilder implements ReferenceBuilder, RiderBuilder, Matcher, and
// Classifier directly over the concrete stage packages, and is what
// Run uses unless the caller substitutes its own stage implementations.
type defaultBuilder struct{ cfg Config }

func (d defaultBuilder) BuildReference(class, sourceCRS, destinationCRS string, samples []parse.GeographicSample) (*reference.Track, error) {
	return reference.Build(class, sourceCRS, destinationCRS, samples, d.cfg.Projector)
}

func (d defaultBuilder) BuildRider(id uuid.UUID, variant uint32, sourceCRS, destinationCRS string, origin reference.TrackOrigin, startTime time.Time, samples []parse.GeographicSample) (*rider.Track, error) {
	return rider.NewTrack(id, variant, sourceCRS, destinationCRS, origin, startTime, samples, d.cfg.Projector)
}

func (d defaultBuilder) Match(riderTrack *rider.Track, refTrack *reference.Track) (*snap.MatchedTrack, error) {
	g := grid.New(refTrack.Points, d.cfg.GridCellSize)
	return snap.Snap(riderTrack, refTrack, g, d.cfg.SnapConfig)
}

func (d defaultBuilder) Classify(mt *snap.MatchedTrack) []severity.Severity {
	return severity.Classify(mt, d.cfg.SeverityConfig)
}

// Result is the fully classified output of one rider against one
// reference track.
type Result struct {
	Reference  *reference.Track
	Rider      *rider.Track
	Matched    *snap.MatchedTrack
	Severities []severity.Severity
	Summary    severity.Summary
}

// LoadReference streams a course GPX and builds its reference track
// (C1→C2→C3).
func LoadReference(cfg Config, class, name string, r io.Reader) (*reference.Track, error) {
	parsed, err := parse.Stream(r, name)
	if err != nil {
		return nil, err
	}
	b := defaultBuilder{cfg}
	return b.BuildReference(class, cfg.SourceCRS, cfg.DestinationCRS, parsed.Samples)
}

// LoadRider streams a rider GPX and builds its track relative to ref's
// origin (C1→C2→C4).
func LoadRider(cfg Config, id uuid.UUID, variant uint32, ref *reference.Track, name string, r io.Reader) (*rider.Track, error) {
	parsed, err := parse.Stream(r, name)
	if err != nil {
		return nil, err
	}
	b := defaultBuilder{cfg}
	return b.BuildRider(id, variant, cfg.SourceCRS, cfg.DestinationCRS, ref.Origin, parsed.StartTime, parsed.Samples)
}

// Run matches a loaded rider track against a loaded reference track and
// classifies the result end to end (C5→C6→C7). Stage implementations
// can be substituted for testing by calling RunStages instead; Run
// itself always uses the concrete stage packages through defaultBuilder.
// Fails with trackerr.TrackSnappingError if riderTrack and refTrack
// disagree on CRS projection or track origin.
func Run(cfg Config, refTrack *reference.Track, riderTrack *rider.Track) (*Result, error) {
	b := defaultBuilder{cfg}
	return RunStages(b, b, refTrack, riderTrack)
}

// RiderResult pairs one rider's Result with its error, for RunAll's
// per-rider fan-out where one rider's failure (e.g. a CRS/origin
// mismatch) must not abort the others.
type RiderResult struct {
	Rider  *rider.Track
	Result *Result
	Err    error
}

// RunAll matches many independent rider tracks against one shared
// reference track, building the grid once and reusing it — read-only —
// across a goroutine per rider (spec.md §5/§9: "shared immutable grid
// across parallel rider pipelines... the grid has no mutation after
// construction so no synchronization is needed"). A single rider's own
// match stays strictly sequential inside its own goroutine — the
// monotonic-progress clamp depends on the previous step's result — but
// independent riders run concurrently, following the original's
// `snap_all` (`riders.par_iter().map(...)` over one shared grid) and
// the teacher's own `sync.WaitGroup`-per-goroutine fan-out in main.go.
func RunAll(cfg Config, refTrack *reference.Track, riderTracks []*rider.Track) []RiderResult {
	g := grid.New(refTrack.Points, cfg.GridCellSize)
	results := make([]RiderResult, len(riderTracks))

	var wg sync.WaitGroup
	for i, rt := range riderTracks {
		wg.Add(1)
		go func(i int, rt *rider.Track) {
			defer wg.Done()

			matched, err := snap.Snap(rt, refTrack, g, cfg.SnapConfig)
			if err != nil {
				results[i] = RiderResult{Rider: rt, Err: err}
				return
			}
			monitoring.Logf("pipeline: matched rider %s (%d points) against reference %q", rt.ID, len(matched.Points), refTrack.Class)

			severities := severity.Classify(matched, cfg.SeverityConfig)
			summary := severity.Summarize(matched)

			results[i] = RiderResult{
				Rider: rt,
				Result: &Result{
					Reference:  refTrack,
					Rider:      rt,
					Matched:    matched,
					Severities: severities,
					Summary:    summary,
				},
			}
		}(i, rt)
	}
	wg.Wait()

	return results
}

// RunStages is the same as Run but takes explicit stage interfaces,
// mirroring the teacher's ForegroundStage/PerceptionStage/TrackingStage
// contracts — useful for tests that want to substitute a fake Matcher
// or Classifier without touching the concrete snap/severity packages.
func RunStages(matcher Matcher, classifier Classifier, refTrack *reference.Track, riderTrack *rider.Track) (*Result, error) {
	matched, err := matcher.Match(riderTrack, refTrack)
	if err != nil {
		return nil, err
	}
	monitoring.Logf("pipeline: matched rider %s (%d points) against reference %q", riderTrack.ID, len(matched.Points), refTrack.Class)

	severities := classifier.Classify(matched)
	summary := severity.Summarize(matched)

	return &Result{
		Reference:  refTrack,
		Rider:      riderTrack,
		Matched:    matched,
		Severities: severities,
		Summary:    summary,
	}, nil
}
