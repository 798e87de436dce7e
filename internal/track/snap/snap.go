// Package snap assigns each point of a moving track to its nearest
// vertex on a target track's grid, subject to a monotonic-progress
// clamp, and computes the lateral, elevation, and directional deltas at
// each match.
package snap

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/trackmatch/internal/config"
	"github.com/banshee-data/trackmatch/internal/track/grid"
	"github.com/banshee-data/trackmatch/internal/track/reference"
	"github.com/banshee-data/trackmatch/internal/track/rider"
	"github.com/banshee-data/trackmatch/internal/track/trackerr"
)

// batchWidth is the number of candidates evaluated per vectorized batch.
// A cell with more candidates than this is evaluated in successive
// batches, the last of which holds whatever candidates remain; every
// batch goes through the same batchedSquaredDistances path.
const batchWidth = 8

// Config holds the snapping parameters (spec.md §3 SnappingConfig).
type Config struct {
	ContinuityClamp int
}

// ConfigFromTuning builds a Config from a loaded TuningConfig, the way
// l3grid.BackgroundConfigFromTuning builds a BackgroundConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{ContinuityClamp: cfg.GetContinuityClamp()}
}

// MatchPoint is one rider (or, for Inverse, reference) sample matched
// against the target track.
type MatchPoint struct {
	ReferenceIndex      int
	DeltaSeconds        float64
	Lateral             float64
	DistanceZ           float64
	DirectionSimilarity float64
	CountToError        bool
}

// MatchedTrack is the ordered output of a Snap or Inverse call, the same
// length as the moving sequence.
type MatchedTrack struct {
	RiderID uuid.UUID
	Variant uint32
	Points  []MatchPoint
}

type planarPoint struct{ X, Y, Z float64 }

func fromReference(pts []reference.Point) []planarPoint {
	out := make([]planarPoint, len(pts))
	for i, p := range pts {
		out[i] = planarPoint{p.X, p.Y, p.Z}
	}
	return out
}

func fromRider(pts []rider.Point) []planarPoint {
	out := make([]planarPoint, len(pts))
	for i, p := range pts {
		out[i] = planarPoint{p.X, p.Y, p.Z}
	}
	return out
}

// checkPreconditions verifies riderTrack and refTrack agree on CRS
// projection and track origin before any snapping work begins, matching
// track_processor.rs::snap_rider_track's two guard checks
// (projection.eq_ignore_ascii_case, track_origin equality).
func checkPreconditions(riderTrack *rider.Track, refTrack *reference.Track) error {
	riderLabel := fmt.Sprintf("%s_%d", riderTrack.ID, riderTrack.Variant)

	if !strings.EqualFold(riderTrack.Projection, refTrack.Projection) {
		return &trackerr.TrackSnappingError{
			Reason:    fmt.Sprintf("projections differ: rider %q vs reference %q", riderTrack.Projection, refTrack.Projection),
			Rider:     riderLabel,
			Reference: refTrack.Class,
		}
	}
	if riderTrack.Origin != refTrack.Origin {
		return &trackerr.TrackSnappingError{
			Reason:    "tracks do not share the same track origin",
			Rider:     riderLabel,
			Reference: refTrack.Class,
		}
	}
	return nil
}

// Snap matches a rider track onto a reference track's grid (spec.md §4.6).
// Fails with TrackSnappingError if riderTrack and refTrack disagree on
// CRS projection or track origin.
func Snap(riderTrack *rider.Track, refTrack *reference.Track, g *grid.Grid, cfg Config) (*MatchedTrack, error) {
	if err := checkPreconditions(riderTrack, refTrack); err != nil {
		return nil, err
	}

	deltas := make([]float64, len(riderTrack.Points))
	for i, p := range riderTrack.Points {
		deltas[i] = p.DeltaSeconds
	}
	points := snapCore(fromRider(riderTrack.Points), deltas, fromReference(refTrack.Points), g, cfg)
	return &MatchedTrack{RiderID: riderTrack.ID, Variant: riderTrack.Variant, Points: points}, nil
}

// Inverse matches a reference track onto a rider track's grid — "which
// part of the course did this rider actually ride" — reusing the same
// core with the moving and target sequences swapped. The rider's
// per-point timing has no analog on the reference sequence, so
// DeltaSeconds is zero throughout the result (see SPEC_FULL.md §4). Subject to
// the same CRS/origin precondition as Snap.
func Inverse(refTrack *reference.Track, riderTrack *rider.Track, riderGrid *grid.Grid, cfg Config) (*MatchedTrack, error) {
	if err := checkPreconditions(riderTrack, refTrack); err != nil {
		return nil, err
	}

	deltas := make([]float64, len(refTrack.Points))
	points := snapCore(fromReference(refTrack.Points), deltas, fromRider(riderTrack.Points), riderGrid, cfg)
	return &MatchedTrack{RiderID: riderTrack.ID, Variant: riderTrack.Variant, Points: points}, nil
}

// snapCore implements spec.md §4.6 over planar points: 9-cell candidate
// gathering, batched squared-distance evaluation, the monotonic-progress
// clamp, and the direction_similarity formula.
func snapCore(moving []planarPoint, movingDelta []float64, target []planarPoint, g *grid.Grid, cfg Config) []MatchPoint {
	out := make([]MatchPoint, len(moving))
	prev := -1

	for j, mp := range moving {
		cell := g.CellIndex(mp.X, mp.Y)
		var neigh [9]int
		g.Neighbors(cell, &neigh)

		bestIdx := -1
		bestSq := math.Inf(1)
		for _, c := range neigh {
			desc := g.Cells[c]
			candidates := g.Indices[desc.Start : desc.Start+desc.Count]
			for start := 0; start < len(candidates); start += batchWidth {
				end := start + batchWidth
				if end > len(candidates) {
					end = len(candidates)
				}
				batch := candidates[start:end]
				sq := batchedSquaredDistances(mp.X, mp.Y, target, batch)
				for k, d := range sq {
					if d < bestSq {
						bestSq = d
						bestIdx = batch[k]
					}
				}
			}
		}

		lateral := math.Sqrt(bestSq)

		if j > 0 && prev >= 0 && bestIdx+cfg.ContinuityClamp < prev {
			bestIdx = prev
		}

		distZ := mp.Z - target[bestIdx].Z

		dirSim := 0.0
		if j >= 1 && bestIdx >= 1 {
			ux := target[bestIdx].X - target[bestIdx-1].X
			uy := target[bestIdx].Y - target[bestIdx-1].Y
			vx := mp.X - moving[j-1].X
			vy := mp.Y - moving[j-1].Y
			mag := math.Sqrt(ux*ux + uy*uy + vx*vx + vy*vy)
			if mag != 0 {
				dirSim = (ux*vx + uy*vy) / mag
			}
		}

		out[j] = MatchPoint{
			ReferenceIndex:      bestIdx,
			DeltaSeconds:        movingDelta[j],
			Lateral:             lateral,
			DistanceZ:           distZ,
			DirectionSimilarity: dirSim,
		}
		prev = bestIdx
	}

	return out
}

// batchedSquaredDistances evaluates up to batchWidth candidates against
// (px, py) using vectorized element-wise arithmetic (gonum/floats),
// mirroring the original's 8-wide SIMD batching. A shorter final batch
// is handled by the same code, with no separate scalar path.
func batchedSquaredDistances(px, py float64, target []planarPoint, candidates []int) []float64 {
	n := len(candidates)
	dx := make([]float64, n)
	dy := make([]float64, n)
	for i, idx := range candidates {
		dx[i] = px - target[idx].X
		dy[i] = py - target[idx].Y
	}
	dx2 := make([]float64, n)
	dy2 := make([]float64, n)
	floats.MulTo(dx2, dx, dx)
	floats.MulTo(dy2, dy, dy)
	out := make([]float64, n)
	floats.AddTo(out, dx2, dy2)
	return out
}
