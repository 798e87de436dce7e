// Package severity classifies each matched point into an ordered
// severity class and filters out isolated single-sample outliers.
package severity

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/trackmatch/internal/config"
	"github.com/banshee-data/trackmatch/internal/track/snap"
)

// Severity is an ordered classification of how far a matched point
// deviates from expected course behavior.
type Severity int

const (
	Ok Severity = iota
	Minor
	Moderate
	Severe
	Max
)

func (s Severity) String() string {
	switch s {
	case Ok:
		return "Ok"
	case Minor:
		return "Minor"
	case Moderate:
		return "Moderate"
	case Severe:
		return "Severe"
	case Max:
		return "Max"
	default:
		return "Unknown"
	}
}

// Config holds the lateral/directional classification thresholds
// (spec.md §3 AnalysisConfig).
type Config struct {
	AllowedDeviance        float64
	IncrementalSeverity    float64
	DirectionalDeviance    float64
	MinimumContinuousError int
}

// ConfigFromTuning builds a Config from a loaded TuningConfig, the way
// l3grid.BackgroundConfigFromTuning builds a BackgroundConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		AllowedDeviance:        cfg.GetAllowedDeviance(),
		IncrementalSeverity:    cfg.GetIncrementalSeverity(),
		DirectionalDeviance:    cfg.GetDirectionalDeviance(),
		MinimumContinuousError: cfg.GetMinimumContinuousError(),
	}
}

func capSeverity(raw float64) Severity {
	if raw < float64(Ok) {
		return Ok
	}
	if raw >= float64(Max) {
		return Max
	}
	return Severity(raw)
}

// classifyLateral implements spec.md §4.7's lateral ladder:
// raw = floor(round(deviance) / round(incremental_severity)) + 1, both
// operands pre-rounded to integers before the divide — matching
// analysis.rs::classify_lateral's `as u32` truncation-after-round, the
// same treatment classifyDirectional gives its own ladder.
func classifyLateral(lateral float64, cfg Config) Severity {
	if lateral <= cfg.AllowedDeviance {
		return Ok
	}
	deviance := math.Round(lateral - cfg.AllowedDeviance)
	incRounded := math.Round(cfg.IncrementalSeverity)
	// A deviance that rounds to zero is zero whole steps past the
	// allowance (Minor), even when incremental_severity rounds to zero.
	steps := 0.0
	if deviance > 0 {
		steps = math.Floor(deviance / incRounded)
	}
	raw := steps + 1
	return capSeverity(raw)
}

// classifyDirectional implements spec.md §4.7's directional ladder. The
// original's `((gap / incremental_severity.round() / 10) + 0.1) * 10`
// formula reduces exactly to round(gap / round(incremental_severity) + 1)
// (see DESIGN.md); reproduced here in the reduced form.
func classifyDirectional(directionSimilarity float64, cfg Config) Severity {
	if directionSimilarity <= 0 {
		return Max
	}
	if directionSimilarity >= cfg.DirectionalDeviance {
		return Ok
	}
	gap := cfg.DirectionalDeviance - directionSimilarity
	incRounded := math.Round(cfg.IncrementalSeverity)
	raw := math.Round(gap/incRounded + 1)
	return capSeverity(raw)
}

// combine takes the worse of the lateral and directional classifications
// for a single point — either deviation alone is sufficient to flag it.
func combine(lateral, directional Severity) Severity {
	if directional > lateral {
		return directional
	}
	return lateral
}

// Classify produces an ordered Severity per MatchPoint in mt, then
// applies the continuous-run filter (spec.md §4.7): runs of non-Ok
// entries shorter than cfg.MinimumContinuousError are reset to Ok: all
// other runs are kept and have CountToError set to true in mt.Points.
func Classify(mt *snap.MatchedTrack, cfg Config) []Severity {
	severities := make([]Severity, len(mt.Points))
	for i, m := range mt.Points {
		severities[i] = combine(classifyLateral(m.Lateral, cfg), classifyDirectional(m.DirectionSimilarity, cfg))
	}

	filterRuns(severities, mt.Points, cfg.MinimumContinuousError)
	return severities
}

// filterRuns walks the severity sequence, finding maximal runs of
// consecutive non-Ok entries. A run shorter than minRun is reset to Ok;
// a run that meets the threshold is kept and CountToError is set on each
// of its points. A run still open at the end of the sequence is subject
// to the same rule.
func filterRuns(severities []Severity, points []snap.MatchPoint, minRun int) {
	n := len(severities)
	i := 0
	for i < n {
		if severities[i] == Ok {
			i++
			continue
		}
		start := i
		for i < n && severities[i] != Ok {
			i++
		}
		runLen := i - start
		if runLen >= minRun {
			for k := start; k < i; k++ {
				points[k].CountToError = true
			}
		} else {
			for k := start; k < i; k++ {
				severities[k] = Ok
			}
		}
	}
}

// Summary holds p50/p95/p99 lateral-deviation statistics over a
// classified track, following internal/db/db.go's use of gonum/stat.
type Summary struct {
	P50, P95, P99 float64
}

// Summarize computes lateral-deviation quantiles for a matched track.
// Samples must be sorted ascending before calling stat.Quantile.
func Summarize(mt *snap.MatchedTrack) Summary {
	lateral := make([]float64, len(mt.Points))
	for i, m := range mt.Points {
		lateral[i] = m.Lateral
	}
	sort.Float64s(lateral)

	return Summary{
		P50: stat.Quantile(0.50, stat.Empirical, lateral, nil),
		P95: stat.Quantile(0.95, stat.Empirical, lateral, nil),
		P99: stat.Quantile(0.99, stat.Empirical, lateral, nil),
	}
}
