// Command trackmatch snaps a rider's GPX track onto a reference course
// track, classifies each matched point's severity, and optionally
// renders a deviation chart.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/banshee-data/trackmatch/internal/config"
	"github.com/banshee-data/trackmatch/internal/track/geo"
	"github.com/banshee-data/trackmatch/internal/track/pipeline"
	"github.com/banshee-data/trackmatch/internal/track/report"
	"github.com/banshee-data/trackmatch/internal/track/rider"
	"github.com/banshee-data/trackmatch/internal/track/severity"
	"github.com/banshee-data/trackmatch/internal/version"
)

// Config holds every command-line-configurable input for one
// reference/rider match, following algo-compare's flag-backed Config
// struct.
type Config struct {
	ReferencePath  string
	RiderPath      string
	SourceCRS      string
	DestinationCRS string
	TuningPath     string
	RiderIDFlag    string
	Variant        uint
	JSONOut        string
	ReportPNG      string
	ReportHTML     string
	Verbose        bool
	ShowVersion    bool
}

func parseFlags() Config {
	cfg := Config{}
	flag.StringVar(&cfg.ReferencePath, "reference", "", "Path to the reference course GPX file")
	flag.StringVar(&cfg.RiderPath, "rider", "", "Path to the rider GPX file")
	flag.StringVar(&cfg.SourceCRS, "source-crs", "EPSG:4326", "Source CRS of the GPX samples")
	flag.StringVar(&cfg.DestinationCRS, "dest-crs", "EPSG:3857", "Destination planar CRS for matching")
	flag.StringVar(&cfg.TuningPath, "config", "", "Path to a tuning JSON config (defaults to config/tuning.defaults.json)")
	flag.StringVar(&cfg.RiderIDFlag, "rider-id", "", "Explicit rider UUID (default: derived from filename, or a new UUID)")
	flag.UintVar(&cfg.Variant, "variant", 0, "Rider variant tag")
	flag.StringVar(&cfg.JSONOut, "json", "", "Write the classified result as JSON to this path")
	flag.StringVar(&cfg.ReportPNG, "report-png", "", "Write a PNG deviation chart to this path")
	flag.StringVar(&cfg.ReportHTML, "report-html", "", "Write an interactive HTML deviation chart to this path")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "Print version and exit")
	flag.Parse()
	return cfg
}

func main() {
	cfg := parseFlags()

	if cfg.ShowVersion {
		fmt.Printf("trackmatch %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if cfg.ReferencePath == "" || cfg.RiderPath == "" {
		log.Fatal("both -reference and -rider are required")
	}

	result, err := run(cfg)
	if err != nil {
		log.Fatalf("trackmatch: %v", err)
	}

	printSummary(result)

	if cfg.JSONOut != "" {
		if err := exportJSON(result, cfg.JSONOut); err != nil {
			log.Printf("warning: failed to export JSON: %v", err)
		} else {
			log.Printf("results exported to: %s", cfg.JSONOut)
		}
	}

	if cfg.ReportPNG != "" {
		if err := report.PlotPNG(cfg.ReportPNG, result.Matched, result.Reference, result.Severities); err != nil {
			log.Printf("warning: failed to write PNG report: %v", err)
		} else {
			log.Printf("PNG report written to: %s", cfg.ReportPNG)
		}
	}

	if cfg.ReportHTML != "" {
		f, err := os.Create(cfg.ReportHTML)
		if err != nil {
			log.Printf("warning: failed to create HTML report: %v", err)
		} else {
			defer f.Close()
			if err := report.RenderHTML(f, result.Matched, result.Reference, result.Severities); err != nil {
				log.Printf("warning: failed to write HTML report: %v", err)
			} else {
				log.Printf("HTML report written to: %s", cfg.ReportHTML)
			}
		}
	}
}

func run(cfg Config) (*pipeline.Result, error) {
	var tuning *config.TuningConfig
	if cfg.TuningPath != "" {
		loaded, err := config.LoadTuningConfig(cfg.TuningPath)
		if err != nil {
			return nil, fmt.Errorf("load tuning config: %w", err)
		}
		tuning = loaded
	} else {
		tuning = config.MustLoadDefaultConfig()
	}

	projector := geo.NewProjProjector()
	defer projector.Close()

	pcfg := pipeline.NewConfig(tuning, cfg.SourceCRS, cfg.DestinationCRS, projector)

	refFile, err := os.Open(cfg.ReferencePath)
	if err != nil {
		return nil, fmt.Errorf("open reference file: %w", err)
	}
	defer refFile.Close()

	refTrack, err := pipeline.LoadReference(pcfg, cfg.ReferencePath, cfg.ReferencePath, refFile)
	if err != nil {
		return nil, fmt.Errorf("build reference track: %w", err)
	}

	riderFile, err := os.Open(cfg.RiderPath)
	if err != nil {
		return nil, fmt.Errorf("open rider file: %w", err)
	}
	defer riderFile.Close()

	riderID, variant := riderIdentity(cfg)

	riderTrack, err := pipeline.LoadRider(pcfg, riderID, variant, refTrack, cfg.RiderPath, riderFile)
	if err != nil {
		return nil, fmt.Errorf("build rider track: %w", err)
	}

	if cfg.Verbose {
		log.Printf("reference %q: %d points; rider %s: %d points", refTrack.Class, len(refTrack.Points), riderID, len(riderTrack.Points))
	}

	result, err := pipeline.Run(pcfg, refTrack, riderTrack)
	if err != nil {
		return nil, fmt.Errorf("match rider against reference: %w", err)
	}
	return result, nil
}

// riderIdentity resolves the rider UUID and variant from, in order: an
// explicit -rider-id flag, the "{day}_{bib}_{variant}" filename
// convention, or a freshly generated UUID with the -variant flag value.
func riderIdentity(cfg Config) (uuid.UUID, uint32) {
	variant := uint32(cfg.Variant)

	if cfg.RiderIDFlag != "" {
		if id, err := uuid.Parse(cfg.RiderIDFlag); err == nil {
			return id, variant
		}
		log.Printf("warning: -rider-id %q is not a valid UUID, generating one instead", cfg.RiderIDFlag)
	}

	if bib, fileVariant, err := rider.IdentityFromFilename(cfg.RiderPath); err == nil {
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("bib-%d", bib))), fileVariant
	}

	return uuid.New(), variant
}

func printSummary(result *pipeline.Result) {
	fmt.Println("\n=== Track Match Summary ===")
	fmt.Printf("Reference: %s (%d points)\n", result.Reference.Class, len(result.Reference.Points))
	fmt.Printf("Rider: %s (%d points)\n", result.Matched.RiderID, len(result.Matched.Points))

	counts := make(map[severity.Severity]int)
	for _, s := range result.Severities {
		counts[s]++
	}
	fmt.Println("\n--- Severity breakdown ---")
	for _, s := range []severity.Severity{severity.Ok, severity.Minor, severity.Moderate, severity.Severe, severity.Max} {
		fmt.Printf("%-10s %d\n", s, counts[s])
	}

	fmt.Println("\n--- Lateral deviation ---")
	fmt.Printf("p50: %.3fm  p95: %.3fm  p99: %.3fm\n", result.Summary.P50, result.Summary.P95, result.Summary.P99)
}

// jsonResult is the flattened, JSON-friendly projection of pipeline.Result.
type jsonResult struct {
	ReferenceClass string           `json:"reference_class"`
	RiderID        string           `json:"rider_id"`
	Variant        uint32           `json:"variant"`
	Summary        severity.Summary `json:"summary"`
	Points         []jsonPoint      `json:"points"`
	SeverityCounts map[string]int   `json:"severity_counts"`
}

type jsonPoint struct {
	ReferenceIndex      int     `json:"reference_index"`
	DeltaSeconds        float64 `json:"delta_seconds"`
	Lateral             float64 `json:"lateral"`
	DistanceZ           float64 `json:"distance_z"`
	DirectionSimilarity float64 `json:"direction_similarity"`
	CountToError        bool    `json:"count_to_error"`
	Severity            string  `json:"severity"`
}

func exportJSON(result *pipeline.Result, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	out := jsonResult{
		ReferenceClass: result.Reference.Class,
		RiderID:        result.Matched.RiderID.String(),
		Variant:        result.Matched.Variant,
		Summary:        result.Summary,
		Points:         make([]jsonPoint, len(result.Matched.Points)),
		SeverityCounts: make(map[string]int),
	}
	for i, p := range result.Matched.Points {
		s := result.Severities[i]
		out.Points[i] = jsonPoint{
			ReferenceIndex:      p.ReferenceIndex,
			DeltaSeconds:        p.DeltaSeconds,
			Lateral:             p.Lateral,
			DistanceZ:           p.DistanceZ,
			DirectionSimilarity: p.DirectionSimilarity,
			CountToError:        p.CountToError,
			Severity:            s.String(),
		}
		out.SeverityCounts[s.String()]++
	}

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
