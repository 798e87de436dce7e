// Package geo projects geographic samples (longitude, latitude) into a
// local planar coordinate reference system.
package geo

import (
	"fmt"
	"sync"

	"github.com/twpayne/go-proj/v10"

	"github.com/banshee-data/trackmatch/internal/track/trackerr"
)

// Projector maps a (lon, lat) pair in a named source CRS to a planar
// (x, y) pair in a named destination CRS. Implementations are acquired
// lazily per (source, destination) pair and may be reused across
// samples within one track build (spec.md §4.2/§9); callers that fan a
// build out across goroutines should acquire one Projector per
// goroutine rather than share an instance unless the implementation
// documents thread safety.
type Projector interface {
	Project(source, destination string, lon, lat float64) (x, y float64, err error)
}

// ProjProjector is the production Projector, backed by the PROJ C
// library via cgo bindings. A *proj.PJ is expensive to construct, so one
// is cached per (source, destination) CRS pair and reused for the
// lifetime of the ProjProjector.
type ProjProjector struct {
	mu    sync.Mutex
	cache map[crsPair]*proj.PJ
}

type crsPair struct {
	source, destination string
}

// NewProjProjector returns a Projector with an empty transformation
// cache.
func NewProjProjector() *ProjProjector {
	return &ProjProjector{cache: make(map[crsPair]*proj.PJ)}
}

// Project implements Projector.
func (p *ProjProjector) Project(source, destination string, lon, lat float64) (float64, float64, error) {
	pj, err := p.transformation(source, destination)
	if err != nil {
		return 0, 0, &trackerr.CoordinateConversionError{
			Origin: source, Destination: destination, Lon: lon, Lat: lat,
			Reason: "failed to acquire transformation", Cause: err,
		}
	}

	coord, err := pj.Forward(proj.NewCoord(lon, lat, 0, 0))
	if err != nil {
		return 0, 0, &trackerr.CoordinateConversionError{
			Origin: source, Destination: destination, Lon: lon, Lat: lat,
			Reason: "forward transform failed", Cause: err,
		}
	}
	return coord.X(), coord.Y(), nil
}

// transformation returns the cached *proj.PJ for (source, destination),
// constructing and caching one if this is the first request for the pair.
func (p *ProjProjector) transformation(source, destination string) (*proj.PJ, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := crsPair{source, destination}
	if pj, ok := p.cache[key]; ok {
		return pj, nil
	}

	pj, err := proj.NewCRSToCRS(source, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("create transformation %s -> %s: %w", source, destination, err)
	}
	p.cache[key] = pj
	return pj, nil
}

// Close releases every cached transformation. Call once the Projector is
// no longer needed.
func (p *ProjProjector) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, pj := range p.cache {
		pj.Destroy()
		delete(p.cache, k)
	}
}
