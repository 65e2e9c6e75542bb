package emotion

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/petmood/internal/conf"
	"github.com/tphakala/petmood/internal/errors"
	"github.com/tphakala/petmood/internal/httpclient"
)

// Registry holds one detector per species. It is built at startup and
// read-only afterwards.
type Registry struct {
	detectors map[Species]*Detector
}

// NewRegistry creates a registry from already built detectors. Species
// without a detector are reported as unavailable.
func NewRegistry(detectors ...*Detector) *Registry {
	r := &Registry{detectors: make(map[Species]*Detector, len(AllSpecies))}
	for _, d := range detectors {
		r.detectors[d.Species()] = d
	}
	for _, sp := range AllSpecies {
		if _, ok := r.detectors[sp]; !ok {
			r.detectors[sp] = NewUnavailable(sp, "no detector configured")
		}
	}
	return r
}

// LoadRegistry loads every species' detector from settings in parallel.
// Models that fail to load yield unavailable detectors, so the returned
// registry is always complete.
func LoadRegistry(ctx context.Context, settings *conf.Settings, client *httpclient.Client, opts ...Option) *Registry {
	detectors := make([]*Detector, len(AllSpecies))

	var g errgroup.Group
	for i, sp := range AllSpecies {
		g.Go(func() error {
			detectors[i] = Load(ctx, ConfigFromSettings(sp, settings), client, opts...)
			return nil
		})
	}
	_ = g.Wait()

	return NewRegistry(detectors...)
}

// Get returns the detector for species.
func (r *Registry) Get(species Species) (*Detector, bool) {
	d, ok := r.detectors[species]
	return d, ok
}

// Detectors returns the detectors in AllSpecies order.
func (r *Registry) Detectors() []*Detector {
	out := make([]*Detector, 0, len(AllSpecies))
	for _, sp := range AllSpecies {
		out = append(out, r.detectors[sp])
	}
	return out
}

// Close releases every backend and the ONNX environment.
func (r *Registry) Close() error {
	var errs []error
	for _, d := range r.Detectors() {
		if err := d.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := DestroyONNXEnvironment(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
