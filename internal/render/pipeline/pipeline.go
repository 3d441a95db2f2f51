// Package pipeline drives the three ordered phases of a render: bundle the
// materialized project, resolve the requested composition inside the bundle,
// encode it to MP4. Each phase depends on the previous one's output; any
// failure aborts the rest and propagates unchanged.
package pipeline

import (
	"context"
	"os"

	"motion/internal/pkg/errors"
	"motion/internal/pkg/logger"
	"motion/internal/render/engine"
)

// progressStep is the granularity of progress log lines.
const progressStep = 0.1

// Spec is one full pipeline run.
type Spec struct {
	EntryPoint       string
	BundleDir        string
	CompositionID    string
	Width            int
	Height           int
	FPS              int
	DurationInFrames int
	OutputPath       string

	// OnPhase, when set, is invoked after each phase completes with one of
	// PhaseBundled, PhaseResolved, PhaseEncoded.
	OnPhase func(phase string)
}

// Phase names reported through Spec.OnPhase.
const (
	PhaseBundled  = "bundled"
	PhaseResolved = "resolved"
	PhaseEncoded  = "encoded"
)

func (s Spec) notify(phase string) {
	if s.OnPhase != nil {
		s.OnPhase(phase)
	}
}

// Output reports where the encoded file landed and how big it is.
type Output struct {
	Path string
	Size int64
}

// Driver runs render pipelines against an engine.
type Driver struct {
	engine engine.Engine
	log    *logger.Logger
}

func NewDriver(eng engine.Engine, log *logger.Logger) *Driver {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Driver{
		engine: eng,
		log:    log.WithComponent("pipeline"),
	}
}

// Render executes bundle, resolve and encode in order. There is no internal
// timeout; the transport boundary bounds total wall-clock time.
func (d *Driver) Render(ctx context.Context, spec Spec) (*Output, error) {
	log := d.log.FromContext(ctx)

	log.Debug("bundling project", "entry", spec.EntryPoint)
	bundleRef, err := d.engine.Bundle(ctx, spec.EntryPoint, spec.BundleDir,
		engine.ThrottledProgress(log, "bundle", progressStep))
	if err != nil {
		return nil, err
	}
	log.Debug("bundle complete", "bundle", bundleRef)
	spec.notify(PhaseBundled)

	comp, err := d.engine.ResolveComposition(ctx, bundleRef, spec.CompositionID)
	if err != nil {
		return nil, err
	}
	log.Debug("composition resolved", "composition_id", comp.ID)
	spec.notify(PhaseResolved)

	// Request geometry and timing override whatever the composition
	// registered as defaults.
	renderSpec := engine.RenderSpec{
		BundleRef:        bundleRef,
		CompositionID:    comp.ID,
		Width:            spec.Width,
		Height:           spec.Height,
		FPS:              spec.FPS,
		DurationInFrames: spec.DurationInFrames,
		OutputPath:       spec.OutputPath,
	}
	if err := d.engine.RenderMedia(ctx, renderSpec,
		engine.ThrottledProgress(log, "encode", progressStep)); err != nil {
		return nil, err
	}

	// The engine is an external process; confirm the artifact exists.
	st, err := os.Stat(spec.OutputPath)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodePipeline,
			"pipeline.verify", "encode reported success but output file is missing")
	}

	spec.notify(PhaseEncoded)

	log.Debug("encode complete", "output", spec.OutputPath, "size_bytes", st.Size())
	return &Output{Path: spec.OutputPath, Size: st.Size()}, nil
}
