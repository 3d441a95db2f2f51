// Package engine abstracts the external rendering engine behind the three
// phases the pipeline drives: bundle, composition resolution and media
// encoding. The production implementation shells out to the Remotion CLI;
// tests substitute a stub.
package engine

import "context"

// ProgressFunc receives fractional progress in [0,1] for a phase.
type ProgressFunc func(fraction float64)

// Composition is the resolved descriptor of a registered composition.
type Composition struct {
	ID               string
	Width            int
	Height           int
	FPS              int
	DurationInFrames int
}

// RenderSpec describes one encode invocation. Geometry and timing come from
// the request and override whatever the composition registered.
type RenderSpec struct {
	BundleRef        string
	CompositionID    string
	Width            int
	Height           int
	FPS              int
	DurationInFrames int
	OutputPath       string
}

// Engine is the external renderer. Each method is one pipeline phase; every
// call is independently failable and none retries.
type Engine interface {
	// Bundle compiles the materialized project at entryPoint into a
	// servable artifact under outDir and returns its location.
	Bundle(ctx context.Context, entryPoint, outDir string, progress ProgressFunc) (string, error)

	// ResolveComposition looks up compositionID inside the bundle. A
	// missing id yields a NOT_FOUND-coded error.
	ResolveComposition(ctx context.Context, bundleRef, compositionID string) (*Composition, error)

	// RenderMedia encodes the composition to spec.OutputPath as H.264 MP4.
	RenderMedia(ctx context.Context, spec RenderSpec, progress ProgressFunc) error
}
