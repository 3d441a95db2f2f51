// Package project writes the minimal self-contained Remotion project a
// render job is built from: the caller's component source, verbatim, plus a
// synthesized entry point that registers exactly one composition.
package project

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"motion/internal/pkg/errors"
	"motion/internal/render/workspace"
)

const (
	componentFile = "Component.tsx"
	entryFile     = "index.tsx"
)

// Timing carries the request-supplied geometry and timing the entry point
// registers the composition with.
type Timing struct {
	DurationSeconds float64
	FPS             int
	Width           int
	Height          int
}

// DurationInFrames computes the registered frame count.
func (t Timing) DurationInFrames() int {
	return int(math.Round(t.DurationSeconds * float64(t.FPS)))
}

// The component must follow the generation contract: a default-exported
// React component plus an exported compositionConfig object. The entry
// spreads compositionConfig first so request parameters win.
const entryTemplate = `import React from 'react';
import { Composition, registerRoot } from 'remotion';
import Component, { compositionConfig } from './Component';

export const RemotionRoot: React.FC = () => {
  return (
    <Composition
      {...compositionConfig}
      id=%q
      component={Component}
      durationInFrames={%d}
      fps={%d}
      width={%d}
      height={%d}
    />
  );
};

registerRoot(RemotionRoot);
`

// Materialize writes the component and entry files into the workspace and
// returns the entry point path. The source is written as received; this
// layer does not validate or sandbox it.
func Materialize(ws *workspace.Workspace, sourceCode, compositionID string, t Timing) (string, error) {
	componentPath := filepath.Join(ws.SourceDir, componentFile)
	if err := os.WriteFile(componentPath, []byte(sourceCode), 0o644); err != nil {
		return "", errors.IO("project.component", err)
	}

	entry := fmt.Sprintf(entryTemplate,
		compositionID,
		t.DurationInFrames(),
		t.FPS,
		t.Width,
		t.Height,
	)

	entryPath := filepath.Join(ws.SourceDir, entryFile)
	if err := os.WriteFile(entryPath, []byte(entry), 0o644); err != nil {
		return "", errors.IO("project.entry", err)
	}

	return entryPath, nil
}
