// Package job coordinates one end-to-end render: validate the request,
// allocate a workspace, materialize the project, drive the pipeline,
// relocate the artifact to durable storage and guarantee cleanup on every
// exit path.
package job

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"motion/internal/pkg/errors"
)

// Defaults applied to absent request fields.
const (
	DefaultDurationSeconds = 5.0
	DefaultWidth           = 1080
	DefaultHeight          = 1920
	DefaultFPS             = 30
)

// Request is a validated, strongly-typed render request. It is immutable
// once accepted; Normalize returns the accepted form.
type Request struct {
	SourceCode      string
	CompositionID   string
	DurationSeconds float64
	Width           int
	Height          int
	FPS             int
}

// Normalize checks the required fields and fills defaults for the optional
// ones. It runs before any side-effecting work: a request that fails here
// never touches the filesystem.
func (r Request) Normalize() (Request, error) {
	if strings.TrimSpace(r.SourceCode) == "" {
		return r, errors.Validation("tsx_code is required")
	}
	if strings.TrimSpace(r.CompositionID) == "" {
		return r, errors.Validation("composition_id is required")
	}

	if r.DurationSeconds < 0 {
		return r, errors.Validationf("duration must be positive, got %v", r.DurationSeconds)
	}
	if r.Width < 0 || r.Height < 0 {
		return r, errors.Validationf("dimensions must be positive, got %dx%d", r.Width, r.Height)
	}
	if r.FPS < 0 {
		return r, errors.Validationf("fps must be positive, got %d", r.FPS)
	}

	if r.DurationSeconds == 0 {
		r.DurationSeconds = DefaultDurationSeconds
	}
	if r.Width == 0 {
		r.Width = DefaultWidth
	}
	if r.Height == 0 {
		r.Height = DefaultHeight
	}
	if r.FPS == 0 {
		r.FPS = DefaultFPS
	}

	return r, nil
}

// Result is the outcome of one successful render job.
type Result struct {
	JobID      string
	Filename   string
	OutputPath string
	ByteSize   int64
	Elapsed    time.Duration
	// DurationSeconds is the accepted (post-default) video duration.
	DurationSeconds float64
}

// FileSizeMB returns the artifact size in megabytes, rounded to two
// decimals, the unit the HTTP response reports.
func (r *Result) FileSizeMB() float64 {
	mb := float64(r.ByteSize) / (1024 * 1024)
	return float64(int(mb*100+0.5)) / 100
}

// lastJobStamp makes the timestamp component strictly increasing so
// identical composition ids submitted in the same instant still get
// distinct job ids and output filenames.
var lastJobStamp atomic.Int64

// NewJobID derives a job id from the composition id and the submission
// instant. It is also the output filename stem, so rendered files sort by
// submission time.
func NewJobID(compositionID string) string {
	stamp := time.Now().UnixNano()
	for {
		last := lastJobStamp.Load()
		if stamp <= last {
			stamp = last + 1
		}
		if lastJobStamp.CompareAndSwap(last, stamp) {
			break
		}
	}
	return fmt.Sprintf("%s_%d", compositionID, stamp)
}

// State is a render job lifecycle state.
type State string

const (
	StateReceived            State = "received"
	StateValidated           State = "validated"
	StateWorkspacePrepared   State = "workspace_prepared"
	StateProjectMaterialized State = "project_materialized"
	StateBundled             State = "bundled"
	StateCompositionResolved State = "composition_resolved"
	StateEncoded             State = "encoded"
	StateCompleted           State = "completed"
	StateFailed              State = "failed"
)
