package job

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/semaphore"

	"motion/internal/metrics"
	"motion/internal/pkg/errors"
	"motion/internal/pkg/logger"
	"motion/internal/ports"
	"motion/internal/render/pipeline"
	"motion/internal/render/project"
	"motion/internal/render/workspace"
)

// Deps wires the coordinator's collaborators.
type Deps struct {
	Workspaces *workspace.Manager
	Driver     *pipeline.Driver
	Store      ports.ObjectStore
	// OutputDir is the durable directory the store is rooted at, reported
	// back to callers as the artifact path.
	OutputDir string
	// MaxConcurrent bounds simultaneous renders; zero means unbounded.
	MaxConcurrent int64
	Metrics       *metrics.Metrics
	Log           *logger.Logger
}

// Coordinator runs render jobs. Jobs are independent: the only shared state
// is the filesystem namespace, partitioned by unique workspace paths.
type Coordinator struct {
	workspaces *workspace.Manager
	driver     *pipeline.Driver
	store      ports.ObjectStore
	outputDir  string
	sem        *semaphore.Weighted
	metrics    *metrics.Metrics
	log        *logger.Logger
}

func NewCoordinator(d Deps) *Coordinator {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}

	var sem *semaphore.Weighted
	if d.MaxConcurrent > 0 {
		sem = semaphore.NewWeighted(d.MaxConcurrent)
	}

	return &Coordinator{
		workspaces: d.Workspaces,
		driver:     d.Driver,
		store:      d.Store,
		outputDir:  d.OutputDir,
		sem:        sem,
		metrics:    d.Metrics,
		log:        log.WithComponent("coordinator"),
	}
}

// Run executes one render job end to end. The workspace is destroyed on
// every exit path; only the relocated artifact survives. Errors keep their
// original message all the way to the caller.
func (c *Coordinator) Run(ctx context.Context, req Request) (*Result, error) {
	log := c.log.FromContext(ctx)
	c.transition(log, StateReceived)

	req, err := req.Normalize()
	if err != nil {
		// Nothing was created yet; no cleanup to run.
		return nil, err
	}

	jobID := NewJobID(req.CompositionID)
	ctx = logger.ContextWithJobID(ctx, jobID)
	log = log.WithJobID(jobID)
	c.transition(log, StateValidated)

	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return nil, c.fail(log, errors.WrapWithCode(err, errors.CodeUnavailable,
				"job.admit", "could not acquire render slot"))
		}
		defer c.sem.Release(1)
	}

	if c.metrics != nil {
		c.metrics.RendersInFlight.Inc()
		defer c.metrics.RendersInFlight.Dec()
	}

	start := time.Now()

	ws, err := c.workspaces.Create(jobID)
	if err != nil {
		return nil, c.fail(log, err)
	}
	// Scoped acquisition: the workspace dies with the job, success or not.
	defer c.workspaces.Destroy(ws)
	c.transition(log, StateWorkspacePrepared)

	timing := project.Timing{
		DurationSeconds: req.DurationSeconds,
		FPS:             req.FPS,
		Width:           req.Width,
		Height:          req.Height,
	}
	entryPoint, err := project.Materialize(ws, req.SourceCode, req.CompositionID, timing)
	if err != nil {
		return nil, c.fail(log, err)
	}
	c.transition(log, StateProjectMaterialized)

	filename := jobID + ".mp4"
	out, err := c.driver.Render(ctx, pipeline.Spec{
		EntryPoint:       entryPoint,
		BundleDir:        ws.BundleDir(),
		CompositionID:    req.CompositionID,
		Width:            req.Width,
		Height:           req.Height,
		FPS:              req.FPS,
		DurationInFrames: timing.DurationInFrames(),
		OutputPath:       ws.OutputPath(filename),
		OnPhase: func(phase string) {
			switch phase {
			case pipeline.PhaseBundled:
				c.transition(log, StateBundled)
			case pipeline.PhaseResolved:
				c.transition(log, StateCompositionResolved)
			case pipeline.PhaseEncoded:
				c.transition(log, StateEncoded)
			}
		},
	})
	if err != nil {
		return nil, c.fail(log, err)
	}

	size, err := c.relocate(ctx, out.Path, filename, out.Size)
	if err != nil {
		return nil, c.fail(log, err)
	}

	elapsed := time.Since(start)
	c.transition(log, StateCompleted)

	if c.metrics != nil {
		c.metrics.ObserveSuccess(elapsed.Seconds(), size)
	}

	result := &Result{
		JobID:           jobID,
		Filename:        filename,
		OutputPath:      filepath.Join(c.outputDir, filename),
		ByteSize:        size,
		Elapsed:         elapsed,
		DurationSeconds: req.DurationSeconds,
	}

	log.Info("render job completed",
		"filename", result.Filename,
		"size_bytes", result.ByteSize,
		"duration_ms", elapsed.Milliseconds(),
	)
	return result, nil
}

// relocate moves the encoded file out of the workspace into the durable
// store before the deferred teardown deletes it.
func (c *Coordinator) relocate(ctx context.Context, src, filename string, size int64) (int64, error) {
	f, err := os.Open(src)
	if err != nil {
		return 0, errors.IO("job.relocate", err)
	}
	defer f.Close()

	put, err := c.store.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   filename,
		ContentType: "video/mp4",
		Reader:      f,
		Size:        size,
	})
	if err != nil {
		return 0, errors.IO("job.relocate", err)
	}

	return put.Size, nil
}

func (c *Coordinator) transition(log *logger.Logger, state State) {
	log.Debug("job state", "state", string(state))
}

// fail records the Failed terminal state and hands the original error back
// untouched. The deferred workspace teardown still runs in the caller.
func (c *Coordinator) fail(log *logger.Logger, err error) error {
	log.Error("job failed",
		"state", string(StateFailed),
		"code", string(errors.GetCode(err)),
		"error", err.Error(),
	)
	if c.metrics != nil {
		c.metrics.ObserveFailure()
	}
	return err
}
