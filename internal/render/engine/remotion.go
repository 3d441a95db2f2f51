package engine

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"motion/internal/pkg/errors"
	"motion/internal/pkg/logger"
)

var (
	// "Bundling (42%)" or "bundling 42%"
	bundlePercentRe = regexp.MustCompile(`(\d{1,3})%`)
	// "Rendered 45/90"
	renderedFramesRe = regexp.MustCompile(`Rendered (\d+)/(\d+)`)
)

// RemotionCLI drives the Remotion command line tool as an external process.
// Each phase is one invocation; state between phases lives on disk inside
// the job workspace.
type RemotionCLI struct {
	command  string
	baseArgs []string
	log      *logger.Logger
}

func NewRemotionCLI(command string, baseArgs []string, log *logger.Logger) *RemotionCLI {
	if log == nil {
		log = logger.NewDefault()
	}
	return &RemotionCLI{
		command:  command,
		baseArgs: baseArgs,
		log:      log.WithComponent("remotion"),
	}
}

func (r *RemotionCLI) Bundle(ctx context.Context, entryPoint, outDir string, progress ProgressFunc) (string, error) {
	args := append([]string{}, r.baseArgs...)
	args = append(args, "bundle", entryPoint, "--out-dir", outDir, "--log", "info")

	err := r.run(ctx, args, func(line string) {
		if progress == nil {
			return
		}
		if m := bundlePercentRe.FindStringSubmatch(line); m != nil {
			if pct, err := strconv.Atoi(m[1]); err == nil && pct <= 100 {
				progress(float64(pct) / 100)
			}
		}
	})
	if err != nil {
		return "", errors.Pipeline("engine.bundle", err)
	}

	if progress != nil {
		progress(1)
	}
	return outDir, nil
}

func (r *RemotionCLI) ResolveComposition(ctx context.Context, bundleRef, compositionID string) (*Composition, error) {
	args := append([]string{}, r.baseArgs...)
	args = append(args, "compositions", bundleRef, "--quiet")

	var ids []string
	err := r.run(ctx, args, func(line string) {
		id := strings.TrimSpace(line)
		if id != "" {
			ids = append(ids, id)
		}
	})
	if err != nil {
		return nil, errors.Pipeline("engine.compositions", err)
	}

	for _, id := range ids {
		if id == compositionID {
			return &Composition{ID: id}, nil
		}
	}

	return nil, errors.NotFound("composition", compositionID).
		WithField("registered", strings.Join(ids, ","))
}

func (r *RemotionCLI) RenderMedia(ctx context.Context, spec RenderSpec, progress ProgressFunc) error {
	args := append([]string{}, r.baseArgs...)
	args = append(args, renderArgs(spec)...)

	err := r.run(ctx, args, func(line string) {
		if progress == nil {
			return
		}
		if m := renderedFramesRe.FindStringSubmatch(line); m != nil {
			done, err1 := strconv.Atoi(m[1])
			total, err2 := strconv.Atoi(m[2])
			if err1 == nil && err2 == nil && total > 0 {
				progress(float64(done) / float64(total))
			}
		}
	})
	if err != nil {
		return errors.Pipeline("engine.render", err)
	}

	if progress != nil {
		progress(1)
	}
	return nil
}

// renderArgs builds the encode invocation. The codec profile is fixed to
// H.264; request geometry and frame range override composition defaults.
func renderArgs(spec RenderSpec) []string {
	args := []string{
		"render", spec.BundleRef, spec.CompositionID, spec.OutputPath,
		"--codec", "h264",
		"--log", "info",
	}
	if spec.Width > 0 {
		args = append(args, "--width", strconv.Itoa(spec.Width))
	}
	if spec.Height > 0 {
		args = append(args, "--height", strconv.Itoa(spec.Height))
	}
	if spec.DurationInFrames > 0 {
		args = append(args, "--frames", fmt.Sprintf("0-%d", spec.DurationInFrames-1))
	}
	return args
}

// run executes one CLI invocation, feeding every output line to onLine. On a
// non-zero exit the error message carries the tail of the output, which is
// where the CLI prints its diagnostics.
func (r *RemotionCLI) run(ctx context.Context, args []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, r.command, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = cmd.Stdout

	r.log.Debug("engine invocation", "args", strings.Join(args, " "))

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", r.command, err)
	}

	var (
		mu   sync.Mutex
		tail []string
	)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		mu.Lock()
		tail = append(tail, line)
		if len(tail) > 20 {
			tail = tail[1:]
		}
		mu.Unlock()

		if onLine != nil {
			onLine(line)
		}
	}

	if err := cmd.Wait(); err != nil {
		mu.Lock()
		out := strings.TrimSpace(strings.Join(tail, "\n"))
		mu.Unlock()
		if out != "" {
			return fmt.Errorf("%s %s: %w: %s", r.command, args[0], err, out)
		}
		return fmt.Errorf("%s %s: %w", r.command, args[0], err)
	}

	return nil
}
