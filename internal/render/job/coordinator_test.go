package job

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"

	"motion/internal/adapters/store/localfs"
	"motion/internal/pkg/errors"
	"motion/internal/pkg/logger"
	"motion/internal/render/engine"
	"motion/internal/render/pipeline"
	"motion/internal/render/workspace"
)

// stubEngine renders a fixed payload; resolution fails for ids not in the
// registered set, like the real engine does for an unregistered composition.
type stubEngine struct {
	registered map[string]bool
	payload    []byte
}

func (s *stubEngine) Bundle(ctx context.Context, entryPoint, outDir string, progress engine.ProgressFunc) (string, error) {
	// The entry point must exist: the materializer ran before us.
	if _, err := os.Stat(entryPoint); err != nil {
		return "", err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	return outDir, nil
}

func (s *stubEngine) ResolveComposition(ctx context.Context, bundleRef, compositionID string) (*engine.Composition, error) {
	if !s.registered[compositionID] {
		return nil, errors.NotFound("composition", compositionID)
	}
	return &engine.Composition{ID: compositionID}, nil
}

func (s *stubEngine) RenderMedia(ctx context.Context, spec engine.RenderSpec, progress engine.ProgressFunc) error {
	return os.WriteFile(spec.OutputPath, s.payload, 0o644)
}

type fixture struct {
	coordinator *Coordinator
	workDir     string
	outputDir   string
}

func newFixture(t *testing.T, registered ...string) *fixture {
	t.Helper()

	workDir := t.TempDir()
	outputDir := t.TempDir()
	log := logger.New(logger.Config{Level: "error", Output: os.Stderr})

	reg := make(map[string]bool, len(registered))
	for _, id := range registered {
		reg[id] = true
	}
	eng := &stubEngine{registered: reg, payload: []byte("fake-mp4-payload")}

	c := NewCoordinator(Deps{
		Workspaces:    workspace.NewManager(workDir, log),
		Driver:        pipeline.NewDriver(eng, log),
		Store:         localfs.New(outputDir),
		OutputDir:     outputDir,
		MaxConcurrent: 4,
		Log:           log,
	})

	return &fixture{coordinator: c, workDir: workDir, outputDir: outputDir}
}

func (f *fixture) workspaceCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(f.workDir)
	if err != nil {
		t.Fatalf("read workdir: %v", err)
	}
	return len(entries)
}

const sourceCode = "export const compositionConfig = {};\nexport default () => null;\n"

func TestRunSuccess(t *testing.T) {
	f := newFixture(t, "TestVideo")

	result, err := f.coordinator.Run(context.Background(), Request{
		SourceCode:      sourceCode,
		CompositionID:   "TestVideo",
		DurationSeconds: 3,
		Width:           1080,
		Height:          1920,
		FPS:             30,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if ok, _ := regexp.MatchString(`^TestVideo_\d+\.mp4$`, result.Filename); !ok {
		t.Errorf("unexpected filename %s", result.Filename)
	}
	if result.DurationSeconds != 3 {
		t.Errorf("expected duration 3, got %v", result.DurationSeconds)
	}
	if result.ByteSize != int64(len("fake-mp4-payload")) {
		t.Errorf("unexpected byte size %d", result.ByteSize)
	}
	if result.Elapsed <= 0 {
		t.Error("expected positive elapsed time")
	}

	// The artifact was relocated to the durable output directory.
	data, err := os.ReadFile(filepath.Join(f.outputDir, result.Filename))
	if err != nil {
		t.Fatalf("output file: %v", err)
	}
	if string(data) != "fake-mp4-payload" {
		t.Error("relocated file does not match the encoded bytes")
	}

	// The workspace did not survive the job.
	if n := f.workspaceCount(t); n != 0 {
		t.Errorf("expected 0 workspaces after success, got %d", n)
	}
}

func TestRunAppliesDefaults(t *testing.T) {
	f := newFixture(t, "Clip")

	result, err := f.coordinator.Run(context.Background(), Request{
		SourceCode:    sourceCode,
		CompositionID: "Clip",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.DurationSeconds != DefaultDurationSeconds {
		t.Errorf("expected default duration %v, got %v", DefaultDurationSeconds, result.DurationSeconds)
	}
}

func TestRunValidationTouchesNothing(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  Request
	}{
		{"missing source", Request{CompositionID: "X"}},
		{"missing composition id", Request{SourceCode: sourceCode}},
		{"blank source", Request{SourceCode: "   ", CompositionID: "X"}},
		{"negative duration", Request{SourceCode: sourceCode, CompositionID: "X", DurationSeconds: -1}},
		{"negative fps", Request{SourceCode: sourceCode, CompositionID: "X", FPS: -30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.coordinator.Run(context.Background(), tt.req)
			if !errors.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	if n := f.workspaceCount(t); n != 0 {
		t.Errorf("validation failures must not touch the filesystem, found %d workspaces", n)
	}
	entries, _ := os.ReadDir(f.outputDir)
	if len(entries) != 0 {
		t.Errorf("validation failures must not produce outputs, found %d", len(entries))
	}
}

func TestRunCompositionNotFoundCleansUp(t *testing.T) {
	f := newFixture(t, "Registered")

	_, err := f.coordinator.Run(context.Background(), Request{
		SourceCode:    sourceCode,
		CompositionID: "Unregistered",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.IsNotFound(err) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}

	// Original message survives to the caller.
	if msg := err.Error(); !regexp.MustCompile(`composition not found: Unregistered`).MatchString(msg) {
		t.Errorf("expected original not-found message, got %q", msg)
	}

	if n := f.workspaceCount(t); n != 0 {
		t.Errorf("expected 0 workspaces after failure, got %d", n)
	}
}

func TestRunConcurrentIdenticalRequests(t *testing.T) {
	f := newFixture(t, "SameClip")

	const n = 4
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]bool)
	)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.coordinator.Run(context.Background(), Request{
				SourceCode:    sourceCode,
				CompositionID: "SameClip",
			})
			if err != nil {
				t.Errorf("Run: %v", err)
				return
			}
			mu.Lock()
			results[result.Filename] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(results) != n {
		t.Fatalf("expected %d distinct output files, got %d", n, len(results))
	}
	for filename := range results {
		if _, err := os.Stat(filepath.Join(f.outputDir, filename)); err != nil {
			t.Errorf("missing output %s: %v", filename, err)
		}
	}

	if count := f.workspaceCount(t); count != 0 {
		t.Errorf("expected all workspaces cleaned up, found %d", count)
	}
}

func TestFileSizeMB(t *testing.T) {
	r := &Result{ByteSize: 5 * 1024 * 1024}
	if got := r.FileSizeMB(); got != 5.0 {
		t.Errorf("expected 5.0, got %v", got)
	}

	r = &Result{ByteSize: 1572864} // 1.5 MiB
	if got := r.FileSizeMB(); got != 1.5 {
		t.Errorf("expected 1.5, got %v", got)
	}
}
