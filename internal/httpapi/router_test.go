package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"motion/internal/adapters/store/localfs"
	"motion/internal/metrics"
	"motion/internal/pkg/errors"
	"motion/internal/pkg/logger"
	"motion/internal/render/engine"
	"motion/internal/render/job"
	"motion/internal/render/pipeline"
	"motion/internal/render/workspace"
)

// stubEngine stands in for the Remotion CLI: it accepts one registered
// composition id and encodes a fixed payload.
type stubEngine struct {
	registered string
	payload    []byte
}

func (s *stubEngine) Bundle(ctx context.Context, entryPoint, outDir string, progress engine.ProgressFunc) (string, error) {
	if _, err := os.Stat(entryPoint); err != nil {
		return "", err
	}
	return outDir, nil
}

func (s *stubEngine) ResolveComposition(ctx context.Context, bundleRef, compositionID string) (*engine.Composition, error) {
	if compositionID != s.registered {
		return nil, errors.NotFound("composition", compositionID)
	}
	return &engine.Composition{ID: compositionID}, nil
}

func (s *stubEngine) RenderMedia(ctx context.Context, spec engine.RenderSpec, progress engine.ProgressFunc) error {
	return os.WriteFile(spec.OutputPath, s.payload, 0o644)
}

type fixture struct {
	server    *httptest.Server
	workDir   string
	outputDir string
}

func newFixture(t *testing.T, exposeStacks bool) *fixture {
	t.Helper()

	workDir := t.TempDir()
	outputDir := t.TempDir()
	log := logger.New(logger.Config{Level: "error", Output: os.Stderr})

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	store := localfs.New(outputDir)
	eng := &stubEngine{registered: "TestVideo", payload: []byte("rendered-video-bytes")}

	coordinator := job.NewCoordinator(job.Deps{
		Workspaces:    workspace.NewManager(workDir, log),
		Driver:        pipeline.NewDriver(eng, log),
		Store:         store,
		OutputDir:     outputDir,
		MaxConcurrent: 2,
		Metrics:       m,
		Log:           log,
	})

	router := NewRouter(Deps{
		Coordinator:  coordinator,
		Store:        store,
		Gatherer:     registry,
		ExposeStacks: exposeStacks,
		Log:          log,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &fixture{server: server, workDir: workDir, outputDir: outputDir}
}

func (f *fixture) postRender(t *testing.T, body map[string]any) (*http.Response, map[string]any) {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	resp, err := http.Post(f.server.URL+"/render", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST /render: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

const sampleSource = "export const compositionConfig = {};\nexport default () => null;\n"

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(t, true)

	resp, err := http.Get(f.server.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
	if body["version"] == "" || body["version"] == nil {
		t.Error("expected a version")
	}
}

func TestRenderSuccess(t *testing.T) {
	f := newFixture(t, true)

	resp, body := f.postRender(t, map[string]any{
		"tsx_code":       sampleSource,
		"composition_id": "TestVideo",
		"duration":       3,
		"width":          1080,
		"height":         1920,
		"fps":            30,
	})

	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %v", resp.StatusCode, body)
	}
	if body["status"] != "success" {
		t.Errorf("expected status success, got %v", body["status"])
	}
	if body["duration_seconds"] != 3.0 {
		t.Errorf("expected duration_seconds 3, got %v", body["duration_seconds"])
	}
	if body["composition_id"] != "TestVideo" {
		t.Errorf("expected composition_id TestVideo, got %v", body["composition_id"])
	}

	filename, _ := body["filename"].(string)
	if ok, _ := regexp.MatchString(`^TestVideo_\d+\.mp4$`, filename); !ok {
		t.Errorf("unexpected filename %q", filename)
	}

	if size, ok := body["file_size_mb"].(float64); !ok || size < 0 {
		t.Errorf("expected non-negative file_size_mb, got %v", body["file_size_mb"])
	}
	if _, ok := body["render_time_seconds"].(float64); !ok {
		t.Errorf("expected render_time_seconds, got %v", body["render_time_seconds"])
	}

	// Scratch space is empty once the request settles.
	entries, err := os.ReadDir(f.workDir)
	if err != nil {
		t.Fatalf("read workdir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no leftover workspaces, found %d", len(entries))
	}
}

func TestRenderValidation(t *testing.T) {
	f := newFixture(t, true)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing tsx_code", map[string]any{"composition_id": "X"}},
		{"missing composition_id", map[string]any{"tsx_code": sampleSource}},
		{"empty body", map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.postRender(t, tt.body)
			if resp.StatusCode != 400 {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
			if msg, _ := body["error"].(string); msg == "" {
				t.Error("expected an error message")
			}
		})
	}

	// No request touched the filesystem.
	entries, _ := os.ReadDir(f.workDir)
	if len(entries) != 0 {
		t.Errorf("validation failures must not create workspaces, found %d", len(entries))
	}
}

func TestRenderCompositionNotFound(t *testing.T) {
	f := newFixture(t, true)

	resp, body := f.postRender(t, map[string]any{
		"tsx_code":       sampleSource,
		"composition_id": "MissingComp",
	})

	if resp.StatusCode != 500 {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if body["status"] != "error" {
		t.Errorf("expected status error, got %v", body["status"])
	}
	msg, _ := body["error"].(string)
	if !strings.Contains(msg, "not found") || !strings.Contains(msg, "MissingComp") {
		t.Errorf("error should name the missing composition, got %q", msg)
	}
	if _, ok := body["stack"]; !ok {
		t.Error("expected stack in non-production mode")
	}

	entries, _ := os.ReadDir(f.workDir)
	if len(entries) != 0 {
		t.Errorf("expected workspace cleanup after failure, found %d", len(entries))
	}
}

func TestRenderErrorHidesStackInProduction(t *testing.T) {
	f := newFixture(t, false)

	resp, body := f.postRender(t, map[string]any{
		"tsx_code":       sampleSource,
		"composition_id": "MissingComp",
	})

	if resp.StatusCode != 500 {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if _, ok := body["stack"]; ok {
		t.Error("stack must not leak in production mode")
	}
}

func TestDownload(t *testing.T) {
	f := newFixture(t, true)

	_, body := f.postRender(t, map[string]any{
		"tsx_code":       sampleSource,
		"composition_id": "TestVideo",
	})
	filename, _ := body["filename"].(string)
	if filename == "" {
		t.Fatalf("render did not return a filename: %v", body)
	}

	t.Run("existing file streams identical bytes", func(t *testing.T) {
		resp, err := http.Get(f.server.URL + "/download/" + filename)
		if err != nil {
			t.Fatalf("GET /download: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != 200 {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}

		var buf bytes.Buffer
		if _, err := buf.ReadFrom(resp.Body); err != nil {
			t.Fatalf("read body: %v", err)
		}

		want, err := os.ReadFile(filepath.Join(f.outputDir, filename))
		if err != nil {
			t.Fatalf("read output: %v", err)
		}
		if !bytes.Equal(buf.Bytes(), want) {
			t.Error("downloaded bytes differ from the rendered file")
		}
	})

	t.Run("unknown file is 404", func(t *testing.T) {
		resp, err := http.Get(f.server.URL + "/download/never_rendered.mp4")
		if err != nil {
			t.Fatalf("GET /download: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != 404 {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}

		var errBody map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&errBody); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg, _ := errBody["error"].(string); msg == "" {
			t.Error("expected an error message")
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, true)

	// One successful render so the counters exist.
	f.postRender(t, map[string]any{
		"tsx_code":       sampleSource,
		"composition_id": "TestVideo",
	})

	resp, err := http.Get(f.server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	out := buf.String()

	for _, metric := range []string{"motion_renders_total", "motion_render_duration_seconds"} {
		if !strings.Contains(out, metric) {
			t.Errorf("expected %s in exposition:\n%s", metric, out)
		}
	}
}

func TestRenderInvalidJSON(t *testing.T) {
	f := newFixture(t, true)

	resp, err := http.Post(f.server.URL+"/render", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST /render: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
