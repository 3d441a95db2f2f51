// Package workspace manages the isolated scratch directory each render job
// owns for its lifetime. Paths are unique per job, so concurrent jobs never
// touch the same file and no locking is needed.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"motion/internal/pkg/errors"
	"motion/internal/pkg/logger"
)

// Workspace is a disposable per-job directory tree.
type Workspace struct {
	// ID is the unique directory name under the scratch root.
	ID string
	// Root is the absolute workspace path.
	Root string
	// SourceDir is where the materialized project lives.
	SourceDir string
	// OutputDir is where the pipeline writes the encoded file before it is
	// relocated to durable storage.
	OutputDir string
}

// OutputPath returns the in-workspace path for the encoded artifact.
func (w *Workspace) OutputPath(filename string) string {
	return filepath.Join(w.OutputDir, filename)
}

// BundleDir returns the directory the bundle phase writes into.
func (w *Workspace) BundleDir() string {
	return filepath.Join(w.Root, "bundle")
}

// Manager creates and destroys workspaces under a single scratch root.
type Manager struct {
	root string
	log  *logger.Logger
}

func NewManager(root string, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Manager{
		root: root,
		log:  log.WithComponent("workspace"),
	}
}

// Root returns the scratch root all workspaces live under.
func (m *Manager) Root() string { return m.root }

// Create allocates a fresh, collision-free workspace for the job. The
// directory name carries a random suffix so identical job ids submitted in
// the same instant still get distinct trees.
func (m *Manager) Create(jobID string) (*Workspace, error) {
	id := fmt.Sprintf("%s_%s", jobID, uuid.NewString()[:8])
	root, err := filepath.Abs(filepath.Join(m.root, id))
	if err != nil {
		return nil, errors.IO("workspace.create", err)
	}

	ws := &Workspace{
		ID:        id,
		Root:      root,
		SourceDir: filepath.Join(root, "src"),
		OutputDir: filepath.Join(root, "out"),
	}

	for _, dir := range []string{ws.SourceDir, ws.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			// Roll back whatever MkdirAll managed to create.
			_ = os.RemoveAll(root)
			return nil, errors.IO("workspace.create", err)
		}
	}

	m.log.Debug("workspace created", "workspace", id, "path", root)
	return ws, nil
}

// Destroy removes the workspace tree. It is idempotent, tolerates an
// already-removed path, and never fails the surrounding job: cleanup errors
// are logged and swallowed.
func (m *Manager) Destroy(ws *Workspace) {
	if ws == nil || ws.Root == "" {
		return
	}

	if err := os.RemoveAll(ws.Root); err != nil {
		m.log.Warn("workspace cleanup failed",
			"workspace", ws.ID,
			"path", ws.Root,
			"error", err.Error(),
		)
		return
	}

	m.log.Debug("workspace destroyed", "workspace", ws.ID)
}
