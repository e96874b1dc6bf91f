package artifact

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"
)

// LockFile is the workspace lock file name.
const LockFile = ".xref.lock"

// ErrLocked is returned when another process holds the workspace lock.
var ErrLocked = eris.New("artifact: workspace is locked by another xref process")

// Lock takes the exclusive workspace lock without blocking. The returned
// function releases it.
func Lock(workspace string) (func(), error) {
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return nil, eris.Wrapf(err, "artifact: create workspace %s", workspace)
	}
	lock := flock.New(filepath.Join(workspace, LockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, eris.Wrap(err, "artifact: acquire workspace lock")
	}
	if !locked {
		return nil, ErrLocked
	}
	return func() { _ = lock.Unlock() }, nil
}
