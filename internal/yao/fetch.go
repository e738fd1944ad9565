package yao

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// SnapshotCache keeps downloaded snapshot tarballs in a persistent directory.
// An archive present under its stable name is trusted as-is; it is never
// revalidated or expired.
type SnapshotCache struct {
	dir     string
	catalog SourceCatalog
	log     hclog.Logger
	// progress is where the download spinner renders; nil disables it.
	progress io.Writer
}

// NewSnapshotCache returns a cache rooted at dir. The spinner is shown only
// when stderr is a terminal.
func NewSnapshotCache(dir string, catalog SourceCatalog, log hclog.Logger) *SnapshotCache {
	c := &SnapshotCache{dir: dir, catalog: catalog, log: log}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		c.progress = os.Stderr
	}
	return c
}

// Path returns the stable cache location for name.
func (c *SnapshotCache) Path(name string) string {
	return filepath.Join(c.dir, name+".tar.gz")
}

// Fetch returns the cached archive for name, downloading it on a miss.
func (c *SnapshotCache) Fetch(ctx context.Context, name string) (string, error) {
	out := c.Path(name)
	if _, err := os.Stat(out); err == nil {
		c.log.Debug("using cached snapshot", "path", out)
		return out, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("failed to stat %s: %w", out, err)
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create snapshot cache %s: %w", c.dir, err)
	}

	body, size, err := c.catalog.OpenSnapshot(ctx, name)
	if err != nil {
		return "", err
	}
	defer body.Close()

	// The temp file lives next to the final path so the rename below is atomic.
	tmp, err := os.CreateTemp(c.dir, "."+name+"-*.part")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file in %s: %w", c.dir, err)
	}
	published := false
	defer func() {
		if !published {
			_ = os.Remove(tmp.Name())
		}
	}()

	var w io.Writer = tmp
	var bar *progressbar.ProgressBar
	if c.progress != nil {
		bar = progressbar.NewOptions64(size,
			progressbar.OptionSetWriter(c.progress),
			progressbar.OptionSetDescription("downloading "+name),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionClearOnFinish(),
		)
		w = io.MultiWriter(tmp, bar)
	}

	_, copyErr := io.Copy(w, body)
	if bar != nil {
		_ = bar.Finish()
	}
	closeErr := tmp.Close()
	if copyErr != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrDownloadFailed, name, copyErr)
	}
	if closeErr != nil {
		return "", fmt.Errorf("failed to write %s: %w", tmp.Name(), closeErr)
	}

	if err := os.Rename(tmp.Name(), out); err != nil {
		return "", fmt.Errorf("failed to publish snapshot %s: %w", out, err)
	}
	published = true
	c.log.Debug("snapshot cached", "path", out)
	return out, nil
}
