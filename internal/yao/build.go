package yao

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sys/unix"
)

// ArtifactSet is the ordered list of absolute package file paths a build produces.
type ArtifactSet []string

// Makepkg drives the external build tool.
type Makepkg struct {
	bin    string
	conf   string
	runner ProcessRunner
}

// NewMakepkg returns a BuildTool backed by the makepkg binary at bin, reading
// its configuration from conf.
func NewMakepkg(bin, conf string, runner ProcessRunner) *Makepkg {
	return &Makepkg{bin: bin, conf: conf, runner: runner}
}

// PackageList asks makepkg which files a build would produce (makepkg --packagelist).
func (m *Makepkg) PackageList(ctx context.Context, workspace, dest string) ([]string, error) {
	out, err := m.runner.Output(ctx, ProcSpec{
		Program: m.bin,
		Args:    []string{"--packagelist"},
		Env:     []string{"PKGDEST=" + dest},
		Dir:     workspace,
	})
	if err != nil {
		return nil, fmt.Errorf("makepkg --packagelist: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			paths = append(paths, line)
		}
	}
	return paths, nil
}

// Build runs a full makepkg build with output streamed to the terminal.
func (m *Makepkg) Build(ctx context.Context, workspace, dest string, force bool) error {
	args := []string{"--clean", "--cleanbuild", "--syncdeps", "--needed", "--log"}
	if m.conf != "" {
		args = append(args, "--config", m.conf)
	}
	if force {
		args = append(args, "-f", "-C")
	}
	return m.runner.Run(ctx, ProcSpec{
		Program: m.bin,
		Args:    args,
		Env:     []string{"PKGDEST=" + dest},
		Dir:     workspace,
	})
}

// Planner resolves the exact artifact set of a source tree and decides whether
// an existing build can be reused.
type Planner struct {
	tool BuildTool
	log  hclog.Logger
}

// NewPlanner returns a Planner.
func NewPlanner(tool BuildTool, log hclog.Logger) *Planner {
	return &Planner{tool: tool, log: log}
}

// Plan returns the artifact set and whether it can be installed without
// building. Reuse is keyed on the destination paths existing, not on source
// content. With force set, every existing planned file is removed first.
func (p *Planner) Plan(ctx context.Context, workspace, dest string, force bool) (ArtifactSet, bool, error) {
	paths, err := p.tool.PackageList(ctx, workspace, dest)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrEmptyPlan, err)
	}
	if len(paths) == 0 {
		return nil, false, ErrEmptyPlan
	}
	set := ArtifactSet(paths)

	if force {
		for _, t := range set {
			for _, f := range []string{t, filepath.Join(workspace, filepath.Base(t))} {
				if err := os.Remove(f); err == nil {
					p.log.Debug("removed previous artifact", "path", f)
				} else if !errors.Is(err, fs.ErrNotExist) {
					return nil, false, fmt.Errorf("failed to remove %s: %w", f, err)
				}
			}
		}
		return set, false, nil
	}

	return set, allExist(set), nil
}

// Builder runs the build tool and reconciles its output with the plan.
type Builder struct {
	tool BuildTool
	ui   *UI
	log  hclog.Logger
}

// NewBuilder returns a Builder.
func NewBuilder(tool BuildTool, ui *UI, log hclog.Logger) *Builder {
	return &Builder{tool: tool, ui: ui, log: log}
}

// Build produces the planned artifacts. Files the tool left in the workspace
// root instead of dest are moved into dest; planned files that are still
// missing afterwards are dropped from the returned set.
func (b *Builder) Build(ctx context.Context, workspace, dest string, plan ArtifactSet, force bool) (ArtifactSet, error) {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dest, err)
	}

	if err := b.tool.Build(ctx, workspace, dest, force); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBuildFailed, err)
	}

	built := make(ArtifactSet, 0, len(plan))
	for _, t := range plan {
		if fileExists(t) {
			built = append(built, t)
			continue
		}
		local := filepath.Join(workspace, filepath.Base(t))
		if fileExists(local) {
			b.log.Debug("relocating artifact", "from", local, "to", t)
			if err := moveFile(local, t); err != nil {
				return nil, err
			}
			built = append(built, t)
			continue
		}
		b.ui.Warn("%s was not produced by the build", filepath.Base(t))
	}

	if len(built) == 0 {
		return nil, ErrNoArtifactsProduced
	}
	return built, nil
}

func allExist(paths []string) bool {
	for _, p := range paths {
		if !fileExists(p) {
			return false
		}
	}
	return true
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// moveFile renames src to dst, copying across filesystems when needed.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EXDEV) {
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+"-*")
	if err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Remove(src)
}
