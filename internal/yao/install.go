package yao

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"
)

// Pacman probes the binary repositories and performs installs through pacman.
type Pacman struct {
	bin    string
	runner ProcessRunner
	priv   *Privilege
	log    hclog.Logger
}

// NewPacman returns a Pacman using the binary at bin.
func NewPacman(bin string, runner ProcessRunner, priv *Privilege, log hclog.Logger) *Pacman {
	return &Pacman{bin: bin, runner: runner, priv: priv, log: log}
}

// Available reports whether a sync repository carries name (pacman -Si).
// A non-zero exit means absent; only a failure to run pacman at all is an error.
func (p *Pacman) Available(ctx context.Context, name string) (bool, error) {
	ok, err := p.runner.Probe(ctx, ProcSpec{Program: p.bin, Args: []string{"-Si", "--", name}})
	if err != nil {
		return false, fmt.Errorf("repository lookup for %s: %w", name, err)
	}
	return ok, nil
}

// Installed reports whether name is installed locally (pacman -Qi).
func (p *Pacman) Installed(ctx context.Context, name string) bool {
	ok, err := p.runner.Probe(ctx, ProcSpec{Program: p.bin, Args: []string{"-Qi", "--", name}})
	if err != nil {
		p.log.Debug("installed check failed", "pkg", name, "error", err)
		return false
	}
	return ok
}

// SyncInstall installs names from the sync repositories (pacman -S). pacman
// prints its own transaction summary and asks its own question.
func (p *Pacman) SyncInstall(ctx context.Context, names []string) error {
	args := append([]string{"-S"}, names...)
	return p.run(ctx, ProcSpec{Program: p.bin, Args: args})
}

// InstallFiles installs local package files (pacman -U).
func (p *Pacman) InstallFiles(ctx context.Context, paths []string) error {
	args := append([]string{"-U"}, paths...)
	return p.run(ctx, ProcSpec{Program: p.bin, Args: args})
}

func (p *Pacman) run(ctx context.Context, spec ProcSpec) error {
	err := p.runner.Run(ctx, p.priv.Wrap(spec))
	if err == nil {
		return nil
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		if ee.Code == declinedExitCode {
			return ErrUserDeclined
		}
		return fmt.Errorf("%w: pacman %s exited with status %d", ErrInstallFailed, spec.Args[0], ee.Code)
	}
	return fmt.Errorf("%w: %v", ErrInstallFailed, err)
}
