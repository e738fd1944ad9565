package yao

import (
	"context"
	"io"
)

// ProcessRunner runs external commands described by a ProcSpec.
//
//go:generate go run go.uber.org/mock/mockgen -source=ports.go -destination=mock_ports_test.go -package=yao
type ProcessRunner interface {
	// Run streams the process output to the runner's own streams and waits for exit.
	Run(ctx context.Context, spec ProcSpec) error
	// Output captures stdout; stderr is relayed.
	Output(ctx context.Context, spec ProcSpec) ([]byte, error)
	// Probe discards all output and reports whether the process exited zero.
	// The error is non-nil only when the process could not be run at all.
	Probe(ctx context.Context, spec ProcSpec) (bool, error)
}

// BinaryRepo answers questions about the binary repositories.
type BinaryRepo interface {
	Available(ctx context.Context, name string) (bool, error)
	Installed(ctx context.Context, name string) bool
}

// Installer hands packages to the privileged package manager.
type Installer interface {
	SyncInstall(ctx context.Context, names []string) error
	InstallFiles(ctx context.Context, paths []string) error
}

// SourceCatalog is the source-build repository (the AUR).
type SourceCatalog interface {
	Exists(ctx context.Context, name string) (bool, error)
	OpenSnapshot(ctx context.Context, name string) (io.ReadCloser, int64, error)
}

// Snapshots resolves a package name to a local source archive.
type Snapshots interface {
	Fetch(ctx context.Context, name string) (string, error)
}

// Extractor unpacks a snapshot archive into a directory.
type Extractor interface {
	Extract(ctx context.Context, archive, dest string) error
}

// BuildTool is the external build tool (makepkg).
type BuildTool interface {
	PackageList(ctx context.Context, workspace, dest string) ([]string, error)
	Build(ctx context.Context, workspace, dest string, force bool) error
}

// Prompter asks a yes/no question.
type Prompter interface {
	Confirm(question string) (bool, error)
}

// Reviewer lets the user inspect a build recipe before it runs.
// It returns false when the user aborted the review.
type Reviewer interface {
	Review(ctx context.Context, recipe string) (bool, error)
}
