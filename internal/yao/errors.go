package yao

import (
	"errors"
	"fmt"
)

var (
	errNoPackages = errors.New("no packages specified")

	// ErrNotFound is returned when a name resolves to neither the repositories nor the AUR.
	ErrNotFound = errors.New("target not found")
	// ErrInvalidName is returned for names outside the package-name alphabet.
	ErrInvalidName = errors.New("invalid package name")
	// ErrDownloadFailed is returned when a snapshot or RPC transfer does not succeed.
	ErrDownloadFailed = errors.New("download failed")
	// ErrExtractionFailed is returned when a snapshot cannot be unpacked.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrEmptyPlan is returned when makepkg lists no artifacts for a source tree.
	ErrEmptyPlan = errors.New("package list is empty")
	// ErrNoArtifactsProduced is returned when none of the planned artifacts exist after a build.
	ErrNoArtifactsProduced = errors.New("build produced no package files")
	// ErrBuildFailed is returned when makepkg exits non-zero.
	ErrBuildFailed = errors.New("build failed")
	// ErrInstallFailed is returned when pacman exits non-zero for any reason other than a decline.
	ErrInstallFailed = errors.New("install failed")
	// ErrToolMissing is returned when a required external binary cannot be located.
	ErrToolMissing = errors.New("required tool not found")
	// ErrUserDeclined is returned when the user answered "no" at pacman's or the editor's prompt.
	ErrUserDeclined = errors.New("declined by user")
)

// PackageError ties a failure to the package and pipeline stage it happened in.
type PackageError struct {
	Name  string
	Stage string
	Err   error
}

func (e *PackageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Name, e.Stage, e.Err)
}

func (e *PackageError) Unwrap() error { return e.Err }

func stageErr(name, stage string, err error) error {
	if err == nil {
		return nil
	}
	return &PackageError{Name: name, Stage: stage, Err: err}
}
