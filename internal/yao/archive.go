package yao

import (
	"archive/tar"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
)

// Bsdtar unpacks snapshot tarballs with the external archive tool.
type Bsdtar struct {
	bin    string
	runner ProcessRunner
	log    hclog.Logger
}

// NewBsdtar returns an Extractor backed by the binary at bin.
func NewBsdtar(bin string, runner ProcessRunner, log hclog.Logger) *Bsdtar {
	return &Bsdtar{bin: bin, runner: runner, log: log}
}

// Extract runs `bsdtar -xzf archive -C dest`. Whatever a failed run leaves in
// dest is discarded with the enclosing workspace.
func (b *Bsdtar) Extract(ctx context.Context, archive, dest string) error {
	err := b.runner.Run(ctx, ProcSpec{Program: b.bin, Args: []string{"-xzf", archive, "-C", dest}})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrExtractionFailed, archive, err)
	}
	return nil
}

// checkSnapshotLayout verifies that a snapshot tarball holds the package's
// recipe tree under a single top-level directory named after it.
func checkSnapshotLayout(archive, name string) error {
	f, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: %s is not a gzip archive: %v", ErrExtractionFailed, archive, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	prefix := name + "/"
	found := false
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: reading %s: %v", ErrExtractionFailed, archive, err)
		}
		// git-generated snapshots start with a pax global header carrying the commit id
		if hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}
		entry := strings.TrimPrefix(path.Clean(hdr.Name), "./")
		if entry == "." {
			continue
		}
		if entry != name && !strings.HasPrefix(entry, prefix) {
			return fmt.Errorf("%w: unexpected snapshot layout for %s: %s", ErrExtractionFailed, name, hdr.Name)
		}
		found = true
	}
	if !found {
		return fmt.Errorf("%w: snapshot for %s is empty", ErrExtractionFailed, name)
	}
	return nil
}

// PkgInfo is the subset of a package's .PKGINFO shown before installing it.
type PkgInfo struct {
	Name    string
	Version string
	Arch    string
}

func (p PkgInfo) String() string {
	return p.Name + " " + p.Version
}

var errNoPkgInfo = errors.New("no .PKGINFO in package")

// ReadPkgInfo reads the metadata of a built package file. The compression is
// chosen by file suffix the way makepkg names its output.
func ReadPkgInfo(file string) (PkgInfo, error) {
	f, err := os.Open(file)
	if err != nil {
		return PkgInfo{}, err
	}
	defer f.Close()

	var r io.Reader
	switch {
	case strings.HasSuffix(file, ".tar.zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return PkgInfo{}, fmt.Errorf("failed to create zstd reader for %s: %w", file, err)
		}
		defer zr.Close()
		r = zr
	case strings.HasSuffix(file, ".tar.xz"):
		xr, err := xz.NewReader(f)
		if err != nil {
			return PkgInfo{}, fmt.Errorf("failed to create xz reader for %s: %w", file, err)
		}
		r = xr
	case strings.HasSuffix(file, ".tar.gz"):
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return PkgInfo{}, fmt.Errorf("failed to create gzip reader for %s: %w", file, err)
		}
		defer gz.Close()
		r = gz
	case strings.HasSuffix(file, ".tar"):
		r = f
	default:
		return PkgInfo{}, fmt.Errorf("unsupported package format: %s", file)
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return PkgInfo{}, fmt.Errorf("%s: %w", file, errNoPkgInfo)
		}
		if err != nil {
			return PkgInfo{}, fmt.Errorf("reading %s: %w", file, err)
		}
		if strings.TrimPrefix(hdr.Name, "./") == ".PKGINFO" {
			return parsePkgInfo(tr)
		}
	}
}

func parsePkgInfo(r io.Reader) (PkgInfo, error) {
	var info PkgInfo
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "pkgname":
			info.Name = strings.TrimSpace(val)
		case "pkgver":
			info.Version = strings.TrimSpace(val)
		case "arch":
			info.Arch = strings.TrimSpace(val)
		}
	}
	return info, sc.Err()
}
