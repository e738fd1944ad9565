package yao

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// PackageKind tells which source provides a package.
type PackageKind int

const (
	KindRepo PackageKind = iota
	KindAUR
)

func (k PackageKind) String() string {
	switch k {
	case KindRepo:
		return "repo"
	case KindAUR:
		return "AUR"
	default:
		return "unknown"
	}
}

// ValidateName rejects names that are not valid pacman/AUR package names.
// Names end up in cache paths, so anything that could escape a directory is refused.
func ValidateName(name string) error {
	if name == "" || strings.HasPrefix(name, "-") || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, c := range name {
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || strings.ContainsRune("@._+-", c)) {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}

// Classifier decides which source provides a package. The binary repositories
// always win over the AUR.
type Classifier struct {
	repo    BinaryRepo
	catalog SourceCatalog
	log     hclog.Logger
}

// NewClassifier returns a Classifier.
func NewClassifier(repo BinaryRepo, catalog SourceCatalog, log hclog.Logger) *Classifier {
	return &Classifier{repo: repo, catalog: catalog, log: log}
}

// Classify resolves name to a PackageKind or fails with ErrNotFound.
func (c *Classifier) Classify(ctx context.Context, name string) (PackageKind, error) {
	if err := ValidateName(name); err != nil {
		return 0, err
	}

	inRepo, err := c.repo.Available(ctx, name)
	if err != nil {
		return 0, err
	}
	if inRepo {
		c.log.Debug("classified", "pkg", name, "kind", KindRepo)
		return KindRepo, nil
	}

	inAUR, err := c.catalog.Exists(ctx, name)
	if err != nil {
		return 0, err
	}
	if inAUR {
		c.log.Debug("classified", "pkg", name, "kind", KindAUR)
		return KindAUR, nil
	}
	return 0, fmt.Errorf("%w: %s is in neither the repositories nor the AUR", ErrNotFound, name)
}
