package yao

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"lukechampine.com/blake3"
)

// recipeDigest returns the BLAKE3 digest of a build recipe file.
func recipeDigest(file string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Stamp records what a package's artifacts were last built from.
type Stamp struct {
	Recipe    string    `json:"recipe"`
	Artifacts []string  `json:"artifacts"`
	BuiltAt   time.Time `json:"built_at"`
}

// StampStore persists build stamps as a JSON file. The skip-rebuild decision
// never consults it; it only lets yao warn when reused artifacts were built
// from a different recipe.
type StampStore struct {
	path string
	now  func() time.Time
}

// NewStampStore returns a store backed by the file at path.
func NewStampStore(path string) *StampStore {
	return &StampStore{path: path, now: time.Now}
}

func (s *StampStore) load() (map[string]Stamp, error) {
	stamps := make(map[string]Stamp)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return stamps, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return stamps, nil
	}
	if err := json.Unmarshal(data, &stamps); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return stamps, nil
}

// Get returns the stamp recorded for name, if any.
func (s *StampStore) Get(name string) (Stamp, bool, error) {
	stamps, err := s.load()
	if err != nil {
		return Stamp{}, false, err
	}
	st, ok := stamps[name]
	return st, ok, nil
}

// Record stores the stamp for name, replacing the file atomically.
func (s *StampStore) Record(name, digest string, artifacts ArtifactSet) error {
	stamps, err := s.load()
	if err != nil {
		return err
	}
	stamps[name] = Stamp{Recipe: digest, Artifacts: artifacts, BuiltAt: s.now().UTC()}

	data, err := json.MarshalIndent(stamps, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
