package yao

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read when YAO_CONFIG is not set. It is optional.
const DefaultConfigFile = "/etc/yao.yaml"

// RootMode selects how builds behave when yao runs as root. Only RootModeAuto
// has behaviour; the others are reserved.
type RootMode string

const (
	RootModeAuto      RootMode = "auto"
	RootModeSandbox   RootMode = "sandbox"
	RootModeUser      RootMode = "user"
	RootModeTrustRoot RootMode = "trust-root"
)

// ParseRootMode maps a configuration value to a RootMode. Unknown values fall back to auto.
func ParseRootMode(s string) RootMode {
	switch RootMode(strings.ToLower(strings.TrimSpace(s))) {
	case RootModeSandbox:
		return RootModeSandbox
	case RootModeUser:
		return RootModeUser
	case RootModeTrustRoot:
		return RootModeTrustRoot
	default:
		return RootModeAuto
	}
}

// Reserved reports whether the mode is parsed but has no implemented behaviour.
func (m RootMode) Reserved() bool {
	return m != RootModeAuto
}

// Config is loaded once at startup and passed by pointer to every component.
type Config struct {
	PkgDest       string `yaml:"pkgdest"`
	SnapshotCache string `yaml:"snapshot_cache"`
	StateFile     string `yaml:"state_file"`
	BuildDir      string `yaml:"build_dir"`
	Pacman        string `yaml:"pacman"`
	Sudo          string `yaml:"sudo"`
	Bsdtar        string `yaml:"bsdtar"`
	Makepkg       string `yaml:"makepkg"`
	MakepkgConf   string `yaml:"makepkg_conf"`
	AURURL        string `yaml:"aur_url"`
	Editor        string `yaml:"editor"`
	Review        bool   `yaml:"review"`

	RootMode      RootMode `yaml:"root_mode"`
	BuildUser     string   `yaml:"build_user"`
	AutoTrustRoot bool     `yaml:"auto_trust_root"`

	Verbose bool `yaml:"-"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		PkgDest:       "/var/cache/makepkg",
		SnapshotCache: "/var/cache/yao/snapshots",
		StateFile:     "/var/cache/yao/builds.json",
		BuildDir:      os.TempDir(),
		Pacman:        "pacman",
		Sudo:          "sudo",
		Bsdtar:        "bsdtar",
		Makepkg:       "makepkg",
		MakepkgConf:   "/etc/makepkg.conf",
		AURURL:        "https://aur.archlinux.org",
		Review:        true,
		RootMode:      RootModeAuto,
		BuildUser:     "nobody",
	}
}

// LoadConfig applies defaults, then the YAML file at path (if it exists), then
// environment overrides read through getenv.
func LoadConfig(path string, getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	mergeEnvOverrides(cfg, getenv)

	cfg.RootMode = ParseRootMode(string(cfg.RootMode))
	cfg.AURURL = strings.TrimRight(cfg.AURURL, "/")

	// makepkg runs inside the build workspace, so relative paths would resolve there
	for _, p := range []*string{&cfg.PkgDest, &cfg.SnapshotCache, &cfg.StateFile, &cfg.BuildDir} {
		abs, err := filepath.Abs(*p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", *p, err)
		}
		*p = abs
	}
	return cfg, nil
}

// Merge environment overrides
func mergeEnvOverrides(cfg *Config, getenv func(string) string) {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	boolean := func(dst *bool, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
		}
	}

	str(&cfg.PkgDest, "PKGDEST")
	str(&cfg.SnapshotCache, "YAO_SNAPSHOT_CACHE")
	str(&cfg.StateFile, "YAO_STATE_FILE")
	str(&cfg.BuildDir, "YAO_BUILD_DIR")
	str(&cfg.Pacman, "YAO_PACMAN")
	str(&cfg.Sudo, "YAO_SUDO")
	str(&cfg.Bsdtar, "YAO_BSDTAR")
	str(&cfg.Makepkg, "YAO_MAKEPKG")
	str(&cfg.MakepkgConf, "YAO_MAKEPKG_CONF")
	str(&cfg.AURURL, "YAO_AUR_URL")
	str(&cfg.Editor, "YAO_EDITOR", "VISUAL", "EDITOR")
	boolean(&cfg.Review, "YAO_REVIEW")
	boolean(&cfg.AutoTrustRoot, "YAO_AUTO_TRUST_ROOT")
	str(&cfg.BuildUser, "YAO_BUILD_USER")

	var mode string
	str(&mode, "YAO_ROOT_MODE")
	if mode != "" {
		cfg.RootMode = RootMode(mode)
	}
}

// configPath returns the config file location, honouring YAO_CONFIG.
func configPath(getenv func(string) string) string {
	if p := strings.TrimSpace(getenv("YAO_CONFIG")); p != "" {
		return p
	}
	return DefaultConfigFile
}

// Log dumps the resolved configuration at debug level.
func (c *Config) Log(log hclog.Logger, euid int) {
	log.Debug("config",
		"pkgdest", c.PkgDest,
		"snapshot_cache", c.SnapshotCache,
		"state_file", c.StateFile,
		"build_dir", c.BuildDir,
		"pacman", c.Pacman,
		"sudo", c.Sudo,
		"aur_url", c.AURURL,
		"root_mode", string(c.RootMode),
		"auto_trust_root", c.AutoTrustRoot,
		"build_user", c.BuildUser,
		"euid", euid,
	)
	if c.RootMode.Reserved() {
		log.Debug("root mode is reserved and has no effect", "root_mode", string(c.RootMode))
	}
}
