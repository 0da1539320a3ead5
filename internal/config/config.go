package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains daemon state and log directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Library maps base labels to the root directories the catalog tracks.
// Every catalog entry stores its path relative to one of these roots.
type Library struct {
	Roots map[string]string `toml:"roots"`
}

// Server contains HTTP API bind address and paging configuration.
type Server struct {
	Bind    string `toml:"bind"`
	PerPage int    `toml:"per_page"`
}

// Scanner contains filesystem scan configuration.
type Scanner struct {
	Extensions  []string `toml:"extensions"`
	HashWorkers int      `toml:"hash_workers"`
	ScanOnStart bool     `toml:"scan_on_start"`
}

// Civitai contains configuration for the metadata provider and downloads.
type Civitai struct {
	APIKey         string            `toml:"api_key"`
	BaseURL        string            `toml:"base_url"`
	MaxRetries     int               `toml:"max_retries"`
	RequestTimeout int               `toml:"request_timeout"`
	DownloadDirs   map[string]string `toml:"download_dirs"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Scans          bool   `toml:"scans"`
	Downloads      bool   `toml:"downloads"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for modelkeep.
//
// Configuration sections by subsystem:
//   - Paths: daemon state directory (database, lock file) and log directory
//   - Library: base-label to root-directory mapping the catalog tracks
//   - Server: HTTP API bind address and default page size
//   - Scanner: model file extensions, hash worker pool, scan-on-start
//   - Civitai: metadata provider credentials, retries, saved download dirs
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Library       Library       `toml:"library"`
	Server        Server        `toml:"server"`
	Scanner       Scanner       `toml:"scanner"`
	Civitai       Civitai       `toml:"civitai"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/modelkeep/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/modelkeep/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("modelkeep.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// Save writes the configuration back to path. Used to persist per-category
// download directories chosen through the download flow.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// EnsureDirectories creates required directories for daemon operation.
// Library roots are created on a best-effort basis so the daemon can run when
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, root := range c.Library.Roots {
		if strings.TrimSpace(root) != "" {
			// Best-effort to avoid failing config load when storage is offline.
			_ = os.MkdirAll(root, 0o755)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location inside the state directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "modelkeep.db")
}

// LockPath returns the daemon lock file location inside the state directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "modelkeepd.lock")
}

// RootFor returns the root directory for a base label.
func (c *Config) RootFor(label string) (string, bool) {
	root, ok := c.Library.Roots[label]
	return root, ok
}

// SortedLabels returns the configured base labels in sorted order so callers
// iterate roots deterministically.
func (c *Config) SortedLabels() []string {
	labels := make([]string, 0, len(c.Library.Roots))
	for label := range c.Library.Roots {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
