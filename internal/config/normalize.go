package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeLibrary(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeScanner()
	if err := c.normalizeCivitai(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLibrary() error {
	if c.Library.Roots == nil {
		c.Library.Roots = map[string]string{}
	}
	normalized := make(map[string]string, len(c.Library.Roots))
	for label, root := range c.Library.Roots {
		label = strings.TrimSpace(label)
		if label == "" {
			return fmt.Errorf("library.roots: empty label for %q", root)
		}
		expanded, err := expandPath(root)
		if err != nil {
			return fmt.Errorf("library.roots.%s: %w", label, err)
		}
		normalized[label] = expanded
	}
	c.Library.Roots = normalized
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	if c.Server.PerPage <= 0 {
		c.Server.PerPage = defaultPerPage
	}
}

func (c *Config) normalizeScanner() {
	if len(c.Scanner.Extensions) == 0 {
		c.Scanner.Extensions = defaultExtensions()
	}
	exts := make([]string, 0, len(c.Scanner.Extensions))
	for _, ext := range c.Scanner.Extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			exts = append(exts, ext)
		}
	}
	c.Scanner.Extensions = exts
	if c.Scanner.HashWorkers <= 0 {
		c.Scanner.HashWorkers = defaultHashWorkers
	}
}

func (c *Config) normalizeCivitai() error {
	if key := strings.TrimSpace(os.Getenv("CIVITAI_API_KEY")); key != "" && strings.TrimSpace(c.Civitai.APIKey) == "" {
		c.Civitai.APIKey = key
	}
	c.Civitai.BaseURL = strings.TrimRight(strings.TrimSpace(c.Civitai.BaseURL), "/")
	if c.Civitai.BaseURL == "" {
		c.Civitai.BaseURL = defaultCivitaiBaseURL
	}
	if c.Civitai.MaxRetries < 0 {
		c.Civitai.MaxRetries = 0
	}
	if c.Civitai.RequestTimeout <= 0 {
		c.Civitai.RequestTimeout = defaultCivitaiRequestTimeout
	}
	if c.Civitai.DownloadDirs == nil {
		c.Civitai.DownloadDirs = map[string]string{}
	}
	dirs := make(map[string]string, len(c.Civitai.DownloadDirs))
	for category, dir := range c.Civitai.DownloadDirs {
		category = strings.ToLower(strings.TrimSpace(category))
		if category == "" {
			continue
		}
		expanded, err := expandPath(dir)
		if err != nil {
			return fmt.Errorf("civitai.download_dirs.%s: %w", category, err)
		}
		dirs[category] = expanded
	}
	c.Civitai.DownloadDirs = dirs
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
