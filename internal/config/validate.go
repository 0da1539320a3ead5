package config

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLibrary(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateScanner(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLibrary() error {
	if len(c.Library.Roots) == 0 {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/modelkeep/config.toml"
		}
		return fmt.Errorf("library.roots must define at least one base label. Edit %s (create with 'modelkeep config init')", defaultPath)
	}
	for label, root := range c.Library.Roots {
		if !filepath.IsAbs(root) {
			return fmt.Errorf("library.roots.%s must be an absolute path, got %q", label, root)
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Bind == "" {
		return errors.New("server.bind must be set")
	}
	if c.Server.PerPage <= 0 {
		return errors.New("server.per_page must be positive")
	}
	return nil
}

func (c *Config) validateScanner() error {
	if len(c.Scanner.Extensions) == 0 {
		return errors.New("scanner.extensions must list at least one extension")
	}
	if c.Scanner.HashWorkers <= 0 {
		return errors.New("scanner.hash_workers must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
