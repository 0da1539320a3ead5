// Package config loads, normalizes, and validates modelkeep configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CIVITAI_API_KEY. The Config type centralizes every knob the daemon and CLI
// need, from library roots and scan extensions to saved download directories.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
