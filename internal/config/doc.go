// Package config loads, normalizes, and validates forager configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// FORAGER_KFF_PATH. The Config type centralizes every knob the extraction
// pipeline and CLI need so the case database location, logging and the
// post-processing chain are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
