package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateExtraction(); err != nil {
		return err
	}
	return c.validateKFF()
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (expected console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateExtraction() error {
	known := make(map[string]struct{})
	for _, name := range DefaultPostProcessors() {
		known[name] = struct{}{}
	}
	for _, name := range c.Extraction.PostProcessors {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("extraction.post_processors: unknown post-processor %q (known: %s)", name, strings.Join(DefaultPostProcessors(), ", "))
		}
	}
	if c.Extraction.ParallelItems > 64 {
		return errors.New("extraction.parallel_items must be 64 or less")
	}
	return nil
}

func (c *Config) validateKFF() error {
	if !c.KFF.Enabled {
		return nil
	}
	if strings.TrimSpace(c.KFF.Path) == "" {
		return errors.New("kff.path must be set when kff.enabled is true (or set FORAGER_KFF_PATH)")
	}
	return nil
}
