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
	c.normalizeLogging()
	c.normalizeExtraction()
	return c.normalizeKFF()
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.CaseDir) == "" {
		c.Paths.CaseDir = defaultCaseDir
	}
	if c.Paths.CaseDir, err = expandPath(c.Paths.CaseDir); err != nil {
		return fmt.Errorf("paths.case_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}

func (c *Config) normalizeExtraction() {
	seen := make(map[string]struct{}, len(c.Extraction.PostProcessors))
	names := make([]string, 0, len(c.Extraction.PostProcessors))
	for _, name := range c.Extraction.PostProcessors {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	c.Extraction.PostProcessors = names
	if c.Extraction.MaxReportBytes <= 0 {
		c.Extraction.MaxReportBytes = defaultMaxReportBytes
	}
	if c.Extraction.ParallelItems <= 0 {
		c.Extraction.ParallelItems = defaultParallelItems
	}
}

func (c *Config) normalizeKFF() error {
	if strings.TrimSpace(c.KFF.Path) == "" {
		if value, ok := os.LookupEnv("FORAGER_KFF_PATH"); ok {
			c.KFF.Path = value
		}
	}
	if strings.TrimSpace(c.KFF.Path) != "" {
		expanded, err := expandPath(strings.TrimSpace(c.KFF.Path))
		if err != nil {
			return fmt.Errorf("kff.path: %w", err)
		}
		c.KFF.Path = expanded
	}
	statuses := make([]string, 0, len(c.KFF.AlertStatuses))
	for _, status := range c.KFF.AlertStatuses {
		if status = strings.TrimSpace(status); status != "" {
			statuses = append(statuses, status)
		}
	}
	if len(statuses) == 0 {
		statuses = []string{defaultAlertStatus}
	}
	c.KFF.AlertStatuses = statuses
	return nil
}
