package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"forager/internal/casedb"
	"forager/internal/config"
	"forager/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// withStore opens the case database for the duration of fn.
func (c *commandContext) withStore(fn func(*casedb.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := casedb.Open(cfg)
	if err != nil {
		return fmt.Errorf("open case database: %w", err)
	}
	defer store.Close()
	return fn(store)
}

// resolveItem accepts a numeric identifier or an item name.
func resolveItem(ctx context.Context, store *casedb.Store, ref string) (*casedb.ItemInfo, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("item reference is empty")
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		info, err := store.GetItem(ctx, id)
		if err != nil {
			return nil, err
		}
		if info != nil {
			return info, nil
		}
	}
	info, err := store.FindItemByName(ctx, ref)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("item %q not found", ref)
	}
	return info, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
