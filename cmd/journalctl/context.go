package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"journal-backend/internal/config"
	"journal-backend/internal/database"
	"journal-backend/internal/logging"
	"journal-backend/internal/models"
	"journal-backend/internal/store"
	"journal-backend/internal/workflow"
)

type commandContext struct {
	configOnce sync.Once
	config     *config.Config
	logger     *zap.Logger
	configErr  error

	// openStore is replaced in tests.
	openStore func(ctx context.Context) (store.Store, func() error, error)
}

func newCommandContext() *commandContext {
	c := &commandContext{}
	c.openStore = c.openPostgres
	return c
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.configErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.logger = logger
	})
	return c.config, c.configErr
}

func (c *commandContext) withDatabase(ctx context.Context, fn func(*database.Database) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	db, err := database.NewConnection(ctx, cfg, c.logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	return fn(db)
}

func (c *commandContext) withStore(ctx context.Context, fn func(store.Store) error) error {
	st, closeFn, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn() //nolint:errcheck
	return fn(st)
}

func (c *commandContext) openPostgres(ctx context.Context) (store.Store, func() error, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.NewConnection(ctx, cfg, c.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return store.NewPostgres(db, c.logger), db.Close, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// parseRoles accepts role names as separate arguments or comma lists.
func parseRoles(raw []string) ([]workflow.Role, error) {
	var names []string
	for _, part := range raw {
		for _, name := range strings.Split(part, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	}
	roles, unknown := models.NormalizeRoles(names)
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown roles: %s", strings.Join(unknown, ", "))
	}
	if len(roles) == 0 {
		return nil, fmt.Errorf("at least one role is required")
	}
	return roles, nil
}

func roleNames(roles []workflow.Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
