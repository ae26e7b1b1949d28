package main

import (
	"strings"
	"sync"

	"derivate/internal/config"
	"derivate/internal/derive"
	"derivate/internal/filestore"
	"derivate/internal/logging"
	"derivate/internal/ready"
	"derivate/internal/store"
)

// commandContext lazily opens the shared configuration and stores for
// subcommands. The CLI operates directly on the data directory; a running
// daemon picks queued jobs up through the same database.
type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	storeOnce sync.Once
	store     *store.Store
	storeErr  error
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

func (c *commandContext) ensureStore() (*store.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	c.storeOnce.Do(func() {
		c.store, c.storeErr = store.Open(cfg.Paths.DataDir)
	})
	return c.store, c.storeErr
}

// coordinator builds the readiness coordinator over the CLI's store.
func (c *commandContext) coordinator() (*ready.Coordinator, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	st, err := c.ensureStore()
	if err != nil {
		return nil, err
	}
	files, err := filestore.NewLocal(cfg.Paths.BasePath)
	if err != nil {
		return nil, err
	}
	logger := logging.NewNop()
	resolver := derive.NewResolver(st, files)
	builder := derive.NewBuilder(cfg, logger)
	return ready.NewCoordinator(cfg, st, files, resolver, builder, logger), nil
}
