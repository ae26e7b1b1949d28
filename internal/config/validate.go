package config

import (
	"errors"
	"fmt"

	"derivate/internal/catalog"
	"derivate/internal/sanitize"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDerivatives(); err != nil {
		return err
	}
	if err := c.validateConverters(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.BasePath == "" {
		return errors.New("paths.base_path must be set")
	}
	if c.Paths.HTTPBind == "" {
		return errors.New("paths.http_bind must be set")
	}
	return nil
}

func (c *Config) validateDerivatives() error {
	for _, key := range c.Derivatives.Enabled {
		if _, ok := catalog.Lookup(key); !ok {
			return fmt.Errorf("derivatives.enabled contains unknown type %q", key)
		}
	}
	return nil
}

// validateConverters rejects the whole configuration when any active rule
// fails the sanitizer. A bad rule aborts every transcode run anyway, so
// surfacing it at load time keeps failures close to the edit that caused them.
func (c *Config) validateConverters() error {
	for _, mainType := range []string{"audio", "video"} {
		for _, rule := range c.ActiveRules(mainType) {
			if err := sanitize.Check(rule.Pattern, rule.Args); err != nil {
				return fmt.Errorf("converters.%s rule %q: %w", mainType, rule.Pattern, err)
			}
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "text", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
