package config

import "strings"

func (c *Config) normalize() error {
	pathFields := []*string{
		&c.Paths.BasePath,
		&c.Paths.TempDir,
		&c.Paths.DataDir,
		&c.Paths.LogDir,
	}
	for _, field := range pathFields {
		expanded, err := expandPath(strings.TrimSpace(*field))
		if err != nil {
			return err
		}
		*field = expanded
	}

	c.Paths.HTTPBind = strings.TrimSpace(c.Paths.HTTPBind)
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	c.Tools.Convert = strings.TrimSpace(c.Tools.Convert)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Derivatives.InstallationTitle = strings.TrimSpace(c.Derivatives.InstallationTitle)
	c.Derivatives.SiteURL = strings.TrimSpace(c.Derivatives.SiteURL)

	enabled := make([]string, 0, len(c.Derivatives.Enabled))
	seen := make(map[string]struct{}, len(c.Derivatives.Enabled))
	for _, key := range c.Derivatives.Enabled {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		enabled = append(enabled, key)
	}
	c.Derivatives.Enabled = enabled

	if c.Worker.PollInterval <= 0 {
		c.Worker.PollInterval = defaultPollInterval
	}
	if c.Derivatives.ThresholdMB <= 0 {
		c.Derivatives.ThresholdMB = defaultThresholdMB
	}

	return nil
}
