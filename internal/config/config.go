package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	// BasePath is the file-store root. Originals live under
	// <base_path>/original, derivatives under per-type subfolders.
	BasePath string `toml:"base_path"`
	TempDir  string `toml:"temp_dir"`
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	HTTPBind string `toml:"http_bind"`
}

// ConverterRule maps an output pattern to the encoder arguments producing it.
// Rules whose pattern starts with "#" are kept in the file but ignored.
type ConverterRule struct {
	Pattern string `toml:"pattern"`
	Args    string `toml:"args"`
}

// Converters holds the ordered transcode rule tables per main media type.
type Converters struct {
	Audio []ConverterRule `toml:"audio"`
	Video []ConverterRule `toml:"video"`
}

// Derivatives contains item-level derivative settings.
type Derivatives struct {
	// Enabled lists the derivative type keys that may be requested.
	Enabled []string `toml:"enabled"`
	// ThresholdMB gates synchronous builds of size-aware types. A build
	// whose estimated output exceeds this many megabytes is queued instead.
	ThresholdMB int `toml:"threshold_mb"`
	// InstallationTitle and SiteURL are embedded in zip archive comments.
	InstallationTitle string `toml:"installation_title"`
	SiteURL           string `toml:"site_url"`
}

// Tools contains the external commands invoked as subprocesses.
type Tools struct {
	FFmpeg  string `toml:"ffmpeg"`
	Convert string `toml:"convert"`
}

// Worker contains background build worker settings.
type Worker struct {
	PollInterval int `toml:"poll_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for derivate.
//
// Configuration sections by subsystem:
//   - Paths: file-store base path, temp/data/log dirs, HTTP bind address
//   - Derivatives: enabled types, sync-build threshold, archive comment
//   - Converters: ordered audio/video transcode rules
//   - Tools: external encoder and image-to-PDF commands
//   - Worker: background job polling interval
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Derivatives Derivatives `toml:"derivatives"`
	Converters  Converters  `toml:"converters"`
	Tools       Tools       `toml:"tools"`
	Worker      Worker      `toml:"worker"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/derivate/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("derivate.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.TempDir, c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// TypeEnabled reports whether the given derivative type key is enabled.
func (c *Config) TypeEnabled(key string) bool {
	for _, enabled := range c.Derivatives.Enabled {
		if enabled == key {
			return true
		}
	}
	return false
}

// ThresholdBytes returns the synchronous build threshold in bytes.
func (c *Config) ThresholdBytes() int64 {
	return int64(c.Derivatives.ThresholdMB) * 1024 * 1024
}

// ActiveRules returns the converter rules for a main media type with
// commented-out entries removed, preserving declared order.
func (c *Config) ActiveRules(mainType string) []ConverterRule {
	var rules []ConverterRule
	switch mainType {
	case "audio":
		rules = c.Converters.Audio
	case "video":
		rules = c.Converters.Video
	default:
		return nil
	}
	active := make([]ConverterRule, 0, len(rules))
	for _, rule := range rules {
		pattern := strings.TrimSpace(rule.Pattern)
		if pattern == "" || strings.HasPrefix(pattern, "#") {
			continue
		}
		active = append(active, ConverterRule{Pattern: pattern, Args: strings.TrimSpace(rule.Args)})
	}
	return active
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
