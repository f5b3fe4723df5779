// Package config loads the optional daemon configuration file. Only
// startup concerns live here: runtime filter settings are deliberately not
// persisted, the engine always starts from its built-in defaults.
package config

import (
	"fmt"
	"os"
	"path"

	"github.com/peer-calls/log"
	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration.
type Config struct {
	// SocketPath is the unix socket the control plane listens on.
	SocketPath string `yaml:"socket_path"`

	Log LogConfig `yaml:"log"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error or disabled.
	Level string `yaml:"level"`
}

// PeerCallsLevel maps the configured level name to a logger level. Unknown
// names fall back to info.
func (c LogConfig) PeerCallsLevel() log.Level {
	switch c.Level {
	case "trace":
		return log.LevelTrace
	case "debug":
		return log.LevelDebug
	case "warn":
		return log.LevelWarn
	case "error":
		return log.LevelError
	case "disabled":
		return log.LevelDisabled
	default:
		return log.LevelInfo
	}
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		SocketPath: DefaultSocketPath(),

		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultSocketPath places the socket in XDG_RUNTIME_DIR, falling back to
// the home directory.
func DefaultSocketPath() string {
	return path.Join(socketDir(), "veild.sock")
}

func socketDir() string {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir != "" {
		return runtimeDir
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return homeDir
	}

	return ""
}

// Load reads a yaml config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(filePath string) (Config, error) {
	cfg := Default()

	if filePath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}
