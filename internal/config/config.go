package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultBaudRate    = 115200
	DefaultBootTimeout = 10 * time.Minute
)

// DefaultTargets are built in build-only mode when no target is given.
var DefaultTargets = []string{"aosp_angler-eng", "aosp_bullhead-eng", "aosp_marlin-eng"}

// Config holds the settings read from config files. Command line flags
// take precedence over everything here.
type Config struct {
	Targets         []string `json:"targets,omitempty"`
	Jobs            int      `json:"jobs,omitempty"`
	FlashallPath    string   `json:"flashall_path,omitempty"`
	ToolchainRoot   string   `json:"toolchain_root,omitempty"`
	ConsolePort     string   `json:"console_port,omitempty"`
	ConsoleBaudRate int      `json:"console_baud_rate,omitempty"`
	BootTimeout     string   `json:"boot_timeout,omitempty"`
	History         *bool    `json:"history,omitempty"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	history := true
	return Config{
		Targets:         append([]string(nil), DefaultTargets...),
		ConsoleBaudRate: DefaultBaudRate,
		BootTimeout:     DefaultBootTimeout.String(),
		History:         &history,
	}
}

// Load reads and merges global and tree configs.
// Order: defaults → global (~/.config/droidclang/config.json) → tree (<android>/.droidclang/config.json).
func Load(androidRoot string) Config {
	cfg := Defaults()

	if home, err := os.UserHomeDir(); err == nil {
		mergeFromFile(&cfg, filepath.Join(home, ".config", "droidclang", "config.json"))
	}

	if androidRoot != "" {
		mergeFromFile(&cfg, filepath.Join(androidRoot, ".droidclang", "config.json"))
	}

	return cfg
}

// BootTimeoutDuration parses BootTimeout, falling back to the default.
func (c Config) BootTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.BootTimeout)
	if err != nil || d <= 0 {
		return DefaultBootTimeout
	}
	return d
}

// HistoryEnabled reports whether run history should be written.
func (c Config) HistoryEnabled() bool {
	return c.History == nil || *c.History
}

func mergeFromFile(cfg *Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var fileCfg Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return
	}

	if len(fileCfg.Targets) > 0 {
		cfg.Targets = fileCfg.Targets
	}
	if fileCfg.Jobs != 0 {
		cfg.Jobs = fileCfg.Jobs
	}
	if fileCfg.FlashallPath != "" {
		cfg.FlashallPath = fileCfg.FlashallPath
	}
	if fileCfg.ToolchainRoot != "" {
		cfg.ToolchainRoot = fileCfg.ToolchainRoot
	}
	if fileCfg.ConsolePort != "" {
		cfg.ConsolePort = fileCfg.ConsolePort
	}
	if fileCfg.ConsoleBaudRate != 0 {
		cfg.ConsoleBaudRate = fileCfg.ConsoleBaudRate
	}
	if fileCfg.BootTimeout != "" {
		cfg.BootTimeout = fileCfg.BootTimeout
	}
	if fileCfg.History != nil {
		cfg.History = fileCfg.History
	}
}
