// Package config provides Viper-based configuration loading for storyscript.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Resolver modes select how action conditions are decided.
const (
	// ModeState answers every condition from runtime state.
	ModeState = "state"
	// ModeInteractive asks the player about user-state conditions.
	ModeInteractive = "interactive"
	// ModeScript asks a Lua simulation script about user-state conditions.
	ModeScript = "script"
)

// Front ends.
const (
	UITUI   = "tui"
	UIPlain = "plain"
)

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// Output is a file path, or "stderr"/"stdout".
	Output string `mapstructure:"output"`
}

// Config is the top-level application configuration.
type Config struct {
	// Chapter is the path of the chapter document to play.
	Chapter string `mapstructure:"chapter"`
	// SaveDir is where save files are written.
	SaveDir string `mapstructure:"save_dir"`
	// Mode is the condition resolver: "state", "interactive" or "script".
	Mode string `mapstructure:"mode"`
	// Script is the Lua simulation script used in script mode.
	Script string `mapstructure:"script"`
	// PromptTimeout bounds each condition evaluation.
	PromptTimeout time.Duration `mapstructure:"prompt_timeout"`
	// UI is the front end: "tui" or "plain".
	UI      string        `mapstructure:"ui"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SavePath returns the save file for the configured chapter.
func (c Config) SavePath() string {
	base := strings.TrimSuffix(filepath.Base(c.Chapter), filepath.Ext(c.Chapter))
	return filepath.Join(c.SaveDir, base+".json")
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if c.Chapter == "" {
		errs = append(errs, "chapter must not be empty")
	}
	if c.SaveDir == "" {
		errs = append(errs, "save_dir must not be empty")
	}
	if err := validateResolver(c); err != nil {
		errs = append(errs, err.Error())
	}
	validUI := map[string]bool{UITUI: true, UIPlain: true}
	if !validUI[c.UI] {
		errs = append(errs, fmt.Sprintf("ui must be one of [tui, plain], got %q", c.UI))
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateResolver(c Config) error {
	var errs []string
	validModes := map[string]bool{ModeState: true, ModeInteractive: true, ModeScript: true}
	if !validModes[c.Mode] {
		errs = append(errs, fmt.Sprintf("mode must be one of [state, interactive, script], got %q", c.Mode))
	}
	if c.Mode == ModeScript && c.Script == "" {
		errs = append(errs, "script must be set in script mode")
	}
	if c.PromptTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("prompt_timeout must be positive, got %s", c.PromptTimeout))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	if l.Output == "" {
		return errors.New("logging.output must not be empty")
	}
	return nil
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"chapter":        "chapter",
	"save-dir":       "save_dir",
	"mode":           "mode",
	"script":         "script",
	"prompt-timeout": "prompt_timeout",
	"ui":             "ui",
	"log-level":      "logging.level",
	"log-format":     "logging.format",
	"log-output":     "logging.output",
}

// AddFlags registers the configuration flags on fs. Flags left unset do
// not override the file or environment.
func AddFlags(fs *pflag.FlagSet) {
	fs.String("chapter", "", "chapter document to play")
	fs.String("save-dir", "saves", "directory for save files")
	fs.String("mode", ModeState, "condition resolver: state, interactive or script")
	fs.String("script", "", "Lua simulation script for script mode")
	fs.Duration("prompt-timeout", 2*time.Minute, "time limit for each condition evaluation")
	fs.String("ui", UITUI, "front end: tui or plain")
	fs.String("log-level", "warn", "log level: debug, info, warn or error")
	fs.String("log-format", "console", "log format: json or console")
	fs.String("log-output", "stderr", "log destination path")
}

// Load reads configuration from the given file path (optional), applies
// environment variable overrides and set flags, and validates the result.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()

	// Environment variable overrides with STORYSCRIPT_ prefix
	v.SetEnvPrefix("STORYSCRIPT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chapter", "")
	v.SetDefault("save_dir", "saves")
	v.SetDefault("mode", ModeState)
	v.SetDefault("script", "")
	v.SetDefault("prompt_timeout", "2m")
	v.SetDefault("ui", UITUI)

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
}
