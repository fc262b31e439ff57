package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func validConfig() Config {
	return Config{
		Chapter:       "chapters/lab.story",
		SaveDir:       "saves",
		Mode:          ModeState,
		PromptTimeout: time.Minute,
		UI:            UITUI,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestSavePath(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, filepath.Join("saves", "lab.json"), cfg.SavePath())
}

func TestLoad_DefaultsWithChapterFlag(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--chapter", "lab.story"}))

	cfg, err := Load("", fs)
	require.NoError(t, err)

	assert.Equal(t, "lab.story", cfg.Chapter)
	assert.Equal(t, "saves", cfg.SaveDir)
	assert.Equal(t, ModeState, cfg.Mode)
	assert.Equal(t, 2*time.Minute, cfg.PromptTimeout)
	assert.Equal(t, UITUI, cfg.UI)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "storyscript.yaml")
	err := os.WriteFile(path, []byte(`
chapter: chapters/lab.story
save_dir: /tmp/saves
mode: script
script: sim/yes.lua
prompt_timeout: 5s
ui: plain
logging:
  level: debug
  format: json
  output: storyscript.log
`), 0644)
	require.NoError(t, err)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "chapters/lab.story", cfg.Chapter)
	assert.Equal(t, "/tmp/saves", cfg.SaveDir)
	assert.Equal(t, ModeScript, cfg.Mode)
	assert.Equal(t, "sim/yes.lua", cfg.Script)
	assert.Equal(t, 5*time.Second, cfg.PromptTimeout)
	assert.Equal(t, UIPlain, cfg.UI)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "storyscript.log", cfg.Logging.Output)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "storyscript.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chapter: from-file.story\nui: plain\nmode: interactive\n"), 0644))

	t.Setenv("STORYSCRIPT_UI", "tui")
	t.Setenv("STORYSCRIPT_PROMPT_TIMEOUT", "9s")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--mode", "state"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, "from-file.story", cfg.Chapter, "file beats default")
	assert.Equal(t, UITUI, cfg.UI, "env beats file")
	assert.Equal(t, 9*time.Second, cfg.PromptTimeout, "env beats default")
	assert.Equal(t, ModeState, cfg.Mode, "set flag beats file")
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/path.yaml", nil)
	assert.Error(t, err)
}

func TestLoad_MissingChapter(t *testing.T) {
	_, err := Load("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chapter must not be empty")
}

func TestValidateMode(t *testing.T) {
	for _, mode := range []string{ModeState, ModeInteractive} {
		cfg := validConfig()
		cfg.Mode = mode
		assert.NoError(t, cfg.Validate(), "mode %q should be valid", mode)
	}
	cfg := validConfig()
	cfg.Mode = "psychic"
	assert.Error(t, cfg.Validate())
}

func TestValidateScriptModeNeedsScript(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = ModeScript
	assert.Error(t, cfg.Validate())

	cfg.Script = "sim.lua"
	assert.NoError(t, cfg.Validate())
}

func TestValidateUI(t *testing.T) {
	cfg := validConfig()
	cfg.UI = "web"
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := validConfig()
		cfg.Logging.Level = level
		assert.NoError(t, cfg.Validate(), "level %q should be valid", level)
	}
	cfg := validConfig()
	cfg.Logging.Level = "trace"
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestValidateCollectsAllViolations(t *testing.T) {
	cfg := Config{}
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"chapter", "save_dir", "mode", "prompt_timeout", "ui", "logging.level"} {
		assert.Contains(t, err.Error(), want)
	}
}

// Property-based tests

func TestPropertyPositiveTimeoutAccepted(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := rapid.Int64Range(1, int64(time.Hour)).Draw(t, "timeout")
		cfg := validConfig()
		cfg.PromptTimeout = time.Duration(d)
		if err := cfg.Validate(); err != nil {
			t.Fatalf("timeout %s rejected: %v", cfg.PromptTimeout, err)
		}
	})
}

func TestPropertyNonPositiveTimeoutRejected(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := rapid.Int64Range(-int64(time.Hour), 0).Draw(t, "timeout")
		cfg := validConfig()
		cfg.PromptTimeout = time.Duration(d)
		if cfg.Validate() == nil {
			t.Fatalf("timeout %s accepted", cfg.PromptTimeout)
		}
	})
}

func TestPropertyUnknownModeRejected(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		mode := rapid.StringMatching(`[a-z]{1,12}`).Filter(func(s string) bool {
			return s != ModeState && s != ModeInteractive && s != ModeScript
		}).Draw(t, "mode")
		cfg := validConfig()
		cfg.Mode = mode
		if cfg.Validate() == nil {
			t.Fatalf("mode %q accepted", mode)
		}
	})
}
