// Package config handles hotlua.toml project configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// FileName is the configuration file looked up by default.
const FileName = "hotlua.toml"

var validate = validator.New()

// Config represents a hotlua.toml file.
type Config struct {
	Scripts Scripts `toml:"scripts"`
	Runtime Runtime `toml:"runtime"`
	Network Network `toml:"network"`
	Log     Log     `toml:"log"`

	// Dir is the directory containing the file (set at load time).
	Dir string `toml:"-"`
}

// Scripts configures where script resources come from.
type Scripts struct {
	// Dir is searched after Bundle. Relative paths resolve against Config.Dir.
	Dir    string `toml:"dir"`
	Bundle string `toml:"bundle"`
	Root   string `toml:"root" validate:"excludesall=\\"`
	Entry  string `toml:"entry" validate:"required,excludesall=/\\"`
}

// Runtime configures the frame loop and interpreter.
type Runtime struct {
	FPS           int           `toml:"fps" validate:"min=1,max=1000"`
	TickInterval  time.Duration `toml:"tick_interval" validate:"gt=0"`
	GUIInterval   time.Duration `toml:"gui_interval" validate:"gte=0"`
	CollectOnTick bool          `toml:"collect_on_tick"`
	CallStackSize int           `toml:"call_stack_size" validate:"gte=0"`
	RegistrySize  int           `toml:"registry_size" validate:"gte=0"`
}

// Network configures the hotfix channel. An empty URL runs offline over a
// loopback transport.
type Network struct {
	URL       string `toml:"url" validate:"omitempty,url,startswith=ws"`
	QueueSize int    `toml:"queue_size" validate:"min=1"`
}

type Log struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=json console"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Scripts: Scripts{
			Dir:   "scripts",
			Root:  "Lua",
			Entry: "Game",
		},
		Runtime: Runtime{
			FPS:           60,
			TickInterval:  time.Second,
			GUIInterval:   time.Second,
			CollectOnTick: true,
		},
		Network: Network{QueueSize: 256},
		Log:     Log{Level: "info", Format: "console"},
		Dir:     ".",
	}
}

// Load parses the file at path over the defaults and validates the result.
// Unknown keys are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// LoadOrDefault loads path, falling back to Default when it does not exist.
func LoadOrDefault(path string) (*Config, error) {
	c, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return c, err
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// ScriptsDir returns the absolute scripts directory, or "" if unset.
func (c *Config) ScriptsDir() string {
	return c.resolve(c.Scripts.Dir)
}

// BundlePath returns the absolute bundle path, or "" if unset.
func (c *Config) BundlePath() string {
	return c.resolve(c.Scripts.Bundle)
}
