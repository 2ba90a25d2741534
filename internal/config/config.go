// Package config loads acme-crafts settings from a TOML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all values read at startup.
type Config struct {
	// PixelSize is the edge, in pixels, of one rendered cell.
	PixelSize int `mapstructure:"pixel_size"`

	// Editable enables the Paint and Pad commands.
	Editable bool `mapstructure:"editable"`

	// Match selects the acme windows, by file name, that are treated as
	// designs.
	Match string `mapstructure:"match"`

	// Service is the 9P service of the style compositor and Layer the
	// name of the layer highlights are written to.
	Service string `mapstructure:"service"`
	Layer   string `mapstructure:"layer"`

	// PreviewDir receives a PNG per design on every change.  When empty,
	// previews are only written by the Render command, beside the design.
	PreviewDir string `mapstructure:"preview_dir"`

	// Debounce is how long body edits settle before the design is
	// reloaded.
	Debounce time.Duration `mapstructure:"debounce"`
}

var (
	ErrBadPixelSize = errors.New("pixel_size must be positive")
	ErrBadDebounce  = errors.New("debounce must not be negative")
)

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		PixelSize: 20,
		Editable:  true,
		Match:     `\.craft\.json$`,
		Service:   "acme-styles",
		Layer:     "crafts",
		Debounce:  300 * time.Millisecond,
	}
}

// Load reads configuration from path, or from the default location when
// path is empty.  A missing file is not an error.  Environment variables
// prefixed ACME_CRAFTS_ override file values; ACME_CRAFTS_CONFIG names
// the file when path is empty.
func Load(path string) (Config, error) {
	v := viper.New()

	d := Defaults()
	v.SetDefault("pixel_size", d.PixelSize)
	v.SetDefault("editable", d.Editable)
	v.SetDefault("match", d.Match)
	v.SetDefault("service", d.Service)
	v.SetDefault("layer", d.Layer)
	v.SetDefault("preview_dir", d.PreviewDir)
	v.SetDefault("debounce", d.Debounce)

	v.SetConfigType("toml")

	if path == "" {
		path = os.Getenv("ACME_CRAFTS_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "acme-crafts"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("ACME_CRAFTS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	if c.PixelSize <= 0 {
		return fmt.Errorf("%w: got %d", ErrBadPixelSize, c.PixelSize)
	}
	if c.Debounce < 0 {
		return fmt.Errorf("%w: got %v", ErrBadDebounce, c.Debounce)
	}
	if _, err := regexp.Compile(c.Match); err != nil {
		return fmt.Errorf("match: %w", err)
	}
	return nil
}

// Matcher compiles Match.  Call after Validate.
func (c Config) Matcher() *regexp.Regexp {
	return regexp.MustCompile(c.Match)
}
