// Package config loads vai-studio settings from defaults, an optional TOML
// file, and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full client configuration.
type Config struct {
	Gemini  Gemini  `toml:"gemini"`
	Chat    Chat    `toml:"chat"`
	Video   Video   `toml:"video"`
	Live    Live    `toml:"live"`
	Audio   Audio   `toml:"audio"`
	Logging Logging `toml:"logging"`
}

// Gemini holds the credential and per-capability models.
type Gemini struct {
	APIKey     string `toml:"api_key"`
	BaseURL    string `toml:"base_url"`
	LiveURL    string `toml:"live_url"`
	ChatModel  string `toml:"chat_model"`
	ImageModel string `toml:"image_model"`
	EditModel  string `toml:"edit_model"`
	VideoModel string `toml:"video_model"`
	LiveModel  string `toml:"live_model"`
}

// Chat configures grounded chat.
type Chat struct {
	System string `toml:"system"`
}

// Video configures video jobs.
type Video struct {
	PollInterval Duration `toml:"poll_interval"`
	AspectRatio  string   `toml:"aspect_ratio"`
}

// Live configures live audio sessions.
type Live struct {
	Voice            string `toml:"voice"`
	System           string `toml:"system"`
	InputSampleRate  int    `toml:"input_sample_rate"`
	OutputSampleRate int    `toml:"output_sample_rate"`
	BlockSize        int    `toml:"block_size"`
}

// Audio locates the device helpers.
type Audio struct {
	FFmpeg      string `toml:"ffmpeg"`
	FFplay      string `toml:"ffplay"`
	InputDevice string `toml:"input_device"`
}

// Logging configures the slog handler.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Duration is a time.Duration written as a Go duration string in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(b), err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultPath returns ~/.config/vai-studio/config.toml (or the platform
// equivalent).
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "vai-studio", "config.toml"), nil
}

// Load builds the configuration. An empty path uses DefaultPath; a missing file
// is not an error. Environment variables override file values.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := cfg.decodeFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) decodeFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	dec := toml.NewDecoder(file).DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("parse config %s: %s", path, strict.String())
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Encode writes c as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
