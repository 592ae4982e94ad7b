package config

import (
	"fmt"
	"log/slog"
	"strings"
)

func (c *Config) normalize() {
	c.Gemini.APIKey = strings.TrimSpace(c.Gemini.APIKey)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Gemini.ChatModel = strings.TrimPrefix(c.Gemini.ChatModel, "models/")
	c.Gemini.ImageModel = strings.TrimPrefix(c.Gemini.ImageModel, "models/")
	c.Gemini.EditModel = strings.TrimPrefix(c.Gemini.EditModel, "models/")
	c.Gemini.VideoModel = strings.TrimPrefix(c.Gemini.VideoModel, "models/")
}

// Validate reports the first unusable setting. A missing API key is allowed:
// capabilities fail individually when used.
func (c *Config) Validate() error {
	if c.Video.PollInterval.Duration <= 0 {
		return fmt.Errorf("video.poll_interval must be positive")
	}
	if c.Live.InputSampleRate <= 0 || c.Live.OutputSampleRate <= 0 {
		return fmt.Errorf("live sample rates must be positive")
	}
	if c.Live.BlockSize <= 0 {
		return fmt.Errorf("live.block_size must be positive")
	}
	if c.Audio.FFmpeg == "" || c.Audio.FFplay == "" {
		return fmt.Errorf("audio.ffmpeg and audio.ffplay must be set")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be one of text|json")
	}
	return nil
}

// SlogLevel parses Logging.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return 0, fmt.Errorf("logging.level must be one of debug|info|warn|error")
	}
	return lvl, nil
}
