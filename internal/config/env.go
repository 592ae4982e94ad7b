package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnv overlays VAI_STUDIO_* variables and the standard Gemini key
// variables onto c.
func (c *Config) applyEnv() {
	c.Gemini.APIKey = envOr("VAI_STUDIO_API_KEY", c.Gemini.APIKey)
	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = envOr("GEMINI_API_KEY", envOr("GOOGLE_API_KEY", ""))
	}
	c.Gemini.BaseURL = envOr("VAI_STUDIO_BASE_URL", c.Gemini.BaseURL)
	c.Gemini.LiveURL = envOr("VAI_STUDIO_LIVE_URL", c.Gemini.LiveURL)
	c.Gemini.ChatModel = envOr("VAI_STUDIO_CHAT_MODEL", c.Gemini.ChatModel)
	c.Gemini.ImageModel = envOr("VAI_STUDIO_IMAGE_MODEL", c.Gemini.ImageModel)
	c.Gemini.EditModel = envOr("VAI_STUDIO_EDIT_MODEL", c.Gemini.EditModel)
	c.Gemini.VideoModel = envOr("VAI_STUDIO_VIDEO_MODEL", c.Gemini.VideoModel)
	c.Gemini.LiveModel = envOr("VAI_STUDIO_LIVE_MODEL", c.Gemini.LiveModel)

	c.Chat.System = envOr("VAI_STUDIO_CHAT_SYSTEM", c.Chat.System)

	c.Video.PollInterval.Duration = envDurationOr("VAI_STUDIO_VIDEO_POLL_INTERVAL", c.Video.PollInterval.Duration)
	c.Video.AspectRatio = envOr("VAI_STUDIO_VIDEO_ASPECT_RATIO", c.Video.AspectRatio)

	c.Live.Voice = envOr("VAI_STUDIO_LIVE_VOICE", c.Live.Voice)
	c.Live.System = envOr("VAI_STUDIO_LIVE_SYSTEM", c.Live.System)
	c.Live.InputSampleRate = envIntOr("VAI_STUDIO_LIVE_INPUT_RATE", c.Live.InputSampleRate)
	c.Live.OutputSampleRate = envIntOr("VAI_STUDIO_LIVE_OUTPUT_RATE", c.Live.OutputSampleRate)
	c.Live.BlockSize = envIntOr("VAI_STUDIO_LIVE_BLOCK_SIZE", c.Live.BlockSize)

	c.Audio.FFmpeg = envOr("VAI_STUDIO_FFMPEG", c.Audio.FFmpeg)
	c.Audio.FFplay = envOr("VAI_STUDIO_FFPLAY", c.Audio.FFplay)
	c.Audio.InputDevice = envOr("VAI_STUDIO_INPUT_DEVICE", c.Audio.InputDevice)

	c.Logging.Level = envOr("VAI_STUDIO_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = envOr("VAI_STUDIO_LOG_FORMAT", c.Logging.Format)
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
