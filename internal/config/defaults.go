package config

import (
	"github.com/vango-go/vai-studio/pkg/core/audio"
	"github.com/vango-go/vai-studio/pkg/core/live"
	"github.com/vango-go/vai-studio/pkg/core/providers/gemini"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Gemini: Gemini{
			LiveURL:    gemini.DefaultLiveURL,
			ChatModel:  gemini.DefaultChatModel,
			ImageModel: gemini.DefaultImageModel,
			EditModel:  gemini.DefaultEditModel,
			VideoModel: gemini.DefaultVideoModel,
			LiveModel:  gemini.DefaultLiveModel,
		},
		Chat: Chat{
			System: "You are a helpful assistant. Ground answers in search results.",
		},
		Video: Video{
			PollInterval: Duration{types.DefaultPollInterval},
			AspectRatio:  "16:9",
		},
		Live: Live{
			Voice:            gemini.DefaultVoice,
			System:           "You are a friendly voice assistant. Keep answers short.",
			InputSampleRate:  audio.InputSampleRate,
			OutputSampleRate: audio.OutputSampleRate,
			BlockSize:        live.DefaultBlockSize,
		},
		Audio: Audio{
			FFmpeg: "ffmpeg",
			FFplay: "ffplay",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}
