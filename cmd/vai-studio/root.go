package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/vango-go/vai-studio/internal/audiodev"
	"github.com/vango-go/vai-studio/internal/config"
	"github.com/vango-go/vai-studio/pkg/core/live"
	"github.com/vango-go/vai-studio/pkg/core/providers/gemini"
	"github.com/vango-go/vai-studio/pkg/studio"
)

type commandContext struct {
	configFlag   string
	envFileFlag  string
	logLevelFlag string

	once   sync.Once
	config *config.Config
	logger *slog.Logger
	err    error
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "vai-studio",
		Short:         "Grounded chat, image and video generation, and live voice with Gemini",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["skipConfigLoad"] == "true" {
				return nil
			}
			_, err := ctx.ensureConfig(cmd.ErrOrStderr())
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&ctx.envFileFlag, "env-file", ".env", "Load KEY=VALUE pairs from this file if it exists")
	rootCmd.PersistentFlags().StringVar(&ctx.logLevelFlag, "log-level", "", "Override logging.level (debug|info|warn|error)")

	rootCmd.AddCommand(newChatCommand(ctx))
	rootCmd.AddCommand(newImageCommand(ctx))
	rootCmd.AddCommand(newEditCommand(ctx))
	rootCmd.AddCommand(newVideoCommand(ctx))
	rootCmd.AddCommand(newLiveCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

func (c *commandContext) ensureConfig(stderr io.Writer) (*config.Config, error) {
	c.once.Do(func() {
		if path := strings.TrimSpace(c.envFileFlag); path != "" {
			if _, err := config.LoadDotenv(path); err != nil {
				c.err = err
				return
			}
		}
		cfg, err := config.Load(strings.TrimSpace(c.configFlag))
		if err != nil {
			c.err = err
			return
		}
		if lvl := strings.TrimSpace(c.logLevelFlag); lvl != "" {
			cfg.Logging.Level = strings.ToLower(lvl)
		}
		logger, err := newLogger(stderr, cfg)
		if err != nil {
			c.err = err
			return
		}
		c.config = cfg
		c.logger = logger
	})
	return c.config, c.err
}

func newLogger(w io.Writer, cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch cfg.Logging.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Logging.Format)
	}
}

func newProvider(cfg *config.Config, logger *slog.Logger) *gemini.Provider {
	opts := []gemini.Option{
		gemini.WithLogger(logger),
		gemini.WithLiveURL(cfg.Gemini.LiveURL),
		gemini.WithModels(gemini.Models{
			Chat:  cfg.Gemini.ChatModel,
			Image: cfg.Gemini.ImageModel,
			Edit:  cfg.Gemini.EditModel,
			Video: cfg.Gemini.VideoModel,
			Live:  cfg.Gemini.LiveModel,
		}),
	}
	if cfg.Gemini.BaseURL != "" {
		opts = append(opts, gemini.WithBaseURL(cfg.Gemini.BaseURL))
	}
	return gemini.New(cfg.Gemini.APIKey, opts...)
}

// newStudio builds a Studio from the loaded configuration. Audio devices are
// only attached when withAudio is set.
func (c *commandContext) newStudio(obs studio.Observer, withAudio bool) *studio.Studio {
	cfg := c.config
	var devices live.Devices
	if withAudio {
		devices = audiodev.New(cfg.Audio.FFmpeg, cfg.Audio.FFplay, cfg.Audio.InputDevice, c.logger)
	}
	return studio.New(newProvider(cfg, c.logger), devices, obs,
		studio.WithLogger(c.logger),
		studio.WithSystem(cfg.Chat.System),
		studio.WithAspectRatio(cfg.Video.AspectRatio),
		studio.WithPollInterval(cfg.Video.PollInterval.Duration),
		studio.WithLiveConfig(live.Config{
			Voice:            cfg.Live.Voice,
			System:           cfg.Live.System,
			InputSampleRate:  cfg.Live.InputSampleRate,
			OutputSampleRate: cfg.Live.OutputSampleRate,
			BlockSize:        cfg.Live.BlockSize,
		}),
	)
}
