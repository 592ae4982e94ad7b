package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/vango-go/vai-studio/pkg/core/media"
	"github.com/vango-go/vai-studio/pkg/core/types"
	"github.com/vango-go/vai-studio/pkg/studio"
)

type generateFlags struct {
	out         string
	aspectRatio string
	source      string
}

func newImageCommand(ctx *commandContext) *cobra.Command {
	var flags generateFlags
	cmd := &cobra.Command{
		Use:   "image <prompt>",
		Short: "Generate an image",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGeneration(cmd, ctx, studio.KindImage, args, flags)
		},
	}
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "Output file (default: derived from the media type)")
	cmd.Flags().StringVar(&flags.aspectRatio, "aspect-ratio", "", "Aspect ratio such as 1:1 or 16:9")
	return cmd
}

func newEditCommand(ctx *commandContext) *cobra.Command {
	var flags generateFlags
	cmd := &cobra.Command{
		Use:   "edit <prompt>",
		Short: "Edit an existing image",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGeneration(cmd, ctx, studio.KindEdit, args, flags)
		},
	}
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "Output file (default: derived from the media type)")
	cmd.Flags().StringVarP(&flags.source, "source", "s", "", "Image to edit")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func newVideoCommand(ctx *commandContext) *cobra.Command {
	var flags generateFlags
	cmd := &cobra.Command{
		Use:   "video <prompt>",
		Short: "Generate a video; this can take several minutes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGeneration(cmd, ctx, studio.KindVideo, args, flags)
		},
	}
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "Output file (default: derived from the media type)")
	cmd.Flags().StringVar(&flags.aspectRatio, "aspect-ratio", "", "Aspect ratio such as 16:9 or 9:16")
	cmd.Flags().StringVarP(&flags.source, "source", "s", "", "Optional starting image")
	return cmd
}

func runGeneration(cmd *cobra.Command, ctx *commandContext, kind studio.GenerationKind, args []string, flags generateFlags) error {
	out := cmd.OutOrStdout()
	s := ctx.newStudio(newTerminalObserver(out, true), false)
	defer s.Close()

	ref, err := s.StartGeneration(cmd.Context(), kind, studio.GenerationParams{
		Prompt:      strings.Join(args, " "),
		AspectRatio: flags.aspectRatio,
		SourcePath:  flags.source,
	})
	if err != nil {
		return err
	}

	path, err := saveMedia(ref, flags.out, time.Now())
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Fprintln(out, ref.Locator)
		return nil
	}
	fmt.Fprintf(out, "Saved %s to %s\n", ref.Kind, path)
	return nil
}

// saveMedia writes an embedded media object to path, or to a generated name
// when path is empty. Remote references are not downloaded; it then returns
// "" and no error.
func saveMedia(ref types.MediaRef, path string, now time.Time) (string, error) {
	if !media.IsDataURI(ref.Locator) {
		return "", nil
	}
	mimeType, data, err := media.ParseDataURI(ref.Locator)
	if err != nil {
		return "", err
	}
	if path == "" {
		path = fmt.Sprintf("vai-%s-%s%s", ref.Kind, now.Format("20060102-150405"), extensionFor(mimeType, data))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func extensionFor(mimeType string, data []byte) string {
	if m := mimetype.Lookup(mimeType); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	return mimetype.Detect(data).Extension()
}
