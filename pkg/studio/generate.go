package studio

import (
	"context"
	"strings"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/media"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

// GenerationKind selects what StartGeneration produces.
type GenerationKind string

const (
	KindImage GenerationKind = "image"
	KindEdit  GenerationKind = "edit"
	KindVideo GenerationKind = "video"
)

// GenerationParams are the user inputs of one generation.
type GenerationParams struct {
	Prompt string
	// AspectRatio overrides the configured default.
	AspectRatio string
	// SourcePath selects a new source image before generating. Edits require
	// a source; videos use it when present.
	SourcePath string
}

// videoDownloader fetches a generated video that is only reachable with the
// service credential.
type videoDownloader interface {
	DownloadVideo(ctx context.Context, uri string) ([]byte, error)
}

// StartGeneration produces one media object and blocks until it is ready.
// The result is reported through GenerationCompleted and appended to the
// transcript as a model message. Failures are reported through
// GenerationFailed and returned. Only one chat exchange or generation runs at
// a time; a second one fails with ErrGenerationInFlight or
// chat.ErrExchangeInFlight without reaching the service.
func (s *Studio) StartGeneration(ctx context.Context, kind GenerationKind, params GenerationParams) (types.MediaRef, error) {
	params.Prompt = strings.TrimSpace(params.Prompt)
	if params.Prompt == "" {
		return types.MediaRef{}, core.NewInvalidRequestError("prompt must not be empty")
	}

	if err := s.claim(generating); err != nil {
		return types.MediaRef{}, err
	}
	defer s.release()

	if params.AspectRatio == "" {
		params.AspectRatio = s.aspectRatio
	}
	log := s.logger.With("kind", string(kind))
	log.Info("generation started")

	ref, err := s.generate(ctx, kind, params)
	if err != nil {
		log.Error("generation failed", "err", err)
		s.observer.GenerationFailed(core.UserMessage(err))
		return types.MediaRef{}, err
	}

	log.Info("generation completed", "mime_type", ref.MIMEType)
	s.observer.GenerationCompleted(ref, params.Prompt)
	if err := s.conv.Append(types.Message{
		Role:  types.RoleModel,
		Media: []types.MediaRef{ref},
	}); err != nil {
		log.Warn("generated media not added to transcript", "err", err)
		return ref, err
	}
	return ref, nil
}

func (s *Studio) generate(ctx context.Context, kind GenerationKind, params GenerationParams) (types.MediaRef, error) {
	if params.SourcePath != "" {
		if _, err := s.SelectSource(params.SourcePath); err != nil {
			return types.MediaRef{}, err
		}
	}

	switch kind {
	case KindImage:
		out, err := s.service.GenerateImage(ctx, core.ImageRequest{
			Prompt:      params.Prompt,
			AspectRatio: params.AspectRatio,
		})
		if err != nil {
			return types.MediaRef{}, err
		}
		return mediaRef(types.MediaImage, out, params.Prompt)

	case KindEdit:
		src, err := s.sourcePayload()
		if err != nil {
			return types.MediaRef{}, err
		}
		if src == nil {
			return types.MediaRef{}, core.NewInvalidRequestError("select a source image to edit")
		}
		data, err := src.Bytes()
		if err != nil {
			return types.MediaRef{}, err
		}
		out, err := s.service.EditImage(ctx, core.EditRequest{
			Prompt:    params.Prompt,
			Image:     data,
			ImageMIME: src.MIMEType,
		})
		if err != nil {
			return types.MediaRef{}, err
		}
		return mediaRef(types.MediaImage, out, params.Prompt)

	case KindVideo:
		return s.generateVideo(ctx, params)

	default:
		return types.MediaRef{}, core.NewInvalidRequestError("unknown generation kind " + string(kind))
	}
}

func (s *Studio) generateVideo(ctx context.Context, params GenerationParams) (types.MediaRef, error) {
	req := core.VideoRequest{
		Prompt:      params.Prompt,
		AspectRatio: params.AspectRatio,
	}
	src, err := s.sourcePayload()
	if err != nil {
		return types.MediaRef{}, err
	}
	if src != nil {
		if req.Image, err = src.Bytes(); err != nil {
			return types.MediaRef{}, err
		}
		req.ImageMIME = src.MIMEType
	}

	s.observer.GenerationStatus("Submitting video job...")
	job, err := s.poller.Submit(ctx, req)
	if err != nil {
		return types.MediaRef{}, err
	}
	job, err = s.poller.Run(ctx, job, s.observer.GenerationStatus)
	if err != nil {
		return types.MediaRef{}, err
	}

	locator := job.ResultLocator
	if dl, ok := s.service.(videoDownloader); ok && !media.IsDataURI(locator) {
		data, err := dl.DownloadVideo(ctx, locator)
		if err != nil {
			return types.MediaRef{}, err
		}
		return media.FromGenerated(types.MediaVideo, data, job.ResultMIME, params.Prompt), nil
	}
	return types.MediaRef{
		Kind:     types.MediaVideo,
		Locator:  locator,
		Prompt:   params.Prompt,
		MIMEType: job.ResultMIME,
	}, nil
}

// sourcePayload reads the selected source image, or returns nil when none is
// selected.
func (s *Studio) sourcePayload() (*media.Payload, error) {
	locator := s.Source()
	if locator == "" {
		return nil, nil
	}
	path, ok := s.store.Resolve(locator)
	if !ok {
		return nil, core.NewInvalidRequestError("source image was released")
	}
	p, err := media.ToTransferable(path)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func mediaRef(kind types.MediaKind, out *core.GeneratedMedia, prompt string) (types.MediaRef, error) {
	switch {
	case out == nil:
		return types.MediaRef{}, core.NewNoResultError("completed without output")
	case len(out.Data) > 0:
		return media.FromGenerated(kind, out.Data, out.MIMEType, prompt), nil
	case out.URL != "":
		return media.FromRemote(kind, out.URL, out.MIMEType, prompt), nil
	default:
		return types.MediaRef{}, core.NewNoResultError("completed without output")
	}
}
