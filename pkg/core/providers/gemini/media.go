package gemini

import (
	"context"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"github.com/vango-go/vai-studio/pkg/core"
)

// GenerateImage produces one image from a text prompt.
func (p *Provider) GenerateImage(ctx context.Context, req core.ImageRequest) (*core.GeneratedMedia, error) {
	c, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, core.NewInvalidRequestError("prompt must not be empty")
	}

	resp, err := c.Models.GenerateImages(ctx, p.imageModel, req.Prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    req.AspectRatio,
	})
	if err != nil {
		return nil, mapError("generate image", err)
	}
	return imageResult(resp)
}

func imageResult(resp *genai.GenerateImagesResponse) (*core.GeneratedMedia, error) {
	if resp == nil {
		return nil, core.NewNoResultError("image generation returned no images")
	}
	var filtered string
	for _, img := range resp.GeneratedImages {
		if img == nil {
			continue
		}
		if img.Image != nil && len(img.Image.ImageBytes) > 0 {
			return &core.GeneratedMedia{
				Data:     img.Image.ImageBytes,
				MIMEType: orDefault(img.Image.MIMEType, "image/png"),
			}, nil
		}
		if img.RAIFilteredReason != "" {
			filtered = img.RAIFilteredReason
		}
	}
	if filtered != "" {
		return nil, core.NewNoResultError("image was filtered: " + filtered)
	}
	return nil, core.NewNoResultError("image generation returned no images")
}

// EditImage sends the source image with an instruction and returns the first
// image part of the response.
func (p *Provider) EditImage(ctx context.Context, req core.EditRequest) (*core.GeneratedMedia, error) {
	c, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	if len(req.Image) == 0 {
		return nil, core.NewInvalidRequestError("an image is required to edit")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, core.NewInvalidRequestError("prompt must not be empty")
	}

	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(req.Image, orDefault(req.ImageMIME, "image/png")),
		genai.NewPartFromText(req.Prompt),
	}, genai.RoleUser)}
	resp, err := c.Models.GenerateContent(ctx, p.editModel, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return nil, mapError("edit image", err)
	}
	return inlineImage(resp)
}

func inlineImage(resp *genai.GenerateContentResponse) (*core.GeneratedMedia, error) {
	if resp != nil {
		for _, cand := range resp.Candidates {
			if cand == nil || cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
					continue
				}
				if !strings.HasPrefix(part.InlineData.MIMEType, "image/") {
					continue
				}
				return &core.GeneratedMedia{
					Data:     part.InlineData.Data,
					MIMEType: part.InlineData.MIMEType,
				}, nil
			}
		}
	}
	return nil, core.NewNoResultError("the model did not return an edited image")
}

// SubmitVideo starts a video generation operation.
func (p *Provider) SubmitVideo(ctx context.Context, req core.VideoRequest) (*core.JobStatus, error) {
	c, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, core.NewInvalidRequestError("prompt must not be empty")
	}

	var image *genai.Image
	if len(req.Image) > 0 {
		image = &genai.Image{ImageBytes: req.Image, MIMEType: orDefault(req.ImageMIME, "image/png")}
	}
	op, err := c.Models.GenerateVideos(ctx, p.videoModel, req.Prompt, image, &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
		AspectRatio:    req.AspectRatio,
	})
	if err != nil {
		return nil, mapError("submit video", err)
	}
	p.logger.Debug("video operation started", "model", p.videoModel, "operation", op.Name)
	return videoStatus(op)
}

// PollVideo fetches the current state of a video operation.
func (p *Provider) PollVideo(ctx context.Context, name string) (*core.JobStatus, error) {
	c, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	op, err := c.Operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: name}, nil)
	if err != nil {
		return nil, mapError("poll video", err)
	}
	return videoStatus(op)
}

// DownloadVideo fetches the bytes of a generated video URI, which requires
// the API key.
func (p *Provider) DownloadVideo(ctx context.Context, uri string) ([]byte, error) {
	c, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	data, err := c.Files.Download(ctx, genai.NewDownloadURIFromVideo(&genai.Video{URI: uri}), nil)
	if err != nil {
		return nil, mapError("download video", err)
	}
	return data, nil
}

func videoStatus(op *genai.GenerateVideosOperation) (*core.JobStatus, error) {
	if op == nil {
		return nil, core.NewNoResultError("video operation missing")
	}
	if len(op.Error) > 0 {
		msg, _ := op.Error["message"].(string)
		if msg == "" {
			msg = "video generation failed"
		}
		return nil, core.NewUpstreamRejectedError(msg, errorCode(op.Error), nil)
	}

	st := &core.JobStatus{Name: op.Name, Done: op.Done}
	if op.Done && op.Response != nil {
		for _, gv := range op.Response.GeneratedVideos {
			if gv == nil || gv.Video == nil {
				continue
			}
			if gv.Video.URI == "" && len(gv.Video.VideoBytes) == 0 {
				continue
			}
			st.Result = &core.GeneratedMedia{
				URL:      gv.Video.URI,
				Data:     gv.Video.VideoBytes,
				MIMEType: orDefault(gv.Video.MIMEType, "video/mp4"),
			}
			break
		}
	}
	return st, nil
}

func errorCode(m map[string]any) string {
	switch v := m["code"].(type) {
	case string:
		return v
	case float64:
		return strconv.Itoa(int(v))
	}
	return ""
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
