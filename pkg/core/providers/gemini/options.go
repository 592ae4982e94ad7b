package gemini

import (
	"log/slog"
	"net/http"
)

// Option configures the Provider.
type Option func(*Provider)

// WithBaseURL sets the base URL for REST requests.
// Default: https://generativelanguage.googleapis.com/
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = url
	}
}

// WithLiveURL sets the websocket endpoint for live sessions.
func WithLiveURL(url string) Option {
	return func(p *Provider) {
		if url != "" {
			p.liveURL = url
		}
	}
}

// WithHTTPClient sets the HTTP client for API requests.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Models selects the model used by each capability. Empty fields keep the
// defaults.
type Models struct {
	Chat  string
	Image string
	Edit  string
	Video string
	Live  string
}

// WithModels overrides the per-capability models.
func WithModels(m Models) Option {
	return func(p *Provider) {
		set := func(dst *string, v string) {
			if v != "" {
				*dst = v
			}
		}
		set(&p.chatModel, m.Chat)
		set(&p.imageModel, m.Image)
		set(&p.editModel, m.Edit)
		set(&p.videoModel, m.Video)
		set(&p.liveModel, m.Live)
	}
}
