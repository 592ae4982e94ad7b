// Package gemini implements the remote service boundary on top of the Google
// Gemini API: grounded chat streaming, image generation and editing, video
// jobs, and live audio sessions.
package gemini

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/vango-go/vai-studio/pkg/core"
)

const (
	DefaultChatModel  = "gemini-2.5-flash"
	DefaultImageModel = "imagen-4.0-generate-001"
	DefaultEditModel  = "gemini-2.5-flash-image"
	DefaultVideoModel = "veo-3.0-generate-001"
	DefaultLiveModel  = "gemini-2.5-flash-native-audio-preview-09-2025"
	DefaultVoice      = "Zephyr"

	// DefaultLiveURL is the bidirectional streaming endpoint.
	DefaultLiveURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
)

var _ core.Service = (*Provider)(nil)

// Provider implements core.Service against the Gemini API.
//
// A Provider without an API key is valid: every capability then fails with
// core.ErrCredentialMissing when first used.
type Provider struct {
	apiKey     string
	baseURL    string
	liveURL    string
	httpClient *http.Client
	logger     *slog.Logger

	chatModel  string
	imageModel string
	editModel  string
	videoModel string
	liveModel  string

	mu     sync.Mutex
	sdk    *genai.Client
	genErr error
}

// New creates a Gemini provider.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:     strings.TrimSpace(apiKey),
		liveURL:    DefaultLiveURL,
		httpClient: &http.Client{},
		logger:     slog.Default(),
		chatModel:  DefaultChatModel,
		imageModel: DefaultImageModel,
		editModel:  DefaultEditModel,
		videoModel: DefaultVideoModel,
		liveModel:  DefaultLiveModel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "gemini"
}

// HasCredential reports whether an API key was configured.
func (p *Provider) HasCredential() bool {
	return p.apiKey != ""
}

// client returns the SDK client, creating it on first use.
func (p *Provider) client(ctx context.Context) (*genai.Client, error) {
	if p.apiKey == "" {
		return nil, core.NewCredentialMissingError("no Gemini API key configured")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sdk != nil || p.genErr != nil {
		return p.sdk, p.genErr
	}

	cfg := &genai.ClientConfig{
		APIKey:     p.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.httpClient,
	}
	if p.baseURL != "" {
		cfg.HTTPOptions.BaseURL = p.baseURL
	}
	c, err := genai.NewClient(ctx, cfg)
	if err != nil {
		p.genErr = core.NewCapabilityUnavailableError("create Gemini client", err)
		return nil, p.genErr
	}
	p.sdk = c
	return c, nil
}
