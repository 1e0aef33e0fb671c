// Package genai reaches the public generative-AI API through its
// OpenAI-compatible chat completions endpoint.
//
// The langchaingo client has no notion of request labels, so labels travel
// through the HTTP transport: labelTransport adds them to the request body
// as a "metadata" object and records what it sent and the status it got.
package genai

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/roach88/labelcheck/internal/backend"
	"github.com/roach88/labelcheck/internal/labels"
)

// Defaults applied when Config leaves a field empty.
const (
	DefaultModel   = "gemini-2.0-flash"
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
)

// Config holds adapter settings.
type Config struct {
	// APIKey authenticates requests. Empty reads GOOGLE_API_KEY.
	APIKey string

	// Model is the model name sent with every request.
	Model string

	// BaseURL is the OpenAI-compatible API root.
	BaseURL string

	// Lookup reads credential keys. Nil uses the process environment.
	Lookup backend.LookupFunc

	// Transport carries requests after labels are attached.
	// Nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// Adapter invokes the generative-AI API.
type Adapter struct {
	cfg        Config
	descriptor backend.Descriptor

	mu  sync.Mutex
	llm llms.Model
}

// New creates a genai adapter. The client is built on first Invoke.
func New(cfg Config) *Adapter {
	if cfg.Lookup == nil {
		cfg.Lookup = backend.EnvLookup
	}
	if cfg.APIKey == "" {
		cfg.APIKey, _ = cfg.Lookup(backend.EnvGoogleAPIKey)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}

	d, _ := backend.DescriptorFor(backend.GenAI)
	return &Adapter{cfg: cfg, descriptor: d}
}

func (a *Adapter) Identity() backend.Identity {
	return backend.GenAI
}

func (a *Adapter) Configured() bool {
	return a.descriptor.Satisfied(a.cfg.Lookup)
}

// Missing lists the required keys that are unset.
func (a *Adapter) Missing() []string {
	return a.descriptor.Missing(a.cfg.Lookup)
}

func (a *Adapter) model() (llms.Model, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.llm != nil {
		return a.llm, nil
	}

	llm, err := openai.New(
		openai.WithModel(a.cfg.Model),
		openai.WithToken(a.cfg.APIKey),
		openai.WithBaseURL(a.cfg.BaseURL),
		openai.WithHTTPClient(&http.Client{Transport: &labelTransport{base: a.cfg.Transport}}),
	)
	if err != nil {
		return nil, backend.AuthError("failed to create genai client", err)
	}
	a.llm = llm
	return llm, nil
}

// Invoke sends one chat completion carrying effective as metadata.
func (a *Adapter) Invoke(ctx context.Context, effective *labels.Set, prompt string) (*backend.Response, error) {
	llm, err := a.model()
	if err != nil {
		return nil, err
	}

	c := &call{labels: effective}
	text, err := llms.GenerateFromSinglePrompt(withCall(ctx, c), llm, prompt)
	if err != nil {
		return nil, classify(ctx, c, err)
	}

	return &backend.Response{Text: text, Forwarded: c.forwarded()}, nil
}

func classify(ctx context.Context, c *call, err error) error {
	status := c.statusCode()
	switch {
	case status >= 300:
		return &backend.Error{
			Kind:    backend.KindForStatus(status),
			Message: fmt.Sprintf("chat completion returned status %d", status),
			Err:     err,
		}
	case ctx.Err() != nil:
		return backend.Classify(ctx.Err())
	case status == 0:
		return backend.TransientError("request failed", err)
	default:
		return backend.ProtocolError("malformed response", err)
	}
}
