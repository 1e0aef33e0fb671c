// Package vertex reaches the cloud ML platform through the Vertex AI
// generateContent API, sending the effective labels as request labels.
package vertex

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"google.golang.org/api/aiplatform/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/roach88/labelcheck/internal/backend"
	"github.com/roach88/labelcheck/internal/labels"
)

// Defaults applied when Config leaves a field empty.
const (
	DefaultLocation = "us-central1"
	DefaultModel    = "gemini-2.0-flash"

	// EnvLocation overrides DefaultLocation when Config.Location is empty.
	EnvLocation = "GOOGLE_CLOUD_LOCATION"
)

// Config holds adapter settings.
type Config struct {
	// Project is the GCP project ID. Empty reads GOOGLE_CLOUD_PROJECT.
	Project string

	// Location is the region hosting the model.
	Location string

	// Model is the publisher model name, e.g. "gemini-2.0-flash".
	Model string

	// Endpoint overrides the regional endpoint
	// https://{location}-aiplatform.googleapis.com/.
	Endpoint string

	// Lookup reads credential keys. Nil uses the process environment.
	Lookup backend.LookupFunc

	// ClientOptions are appended after the endpoint option when the
	// service client is created.
	ClientOptions []option.ClientOption
}

// Adapter invokes Vertex AI.
type Adapter struct {
	cfg        Config
	descriptor backend.Descriptor

	mu  sync.Mutex
	svc *aiplatform.Service
}

// New creates a Vertex adapter. No credentials are resolved until the
// first Invoke, so an unconfigured adapter never touches the network.
func New(cfg Config) *Adapter {
	if cfg.Lookup == nil {
		cfg.Lookup = backend.EnvLookup
	}
	if cfg.Project == "" {
		cfg.Project, _ = cfg.Lookup(backend.EnvGoogleCloudProject)
	}
	if cfg.Location == "" {
		if loc, ok := cfg.Lookup(EnvLocation); ok && loc != "" {
			cfg.Location = loc
		} else {
			cfg.Location = DefaultLocation
		}
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = fmt.Sprintf("https://%s-aiplatform.googleapis.com/", cfg.Location)
	}

	d, _ := backend.DescriptorFor(backend.Vertex)
	return &Adapter{cfg: cfg, descriptor: d}
}

func (a *Adapter) Identity() backend.Identity {
	return backend.Vertex
}

func (a *Adapter) Configured() bool {
	return a.descriptor.Satisfied(a.cfg.Lookup)
}

// Missing lists the required keys that are unset.
func (a *Adapter) Missing() []string {
	return a.descriptor.Missing(a.cfg.Lookup)
}

// ModelName returns the full publisher model resource name.
func (a *Adapter) ModelName() string {
	return fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s",
		a.cfg.Project, a.cfg.Location, a.cfg.Model)
}

// service creates the API client once. The client outlives the call that
// created it, so it is built on a context that is never canceled.
func (a *Adapter) service(ctx context.Context) (*aiplatform.Service, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.svc != nil {
		return a.svc, nil
	}

	opts := append([]option.ClientOption{option.WithEndpoint(a.cfg.Endpoint)}, a.cfg.ClientOptions...)
	svc, err := aiplatform.NewService(context.WithoutCancel(ctx), opts...)
	if err != nil {
		return nil, backend.AuthError("failed to create vertex client", err)
	}
	a.svc = svc
	return svc, nil
}

// Invoke sends one generateContent request.
// Labels are omitted from the request when the effective set is empty.
func (a *Adapter) Invoke(ctx context.Context, effective *labels.Set, prompt string) (*backend.Response, error) {
	svc, err := a.service(ctx)
	if err != nil {
		return nil, err
	}

	req := &aiplatform.GoogleCloudAiplatformV1GenerateContentRequest{
		Contents: []*aiplatform.GoogleCloudAiplatformV1Content{
			{
				Role:  "user",
				Parts: []*aiplatform.GoogleCloudAiplatformV1Part{{Text: prompt}},
			},
		},
	}
	forwarded := labels.Empty()
	if effective.Len() > 0 {
		req.Labels = effective.Map()
		forwarded = labels.Merge(labels.Layer{Labels: effective})
	}

	resp, err := svc.Projects.Locations.Publishers.Models.GenerateContent(a.ModelName(), req).Context(ctx).Do()
	if err != nil {
		return nil, classify(ctx, err)
	}

	return &backend.Response{
		Text:      responseText(resp),
		Forwarded: forwarded,
	}, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *aiplatform.GoogleCloudAiplatformV1GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

func classify(ctx context.Context, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &backend.Error{
			Kind:    backend.KindForStatus(gerr.Code),
			Message: fmt.Sprintf("generateContent returned status %d", gerr.Code),
			Err:     err,
		}
	}
	if ctx.Err() != nil {
		return backend.Classify(ctx.Err())
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return backend.TransientError("request failed", err)
	}
	return backend.ProtocolError("malformed response", err)
}
