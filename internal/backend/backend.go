// Package backend defines the contract every remote model surface is
// reached through, the identities of the supported surfaces, the
// credentials each one needs to be runnable, and the closed set of error
// kinds an invocation can fail with.
//
// Concrete adapters live in subpackages (vertex, genai, echo). They differ
// only in how they reach their remote collaborator; merging labels and
// recording outcomes is the harness's job.
package backend

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/roach88/labelcheck/internal/labels"
)

// Identity names the remote surface an adapter targets.
type Identity string

const (
	// Vertex is the cloud ML platform (Vertex AI generateContent).
	Vertex Identity = "vertex"
	// GenAI is the public generative-AI API (Gemini).
	GenAI Identity = "genai"
	// Echo is an offline backend that answers with its input.
	Echo Identity = "echo"
)

// Identities lists every known identity in sorted order.
func Identities() []Identity {
	return []Identity{Echo, GenAI, Vertex}
}

// ParseIdentity converts a backend name to an Identity.
func ParseIdentity(s string) (Identity, error) {
	for _, id := range Identities() {
		if string(id) == s {
			return id, nil
		}
	}
	return "", fmt.Errorf("unknown backend %q: must be one of %v", s, Identities())
}

// Response is the successful outcome of one invocation.
type Response struct {
	// Text is the model's reply.
	Text string

	// Forwarded is the label set the adapter actually placed on the
	// outgoing request. Nil when the adapter cannot observe it.
	Forwarded *labels.Set
}

// Adapter wraps one remote invocation surface.
//
// Implementations must honor ctx cancellation in Invoke and must not retry
// internally; failures are returned as *Error so the caller can decide.
type Adapter interface {
	// Identity reports which surface this adapter targets.
	Identity() Identity

	// Configured reports whether the credentials the surface requires are
	// present. It must not perform any network I/O.
	Configured() bool

	// Invoke performs one request/response round trip carrying effective
	// as the request labels.
	Invoke(ctx context.Context, effective *labels.Set, prompt string) (*Response, error)
}

// MissingReporter is implemented by adapters that can name the
// credentials they lack.
type MissingReporter interface {
	Missing() []string
}

// NotConfigured describes why a is not runnable. Decorators exposing
// Unwrap() Adapter are looked through.
func NotConfigured(a Adapter) *ConfigurationMissingError {
	e := &ConfigurationMissingError{Identity: a.Identity()}
	for a != nil {
		if r, ok := a.(MissingReporter); ok {
			e.Missing = r.Missing()
			break
		}
		u, ok := a.(interface{ Unwrap() Adapter })
		if !ok {
			break
		}
		a = u.Unwrap()
	}
	return e
}

// LookupFunc reads a named configuration value, like os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// EnvLookup reads from the process environment.
func EnvLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// Descriptor names the configuration keys an identity needs to be runnable.
// Only presence is checked, never validity.
type Descriptor struct {
	Identity Identity
	Required []string
}

// Missing returns the required keys that are unset or empty, sorted.
func (d Descriptor) Missing(lookup LookupFunc) []string {
	if lookup == nil {
		lookup = EnvLookup
	}
	var missing []string
	for _, key := range d.Required {
		if v, ok := lookup(key); !ok || v == "" {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}

// Satisfied reports whether every required key is present.
func (d Descriptor) Satisfied(lookup LookupFunc) bool {
	return len(d.Missing(lookup)) == 0
}

// Credential keys read by the built-in descriptors.
const (
	EnvGoogleCloudProject = "GOOGLE_CLOUD_PROJECT"
	EnvGoogleCredentials  = "GOOGLE_APPLICATION_CREDENTIALS"
	EnvGoogleAPIKey       = "GOOGLE_API_KEY"
)

var descriptors = map[Identity]Descriptor{
	Vertex: {Identity: Vertex, Required: []string{EnvGoogleCloudProject, EnvGoogleCredentials}},
	GenAI:  {Identity: GenAI, Required: []string{EnvGoogleAPIKey}},
	Echo:   {Identity: Echo},
}

// DescriptorFor returns the credential descriptor of a known identity.
func DescriptorFor(id Identity) (Descriptor, bool) {
	d, ok := descriptors[id]
	if !ok {
		return Descriptor{}, false
	}
	d.Required = append([]string(nil), d.Required...)
	return d, true
}
