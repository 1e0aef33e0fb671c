package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/roach88/labelcheck/internal/labels"
)

// metadataField is the chat completions body field labels are sent in.
const metadataField = "metadata"

type callKey struct{}

// call carries one invocation's labels into the transport and the
// transport's observations back out.
type call struct {
	labels *labels.Set

	mu     sync.Mutex
	sent   *labels.Set
	status int
}

func withCall(ctx context.Context, c *call) context.Context {
	return context.WithValue(ctx, callKey{}, c)
}

func callFrom(ctx context.Context) *call {
	c, _ := ctx.Value(callKey{}).(*call)
	return c
}

func (c *call) forwarded() *labels.Set {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent
}

func (c *call) statusCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// labelTransport attaches labels to chat completion request bodies.
// Requests without a call in their context pass through untouched.
type labelTransport struct {
	base http.RoundTripper
}

func (t *labelTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c := callFrom(req.Context())
	if c == nil || req.Body == nil || !strings.HasSuffix(req.URL.Path, "/chat/completions") {
		return t.base.RoundTrip(req)
	}

	body, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, err
	}

	body, sent := attachLabels(body, c.labels)

	out := req.Clone(req.Context())
	out.Body = io.NopCloser(bytes.NewReader(body))
	out.ContentLength = int64(len(body))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	resp, err := t.base.RoundTrip(out)

	c.mu.Lock()
	c.sent = sent
	if resp != nil {
		c.status = resp.StatusCode
	}
	c.mu.Unlock()

	return resp, err
}

// attachLabels returns body with the metadata field set to set, and the
// label set that ended up on the wire. An empty set leaves the body as is
// and reports an empty forwarded set. A body that is not a JSON object is
// sent unchanged and reports nothing forwarded.
func attachLabels(body []byte, set *labels.Set) ([]byte, *labels.Set) {
	// Other fields stay raw so numbers and nesting are sent byte for byte.
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		return body, nil
	}
	if set.Len() == 0 {
		return body, labels.Empty()
	}

	meta, err := json.Marshal(set.Map())
	if err != nil {
		return body, nil
	}
	payload[metadataField] = meta
	out, err := json.Marshal(payload)
	if err != nil {
		return body, nil
	}
	return out, labels.Merge(labels.Layer{Labels: set})
}
