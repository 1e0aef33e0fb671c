// Package echo implements an offline backend that answers with its input.
// It needs no credentials and is useful for dry runs of a suite.
package echo

import (
	"context"
	"strings"

	"github.com/roach88/labelcheck/internal/backend"
	"github.com/roach88/labelcheck/internal/labels"
)

// Echo returns the prompt followed by the labels it received.
type Echo struct{}

// New creates an echo adapter.
func New() *Echo {
	return &Echo{}
}

func (e *Echo) Identity() backend.Identity {
	return backend.Echo
}

func (e *Echo) Configured() bool {
	return true
}

// Invoke returns "<prompt> [k=v,...]". The forwarded set is the effective
// set itself since nothing leaves the process.
func (e *Echo) Invoke(ctx context.Context, effective *labels.Set, prompt string) (*backend.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, backend.Classify(err)
	}

	keys := effective.Keys()
	pairs := make([]string, len(keys))
	for i, k := range keys {
		v, _ := effective.Get(k)
		pairs[i] = k + "=" + v
	}

	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString(" [")
	b.WriteString(strings.Join(pairs, ","))
	b.WriteString("]")

	return &backend.Response{
		Text:      b.String(),
		Forwarded: labels.Merge(labels.Layer{Labels: effective}),
	}, nil
}
