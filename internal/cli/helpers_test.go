package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labelcheck/internal/backend"
	"github.com/roach88/labelcheck/internal/config"
	"github.com/roach88/labelcheck/internal/testutil"
)

// testOptions returns root options that never touch the process
// environment or the network.
func testOptions(adapters ...backend.Adapter) *RootOptions {
	return &RootOptions{
		Format: "text",
		Lookup: testutil.MapEnv(map[string]string{}),
		NewAdapters: func(config.Config, backend.LookupFunc) []backend.Adapter {
			return adapters
		},
		LogOutput: io.Discard,
	}
}

// execute runs cmd with args and returns its stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

type jsonResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
}

func decodeResponse(t *testing.T, out string) jsonResponse {
	t.Helper()
	var resp jsonResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

func writeSuite(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const teamSuite = `
scenarios:
  - name: team_override
    layers:
      - origin: default
        labels: { team: research }
      - origin: override
        labels: { team: prod }
    expect:
      labels: { team: prod }
`
