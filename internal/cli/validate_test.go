package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommand_DefaultSuite(t *testing.T) {
	out, err := execute(t, NewValidateCommand(testOptions()))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ override {region=us-west-1, team=prod}")
	assert.Contains(t, out, "✓ empty_labels {}")
	assert.Contains(t, out, "6 scenario(s), 0 mismatched")
}

func TestValidateCommand_Mismatch(t *testing.T) {
	dir := t.TempDir()
	path := writeSuite(t, dir, "suite.yaml", `
scenarios:
  - name: wrong
    layers:
      - origin: override
        labels: { team: prod }
      - origin: default
        labels: { team: research }
    expect:
      labels: { team: research }
`)

	out, err := execute(t, NewValidateCommand(testOptions()), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong {team=prod}")
	assert.Contains(t, out, "  expected {team=research}")
	assert.Contains(t, out, "1 scenario(s), 1 mismatched")
}

func TestValidateCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeSuite(t, dir, "suite.yaml", teamSuite+`
  - name: no_expect
    layers:
      - origin: default
        labels: { env: dev }
`)
	opts := testOptions()
	opts.Format = "json"

	out, err := execute(t, NewValidateCommand(opts), path)
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	var result ValidateResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	require.Len(t, result.Scenarios, 2)
	assert.Equal(t, ScenarioCheck{
		Name:      "team_override",
		Effective: map[string]string{"team": "prod"},
		Expected:  map[string]string{"team": "prod"},
		OK:        true,
	}, result.Scenarios[0])
	assert.Nil(t, result.Scenarios[1].Expected)
	assert.True(t, result.Scenarios[1].OK)
	assert.Zero(t, result.Mismatched)
}

func TestValidateCommand_InvalidSuite(t *testing.T) {
	dir := t.TempDir()
	path := writeSuite(t, dir, "suite.yaml", `
scenarios:
  - name: x
    layers:
      - origin: sometimes
        labels: {}
`)
	_, err := execute(t, NewValidateCommand(testOptions()), path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "unknown layer origin")
}
