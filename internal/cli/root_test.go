package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()

	names := make(map[string]bool)
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "validate", "backends", "history", "show"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	cmd := NewRootCommand()
	flags := cmd.PersistentFlags()

	require.NotNil(t, flags.Lookup("verbose"))
	assert.Equal(t, "v", flags.Lookup("verbose").Shorthand)
	require.NotNil(t, flags.Lookup("format"))
	assert.Equal(t, "text", flags.Lookup("format").DefValue)
	require.NotNil(t, flags.Lookup("config"))
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	cmd := NewRootCommandWithOptions(testOptions())

	_, err := execute(t, cmd, "--format", "xml", "backends")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestRootCommand_FormatReachesSubcommand(t *testing.T) {
	opts := testOptions()
	cmd := NewRootCommandWithOptions(opts)

	out, err := execute(t, cmd, "--format", "json", "backends")
	require.NoError(t, err)
	assert.Equal(t, "json", opts.Format)
	assert.Equal(t, "ok", decodeResponse(t, out).Status)
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("yaml"))
}
