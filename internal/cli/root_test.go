package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "genesis", cmd.Use)
	assert.Contains(t, cmd.Long, "idempotent")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"load", "tables", "index", "reset", "validate"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestLoadCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	loadCmd, _, err := cmd.Find([]string{"load"})
	require.NoError(t, err)

	tests := []struct {
		flag string
		def  string
	}{
		{"driver", "postgres"},
		{"dsn", ""},
		{"schema", "app"},
		{"specs", ""},
		{"entities", "[]"},
		{"concurrency", "3"},
		{"timeout", "30m0s"},
		{"metrics-textfile", ""},
	}
	for _, tt := range tests {
		f := loadCmd.Flags().Lookup(tt.flag)
		require.NotNil(t, f, tt.flag)
		assert.Equal(t, tt.def, f.DefValue, tt.flag)
	}
}

func TestResetCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	resetCmd, _, err := cmd.Find([]string{"reset"})
	require.NoError(t, err)

	cascade := resetCmd.Flags().Lookup("cascade")
	require.NotNil(t, cascade)
	assert.Equal(t, "false", cascade.DefValue)

	yes := resetCmd.Flags().Lookup("yes")
	require.NotNil(t, yes)
	assert.Equal(t, "y", yes.Shorthand)
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--format", "xml", "validate", "."})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}
