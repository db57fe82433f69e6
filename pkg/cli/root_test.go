package cli

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

// captureOutput redirects command output for the duration of the test
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := output
	output = &buf
	t.Cleanup(func() { output = old })
	return &buf
}

func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand()

	assert.Equal(t, "sphinxql", root.Name)
	assert.NotNil(t, root.Flags)

	expectedCommands := []string{"render", "query", "exec"}
	for _, cmdName := range expectedCommands {
		assert.Contains(t, root.Subcommands, cmdName, "Expected subcommand %s to be registered", cmdName)
	}
	assert.Equal(t, len(expectedCommands), len(root.Subcommands))
}

func TestCommandUsage(t *testing.T) {
	buf := captureOutput(t)

	assert.NoError(t, NewRootCommand().usage())

	out := buf.String()
	assert.Contains(t, out, "Usage: sphinxql <command> [args]")
	assert.Contains(t, out, "Commands:")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("exec")), bytes.Index(buf.Bytes(), []byte("query")), "commands are sorted")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("query")), bytes.Index(buf.Bytes(), []byte("render")))
}

func TestCommandExecute_UsesOSArgs(t *testing.T) {
	buf := captureOutput(t)

	oldArgs := os.Args
	os.Args = []string{"sphinxql", "render", "-index", "products"}
	defer func() { os.Args = oldArgs }()

	assert.NoError(t, NewRootCommand().Execute())
	assert.Equal(t, "SELECT * FROM products LIMIT 0, 20\n", buf.String())
}

func TestCommandExecuteArgs(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantUsage bool
		wantErr   string
	}{
		{"no args", nil, true, ""},
		{"short help", []string{"-h"}, true, ""},
		{"long help", []string{"--help"}, true, ""},
		{"unknown", []string{"nonexistent"}, false, "unknown command: nonexistent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureOutput(t)

			err := NewRootCommand().ExecuteArgs(tt.args)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			if tt.wantUsage {
				assert.Contains(t, buf.String(), "Usage: sphinxql")
			}
		})
	}
}

func TestCommandExecute_SubcommandWithArgs(t *testing.T) {
	root := NewRootCommand()

	var receivedArgs []string
	root.Subcommands["test"] = &Command{
		Name: "test",
		Run: func(args []string) error {
			receivedArgs = args
			return nil
		},
	}

	assert.NoError(t, root.ExecuteArgs([]string{"test", "-x", "1"}))
	assert.Equal(t, []string{"-x", "1"}, receivedArgs)
}
