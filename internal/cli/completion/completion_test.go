package completion

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoot() (*cobra.Command, *bytes.Buffer) {
	root := &cobra.Command{Use: "cntctl"}
	root.AddCommand(&cobra.Command{Use: "ls", Run: func(*cobra.Command, []string) {}})
	root.AddCommand(NewCommand("cntctl"))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	return root, &out
}

func TestGeneratesEveryShell(t *testing.T) {
	for _, shell := range Shells {
		t.Run(shell, func(t *testing.T) {
			root, out := newRoot()
			root.SetArgs([]string{"completion", shell})
			require.NoError(t, root.Execute())
			assert.Contains(t, out.String(), "cntctl")
		})
	}
}

func TestRejectsUnknownShell(t *testing.T) {
	root, _ := newRoot()
	root.SetArgs([]string{"completion", "tcsh"})
	assert.Error(t, root.Execute())
}

func TestHelpNamesBinary(t *testing.T) {
	cmd := NewCommand("cntfs")
	assert.Contains(t, cmd.Long, "cntfs completion zsh > \"${fpath[1]}/_cntfs\"")
	assert.NotContains(t, cmd.Long, "{bin}")
}
