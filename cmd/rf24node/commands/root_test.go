package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandWiring(t *testing.T) {
	root := NewRootCommand()

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"node", "sim", "decode", "log"})

	logCmd, _, err := root.Find([]string{"log", "export"})
	require.NoError(t, err)
	assert.NotNil(t, logCmd.Flags().Lookup("format"))
	assert.NotNil(t, logCmd.Flags().Lookup("layer"))
}

func TestRootVersion(t *testing.T) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), Version)
}
