package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionCmd_Executes(t *testing.T) {
	originalVersion := version
	version = "test-version-1.0.0"
	defer func() { version = originalVersion }()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	assert.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "recipebox version test-version-1.0.0")
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "ingest", "version"} {
		assert.True(t, names[want], want)
	}
}

func TestIngestCmd_FileFlag(t *testing.T) {
	f := ingestCmd.Flags().Lookup("file")
	if assert.NotNil(t, f) {
		assert.Equal(t, "", f.DefValue)
	}
}
