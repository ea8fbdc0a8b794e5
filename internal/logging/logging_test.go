package logging

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "repsync.log")

	sink, err := Open(Options{File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	sink.Logger("sync").Printf("pushed %d", 3)
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[sync] ")
	assert.Contains(t, string(data), "pushed 3")
}

func TestOpen_Defaults(t *testing.T) {
	sink, err := Open(Options{})
	require.NoError(t, err)
	assert.Equal(t, os.Stderr, sink.Writer())
	assert.NoError(t, sink.Close())

	quiet, err := Open(Options{Quiet: true, File: "ignored.log"})
	require.NoError(t, err)
	assert.Equal(t, io.Discard, quiet.Writer())
	assert.Equal(t, "[daemon] ", quiet.Logger("daemon").Prefix())
}
