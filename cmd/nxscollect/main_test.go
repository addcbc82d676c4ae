package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_ExitStatus(t *testing.T) {
	t.Setenv("NXSTOOLS_CONFIG", filepath.Join(t.TempDir(), "none.yaml"))

	assert.Equal(t, 2, run(nil), "no arguments")
	assert.Equal(t, 2, run([]string{"--help"}))
	assert.Equal(t, 2, run([]string{"execute", "-h"}))
	assert.Equal(t, 0, run([]string{"--version"}))
	assert.Equal(t, 1, run([]string{"execute", filepath.Join(t.TempDir(), "absent.nxs")}))
	assert.Equal(t, 1, run([]string{"execute"}), "missing argument")
}
