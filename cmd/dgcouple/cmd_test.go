package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestRunCommand(t *testing.T) {
	t.Setenv("DGCOUPLE_LOG_LEVEL", "warn")
	out := execute(t, "run", "--steps", "2")
	assert.Contains(t, out, "rank 0 group 1")
	assert.Contains(t, out, "rank 1 group 2")
	assert.Contains(t, out, "2 steps")
}

func TestMeshCommand(t *testing.T) {
	out := execute(t, "mesh", "--parts", "4", "--strategy", "sfc")
	assert.Contains(t, out, "Mesh: dim=2 vertices=289 cells=256")
	assert.Contains(t, out, "Partitions (sfc): 4")
}

func TestNewRunID(t *testing.T) {
	out := execute(t, "node", "--new-run-id")
	assert.Len(t, out, 37)
}
