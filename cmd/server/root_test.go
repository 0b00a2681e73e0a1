package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Equal(t, "clicky-mcp "+version+"\n", out.String())
}

func TestMissingCredentials(t *testing.T) {
	t.Setenv("CLICKY_SITE_ID", "")
	t.Setenv("CLICKY_SITE_KEY", "")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--site-id", "101"})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "site key are required")
	assert.Contains(t, err.Error(), "--site-key")
}

func TestInvalidAddress(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--site-id", "101", "--site-key", "secret", "--addr", "nowhere"})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid address")
}
