package pager_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codefang/pkg/pager"
)

func TestPageWithEmptyCommandWritesDirectly(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, pager.Page(&buf, "", []byte("hello\n")))
	assert.Equal(t, "hello\n", buf.String())
}

func TestPageShellsOutToConfiguredCommand(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, pager.Page(&buf, "cat", []byte("piped through cat\n")))
	assert.Equal(t, "piped through cat\n", buf.String())
}
