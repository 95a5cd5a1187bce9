package logging

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_CreatesDirAndLogger(t *testing.T) {
	dir := t.TempDir() + "/nested"
	log, err := NewLogger(dir, "debug")
	require.NoError(t, err)
	defer func() { _ = log.Sync() }()

	st, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, st.IsDir())

	log.Info("test_message_from_logging_test")
}

func TestNewLogger_RejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger(t.TempDir(), "chatty")
	assert.Error(t, err)
}
