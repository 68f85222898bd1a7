package commands

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
	assert.Equal(t, filepath.Join("/tmp/xdg-config", "margin", "config.yaml"), DefaultConfigPath())
}

func TestDefaultDataDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
	assert.Equal(t, filepath.Join("/tmp/xdg-data", "margin"), DefaultDataDir())
}

func TestDefaultLogFile(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/tmp/xdg-state")
	assert.Equal(t, filepath.Join("/tmp/xdg-state", "margin", "margin.log"), DefaultLogFile())
}
