package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cameras:
  - name: back
    device_path: /dev/video0
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Cameras, 1)

	cam := cfg.Cameras[0]
	require.Equal(t, "/dev/video0", cam.DevicePath)
	require.Equal(t, 100, cam.ResourceCost)
	require.Equal(t, uint32(1), cam.BufferCount)
	require.Equal(t, DefaultPhysical, cam.Physical)
}

func TestLoadRejectsMissingDevicePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cameras:
  - name: back
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
