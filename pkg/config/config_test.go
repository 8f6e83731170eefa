package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	// keep a real config.yaml out of the search path
	oldwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(oldwd) })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, BackendSimulated, cfg.Storage.Backend)
	assert.Equal(t, "mental-health-audio", cfg.Storage.Bucket)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "ffmpeg", cfg.Audio.FFmpegBinary)
	assert.Equal(t, 2*time.Minute, cfg.Audio.FFmpegTimeout)
	assert.Equal(t, int64(32<<20), cfg.Audio.MaxUploadBytes)
}

func TestLoad_FromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  addr: ":9090"
storage:
  backend: s3
  bucket: prod-audio
  region: eu-west-1
database:
  driver: postgres
  host: db.internal
  name: assistant
audio:
  ffmpeg_timeout: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, BackendS3, cfg.Storage.Backend)
	assert.Equal(t, "prod-audio", cfg.Storage.Bucket)
	assert.Equal(t, "eu-west-1", cfg.Storage.Region)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 30*time.Second, cfg.Audio.FFmpegTimeout)
	// Unset keys keep their defaults.
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestLoad_BadFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
