package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Log.WithCaller)
	assert.Equal(t, DefaultSyncTimeout, cfg.SyncTimeout)
	assert.Equal(t, DefaultTopic, cfg.Topic)
	_, err = uuid.Parse(cfg.SessionID)
	assert.NoError(t, err, "a random session id is generated")
}

func TestLoad_Invalid(t *testing.T) {
	for name, set := range map[string]func(v *viper.Viper){
		"log level":    func(v *viper.Viper) { v.Set(KeyLogLevel, "loud") },
		"log format":   func(v *viper.Viper) { v.Set(KeyLogFormat, "xml") },
		"sync timeout": func(v *viper.Viper) { v.Set(KeySyncTimeout, "0s") },
		"topic":        func(v *viper.Viper) { v.Set(KeyTopic, " ") },
	} {
		t.Run(name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			set(v)
			_, err := Load(v)
			assert.True(t, errors.Is(err, ErrInvalid), "%v", err)
		})
	}
}

func TestInit_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log-level: debug
sync-timeout: 250ms
session-id: fixed
`), 0o644))

	v := viper.New()
	require.NoError(t, Init(v, path))
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 250*time.Millisecond, cfg.SyncTimeout)
	assert.Equal(t, "fixed", cfg.SessionID)
	assert.Equal(t, path, cfg.File)
}

func TestInit_MissingExplicitFile(t *testing.T) {
	err := Init(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestInit_Env(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RERUN_TOPIC", "from_env")
	t.Setenv("RERUN_WITH_CALLER", "true")

	v := viper.New()
	require.NoError(t, Init(v, ""))
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "from_env", cfg.Topic)
	assert.True(t, cfg.Log.WithCaller)
	assert.Empty(t, cfg.File)
}
