// Package config loads the rerun configuration from flags, environment
// variables and an optional rerun.yaml file through viper.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/joeycumines/rerun/internal/logging"
)

// Keys.
const (
	KeyConfig      = "config"
	KeyLogLevel    = "log-level"
	KeyLogFormat   = "log-format"
	KeyLogFile     = "log-file"
	KeyWithCaller  = "with-caller"
	KeySyncTimeout = "sync-timeout"
	KeyTopic       = "topic"
	KeySessionID   = "session-id"
)

const (
	EnvPrefix = "RERUN"
	FileName  = "rerun"

	DefaultSyncTimeout = 5 * time.Second
	DefaultTopic       = "forward_msgs"
)

// ErrInvalid is returned by Load for an unusable value.
var ErrInvalid = errors.New("invalid configuration")

// Config is the resolved configuration.
type Config struct {
	Log logging.Config
	// SyncTimeout bounds one rerun on the script loop.
	SyncTimeout time.Duration
	// Topic is the pub/sub topic outbound messages are published on.
	Topic     string
	SessionID string
	// File is the config file that was read, if any.
	File string
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, logging.FormatJSON)
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyWithCaller, false)
	v.SetDefault(KeySyncTimeout, DefaultSyncTimeout)
	v.SetDefault(KeyTopic, DefaultTopic)
	v.SetDefault(KeySessionID, "")
}

// SearchPaths returns the directories searched for rerun.yaml: the working
// directory, ~/.rerun and the user config directory.
func SearchPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".rerun"))
	}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "rerun"))
	}
	return paths
}

// Init wires v to the environment and reads the config file. An explicit
// file must exist; a missing file in the search paths is not an error.
func Init(v *viper.Viper, file string) error {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		for _, p := range SearchPaths() {
			v.AddConfigPath(p)
		}
	}

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to read config file")
	}
	return nil
}

// Load resolves and validates the configuration held by v. An empty session
// id is replaced with a random one.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Log: logging.Config{
			Level:      v.GetString(KeyLogLevel),
			Format:     v.GetString(KeyLogFormat),
			File:       v.GetString(KeyLogFile),
			WithCaller: v.GetBool(KeyWithCaller),
		},
		SyncTimeout: v.GetDuration(KeySyncTimeout),
		Topic:       strings.TrimSpace(v.GetString(KeyTopic)),
		SessionID:   strings.TrimSpace(v.GetString(KeySessionID)),
		File:        v.ConfigFileUsed(),
	}

	if err := cfg.Log.Validate(); err != nil {
		return nil, errors.Wrap(ErrInvalid, err.Error())
	}
	if cfg.SyncTimeout <= 0 {
		return nil, errors.Wrapf(ErrInvalid, "%s must be positive, got %s", KeySyncTimeout, v.GetString(KeySyncTimeout))
	}
	if cfg.Topic == "" {
		return nil, errors.Wrapf(ErrInvalid, "%s must not be empty", KeyTopic)
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	return cfg, nil
}
