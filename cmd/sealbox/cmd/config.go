package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmcleod/sealbox/core"
	"github.com/jmcleod/sealbox/crypto"
)

const (
	envPrefix = "SEALBOX"

	keyDataDir        = "data-dir"
	keyLogLevel       = "log-level"
	keyLogFormat      = "log-format"
	keyKDFProfile     = "kdf-profile"
	keyListen         = "listen"
	keyTLSCert        = "tls-cert"
	keyTLSKey         = "tls-key"
	keyTrustedProxies = "trusted-proxies"
	keySessionTTL     = "session-ttl"
	keyIdleTimeout    = "idle-timeout"
)

// settings merges flags, SEALBOX_* environment variables and the optional
// config file, in that order of precedence.
var settings = viper.New()

var logger = slog.New(slog.DiscardHandler)

func initConfig(cmd *cobra.Command, _ []string) error {
	settings.SetEnvPrefix(envPrefix)
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()

	if cfgFile != "" {
		settings.SetConfigFile(cfgFile)
		if err := settings.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		settings.SetConfigName("sealbox")
		settings.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			settings.AddConfigPath(filepath.Join(dir, "sealbox"))
		}
		if err := settings.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("read config: %w", err)
			}
		}
	}

	if err := settings.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	l, err := newLogger(os.Stderr, settings.GetString(keyLogLevel), settings.GetString(keyLogFormat))
	if err != nil {
		return err
	}
	logger = l
	slog.SetDefault(logger)
	if used := settings.ConfigFileUsed(); used != "" {
		logger.Debug("loaded config", "path", used)
	}
	return nil
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "sealbox", "data")
	}
	return "./data"
}

// kdfParams resolves the configured Argon2id profile. An empty profile
// keeps the library defaults.
func kdfParams() (crypto.Argon2idParams, error) {
	name := settings.GetString(keyKDFProfile)
	if name == "" {
		return crypto.Argon2idParams{}, nil
	}
	return crypto.Argon2idProfile(name)
}

func openCore() (*core.Core, error) {
	params, err := kdfParams()
	if err != nil {
		return nil, err
	}
	return core.New(core.Config{
		DataDir:   settings.GetString(keyDataDir),
		KDFParams: params,
		Logger:    logger,
	})
}
