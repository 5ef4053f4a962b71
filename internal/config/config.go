// Package config assembles the tool configuration from an optional YAML
// file, HANGOUTS_SMS_* environment variables, and CLI flags, in that
// order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Output          string
	Existing        string
	MessageLimit    int
	LogLevel        string
	ServiceCenter   string
	FetchMedia      bool
	MediaTimeout    time.Duration
	MediaMaxBackoff time.Duration
	// Contacts overrides participant identifiers with phone numbers,
	// for export entries whose number Takeout did not resolve.
	Contacts map[string]string
}

// flagBindings maps config keys to CLI flag names.
var flagBindings = map[string]string{
	"output":        "output",
	"existing":      "existing",
	"message_count": "message-count",
	"loglevel":      "loglevel",
}

// Load builds the configuration. configFile forces a specific file; empty
// means the default search path (~/.config/hangouts-sms-export, then the
// working directory), where a missing file is fine.
func Load(flags *pflag.FlagSet, configFile string) (Config, error) {
	v := viper.New()

	v.SetDefault("loglevel", "info")
	v.SetDefault("service_center", "hangouts-sms-export")
	v.SetDefault("fetch_media", true)
	v.SetDefault("media_timeout", "60s")
	v.SetDefault("media_max_backoff", "10s")

	v.SetEnvPrefix("HANGOUTS_SMS")
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "hangouts-sms-export"))
		}
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	if flags != nil {
		for key, name := range flagBindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	return Config{
		Output:          v.GetString("output"),
		Existing:        v.GetString("existing"),
		MessageLimit:    v.GetInt("message_count"),
		LogLevel:        v.GetString("loglevel"),
		ServiceCenter:   v.GetString("service_center"),
		FetchMedia:      v.GetBool("fetch_media"),
		MediaTimeout:    v.GetDuration("media_timeout"),
		MediaMaxBackoff: v.GetDuration("media_max_backoff"),
		Contacts:        v.GetStringMapString("contacts"),
	}, nil
}
