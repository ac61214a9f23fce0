// Package config loads the putenv command settings from flags, PUTENV_*
// environment variables and an optional config file, in that precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "PUTENV"

const (
	KeyMaxLength       = "max_length"
	KeyContinueOnError = "continue_on_error"
	KeyAncestor        = "ancestor"
	KeyVerifyCleanup   = "verify_cleanup"
	KeyTracePayload    = "trace_payload"
)

type Config struct {
	MaxLength       int  `mapstructure:"max_length"`
	ContinueOnError bool `mapstructure:"continue_on_error"`
	Ancestor        int  `mapstructure:"ancestor"`
	VerifyCleanup   bool `mapstructure:"verify_cleanup"`
	TracePayload    bool `mapstructure:"trace_payload"`
}

// flagNames maps config keys to their command line spelling
var flagNames = map[string]string{
	KeyMaxLength:       "max-length",
	KeyContinueOnError: "continue-on-error",
	KeyAncestor:        "ancestor",
	KeyVerifyCleanup:   "verify-cleanup",
	KeyTracePayload:    "trace-payload",
}

// RegisterFlags adds the settings to flags with defaults as their default values
func RegisterFlags(flags *pflag.FlagSet, defaults Config) {
	flags.Int(flagNames[KeyMaxLength], defaults.MaxLength, "Longest accepted variable name or value, in bytes")
	flags.Bool(flagNames[KeyContinueOnError], defaults.ContinueOnError, "Keep going after a failed assignment")
	flags.Int(flagNames[KeyAncestor], defaults.Ancestor, "Target the Nth ancestor of this process instead of the pid argument")
	flags.Bool(flagNames[KeyVerifyCleanup], defaults.VerifyCleanup, "Check the target's memory map after releasing staged regions")
	flags.Bool(flagNames[KeyTracePayload], defaults.TracePayload, "Hexdump each staged payload to the debug log")
}

// Load resolves the settings. file may be empty; flags may be nil.
func Load(flags *pflag.FlagSet, file string, defaults Config) (Config, error) {
	v := viper.New()

	v.SetDefault(KeyMaxLength, defaults.MaxLength)
	v.SetDefault(KeyContinueOnError, defaults.ContinueOnError)
	v.SetDefault(KeyAncestor, defaults.Ancestor)
	v.SetDefault(KeyVerifyCleanup, defaults.VerifyCleanup)
	v.SetDefault(KeyTracePayload, defaults.TracePayload)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range flagNames {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, err
				}
			}
		}
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.MaxLength < 1 {
		return fmt.Errorf("%s must be positive, got %d", KeyMaxLength, c.MaxLength)
	}
	if c.Ancestor < 0 {
		return fmt.Errorf("%s must not be negative, got %d", KeyAncestor, c.Ancestor)
	}
	return nil
}
