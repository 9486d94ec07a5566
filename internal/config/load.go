// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dayplan Contributors

package config

import (
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Environment variables read after every other source.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvTokenSecret = "DAYPLAN_TOKEN_SECRET"
)

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"http-addr":    "http.addr",
	"metrics-addr": "metrics.addr",
	"log-format":   "log.format",
	"log-level":    "log.level",
	"bucket-mode":  "tasks.bucket_mode",
	"database-url": "database.url",
}

// Source lists where Load reads settings from. Every field is optional.
type Source struct {
	// Path of a YAML file. It is validated against the generated schema
	// before it is merged.
	Path string
	// Flags whose names appear in the flag table. Only flags the user set
	// are applied.
	Flags *pflag.FlagSet
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Load reads src and validates the result.
func Load(src Source) (*Config, error) {
	cfg, err := Read(src)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read merges defaults, the file, flags and environment, in that order.
// Commands that need only part of the configuration validate it themselves.
func Read(src Source) (*Config, error) {
	k := koanf.New(".")

	if src.Path != "" {
		data, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", src.Path).Wrap(err)
		}
		if err := ValidateYAML(data); err != nil {
			return nil, oops.With("path", src.Path).Wrap(err)
		}
		if err := k.Load(file.Provider(src.Path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_PARSE_FAILED").With("path", src.Path).Wrap(err)
		}
	}

	if src.Flags != nil {
		provider := posflag.ProviderWithFlag(src.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(src.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	getenv := src.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	for env, key := range map[string]string{EnvDatabaseURL: "database.url", EnvTokenSecret: "auth.token_secret"} {
		if v := getenv(env); v != "" {
			if err := k.Set(key, v); err != nil {
				return nil, oops.Code("CONFIG_ENV_FAILED").With("env", env).Wrap(err)
			}
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	return cfg, nil
}
