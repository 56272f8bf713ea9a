// Package config loads compiler settings from defaults, DEPLOYSPEC_* environment
// variables and command-line overrides, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of every environment variable the loader reads.
const EnvPrefix = "DEPLOYSPEC_"

type Config struct {
	Region      string `koanf:"region" validate:"required"`
	Client      string `koanf:"client"`
	Mode        string `koanf:"mode" validate:"oneof=s3 local"`
	LocalRoot   string `koanf:"local_root" validate:"required_if=Mode local"`
	ArtifactURL string `koanf:"artifact_url"`
	MetricsFile string `koanf:"metrics_file"`

	Facts FactsConfig `koanf:"facts"`
	Log   LogConfig   `koanf:"log"`
	Retry RetryConfig `koanf:"retry"`
}

// FactsConfig points at the optional Redis facts store.
type FactsConfig struct {
	RedisAddr string `koanf:"redis_addr"`
	Prefix    string `koanf:"prefix" validate:"required"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error disabled"`
	JSON  bool   `koanf:"json"`
}

// RetryConfig bounds artefact write retries.
type RetryConfig struct {
	Attempts  uint64        `koanf:"attempts" validate:"min=0,max=10"`
	BaseDelay time.Duration `koanf:"base_delay"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Region: "ap-southeast-1",
		Mode:   "s3",
		Facts:  FactsConfig{Prefix: "deployspec:facts"},
		Log:    LogConfig{Level: "info"},
		Retry:  RetryConfig{Attempts: 3, BaseDelay: 200 * time.Millisecond},
	}
}

// Loader assembles a Config. Environ defaults to os.Environ.
type Loader struct {
	Environ   func() []string
	koanf     *koanf.Koanf
	validator *validator.Validate
}

func NewLoader() *Loader {
	return &Loader{
		Environ:   os.Environ,
		koanf:     koanf.New("."),
		validator: validator.New(),
	}
}

// Load returns the merged configuration. Overrides are dotted koanf paths, for
// example "log.level", and win over the environment.
func Load(overrides map[string]any) (*Config, error) {
	return NewLoader().Load(overrides)
}

func (l *Loader) Load(overrides map[string]any) (*Config, error) {
	l.koanf = koanf.New(".")

	if err := l.koanf.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	paths := envPaths()
	provider := env.Provider(".", env.Opt{
		Prefix:      EnvPrefix,
		EnvironFunc: l.Environ,
		TransformFunc: func(key, value string) (string, any) {
			return paths[key], value
		},
	})
	if err := l.koanf.Load(provider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	for key, value := range overrides {
		if err := l.koanf.Set(key, value); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", key, err)
		}
	}

	var cfg Config
	if err := l.koanf.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := l.validator.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// envPaths maps DEPLOYSPEC_* variable names to koanf paths, e.g.
// DEPLOYSPEC_FACTS_REDIS_ADDR -> facts.redis_addr. Splitting on '_' alone cannot
// tell a nesting boundary from an underscore inside a key, so the table is built
// from the struct tags.
func envPaths() map[string]string {
	out := map[string]string{}
	collectPaths(reflect.TypeOf(Config{}), "", out)
	return out
}

func collectPaths(t reflect.Type, prefix string, out map[string]string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("koanf")
		if tag == "" || tag == "-" {
			continue
		}
		path := tag
		if prefix != "" {
			path = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct && f.Type != reflect.TypeOf(time.Duration(0)) {
			collectPaths(f.Type, path, out)
			continue
		}
		out[EnvPrefix+strings.ToUpper(strings.ReplaceAll(path, ".", "_"))] = path
	}
}
