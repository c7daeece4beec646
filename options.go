package smartedit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const OptionsFile = "smartedit.yaml"

// Options configures the process. The persisted Config document is separate
// and owned by ConfigStore.
type Options struct {
	Listen         string        `yaml:"listen"`
	Provider       string        `yaml:"provider"`
	Model          string        `yaml:"model"`
	ConfigPath     string        `yaml:"configPath"`
	LogFile        string        `yaml:"logFile"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxAttempts    int           `yaml:"maxAttempts"`
	IdempotencyTTL time.Duration `yaml:"idempotencyTTL"`
	WatchConfig    bool          `yaml:"watchConfig"`
	Nvim           bool          `yaml:"nvim"`

	// APIKey only ever comes from the environment.
	APIKey string `yaml:"-"`
}

func DefaultOptions() Options {
	retry := DefaultRetryConfig()
	return Options{
		Listen:         ":3000",
		Provider:       ProviderGemini,
		ConfigPath:     DefaultConfigFile,
		Timeout:        retry.Timeout,
		MaxAttempts:    retry.MaxAttempts,
		IdempotencyTTL: DefaultIdempotencyTTL,
	}
}

// LoadOptions layers defaults, the YAML file at path (or ./smartedit.yaml
// when path is empty) and the environment. A missing default file is fine;
// a missing explicit file is not.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()

	explicit := path != ""
	if !explicit {
		path = OptionsFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &opts); err != nil {
			return Options{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Options{}, fmt.Errorf("read options: %w", err)
	}

	opts.applyEnv()
	return opts, opts.Validate()
}

func (o *Options) applyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		o.Listen = ":" + strings.TrimPrefix(port, ":")
	}
	if p := os.Getenv("SMARTEDIT_PROVIDER"); p != "" {
		o.Provider = p
	}
	if m := os.Getenv("SMARTEDIT_MODEL"); m != "" {
		o.Model = m
	}
	if path := os.Getenv("SMARTEDIT_CONFIG"); path != "" {
		o.ConfigPath = path
	}
	for _, key := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		if v := os.Getenv(key); v != "" {
			o.APIKey = v
			break
		}
	}
}

func (o Options) Validate() error {
	switch strings.ToLower(o.Provider) {
	case ProviderGemini, ProviderOllama:
	default:
		return fmt.Errorf("unknown provider %q (want %s or %s)", o.Provider, ProviderGemini, ProviderOllama)
	}
	if o.MaxAttempts < 1 {
		return fmt.Errorf("maxAttempts must be at least 1, got %d", o.MaxAttempts)
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", o.Timeout)
	}
	if o.ConfigPath == "" {
		return errors.New("configPath must not be empty")
	}
	return nil
}

func (o Options) retryConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.MaxAttempts = o.MaxAttempts
	cfg.Timeout = o.Timeout
	return cfg
}

// NewCompleter builds the gateway for the configured provider, wrapped with
// timeout and retry.
func (o Options) NewCompleter(ctx context.Context, logger *zap.Logger) (Completer, error) {
	var (
		base Completer
		err  error
	)
	switch strings.ToLower(o.Provider) {
	case ProviderOllama:
		base, err = NewOllamaCompleter(o.Model)
	default:
		base, err = NewGeminiCompleter(ctx, o.APIKey, o.Model)
	}
	if err != nil {
		return nil, err
	}
	return NewRetryingCompleter(base, o.retryConfig(), logger), nil
}
