package smartedit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearOptionsEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "SMARTEDIT_PROVIDER", "SMARTEDIT_MODEL", "SMARTEDIT_CONFIG", "GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		t.Setenv(key, "")
	}
}

func TestLoadOptionsDefaults(t *testing.T) {
	clearOptionsEnv(t)
	t.Chdir(t.TempDir())

	opts, err := LoadOptions("")
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), opts)
	assert.Equal(t, ":3000", opts.Listen)
	assert.Equal(t, ProviderGemini, opts.Provider)
}

func TestLoadOptionsFileAndEnv(t *testing.T) {
	clearOptionsEnv(t)
	path := filepath.Join(t.TempDir(), "smartedit.yaml")
	writeFile(t, path, `
listen: ":8080"
provider: ollama
model: llama3
timeout: 5s
maxAttempts: 2
watchConfig: true
`)
	t.Setenv("PORT", "9090")
	t.Setenv("GOOGLE_API_KEY", "g-key")

	opts, err := LoadOptions(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", opts.Listen)
	assert.Equal(t, ProviderOllama, opts.Provider)
	assert.Equal(t, "llama3", opts.Model)
	assert.Equal(t, 5*time.Second, opts.Timeout)
	assert.Equal(t, 2, opts.MaxAttempts)
	assert.True(t, opts.WatchConfig)
	assert.Equal(t, "g-key", opts.APIKey)
	assert.Equal(t, DefaultConfigFile, opts.ConfigPath)

	t.Setenv("GEMINI_API_KEY", "primary")
	opts, err = LoadOptions(path)
	require.NoError(t, err)
	assert.Equal(t, "primary", opts.APIKey)
}

func TestLoadOptionsErrors(t *testing.T) {
	clearOptionsEnv(t)
	dir := t.TempDir()

	_, err := LoadOptions(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, "listen: [")
	_, err = LoadOptions(bad)
	assert.Error(t, err)

	t.Setenv("SMARTEDIT_PROVIDER", "openai")
	good := filepath.Join(dir, "good.yaml")
	writeFile(t, good, "listen: \":1\"\n")
	_, err = LoadOptions(good)
	assert.ErrorContains(t, err, "unknown provider")
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"provider", func(o *Options) { o.Provider = "nope" }},
		{"attempts", func(o *Options) { o.MaxAttempts = 0 }},
		{"timeout", func(o *Options) { o.Timeout = 0 }},
		{"config path", func(o *Options) { o.ConfigPath = "" }},
	}
	require.NoError(t, DefaultOptions().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultOptions()
			tt.mutate(&o)
			assert.Error(t, o.Validate())
		})
	}
}

func TestOptionsRetryConfig(t *testing.T) {
	o := DefaultOptions()
	o.MaxAttempts = 7
	o.Timeout = time.Minute
	cfg := o.retryConfig()
	assert.Equal(t, 7, cfg.MaxAttempts)
	assert.Equal(t, time.Minute, cfg.Timeout)
	assert.Equal(t, DefaultRetryConfig().BackoffBase, cfg.BackoffBase)
}

func TestOptionsNewCompleterNeedsGeminiKey(t *testing.T) {
	o := DefaultOptions()
	_, err := o.NewCompleter(context.Background(), nil)
	assert.ErrorContains(t, err, "API key")
}
