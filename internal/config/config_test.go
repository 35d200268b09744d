package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/shelfmark/pkg/dataset"
	apperrors "github.com/matzehuels/shelfmark/pkg/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error: %v", err)
	}
	if cfg.Remote.Backend != BackendHub || cfg.Remote.Hub.Repo != "mhmtaufiq/gramedia-datasets" {
		t.Errorf("remote defaults = %+v", cfg.Remote)
	}
	if cfg.Origin.PageSize != 20 || cfg.Fetch.DescriptionLimit != 10 {
		t.Errorf("origin/fetch defaults = %+v / %+v", cfg.Origin, cfg.Fetch)
	}
	if cfg.PublishPolicy() != dataset.PublishBestEffort {
		t.Errorf("PublishPolicy() = %v", cfg.PublishPolicy())
	}
	opts := cfg.TransportOptions()
	if opts.MaxConnsPerHost != 20 || opts.MaxIdleConnsPerHost != 5 || opts.ConnectTimeout != 60*time.Second || opts.Timeout != 120*time.Second {
		t.Errorf("TransportOptions() = %+v", opts)
	}
}

func TestLoadLayers(t *testing.T) {
	file := writeFile(t, "config.toml", `
cache_dir = "/tmp/from-file"
publish = "strict"

[origin]
page_size = 50
backoff = "250ms"

[remote]
backend = "s3"

[remote.s3]
bucket = "from-file"
`)
	dotenv := writeFile(t, ".env", "SHELFMARK_ORIGIN_PAGE_SIZE=40\nSHELFMARK_FETCH_DESCRIPTIONS=false\n")
	environ := map[string]string{
		"SHELFMARK_ORIGIN_PAGE_SIZE": "30",
		"SHELFMARK_REMOTE_S3_PREFIX": "env-prefix",
		"AWS_ACCESS_KEY_ID":          "AKIA",
		"AWS_SECRET_ACCESS_KEY":      "secret",
		"AWS_REGION":                 "ap-southeast-3",
		"HF_TOKEN":                   "hf_env",
	}

	cfg, src, err := load(file, dotenv, environ)
	if err != nil {
		t.Fatalf("load() error: %v", err)
	}
	if src.File != file || src.DotEnv != dotenv || src.Environ != 3 {
		t.Errorf("source = %+v", src)
	}
	if cfg.CacheDir != "/tmp/from-file" || cfg.PublishPolicy() != dataset.PublishStrict {
		t.Errorf("file values not applied: %+v", cfg)
	}
	// Process environment beats .env, which beats the file.
	if cfg.Origin.PageSize != 30 {
		t.Errorf("page size = %d, want 30", cfg.Origin.PageSize)
	}
	if cfg.Fetch.Descriptions {
		t.Error(".env should disable descriptions")
	}
	if cfg.Origin.Backoff != 250*time.Millisecond {
		t.Errorf("backoff = %v", cfg.Origin.Backoff)
	}
	s3 := cfg.Remote.S3
	if s3.Bucket != "from-file" || s3.Prefix != "env-prefix" || s3.AccessKey != "AKIA" || s3.SecretKey != "secret" || s3.Region != "ap-southeast-3" {
		t.Errorf("s3 = %+v", s3)
	}
	if cfg.Remote.Hub.Token != "hf_env" {
		t.Errorf("hub token = %q", cfg.Remote.Hub.Token)
	}
	// Untouched defaults survive.
	if cfg.Origin.APIURL != Default().Origin.APIURL {
		t.Errorf("api url = %q", cfg.Origin.APIURL)
	}
}

func TestLoadPrefixedBeatsStandard(t *testing.T) {
	cfg, _, err := load("", "", map[string]string{
		"XDG_CONFIG_HOME":            t.TempDir(),
		"SHELFMARK_REMOTE_HUB_TOKEN": "hf_prefixed",
		"HF_TOKEN":                   "hf_standard",
		"SHELFMARK_REMOTE_BACKEND":   "redis",
		"REDIS_URL":                  "redis://localhost:6379/0",
	})
	if err != nil {
		t.Fatalf("load() error: %v", err)
	}
	if cfg.Remote.Hub.Token != "hf_prefixed" {
		t.Errorf("hub token = %q, want hf_prefixed", cfg.Remote.Hub.Token)
	}
	if cfg.Remote.Redis.URL != "redis://localhost:6379/0" {
		t.Errorf("redis url = %q", cfg.Remote.Redis.URL)
	}
}

func TestLoadMissingFiles(t *testing.T) {
	// An explicit path must exist.
	if _, _, err := load(filepath.Join(t.TempDir(), "nope.toml"), "", nil); !apperrors.Is(err, apperrors.ErrCodeInvalidConfig) {
		t.Errorf("missing explicit file error = %v", err)
	}
	// A missing .env is fine.
	if _, src, err := load("", filepath.Join(t.TempDir(), ".env"), map[string]string{"XDG_CONFIG_HOME": t.TempDir()}); err != nil || src.DotEnv != "" {
		t.Errorf("missing .env: %+v, %v", src, err)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	file := writeFile(t, "config.toml", "[origin]\npagesize = 10\n")
	_, _, err := load(file, "", nil)
	if !apperrors.Is(err, apperrors.ErrCodeInvalidConfig) || !strings.Contains(err.Error(), "origin.pagesize") {
		t.Errorf("load() error = %v, want unknown key origin.pagesize", err)
	}
}

func TestLoadBadEnvironment(t *testing.T) {
	_, _, err := load("", "", map[string]string{"XDG_CONFIG_HOME": t.TempDir(), "SHELFMARK_ORIGIN_PAGE_SIZE": "lots"})
	if !apperrors.Is(err, apperrors.ErrCodeInvalidConfig) {
		t.Errorf("load() error = %v, want INVALID_CONFIG", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"page size", func(c *Config) { c.Origin.PageSize = 0 }, "origin.page_size"},
		{"attempts", func(c *Config) { c.Origin.Attempts = 0 }, "origin.attempts"},
		{"description limit", func(c *Config) { c.Fetch.DescriptionLimit = 0 }, "fetch.description_limit"},
		{"category limit", func(c *Config) { c.Fetch.CategoryLimit = -1 }, "fetch.category_limit"},
		{"api url", func(c *Config) { c.Origin.APIURL = "ftp://x" }, "origin.api_url"},
		{"publish", func(c *Config) { c.Publish = "sometimes" }, "publish policy"},
		{"backend", func(c *Config) { c.Remote.Backend = "gdrive" }, "unknown remote.backend"},
		{"hub repo", func(c *Config) { c.Remote.Hub.Repo = "norepo" }, "remote.hub.repo"},
		{"s3 bucket", func(c *Config) { c.Remote.Backend = BackendS3 }, "remote.s3.bucket"},
		{"redis url", func(c *Config) { c.Remote.Backend = BackendRedis }, "remote.redis.url"},
		{"mongo uri", func(c *Config) { c.Remote.Backend = BackendMongo }, "remote.mongo.uri"},
		{"dir", func(c *Config) { c.Remote.Backend = BackendDir }, "remote.dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.want)
			}
		})
	}

	cfg := Default()
	cfg.Remote.Backend = BackendNone
	if err := cfg.Validate(); err != nil {
		t.Errorf("none backend: %v", err)
	}
}

func TestRedactedEncode(t *testing.T) {
	cfg := Default()
	cfg.Remote.Hub.Token = "hf_secret"
	cfg.Remote.Redis.URL = "redis://:pw@host:6379"

	var buf bytes.Buffer
	if err := cfg.Redacted().Encode(&buf); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "hf_secret") || strings.Contains(out, ":pw@") {
		t.Errorf("redacted output leaks secrets:\n%s", out)
	}
	if cfg.Remote.Hub.Token != "hf_secret" {
		t.Error("Redacted() must not modify the receiver")
	}

	// The encoded form decodes back into a config.
	var back Config
	if _, err := toml.Decode(out, &back); err != nil {
		t.Fatalf("decode encoded config: %v", err)
	}
	if back.Origin.PageSize != cfg.Origin.PageSize || back.Remote.Hub.Repo != cfg.Remote.Hub.Repo {
		t.Errorf("decoded = %+v", back)
	}
}
