// Package config loads shelfmark's configuration.
//
// Values are layered, later sources winning:
//
//  1. Defaults compiled in ([Default]).
//  2. A TOML file: the --config path, or $XDG_CONFIG_HOME/shelfmark/config.toml
//     when it exists.
//  3. A .env file in the working directory. Variables already present in the
//     process environment take precedence over it.
//  4. SHELFMARK_* environment variables, e.g. SHELFMARK_REMOTE_BACKEND or
//     SHELFMARK_ORIGIN_PAGE_SIZE.
//  5. The conventional variables HF_TOKEN, AWS_ACCESS_KEY_ID,
//     AWS_SECRET_ACCESS_KEY, AWS_REGION, AWS_ENDPOINT_URL_S3, REDIS_URL and
//     MONGODB_URI, for settings the layers above left empty.
//
// Command-line flags are applied by the CLI on top of the result.
package config

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/matzehuels/shelfmark/pkg/dataset"
	apperrors "github.com/matzehuels/shelfmark/pkg/errors"
	"github.com/matzehuels/shelfmark/pkg/httputil"
	"github.com/matzehuels/shelfmark/pkg/integrations/gramedia"
	"github.com/matzehuels/shelfmark/pkg/integrations/hfhub"
)

// EnvPrefix prefixes every shelfmark-specific environment variable.
const EnvPrefix = "SHELFMARK_"

// Remote backends.
const (
	BackendHub   = "hub"
	BackendS3    = "s3"
	BackendRedis = "redis"
	BackendMongo = "mongo"
	BackendDir   = "dir"
	BackendNone  = "none"
)

// Backends lists the accepted remote.backend values.
func Backends() []string {
	return []string{BackendHub, BackendS3, BackendRedis, BackendMongo, BackendDir, BackendNone}
}

// Config is the complete application configuration.
type Config struct {
	CacheDir string `toml:"cache_dir" env:"CACHE_DIR"`
	Publish  string `toml:"publish" env:"PUBLISH"`

	Origin OriginConfig `toml:"origin" envPrefix:"ORIGIN_"`
	Fetch  FetchConfig  `toml:"fetch" envPrefix:"FETCH_"`
	Remote RemoteConfig `toml:"remote" envPrefix:"REMOTE_"`
	Server ServerConfig `toml:"server" envPrefix:"SERVER_"`
}

// OriginConfig configures the catalog API client.
type OriginConfig struct {
	APIURL         string        `toml:"api_url" env:"API_URL"`
	WebURL         string        `toml:"web_url" env:"WEB_URL"`
	BuildID        string        `toml:"build_id" env:"BUILD_ID"`
	PageSize       int           `toml:"page_size" env:"PAGE_SIZE"`
	Attempts       int           `toml:"attempts" env:"ATTEMPTS"`
	Backoff        time.Duration `toml:"backoff" env:"BACKOFF"`
	MaxConns       int           `toml:"max_conns" env:"MAX_CONNS"`
	ConnectTimeout time.Duration `toml:"connect_timeout" env:"CONNECT_TIMEOUT"`
	Timeout        time.Duration `toml:"timeout" env:"TIMEOUT"`
}

// FetchConfig configures table assembly.
type FetchConfig struct {
	Descriptions     bool `toml:"descriptions" env:"DESCRIPTIONS"`
	DescriptionLimit int  `toml:"description_limit" env:"DESCRIPTION_LIMIT"`
	CategoryLimit    int  `toml:"category_limit" env:"CATEGORY_LIMIT"`
}

// RemoteConfig selects and configures the shared snapshot store.
type RemoteConfig struct {
	Backend string `toml:"backend" env:"BACKEND"`

	Hub   HubConfig   `toml:"hub" envPrefix:"HUB_"`
	S3    S3Config    `toml:"s3" envPrefix:"S3_"`
	Redis RedisConfig `toml:"redis" envPrefix:"REDIS_"`
	Mongo MongoConfig `toml:"mongo" envPrefix:"MONGO_"`
	Dir   string      `toml:"dir" env:"DIR"`
}

// HubConfig configures the Hugging Face dataset repository backend.
type HubConfig struct {
	Endpoint string `toml:"endpoint" env:"ENDPOINT"`
	Repo     string `toml:"repo" env:"REPO"`
	Revision string `toml:"revision" env:"REVISION"`
	Private  bool   `toml:"private" env:"PRIVATE"`
	Token    string `toml:"token" env:"TOKEN"`
}

// S3Config configures the S3-compatible bucket backend.
type S3Config struct {
	Endpoint  string `toml:"endpoint" env:"ENDPOINT"`
	Region    string `toml:"region" env:"REGION"`
	Bucket    string `toml:"bucket" env:"BUCKET"`
	Prefix    string `toml:"prefix" env:"PREFIX"`
	AccessKey string `toml:"access_key" env:"ACCESS_KEY"`
	SecretKey string `toml:"secret_key" env:"SECRET_KEY"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	URL string `toml:"url" env:"URL"`
}

// MongoConfig configures the MongoDB backend.
type MongoConfig struct {
	URI        string `toml:"uri" env:"URI"`
	Database   string `toml:"database" env:"DATABASE"`
	Collection string `toml:"collection" env:"COLLECTION"`
}

// ServerConfig configures the listing API.
type ServerConfig struct {
	Addr            string        `toml:"addr" env:"ADDR"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	Warm            bool          `toml:"warm" env:"WARM"`
}

// standardEnv holds the conventional, unprefixed variables.
type standardEnv struct {
	HFToken      string `env:"HF_TOKEN"`
	AWSAccessKey string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSRegion    string `env:"AWS_REGION"`
	S3Endpoint   string `env:"AWS_ENDPOINT_URL_S3"`
	RedisURL     string `env:"REDIS_URL"`
	MongoURI     string `env:"MONGODB_URI"`
}

// Default returns the built-in configuration.
func Default() Config {
	transport := httputil.DefaultTransportOptions()
	return Config{
		Publish: dataset.PublishBestEffort.String(),
		Origin: OriginConfig{
			APIURL:         gramedia.DefaultAPIURL,
			WebURL:         gramedia.DefaultWebURL,
			BuildID:        gramedia.DefaultBuildID,
			PageSize:       gramedia.DefaultPageSize,
			Attempts:       httputil.DefaultAttempts,
			Backoff:        httputil.DefaultBackoff,
			MaxConns:       transport.MaxConnsPerHost,
			ConnectTimeout: transport.ConnectTimeout,
			Timeout:        transport.Timeout,
		},
		Fetch: FetchConfig{
			Descriptions:     true,
			DescriptionLimit: dataset.DefaultDescriptionLimit,
		},
		Remote: RemoteConfig{
			Backend: BackendHub,
			Hub: HubConfig{
				Endpoint: hfhub.DefaultEndpoint,
				Repo:     hfhub.DefaultRepo,
				Revision: hfhub.DefaultRevision,
			},
			S3:    S3Config{Region: "us-east-1", Prefix: "snapshots"},
			Mongo: MongoConfig{Database: "shelfmark", Collection: "snapshots"},
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return defaultPath(os.Getenv("XDG_CONFIG_HOME"))
}

func defaultPath(dir string) string {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "shelfmark", "config.toml")
}

// Source describes where a loaded configuration came from.
type Source struct {
	File    string // TOML file read, or ""
	DotEnv  string // .env file read, or ""
	Environ int    // SHELFMARK_* variables seen
}

// Load builds the configuration from path (or the default path, if empty
// and present), ".env" in the working directory, and the process
// environment, then validates it.
func Load(path string) (Config, Source, error) {
	return load(path, ".env", env.ToMap(os.Environ()))
}

func load(path, dotenv string, environ map[string]string) (Config, Source, error) {
	cfg := Default()
	var src Source

	required := path != ""
	if path == "" {
		path = defaultPath(environ["XDG_CONFIG_HOME"])
	}
	if path != "" {
		ok, err := decodeFile(path, &cfg, required)
		if err != nil {
			return cfg, src, err
		}
		if ok {
			src.File = path
		}
	}

	if dotenv != "" {
		vars, err := godotenv.Read(dotenv)
		switch {
		case err == nil:
			src.DotEnv = dotenv
			merged := make(map[string]string, len(environ)+len(vars))
			for k, v := range vars {
				merged[k] = v
			}
			for k, v := range environ {
				merged[k] = v
			}
			environ = merged
		case !errors.Is(err, os.ErrNotExist):
			return cfg, src, apperrors.Wrap(apperrors.ErrCodeInvalidConfig, err, "read %s", dotenv)
		}
	}

	for k := range environ {
		if strings.HasPrefix(k, EnvPrefix) {
			src.Environ++
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return cfg, src, apperrors.Wrap(apperrors.ErrCodeInvalidConfig, err, "environment")
	}
	var std standardEnv
	if err := env.ParseWithOptions(&std, env.Options{Environment: environ}); err != nil {
		return cfg, src, apperrors.Wrap(apperrors.ErrCodeInvalidConfig, err, "environment")
	}
	cfg.applyStandard(std)

	if err := cfg.Validate(); err != nil {
		return cfg, src, err
	}
	return cfg, src, nil
}

func decodeFile(path string, cfg *Config, required bool) (bool, error) {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return false, nil
		}
		return false, apperrors.Wrap(apperrors.ErrCodeInvalidConfig, err, "config file %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return false, apperrors.New(apperrors.ErrCodeInvalidConfig, "config file %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return true, nil
}

func (c *Config) applyStandard(std standardEnv) {
	setIfEmpty(&c.Remote.Hub.Token, std.HFToken)
	setIfEmpty(&c.Remote.S3.AccessKey, std.AWSAccessKey)
	setIfEmpty(&c.Remote.S3.SecretKey, std.AWSSecretKey)
	setIfEmpty(&c.Remote.S3.Endpoint, std.S3Endpoint)
	setIfEmpty(&c.Remote.Redis.URL, std.RedisURL)
	setIfEmpty(&c.Remote.Mongo.URI, std.MongoURI)
	if std.AWSRegion != "" && c.Remote.S3.Region == Default().Remote.S3.Region {
		c.Remote.S3.Region = std.AWSRegion
	}
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, apperrors.New(apperrors.ErrCodeInvalidConfig, format, args...))
	}

	if _, err := dataset.ParsePublishPolicy(c.Publish); err != nil {
		errs = append(errs, err)
	}
	if err := apperrors.ValidateURL(c.Origin.APIURL); err != nil {
		bad("origin.api_url: %v", apperrors.UserMessage(err))
	}
	if err := apperrors.ValidateURL(c.Origin.WebURL); err != nil {
		bad("origin.web_url: %v", apperrors.UserMessage(err))
	}
	if c.Origin.PageSize < 1 || c.Origin.PageSize > 100 {
		bad("origin.page_size must be between 1 and 100, got %d", c.Origin.PageSize)
	}
	if c.Origin.Attempts < 1 {
		bad("origin.attempts must be at least 1, got %d", c.Origin.Attempts)
	}
	if c.Origin.MaxConns < 1 {
		bad("origin.max_conns must be at least 1, got %d", c.Origin.MaxConns)
	}
	if c.Fetch.DescriptionLimit < 1 {
		bad("fetch.description_limit must be at least 1, got %d", c.Fetch.DescriptionLimit)
	}
	if c.Fetch.CategoryLimit < 0 {
		bad("fetch.category_limit cannot be negative, got %d", c.Fetch.CategoryLimit)
	}

	switch c.Remote.Backend {
	case BackendHub:
		if err := apperrors.ValidateRepoID(c.Remote.Hub.Repo); err != nil {
			bad("remote.hub.repo: %v", apperrors.UserMessage(err))
		}
		if err := apperrors.ValidateURL(c.Remote.Hub.Endpoint); err != nil {
			bad("remote.hub.endpoint: %v", apperrors.UserMessage(err))
		}
	case BackendS3:
		if c.Remote.S3.Bucket == "" {
			bad("remote.s3.bucket is required for the s3 backend")
		}
	case BackendRedis:
		if c.Remote.Redis.URL == "" {
			bad("remote.redis.url (or REDIS_URL) is required for the redis backend")
		}
	case BackendMongo:
		if c.Remote.Mongo.URI == "" {
			bad("remote.mongo.uri (or MONGODB_URI) is required for the mongo backend")
		}
	case BackendDir:
		if c.Remote.Dir == "" {
			bad("remote.dir is required for the dir backend")
		}
	case BackendNone:
	default:
		bad("unknown remote.backend %q (want one of %s)", c.Remote.Backend, strings.Join(Backends(), ", "))
	}
	return errors.Join(errs...)
}

// PublishPolicy returns the parsed publish policy.
func (c *Config) PublishPolicy() dataset.PublishPolicy {
	p, _ := dataset.ParsePublishPolicy(c.Publish)
	return p
}

// TransportOptions returns the origin transport settings.
func (c *Config) TransportOptions() httputil.TransportOptions {
	opts := httputil.DefaultTransportOptions()
	opts.MaxConnsPerHost = c.Origin.MaxConns
	opts.ConnectTimeout = c.Origin.ConnectTimeout
	opts.Timeout = c.Origin.Timeout
	return opts
}

// Redacted returns a copy with credentials masked, for display.
func (c Config) Redacted() Config {
	mask := func(s *string) {
		if *s != "" {
			*s = "********"
		}
	}
	mask(&c.Remote.Hub.Token)
	mask(&c.Remote.S3.SecretKey)
	mask(&c.Remote.Redis.URL)
	mask(&c.Remote.Mongo.URI)
	return c
}

// Encode writes c as TOML.
func (c Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
