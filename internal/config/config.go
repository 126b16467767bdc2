// Package config loads vidfeed settings from defaults, a YAML file, a .env
// file and VIDFEED_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gauthierbraillon/vidfeed/internal/feed"
	"github.com/gauthierbraillon/vidfeed/internal/retry"
)

const (
	DefaultFile   = "vidfeed.yaml"
	DefaultDotEnv = ".env"
	envPrefix     = "VIDFEED_"
)

// Error reports configuration that cannot be used. It is always fatal and
// is returned before any network call is made.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("configuration error (%s): %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Config is the full vidfeed configuration. Each section maps to a
// top-level key in the YAML file.
type Config struct {
	App     AppConfig     `yaml:"app"`
	Graph   GraphConfig   `yaml:"graph"`
	Retry   RetryConfig   `yaml:"retry"`
	Output  OutputConfig  `yaml:"output"`
	Feed    feed.Literals `yaml:"feed"`
	Logging LoggingConfig `yaml:"logging"`
	Serve   ServeConfig   `yaml:"serve"`
}

// AppConfig identifies the application registered with the identity platform.
type AppConfig struct {
	ID     string   `yaml:"id"     validate:"required"`
	Tenant string   `yaml:"tenant" validate:"required"`
	Scopes []string `yaml:"scopes" validate:"required,min=1,dive,required"`
}

// GraphConfig controls how the Graph client talks to the service.
type GraphConfig struct {
	BaseURL           string        `yaml:"base_url"            validate:"required,url"`
	RequestTimeout    time.Duration `yaml:"request_timeout"     validate:"gt=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gte=0"`
	ChildrenCap       int           `yaml:"children_cap"        validate:"min=1"`
}

// RetryConfig is the backoff applied to transient Graph failures.
type RetryConfig struct {
	MaxRetries     int           `yaml:"max_retries"     validate:"min=0"`
	InitialBackoff time.Duration `yaml:"initial_backoff" validate:"gt=0"`
	MaxBackoff     time.Duration `yaml:"max_backoff"     validate:"gtefield=InitialBackoff"`
	Multiplier     float64       `yaml:"multiplier"      validate:"gt=1"`
	Jitter         float64       `yaml:"jitter"          validate:"gte=0,lte=1"`
}

// Policy converts the settings to the form the retry package uses.
func (r RetryConfig) Policy() retry.Config {
	return retry.Config{
		MaxRetries:     r.MaxRetries,
		InitialBackoff: r.InitialBackoff,
		MaxBackoff:     r.MaxBackoff,
		Multiplier:     r.Multiplier,
		JitterFraction: r.Jitter,
	}
}

// OutputConfig says where feeds go and which years to write. An empty
// Years list means every year.
type OutputConfig struct {
	Dir   string   `yaml:"dir"   validate:"required"`
	Years []string `yaml:"years" validate:"dive,len=4,numeric"`
}

// LoggingConfig sets the log level and whether to use console output.
type LoggingConfig struct {
	Level  string `yaml:"level"  validate:"oneof=trace debug info warn error"`
	Pretty bool   `yaml:"pretty"`
}

// ServeConfig configures the feed server.
type ServeConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
}

// Default returns the settings used when nothing else is configured.
func Default() *Config {
	policy := retry.DefaultConfig()
	return &Config{
		App: AppConfig{
			Tenant: "common",
			Scopes: []string{"User.Read", "Calendars.Read", "Files.ReadWrite.All", "offline_access"},
		},
		Graph: GraphConfig{
			BaseURL:           "https://graph.microsoft.com/v1.0",
			RequestTimeout:    30 * time.Second,
			RequestsPerSecond: 10,
			ChildrenCap:       600,
		},
		Retry: RetryConfig{
			MaxRetries:     policy.MaxRetries,
			InitialBackoff: policy.InitialBackoff,
			MaxBackoff:     policy.MaxBackoff,
			Multiplier:     policy.Multiplier,
			Jitter:         policy.JitterFraction,
		},
		Output: OutputConfig{
			Dir: ".",
		},
		Feed: feed.DefaultLiterals(),
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
		Serve: ServeConfig{
			Addr: "127.0.0.1:8080",
		},
	}
}

// Load builds the configuration. path names the YAML file and dotenv the
// .env file; either may be empty to use the default name. Missing files are
// not an error.
func Load(path, dotenv string) (*Config, error) {
	if dotenv == "" {
		dotenv = DefaultDotEnv
	}
	if err := loadDotEnv(dotenv); err != nil {
		return nil, err
	}

	cfg := Default()
	if path == "" {
		path = DefaultFile
	}
	if err := cfg.loadFromFile(path); err != nil {
		return nil, err
	}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}
	cfg.Feed = cfg.Feed.Merge(feed.DefaultLiterals())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// godotenv never overrides variables already set in the environment.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return &Error{Source: path, Err: err}
	}
	return nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return &Error{Source: path, Err: err}
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return &Error{Source: path, Err: err}
	}
	return nil
}

func (c *Config) loadFromEnv() error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	list := func(name string, dst *[]string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok && v != "" {
			*dst = splitList(v)
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := os.LookupEnv(envPrefix + name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := os.LookupEnv(envPrefix + name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	float := func(name string, dst *float64) {
		if v, ok := os.LookupEnv(envPrefix + name); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := os.LookupEnv(envPrefix + name); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("APP_ID", &c.App.ID)
	str("APP_TENANT", &c.App.Tenant)
	list("APP_SCOPES", &c.App.Scopes)
	str("GRAPH_BASE_URL", &c.Graph.BaseURL)
	dur("GRAPH_REQUEST_TIMEOUT", &c.Graph.RequestTimeout)
	float("GRAPH_REQUESTS_PER_SECOND", &c.Graph.RequestsPerSecond)
	integer("GRAPH_CHILDREN_CAP", &c.Graph.ChildrenCap)
	integer("MAX_RETRIES", &c.Retry.MaxRetries)
	dur("INITIAL_BACKOFF", &c.Retry.InitialBackoff)
	dur("MAX_BACKOFF", &c.Retry.MaxBackoff)
	str("OUTPUT_DIR", &c.Output.Dir)
	list("YEARS", &c.Output.Years)
	str("LOG_LEVEL", &c.Logging.Level)
	boolean("LOG_PRETTY", &c.Logging.Pretty)
	str("SERVE_ADDR", &c.Serve.Addr)

	if len(errs) > 0 {
		return &Error{Source: "environment", Err: errors.Join(errs...)}
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Source: "validation", Err: err}
	}
	msgs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Errorf("%s: failed %q check (value %v)", fieldPath(fe), fe.Tag(), fe.Value()))
	}
	return &Error{Source: "validation", Err: errors.Join(msgs...)}
}

// fieldPath drops the root struct name: "Config.app.id" becomes "app.id".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
