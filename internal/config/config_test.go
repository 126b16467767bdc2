package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gauthierbraillon/vidfeed/internal/feed"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// missing returns paths that do not exist so Load sees no files.
func missing(t *testing.T) (string, string) {
	dir := t.TempDir()
	return filepath.Join(dir, "none.yaml"), filepath.Join(dir, "none.env")
}

func TestLoad_DefaultsNeedAppID(t *testing.T) {
	path, env := missing(t)

	_, err := Load(path, env)

	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *config.Error, got %v", err)
	}
	if !strings.Contains(err.Error(), "app.id") {
		t.Errorf("error should name the missing field, got %v", err)
	}
}

func TestLoad_DefaultsWithAppID(t *testing.T) {
	t.Setenv("VIDFEED_APP_ID", "app-123")
	path, env := missing(t)

	cfg, err := Load(path, env)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.App.Tenant != "common" {
		t.Errorf("tenant should default to common, got %q", cfg.App.Tenant)
	}
	if cfg.Graph.ChildrenCap != 600 {
		t.Errorf("children cap should default to 600, got %d", cfg.Graph.ChildrenCap)
	}
	if cfg.Feed != feed.DefaultLiterals() {
		t.Error("feed literals should default to the published strings")
	}
	if len(cfg.Output.Years) != 0 {
		t.Errorf("no year filter expected by default, got %v", cfg.Output.Years)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "vidfeed.yaml", `
app:
  id: from-file
  scopes: [User.Read, Files.ReadWrite.All]
graph:
  request_timeout: 5s
retry:
  max_retries: 2
output:
  dir: /srv/feeds
  years: ["2012", "2013"]
feed:
  keywords: home movies
logging:
  level: debug
`)

	cfg, err := Load(path, filepath.Join(dir, "none.env"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.App.ID != "from-file" || len(cfg.App.Scopes) != 2 {
		t.Errorf("app section not read: %+v", cfg.App)
	}
	if cfg.Graph.RequestTimeout != 5*time.Second {
		t.Errorf("request timeout = %v", cfg.Graph.RequestTimeout)
	}
	if cfg.Retry.MaxRetries != 2 {
		t.Errorf("max retries = %d", cfg.Retry.MaxRetries)
	}
	if cfg.Output.Dir != "/srv/feeds" || strings.Join(cfg.Output.Years, ",") != "2012,2013" {
		t.Errorf("output section not read: %+v", cfg.Output)
	}
	if cfg.Feed.Keywords != "home movies" {
		t.Errorf("keywords override not applied: %q", cfg.Feed.Keywords)
	}
	if cfg.Feed.PubDate != feed.DefaultLiterals().PubDate {
		t.Error("literals not in the file should keep their defaults")
	}
	if cfg.Graph.BaseURL != "https://graph.microsoft.com/v1.0" {
		t.Errorf("unset fields should keep defaults, got %q", cfg.Graph.BaseURL)
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "vidfeed.yaml", "app:\n  id: from-file\noutput:\n  dir: from-file\n")
	t.Setenv("VIDFEED_APP_ID", "from-env")
	t.Setenv("VIDFEED_APP_SCOPES", "User.Read, Files.ReadWrite.All ,")
	t.Setenv("VIDFEED_YEARS", "2012")
	t.Setenv("VIDFEED_GRAPH_REQUESTS_PER_SECOND", "2.5")
	t.Setenv("VIDFEED_LOG_PRETTY", "false")

	cfg, err := Load(path, filepath.Join(dir, "none.env"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.App.ID != "from-env" {
		t.Errorf("env should win over file, got %q", cfg.App.ID)
	}
	if strings.Join(cfg.App.Scopes, "|") != "User.Read|Files.ReadWrite.All" {
		t.Errorf("scopes should be split and trimmed, got %q", cfg.App.Scopes)
	}
	if cfg.Output.Dir != "from-file" {
		t.Errorf("file value should survive when env is unset, got %q", cfg.Output.Dir)
	}
	if len(cfg.Output.Years) != 1 || cfg.Output.Years[0] != "2012" {
		t.Errorf("years = %v", cfg.Output.Years)
	}
	if cfg.Graph.RequestsPerSecond != 2.5 {
		t.Errorf("requests per second = %v", cfg.Graph.RequestsPerSecond)
	}
	if cfg.Logging.Pretty {
		t.Error("pretty logging should be disabled")
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	env := writeFile(t, dir, ".env", "VIDFEED_APP_ID=from-dotenv\nVIDFEED_APP_SCOPES=User.Read,Calendars.Read\n")
	t.Cleanup(func() {
		os.Unsetenv("VIDFEED_APP_ID")
		os.Unsetenv("VIDFEED_APP_SCOPES")
	})

	cfg, err := Load(filepath.Join(dir, "none.yaml"), env)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.App.ID != "from-dotenv" {
		t.Errorf("app id should come from .env, got %q", cfg.App.ID)
	}
	if len(cfg.App.Scopes) != 2 {
		t.Errorf("scopes should come from .env, got %v", cfg.App.Scopes)
	}
}

func TestLoad_BadEnvValueIsConfigurationError(t *testing.T) {
	t.Setenv("VIDFEED_APP_ID", "app")
	t.Setenv("VIDFEED_GRAPH_REQUEST_TIMEOUT", "soon")
	path, env := missing(t)

	_, err := Load(path, env)

	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Source != "environment" {
		t.Fatalf("expected environment configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "VIDFEED_GRAPH_REQUEST_TIMEOUT") {
		t.Errorf("error should name the variable, got %v", err)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "vidfeed.yaml", "app: [unclosed\n")

	_, err := Load(path, filepath.Join(dir, "none.env"))

	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Source != path {
		t.Fatalf("expected file configuration error, got %v", err)
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.App.ID = "app"
	cfg.Output.Years = []string{"12", "20x2"}
	cfg.Retry.Multiplier = 1
	cfg.Logging.Level = "loud"
	cfg.Serve.Addr = "no-port"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"output.years[0]", "output.years[1]", "retry.multiplier", "logging.level", "serve.addr"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("validation error should mention %s, got %v", want, err)
		}
	}
}

func TestValidate_MaxBackoffBelowInitial(t *testing.T) {
	cfg := Default()
	cfg.App.ID = "app"
	cfg.Retry.InitialBackoff = time.Minute
	cfg.Retry.MaxBackoff = time.Second

	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "retry.max_backoff") {
		t.Errorf("expected max_backoff error, got %v", err)
	}
}

func TestRetryPolicy(t *testing.T) {
	r := RetryConfig{MaxRetries: 3, InitialBackoff: time.Second, MaxBackoff: time.Minute, Multiplier: 3, Jitter: 0.1}
	p := r.Policy()
	if p.MaxRetries != 3 || p.InitialBackoff != time.Second || p.MaxBackoff != time.Minute || p.Multiplier != 3 || p.JitterFraction != 0.1 {
		t.Errorf("policy not converted: %+v", p)
	}
}
