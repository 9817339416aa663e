package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	// Server timeouts / sizes (valid)
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"

	// Logging
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("API_BASE_PATH", "api/v1/") // no leading slash + trailing slash -> "/api/v1"

	// App
	t.Setenv("DB_PATH", "db.sqlite")
	t.Setenv("HEALTH_CONTEXT_PATH", "profile.md")
	t.Setenv("MAX_CONTENT_BYTES", "1024")

	// Analysis
	t.Setenv("ANALYZER_ENDPOINT", "http://localhost:9999/v1/messages")
	t.Setenv("ANALYZER_API_KEY", "sk-test")
	t.Setenv("ANALYZER_MODEL", "claude-test")
	t.Setenv("ANALYZER_TIMEOUT", "30s")
	t.Setenv("ANALYSIS_MAX_RETRIES", "5")
	t.Setenv("ANALYSIS_RETRY_BASE", "1s")
	t.Setenv("ANALYSIS_QUEUE_DELAY", "250ms")
	t.Setenv("ANALYSIS_MIN_LENGTH", "20")
	t.Setenv("ANALYSIS_STALE_AFTER", "15m")

	// Rate limiting (use invalids for parse to fall back to defaults)
	t.Setenv("RATE_RPS", "x")      // -> default 5.0
	t.Setenv("RATE_BURST", "nope") // -> default 10

	// Web protection
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	// OTEL
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Server
	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}

	// Logging
	if cfg.LogLevel != "warn" || !cfg.LogPretty || cfg.APIBasePath != "/api/v1" {
		t.Fatalf("logging fields unexpected: %+v", cfg)
	}

	// App
	if cfg.DBPath != "db.sqlite" || cfg.HealthContextPath != "profile.md" || cfg.MaxContentBytes != 1024 {
		t.Fatalf("app fields unexpected: %+v", cfg)
	}

	// Analysis
	if cfg.Analyzer.Endpoint != "http://localhost:9999/v1/messages" ||
		cfg.Analyzer.APIKey != "sk-test" ||
		cfg.Analyzer.Model != "claude-test" ||
		cfg.Analyzer.Timeout != 30*time.Second {
		t.Fatalf("analyzer fields unexpected: %+v", cfg.Analyzer)
	}
	wantCoord := CoordinatorConfig{
		MaxRetries:       5,
		RetryBase:        time.Second,
		InterItemDelay:   250 * time.Millisecond,
		MinAnalyzeLength: 20,
		StaleAfter:       15 * time.Minute,
	}
	if cfg.Coordinator != wantCoord {
		t.Fatalf("coordinator fields = %+v, want %+v", cfg.Coordinator, wantCoord)
	}

	// Rate limiting fell back to defaults on bad input
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate fields unexpected: %+v", cfg)
	}

	// Web protection
	wantOrigins := []string{"https://a.com", "http://b"}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, wantOrigins) {
		t.Fatalf("CORS origins = %v, want %v", cfg.CORS.AllowedOrigins, wantOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security fields unexpected: %+v", cfg.Security)
	}

	// OTEL
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure ||
		cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel fields unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_DefaultsAlone(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with defaults: %v", err)
	}
	if cfg.DBPath != "journal.db" {
		t.Fatalf("default DBPath = %q", cfg.DBPath)
	}
	if cfg.HealthContextPath != "" {
		t.Fatalf("default HealthContextPath = %q, want empty", cfg.HealthContextPath)
	}
	if !strings.Contains(cfg.Analyzer.Endpoint, "anthropic.com") {
		t.Fatalf("default analyzer endpoint = %q", cfg.Analyzer.Endpoint)
	}
	if cfg.Coordinator.MaxRetries != 3 || cfg.Coordinator.RetryBase != 2*time.Second {
		t.Fatalf("default coordinator fields: %+v", cfg.Coordinator)
	}
}

// --- Validation errors ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"bad log level", "LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"zero read timeout", "READ_TIMEOUT", "0s", "timeouts"},
		{"negative max retries", "ANALYSIS_MAX_RETRIES", "0", "ANALYSIS_MAX_RETRIES"},
		{"zero retry base", "ANALYSIS_RETRY_BASE", "0s", "ANALYSIS_RETRY_BASE"},
		{"negative queue delay", "ANALYSIS_QUEUE_DELAY", "-1s", "ANALYSIS_QUEUE_DELAY"},
		{"zero min length", "ANALYSIS_MIN_LENGTH", "0", "ANALYSIS_MIN_LENGTH"},
		{"zero stale after", "ANALYSIS_STALE_AFTER", "0s", "ANALYSIS_STALE_AFTER"},
		{"zero rate burst", "RATE_BURST", "0", "RATE_BURST"},
		{"bad sample ratio", "OTEL_TRACES_SAMPLER_ARG", "1.5", "OTEL_TRACES_SAMPLER_ARG"},
		{"zero analyzer timeout", "ANALYZER_TIMEOUT", "0s", "ANALYZER_TIMEOUT"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Setenv(c.key, c.value)
			_, err := Load()
			if err == nil {
				t.Fatalf("Load() accepted %s=%s", c.key, c.value)
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Fatalf("error %q does not mention %q", err, c.want)
			}
		})
	}
}

func TestNormalizeBasePath(t *testing.T) {
	cases := map[string]string{
		"":        "/",
		"/":       "/",
		"api":     "/api",
		"/api/":   "/api",
		" /api/ ": "/api",
	}
	for in, want := range cases {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}
