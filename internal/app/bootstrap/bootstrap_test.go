package bootstrap

import (
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"chistes/app/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()

	return config.Config{
		DBPath:            filepath.Join(t.TempDir(), "chistes.db"),
		Environment:       "test",
		SeedDatabase:      true,
		ChuckAPIURL:       "http://127.0.0.1:1/jokes/random",
		DadAPIURL:         "http://127.0.0.1:1/",
		CombinedJokeCount: 2,
		RateLimit: config.RateLimit{
			RequestsPerSecond: 10,
			Burst:             20,
			ClientTTL:         time.Minute,
		},
	}
}

func TestBuildWiresSeededApplication(t *testing.T) {
	t.Parallel()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	result, err := Build(context.Background(), Dependencies{Config: testConfig(t), Logger: logger})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	t.Cleanup(func() {
		if cleanupErr := result.Cleanup(); cleanupErr != nil {
			t.Errorf("cleanup failed: %v", cleanupErr)
		}
	})

	rec := httptest.NewRecorder()
	result.HTTPServer.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/chistes", nil))
	if rec.Code != 200 {
		t.Fatalf("expected seeded random joke, got status %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	result.HTTPServer.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != 200 {
		t.Fatalf("expected healthy service, got status %d", rec.Code)
	}
}

func TestBuildRejectsInvalidProviderURL(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.ChuckAPIURL = "ftp://example.com"

	if _, err := Build(context.Background(), Dependencies{Config: cfg}); err == nil {
		t.Fatalf("expected error for invalid provider url")
	}
}
