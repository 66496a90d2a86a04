package config

import (
	"reflect"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"MODE", "HTTP_ADDR", "DB_DRIVER", "DB_DSN", "BLOB_BASE_PATH", "MAX_UPLOAD_BYTES", "REQUEST_TIMEOUT", "ENABLE_LOCAL_AUTH", "CORS_ORIGINS_OFFLINE"} {
		t.Setenv(k, "")
	}

	cfg := FromEnv()
	if cfg.Mode != ModeOffline {
		t.Fatalf("mode = %q", cfg.Mode)
	}
	if cfg.HTTPAddr != ":8080" || cfg.DBDriver != "sqlite" || cfg.BlobBasePath != "./uploads" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.MaxUploadBytes != 32<<20 {
		t.Fatalf("max upload = %d", cfg.MaxUploadBytes)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("timeout = %s", cfg.RequestTimeout)
	}
	if !cfg.EnableLocalAuth {
		t.Fatal("local auth should default on in offline mode")
	}
	if got := cfg.CORSOrigins(); !reflect.DeepEqual(got, []string{"http://localhost:3000"}) {
		t.Fatalf("cors = %v", got)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MODE", "online")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("ENABLE_LOCAL_AUTH", "")
	t.Setenv("CORS_ORIGINS_ONLINE", " https://a.example , ,https://b.example")

	cfg := FromEnv()
	if cfg.Mode != ModeOnline || cfg.DBDriver != "postgres" {
		t.Fatalf("unexpected: %+v", cfg)
	}
	if cfg.MaxUploadBytes != 1024 || cfg.RequestTimeout != 5*time.Second {
		t.Fatalf("unexpected limits: %d %s", cfg.MaxUploadBytes, cfg.RequestTimeout)
	}
	if cfg.EnableLocalAuth {
		t.Fatal("local auth should default off in online mode")
	}
	if got := cfg.CORSOrigins(); !reflect.DeepEqual(got, []string{"https://a.example", "https://b.example"}) {
		t.Fatalf("cors = %v", got)
	}
}

func TestBadNumbersFallBack(t *testing.T) {
	t.Setenv("MAX_UPLOAD_BYTES", "lots")
	t.Setenv("REQUEST_TIMEOUT", "-3s")
	if got := envInt64("MAX_UPLOAD_BYTES", 7); got != 7 {
		t.Fatalf("envInt64 = %d", got)
	}
	if got := envDuration("REQUEST_TIMEOUT", time.Second); got != time.Second {
		t.Fatalf("envDuration = %s", got)
	}
}
