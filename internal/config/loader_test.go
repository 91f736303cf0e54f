package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
ops:
  listen_addr: "0.0.0.0:9464"
database:
  dsn: "stats:placeholder@tcp(db:3306)/platform?parseTime=true"
  password: "vault:kv/hotelstats/db#password"
cache:
  backend: redis
  redis_addr: "redis:6379"
scheduler:
  timezone: UTC
log:
  level: debug
`

type fakeSecrets map[string]string

func (f fakeSecrets) Resolve(_ context.Context, ref string) (string, error) {
	if v, ok := f[ref]; ok {
		return v, nil
	}
	return "", errors.New("no such secret")
}

func writeRoot(t *testing.T, yaml string) {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "conf"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "conf", "stats.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	t.Setenv("HSTATS_ROOT", root)
}

func TestLoad_LayersAndSecrets(t *testing.T) {
	writeRoot(t, sampleYAML)
	t.Setenv("HSTATS_AGGREGATION__CONCURRENCY", "8")

	cfg, err := Load(context.Background(), fakeSecrets{"kv/hotelstats/db#password": "s3cret"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Password != "s3cret" {
		t.Fatalf("password = %q, want resolved secret", cfg.Database.Password)
	}
	if cfg.Aggregation.Concurrency != 8 {
		t.Fatalf("concurrency = %d, want env override 8", cfg.Aggregation.Concurrency)
	}
	if cfg.Cache.Backend != "redis" || cfg.Log.Level != "debug" {
		t.Fatalf("yaml values lost: %+v %+v", cfg.Cache, cfg.Log)
	}
	if cfg.Scheduler.Realtime != 5*time.Minute || cfg.Scheduler.Cleanup != "0 3 * * 1" {
		t.Fatalf("defaults not applied: %+v", cfg.Scheduler)
	}
	if Get() != cfg {
		t.Fatalf("Get does not return the loaded config")
	}
}

func TestLoad_SecretWithoutResolver(t *testing.T) {
	writeRoot(t, sampleYAML)
	if _, err := Load(context.Background(), nil); !errors.Is(err, ErrNoSecretResolver) {
		t.Fatalf("err = %v, want ErrNoSecretResolver", err)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := map[string]string{
		"redis without addr": "database:\n  dsn: x\ncache:\n  backend: redis\n",
		"bad cron":           "database:\n  dsn: x\nscheduler:\n  trend: \"at one\"\n",
		"missing dsn":        "log:\n  level: info\n",
		"unknown backend":    "database:\n  dsn: x\ncache:\n  backend: memcached\n",
	}
	for name, yaml := range cases {
		t.Run(name, func(t *testing.T) {
			writeRoot(t, yaml)
			if _, err := Load(context.Background(), nil); err == nil {
				t.Fatalf("invalid config accepted")
			}
		})
	}
}
