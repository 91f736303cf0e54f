// internal/config/loader.go
//
// Configuration loader.
//
/*
Context
--------
`Load()` builds one immutable `Config` from three layers (highest
precedence last):

  1. Optional `<root>/conf/.env`.
  2. `<root>/conf/stats.yaml` (optional; a container may run on env alone).
  3. Environment variables prefixed `HSTATS_`, where `__` maps to "."
     (e.g., `HSTATS_DATABASE__PASSWORD → database.password`).

Every string leaf that starts with `vault:` is then replaced by the secret
it names, `vault:<mount>/<path>#<key>`, through the SecretResolver.  After
that the tree is unmarshalled, defaulted, validated, enriched with the root
path, and cached in an `atomic.Pointer` for lock-free reads.

Instrumentation
---------------
  • DEBUG spans – root discovery, YAML read, secret resolution.
  • ERROR spans – YAML parse, env overlay, unmarshal, validation failures.
  • INFO  span  – final "config loaded" with key highlights.
  • Logs use the global sugared logger (`zap.S()`); the file logger is
    built from this config, so it cannot exist yet.

Notes
-----
  • `rootDir()` climbs from the cwd until it finds `conf/stats.yaml`, so
    `go run ./cmd/statsd` works from any sub-directory.
  • Oxford commas, two spaces after periods.
*/
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

// EnvPrefix marks environment overrides.
const EnvPrefix = "HSTATS_"

// SecretPrefix marks values resolved through Vault.
const SecretPrefix = "vault:"

// ErrNoSecretResolver is returned when the config references a secret but
// Load was given no resolver.
var ErrNoSecretResolver = errors.New("config: vault reference without a secret resolver")

// SecretResolver turns "<mount>/<path>#<key>" into a secret value.
// *vault.Client satisfies it.
type SecretResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

var current atomic.Pointer[Config]

/*──────────────────────────── root discovery ───────────────────────────────*/

// rootDir resolves HSTATS_ROOT or climbs directories until conf/stats.yaml
// is found.  Falls back to the executable layout (<root>/bin/statsd).
func rootDir() string {
	if r := os.Getenv(EnvPrefix + "ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	for dir := wd; ; {
		if _, err := os.Stat(filepath.Join(dir, "conf", "stats.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	exe, _ := os.Executable()
	if filepath.Base(filepath.Dir(exe)) == "bin" {
		return filepath.Dir(filepath.Dir(exe))
	}
	return wd
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load reads .env, YAML, and env overrides, resolves secrets, validates,
// and caches the Config.  secrets may be nil when no value uses vault:.
func Load(ctx context.Context, secrets SecretResolver) (*Config, error) {
	root := rootDir()
	zap.S().Debugw("config root resolved", "root", root)

	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")

	yamlPath := filepath.Join(root, "conf", "stats.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
			zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
			return nil, err
		}
		zap.S().Debugw("config yaml loaded", "file", yamlPath)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ToLower(strings.ReplaceAll(s, "__", "."))
	}), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	if err := resolveSecrets(ctx, k, secrets); err != nil {
		zap.S().Errorw("config secret resolution failed", "err", err)
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}
	cfg.applyDefaults()
	cfg.Paths.Root = root

	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	current.Store(&cfg)
	zap.S().Infow("config loaded",
		"ops_addr", cfg.Ops.ListenAddr,
		"cache_backend", cfg.Cache.Backend,
		"timezone", cfg.Scheduler.Timezone,
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

// resolveSecrets swaps every vault: leaf for its secret value.
func resolveSecrets(ctx context.Context, k *koanf.Koanf, secrets SecretResolver) error {
	for path, val := range k.All() {
		s, ok := val.(string)
		if !ok || !strings.HasPrefix(s, SecretPrefix) {
			continue
		}
		if secrets == nil {
			return fmt.Errorf("%w: %s", ErrNoSecretResolver, path)
		}
		ref := strings.TrimPrefix(s, SecretPrefix)
		secret, err := secrets.Resolve(ctx, ref)
		if err != nil {
			return fmt.Errorf("config: resolve %s: %w", path, err)
		}
		if err := k.Set(path, secret); err != nil {
			return err
		}
		zap.S().Debugw("config secret resolved", "key", path)
	}
	return nil
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

// Get returns the last loaded Config, or nil before the first Load.
func Get() *Config { return current.Load() }
