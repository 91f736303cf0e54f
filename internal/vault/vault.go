// internal/vault/vault.go
//
// Vault client wrapper for statsd.
//
// Context
// -------
//   - Wraps the HashiCorp Vault Go SDK for the one job statsd needs it for:
//     resolving `vault:` references in config (database password, Redis
//     password) at boot.
//   - Renews the token in the background for as long as ctx lives, so a
//     long-running process can re-resolve secrets on reload.
//   - Caches each resolved key for SecretTTL.
//
// Public workflow
// ---------------
//  1. cli, err := vault.New(ctx, log)                    // during boot.
//  2. pw,  err := cli.Resolve(ctx, "kv/hotelstats/db#password")
//
// Notes
// -----
// • VAULT_ADDR and VAULT_TOKEN come from the environment.
// • Oxford commas, two spaces after periods.
package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"
)

// SecretTTL is how long a resolved key is served from memory.
const SecretTTL = 10 * time.Minute

// ErrBadReference is returned for references without a path or key.
var ErrBadReference = errors.New("vault: reference must be <mount>/<path>#<key>")

//
// SECTION 1.  Public façade
//

// Client is safe for concurrent use.
type Client struct {
	api *vault.Client
	log *zap.SugaredLogger

	mu    sync.RWMutex
	cache map[string]cached // mount/path#key → value + expiry
}

type cached struct {
	val string
	exp time.Time
}

// New constructs a client from VAULT_* environment variables and starts
// token renewal bound to ctx.
func New(ctx context.Context, log *zap.SugaredLogger) (*Client, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	cfg := vault.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault: env config: %w", err)
	}
	api, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault: client: %w", err)
	}
	c := &Client{api: api, log: log, cache: make(map[string]cached)}
	go c.renewLoop(ctx)
	return c, nil
}

// Resolve reads "<mount>/<path>#<key>" from a KV-v2 engine.
func (c *Client) Resolve(ctx context.Context, ref string) (string, error) {
	path, key, ok := ParseReference(ref)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrBadReference, ref)
	}
	return c.GetKV(ctx, path, key, SecretTTL)
}

// GetKV fetches one key of a KV-v2 secret, caching it for ttl when ttl > 0.
func (c *Client) GetKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error) {
	canonical := secretPath + "#" + key
	if ttl > 0 {
		c.mu.RLock()
		cv, ok := c.cache[canonical]
		c.mu.RUnlock()
		if ok && time.Now().Before(cv.exp) {
			return cv.val, nil
		}
	}

	mount, rel := splitMount(secretPath)
	sec, err := c.api.KVv2(mount).Get(ctx, rel)
	if err != nil {
		return "", fmt.Errorf("vault: get %s: %w", secretPath, err)
	}
	raw, ok := sec.Data[key]
	if !ok {
		return "", fmt.Errorf("vault: key %q not found in %q", key, secretPath)
	}
	val, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("vault: %s is not a string", canonical)
	}

	if ttl > 0 {
		c.mu.Lock()
		c.cache[canonical] = cached{val: val, exp: time.Now().Add(ttl)}
		c.mu.Unlock()
	}
	return val, nil
}

// ParseReference splits "<mount>/<path>#<key>".
func ParseReference(ref string) (path, key string, ok bool) {
	path, key, found := strings.Cut(ref, "#")
	if !found || key == "" || !strings.Contains(path, "/") {
		return "", "", false
	}
	return path, key, true
}

//
// SECTION 2.  Background token renewal
//

func (c *Client) renewLoop(ctx context.Context) {
	for ctx.Err() == nil {
		sec, err := c.api.Auth().Token().RenewSelfWithContext(ctx, 0)
		if err != nil {
			c.log.Warnw("vault token renew failed", "err", err)
			backoff(ctx, 30*time.Second)
			continue
		}
		if sec == nil || sec.Auth == nil || !sec.Auth.Renewable {
			c.log.Infow("vault token is not renewable")
			backoff(ctx, time.Hour)
			continue
		}

		watcher, err := c.api.NewLifetimeWatcher(&vault.LifetimeWatcherInput{Secret: sec})
		if err != nil {
			c.log.Warnw("vault lifetime watcher init failed", "err", err)
			backoff(ctx, 30*time.Second)
			continue
		}
		c.watch(ctx, watcher)
		backoff(ctx, 15*time.Second)
	}
}

func (c *Client) watch(ctx context.Context, w *vault.LifetimeWatcher) {
	go w.Start()
	defer w.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-w.DoneCh():
			if err != nil {
				c.log.Warnw("vault token renewal stopped", "err", err)
			}
			return
		case ev := <-w.RenewCh():
			if ev != nil && ev.Secret != nil && ev.Secret.Auth != nil {
				c.log.Debugw("vault token renewed", "ttl_s", ev.Secret.Auth.LeaseDuration)
			}
		}
	}
}

//
// SECTION 3.  Helpers
//

func splitMount(p string) (mount, rel string) {
	mount, rel, _ = strings.Cut(p, "/")
	return mount, rel
}

func backoff(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
