package storage

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/pterm/pterm"
	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the keyring service name entries are stored under.
const DefaultKeyringService = "bitlum-cli"

// KeyringKV keeps values in the OS keyring. The keyring cannot enumerate
// entries, so Keys only reports keys written by this process.
type KeyringKV struct {
	service string

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewKeyring returns a KeyringKV for service.
func NewKeyring(service string) *KeyringKV {
	if service == "" {
		service = DefaultKeyringService
	}
	return &KeyringKV{service: service, seen: map[string]struct{}{}}
}

func (k *KeyringKV) Get(key string) (string, bool) {
	v, err := keyring.Get(k.service, key)
	if err != nil {
		return "", false
	}
	k.remember(key)
	return v, true
}

func (k *KeyringKV) Set(key, value string) error {
	if err := keyring.Set(k.service, key, value); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	k.remember(key)
	return nil
}

func (k *KeyringKV) Remove(key string) error {
	k.mu.Lock()
	delete(k.seen, key)
	k.mu.Unlock()
	if err := keyring.Delete(k.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (k *KeyringKV) Keys() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	keys := make([]string, 0, len(k.seen))
	for key := range k.seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (k *KeyringKV) remember(key string) {
	k.mu.Lock()
	k.seen[key] = struct{}{}
	k.mu.Unlock()
}

// Routed sends a fixed set of secret keys to one backend and everything else
// to another. Writes that the secret backend rejects land in the default
// backend so a machine without a keyring still keeps its session.
type Routed struct {
	Default KV
	Secret  KV
	Logger  *pterm.Logger

	secrets map[string]struct{}
}

// NewRouted returns a Routed store for the given secret keys.
func NewRouted(def, secret KV, logger *pterm.Logger, secretKeys ...string) *Routed {
	r := &Routed{Default: def, Secret: secret, Logger: logger, secrets: map[string]struct{}{}}
	for _, k := range secretKeys {
		r.secrets[k] = struct{}{}
	}
	return r
}

func (r *Routed) isSecret(key string) bool {
	_, ok := r.secrets[key]
	return ok
}

func (r *Routed) Get(key string) (string, bool) {
	if r.isSecret(key) {
		if v, ok := r.Secret.Get(key); ok {
			return v, true
		}
	}
	return r.Default.Get(key)
}

func (r *Routed) Set(key, value string) error {
	if r.isSecret(key) {
		err := r.Secret.Set(key, value)
		if err == nil {
			// Drop any plaintext copy left by an earlier fallback.
			return r.Default.Remove(key)
		}
		r.Logger.Warn("Keyring unavailable, storing secret in local storage", r.Logger.Args("key", key, "error", err))
	}
	return r.Default.Set(key, value)
}

func (r *Routed) Remove(key string) error {
	var errs []error
	if r.isSecret(key) {
		errs = append(errs, r.Secret.Remove(key))
	}
	errs = append(errs, r.Default.Remove(key))
	return errors.Join(errs...)
}

// Reload reloads the default backend when it caches values. The keyring is
// read live.
func (r *Routed) Reload() error {
	if rl, ok := r.Default.(Reloader); ok {
		return rl.Reload()
	}
	return nil
}

func (r *Routed) Keys() []string {
	set := map[string]string{}
	for _, k := range r.Default.Keys() {
		set[k] = ""
	}
	for _, k := range r.Secret.Keys() {
		set[k] = ""
	}
	return sortedKeys(set)
}
