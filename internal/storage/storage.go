// Package storage provides the persisted key-value storage the wallet client
// keeps its session, settings, and view state in.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/pterm/pterm"
)

// Well-known keys.
const (
	KeyAuthData           = "authData"
	KeyAccountData        = "accountData"
	KeySettings           = "settings"
	KeyRandomizedVendors  = "randomizedVendors"
	KeyFirstPaymentMadeAt = "firstPaymentMadeAt"
	KeyFirstDepositMadeAt = "firstDepositMadeAt"
	KeyInstalledVersion   = "installedV"
	KeyUpdatedVersion     = "updatedV"
	KeyInstalledAt        = "installedAt"
	KeyUpdatedAt          = "updatedAt"
	KeyReferral           = "referral"

	notificationPrefix = "notification_"
)

// NotificationKey returns the key holding the last shown notification of typ.
func NotificationKey(typ string) string {
	return notificationPrefix + typ
}

// ErrUnavailable is returned by backends that cannot be reached, such as a
// keyring on a headless machine.
var ErrUnavailable = errors.New("storage backend unavailable")

// KV is a string key-value store.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
	Keys() []string
}

// Reloader is a KV that caches values and can re-read them from its backend.
type Reloader interface {
	Reload() error
}

// LoadJSON decodes the value stored under key into v. It returns false when
// the key is absent.
func LoadJSON(kv KV, key string, v any) (bool, error) {
	raw, ok := kv.Get(key)
	if !ok || raw == "" || raw == "null" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SaveJSON encodes v and stores it under key.
func SaveJSON(kv KV, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return kv.Set(key, string(b))
}

// Lookup is LoadJSON with failures logged and reported as absent.
func Lookup[T any](kv KV, logger *pterm.Logger, key string) (T, bool) {
	var v T
	ok, err := LoadJSON(kv, key, &v)
	if err != nil {
		logger.Error("Unable to read from local storage", logger.Args("key", key, "error", err))
		var zero T
		return zero, false
	}
	return v, ok
}

// Store is SaveJSON with failures logged and otherwise ignored.
func Store(kv KV, logger *pterm.Logger, key string, v any) {
	if err := SaveJSON(kv, key, v); err != nil {
		logger.Error("Unable to save to local storage", logger.Args("key", key, "error", err))
	}
}

// Forget removes key, logging failures.
func Forget(kv KV, logger *pterm.Logger, key string) {
	if err := kv.Remove(key); err != nil {
		logger.Error("Unable to remove from local storage", logger.Args("key", key, "error", err))
	}
}

// MemoryKV is an in-memory KV, used in tests and when no data directory is set.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory returns an empty MemoryKV.
func NewMemory() *MemoryKV {
	return &MemoryKV{values: map[string]string{}}
}

func (m *MemoryKV) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryKV) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryKV) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.values)
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
