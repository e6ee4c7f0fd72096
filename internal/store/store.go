// Package store implements the fetchable, cacheable, observable stores the
// client keeps remote state in.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bitlum/cli/internal/api"
	"github.com/bitlum/cli/internal/logging"
	"github.com/bitlum/cli/internal/storage"
	"github.com/pterm/pterm"
)

var (
	// ErrInFlight is returned by SkipIfBusy stores while a fetch is running.
	ErrInFlight = errors.New("fetch already in flight")
	// ErrSuperseded is returned to a fetch replaced by a newer one before it
	// finished. Its result was discarded.
	ErrSuperseded = errors.New("fetch superseded by a newer request")
	// ErrNoFetch is returned by stores that only hold local data.
	ErrNoFetch = errors.New("store has no fetch options")
)

// Fetcher performs API requests.
type Fetcher interface {
	Do(ctx context.Context, req api.Request) (json.RawMessage, error)
}

// Policy decides what happens when a fetch starts while another is running.
type Policy int

const (
	// Supersede cancels the running fetch; only the newest fetch writes state.
	Supersede Policy = iota
	// SkipIfBusy rejects the new fetch with ErrInFlight.
	SkipIfBusy
)

// Config describes a store. Only Name is required.
type Config[T any] struct {
	Name    string
	Fetcher Fetcher
	Fetch   FetchOptions
	Policy  Policy

	// Parse turns a successful response into data. Defaults to JSON decoding.
	Parse func(raw json.RawMessage, opts FetchOptions) (T, error)
	// Merge combines fetched data with the current data. Without it fetched
	// data replaces the current data.
	Merge func(current, fetched T) T
	// Run replaces the default Run, which fetches with the given options.
	Run func(ctx context.Context, s *Store[T], opts ...FetchOption) (T, error)

	// Storage and StorageKey persist the data across runs.
	Storage    storage.KV
	StorageKey string
	// Initial seeds the data when nothing is persisted under StorageKey.
	Initial func() (T, bool)

	// AfterUpdate runs after every change applied through Apply or a
	// successful fetch. It is how related stores are chained.
	AfterUpdate func(data T, ok bool)
	// OnError runs after a failed fetch, outside any lock.
	OnError func(err error)

	Logger *pterm.Logger
	Now    func() time.Time
}

// Snapshot is a consistent view of a store.
type Snapshot[T any] struct {
	Name      string
	Data      T
	HasData   bool
	Err       error
	Loading   bool
	FetchedAt time.Time
}

// Store holds the last fetched data of one remote resource.
type Store[T any] struct {
	cfg Config[T]

	mu        sync.RWMutex
	data      T
	has       bool
	err       error
	loading   bool
	fetchedAt time.Time
	gen       uint64
	cancel    context.CancelFunc
	subs      map[int]func(Snapshot[T])
	nextSub   int
}

// New builds a store from cfg, loading persisted data when configured.
func New[T any](cfg Config[T]) *Store[T] {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Store[T]{cfg: cfg, subs: map[int]func(Snapshot[T]){}}

	if cfg.Storage != nil && cfg.StorageKey != "" {
		s.data, s.has = storage.Lookup[T](cfg.Storage, cfg.Logger, cfg.StorageKey)
	}
	if !s.has && cfg.Initial != nil {
		s.data, s.has = cfg.Initial()
	}
	return s
}

// Name returns the store name.
func (s *Store[T]) Name() string {
	return s.cfg.Name
}

// Data returns the current data and whether there is any.
func (s *Store[T]) Data() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data, s.has
}

// Err returns the error of the last fetch, or nil when it succeeded.
func (s *Store[T]) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Loading reports whether a fetch is running.
func (s *Store[T]) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Snapshot returns the current state.
func (s *Store[T]) Snapshot() Snapshot[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe calls fn with a snapshot after every state change until the
// returned cancel function is called. fn must not block.
func (s *Store[T]) Subscribe(fn func(Snapshot[T])) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Run is the store's entry point. It fetches unless Config.Run overrides it.
func (s *Store[T]) Run(ctx context.Context, opts ...FetchOption) (T, error) {
	if s.cfg.Run != nil {
		return s.cfg.Run(ctx, s, opts...)
	}
	return s.StartFetching(ctx, opts...)
}

// StartFetching issues the configured request with overrides applied, parses
// the response, and stores it. On failure the error is stored and the data is
// left untouched.
func (s *Store[T]) StartFetching(ctx context.Context, overrides ...FetchOption) (T, error) {
	var zero T
	opts := s.cfg.Fetch.merge(overrides)
	if opts.Path == "" || s.cfg.Fetcher == nil {
		return zero, fmt.Errorf("%s: %w", s.cfg.Name, ErrNoFetch)
	}

	s.mu.Lock()
	if data, ok := s.cachedLocked(opts.LocalLifetime); ok {
		s.mu.Unlock()
		return data, nil
	}
	if s.cancel != nil {
		if s.cfg.Policy == SkipIfBusy {
			s.mu.Unlock()
			return zero, fmt.Errorf("%s: %w", s.cfg.Name, ErrInFlight)
		}
		s.cancel()
	}
	s.gen++
	gen := s.gen
	fetchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.loading = true
	started := s.snapshotLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()
	defer cancel()

	notify(subs, started)
	s.cfg.Logger.Debug("Fetching store", s.cfg.Logger.Args("store", s.cfg.Name, "path", opts.Path))

	raw, err := s.cfg.Fetcher.Do(fetchCtx, api.Request{
		Method: opts.Method,
		Path:   opts.Path,
		Query:  opts.Query,
		Body:   opts.Body,
		Token:  opts.Token,
	})
	var parsed T
	if err == nil {
		parsed, err = s.parse(raw, opts)
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return zero, fmt.Errorf("%s: %w", s.cfg.Name, ErrSuperseded)
	}
	s.cancel = nil
	s.loading = false

	if err != nil {
		s.err = err
		failed := s.snapshotLocked()
		subs = s.subscribersLocked()
		s.mu.Unlock()

		notify(subs, failed)
		s.cfg.Logger.Debug("Store fetch failed", s.cfg.Logger.Args("store", s.cfg.Name, "error", err))
		if s.cfg.OnError != nil && ctx.Err() == nil {
			s.cfg.OnError(err)
		}
		return zero, err
	}

	s.err = nil
	s.fetchedAt = s.cfg.Now()
	update := Replace(parsed)
	if s.cfg.Merge != nil && s.has {
		merge := s.cfg.Merge
		update = Patch(func(cur *T) { *cur = merge(*cur, parsed) })
	}
	s.applyLocked(update)
	done := s.snapshotLocked()
	subs = s.subscribersLocked()
	s.mu.Unlock()

	s.afterApply(subs, done)
	return done.Data, nil
}

// Apply changes the data, persists it, and notifies subscribers and the
// AfterUpdate hook.
func (s *Store[T]) Apply(u Update[T]) {
	if u.kind == kindNone {
		return
	}
	s.mu.Lock()
	s.applyLocked(u)
	snap := s.snapshotLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	s.afterApply(subs, snap)
}

// Reset forgets everything: data, error, cache time, persisted copy. A running
// fetch is cancelled and its result discarded. AfterUpdate is not called.
func (s *Store[T]) Reset() {
	var zero T
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.data, s.has = zero, false
	s.err = nil
	s.loading = false
	s.fetchedAt = time.Time{}
	s.persistLocked()
	snap := s.snapshotLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, snap)
}

func (s *Store[T]) parse(raw json.RawMessage, opts FetchOptions) (T, error) {
	if s.cfg.Parse != nil {
		return s.cfg.Parse(raw, opts)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%s: decode response: %w", s.cfg.Name, err)
	}
	return v, nil
}

func (s *Store[T]) cachedLocked(lifetime time.Duration) (T, bool) {
	var zero T
	if lifetime <= 0 || !s.has || s.err != nil || s.fetchedAt.IsZero() || s.cancel != nil {
		return zero, false
	}
	if s.cfg.Now().Sub(s.fetchedAt) >= lifetime {
		return zero, false
	}
	return s.data, true
}

func (s *Store[T]) applyLocked(u Update[T]) {
	var zero T
	switch u.kind {
	case kindReplace:
		s.data, s.has = u.value, true
	case kindPatch:
		if !s.has {
			s.data = zero
		}
		u.patch(&s.data)
		s.has = true
	case kindClear:
		s.data, s.has = zero, false
		s.fetchedAt = time.Time{}
	}
	s.persistLocked()
}

func (s *Store[T]) persistLocked() {
	if s.cfg.Storage == nil || s.cfg.StorageKey == "" {
		return
	}
	if !s.has {
		storage.Forget(s.cfg.Storage, s.cfg.Logger, s.cfg.StorageKey)
		return
	}
	storage.Store(s.cfg.Storage, s.cfg.Logger, s.cfg.StorageKey, s.data)
}

func (s *Store[T]) afterApply(subs []func(Snapshot[T]), snap Snapshot[T]) {
	notify(subs, snap)
	if s.cfg.AfterUpdate != nil {
		s.cfg.AfterUpdate(snap.Data, snap.HasData)
	}
}

func (s *Store[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{
		Name:      s.cfg.Name,
		Data:      s.data,
		HasData:   s.has,
		Err:       s.err,
		Loading:   s.loading,
		FetchedAt: s.fetchedAt,
	}
}

func (s *Store[T]) subscribersLocked() []func(Snapshot[T]) {
	subs := make([]func(Snapshot[T]), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs
}

func notify[T any](subs []func(Snapshot[T]), snap Snapshot[T]) {
	for _, fn := range subs {
		fn(snap)
	}
}
