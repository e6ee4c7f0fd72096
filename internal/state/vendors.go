package state

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"

	"github.com/bitlum/cli/internal/api"
	"github.com/bitlum/cli/internal/store"
	"github.com/bitlum/cli/internal/vendors"
	"github.com/bitlum/cli/pkg/util"
	"github.com/pterm/pterm"
)

// Vendors resolves counterparties. Vendors fetched from the API win over
// randomized identities.
type Vendors struct {
	Details *store.Store[api.Vendor]

	accounts   *Accounts
	randomizer *vendors.Randomizer
	logger     *pterm.Logger

	mu    sync.RWMutex
	known map[string]api.Vendor
	tried map[string]bool
}

func newVendors(deps Deps, accounts *Accounts, changed func()) *Vendors {
	v := &Vendors{
		accounts:   accounts,
		randomizer: deps.Randomizer,
		logger:     deps.Logger,
		known:      map[string]api.Vendor{},
		tried:      map[string]bool{},
	}
	v.Details = store.New(store.Config[api.Vendor]{
		Name:    "vendors.get",
		Fetcher: deps.Fetcher,
		Fetch:   store.FetchOptions{Method: http.MethodGet, Path: api.PathVendors},
		AfterUpdate: func(vendor api.Vendor, ok bool) {
			if !ok || vendor.Vuid == "" || vendor.Name == "" {
				return
			}
			v.mu.Lock()
			v.known[vendor.Vuid] = vendor
			v.mu.Unlock()
			changed()
		},
		OnError: signOutOnUnauthorized(accounts),
		Logger:  deps.Logger,
		Now:     deps.Now,
	})
	return v
}

// Get fetches a vendor by vuid, GET /vendors/<vuid>, or by origin alone.
func (v *Vendors) Get(ctx context.Context, vuid, origin string) (api.Vendor, error) {
	if vuid == "" && origin == "" {
		return api.Vendor{}, util.MissingParameter()
	}
	if vendor, ok := v.Known(vuid); ok && origin == "" {
		return vendor, nil
	}
	opts := []store.FetchOption{}
	if vuid != "" {
		opts = append(opts, store.WithPath(api.PathVendors+"/"+url.PathEscape(vuid)))
	}
	if origin != "" {
		opts = append(opts, store.WithQuery("origin", origin))
	}
	if token := v.accounts.Token(); token != "" {
		opts = append(opts, store.WithToken(token))
	}
	return v.Details.Run(ctx, opts...)
}

// Resolve fetches every vuid not seen before, one at a time. Failures are
// logged and not retried for the life of the process.
func (v *Vendors) Resolve(ctx context.Context, vuids []string) error {
	for _, vuid := range vuids {
		if vuid == "" || !v.markTried(vuid) {
			continue
		}
		if _, err := v.Get(ctx, vuid, ""); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, store.ErrSuperseded) {
				continue
			}
			v.logger.Debug("Vendor lookup failed, using a randomized identity", v.logger.Args("vuid", vuid, "error", err))
		}
	}
	return nil
}

// Known returns a fetched vendor.
func (v *Vendors) Known(vuid string) (api.Vendor, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	vendor, ok := v.known[vuid]
	return vendor, ok
}

// Identity returns how the counterparty vuid is displayed.
func (v *Vendors) Identity(vuid string) vendors.Identity {
	if vendor, ok := v.Known(vuid); ok {
		return vendors.Identity{Name: vendor.Name, IconURL: vendor.IconURL, Color: vendor.Color}
	}
	return v.randomizer.Get(vuid)
}

func (v *Vendors) markTried(vuid string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.tried[vuid] {
		return false
	}
	if _, ok := v.known[vuid]; ok {
		return false
	}
	v.tried[vuid] = true
	return true
}
