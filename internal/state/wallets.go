package state

import (
	"context"
	"net/http"

	"github.com/bitlum/cli/internal/api"
	"github.com/bitlum/cli/internal/store"
	"github.com/bitlum/cli/pkg/util"
)

// Wallets looks up counterparty wallets before paying them.
type Wallets struct {
	Details *store.Store[api.WalletDetails]

	accounts *Accounts
}

func newWallets(deps Deps, accounts *Accounts) *Wallets {
	return &Wallets{
		accounts: accounts,
		Details: store.New(store.Config[api.WalletDetails]{
			Name:    "wallets.details",
			Fetcher: deps.Fetcher,
			Fetch:   store.FetchOptions{Method: http.MethodGet, Path: api.PathWalletsDetails},
			OnError: signOutOnUnauthorized(accounts),
			Logger:  deps.Logger,
			Now:     deps.Now,
		}),
	}
}

// Lookup fetches the details of wallet wuid holding asset.
func (w *Wallets) Lookup(ctx context.Context, wuid, asset string) (api.WalletDetails, error) {
	if wuid == "" || asset == "" {
		return api.WalletDetails{}, util.MissingParameter()
	}
	token := w.accounts.Token()
	if token == "" {
		return api.WalletDetails{}, ErrNotAuthenticated
	}
	return w.Details.Run(ctx,
		store.WithToken(token),
		store.WithQuery("asset", asset),
		store.WithQuery("wuid", wuid),
	)
}

func (w *Wallets) reset() {
	w.Details.Reset()
}
