// Package state holds the client's stores and the rules that tie them
// together: session chaining, sign-out cleanup, and payment enrichment.
package state

import (
	"errors"
	"time"

	"github.com/bitlum/cli/internal/denomination"
	"github.com/bitlum/cli/internal/logging"
	"github.com/bitlum/cli/internal/storage"
	"github.com/bitlum/cli/internal/store"
	"github.com/bitlum/cli/internal/vendors"
	"github.com/bitlum/cli/pkg/util"
	"github.com/pterm/pterm"
)

// ErrNotAuthenticated is returned by authenticated operations without a session.
var ErrNotAuthenticated = errors.New("not signed in, run `bitlum login` first")

// Deps are the collaborators of a State.
type Deps struct {
	Fetcher store.Fetcher
	Storage storage.KV
	Logger  *pterm.Logger
	// Catalog defaults to denomination.DefaultCatalog().
	Catalog denomination.Catalog
	// Randomizer defaults to one backed by Storage.
	Randomizer *vendors.Randomizer
	// ChatURL is the live-chat unread endpoint; empty disables the chat store.
	ChatURL string
	Now     func() time.Time
}

// State is the application state container. Build one with New and pass it
// to whatever needs it.
type State struct {
	Accounts *Accounts
	Payments *Payments
	Wallets  *Wallets
	Vendors  *Vendors
	Settings *Settings
	UI       *UI

	logger *pterm.Logger
}

// New builds every store once and wires their dependencies.
func New(deps Deps) *State {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Storage == nil {
		deps.Storage = storage.NewMemory()
	}
	if deps.Catalog == nil {
		deps.Catalog = denomination.DefaultCatalog()
	}
	if deps.Randomizer == nil {
		deps.Randomizer = vendors.NewRandomizer(deps.Storage, deps.Logger)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	s := &State{logger: deps.Logger}
	s.Accounts = newAccounts(deps)
	s.Settings = newSettings(deps, s.reenrich)
	s.Vendors = newVendors(deps, s.Accounts, s.reenrich)
	s.Payments = newPayments(deps, s.Accounts, s.enrich)
	s.Wallets = newWallets(deps, s.Accounts)
	s.UI = newUI(deps)

	s.Accounts.onSignOut(s.Payments.reset)
	s.Accounts.onSignOut(s.Wallets.reset)
	return s
}

// Summary is a point-in-time view of the state, used by the local feed.
type Summary struct {
	Authenticated bool          `json:"authenticated"`
	Email         string        `json:"email,omitempty"`
	SessionExpiry *time.Time    `json:"sessionExpiry,omitempty"`
	Payments      int           `json:"payments"`
	Unread        int           `json:"unread"`
	Settings      SettingsData  `json:"settings"`
	Errors        []StoreStatus `json:"errors,omitempty"`
}

// StoreStatus names a store whose last fetch failed.
type StoreStatus struct {
	Store string `json:"store"`
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Summary returns the current summary.
func (s *State) Summary() Summary {
	out := Summary{
		Authenticated: s.Accounts.IsAuthenticated(),
		Settings:      s.Settings.Current(),
	}
	if acc, ok := s.Accounts.Get.Data(); ok {
		out.Email = acc.Email
	}
	if exp, ok := s.Accounts.SessionExpiry(); ok {
		out.SessionExpiry = &exp
	}
	if list, ok := s.Payments.List.Data(); ok {
		out.Payments = len(list)
	}
	if chat, ok := s.UI.Chat.Data(); ok {
		out.Unread = chat.Unread
	}
	for _, st := range []struct {
		name string
		err  error
	}{
		{s.Accounts.Get.Name(), s.Accounts.Get.Err()},
		{s.Payments.List.Name(), s.Payments.List.Err()},
		{s.UI.Chat.Name(), s.UI.Chat.Err()},
	} {
		if st.err != nil {
			out.Errors = append(out.Errors, StoreStatus{Store: st.name, Error: st.err.Error(), Code: util.ErrorCode(st.err)})
		}
	}
	return out
}

// Logger returns the logger the stores log to.
func (s *State) Logger() *pterm.Logger {
	return s.logger
}

// signOutOnUnauthorized returns an OnError hook that signs out on 401 codes.
func signOutOnUnauthorized(accounts *Accounts) func(error) {
	return func(err error) {
		if util.IsUnauthorized(err) {
			accounts.logger.Warn("Session expired, signing out", accounts.logger.Args("code", util.ErrorCode(err)))
			accounts.SignOut()
		}
	}
}
