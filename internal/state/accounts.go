package state

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bitlum/cli/internal/api"
	"github.com/bitlum/cli/internal/storage"
	"github.com/bitlum/cli/internal/store"
	"github.com/bitlum/cli/pkg/util"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pterm/pterm"
)

// Accounts owns the session. Authenticate holds the persisted credentials,
// Get the latest account profile merged over them.
type Accounts struct {
	Authenticate *store.Store[api.Account]
	Signup       *store.Store[api.Account]
	Get          *store.Store[api.Account]

	kv     storage.KV
	logger *pterm.Logger

	mu       sync.Mutex
	cleanups []func()
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Referral string `json:"referral,omitempty"`
}

func newAccounts(deps Deps) *Accounts {
	a := &Accounts{kv: deps.Storage, logger: deps.Logger}

	a.Get = store.New(store.Config[api.Account]{
		Name:       "accounts.get",
		Fetcher:    deps.Fetcher,
		Fetch:      store.FetchOptions{Method: http.MethodGet, Path: api.PathAccounts},
		Merge:      mergeAccount,
		Storage:    deps.Storage,
		StorageKey: storage.KeyAccountData,
		Initial: func() (api.Account, bool) {
			return storage.Lookup[api.Account](deps.Storage, deps.Logger, storage.KeyAuthData)
		},
		OnError: signOutOnUnauthorized(a),
		Logger:  deps.Logger,
		Now:     deps.Now,
	})

	a.Authenticate = store.New(store.Config[api.Account]{
		Name:       "accounts.authenticate",
		Fetcher:    deps.Fetcher,
		Fetch:      store.FetchOptions{Method: http.MethodPost, Path: api.PathAuth},
		Merge:      mergeAccount,
		Storage:    deps.Storage,
		StorageKey: storage.KeyAuthData,
		AfterUpdate: func(acc api.Account, ok bool) {
			if !ok {
				a.Get.Apply(store.Clear[api.Account]())
				return
			}
			a.Get.Apply(store.Patch(func(cur *api.Account) { *cur = mergeAccount(*cur, acc) }))
		},
		Logger: deps.Logger,
		Now:    deps.Now,
	})

	// Signing up also signs in: the new session is handed to Authenticate,
	// which persists it and feeds Get.
	a.Signup = store.New(store.Config[api.Account]{
		Name:    "accounts.signup",
		Fetcher: deps.Fetcher,
		Fetch:   store.FetchOptions{Method: http.MethodPost, Path: api.PathAccounts},
		AfterUpdate: func(acc api.Account, ok bool) {
			if ok {
				a.Authenticate.Apply(store.Replace(acc))
			}
		},
		Logger: deps.Logger,
		Now:    deps.Now,
	})
	return a
}

// mergeAccount overlays fetched fields on cur. Fields the response leaves
// empty, most importantly the token, are kept.
func mergeAccount(cur, in api.Account) api.Account {
	out := in
	if out.Auid == "" {
		out.Auid = cur.Auid
	}
	if out.Email == "" {
		out.Email = cur.Email
	}
	if out.Token == "" {
		out.Token = cur.Token
	}
	if out.CreatedAt == 0 {
		out.CreatedAt = cur.CreatedAt
	}
	if out.Balances == nil {
		out.Balances = cur.Balances
	}
	return out
}

// Login authenticates with email and password.
func (a *Accounts) Login(ctx context.Context, email, password string) (api.Account, error) {
	if email == "" || password == "" {
		return api.Account{}, util.MissingParameter()
	}
	return a.Authenticate.Run(ctx, store.WithBody(credentials{Email: email, Password: password}))
}

// SignUp creates an account and signs in. The referral is the stored
// referral code, or the email itself when there is none.
func (a *Accounts) SignUp(ctx context.Context, email, password string) (api.Account, error) {
	if email == "" || password == "" {
		return api.Account{}, util.MissingParameter()
	}
	referral, ok := a.kv.Get(storage.KeyReferral)
	if !ok || referral == "" {
		referral = email
	}
	return a.Signup.Run(ctx, store.WithBody(credentials{Email: email, Password: password, Referral: referral}))
}

// Refresh fetches the account profile. A 401 response signs out.
func (a *Accounts) Refresh(ctx context.Context, opts ...store.FetchOption) (api.Account, error) {
	token := a.Token()
	if token == "" {
		return api.Account{}, ErrNotAuthenticated
	}
	return a.Get.Run(ctx, append([]store.FetchOption{store.WithToken(token)}, opts...)...)
}

// SignOut forgets the session and every store that depends on it.
func (a *Accounts) SignOut() {
	a.Authenticate.Reset()
	a.Signup.Reset()
	a.Get.Reset()

	a.mu.Lock()
	cleanups := append([]func(){}, a.cleanups...)
	a.mu.Unlock()
	for _, fn := range cleanups {
		fn()
	}
	a.logger.Debug("Signed out")
}

// Sync re-reads the persisted session so a login or logout done by another
// process takes effect here. A session removed from storage signs out.
func (a *Accounts) Sync() error {
	if rl, ok := a.kv.(storage.Reloader); ok {
		if err := rl.Reload(); err != nil {
			return fmt.Errorf("reload session: %w", err)
		}
	}

	stored, ok := storage.Lookup[api.Account](a.kv, a.logger, storage.KeyAuthData)
	current := a.Token()
	switch {
	case (!ok || stored.Token == "") && current != "":
		a.logger.Info("Session ended elsewhere, signing out")
		a.SignOut()
	case ok && stored.Token != "" && stored.Token != current:
		a.logger.Info("Session changed elsewhere", a.logger.Args("email", stored.Email))
		a.Authenticate.Apply(store.Replace(stored))
	}
	return nil
}

// IsAuthenticated reports whether a session token is stored.
func (a *Accounts) IsAuthenticated() bool {
	return a.Token() != ""
}

// Token returns the session token, or "".
func (a *Accounts) Token() string {
	acc, ok := a.Authenticate.Data()
	if !ok {
		return ""
	}
	return acc.Token
}

// SessionExpiry reads the exp claim of the session token. The token is not
// verified; only the server can do that.
func (a *Accounts) SessionExpiry() (time.Time, bool) {
	token := a.Token()
	if token == "" {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		a.logger.Debug("Session token is not a JWT", a.logger.Args("error", err))
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func (a *Accounts) onSignOut(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cleanups = append(a.cleanups, fn)
}
