package state

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bitlum/cli/internal/api"
	"github.com/bitlum/cli/internal/denomination"
	"github.com/bitlum/cli/internal/storage"
	"github.com/bitlum/cli/pkg/util"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type route func(req api.Request) (any, error)

// FakeAPI answers requests by "METHOD path".
type FakeAPI struct {
	mu       sync.Mutex
	routes   map[string]route
	requests []api.Request
}

func NewFakeAPI() *FakeAPI {
	return &FakeAPI{routes: map[string]route{}}
}

func (f *FakeAPI) Handle(method, path string, r route) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = r
}

func (f *FakeAPI) Do(ctx context.Context, req api.Request) (json.RawMessage, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	r, ok := f.routes[req.Method+" "+req.Path]
	f.mu.Unlock()
	if !ok {
		return nil, util.NewCodedError("404", "no route for "+req.Method+" "+req.Path)
	}
	v, err := r(req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func (f *FakeAPI) Requests() []api.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.Request(nil), f.requests...)
}

func reply(v any) route {
	return func(api.Request) (any, error) { return v, nil }
}

func newTestState(t *testing.T, f *FakeAPI, kv storage.KV) *State {
	t.Helper()
	if kv == nil {
		kv = storage.NewMemory()
	}
	return New(Deps{
		Fetcher: f,
		Storage: kv,
		Catalog: denomination.DefaultCatalog().WithPrices(map[string]map[string]denomination.FiatPrice{
			"BTC": {"USD": {Price: 4000, Sign: "$"}},
		}),
		ChatURL: "https://chat.example.com/unread",
	})
}

func signedIn(t *testing.T, f *FakeAPI, kv storage.KV) *State {
	t.Helper()
	f.Handle("POST", api.PathAuth, reply(api.Account{Auid: "u1", Email: "a@b.c", Token: "tok"}))
	s := newTestState(t, f, kv)
	_, err := s.Accounts.Login(context.Background(), "a@b.c", "secret")
	require.NoError(t, err)
	return s
}

func TestLoginValidation(t *testing.T) {
	f := NewFakeAPI()
	s := newTestState(t, f, nil)

	_, err := s.Accounts.Login(context.Background(), "", "secret")
	require.Error(t, err)
	assert.Equal(t, util.CodeBadRequest, util.ErrorCode(err))
	assert.Equal(t, "One of required parameters is missing (400)", err.Error())
	assert.Empty(t, f.Requests())
	assert.False(t, s.Accounts.IsAuthenticated())
}

func TestLoginPersistsSession(t *testing.T) {
	kv := storage.NewMemory()
	f := NewFakeAPI()
	s := signedIn(t, f, kv)

	assert.True(t, s.Accounts.IsAuthenticated())
	assert.Equal(t, "tok", s.Accounts.Token())
	acc, ok := s.Accounts.Get.Data()
	require.True(t, ok)
	assert.Equal(t, "a@b.c", acc.Email)
	_, ok = kv.Get(storage.KeyAuthData)
	assert.True(t, ok)

	body, ok := f.Requests()[0].Body.(credentials)
	require.True(t, ok)
	assert.Equal(t, "secret", body.Password)

	reloaded := newTestState(t, f, kv)
	assert.True(t, reloaded.Accounts.IsAuthenticated())
	acc, ok = reloaded.Accounts.Get.Data()
	require.True(t, ok)
	assert.Equal(t, "tok", acc.Token)
}

func TestSignUpReferral(t *testing.T) {
	tests := []struct {
		name     string
		stored   string
		expected string
	}{
		{name: "stored referral", stored: "friend", expected: "friend"},
		{name: "falls back to email", expected: "new@b.c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := storage.NewMemory()
			if tt.stored != "" {
				require.NoError(t, kv.Set(storage.KeyReferral, tt.stored))
			}
			f := NewFakeAPI()
			f.Handle("POST", api.PathAccounts, reply(api.Account{Auid: "u2", Email: "new@b.c", Token: "fresh"}))
			s := newTestState(t, f, kv)

			_, err := s.Accounts.SignUp(context.Background(), "new@b.c", "pw")
			require.NoError(t, err)

			body := f.Requests()[0].Body.(credentials)
			assert.Equal(t, tt.expected, body.Referral)
			assert.Equal(t, "fresh", s.Accounts.Token())
			acc, _ := s.Accounts.Get.Data()
			assert.Equal(t, "new@b.c", acc.Email)
		})
	}
}

func TestRefreshKeepsToken(t *testing.T) {
	f := NewFakeAPI()
	s := signedIn(t, f, nil)
	f.Handle("GET", api.PathAccounts, reply(api.Account{
		Auid:     "u1",
		Email:    "a@b.c",
		Balances: map[string]api.Balance{"BTC": {Available: 0.5}},
	}))

	acc, err := s.Accounts.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", acc.Token)
	assert.Equal(t, 0.5, acc.Balances["BTC"].Available)
	assert.Equal(t, "tok", f.Requests()[1].Token)
}

func TestUnauthorizedSignsOut(t *testing.T) {
	kv := storage.NewMemory()
	f := NewFakeAPI()
	s := signedIn(t, f, kv)
	f.Handle("GET", api.PathPayments, reply([]api.Payment{{Puid: "p1", Asset: "BTC", Direction: api.DirectionIncoming, Amount: 1}}))
	_, err := s.Payments.Refresh(context.Background())
	require.NoError(t, err)

	f.Handle("GET", api.PathAccounts, func(api.Request) (any, error) {
		return nil, util.NewCodedError("401TOKEN_EXPIRED", "token expired")
	})
	_, err = s.Accounts.Refresh(context.Background())
	require.Error(t, err)

	assert.False(t, s.Accounts.IsAuthenticated())
	_, ok := s.Payments.List.Data()
	assert.False(t, ok)
	_, ok = kv.Get(storage.KeyAuthData)
	assert.False(t, ok)
	_, ok = kv.Get(storage.KeyAccountData)
	assert.False(t, ok)

	_, err = s.Payments.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestPaymentsRefreshEnrichesNewestFirst(t *testing.T) {
	f := NewFakeAPI()
	s := signedIn(t, f, nil)
	f.Handle("GET", api.PathPayments, reply([]api.Payment{
		{Puid: "old", Vuid: "v1", Direction: api.DirectionOutgoing, Amount: 0.001, Fees: api.Fees{Total: 0.0001}, Asset: "BTC", CreatedAt: 1000},
		{Puid: "new", Vuid: "v2", Direction: api.DirectionIncoming, Amount: 0.001, Asset: "BTC", CreatedAt: 2000},
	}))

	list, err := s.Payments.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].Puid)
	assert.Equal(t, "old", list[1].Puid)

	assert.NotEmpty(t, list[0].VendorName)
	assert.NotEqual(t, list[0].VendorName, list[1].VendorName)

	main, ok := list[0].Formatted(DenominationMain, denomination.FormatOptions{})
	require.True(t, ok)
	assert.Equal(t, "BTC +0.001", main.Amount)
	extra, ok := list[0].Formatted(DenominationAdditional, denomination.FormatOptions{})
	require.True(t, ok)
	assert.Equal(t, "SAT +100000", extra.Amount)

	out, _ := list[1].Formatted(DenominationMain, denomination.FormatOptions{})
	assert.Equal(t, "BTC -0.0011", out.Total)

	latest, ok := s.Payments.Latest(api.DirectionIncoming)
	require.True(t, ok)
	assert.Equal(t, "new", latest.Puid)
}

func TestSettingsChangeReenrichesPayments(t *testing.T) {
	f := NewFakeAPI()
	s := signedIn(t, f, nil)
	f.Handle("GET", api.PathPayments, reply([]api.Payment{
		{Puid: "p1", Direction: api.DirectionIncoming, Amount: 0.5, Asset: "BTC", CreatedAt: 1},
	}))
	_, err := s.Payments.Refresh(context.Background())
	require.NoError(t, err)

	err = s.Settings.SetDenomination("BTC", "mBTC", "USD")
	require.NoError(t, err)

	list, _ := s.Payments.List.Data()
	main, _ := list[0].Formatted(DenominationMain, denomination.FormatOptions{})
	assert.Equal(t, "mBTC +500", main.Amount)
	usd, _ := list[0].Formatted(DenominationAdditional, denomination.FormatOptions{})
	assert.Equal(t, "$+2000", usd.Amount)

	err = s.Settings.SetDenomination("BTC", "DOGE", "")
	assert.Equal(t, util.CodeBadRequest, util.ErrorCode(err))
	assert.Equal(t, "mBTC", s.Settings.Choice("BTC").Main)
}

func TestKnownVendorWinsOverRandomized(t *testing.T) {
	f := NewFakeAPI()
	s := signedIn(t, f, nil)
	f.Handle("GET", api.PathPayments, reply([]api.Payment{
		{Puid: "p1", Vuid: "shop", Direction: api.DirectionOutgoing, Amount: 1, Asset: "BTC", CreatedAt: 1},
	}))
	f.Handle("GET", api.PathVendors+"/shop", func(req api.Request) (any, error) {
		assert.Empty(t, req.Query.Get("vuid"))
		return api.Vendor{Vuid: "shop", Name: "Coffee Shop", IconURL: "https://shop/icon.png"}, nil
	})

	_, err := s.Payments.Refresh(context.Background())
	require.NoError(t, err)
	list, _ := s.Payments.List.Data()
	assert.NotEqual(t, "Coffee Shop", list[0].VendorName)

	require.NoError(t, s.Vendors.Resolve(context.Background(), []string{"shop", "shop", "ghost"}))
	list, _ = s.Payments.List.Data()
	assert.Equal(t, "Coffee Shop", list[0].VendorName)
	assert.Equal(t, "https://shop/icon.png", list[0].VendorIcon)

	vendorCalls := 0
	for _, r := range f.Requests() {
		if strings.HasPrefix(r.Path, api.PathVendors+"/") {
			vendorCalls++
		}
	}
	assert.Equal(t, 2, vendorCalls)

	_, err = s.Vendors.Get(context.Background(), "", "")
	assert.Equal(t, util.CodeBadRequest, util.ErrorCode(err))
}

func TestVendorGetRequestsVendorPath(t *testing.T) {
	var gotURI string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURI = r.URL.RequestURI()
		_, _ = w.Write([]byte(`{"data":{"vuid":"v1","name":"Coffee Shop"}}`))
	}))
	defer srv.Close()

	s := New(Deps{Fetcher: api.New(srv.URL)})
	v, err := s.Vendors.Get(context.Background(), "v1", "example.com")
	require.NoError(t, err)
	assert.Equal(t, "/vendors/v1?origin=example.com", gotURI)
	assert.Equal(t, "Coffee Shop", v.Name)

	_, err = s.Vendors.Get(context.Background(), "a b/c", "")
	require.NoError(t, err)
	assert.Equal(t, "/vendors/a%20b%2Fc", gotURI)
}

func TestSendEstimateReceive(t *testing.T) {
	f := NewFakeAPI()
	s := signedIn(t, f, nil)
	f.Handle("GET", api.PathPayments, reply([]api.Payment{{Puid: "p1", Asset: "BTC", CreatedAt: 1}}))
	f.Handle("POST", api.PathPaymentsSend, func(req api.Request) (any, error) {
		if req.Query.Get("estimate") == "true" {
			return api.Estimate{Amount: 0.1, Fees: api.Fees{Total: 0.001}, Asset: "BTC"}, nil
		}
		return api.Payment{Puid: "p2", Direction: api.DirectionOutgoing, Amount: 0.1, Asset: "BTC", CreatedAt: 2}, nil
	})
	f.Handle("POST", api.PathPaymentsRecv, reply(api.Invoice{Wuid: "w1", Type: "lightning", Asset: "BTC"}))
	_, err := s.Payments.Refresh(context.Background())
	require.NoError(t, err)

	params := api.SendParams{To: "w9", Amount: 0.1, Asset: "BTC"}
	est, err := s.Payments.Estimate(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, 0.001, est.Fees.Total)

	sent, err := s.Payments.Send(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, "p2", sent.Puid)
	assert.Contains(t, sent.Denominations, DenominationMain)

	list, _ := s.Payments.List.Data()
	require.Len(t, list, 2)
	assert.Equal(t, "p2", list[0].Puid)

	_, err = s.Payments.Send(context.Background(), api.SendParams{To: "w9", Asset: "BTC"})
	assert.Equal(t, util.CodeBadRequest, util.ErrorCode(err))

	inv, err := s.Payments.Receive(context.Background(), api.ReceiveParams{Type: "lightning", Asset: "BTC"})
	require.NoError(t, err)
	assert.Equal(t, "w1", inv.Wuid)
}

func TestPaymentDetailsAndWallets(t *testing.T) {
	f := NewFakeAPI()
	s := signedIn(t, f, nil)
	f.Handle("GET", api.PathPayments+"/p7", reply(api.Payment{Puid: "p7", Asset: "BTC", Amount: 1}))
	f.Handle("GET", api.PathWalletsDetails, func(req api.Request) (any, error) {
		return api.WalletDetails{Wuid: req.Query.Get("wuid"), Asset: req.Query.Get("asset")}, nil
	})

	p, err := s.Payments.Get(context.Background(), "p7")
	require.NoError(t, err)
	assert.Equal(t, "p7", p.Puid)

	w, err := s.Wallets.Lookup(context.Background(), "w1", "BTC")
	require.NoError(t, err)
	assert.Equal(t, api.WalletDetails{Wuid: "w1", Asset: "BTC"}, w)

	_, err = s.Wallets.Lookup(context.Background(), "w1", "")
	assert.Equal(t, util.CodeBadRequest, util.ErrorCode(err))
}

func TestSessionExpiry(t *testing.T) {
	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	f := NewFakeAPI()
	f.Handle("POST", api.PathAuth, reply(api.Account{Email: "a@b.c", Token: token}))
	s := newTestState(t, f, nil)
	_, ok := s.Accounts.SessionExpiry()
	assert.False(t, ok)

	_, err = s.Accounts.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	got, ok := s.Accounts.SessionExpiry()
	require.True(t, ok)
	assert.True(t, exp.Equal(got))

	summary := s.Summary()
	assert.True(t, summary.Authenticated)
	require.NotNil(t, summary.SessionExpiry)
}

func TestChat(t *testing.T) {
	f := NewFakeAPI()
	f.Handle("GET", "https://chat.example.com/unread", reply(api.ChatStatus{Unread: 3}))
	s := newTestState(t, f, nil)

	assert.True(t, s.UI.ChatEnabled())
	n, err := s.UI.RefreshChat(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, s.Summary().Unread)
}

func TestSettingsNotifications(t *testing.T) {
	kv := storage.NewMemory()
	s := newTestState(t, NewFakeAPI(), kv)
	assert.True(t, s.Settings.NotificationsEnabled())

	s.Settings.SetNotifications(false)
	assert.False(t, newTestState(t, NewFakeAPI(), kv).Settings.NotificationsEnabled())
}
