package state

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/bitlum/cli/internal/api"
	"github.com/bitlum/cli/internal/denomination"
	"github.com/bitlum/cli/internal/store"
	"github.com/bitlum/cli/pkg/util"
	"github.com/samber/lo"
)

// Keys of Payment.Denominations.
const (
	DenominationMain       = "main"
	DenominationAdditional = "additional"
)

const listLifetime = 10 * time.Second

// Payment is an API payment with its display data attached.
type Payment struct {
	api.Payment
	VendorName    string                         `json:"vendorName,omitempty"`
	VendorIcon    string                         `json:"vendorIcon,omitempty"`
	VendorColor   string                         `json:"vendorColor,omitempty"`
	Denominations map[string]denomination.Values `json:"denominations,omitempty"`
}

// Formatted returns the display strings of the named denomination.
func (p Payment) Formatted(name string, opts denomination.FormatOptions) (denomination.Formatted, bool) {
	v, ok := p.Denominations[name]
	if !ok {
		return denomination.Formatted{}, false
	}
	return v.Strings(opts), true
}

// Payments holds the payment stores. List is the payment history, newest
// first; the others hold the result of the last call of each kind.
type Payments struct {
	List      *store.Store[[]Payment]
	Details   *store.Store[Payment]
	Sent      *store.Store[Payment]
	Estimated *store.Store[api.Estimate]
	Invoice   *store.Store[api.Invoice]

	accounts *Accounts
	enrich   func(api.Payment) Payment
}

func newPayments(deps Deps, accounts *Accounts, enrich func(api.Payment) Payment) *Payments {
	p := &Payments{accounts: accounts, enrich: enrich}
	onError := signOutOnUnauthorized(accounts)
	parseOne := func(raw json.RawMessage, _ store.FetchOptions) (Payment, error) {
		var in api.Payment
		if err := json.Unmarshal(raw, &in); err != nil {
			return Payment{}, fmt.Errorf("decode payment: %w", err)
		}
		return p.enrich(in), nil
	}

	p.List = store.New(store.Config[[]Payment]{
		Name:    "payments.get",
		Fetcher: deps.Fetcher,
		Fetch:   store.FetchOptions{Method: http.MethodGet, Path: api.PathPayments, LocalLifetime: listLifetime},
		Policy:  store.SkipIfBusy,
		Parse: func(raw json.RawMessage, _ store.FetchOptions) ([]Payment, error) {
			var in []api.Payment
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, fmt.Errorf("decode payments: %w", err)
			}
			return sortNewestFirst(lo.Map(in, func(pay api.Payment, _ int) Payment { return p.enrich(pay) })), nil
		},
		OnError: onError,
		Logger:  deps.Logger,
		Now:     deps.Now,
	})
	p.Details = store.New(store.Config[Payment]{
		Name:    "payments.details",
		Fetcher: deps.Fetcher,
		Fetch:   store.FetchOptions{Method: http.MethodGet, Path: api.PathPayments},
		Parse:   parseOne,
		OnError: onError,
		Logger:  deps.Logger,
		Now:     deps.Now,
	})
	p.Sent = store.New(store.Config[Payment]{
		Name:    "payments.send",
		Fetcher: deps.Fetcher,
		Fetch:   store.FetchOptions{Method: http.MethodPost, Path: api.PathPaymentsSend},
		Parse:   parseOne,
		AfterUpdate: func(sent Payment, ok bool) {
			if ok && sent.Puid != "" {
				p.prepend(sent)
			}
		},
		OnError: onError,
		Logger:  deps.Logger,
		Now:     deps.Now,
	})
	p.Estimated = store.New(store.Config[api.Estimate]{
		Name:    "payments.estimate",
		Fetcher: deps.Fetcher,
		Fetch:   store.FetchOptions{Method: http.MethodPost, Path: api.PathPaymentsSend},
		OnError: onError,
		Logger:  deps.Logger,
		Now:     deps.Now,
	})
	p.Invoice = store.New(store.Config[api.Invoice]{
		Name:    "payments.receive",
		Fetcher: deps.Fetcher,
		Fetch:   store.FetchOptions{Method: http.MethodPost, Path: api.PathPaymentsRecv},
		OnError: onError,
		Logger:  deps.Logger,
		Now:     deps.Now,
	})
	return p
}

// Refresh fetches the payment history.
func (p *Payments) Refresh(ctx context.Context, opts ...store.FetchOption) ([]Payment, error) {
	token := p.accounts.Token()
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	return p.List.Run(ctx, append([]store.FetchOption{store.WithToken(token)}, opts...)...)
}

// Get fetches one payment.
func (p *Payments) Get(ctx context.Context, puid string) (Payment, error) {
	if puid == "" {
		return Payment{}, util.MissingParameter()
	}
	token := p.accounts.Token()
	if token == "" {
		return Payment{}, ErrNotAuthenticated
	}
	return p.Details.Run(ctx, store.WithToken(token), store.WithPath(api.PathPayments+"/"+puid))
}

// Send pays params.Amount of params.Asset to params.To.
func (p *Payments) Send(ctx context.Context, params api.SendParams) (Payment, error) {
	if err := validateSend(params); err != nil {
		return Payment{}, err
	}
	token := p.accounts.Token()
	if token == "" {
		return Payment{}, ErrNotAuthenticated
	}
	return p.Sent.Run(ctx, store.WithToken(token), store.WithBody(params))
}

// Estimate asks what Send would cost without sending.
func (p *Payments) Estimate(ctx context.Context, params api.SendParams) (api.Estimate, error) {
	if err := validateSend(params); err != nil {
		return api.Estimate{}, err
	}
	token := p.accounts.Token()
	if token == "" {
		return api.Estimate{}, ErrNotAuthenticated
	}
	return p.Estimated.Run(ctx, store.WithToken(token), store.WithBody(params), store.WithQuery("estimate", "true"))
}

// Receive creates an invoice for an incoming payment.
func (p *Payments) Receive(ctx context.Context, params api.ReceiveParams) (api.Invoice, error) {
	if params.Type == "" || params.Asset == "" || params.Amount < 0 {
		return api.Invoice{}, util.MissingParameter()
	}
	token := p.accounts.Token()
	if token == "" {
		return api.Invoice{}, ErrNotAuthenticated
	}
	return p.Invoice.Run(ctx, store.WithToken(token), store.WithBody(params))
}

// Latest returns the newest payment of direction in the history.
func (p *Payments) Latest(direction string) (Payment, bool) {
	list, _ := p.List.Data()
	return lo.Find(list, func(pay Payment) bool { return pay.Direction == direction })
}

func validateSend(params api.SendParams) error {
	if params.To == "" || params.Asset == "" || params.Amount <= 0 {
		return util.MissingParameter()
	}
	return nil
}

func (p *Payments) prepend(sent Payment) {
	if _, ok := p.List.Data(); !ok {
		return
	}
	p.List.Apply(store.Patch(func(list *[]Payment) {
		rest := lo.Reject(*list, func(pay Payment, _ int) bool { return pay.Puid == sent.Puid })
		*list = sortNewestFirst(append([]Payment{sent}, rest...))
	}))
}

// reenrich recomputes display data, after settings or vendors changed.
func (p *Payments) reenrich() {
	if _, ok := p.List.Data(); !ok {
		return
	}
	p.List.Apply(store.Patch(func(list *[]Payment) {
		*list = lo.Map(*list, func(pay Payment, _ int) Payment { return p.enrich(pay.Payment) })
	}))
}

func (p *Payments) reset() {
	p.List.Reset()
	p.Details.Reset()
	p.Sent.Reset()
	p.Estimated.Reset()
	p.Invoice.Reset()
}

func sortNewestFirst(list []Payment) []Payment {
	slices.SortStableFunc(list, func(a, b Payment) int {
		return cmp.Compare(b.CreatedAt, a.CreatedAt)
	})
	return list
}

// enrich attaches the counterparty identity and the converted amounts.
func (s *State) enrich(in api.Payment) Payment {
	out := Payment{Payment: in}

	key := lo.Ternary(in.Vuid != "", in.Vuid, in.Wuid)
	if key != "" {
		id := s.Vendors.Identity(key)
		out.VendorName, out.VendorIcon, out.VendorColor = id.Name, id.IconURL, id.Color
	}

	main, additional, hasAdditional := s.Settings.Denominations(in.Asset)
	out.Denominations = map[string]denomination.Values{
		DenominationMain: main.Derive(in.Amount, in.Fees.Total, in.Direction),
	}
	if hasAdditional {
		out.Denominations[DenominationAdditional] = additional.Derive(in.Amount, in.Fees.Total, in.Direction)
	}
	return out
}

func (s *State) reenrich() {
	if s.Payments != nil {
		s.Payments.reenrich()
	}
}
