package api

import "encoding/json"

// Payment directions.
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// Balance is the available amount of one asset on an account.
type Balance struct {
	Available float64 `json:"available"`
	Pending   float64 `json:"pending,omitempty"`
}

// Account is the session and profile returned by the accounts endpoints.
// Token is only present on authentication and sign-up responses.
type Account struct {
	Auid      string             `json:"auid"`
	Email     string             `json:"email"`
	Token     string             `json:"token,omitempty"`
	CreatedAt int64              `json:"createdAt,omitempty"`
	Balances  map[string]Balance `json:"balances,omitempty"`
}

// Fees of a payment.
type Fees struct {
	Total float64 `json:"total"`
}

// Payment as returned by the payments endpoints. Timestamps are unix
// milliseconds.
type Payment struct {
	Puid        string  `json:"puid"`
	Wuid        string  `json:"wuid"`
	Vuid        string  `json:"vuid,omitempty"`
	Direction   string  `json:"direction"`
	Amount      float64 `json:"amount"`
	Fees        Fees    `json:"fees"`
	Asset       string  `json:"asset"`
	Status      string  `json:"status,omitempty"`
	Type        string  `json:"type,omitempty"`
	Description string  `json:"description,omitempty"`
	CreatedAt   int64   `json:"createdAt"`
	UpdatedAt   int64   `json:"updatedAt,omitempty"`
}

// SendParams is the body of POST /api/payments/send.
type SendParams struct {
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
	Asset  string  `json:"asset"`
}

// ReceiveParams is the body of POST /api/payments/receive.
type ReceiveParams struct {
	Type   string  `json:"type"`
	Amount float64 `json:"amount,omitempty"`
	Asset  string  `json:"asset"`
}

// Estimate is the response of a send estimate.
type Estimate struct {
	Amount float64 `json:"amount"`
	Fees   Fees    `json:"fees"`
	Asset  string  `json:"asset"`
}

// Invoice is what POST /api/payments/receive returns: the wallet id the payer
// should send to.
type Invoice struct {
	Wuid      string  `json:"wuid"`
	Type      string  `json:"type"`
	Amount    float64 `json:"amount,omitempty"`
	Asset     string  `json:"asset"`
	ExpiresAt int64   `json:"expiresAt,omitempty"`
}

// WalletDetails describes a counterparty wallet before paying it.
type WalletDetails struct {
	Wuid   string  `json:"wuid"`
	Asset  string  `json:"asset"`
	Type   string  `json:"type,omitempty"`
	Amount float64 `json:"amount,omitempty"`
	Vuid   string  `json:"vuid,omitempty"`
	Fees   *Fees   `json:"fees,omitempty"`
}

// Vendor is a counterparty known to the wallet service.
type Vendor struct {
	Vuid    string `json:"vuid"`
	Name    string `json:"name"`
	IconURL string `json:"icon,omitempty"`
	Color   string `json:"color,omitempty"`
	Origin  string `json:"origin,omitempty"`
}

// ChatStatus is the live-chat unread counter.
type ChatStatus struct {
	Unread int `json:"unread"`
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *apiError       `json:"error"`
}

type apiError struct {
	Message string          `json:"message"`
	Code    json.RawMessage `json:"code"`
}
