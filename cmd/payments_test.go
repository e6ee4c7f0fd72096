package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/bitlum/cli/internal/api"
	"github.com/bitlum/cli/internal/denomination"
	"github.com/bitlum/cli/internal/state"
	"github.com/bitlum/cli/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type FakePaymentService struct {
	RefreshFunc  func(ctx context.Context, opts ...store.FetchOption) ([]state.Payment, error)
	GetFunc      func(ctx context.Context, puid string) (state.Payment, error)
	SendFunc     func(ctx context.Context, params api.SendParams) (state.Payment, error)
	EstimateFunc func(ctx context.Context, params api.SendParams) (api.Estimate, error)
	ReceiveFunc  func(ctx context.Context, params api.ReceiveParams) (api.Invoice, error)
}

func (f *FakePaymentService) Refresh(ctx context.Context, opts ...store.FetchOption) ([]state.Payment, error) {
	if f.RefreshFunc != nil {
		return f.RefreshFunc(ctx, opts...)
	}
	return nil, nil
}

func (f *FakePaymentService) Get(ctx context.Context, puid string) (state.Payment, error) {
	if f.GetFunc != nil {
		return f.GetFunc(ctx, puid)
	}
	return state.Payment{}, errors.New("not found")
}

func (f *FakePaymentService) Send(ctx context.Context, params api.SendParams) (state.Payment, error) {
	if f.SendFunc != nil {
		return f.SendFunc(ctx, params)
	}
	return state.Payment{}, nil
}

func (f *FakePaymentService) Estimate(ctx context.Context, params api.SendParams) (api.Estimate, error) {
	if f.EstimateFunc != nil {
		return f.EstimateFunc(ctx, params)
	}
	return api.Estimate{Amount: params.Amount, Asset: params.Asset}, nil
}

func (f *FakePaymentService) Receive(ctx context.Context, params api.ReceiveParams) (api.Invoice, error) {
	if f.ReceiveFunc != nil {
		return f.ReceiveFunc(ctx, params)
	}
	return api.Invoice{}, nil
}

// btcUnits shows BTC amounts in BTC with SAT as the additional unit.
type btcUnits struct{}

func (btcUnits) Denominations(asset string) (denomination.Denomination, denomination.Denomination, bool) {
	c := denomination.DefaultCatalog()
	main, _ := c.Lookup(asset, denomination.BTC)
	sat, ok := c.Lookup(asset, denomination.SAT)
	return main, sat, ok
}

func testPayment(puid, direction, vendor string, amount, fees float64, createdAt int64) state.Payment {
	main, sat, _ := btcUnits{}.Denominations("BTC")
	return state.Payment{
		Payment: api.Payment{
			Puid:        puid,
			Wuid:        "w-" + puid,
			Direction:   direction,
			Amount:      amount,
			Fees:        api.Fees{Total: fees},
			Asset:       "BTC",
			Status:      "completed",
			Description: "coffee",
			CreatedAt:   createdAt,
		},
		VendorName: vendor,
		Denominations: map[string]denomination.Values{
			state.DenominationMain:       main.Derive(amount, fees, direction),
			state.DenominationAdditional: sat.Derive(amount, fees, direction),
		},
	}
}

func paymentHistory() []state.Payment {
	return []state.Payment{
		testPayment("p3", api.DirectionIncoming, "Cafe", 0.001, 0, 3000),
		testPayment("p2", api.DirectionOutgoing, "Shop", 0.001, 0.0001, 2000),
		testPayment("p1", api.DirectionIncoming, "Friend", 0.002, 0, 1000),
	}
}

func TestPaymentsList(t *testing.T) {
	setupStdoutCapture(t)
	fake := &FakePaymentService{
		RefreshFunc: func(ctx context.Context, opts ...store.FetchOption) ([]state.Payment, error) {
			return paymentHistory(), nil
		},
	}
	c := PaymentsCmd{payments: fake, denominations: btcUnits{}}

	require.NoError(t, c.List(context.Background(), ListPaymentsInput{}))
	out := outBuf.String()
	assert.Contains(t, out, "Cafe")
	assert.Contains(t, out, "BTC +0.001")
	assert.Contains(t, out, "SAT +100000")
	assert.Contains(t, out, "BTC -0.0011")
	assert.Contains(t, out, "Friend")
}

func TestPaymentsList_DirectionAndLimit(t *testing.T) {
	setupStdoutCapture(t)
	fake := &FakePaymentService{
		RefreshFunc: func(ctx context.Context, opts ...store.FetchOption) ([]state.Payment, error) {
			return paymentHistory(), nil
		},
	}
	c := PaymentsCmd{payments: fake, denominations: btcUnits{}}

	require.NoError(t, c.List(context.Background(), ListPaymentsInput{Direction: api.DirectionIncoming, Limit: 1}))
	out := outBuf.String()
	assert.Contains(t, out, "Cafe")
	assert.NotContains(t, out, "Shop")
	assert.NotContains(t, out, "Friend")
}

func TestPaymentsList_Empty(t *testing.T) {
	setupStdoutCapture(t)
	c := PaymentsCmd{payments: &FakePaymentService{}, denominations: btcUnits{}}

	require.NoError(t, c.List(context.Background(), ListPaymentsInput{}))
	assert.Contains(t, outBuf.String(), "No payments found")
}

func TestPaymentsList_InvalidDirection(t *testing.T) {
	c := PaymentsCmd{payments: &FakePaymentService{}, denominations: btcUnits{}}
	err := c.List(context.Background(), ListPaymentsInput{Direction: "sideways"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sideways")
}

func TestPaymentsList_JSON(t *testing.T) {
	setupStdoutCapture(t)
	read := captureStdout(t)
	fake := &FakePaymentService{
		RefreshFunc: func(ctx context.Context, opts ...store.FetchOption) ([]state.Payment, error) {
			return paymentHistory()[:1], nil
		},
	}
	c := PaymentsCmd{payments: fake, denominations: btcUnits{}}

	require.NoError(t, c.List(context.Background(), ListPaymentsInput{Output: "json"}))
	out := read()
	assert.Contains(t, out, `"puid": "p3"`)
	assert.Contains(t, out, `"vendorName": "Cafe"`)
}

func TestPaymentsGet(t *testing.T) {
	setupStdoutCapture(t)
	fake := &FakePaymentService{
		GetFunc: func(ctx context.Context, puid string) (state.Payment, error) {
			return testPayment(puid, api.DirectionOutgoing, "Shop", 0.001, 0.0001, 2000), nil
		},
	}
	c := PaymentsCmd{payments: fake, denominations: btcUnits{}}

	require.NoError(t, c.Get(context.Background(), GetPaymentInput{Puid: "p2"}))
	out := outBuf.String()
	assert.Contains(t, out, "p2")
	assert.Contains(t, out, "Shop")
	assert.Contains(t, out, "BTC 0.0001")
	assert.Contains(t, out, "BTC -0.0011")
}

func TestPaymentsSend_EstimateOnly(t *testing.T) {
	setupStdoutCapture(t)
	fake := &FakePaymentService{
		EstimateFunc: func(ctx context.Context, params api.SendParams) (api.Estimate, error) {
			return api.Estimate{Amount: params.Amount, Fees: api.Fees{Total: 0.0001}, Asset: params.Asset}, nil
		},
		SendFunc: func(ctx context.Context, params api.SendParams) (state.Payment, error) {
			t.Fatal("estimate must not send")
			return state.Payment{}, nil
		},
	}
	c := PaymentsCmd{payments: fake, denominations: btcUnits{}}

	require.NoError(t, c.Send(context.Background(), SendPaymentInput{To: "w1", Amount: 0.001, Asset: "BTC", Estimate: true}))
	out := outBuf.String()
	assert.Contains(t, out, "BTC 0.001")
	assert.Contains(t, out, "BTC 0.0001")
	assert.Contains(t, out, "BTC 0.0011")
}

func TestPaymentsSend_Confirmation(t *testing.T) {
	tests := []struct {
		name    string
		answer  bool
		sent    bool
		message string
	}{
		{name: "declined", answer: false, sent: false, message: "Payment cancelled"},
		{name: "accepted", answer: true, sent: true, message: "Payment p9 sent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupStdoutCapture(t)
			var sent *api.SendParams
			var question string
			fake := &FakePaymentService{
				EstimateFunc: func(ctx context.Context, params api.SendParams) (api.Estimate, error) {
					return api.Estimate{Amount: params.Amount, Fees: api.Fees{Total: 0.0001}, Asset: params.Asset}, nil
				},
				SendFunc: func(ctx context.Context, params api.SendParams) (state.Payment, error) {
					sent = &params
					return testPayment("p9", api.DirectionOutgoing, "Shop", params.Amount, 0.0001, 9000), nil
				},
			}
			c := PaymentsCmd{
				payments:      fake,
				denominations: btcUnits{},
				confirm: func(q string) (bool, error) {
					question = q
					return tt.answer, nil
				},
			}

			require.NoError(t, c.Send(context.Background(), SendPaymentInput{To: "w1", Amount: 0.001, Asset: "BTC"}))
			assert.Equal(t, "Send BTC 0.001 to w1 (fees BTC 0.0001)?", question)
			assert.Equal(t, tt.sent, sent != nil)
			if tt.sent {
				assert.Equal(t, api.SendParams{To: "w1", Amount: 0.001, Asset: "BTC"}, *sent)
			}
			assert.Contains(t, outBuf.String(), tt.message)
		})
	}
}

func TestPaymentsSend_EstimateErrorStopsSend(t *testing.T) {
	fake := &FakePaymentService{
		EstimateFunc: func(ctx context.Context, params api.SendParams) (api.Estimate, error) {
			return api.Estimate{}, errors.New("insufficient funds")
		},
		SendFunc: func(ctx context.Context, params api.SendParams) (state.Payment, error) {
			t.Fatal("send must not run after a failed estimate")
			return state.Payment{}, nil
		},
	}
	c := PaymentsCmd{payments: fake, denominations: btcUnits{}}

	err := c.Send(context.Background(), SendPaymentInput{To: "w1", Amount: 1, Asset: "BTC"})
	require.Error(t, err)
	assert.Equal(t, "insufficient funds", err.Error())
}

func TestPaymentsReceive(t *testing.T) {
	setupStdoutCapture(t)
	var got api.ReceiveParams
	fake := &FakePaymentService{
		ReceiveFunc: func(ctx context.Context, params api.ReceiveParams) (api.Invoice, error) {
			got = params
			return api.Invoice{Wuid: "lnbc1invoice", Type: params.Type, Amount: params.Amount, Asset: params.Asset}, nil
		},
	}
	c := PaymentsCmd{payments: fake, denominations: btcUnits{}}

	require.NoError(t, c.Receive(context.Background(), ReceivePaymentInput{Type: "lightning", Amount: 0.002, Asset: "BTC"}))
	assert.Equal(t, api.ReceiveParams{Type: "lightning", Amount: 0.002, Asset: "BTC"}, got)
	out := outBuf.String()
	assert.Contains(t, out, "lnbc1invoice")
	assert.Contains(t, out, "BTC 0.002")
}
