package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bitlum/cli/internal/logging"
	"github.com/bitlum/cli/internal/storage"
	"github.com/bitlum/cli/pkg/util"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type FakeSink struct {
	Shown    []Notification
	ShowFunc func(n Notification) error
}

func (f *FakeSink) Show(_ context.Context, n Notification) error {
	if f.ShowFunc != nil {
		if err := f.ShowFunc(n); err != nil {
			return err
		}
	}
	f.Shown = append(f.Shown, n)
	return nil
}

func TestCreateDeduplicates(t *testing.T) {
	kv := storage.NewMemory()
	sink := &FakeSink{}
	now := time.UnixMilli(5000)
	n := New(kv, sink, WithClock(func() time.Time { return now }), WithLinks(PaymentLinks("https://wallet.example.com/")))

	id, err := n.Create(context.Background(), TypeNewPayment, Options{UpdatedAt: 100, Puid: "p1"}, "New payment", "", "")
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)

	require.Len(t, sink.Shown, 1)
	assert.Equal(t, DefaultIcon, sink.Shown[0].IconURL)
	assert.Equal(t, "https://wallet.example.com/#/payments/p1?nopopup=true", sink.Shown[0].Link)

	for _, updatedAt := range []int64{100, 99} {
		_, err = n.Create(context.Background(), TypeNewPayment, Options{UpdatedAt: updatedAt, Puid: "p1"}, "New payment", "", "")
		require.Error(t, err)
		assert.Equal(t, util.CodeBadRequest, util.ErrorCode(err))
		assert.Contains(t, err.Error(), "Too old notification")
	}
	assert.Len(t, sink.Shown, 1)

	_, err = n.Create(context.Background(), TypeNewPayment, Options{UpdatedAt: 101, Puid: "p2"}, "New payment", "", "custom.png")
	require.NoError(t, err)
	require.Len(t, sink.Shown, 2)
	assert.Equal(t, "custom.png", sink.Shown[1].IconURL)

	rec, ok := storage.Lookup[record](kv, logging.Discard(), storage.NotificationKey(TypeNewPayment))
	require.True(t, ok)
	assert.Equal(t, int64(101), rec.UpdatedAt)
	assert.Equal(t, "p2", rec.Puid)
	assert.Equal(t, int64(5000), rec.ShownAt)
}

func TestCreateRequiresTitle(t *testing.T) {
	sink := &FakeSink{}
	n := New(storage.NewMemory(), sink)

	_, err := n.Create(context.Background(), TypeNewPayment, Options{UpdatedAt: 1}, "", "message", "")
	require.Error(t, err)
	assert.Equal(t, util.CodeBadRequest, util.ErrorCode(err))
	assert.Empty(t, sink.Shown)
}

func TestCreateFailedShowIsNotRecorded(t *testing.T) {
	kv := storage.NewMemory()
	sink := &FakeSink{ShowFunc: func(Notification) error { return errors.New("no display") }}
	n := New(kv, sink)

	_, err := n.Create(context.Background(), TypeNewPayment, Options{UpdatedAt: 1}, "title", "", "")
	require.Error(t, err)
	_, ok := kv.Get(storage.NotificationKey(TypeNewPayment))
	assert.False(t, ok)
}

func TestPaymentLinks(t *testing.T) {
	assert.Equal(t, "", PaymentLinks("")(TypeNewPayment, Options{Puid: "p1"}))
	assert.Equal(t, "", PaymentLinks("https://w")(TypeNewPayment, Options{}))
	assert.Equal(t, "https://w/#/payments/a%2Fb?nopopup=true", PaymentLinks("https://w")(TypeNewPayment, Options{Puid: "a/b"}))
}

func TestTerminalSink(t *testing.T) {
	var out bytes.Buffer
	var opened []string
	sink := NewTerminalSink(&out, true, nil)
	sink.open = func(u string) error {
		opened = append(opened, u)
		return nil
	}

	err := sink.Show(context.Background(), Notification{
		Title:   "New BTC 0.001 payment from Red Fox!",
		Message: "No description",
		Link:    "https://w/#/payments/p1?nopopup=true",
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "New BTC 0.001 payment from Red Fox!")
	assert.Contains(t, out.String(), "No description")
	assert.Equal(t, []string{"https://w/#/payments/p1?nopopup=true"}, opened)

	opened = nil
	sink.openLinks = false
	require.NoError(t, sink.Show(context.Background(), Notification{Title: "t", Link: "https://x"}))
	assert.Empty(t, opened)
}
