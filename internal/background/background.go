// Package background keeps the state fresh while the client is watching:
// payments, the account, and the live-chat counter are polled, and incoming
// payments raise notifications.
package background

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/bitlum/cli/internal/analytics"
	"github.com/bitlum/cli/internal/api"
	"github.com/bitlum/cli/internal/denomination"
	"github.com/bitlum/cli/internal/logging"
	"github.com/bitlum/cli/internal/notify"
	"github.com/bitlum/cli/internal/poller"
	"github.com/bitlum/cli/internal/state"
	"github.com/bitlum/cli/internal/store"
	"github.com/bitlum/cli/pkg/util"
	"github.com/pterm/pterm"
	"github.com/samber/lo"
)

// DefaultInterval is how often every task runs.
const DefaultInterval = 3 * time.Second

// Task names.
const (
	TaskPayments = "payments"
	TaskAccounts = "accounts"
	TaskChat     = "chat"
	TaskSession  = "session"
)

// Badge shows a short counter next to the client's name.
type Badge interface {
	SetBadge(text string)
}

// Deps are the collaborators of a Background.
type Deps struct {
	State    *state.State
	Notifier *notify.Notifier
	Recorder *analytics.Recorder
	Badge    Badge
	Logger   *pterm.Logger
	// Interval defaults to DefaultInterval.
	Interval time.Duration
}

// Background owns the recurring tasks.
type Background struct {
	state    *state.State
	notifier *notify.Notifier
	recorder *analytics.Recorder
	badge    Badge
	logger   *pterm.Logger
	interval time.Duration
}

// New returns a Background. State and Notifier are required.
func New(deps Deps) *Background {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	return &Background{
		state:    deps.State,
		notifier: deps.Notifier,
		recorder: deps.Recorder,
		badge:    deps.Badge,
		logger:   deps.Logger,
		interval: deps.Interval,
	}
}

// Tasks returns the poller tasks. The session task always runs, payments and
// accounts only while signed in, chat only when a chat endpoint is configured.
func (b *Background) Tasks() []poller.Task {
	return []poller.Task{
		{Name: TaskSession, Interval: b.interval, Run: b.SessionTick},
		{Name: TaskPayments, Interval: b.interval, Enabled: b.state.Accounts.IsAuthenticated, Run: b.PaymentsTick},
		{Name: TaskAccounts, Interval: b.interval, Enabled: b.state.Accounts.IsAuthenticated, Run: b.AccountsTick},
		{Name: TaskChat, Interval: b.interval, Enabled: b.state.UI.ChatEnabled, Run: b.ChatTick},
	}
}

// PaymentsTick refreshes the payment history, records milestones, and
// notifies about the latest incoming payment.
func (b *Background) PaymentsTick(ctx context.Context) error {
	list, err := b.state.Payments.Refresh(ctx, store.WithLocalLifetime(0))
	if err != nil {
		if errors.Is(err, store.ErrInFlight) || errors.Is(err, store.ErrSuperseded) || errors.Is(err, state.ErrNotAuthenticated) {
			return nil
		}
		return err
	}

	vuids := lo.Uniq(lo.FilterMap(list, func(p state.Payment, _ int) (string, bool) {
		return p.Vuid, p.Vuid != ""
	}))
	if err := b.state.Vendors.Resolve(ctx, vuids); err != nil {
		return err
	}

	if b.recorder != nil {
		b.recorder.Observe(ctx, lo.Map(list, func(p state.Payment, _ int) api.Payment { return p.Payment }))
	}

	latest, ok := b.state.Payments.Latest(api.DirectionIncoming)
	if !ok || !b.state.Settings.NotificationsEnabled() {
		return nil
	}
	return b.notifyPayment(ctx, latest)
}

func (b *Background) notifyPayment(ctx context.Context, p state.Payment) error {
	total := p.Asset
	if f, ok := p.Formatted(state.DenominationMain, denomination.FormatOptions{OmitDirection: true}); ok {
		total = f.Total
	}
	message := p.Description
	if message == "" {
		message = "No description"
	}
	updatedAt := p.UpdatedAt
	if updatedAt == 0 {
		updatedAt = p.CreatedAt
	}

	_, err := b.notifier.Create(ctx, notify.TypeNewPayment,
		notify.Options{UpdatedAt: updatedAt, Puid: p.Puid},
		"New "+total+" payment from "+p.VendorName+"!",
		message,
		p.VendorIcon,
	)
	if util.ErrorCode(err) == util.CodeBadRequest {
		b.logger.Debug("Payment notification not shown", b.logger.Args("puid", p.Puid, "reason", err.Error()))
		return nil
	}
	return err
}

// SessionTick picks up logins and logouts made by other bitlum processes
// sharing the data directory.
func (b *Background) SessionTick(ctx context.Context) error {
	return b.state.Accounts.Sync()
}

// AccountsTick refreshes the account profile. A 401 signs out.
func (b *Background) AccountsTick(ctx context.Context) error {
	_, err := b.state.Accounts.Refresh(ctx, store.WithLocalLifetime(0))
	if errors.Is(err, state.ErrNotAuthenticated) || errors.Is(err, store.ErrSuperseded) {
		return nil
	}
	return err
}

// ChatTick refreshes the live-chat unread counter and updates the badge.
func (b *Background) ChatTick(ctx context.Context) error {
	unread, err := b.state.UI.RefreshChat(ctx)
	if err != nil {
		if errors.Is(err, store.ErrInFlight) {
			return nil
		}
		return err
	}
	if b.badge == nil {
		return nil
	}
	if unread >= 1 {
		b.badge.SetBadge(strconv.Itoa(unread))
	} else {
		b.badge.SetBadge("")
	}
	return nil
}

// LogBadge reports badge changes to a logger.
type LogBadge struct {
	Logger *pterm.Logger

	mu   sync.Mutex
	text string
}

// SetBadge implements Badge.
func (l *LogBadge) SetBadge(text string) {
	l.mu.Lock()
	changed := l.text != text
	l.text = text
	l.mu.Unlock()

	if !changed {
		return
	}
	if text == "" {
		l.Logger.Info("No unread chat messages")
		return
	}
	l.Logger.Info("Unread chat messages", l.Logger.Args("count", text))
}

// Text returns the current badge text.
func (l *LogBadge) Text() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.text
}
