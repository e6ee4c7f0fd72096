// Package analytics records growth milestones and install/update markers.
package analytics

import (
	"context"
	"strconv"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/bitlum/cli/internal/api"
	"github.com/bitlum/cli/internal/logging"
	"github.com/bitlum/cli/internal/storage"
	"github.com/pterm/pterm"
	"github.com/samber/lo"
)

// Event actions.
const (
	ActionFirstPaymentMade = "firstPaymentMade"
	ActionFirstDepositMade = "firstDepositMade"
	ActionInstall          = "install"
	ActionUpdate           = "update"
)

const category = "extension"

// Payments older than this never count as a first payment or deposit.
var milestoneCutoff = time.Date(2019, time.February, 28, 0, 0, 0, 0, time.UTC)

// firstPaymentsWindow is how many payments of a direction an account may
// have for its latest one to still count as the first.
const firstPaymentsWindow = 3

// housePaymentVendor is the vendor of the service's own promotional deposits.
const housePaymentVendor = "bitlum"

// Event is one analytics event.
type Event struct {
	Category string `json:"category"`
	Action   string `json:"action"`
	Label    string `json:"label,omitempty"`
}

// Tracker receives analytics events.
type Tracker interface {
	Track(ctx context.Context, e Event)
}

// LogTracker writes events to a structured log.
type LogTracker struct {
	Logger *pterm.Logger
}

// Track implements Tracker.
func (t LogTracker) Track(_ context.Context, e Event) {
	t.Logger.Info("Analytics event", t.Logger.Args("category", e.Category, "action", e.Action, "label", e.Label))
}

// Recorder persists one-time markers and reports them to a Tracker.
type Recorder struct {
	kv      storage.KV
	tracker Tracker
	logger  *pterm.Logger
	now     func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// NewRecorder returns a Recorder storing markers in kv.
func NewRecorder(kv storage.KV, tracker Tracker, logger *pterm.Logger, opts ...RecorderOption) *Recorder {
	if logger == nil {
		logger = logging.Discard()
	}
	r := &Recorder{kv: kv, tracker: tracker, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Observe records the first-payment and first-deposit milestones once each.
// A milestone counts when the account has at most three payments of that
// direction and the latest was made after the cutoff. Deposits from the house
// vendor do not count.
func (r *Recorder) Observe(ctx context.Context, payments []api.Payment) {
	r.observe(ctx, payments, api.DirectionOutgoing, storage.KeyFirstPaymentMadeAt, ActionFirstPaymentMade, nil)
	r.observe(ctx, payments, api.DirectionIncoming, storage.KeyFirstDepositMadeAt, ActionFirstDepositMade, func(p api.Payment) bool {
		return p.Vuid != housePaymentVendor
	})
}

func (r *Recorder) observe(ctx context.Context, payments []api.Payment, direction, key, action string, accept func(api.Payment) bool) {
	if _, seen := r.kv.Get(key); seen {
		return
	}
	ofDirection := lo.Filter(payments, func(p api.Payment, _ int) bool { return p.Direction == direction })
	if len(ofDirection) == 0 || len(ofDirection) > firstPaymentsWindow {
		return
	}
	latest := lo.MaxBy(ofDirection, func(a, b api.Payment) bool { return a.CreatedAt > b.CreatedAt })
	if latest.CreatedAt < milestoneCutoff.UnixMilli() {
		return
	}
	if accept != nil && !accept(latest) {
		return
	}
	r.mark(key)
	r.tracker.Track(ctx, Event{Category: category, Action: action})
}

// VersionChange is what RecordVersion found.
type VersionChange int

const (
	VersionUnchanged VersionChange = iota
	VersionInstalled
	VersionUpdated
)

func (c VersionChange) String() string {
	switch c {
	case VersionInstalled:
		return "installed"
	case VersionUpdated:
		return "updated"
	default:
		return "unchanged"
	}
}

// RecordVersion compares version with the stored markers. A fresh profile
// records an install, a different version an update.
func (r *Recorder) RecordVersion(ctx context.Context, version string) VersionChange {
	installed, ok := r.kv.Get(storage.KeyInstalledVersion)
	if !ok || installed == "" {
		r.mark(storage.KeyInstalledAt)
		r.mark(storage.KeyUpdatedAt)
		r.set(storage.KeyInstalledVersion, version)
		r.set(storage.KeyUpdatedVersion, version)
		r.tracker.Track(ctx, Event{Category: category, Action: ActionInstall, Label: version})
		r.logger.Debug("Install recorded", r.logger.Args("version", version))
		return VersionInstalled
	}

	updated, _ := r.kv.Get(storage.KeyUpdatedVersion)
	if updated == version {
		return VersionUnchanged
	}
	r.mark(storage.KeyUpdatedAt)
	r.set(storage.KeyUpdatedVersion, version)
	r.tracker.Track(ctx, Event{Category: category, Action: ActionUpdate, Label: version})
	r.logger.Debug("Update recorded", r.logger.Args("from", updated, "to", version, "direction", compareVersions(updated, version)))
	return VersionUpdated
}

// compareVersions describes the move from one version to another.
func compareVersions(from, to string) string {
	a, errA := semver.NewVersion(from)
	b, errB := semver.NewVersion(to)
	if errA != nil || errB != nil {
		return "unknown"
	}
	switch b.Compare(a) {
	case 1:
		return "upgrade"
	case -1:
		return "downgrade"
	default:
		return "same"
	}
}

func (r *Recorder) mark(key string) {
	r.set(key, strconv.FormatInt(r.now().UnixMilli(), 10))
}

func (r *Recorder) set(key, value string) {
	if err := r.kv.Set(key, value); err != nil {
		r.logger.Error("Unable to save to local storage", r.logger.Args("key", key, "error", err))
	}
}
