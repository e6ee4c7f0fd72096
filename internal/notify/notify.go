// Package notify shows desktop-style notifications, at most once per change.
package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bitlum/cli/internal/logging"
	"github.com/bitlum/cli/internal/storage"
	"github.com/bitlum/cli/pkg/util"
	"github.com/google/uuid"
	"github.com/pterm/pterm"
)

// Notification types.
const (
	TypeNewPayment = "newPayment"
)

// DefaultIcon is used when a notification has no icon of its own.
const DefaultIcon = "assets/icon48.png"

// Options identify the change a notification reports. A notification of a
// type is shown only when UpdatedAt is newer than the last one shown.
type Options struct {
	UpdatedAt int64  `json:"updatedAt"`
	Puid      string `json:"puid,omitempty"`
}

type record struct {
	Options
	ShownAt int64 `json:"shownAt"`
}

// Notification is what a Sink displays.
type Notification struct {
	ID      string
	Type    string
	Title   string
	Message string
	IconURL string
	// Link is opened when the notification is acted on; may be empty.
	Link    string
	Options Options
}

// Sink displays notifications.
type Sink interface {
	Show(ctx context.Context, n Notification) error
}

// LinkFunc returns the deep link of a notification.
type LinkFunc func(typ string, opts Options) string

// Notifier de-duplicates notifications against storage before handing them
// to a Sink.
type Notifier struct {
	kv     storage.KV
	sink   Sink
	logger *pterm.Logger
	link   LinkFunc
	now    func() time.Time
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger sets the logger.
func WithLogger(l *pterm.Logger) Option {
	return func(n *Notifier) {
		n.logger = l
	}
}

// WithLinks sets how deep links are built.
func WithLinks(fn LinkFunc) Option {
	return func(n *Notifier) {
		n.link = fn
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) {
		n.now = now
	}
}

// New returns a Notifier showing notifications on sink.
func New(kv storage.KV, sink Sink, opts ...Option) *Notifier {
	n := &Notifier{
		kv:     kv,
		sink:   sink,
		logger: logging.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Create shows a notification of typ and returns its ID. It fails with a 400
// coded error when title is empty or when a notification of typ at least as
// recent as opts.UpdatedAt was already shown.
func (n *Notifier) Create(ctx context.Context, typ string, opts Options, title, message, iconURL string) (string, error) {
	if typ == "" || title == "" {
		return "", util.MissingParameter()
	}

	key := storage.NotificationKey(typ)
	if prev, ok := storage.Lookup[record](n.kv, n.logger, key); ok && prev.UpdatedAt >= opts.UpdatedAt {
		return "", util.NewCodedError(util.CodeBadRequest, "Too old notification")
	}

	if iconURL == "" {
		iconURL = DefaultIcon
	}
	note := Notification{
		ID:      uuid.NewString(),
		Type:    typ,
		Title:   title,
		Message: message,
		IconURL: iconURL,
		Options: opts,
	}
	if n.link != nil {
		note.Link = n.link(typ, opts)
	}

	if err := n.sink.Show(ctx, note); err != nil {
		return "", fmt.Errorf("show notification: %w", err)
	}
	storage.Store(n.kv, n.logger, key, record{Options: opts, ShownAt: n.now().UnixMilli()})
	n.logger.Debug("Notification shown", n.logger.Args("type", typ, "id", note.ID))
	return note.ID, nil
}

// PaymentLinks deep-links payment notifications into the wallet UI at uiURL.
func PaymentLinks(uiURL string) LinkFunc {
	base := strings.TrimRight(uiURL, "/")
	return func(typ string, opts Options) string {
		if base == "" || opts.Puid == "" {
			return ""
		}
		return base + "/#/payments/" + url.PathEscape(opts.Puid) + "?nopopup=true"
	}
}
