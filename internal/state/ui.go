package state

import (
	"context"
	"net/http"

	"github.com/bitlum/cli/internal/api"
	"github.com/bitlum/cli/internal/store"
)

// UI holds state that only drives presentation.
type UI struct {
	// Chat is the live-chat unread counter.
	Chat *store.Store[api.ChatStatus]

	chatURL string
}

func newUI(deps Deps) *UI {
	return &UI{
		chatURL: deps.ChatURL,
		Chat: store.New(store.Config[api.ChatStatus]{
			Name:    "ui.chat",
			Fetcher: deps.Fetcher,
			Fetch:   store.FetchOptions{Method: http.MethodGet, Path: deps.ChatURL},
			Policy:  store.SkipIfBusy,
			Logger:  deps.Logger,
			Now:     deps.Now,
		}),
	}
}

// ChatEnabled reports whether a live-chat endpoint is configured.
func (u *UI) ChatEnabled() bool {
	return u.chatURL != ""
}

// RefreshChat fetches the unread counter.
func (u *UI) RefreshChat(ctx context.Context) (int, error) {
	status, err := u.Chat.Run(ctx, store.WithLocalLifetime(0))
	return status.Unread, err
}
