package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/pkg/browser"
	"github.com/pterm/pterm"
)

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#F7931A")).
			Padding(0, 1)
	titleStyle = lipgloss.NewStyle().Bold(true)
	faintStyle = lipgloss.NewStyle().Faint(true)
)

// TerminalSink prints notifications as boxes and, when enabled, opens their
// deep link in the browser.
type TerminalSink struct {
	mu        sync.Mutex
	out       io.Writer
	openLinks bool
	open      func(string) error
	logger    *pterm.Logger
}

// NewTerminalSink writes to out, stdout when nil.
func NewTerminalSink(out io.Writer, openLinks bool, logger *pterm.Logger) *TerminalSink {
	if out == nil {
		out = os.Stdout
	}
	return &TerminalSink{out: out, openLinks: openLinks, open: browser.OpenURL, logger: logger}
}

// Show implements Sink.
func (t *TerminalSink) Show(_ context.Context, n Notification) error {
	body := titleStyle.Render(n.Title)
	if n.Message != "" {
		body += "\n" + n.Message
	}
	if n.Link != "" {
		body += "\n" + faintStyle.Render(n.Link)
	}

	t.mu.Lock()
	_, err := fmt.Fprintln(t.out, boxStyle.Render(body))
	t.mu.Unlock()
	if err != nil {
		return err
	}

	if t.openLinks && n.Link != "" {
		if err := t.open(n.Link); err != nil && t.logger != nil {
			t.logger.Warn("Could not open notification link", t.logger.Args("url", n.Link, "error", err))
		}
	}
	return nil
}
