package cmd

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/pterm/pterm"
)

var outBuf bytes.Buffer

// setupStdoutCapture sends pterm output to outBuf, unstyled, for the test.
// The prefix printers and the table printer carry their own writers, so they
// are pointed at outBuf too.
func setupStdoutCapture(t *testing.T) {
	t.Helper()
	outBuf.Reset()
	printers := []*pterm.PrefixPrinter{&pterm.Info, &pterm.Success, &pterm.Warning, &pterm.Error}
	writers := make([]io.Writer, len(printers))
	for i, p := range printers {
		writers[i] = p.Writer
		p.Writer = &outBuf
	}
	tableWriter := pterm.DefaultTable.Writer
	pterm.DefaultTable.Writer = &outBuf

	pterm.SetDefaultOutput(&outBuf)
	pterm.DisableStyling()
	t.Cleanup(func() {
		for i, p := range printers {
			p.Writer = writers[i]
		}
		pterm.DefaultTable.Writer = tableWriter
		pterm.SetDefaultOutput(os.Stdout)
		pterm.EnableStyling()
	})
}

// captureStdout redirects os.Stdout until the returned func is called, which
// returns what was written.
func captureStdout(t *testing.T) func() string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w
	t.Cleanup(func() { os.Stdout = old })
	return func() string {
		w.Close()
		os.Stdout = old
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		return buf.String()
	}
}
