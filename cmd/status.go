package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bitlum/cli/internal/state"
	"github.com/bitlum/cli/pkg/util"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// StatusReport is what `bitlum status` prints.
type StatusReport struct {
	API           string        `json:"api"`
	Reachable     bool          `json:"reachable"`
	Latency       string        `json:"latency,omitempty"`
	DataDir       string        `json:"dataDir"`
	SecureStorage bool          `json:"secureStorage"`
	State         state.Summary `json:"state"`
}

// StatusCmd reports connectivity and the local session.
type StatusCmd struct {
	baseURL       string
	dataDir       string
	secureStorage bool
	summary       func() state.Summary
	http          *http.Client
}

// StatusInput holds input for status.
type StatusInput struct {
	Output string
}

// Run pings the API and prints the report.
func (c StatusCmd) Run(ctx context.Context, in StatusInput) error {
	if err := checkOutput(in.Output); err != nil {
		return err
	}
	report := StatusReport{
		API:           c.baseURL,
		DataDir:       c.dataDir,
		SecureStorage: c.secureStorage,
		State:         c.summary(),
	}
	if took, err := c.ping(ctx); err == nil {
		report.Reachable = true
		report.Latency = took.Round(time.Millisecond).String()
	}

	if in.Output == "json" {
		return util.PrintPrettyJSON(report)
	}
	printStatus(report)
	return nil
}

// ping treats any HTTP response as reachable; only transport errors count.
func (c StatusCmd) ping(ctx context.Context) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return 0, err
	}
	hc := c.http
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return time.Since(start), nil
}

var (
	rgbOK   = pterm.NewRGB(31, 163, 130)
	rgbWarn = pterm.NewRGB(245, 158, 11)
	rgbDown = pterm.NewRGB(239, 68, 68)
)

func coloredDot(rgb pterm.RGB) string {
	return rgb.Sprint("●")
}

func printStatus(r StatusReport) {
	pterm.Println()
	if r.Reachable {
		pterm.Printf("  %s %-16s %s (%s)\n", coloredDot(rgbOK), "Wallet API", r.API, r.Latency)
	} else {
		pterm.Printf("  %s %-16s %s unreachable\n", coloredDot(rgbDown), "Wallet API", r.API)
	}

	switch {
	case !r.State.Authenticated:
		pterm.Printf("  %s %-16s %s\n", coloredDot(rgbWarn), "Session", "signed out")
	case r.State.SessionExpiry != nil && r.State.SessionExpiry.Before(time.Now()):
		pterm.Printf("  %s %-16s expired %s\n", coloredDot(rgbWarn), "Session", util.FormatLocal(*r.State.SessionExpiry))
	default:
		detail := util.OrDash(r.State.Email)
		if r.State.SessionExpiry != nil {
			detail += fmt.Sprintf(", expires %s", util.FormatLocal(*r.State.SessionExpiry))
		}
		pterm.Printf("  %s %-16s %s\n", coloredDot(rgbOK), "Session", detail)
	}

	storage := "data directory"
	if r.SecureStorage {
		storage = "OS keyring"
	}
	pterm.Printf("    %-18s %s\n", "Data", r.DataDir)
	pterm.Printf("    %-18s %s\n", "Session storage", storage)
	pterm.Printf("    %-18s %s\n", "Notifications", onOff(!r.State.Settings.NotificationsDisabled))
	for _, e := range r.State.Errors {
		pterm.Printf("  %s %-16s %s\n", coloredDot(rgbDown), e.Store, e.Error)
	}
	pterm.Println()
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the wallet API and the local session",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringP("output", "o", "", "Output format (json)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	a := getApp(cmd)
	c := StatusCmd{
		baseURL:       a.client.BaseURL(),
		dataDir:       a.cfg.DataDir,
		secureStorage: a.cfg.SecureStorage,
		summary:       a.state.Summary,
	}
	return c.Run(cmd.Context(), StatusInput{Output: output})
}
