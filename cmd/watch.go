package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/bitlum/cli/internal/analytics"
	"github.com/bitlum/cli/internal/background"
	"github.com/bitlum/cli/internal/notify"
	"github.com/bitlum/cli/internal/poller"
	"github.com/bitlum/cli/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll for payments and notify about incoming ones",
	Long: `Poll the wallet in the background, the way the browser extension does.

Incoming payments are shown as notifications, unread live-chat messages are
reported, and the session is dropped when the API rejects it. With --listen
the state is also served on a local HTTP endpoint:

  GET /healthz   liveness
  GET /state     JSON summary of the client state
  GET /metrics   Prometheus metrics
  GET /ws        websocket feed of store changes`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().String("listen", "", "Serve the local state feed on this address, e.g. 127.0.0.1:7070")
	watchCmd.Flags().Bool("open-links", false, "Open notification links in the browser")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a := getApp(cmd)
	listen := a.cfg.Listen
	if cmd.Flags().Changed("listen") {
		listen, _ = cmd.Flags().GetString("listen")
	}
	openLinks := a.cfg.OpenLinks
	if cmd.Flags().Changed("open-links") {
		openLinks, _ = cmd.Flags().GetBool("open-links")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder := analytics.NewRecorder(a.storage, analytics.LogTracker{Logger: a.logger}, a.logger)
	if change := recorder.RecordVersion(ctx, metadata.Version); change != analytics.VersionUnchanged {
		a.logger.Info("Client version recorded", a.logger.Args("change", change.String(), "version", metadata.Version))
	}

	notifier := notify.New(a.storage,
		notify.NewTerminalSink(os.Stdout, openLinks, a.logger),
		notify.WithLogger(a.logger),
		notify.WithLinks(notify.PaymentLinks(a.cfg.UIURL)),
	)

	bg := background.New(background.Deps{
		State:    a.state,
		Notifier: notifier,
		Recorder: recorder,
		Badge:    &background.LogBadge{Logger: a.logger},
		Logger:   a.logger,
		Interval: a.cfg.PollInterval,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	p, err := poller.New(bg.Tasks(),
		poller.WithLogger(a.logger),
		poller.WithMetrics(poller.NewMetrics(poller.WithRegistry(reg))),
		poller.WithImmediateStart(),
	)
	if err != nil {
		return err
	}

	if !a.state.Accounts.IsAuthenticated() {
		pterm.Warning.Println("Not signed in; payments are polled once you run `bitlum login`.")
	}
	pterm.Info.Printf("Watching every %s, press Ctrl+C to stop\n", a.cfg.PollInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Run(gctx) })
	if listen != "" {
		srv := server.New(a.state,
			server.WithGatherer(reg),
			server.WithLogger(a.logger),
			server.WithAllowedOrigins(a.cfg.AllowedOrigins...),
		)
		defer srv.Close()
		g.Go(func() error { return srv.ListenAndServe(gctx, listen) })
	}

	return g.Wait()
}
