// Package cmd implements the bitlum command line.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/bitlum/cli/internal/api"
	"github.com/bitlum/cli/internal/config"
	"github.com/bitlum/cli/internal/logging"
	"github.com/bitlum/cli/internal/state"
	"github.com/bitlum/cli/internal/storage"
	"github.com/charmbracelet/fang"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Metadata is the build information injected by main.
type Metadata struct {
	Version string
	Commit  string
	Date    string
}

var metadata = Metadata{Version: "dev", Commit: "none", Date: "unknown"}

type appKey struct{}

// app is everything a command needs, built once per invocation.
type app struct {
	cfg     config.Config
	logger  *pterm.Logger
	storage storage.KV
	client  *api.Client
	state   *state.State
}

var rootCmd = &cobra.Command{
	Use:           "bitlum",
	Short:         "Bitlum wallet in your terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipsApp(cmd) {
			return nil
		}
		a, err := newApp(cmd.Root().PersistentFlags())
		if err != nil {
			return err
		}
		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
		return nil
	},
}

func init() {
	addGlobalFlags(rootCmd.PersistentFlags())
}

func addGlobalFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to the config file (default $BITLUM_CONFIG or ~/.config/bitlum/config.yaml)")
	fs.Bool("debug", false, "Enable debug logging")
	fs.Bool("log-json", false, "Write logs as JSON")
}

// skipsApp reports commands that run without loading config or state.
func skipsApp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "completion", "help":
			return true
		}
	}
	return false
}

func newApp(fs *pflag.FlagSet) (*app, error) {
	debug, _ := fs.GetBool("debug")
	logJSON, _ := fs.GetBool("log-json")
	logger := logging.New(logging.Options{Debug: debug, JSON: logJSON})

	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	path, _ := fs.GetString("config")
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded config", logger.Args("path", path, "api", cfg.BaseURL(), "data_dir", cfg.DataDir))

	kv, err := openStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	client := api.New(cfg.BaseURL(),
		api.WithTimeout(cfg.RequestTimeout),
		api.WithUserAgent("bitlum-cli/"+metadata.Version),
	)
	st := state.New(state.Deps{
		Fetcher: client,
		Storage: kv,
		Logger:  logger,
		Catalog: cfg.Catalog(),
		ChatURL: cfg.LiveChatURL,
	})
	return &app{cfg: cfg, logger: logger, storage: kv, client: client, state: st}, nil
}

// openStorage opens the data directory. With secure storage on, the session
// keys live in the OS keyring instead.
func openStorage(cfg config.Config, logger *pterm.Logger) (storage.KV, error) {
	file, err := storage.OpenFile(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open data directory: %w", err)
	}
	if !cfg.SecureStorage {
		return file, nil
	}
	return storage.NewRouted(file, storage.NewKeyring("bitlum"), logger,
		storage.KeyAuthData, storage.KeyAccountData), nil
}

func getApp(cmd *cobra.Command) *app {
	a, _ := cmd.Context().Value(appKey{}).(*app)
	if a == nil {
		pterm.Error.Println("Client state is not initialised")
		os.Exit(1)
	}
	return a
}

// Execute runs the root command.
func Execute(m Metadata) {
	metadata = m
	if err := fang.Execute(context.Background(), rootCmd,
		fang.WithVersion(m.Version),
		fang.WithCommit(m.Commit),
	); err != nil {
		os.Exit(1)
	}
}
