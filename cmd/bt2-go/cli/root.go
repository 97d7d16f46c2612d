// Package cli implements the bt2-go command-line interface using Cobra. It
// reads CTF traces on disk, follows LTTng live sessions and decodes CTF
// packet headers through the bt2 bindings.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tracewire/bt2-go/internal/config"
	intlog "github.com/tracewire/bt2-go/internal/log"
	"github.com/tracewire/bt2-go/pkg/bt2"
	"github.com/tracewire/bt2-go/pkg/bt2/logging"
)

var (
	configPath string
	verbose    bool
	jsonOut    bool
	logLevel   string
	logBackend string

	globalCfg *config.Global
	logger    logging.Logger = logging.Nop()
	syncLog                  = func() {}
)

// openLibrary opens the bindings; tests replace it.
var openLibrary = bt2.Open

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bt2-go",
		Short: "Read CTF traces with libbabeltrace2",
		Long: `bt2-go drives libbabeltrace2 through ownership-safe Go bindings.
It prints the events of CTF traces on disk, follows LTTng live sessions
and decodes CTF packet headers.

Settings are read from ~/.bt2-go/config.yaml; BT2GO_LOG_LEVEL overrides
the library logging level.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(*cobra.Command, []string) { syncLog() },
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.bt2-go/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose wrapper logging")
	cmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "log in JSON format")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "libbabeltrace2 logging level (env: BT2GO_LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&logBackend, "log-backend", "", "wrapper logger: slog or zap")

	cmd.AddCommand(newVersionCmd(), newDecodeCmd(), newPacketCmd(), newLiveCmd())
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadGlobal(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logBackend != "" {
		cfg.Log.Backend = logBackend
	}
	if jsonOut {
		cfg.Log.Format = "json"
	}
	if verbose {
		cfg.Log.Verbose = true
	}
	globalCfg = cfg

	l, sync, err := intlog.Init(intlog.Options{
		Backend:    cfg.Log.Backend,
		JSONFormat: cfg.Log.Format == "json",
		Verbose:    cfg.Log.Verbose,
		Stderr:     cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	logger, syncLog = l, sync
	return nil
}

// libraryLevel parses the configured libbabeltrace2 logging level.
func libraryLevel() (bt2.LoggingLevel, error) {
	return bt2.ParseLoggingLevel(globalCfg.LogLevel)
}

func open() (*bt2.Library, bt2.LoggingLevel, error) {
	lvl, err := libraryLevel()
	if err != nil {
		return nil, 0, err
	}
	lib, err := openLibrary(bt2.Config{LogLevel: lvl, Logger: logger})
	if err != nil {
		if errors.Is(err, bt2.ErrNotBuilt) {
			return nil, 0, fmt.Errorf("library unavailable: %w", err)
		}
		return nil, 0, err
	}
	return lib, lvl, nil
}

func closeLibrary(cmd *cobra.Command, lib *bt2.Library) {
	if err := lib.Close(); err != nil {
		cmd.PrintErrf("close error: %v\n", err)
	}
}
