package commands

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nbermudezs/otfcs/internal/app"
	"github.com/nbermudezs/otfcs/internal/client"
	"github.com/nbermudezs/otfcs/internal/config"
	"github.com/nbermudezs/otfcs/internal/logging"
	"github.com/nbermudezs/otfcs/internal/realtime"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type options struct {
	configPath string
	name       string
	backend    string
	realtime   string
	autoGrant  bool
	logFile    string
	logLevel   string
}

func Execute() error {
	var opts options
	root := &cobra.Command{
		Use:           "otfcs",
		Short:         "Request live help from a customer service representative",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	f := root.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML or TOML config file")
	f.StringVarP(&opts.name, "name", "n", "", "display name shown to the representative")
	f.StringVar(&opts.backend, "backend", "", "help desk base URL (e.g. http://127.0.0.1:8080)")
	f.StringVar(&opts.realtime, "realtime", "", "realtime relay URL (e.g. ws://127.0.0.1:8080/rt)")
	f.BoolVar(&opts.autoGrant, "auto-grant", false, "allow camera and microphone access without asking")
	f.StringVar(&opts.logFile, "log-file", "", "append logs to this file")
	f.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func run(cmd *cobra.Command, opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg, opts)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("otfcs needs an interactive terminal")
	}

	logger, closer, err := logging.File("otfcs", cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer closer.Close()

	perm := realtime.NewPermission(cfg.Realtime.AutoGrant)
	m := app.New(app.Options{
		CustomerName:  cfg.Customer.Name,
		Backend:       client.NewHTTPClient(cfg.Backend.URL, cfg.Backend.Timeout),
		Transport:     realtime.NewWSTransport(cfg.Realtime.URL, perm, logger),
		Permission:    perm,
		Timeout:       cfg.Backend.Timeout,
		UnloadTimeout: cfg.Backend.UnloadTimeout,
		Logger:        logger,
	})

	logger.Info().Str("backend", cfg.Backend.URL).Str("realtime", cfg.Realtime.URL).Msg("starting")
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	// Covers exits that bypass the quit keys, such as SIGTERM.
	if fm, ok := final.(app.Model); ok {
		fm.Unload()
	}
	return err
}

// applyFlags overrides config values with the flags that were set.
func applyFlags(cmd *cobra.Command, cfg *config.Config, opts options) {
	f := cmd.Flags()
	if f.Changed("name") {
		cfg.Customer.Name = opts.name
	}
	if f.Changed("backend") {
		cfg.Backend.URL = opts.backend
	}
	if f.Changed("realtime") {
		cfg.Realtime.URL = opts.realtime
	}
	if f.Changed("auto-grant") {
		cfg.Realtime.AutoGrant = opts.autoGrant
	}
	if f.Changed("log-file") {
		cfg.Log.File = opts.logFile
	}
	if f.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
}
