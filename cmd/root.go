// Package cmd contains all Cobra commands for querybot.
//
// Design decision: the root command launches the TUI directly. The
// subcommands drive the same conversation engine without a terminal UI,
// for scripting and quick lookups.
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/DachengChen/querybot/api"
	"github.com/DachengChen/querybot/applog"
	"github.com/DachengChen/querybot/config"
	"github.com/DachengChen/querybot/conversation"
	"github.com/DachengChen/querybot/tui"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// Global flags; empty means "use the config file".
var (
	configPath string
	apiURL     string
	dbURI      string
	modeFlag   string
	logLevel   string

	appCfg *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "querybot",
	Short: "Ask your database and your CSV files questions from the terminal",
	Long: `querybot is a terminal client for a natural-language analysis backend:
  • SQL Chat: ask questions, get the generated SQL and its rows
  • Data Analysis: upload a CSV, get code, output and plots
  • Session history kept by the backend, browsable in a sidebar
  • Optional SSH tunnel to reach a remote backend

Run 'querybot' to start the TUI.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		api.CloseExchangeLog()
		applog.Close()
	},
	// Running with no subcommand launches the TUI.
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend(cmd.Context(), appCfg)
		if err != nil {
			return err
		}
		defer b.Close()

		mode, _ := conversation.ParseMode(appCfg.DefaultMode)
		return tui.Start(tui.Options{
			Engine:     conversation.New(b.client, conversation.Options{Mode: mode}),
			Schema:     schemaLoader(appCfg, b.client),
			Backend:    appCfg.Backend.URL,
			Plots:      b.client,
			Config:     appCfg,
			ConfigPath: configPath,
		})
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&configPath, "config", "", "config file (default ~/.querybot/config.json)")
	f.StringVar(&apiURL, "api-url", "", "backend base URL (overrides config and QUERYBOT_API_URL)")
	f.StringVar(&dbURI, "db-uri", "", "database URI for the schema view")
	f.StringVar(&modeFlag, "mode", "", "start mode: chat or eda")
	f.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// setup loads the config, applies flag overrides and opens the logs.
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadAppConfig(configPath)
	if err != nil {
		return err
	}
	if apiURL != "" {
		cfg.Backend.URL = apiURL
	}
	if dbURI != "" {
		cfg.Schema.DBURI = dbURI
	}
	if modeFlag != "" {
		cfg.DefaultMode = modeFlag
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if _, err := conversation.ParseMode(cfg.DefaultMode); err != nil {
		return err
	}

	config.SetUI(cfg.UI)
	applog.SetLevel(applog.ParseLevel(cfg.LogLevel))
	if dir, err := config.Dir(); err == nil {
		logs := filepath.Join(dir, "logs")
		if err := applog.Open(logs); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: app log disabled: %v\n", err)
		}
		if err := api.OpenExchangeLog(logs); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: api log disabled: %v\n", err)
		}
	}
	applog.Info("querybot %s: %s (backend %s)", version, cmd.CommandPath(), cfg.Backend.URL)

	appCfg = cfg
	return nil
}
