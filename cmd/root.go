package cmd

import (
	"fmt"
	"log/slog"
	"maps"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/meetsched/internal/config"
	"github.com/teemow/meetsched/internal/logging"
)

// rootCmd represents the base command for the meetsched application
var rootCmd = &cobra.Command{
	Use:   "meetsched",
	Short: "Finds free time and books meetings across Google calendars",
	Long: `meetsched finds time slots where you and your attendees are free, books
the meeting in Google Calendar and mirrors it into a local calendar.

It runs as an MCP (Model Context Protocol) server for AI assistants. Google
accounts are added and managed with the accounts command.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

var (
	configFile string
	debugMode  bool
)

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "meetsched version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: <user config dir>/meetsched/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAccountsCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// loadConfig reads .env, the config file and the environment, with the flags
// in flagKeys (flag name to config key) taking precedence. It installs the
// resulting logger as the slog default.
func loadConfig(cmd *cobra.Command, flagKeys map[string]string) (*config.Config, *slog.Logger, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, nil, err
	}

	v := config.New()
	keys := map[string]string{"debug": "debug"}
	maps.Copy(keys, flagKeys)
	if err := config.BindFlags(v, cmd.Flags(), keys); err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(os.Stderr, cfg.Debug)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
