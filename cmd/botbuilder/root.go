package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-bot-builder/internal/config"
	"github.com/tbourn/go-bot-builder/internal/sysutil"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

var (
	envFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "botbuilder",
	Short: "No-code chatbot builder backend",
	Long: `botbuilder serves the dashboard API, the public widget endpoints and
the embed script for OpenAI-backed chat widgets.

Configuration is read from the environment; a .env file is loaded first
when present.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")

	rootCmd.AddCommand(serveCmd, migrateCmd, widgetCmd, promptCmd, versionCmd)
}

// loadConfig loads the dotenv file (missing files are fine), reads the
// configuration and installs the global logger.
func loadConfig() (config.Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return config.Config{}, err
			}
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	sysutil.SetupLogging(sysutil.FirstNonEmpty(logLevel, cfg.LogLevel), cfg.LogPretty, os.Stderr)
	return cfg, nil
}
