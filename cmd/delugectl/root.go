package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	deluge "github.com/jfxdev/go-deluge"
)

var (
	// Global flags
	configPath string
	url        string
	password   string
	debug      bool
	timeout    time.Duration

	client *deluge.Client
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "delugectl",
	Short: "delugectl - a command-line client for deluge-web",
	Long: `delugectl sends JSON-RPC calls to a deluge-web endpoint.

Settings come from --config (TOML or YAML) and are overridden by flags.
Results are printed as indented JSON.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			return err
		}

		client, err = deluge.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to create client: %w", err)
		}
		if cfg.Logger != nil {
			effective := client.Config()
			cfg.Logger.Debug().Str("url", effective.URL).Dur("timeout", effective.RequestTimeout).Msg("client ready")
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if client == nil {
			return nil
		}
		return client.Close(context.Background())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file path (TOML or YAML)")
	rootCmd.PersistentFlags().StringVar(&url, "url", "", "deluge-web JSON-RPC URL (default "+deluge.DefaultURL+")")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "deluge-web password")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Per-request timeout (default 30s)")

	rootCmd.AddCommand(addCmd, listCmd, filesCmd, uiCmd, callCmd)
}

// buildConfig loads --config and applies the flags the user set on top.
func buildConfig(cmd *cobra.Command) (deluge.Config, error) {
	var cfg deluge.Config
	if configPath != "" {
		var err error
		cfg, err = deluge.LoadConfig(configPath)
		if err != nil {
			return deluge.Config{}, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.URL = url
	}
	if flags.Changed("password") {
		cfg.Password = password
	}
	if flags.Changed("timeout") {
		cfg.RequestTimeout = timeout
	}
	if flags.Changed("debug") {
		cfg.Debug = debug
	}

	if cfg.Debug {
		log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			Level(zerolog.DebugLevel).
			With().Timestamp().Str("component", "delugectl").Logger()
		cfg.Logger = &log
	}
	return cfg, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
