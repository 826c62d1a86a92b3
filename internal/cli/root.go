package cli

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg    *Config
	client *Client
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "gamectl",
		Short: "CLI client for the LAN game server",
		Long: `gamectl talks to a LAN game server over its realtime channel.

It can register a login, create, join and leave sessions, play moves,
read the server's status tables and follow the live event stream.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load credentials from file if not provided via flag/env
			if err := cfg.LoadCredentials(); err != nil {
				return err
			}

			client = NewClient(cfg.ServerURL)
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Server URL (env: GAMECTL_SERVER)")
	rootCmd.PersistentFlags().StringVar(&cfg.Login, "login", cfg.Login, "Login to act as (env: GAMECTL_LOGIN)")
	rootCmd.PersistentFlags().StringVar(&cfg.Token, "token", cfg.Token, "Login token (env: GAMECTL_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&cfg.TokenFile, "token-file", cfg.TokenFile, "Token file path (env: GAMECTL_TOKEN_FILE)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")
	rootCmd.PersistentFlags().DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "How long to wait for the server to answer")

	// Add subcommands
	rootCmd.AddCommand(newHealthCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newClientsCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newGamesCmd())
	rootCmd.AddCommand(newCreateCmd())
	rootCmd.AddCommand(newJoinCmd())
	rootCmd.AddCommand(newLeaveCmd())
	rootCmd.AddCommand(newMoveCmd())
	rootCmd.AddCommand(newGameOverCmd())
	rootCmd.AddCommand(newEventsCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// connect opens a realtime connection to the configured server
func connect(ctx context.Context) (*Conn, error) {
	url, err := client.URL("/ws", true)
	if err != nil {
		return nil, err
	}
	return Dial(ctx, url, cfg.Timeout)
}

// credentials returns the saved login and token
func credentials() (Credentials, error) {
	if cfg.Login == "" || cfg.Token == "" {
		return Credentials{}, errors.New("not logged in, run: gamectl login <name>")
	}
	return Credentials{Login: cfg.Login, Token: cfg.Token}, nil
}
