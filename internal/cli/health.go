package cli

import (
	"github.com/spf13/cobra"
)

// HealthResult is the body of GET /health
type HealthResult struct {
	Status string `json:"status"`
}

// StatusResult is the body of GET /status
type StatusResult struct {
	TotalClients     int `json:"total_clients"`
	TotalUsers       int `json:"total_users"`
	ActiveGames      int `json:"active_games"`
	GamesSizeInBytes int `json:"games_size_in_bytes"`
}

// ClientsResult is the body of GET /clients
type ClientsResult struct {
	TotalClients int               `json:"total_clients"`
	Connections  []ConnectionInfo  `json:"connections"`
	Online       map[string]string `json:"online"`
}

// ConnectionInfo describes one live connection
type ConnectionInfo struct {
	ID        string `json:"id"`
	IP        string `json:"ip"`
	Transport string `json:"transport"`
	Login     string `json:"login"`
	Path      string `json:"path"`
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result HealthResult
			if err := client.Get(cmd.Context(), "/health", &result); err != nil {
				return err
			}

			NewOutput(cmd.OutOrStdout(), cfg.Output).Print(result)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result StatusResult
			if err := client.Get(cmd.Context(), "/status", &result); err != nil {
				return err
			}

			NewOutput(cmd.OutOrStdout(), cfg.Output).Print(result)
			return nil
		},
	}
}

func newClientsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clients",
		Short: "List live connections",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result ClientsResult
			if err := client.Get(cmd.Context(), "/clients", &result); err != nil {
				return err
			}

			NewOutput(cmd.OutOrStdout(), cfg.Output).Print(result)
			return nil
		},
	}
}
