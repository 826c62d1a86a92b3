package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "login <name>",
		Short: "Register a login, or refresh a saved one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			login := args[0]
			token := ""
			if login == cfg.Login {
				token = cfg.Token
			}

			conn, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()

			token, err = conn.Register(login, token, path)
			if errors.Is(err, ErrWrongToken) {
				return fmt.Errorf("login %q is taken or the saved token expired", login)
			}
			if err != nil {
				return err
			}

			if err := cfg.SaveCredentials(login, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			out := NewOutput(cmd.OutOrStdout(), cfg.Output)
			out.Print(Credentials{Login: login, Token: token})
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "/", "Page to report as the login's location")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Delete the saved login on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := credentials()
			if err != nil {
				return err
			}

			conn, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()

			if err := conn.Logout(creds); err != nil {
				return err
			}
			if err := cfg.ClearCredentials(); err != nil {
				return err
			}

			out := NewOutput(cmd.OutOrStdout(), cfg.Output)
			out.PrintMessage(fmt.Sprintf("Logged out %s", creds.Login))
			return nil
		},
	}
}
