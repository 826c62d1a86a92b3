package cli

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/lanarcade/gamehub/internal/model"
)

// GameList is the session table as the CLI prints it
type GameList map[model.SessionID]*model.Session

func newGamesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "games",
		Short: "List every session on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()

			out := NewOutput(cmd.OutOrStdout(), cfg.Output)
			out.Print(GameList(conn.Games()))
			return nil
		},
	}
}

func newCreateCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "create <game>",
		Short: "Create a session (chess, battleship, reversi, connect4, nardy)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := map[string]any{"name": args[0], "mode": mode}
			return act(cmd, model.EventCreateGame, fields, func(login string, _, after GameList) bool {
				for _, g := range after {
					if g.GameType == model.GameType(args[0]) && g.Status != model.StatusFinished && g.HasPlayer(login) {
						return true
					}
				}
				return false
			})
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(model.ModePvP), "PvP or PvE")

	return cmd
}

func newJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <game-id>",
		Short: "Take the empty seat of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := model.SessionID(args[0])
			return act(cmd, model.EventJoinGame, map[string]any{"gameId": id}, func(login string, _, after GameList) bool {
				g, ok := after[id]
				return ok && g.HasPlayer(login)
			})
		},
	}
}

func newLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave <game-id>",
		Short: "Leave a session, conceding it if it is running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := model.SessionID(args[0])
			return act(cmd, model.EventLeaveGame, map[string]any{"gameId": id}, func(login string, _, after GameList) bool {
				g, ok := after[id]
				return !ok || !g.HasPlayer(login) || g.Status == model.StatusFinished
			})
		},
	}
}

func newGameOverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gameover <game-id>",
		Short: "End a session now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := model.SessionID(args[0])
			return act(cmd, model.EventGameOver, map[string]any{"gameId": id}, func(_ string, _, after GameList) bool {
				g, ok := after[id]
				return !ok || g.Status == model.StatusFinished
			})
		},
	}
}

func newMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <game-id> <move-json>",
		Short: "Play a move",
		Long: `Play a move in a session. The move is the game's JSON move object,
for example:

  gamectl move AB12CD '{"column":3}'
  gamectl move AB12CD '{"uci":"e2e4"}'
  gamectl move AB12CD '{"x":4,"y":2}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !json.Valid([]byte(args[1])) {
				return errors.New("move must be a JSON value")
			}
			id := model.SessionID(args[0])
			fields := map[string]any{"gameId": id, "move": json.RawMessage(args[1])}
			return act(cmd, model.EventUpdateGame, fields, func(_ string, before, after GameList) bool {
				g, ok := after[id]
				if !ok {
					return true
				}
				prev, seen := before[id]
				return !seen || g.Moves > prev.Moves || g.Status != prev.Status
			})
		},
	}
}

// applied reports whether the table after an event shows it took effect
type applied func(login string, before, after GameList) bool

// act sends one authenticated event and prints the resulting table
func act(cmd *cobra.Command, event model.EventType, fields map[string]any, done applied) error {
	creds, err := credentials()
	if err != nil {
		return err
	}

	conn, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	before := GameList(conn.Games())
	err = conn.Act(event, creds, fields, func(after map[model.SessionID]*model.Session) bool {
		return done(creds.Login, before, after)
	})
	if err != nil {
		return err
	}

	out := NewOutput(cmd.OutOrStdout(), cfg.Output)
	out.Print(GameList(conn.Games()))
	return nil
}
