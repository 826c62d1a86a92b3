package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/lanarcade/gamehub/internal/model"
)

// Output handles formatting output based on the configured format
type Output struct {
	w      io.Writer
	format string
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(w io.Writer, format string) *Output {
	return &Output{w: w, format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		o.printJSON(map[string]string{"message": msg})
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Credentials:
		_, _ = fmt.Fprintf(o.w, "Login: %s\nToken: %s\n", v.Login, v.Token)
	case GameList:
		o.printGames(v)
	case StatusResult:
		o.printStatus(v)
	case ClientsResult:
		o.printClients(v)
	case HealthResult:
		_, _ = fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printGames(games GameList) {
	if len(games) == 0 {
		_, _ = fmt.Fprintln(o.w, "No games")
		return
	}

	ids := make([]model.SessionID, 0, len(games))
	for id := range games {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tGAME\tMODE\tWHITE\tBLACK\tSTATUS\tTURN\tMOVES\tRESULT")
	for _, id := range ids {
		g := games[id]
		result := string(g.Result)
		if result == "" {
			result = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			g.ID, g.GameType, g.Mode, orDash(g.Players.White), orDash(g.Players.Black),
			g.Status, g.Turn, g.Moves, result)
	}
	_ = tw.Flush()
}

func (o *Output) printStatus(s StatusResult) {
	_, _ = fmt.Fprintf(o.w, "Clients: %d\n", s.TotalClients)
	_, _ = fmt.Fprintf(o.w, "Users: %d\n", s.TotalUsers)
	_, _ = fmt.Fprintf(o.w, "Games: %d (%d bytes)\n", s.ActiveGames, s.GamesSizeInBytes)
}

func (o *Output) printClients(c ClientsResult) {
	_, _ = fmt.Fprintf(o.w, "Connections (%d):\n", c.TotalClients)
	for _, conn := range c.Connections {
		who := "anonymous"
		if conn.Login != "" {
			who = conn.Login + " at " + orDash(conn.Path)
		}
		_, _ = fmt.Fprintf(o.w, "  - %s %s via %s: %s\n", conn.ID, conn.IP, conn.Transport, who)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
