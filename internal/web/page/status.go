// Package page renders the server's HTML status page
package page

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/a-h/templ"

	"github.com/lanarcade/gamehub/internal/model"
)

// StatusView is everything the status page shows
type StatusView struct {
	Clients     int
	Users       int
	Games       []*model.Session
	Online      map[string]string
	GeneratedAt time.Time
}

// Status renders the status page for v
func Status(v StatusView) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>LAN Games Server</title></head><body>`)
		p.raw(`<h3>LAN Games Server</h3>`)

		p.raw(`<dl id="stats">`)
		p.stat("clients", "Connected clients", v.Clients)
		p.stat("users", "Users", v.Users)
		p.stat("game-count", "Games", len(v.Games))
		p.raw(`</dl>`)

		games(p, v.Games)
		online(p, v.Online)

		p.raw(`<footer>Generated at `)
		p.text(v.GeneratedAt.UTC().Format(time.RFC3339))
		p.raw(`</footer></body></html>`)
		return p.err
	})
}

func games(p *printer, sessions []*model.Session) {
	if len(sessions) == 0 {
		p.raw(`<p id="no-games">No games.</p>`)
		return
	}
	p.raw(`<table id="games"><thead><tr><th>Id</th><th>Game</th><th>Mode</th><th>White</th><th>Black</th><th>Status</th><th>Result</th><th>Moves</th></tr></thead><tbody>`)
	for _, s := range sessions {
		p.raw(`<tr class="game" data-id="`)
		p.text(string(s.ID))
		p.raw(`">`)
		for _, cell := range []string{
			string(s.ID),
			string(s.GameType),
			string(s.Mode),
			s.Players.White,
			s.Players.Black,
			string(s.Status),
			string(s.Result),
			strconv.Itoa(s.Moves),
		} {
			p.raw(`<td>`)
			p.text(cell)
			p.raw(`</td>`)
		}
		p.raw(`</tr>`)
	}
	p.raw(`</tbody></table>`)
}

func online(p *printer, logins map[string]string) {
	names := make([]string, 0, len(logins))
	for login := range logins {
		names = append(names, login)
	}
	sort.Strings(names)

	p.raw(`<ul id="online">`)
	for _, login := range names {
		p.raw(`<li class="user"><span class="login">`)
		p.text(login)
		p.raw(`</span> <span class="path">`)
		p.text(logins[login])
		p.raw(`</span></li>`)
	}
	p.raw(`</ul>`)
}

// printer writes until the first error and remembers it
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *printer) text(s string) {
	p.raw(templ.EscapeString(s))
}

func (p *printer) stat(id, label string, n int) {
	p.raw(fmt.Sprintf(`<dt>%s</dt><dd id="%s">%d</dd>`, templ.EscapeString(label), id, n))
}
