package page

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanarcade/gamehub/internal/model"
)

func render(t *testing.T, v StatusView) *goquery.Document {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Status(v).Render(context.Background(), &buf))
	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)
	return doc
}

func TestStatusPageShowsCounts(t *testing.T) {
	doc := render(t, StatusView{
		Clients: 3,
		Users:   2,
		Games: []*model.Session{
			{ID: "abc", GameType: model.GameChess, Mode: model.ModePvP, Players: model.Players{White: "alice", Black: "bob"}, Status: model.StatusOngoing, Moves: 4},
			{ID: "def", GameType: model.GameNardy, Mode: model.ModePvE, Players: model.Players{White: "carol", Black: model.ComputerLogin}, Status: model.StatusFinished, Result: model.ResultBlackWon},
		},
		GeneratedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	})

	assert.Equal(t, "LAN Games Server", doc.Find("h3").Text())
	assert.Equal(t, "3", doc.Find("#clients").Text())
	assert.Equal(t, "2", doc.Find("#users").Text())
	assert.Equal(t, "2", doc.Find("#game-count").Text())
	assert.Equal(t, 2, doc.Find("tr.game").Length())

	row := doc.Find(`tr.game[data-id="def"] td`)
	assert.Equal(t, "nardy", row.Eq(1).Text())
	assert.Equal(t, model.ComputerLogin, row.Eq(4).Text())
	assert.Equal(t, "black won", row.Eq(6).Text())
	assert.Contains(t, doc.Find("footer").Text(), "2024-01-01T12:00:00Z")
}

func TestStatusPageWithoutGames(t *testing.T) {
	doc := render(t, StatusView{})
	assert.Equal(t, 1, doc.Find("#no-games").Length())
	assert.Equal(t, 0, doc.Find("table").Length())
}

func TestStatusPageEscapesLoginsAndSortsOnline(t *testing.T) {
	doc := render(t, StatusView{
		Online: map[string]string{"zed": "/chess", "<b>amy</b>": "/"},
	})

	users := doc.Find("#online li.user .login")
	require.Equal(t, 2, users.Length())
	assert.Equal(t, "<b>amy</b>", users.Eq(0).Text())
	assert.Equal(t, "zed", users.Eq(1).Text())
	assert.Equal(t, 0, doc.Find("#online b").Length())
}
