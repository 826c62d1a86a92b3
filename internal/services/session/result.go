package session

import (
	"encoding/json"
	"log/slog"

	"github.com/lanarcade/gamehub/internal/model"
	"github.com/lanarcade/gamehub/internal/rules"
)

// result decides how a session ends. A position that settled the game
// wins out, then a retirement (one seat vacated after the start), then the
// engine's adjudication hint, and finally a draw. Called with c.mu held.
func (c *Controller) result(session *model.Session) model.Result {
	var verdict rules.Verdict
	if engine, err := c.engine(session); err == nil {
		verdict = c.verdict(engine, session.State)
	}
	return decideResult(session, verdict)
}

func (c *Controller) verdict(engine rules.Engine, state json.RawMessage) (v rules.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("engine panic in verdict",
				slog.String("game", string(engine.Game())),
				slog.Any("panic", r),
			)
			v = rules.Verdict{}
		}
	}()
	return engine.Verdict(state)
}

func decideResult(session *model.Session, verdict rules.Verdict) model.Result {
	if verdict.Conclusive && verdict.Result != model.ResultNone {
		return verdict.Result
	}
	if session.StartedAt != nil {
		white := session.Players.White != ""
		black := session.Players.Black != ""
		switch {
		case white && !black:
			return model.ResultWhiteWon
		case black && !white:
			return model.ResultBlackWon
		}
	}
	if verdict.Result != model.ResultNone {
		return verdict.Result
	}
	return model.ResultDraw
}
