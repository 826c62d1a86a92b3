package connect4

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/lanarcade/gamehub/internal/dependencies/mocks"
	"github.com/lanarcade/gamehub/internal/model"
	"github.com/lanarcade/gamehub/internal/rules"
)

type EngineSuite struct {
	suite.Suite
	engine *Engine
	state  json.RawMessage
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.engine = New(mocks.NewMockRandom())
	state, err := s.engine.NewState(rules.NewGame{})
	s.Require().NoError(err)
	s.state = state
}

// play applies columns alternately starting with white and returns the last outcome
func (s *EngineSuite) play(columns ...int) rules.Outcome {
	side := model.SideWhite
	var out rules.Outcome
	for _, col := range columns {
		var err error
		out, err = s.engine.Apply(s.state, s.column(col), side)
		s.Require().NoError(err)
		s.Require().True(out.Accepted, "column %d", col)
		s.state = out.State
		side = side.Opponent()
	}
	return out
}

func (s *EngineSuite) column(col int) json.RawMessage {
	data, _ := json.Marshal(Move{Column: col})
	return data
}

func (s *EngineSuite) TestDropPassesTurn() {
	out := s.play(3)
	s.True(out.TurnOver)
	s.False(out.GameOver)
}

func (s *EngineSuite) TestVerticalFourWins() {
	out := s.play(0, 1, 0, 1, 0, 1, 0)
	s.True(out.GameOver)
	s.False(out.TurnOver)
	s.Equal(model.ResultWhiteWon, out.Winner)

	var st State
	s.Require().NoError(json.Unmarshal(out.State, &st))
	s.Len(st.Line, 4)
}

func (s *EngineSuite) TestDiagonalFourWinsForBlack() {
	// black builds the rising diagonal from the bottom left corner
	out := s.play(1, 0, 2, 1, 3, 6, 2, 2, 3, 6, 3, 3)
	s.True(out.GameOver)
	s.Equal(model.ResultBlackWon, out.Winner)
}

func (s *EngineSuite) TestFullColumnIsRejected() {
	s.play(0, 0, 0, 0, 0, 0)

	out, err := s.engine.Apply(s.state, s.column(0), model.SideWhite)
	s.Require().NoError(err)
	s.False(out.Accepted)
}

func (s *EngineSuite) TestOutOfRangeColumnIsRejected() {
	out, err := s.engine.Apply(s.state, s.column(7), model.SideWhite)
	s.Require().NoError(err)
	s.False(out.Accepted)
}

func (s *EngineSuite) TestFullBoardIsADraw() {
	// column pairs stacked so no four ever lines up
	order := []int{
		0, 1, 0, 1, 0, 1,
		1, 0, 1, 0, 1, 0,
		2, 3, 2, 3, 2, 3,
		3, 2, 3, 2, 3, 2,
		4, 5, 4, 5, 4, 5,
		5, 4, 5, 4, 5, 4,
		6, 6, 6, 6, 6, 6,
	}
	out := s.play(order...)
	s.True(out.GameOver)
	s.Equal(model.ResultDraw, out.Winner)
}

func (s *EngineSuite) TestComputerCompletesOwnFour() {
	s.play(0, 6, 1, 6, 2)

	data, err := s.engine.ComputerMove(s.state, model.SideWhite)
	s.Require().NoError(err)
	var m Move
	s.Require().NoError(json.Unmarshal(data, &m))
	s.Equal(3, m.Column)
}

func (s *EngineSuite) TestComputerBlocksOpponentFour() {
	s.play(0, 6, 1, 6, 2)

	data, err := s.engine.ComputerMove(s.state, model.SideBlack)
	s.Require().NoError(err)
	var m Move
	s.Require().NoError(json.Unmarshal(data, &m))
	s.Equal(3, m.Column)
}

func (s *EngineSuite) TestComputerPrefersCentreOnEmptyBoard() {
	data, err := s.engine.ComputerMove(s.state, model.SideWhite)
	s.Require().NoError(err)
	var m Move
	s.Require().NoError(json.Unmarshal(data, &m))
	s.Equal(3, m.Column)
}

func (s *EngineSuite) TestVerdictOnlyTrustsRecordedEnding() {
	s.play(0, 1, 0, 1, 0, 1)
	s.Equal(rules.Verdict{}, s.engine.Verdict(s.state))

	out, err := s.engine.Apply(s.state, s.column(0), model.SideWhite)
	s.Require().NoError(err)
	v := s.engine.Verdict(out.State)
	s.True(v.Conclusive)
	s.Equal(model.ResultWhiteWon, v.Result)
}
