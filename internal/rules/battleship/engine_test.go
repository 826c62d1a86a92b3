package battleship

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/lanarcade/gamehub/internal/dependencies/mocks"
	"github.com/lanarcade/gamehub/internal/model"
	"github.com/lanarcade/gamehub/internal/rules"
)

// testFleet is a legal arrangement with known positions
var testFleet = []Ship{
	{X: 0, Y: 0, Length: 5, Dir: Horizontal},
	{X: 0, Y: 2, Length: 3, Dir: Horizontal},
	{X: 4, Y: 2, Length: 3, Dir: Horizontal},
	{X: 0, Y: 4, Length: 2, Dir: Horizontal},
	{X: 3, Y: 4, Length: 2, Dir: Horizontal},
	{X: 9, Y: 9, Length: 1, Dir: Horizontal},
}

type EngineSuite struct {
	suite.Suite
	engine *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.engine = New(mocks.NewMockRandom())
}

func (s *EngineSuite) encode(m Move) json.RawMessage {
	data, err := json.Marshal(m)
	s.Require().NoError(err)
	return data
}

func (s *EngineSuite) decode(state json.RawMessage) State {
	var st State
	s.Require().NoError(json.Unmarshal(state, &st))
	return st
}

func (s *EngineSuite) grid(f Fleet) []uint8 {
	cells, err := rules.UnpackCells(f.Grid, GridSize*GridSize)
	s.Require().NoError(err)
	return cells
}

// pveWithKnownFleet starts a PvE game and gives black the test fleet
func (s *EngineSuite) pveWithKnownFleet() json.RawMessage {
	state, err := s.engine.NewState(rules.NewGame{Mode: model.ModePvE})
	s.Require().NoError(err)
	st := s.decode(state)
	st.Black.Ships = append([]Ship(nil), testFleet...)
	data, err := json.Marshal(st)
	s.Require().NoError(err)
	return data
}

func (s *EngineSuite) fire(state json.RawMessage, x, y int, side model.Side) rules.Outcome {
	out, err := s.engine.Apply(state, s.encode(Shot(x, y)), side)
	s.Require().NoError(err)
	return out
}

func (s *EngineSuite) TestNewStateDealsLegalFleets() {
	state, err := s.engine.NewState(rules.NewGame{Mode: model.ModePvP})
	s.Require().NoError(err)

	st := s.decode(state)
	s.NoError(ValidateFleet(st.White.Ships))
	s.NoError(ValidateFleet(st.Black.Ships))
	s.False(st.White.Ready)
	s.False(st.Black.Ready)
}

func (s *EngineSuite) TestComputerFleetIsReadyInPvE() {
	state, err := s.engine.NewState(rules.NewGame{Mode: model.ModePvE})
	s.Require().NoError(err)

	st := s.decode(state)
	s.True(st.Black.Ready)
	s.False(st.White.Ready)
}

func (s *EngineSuite) TestHitKeepsTurn() {
	out := s.fire(s.pveWithKnownFleet(), 0, 0, model.SideWhite)

	s.True(out.Accepted)
	s.False(out.TurnOver)
	s.Equal(hit, s.grid(s.decode(out.State).Black)[0])
}

func (s *EngineSuite) TestMissPassesTurn() {
	out := s.fire(s.pveWithKnownFleet(), 9, 0, model.SideWhite)

	s.True(out.Accepted)
	s.True(out.TurnOver)
	s.Equal(miss, s.grid(s.decode(out.State).Black)[9])
}

func (s *EngineSuite) TestFiringConfirmsShootersFleet() {
	out := s.fire(s.pveWithKnownFleet(), 9, 0, model.SideWhite)
	s.True(s.decode(out.State).White.Ready)
}

func (s *EngineSuite) TestRepeatedShotIsRejected() {
	out := s.fire(s.pveWithKnownFleet(), 9, 0, model.SideWhite)

	again := s.fire(out.State, 9, 0, model.SideWhite)
	s.False(again.Accepted)
}

func (s *EngineSuite) TestShotAtUnreadyFleetIsRejected() {
	state, _ := s.engine.NewState(rules.NewGame{Mode: model.ModePvP})

	out := s.fire(state, 0, 0, model.SideWhite)
	s.False(out.Accepted)
}

func (s *EngineSuite) TestShotOffGridIsRejected() {
	out := s.fire(s.pveWithKnownFleet(), 10, 0, model.SideWhite)
	s.False(out.Accepted)
}

func (s *EngineSuite) TestShotWithoutCoordinatesIsMalformed() {
	_, err := s.engine.Apply(s.pveWithKnownFleet(), json.RawMessage(`{}`), model.SideWhite)
	s.ErrorIs(err, model.ErrMalformedMove)
}

func (s *EngineSuite) TestSinkingMarksSurroundingWater() {
	out := s.fire(s.pveWithKnownFleet(), 9, 9, model.SideWhite)

	s.True(out.Accepted)
	st := s.decode(out.State)
	grid := s.grid(st.Black)
	s.Equal(hit, grid[99])
	s.Equal(miss, grid[98])
	s.Equal(miss, grid[89])
	s.Equal(miss, grid[88])
	s.True(st.Black.Ships[5].Sunk)
}

func (s *EngineSuite) TestSinkingWholeFleetWins() {
	state := s.pveWithKnownFleet()
	var out rules.Outcome
	for _, ship := range testFleet {
		for _, c := range ship.Cells() {
			out = s.fire(state, c%GridSize, c/GridSize, model.SideWhite)
			s.Require().True(out.Accepted)
			state = out.State
		}
	}

	s.True(out.GameOver)
	s.Equal(model.ResultWhiteWon, out.Winner)
	v := s.engine.Verdict(state)
	s.True(v.Conclusive)
	s.Equal(model.ResultWhiteWon, v.Result)
}

func (s *EngineSuite) TestArrangeReplacesFleetAndMarksReady() {
	state, _ := s.engine.NewState(rules.NewGame{Mode: model.ModePvP})
	move := s.encode(Move{Ships: testFleet})

	s.True(s.engine.AllowsOffTurn(state, move, model.SideBlack))
	out, err := s.engine.Apply(state, move, model.SideBlack)
	s.Require().NoError(err)

	s.True(out.Accepted)
	s.False(out.TurnOver)
	st := s.decode(out.State)
	s.True(st.Black.Ready)
	s.Equal(testFleet, st.Black.Ships)
}

func (s *EngineSuite) TestArrangeAfterReadyIsRejected() {
	state := s.pveWithKnownFleet()

	out, err := s.engine.Apply(state, s.encode(Move{Ships: testFleet}), model.SideBlack)
	s.Require().NoError(err)
	s.False(out.Accepted)
}

func (s *EngineSuite) TestTouchingShipsAreRejected() {
	fleet := append([]Ship(nil), testFleet...)
	fleet[1] = Ship{X: 0, Y: 1, Length: 3, Dir: Horizontal}

	s.ErrorIs(ValidateFleet(fleet), errTouching)
}

func (s *EngineSuite) TestWrongFleetIsRejected() {
	s.ErrorIs(ValidateFleet(testFleet[:5]), errWrongFleet)
}

func (s *EngineSuite) TestShotIsNotAnOffTurnMove() {
	s.False(s.engine.AllowsOffTurn(nil, s.encode(Shot(1, 1)), model.SideWhite))
}

func (s *EngineSuite) TestComputerFinishesWoundedShip() {
	state := s.pveWithKnownFleet()
	// black's view: white fleet is the test fleet, and it has been hit at 1,0 and 2,0
	st := s.decode(state)
	st.White.Ships = append([]Ship(nil), testFleet...)
	st.White.Ready = true
	grid := make([]uint8, GridSize*GridSize)
	grid[1], grid[2] = hit, hit
	st.White.Grid = rules.PackCells(grid)
	state, _ = json.Marshal(st)

	data, err := s.engine.ComputerMove(state, model.SideBlack)
	s.Require().NoError(err)

	var m Move
	s.Require().NoError(json.Unmarshal(data, &m))
	s.Require().NotNil(m.X)
	s.Contains([][2]int{{0, 0}, {3, 0}}, [2]int{*m.X, *m.Y})
}

func (s *EngineSuite) TestComputerNeverRepeatsAShot() {
	state := s.pveWithKnownFleet()
	st := s.decode(state)
	st.White.Ready = true
	state, _ = json.Marshal(st)

	seen := map[[2]int]bool{}
	for i := 0; i < 30; i++ {
		data, err := s.engine.ComputerMove(state, model.SideBlack)
		s.Require().NoError(err)
		var m Move
		s.Require().NoError(json.Unmarshal(data, &m))
		key := [2]int{*m.X, *m.Y}
		s.False(seen[key], "repeated shot %v", key)
		seen[key] = true

		out, err := s.engine.Apply(state, data, model.SideBlack)
		s.Require().NoError(err)
		s.Require().True(out.Accepted)
		if out.GameOver {
			return
		}
		state = out.State
	}
}

func (s *EngineSuite) TestRandomFleetFallsBackWhenRandomnessIsStuck() {
	rnd := mocks.NewMockRandom()
	rnd.QueueIntn(make([]int, 2000)...)

	ships, err := RandomFleet(rnd)
	s.Require().NoError(err)
	s.NoError(ValidateFleet(ships))
}
