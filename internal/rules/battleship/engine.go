// Package battleship implements the two-grid naval game. Each side fires at
// the other's fleet; a hit keeps the turn and a miss passes it.
package battleship

import (
	"encoding/json"
	"fmt"

	"github.com/lanarcade/gamehub/internal/dependencies/random"
	"github.com/lanarcade/gamehub/internal/model"
	"github.com/lanarcade/gamehub/internal/rules"
)

// shot marks on a fleet's grid
const (
	water uint8 = 0
	miss  uint8 = 1
	hit   uint8 = 2
)

// Fleet is one side's ships and the shots received on its grid
type Fleet struct {
	Ships []Ship `json:"ships"`
	Grid  string `json:"grid"`
	Ready bool   `json:"ready"`
}

// State is the engine's persisted position
type State struct {
	White  Fleet        `json:"white"`
	Black  Fleet        `json:"black"`
	Over   bool         `json:"over"`
	Winner model.Result `json:"winner,omitempty"`
}

func (s *State) fleet(side model.Side) *Fleet {
	if side == model.SideWhite {
		return &s.White
	}
	return &s.Black
}

// Move is either a fleet arrangement or a shot at X,Y
type Move struct {
	Ships []Ship `json:"ships,omitempty"`
	X     *int   `json:"x,omitempty"`
	Y     *int   `json:"y,omitempty"`
}

// Shot builds a shot move
func Shot(x, y int) Move {
	return Move{X: &x, Y: &y}
}

// Engine plays battleship
type Engine struct {
	random random.Random
}

// Ensure Engine implements rules.Engine
var (
	_ rules.Engine       = (*Engine)(nil)
	_ rules.OffTurnMover = (*Engine)(nil)
)

// New creates a battleship engine
func New(rnd random.Random) *Engine {
	return &Engine{random: rnd}
}

func (e *Engine) Game() model.GameType {
	return model.GameBattleship
}

// NewState deals both sides a random fleet. The computer's fleet is final
// from the start; a human confirms theirs by arranging it or by firing.
func (e *Engine) NewState(params rules.NewGame) (json.RawMessage, error) {
	whiteShips, err := RandomFleet(e.random)
	if err != nil {
		return nil, err
	}
	blackShips, err := RandomFleet(e.random)
	if err != nil {
		return nil, err
	}
	blank := rules.PackCells(make([]uint8, GridSize*GridSize))
	return json.Marshal(State{
		White: Fleet{Ships: whiteShips, Grid: blank},
		Black: Fleet{Ships: blackShips, Grid: blank, Ready: params.Mode == model.ModePvE},
	})
}

// AllowsOffTurn lets a side arrange its fleet while the opponent is on turn
func (e *Engine) AllowsOffTurn(state, move json.RawMessage, side model.Side) bool {
	var m Move
	if err := json.Unmarshal(move, &m); err != nil {
		return false
	}
	return len(m.Ships) > 0 && m.X == nil && m.Y == nil
}

func (e *Engine) Apply(state, move json.RawMessage, side model.Side) (rules.Outcome, error) {
	var st State
	if err := rules.DecodeState(state, &st); err != nil {
		return rules.Outcome{}, err
	}
	if st.Over {
		return rules.Rejected(), nil
	}

	var m Move
	if err := rules.DecodeMove(move, &m); err != nil {
		return rules.Outcome{}, err
	}

	if len(m.Ships) > 0 {
		return e.arrange(st, m.Ships, side)
	}
	if m.X == nil || m.Y == nil {
		return rules.Outcome{}, fmt.Errorf("%w: shot needs x and y", model.ErrMalformedMove)
	}
	return e.fire(st, *m.X, *m.Y, side)
}

func (e *Engine) arrange(st State, ships []Ship, side model.Side) (rules.Outcome, error) {
	own := st.fleet(side)
	if own.Ready {
		return rules.Rejected(), nil
	}
	if err := ValidateFleet(ships); err != nil {
		return rules.Rejected(), nil
	}
	own.Ships = make([]Ship, len(ships))
	for i, s := range ships {
		s.Sunk = false
		own.Ships[i] = s
	}
	own.Ready = true

	data, err := json.Marshal(st)
	if err != nil {
		return rules.Outcome{}, err
	}
	return rules.Outcome{State: data, Accepted: true}, nil
}

func (e *Engine) fire(st State, x, y int, side model.Side) (rules.Outcome, error) {
	if x < 0 || y < 0 || x >= GridSize || y >= GridSize {
		return rules.Rejected(), nil
	}
	target := st.fleet(side.Opponent())
	if !target.Ready {
		return rules.Rejected(), nil
	}
	grid, err := rules.UnpackCells(target.Grid, GridSize*GridSize)
	if err != nil {
		return rules.Outcome{}, fmt.Errorf("battleship grid: %w", err)
	}
	cell := y*GridSize + x
	if grid[cell] != water {
		return rules.Rejected(), nil
	}

	// firing confirms the shooter's current arrangement
	st.fleet(side).Ready = true

	out := rules.Outcome{Accepted: true}
	idx := shipAt(target.Ships, cell)
	if idx < 0 {
		grid[cell] = miss
		out.TurnOver = true
	} else {
		grid[cell] = hit
		ship := &target.Ships[idx]
		if isSunk(*ship, grid) {
			ship.Sunk = true
			markAround(*ship, grid)
		}
		if allSunk(target.Ships) {
			st.Over = true
			st.Winner = model.WinnerResult(side)
			out.GameOver = true
			out.Winner = st.Winner
		}
	}
	target.Grid = rules.PackCells(grid)

	out.State, err = json.Marshal(st)
	if err != nil {
		return rules.Outcome{}, err
	}
	return out, nil
}

// ComputerMove finishes a wounded ship when there is one, otherwise fires on
// a checkerboard pattern, falling back to any open cell
func (e *Engine) ComputerMove(state json.RawMessage, side model.Side) (json.RawMessage, error) {
	var st State
	if err := rules.DecodeState(state, &st); err != nil {
		return nil, err
	}
	target := st.fleet(side.Opponent())
	grid, err := rules.UnpackCells(target.Grid, GridSize*GridSize)
	if err != nil {
		return nil, fmt.Errorf("battleship grid: %w", err)
	}

	candidates := huntCells(target.Ships, grid)
	if len(candidates) == 0 {
		for cell, mark := range grid {
			if mark == water && (cell%GridSize+cell/GridSize)%2 == 0 {
				candidates = append(candidates, cell)
			}
		}
	}
	if len(candidates) == 0 {
		for cell, mark := range grid {
			if mark == water {
				candidates = append(candidates, cell)
			}
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no open cell to fire at", model.ErrIllegalMove)
	}
	cell := candidates[e.random.Intn(len(candidates))]
	return json.Marshal(Shot(cell%GridSize, cell/GridSize))
}

func (e *Engine) Verdict(state json.RawMessage) rules.Verdict {
	var st State
	if err := rules.DecodeState(state, &st); err != nil || !st.Over {
		return rules.Verdict{}
	}
	return rules.Verdict{Result: st.Winner, Conclusive: true}
}

// huntCells returns open cells next to hits on ships that are still afloat.
// Only hit marks and announced sinkings are used, never unseen positions.
func huntCells(ships []Ship, grid []uint8) []int {
	var wounded []int
	for cell, mark := range grid {
		if mark != hit {
			continue
		}
		if idx := shipAt(ships, cell); idx >= 0 && !ships[idx].Sunk {
			wounded = append(wounded, cell)
		}
	}
	if len(wounded) == 0 {
		return nil
	}

	open := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < GridSize && y < GridSize && grid[y*GridSize+x] == water
	}

	// two or more hits in a line: extend along it
	if len(wounded) >= 2 {
		first, second := wounded[0], wounded[1]
		var line []int
		if first/GridSize == second/GridSize {
			y := first / GridSize
			lo, hi := GridSize, -1
			for _, c := range wounded {
				if c/GridSize == y {
					lo, hi = min(lo, c%GridSize), max(hi, c%GridSize)
				}
			}
			if open(lo-1, y) {
				line = append(line, y*GridSize+lo-1)
			}
			if open(hi+1, y) {
				line = append(line, y*GridSize+hi+1)
			}
		} else if first%GridSize == second%GridSize {
			x := first % GridSize
			lo, hi := GridSize, -1
			for _, c := range wounded {
				if c%GridSize == x {
					lo, hi = min(lo, c/GridSize), max(hi, c/GridSize)
				}
			}
			if open(x, lo-1) {
				line = append(line, (lo-1)*GridSize+x)
			}
			if open(x, hi+1) {
				line = append(line, (hi+1)*GridSize+x)
			}
		}
		if len(line) > 0 {
			return line
		}
	}

	var around []int
	for _, c := range wounded {
		x, y := c%GridSize, c/GridSize
		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			if open(x+d[0], y+d[1]) {
				around = append(around, (y+d[1])*GridSize+x+d[0])
			}
		}
	}
	return around
}

func shipAt(ships []Ship, cell int) int {
	for i, s := range ships {
		if s.Covers(cell) {
			return i
		}
	}
	return -1
}

func isSunk(s Ship, grid []uint8) bool {
	for _, c := range s.Cells() {
		if grid[c] != hit {
			return false
		}
	}
	return true
}

func allSunk(ships []Ship) bool {
	for _, s := range ships {
		if !s.Sunk {
			return false
		}
	}
	return len(ships) > 0
}

// markAround fills the water bordering a sunk ship with misses
func markAround(s Ship, grid []uint8) {
	for _, c := range s.Cells() {
		x, y := c%GridSize, c/GridSize
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= GridSize || ny >= GridSize {
					continue
				}
				if grid[ny*GridSize+nx] == water {
					grid[ny*GridSize+nx] = miss
				}
			}
		}
	}
}
