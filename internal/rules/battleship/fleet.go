package battleship

import (
	"errors"
	"fmt"
	"sort"

	"github.com/lanarcade/gamehub/internal/dependencies/random"
)

// GridSize is the width and height of each fleet's grid
const GridSize = 10

// FleetLengths is the set of ships every side must place
var FleetLengths = []int{5, 3, 3, 2, 2, 1}

// FleetCells is the number of cells the full fleet covers
const FleetCells = 16

const (
	Horizontal = 0
	Vertical   = 1
)

const placementAttempts = 200

var (
	errWrongFleet = errors.New("fleet does not match the required ship lengths")
	errOffGrid    = errors.New("ship leaves the grid")
	errTouching   = errors.New("ships touch or overlap")
)

// Ship is one vessel. X,Y is its top-left cell.
type Ship struct {
	X      int  `json:"x"`
	Y      int  `json:"y"`
	Length int  `json:"len"`
	Dir    int  `json:"dir"`
	Sunk   bool `json:"sunk,omitempty"`
}

// Cells returns the grid indices the ship covers
func (s Ship) Cells() []int {
	cells := make([]int, 0, s.Length)
	for i := 0; i < s.Length; i++ {
		x, y := s.X, s.Y
		if s.Dir == Vertical {
			y += i
		} else {
			x += i
		}
		cells = append(cells, y*GridSize+x)
	}
	return cells
}

// Covers reports whether the ship occupies cell
func (s Ship) Covers(cell int) bool {
	for _, c := range s.Cells() {
		if c == cell {
			return true
		}
	}
	return false
}

func (s Ship) fits() bool {
	if s.Length <= 0 || s.X < 0 || s.Y < 0 {
		return false
	}
	if s.Dir == Vertical {
		return s.X < GridSize && s.Y+s.Length <= GridSize
	}
	return s.Dir == Horizontal && s.Y < GridSize && s.X+s.Length <= GridSize
}

// ValidateFleet checks lengths, bounds and spacing of a player-supplied fleet
func ValidateFleet(ships []Ship) error {
	lengths := make([]int, 0, len(ships))
	for _, s := range ships {
		lengths = append(lengths, s.Length)
	}
	want := append([]int(nil), FleetLengths...)
	sort.Ints(lengths)
	sort.Ints(want)
	if len(lengths) != len(want) {
		return errWrongFleet
	}
	for i := range want {
		if lengths[i] != want[i] {
			return errWrongFleet
		}
	}

	var occupied [GridSize * GridSize]bool
	for _, s := range ships {
		if !s.fits() {
			return errOffGrid
		}
		if touches(&occupied, s) {
			return errTouching
		}
		for _, c := range s.Cells() {
			occupied[c] = true
		}
	}
	return nil
}

// touches reports whether s overlaps or borders an occupied cell
func touches(occupied *[GridSize * GridSize]bool, s Ship) bool {
	for _, c := range s.Cells() {
		x, y := c%GridSize, c/GridSize
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= GridSize || ny >= GridSize {
					continue
				}
				if occupied[ny*GridSize+nx] {
					return true
				}
			}
		}
	}
	return false
}

// RandomFleet places the standard fleet at random with no ships touching.
// After a bounded number of random tries a ship takes the first free slot.
func RandomFleet(rnd random.Random) ([]Ship, error) {
	var occupied [GridSize * GridSize]bool
	ships := make([]Ship, 0, len(FleetLengths))

	for _, length := range FleetLengths {
		ship, ok := randomSlot(rnd, &occupied, length)
		if !ok {
			ship, ok = firstSlot(&occupied, length)
		}
		if !ok {
			return nil, fmt.Errorf("no room for ship of length %d", length)
		}
		for _, c := range ship.Cells() {
			occupied[c] = true
		}
		ships = append(ships, ship)
	}
	return ships, nil
}

func randomSlot(rnd random.Random, occupied *[GridSize * GridSize]bool, length int) (Ship, bool) {
	for range placementAttempts {
		s := Ship{X: rnd.Intn(GridSize), Y: rnd.Intn(GridSize), Length: length, Dir: rnd.Intn(2)}
		if s.fits() && !touches(occupied, s) {
			return s, true
		}
	}
	return Ship{}, false
}

func firstSlot(occupied *[GridSize * GridSize]bool, length int) (Ship, bool) {
	for dir := Horizontal; dir <= Vertical; dir++ {
		for y := 0; y < GridSize; y++ {
			for x := 0; x < GridSize; x++ {
				s := Ship{X: x, Y: y, Length: length, Dir: dir}
				if s.fits() && !touches(occupied, s) {
					return s, true
				}
			}
		}
	}
	return Ship{}, false
}
