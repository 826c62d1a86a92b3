package nardy

import "github.com/lanarcade/gamehub/internal/model"

const (
	// Points is the number of playing points on the board
	Points = 24
	// Chips each side starts with
	Chips = 15

	whiteHead = 0
	blackHead = 23
	whiteOff  = 24
	blackOff  = 25
)

// Paths list the points each side travels in order. Both sides move
// anticlockwise from their head to the home quarter opposite it.
var (
	whitePath = [Points]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 23, 22, 21, 20, 19, 18, 17, 16, 15, 14, 13, 12}
	blackPath = [Points]int{23, 22, 21, 20, 19, 18, 17, 16, 15, 14, 13, 12, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
)

// Board holds signed chip counts: positive for white, negative for black.
// Indices 24 and 25 are the white and black bear-off trays.
type Board [Points + 2]int

func sign(side model.Side) int {
	if side == model.SideWhite {
		return 1
	}
	return -1
}

func path(side model.Side) *[Points]int {
	if side == model.SideWhite {
		return &whitePath
	}
	return &blackPath
}

func head(side model.Side) int {
	if side == model.SideWhite {
		return whiteHead
	}
	return blackHead
}

func tray(side model.Side) int {
	if side == model.SideWhite {
		return whiteOff
	}
	return blackOff
}

// pathIndex returns how far along its path side's chip on point has come
func pathIndex(side model.Side, point int) int {
	for i, p := range path(side) {
		if p == point {
			return i
		}
	}
	return -1
}

func (b *Board) owner(point int) int {
	switch {
	case b[point] > 0:
		return 1
	case b[point] < 0:
		return -1
	}
	return 0
}

// count returns the number of side's chips on point
func (b *Board) count(point int, side model.Side) int {
	if b.owner(point) != sign(side) {
		return 0
	}
	return b[point] * sign(side)
}

// borneOff returns how many chips side has taken off the board
func (b *Board) borneOff(side model.Side) int {
	return b[tray(side)] * sign(side)
}

// allHome reports whether every remaining chip of side sits in its last quarter
func (b *Board) allHome(side model.Side) bool {
	p := path(side)
	for i := 0; i < Points-6; i++ {
		if b.count(p[i], side) > 0 {
			return false
		}
	}
	return true
}

// onBoard reports whether side still has chips on the playing points
func (b *Board) onBoard(side model.Side) bool {
	for point := 0; point < Points; point++ {
		if b.count(point, side) > 0 {
			return true
		}
	}
	return false
}

func startingBoard() Board {
	var b Board
	b[whiteHead] = Chips
	b[blackHead] = -Chips
	return b
}
