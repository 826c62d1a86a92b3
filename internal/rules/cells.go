package rules

import "fmt"

const cellsPerByte = 3

// PackCells encodes cell values in [0,3] three to a byte, offset into the
// printable ASCII range. Boards ride along in every lobby broadcast, so the
// packed form keeps those frames small.
func PackCells(cells []uint8) string {
	out := make([]byte, 0, (len(cells)+cellsPerByte-1)/cellsPerByte)
	for i := 0; i < len(cells); i += cellsPerByte {
		var b byte
		for j := 0; j < cellsPerByte; j++ {
			var v uint8
			if i+j < len(cells) {
				v = cells[i+j] & 0x3
			}
			b |= v << (4 - 2*j)
		}
		out = append(out, b+32)
	}
	return string(out)
}

// UnpackCells reverses PackCells for a board of n cells
func UnpackCells(packed string, n int) ([]uint8, error) {
	if want := (n + cellsPerByte - 1) / cellsPerByte; len(packed) != want {
		return nil, fmt.Errorf("packed board has %d bytes, want %d", len(packed), want)
	}
	cells := make([]uint8, n)
	for i := 0; i < n; i++ {
		b := packed[i/cellsPerByte]
		if b < 32 || b > 32+63 {
			return nil, fmt.Errorf("packed board byte %d out of range", i/cellsPerByte)
		}
		cells[i] = ((b - 32) >> (4 - 2*(i%cellsPerByte))) & 0x3
	}
	return cells, nil
}
