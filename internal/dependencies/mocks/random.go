package mocks

import (
	"sync"

	"github.com/lanarcade/gamehub/internal/dependencies/random"
)

// MockRandom is a mock implementation of Random for testing.
//
// Queued Intn values are reduced modulo n so a queue written for one call
// site can never push an engine out of range. Once the Intn queue is empty
// it counts upwards, which keeps retry loops (ship placement, dice) moving
// instead of spinning on the same value.
type MockRandom struct {
	mu sync.Mutex

	intnResults []int
	intnIndex   int
	fallback    int

	stringResults  []string
	stringIndex    int
	stringFallback int
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Intn returns the next queued result
func (r *MockRandom) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.intnIndex < len(r.intnResults) {
		result := r.intnResults[r.intnIndex]
		r.intnIndex++
		return ((result % n) + n) % n
	}
	result := r.fallback % n
	r.fallback++
	return result
}

// String returns the next queued result. With an empty queue it counts
// through the alphabet so unqueued ids stay distinct.
func (r *MockRandom) String(length int, alphabet string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stringIndex >= len(r.stringResults) {
		if alphabet == "" || length <= 0 {
			return ""
		}
		n := r.stringFallback
		r.stringFallback++
		b := make([]byte, length)
		for i := length - 1; i >= 0; i-- {
			b[i] = alphabet[n%len(alphabet)]
			n /= len(alphabet)
		}
		return string(b)
	}
	result := r.stringResults[r.stringIndex]
	r.stringIndex++
	return result
}

// QueueIntn adds values to the Intn result queue
func (r *MockRandom) QueueIntn(values ...int) {
	r.mu.Lock()
	r.intnResults = append(r.intnResults, values...)
	r.mu.Unlock()
}

// QueueString adds values to the String result queue
func (r *MockRandom) QueueString(values ...string) {
	r.mu.Lock()
	r.stringResults = append(r.stringResults, values...)
	r.mu.Unlock()
}

// Reset clears all queued results
func (r *MockRandom) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intnResults = nil
	r.intnIndex = 0
	r.fallback = 0
	r.stringResults = nil
	r.stringIndex = 0
	r.stringFallback = 0
}
