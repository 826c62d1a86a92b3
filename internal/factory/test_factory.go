package factory

import (
	"time"

	"github.com/lanarcade/gamehub/internal/config"
	"github.com/lanarcade/gamehub/internal/dependencies/mocks"
	"github.com/lanarcade/gamehub/internal/storage/memory"
	redisstorage "github.com/lanarcade/gamehub/internal/storage/redis"
	"github.com/lanarcade/gamehub/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	return NewTestAppWithMirror(config.DefaultConfig(), nil)
}

// NewTestAppWithMirror creates a test App with the given settings, mirroring
// published tables to mirror when it is non-nil
func NewTestAppWithMirror(settings config.Config, mirror *redisstorage.Mirror) *TestApp {
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	app := newWithDependencies(memory.New(), mockClock, mockRandom, settings, mirror, testutil.NopLogger())

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}
