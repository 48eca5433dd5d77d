package link

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestMock_GracefulShutdown tests that Mock device closes reports channel
// when Close() is called.
func TestMock_GracefulShutdown(t *testing.T) {
	mock := NewMock(testMockConfig(), nil)
	err := mock.Connect()
	assert.NoError(t, err)

	reports := mock.Reports()

	// Read a few reports
	received := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range reports {
			received++
			if received == 3 {
				// Got enough reports, now close device
				mock.Close()
			}
		}
	}()

	// Wait for reports and channel closure
	select {
	case <-done:
		// Channel closed successfully
	case <-time.After(5 * time.Second):
		t.Fatal("Reports channel did not close within timeout")
	}

	assert.GreaterOrEqual(t, received, 3, "Should receive reports before channel closes")
	assert.False(t, mock.IsConnected())

	// Verify channel is closed
	_, ok := <-reports
	assert.False(t, ok, "Channel should be closed")
}
