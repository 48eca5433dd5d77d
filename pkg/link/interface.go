package link

import (
	"github.com/itohio/gotimer/pkg/protocol"
	"github.com/itohio/gotimer/pkg/timer"
)

// Device defines the interface for timer display devices (real or mocked).
type Device interface {
	Connect() error
	Close() error
	Reports() <-chan protocol.Report
	Show(snap timer.Snapshot) error
	IsConnected() bool
}

// Ensure Serial implements Device.
var _ Device = (*Serial)(nil)

// Ensure Mock implements Device.
var _ Device = (*Mock)(nil)
