package link

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/itohio/gotimer/pkg/protocol"
	"github.com/itohio/gotimer/pkg/timer"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the baud rate the firmware configures its UART with.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the reports channel buffer.
	DefaultBufferSize = 100
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial represents a connection to the timer device over a serial port.
type Serial struct {
	port     string
	baudRate int
	bufSize  int

	conn      io.ReadWriteCloser
	reports   chan protocol.Report
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool

	// open is replaced in tests.
	open func(name string, mode *serial.Mode) (io.ReadWriteCloser, error)
}

// New creates a new Serial device with the specified port, baud rate, and buffer size.
func New(port string, baudRate int, bufSize int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:     port,
		baudRate: baudRate,
		bufSize:  bufSize,
		reports:  make(chan protocol.Report, bufSize),
		ctx:      ctx,
		cancel:   cancel,
		open:     openSerial,
	}
}

func openSerial(name string, mode *serial.Mode) (io.ReadWriteCloser, error) {
	return serial.Open(name, mode)
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}

	return result, nil
}

// Connect opens the serial port and starts reading reports.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}

	mode := &serial.Mode{
		BaudRate: d.baudRate,
	}

	conn, err := d.open(d.port, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	d.conn = conn
	d.connected = true

	go d.readReports(conn)

	return nil
}

// Close closes the connection and stops reading reports.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	d.cancel()

	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			log.Printf("Error closing serial port: %v", err)
		}
		d.conn = nil
	}

	d.connected = false

	return nil
}

// Reports returns the channel of device reports. It is closed once the
// reader stops, after Close or when the port reaches EOF.
func (d *Serial) Reports() <-chan protocol.Report {
	return d.reports
}

// Show sends a display frame to the device.
func (d *Serial) Show(snap timer.Snapshot) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return fmt.Errorf("not connected")
	}

	if _, err := io.WriteString(d.conn, protocol.FormatDisplay(snap)); err != nil {
		return fmt.Errorf("failed to send display frame: %w", err)
	}

	return nil
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// readReports reads lines from the serial port and parses them into reports.
func (d *Serial) readReports(src io.Reader) {
	defer close(d.reports)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic in readReports: %v", r)
		}
	}()

	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		report, err := protocol.ParseReport(line)
		if err != nil {
			log.Printf("Failed to parse line '%s': %v", line, err)
			continue
		}

		// Non-blocking send: a stalled consumer must not stall the port.
		select {
		case d.reports <- report:
		case <-d.ctx.Done():
			return
		default:
			log.Printf("Reports channel full, dropping report")
		}
	}

	select {
	case <-d.ctx.Done():
		// Closed by us; read errors are expected.
	default:
		if err := scanner.Err(); err != nil {
			log.Printf("Error reading from serial port: %v", err)
		}
		d.lost()
	}
}

// lost marks the device disconnected after the port went away on its own.
// It runs before the reports channel closes, so consumers that see the close
// also see IsConnected return false.
func (d *Serial) lost() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return
	}
	log.Printf("Serial port %s closed by the device", d.port)

	d.cancel()
	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			log.Printf("Error closing serial port: %v", err)
		}
		d.conn = nil
	}
	d.connected = false
}
