package adapter

import (
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.bug.st/serial"
)

// DefaultBaud is the line rate used when none is configured. Most ESC/POS
// serial boards ship at 9600 8N1.
const DefaultBaud = 9600

// serialPort is the slice of go.bug.st/serial.Port the adapter needs.
// Tests substitute a fake through the dial hook.
type serialPort interface {
	io.Writer
	Drain() error
	Close() error
}

type dialFunc func(path string, mode *serial.Mode) (serialPort, error)

func dialSerial(path string, mode *serial.Mode) (serialPort, error) {
	return serial.Open(path, mode)
}

// SerialAdapter drives a receipt printer over a byte-stream port: a native
// serial line or a Bluetooth RFCOMM binding, which the OS exposes as the
// same kind of device node.
type SerialAdapter struct {
	path string
	baud int
	dial dialFunc

	port      serialPort
	connected bool
	mu        sync.Mutex

	log zerolog.Logger
}

// NewSerialAdapter creates a serial adapter for the given device path. The
// port is not opened until Connect. A baud of zero selects DefaultBaud.
func NewSerialAdapter(path string, baud int, log zerolog.Logger) (*SerialAdapter, error) {
	if path == "" {
		return nil, fmt.Errorf("serial transport requires a device path")
	}
	if baud == 0 {
		baud = DefaultBaud
	}
	return &SerialAdapter{
		path: path,
		baud: baud,
		dial: dialSerial,
		log:  log.With().Str("adapter", "serial").Str("port", path).Logger(),
	}, nil
}

// Connect opens the port at the configured rate. An already-open port is
// closed first rather than leaked.
func (a *SerialAdapter) Connect() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.connected {
		a.log.Debug().Msg("reconnect requested, closing open port")
		a.port.Close()
		a.port = nil
		a.connected = false
	}

	mode := &serial.Mode{
		BaudRate: a.baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := a.dial(a.path, mode)
	if err != nil {
		return &ConnectionError{
			Transport: TransportSerial,
			Cause:     errors.Wrapf(err, "open %s", a.path),
		}
	}

	a.port = port
	a.connected = true
	a.log.Info().Int("baud", a.baud).Msg("serial printer connected")
	return nil
}

// Print writes the framed job as one buffer and does not return success
// until the transport confirms the bytes are drained.
func (a *SerialAdapter) Print(data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.connected {
		return ErrNotConnected
	}

	job := receiptJob(data)
	n, err := a.port.Write(job)
	if err != nil {
		return &PrintError{Cause: errors.Wrap(err, "serial write")}
	}
	if n < len(job) {
		return &PrintError{Cause: fmt.Errorf("short write: %d of %d bytes", n, len(job))}
	}
	if err := a.port.Drain(); err != nil {
		return &PrintError{Cause: errors.Wrap(err, "drain")}
	}

	a.log.Debug().Int("bytes", n).Msg("job drained to serial port")
	return nil
}

// Disconnect closes the port. Safe to call when already disconnected.
func (a *SerialAdapter) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.connected {
		return nil
	}

	err := a.port.Close()
	a.port = nil
	a.connected = false
	a.log.Info().Msg("serial printer disconnected")
	return err
}

// IsConnected reports whether the port is open.
func (a *SerialAdapter) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}
