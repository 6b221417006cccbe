package adapter

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Transport kinds selectable at construction time.
const (
	TransportUSB       = "usb"
	TransportSerial    = "serial"
	TransportSimulated = "simulated"
)

// Adapter is the uniform contract over printer transports. Exactly one
// instance is live per process, owned by the connection manager.
type Adapter interface {
	// Connect establishes the transport. Calling it while a transport is
	// already open tears the old one down and opens a fresh one.
	Connect() error

	// Disconnect releases the transport. Idempotent.
	Disconnect() error

	// IsConnected reports whether the transport is currently open.
	IsConnected() bool

	// Print sends one receipt payload to the device. It must fail with
	// ErrNotConnected, without touching the transport, when called while
	// disconnected.
	Print(data []byte) error
}

// Config selects and parameterizes the adapter variant.
type Config struct {
	// Transport is one of TransportUSB, TransportSerial, TransportSimulated.
	Transport string

	// Address is transport specific: "VID:PID" (or empty for auto-detect)
	// for USB, a device path such as /dev/ttyUSB0 or /dev/rfcomm0 for
	// serial/Bluetooth. Ignored by the simulated adapter.
	Address string

	// Baud is the serial line rate. Zero means DefaultBaud.
	Baud int

	// SimulatedLatency delays every simulated operation, in milliseconds.
	SimulatedLatency int

	Logger zerolog.Logger
}

// New builds the adapter variant named by cfg.Transport.
func New(cfg Config) (Adapter, error) {
	switch cfg.Transport {
	case TransportUSB:
		return NewUSBAdapter(cfg.Address, cfg.Logger)
	case TransportSerial:
		return NewSerialAdapter(cfg.Address, cfg.Baud, cfg.Logger)
	case TransportSimulated:
		return NewSimulatedAdapter(cfg.SimulatedLatency, cfg.Logger), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// ESC/POS control sequences shared by the transports.
var (
	escInit = []byte{0x1B, 0x40}             // ESC @  reset formatting state
	gsCut   = []byte{0x1D, 0x56, 0x41, 0x00} // GS V A 0  feed and full cut
)

// receiptJob frames a payload as one self-contained print job: reset,
// UTF-8 payload, two line feeds, cut.
func receiptJob(payload []byte) []byte {
	buf := make([]byte, 0, len(escInit)+len(payload)+2+len(gsCut))
	buf = append(buf, escInit...)
	buf = append(buf, payload...)
	buf = append(buf, '\n', '\n')
	buf = append(buf, gsCut...)
	return buf
}
