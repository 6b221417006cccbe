package adapter

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/google/gousb"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Interface class codes
// Reference: http://www.usb.org/developers/defined_class
const (
	ifaceClassPrinter = 0x07
)

// USBAdapter drives a USB-class receipt printer through its bulk OUT
// endpoint.
type USBAdapter struct {
	vid, pid gousb.ID
	auto     bool // no address given, bind the first printer found

	ctx       *gousb.Context
	device    *gousb.Device
	cfg       *gousb.Config
	iface     *gousb.Interface
	out       *gousb.OutEndpoint
	connected bool
	mu        sync.Mutex

	log zerolog.Logger
}

// NewUSBAdapter creates a USB adapter bound to a "VID:PID" hex pair, or to
// the first printer-class device found when address is empty. No transport
// is opened until Connect.
func NewUSBAdapter(address string, log zerolog.Logger) (*USBAdapter, error) {
	a := &USBAdapter{log: log.With().Str("adapter", "usb").Logger()}
	if address == "" {
		a.auto = true
		return a, nil
	}

	vid, pid, err := parseVIDPID(address)
	if err != nil {
		return nil, err
	}
	a.vid, a.pid = vid, pid
	return a, nil
}

func parseVIDPID(address string) (gousb.ID, gousb.ID, error) {
	parts := strings.Split(address, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("usb address %q: want VID:PID", address)
	}
	vid, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "usb address %q: bad vendor id", address)
	}
	pid, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "usb address %q: bad product id", address)
	}
	return gousb.ID(vid), gousb.ID(pid), nil
}

// IsPrinter checks if a device exposes a printer-class interface.
func IsPrinter(dev *gousb.Device) bool {
	if dev == nil {
		return false
	}

	cfgNum, err := dev.ActiveConfigNum()
	if err != nil {
		return false
	}

	cfg, err := dev.Config(cfgNum)
	if err != nil {
		return false
	}
	defer cfg.Close()

	for _, iface := range cfg.Desc.Interfaces {
		for _, alt := range iface.AltSettings {
			if alt.Class == ifaceClassPrinter {
				return true
			}
		}
	}

	return false
}

// FindPrinters returns all USB printer devices. The caller owns the
// returned handles.
func FindPrinters(ctx *gousb.Context) []*gousb.Device {
	var printers []*gousb.Device

	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return true // inspect everything, filter by class below
	})
	if err != nil {
		return printers
	}

	for _, dev := range devices {
		if IsPrinter(dev) {
			printers = append(printers, dev)
		} else {
			dev.Close()
		}
	}

	return printers
}

// Connect opens the device, claims its printer interface and resolves the
// OUT endpoint. An already-open transport is torn down first rather than
// leaked.
func (a *USBAdapter) Connect() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.connected {
		a.log.Debug().Msg("reconnect requested, tearing down open transport")
		a.teardown()
	}

	if err := a.open(); err != nil {
		a.teardown()
		return &ConnectionError{Transport: TransportUSB, Cause: err}
	}

	a.connected = true
	a.log.Info().Msg("usb printer connected")
	return nil
}

func (a *USBAdapter) open() error {
	a.ctx = gousb.NewContext()

	if a.auto {
		printers := FindPrinters(a.ctx)
		if len(printers) == 0 {
			return errors.New("cannot find printer")
		}
		a.device = printers[0]
		for _, dev := range printers[1:] {
			dev.Close()
		}
	} else {
		dev, err := a.ctx.OpenDeviceWithVIDPID(a.vid, a.pid)
		if err != nil {
			return errors.Wrap(err, "open device")
		}
		if dev == nil {
			return fmt.Errorf("device %s:%s not present", a.vid, a.pid)
		}
		a.device = dev
	}

	if runtime.GOOS == "linux" {
		a.device.SetAutoDetach(true)
	}

	cfgNum, err := a.device.ActiveConfigNum()
	if err != nil {
		return errors.Wrap(err, "active config")
	}

	cfg, err := a.device.Config(cfgNum)
	if err != nil {
		return errors.Wrap(err, "get config")
	}
	a.cfg = cfg

	ifaceNum := -1
	for _, iface := range cfg.Desc.Interfaces {
		for _, alt := range iface.AltSettings {
			if alt.Class == ifaceClassPrinter {
				ifaceNum = iface.Number
				break
			}
		}
		if ifaceNum >= 0 {
			break
		}
	}
	if ifaceNum < 0 {
		return errors.New("no printer interface found")
	}

	iface, err := cfg.Interface(ifaceNum, 0)
	if err != nil {
		return errors.Wrap(err, "claim interface")
	}
	a.iface = iface

	for _, epDesc := range iface.Setting.Endpoints {
		if epDesc.Direction == gousb.EndpointDirectionOut {
			ep, err := iface.OutEndpoint(epDesc.Number)
			if err == nil {
				a.out = ep
				break
			}
		}
	}
	if a.out == nil {
		return errors.New("cannot find output endpoint from printer")
	}

	return nil
}

// teardown releases everything open handles in reverse order. Caller holds
// the mutex.
func (a *USBAdapter) teardown() {
	if a.iface != nil {
		a.iface.Close()
		a.iface = nil
	}
	a.out = nil
	if a.cfg != nil {
		a.cfg.Close()
		a.cfg = nil
	}
	if a.device != nil {
		a.device.Close()
		a.device = nil
	}
	if a.ctx != nil {
		a.ctx.Close()
		a.ctx = nil
	}
	a.connected = false
}

// Print frames the payload as a single receipt job and submits it as one
// bulk transfer.
func (a *USBAdapter) Print(data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.connected {
		return ErrNotConnected
	}

	job := receiptJob(data)
	n, err := a.out.Write(job)
	if err != nil {
		return &PrintError{Cause: errors.Wrap(err, "bulk write")}
	}
	if n < len(job) {
		return &PrintError{Cause: fmt.Errorf("short write: %d of %d bytes", n, len(job))}
	}

	a.log.Debug().Int("bytes", n).Msg("job written to usb endpoint")
	return nil
}

// Disconnect closes the device. Safe to call when already disconnected.
func (a *USBAdapter) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.connected {
		return nil
	}

	a.teardown()
	a.log.Info().Msg("usb printer disconnected")
	return nil
}

// IsConnected reports whether the transport is open.
func (a *USBAdapter) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}
