package adapter

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SimulatedAdapter stands in for a physical printer during development and
// in test harnesses. Every operation succeeds after the configured latency;
// printed payloads go to the log instead of a device.
type SimulatedAdapter struct {
	latency   time.Duration
	connected bool
	mu        sync.Mutex

	log zerolog.Logger
}

// NewSimulatedAdapter creates a simulated adapter with the given artificial
// latency in milliseconds.
func NewSimulatedAdapter(latencyMs int, log zerolog.Logger) *SimulatedAdapter {
	return &SimulatedAdapter{
		latency: time.Duration(latencyMs) * time.Millisecond,
		log:     log.With().Str("adapter", "simulated").Logger(),
	}
}

func (a *SimulatedAdapter) Connect() error {
	time.Sleep(a.latency)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = true
	a.log.Info().Msg("simulated printer connected")
	return nil
}

func (a *SimulatedAdapter) Disconnect() error {
	time.Sleep(a.latency)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = false
	return nil
}

func (a *SimulatedAdapter) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

func (a *SimulatedAdapter) Print(data []byte) error {
	a.mu.Lock()
	connected := a.connected
	a.mu.Unlock()

	if !connected {
		return ErrNotConnected
	}

	time.Sleep(a.latency)
	a.log.Info().Str("payload", string(data)).Msg("simulated print")
	return nil
}
