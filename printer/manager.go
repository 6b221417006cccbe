package printer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/nixxel-company-limited/escpos-print-queue/adapter"
)

// Manager hides connection churn behind a single Print call. It exclusively
// owns the one adapter instance for the process; nothing else touches
// transport state.
type Manager struct {
	adapter    adapter.Adapter
	maxRetries int
	retryDelay time.Duration
	log        zerolog.Logger
}

// NewManager wraps an adapter with a retry policy. maxRetries is the total
// number of print attempts including the first; values below 1 are raised
// to 1.
func NewManager(a adapter.Adapter, maxRetries int, retryDelay time.Duration, log zerolog.Logger) *Manager {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Manager{
		adapter:    a,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		log:        log.With().Str("component", "printer").Logger(),
	}
}

// Connect delegates to the adapter.
func (m *Manager) Connect() error { return m.adapter.Connect() }

// Disconnect delegates to the adapter.
func (m *Manager) Disconnect() error { return m.adapter.Disconnect() }

// IsConnected reflects the adapter's last known state. It does not
// re-verify the transport.
func (m *Manager) IsConnected() bool { return m.adapter.IsConnected() }

// Print sends one payload to the device with bounded retries.
//
// A disconnected adapter gets exactly one Connect first; if that fails the
// error propagates immediately and no print attempt is made. Between failed
// attempts the manager waits the retry delay and then cycles
// Disconnect/Connect to clear potentially corrupted transport state.
// Reconnect failures are logged and swallowed so the next attempt still
// runs against whatever state the adapter is in. Exhausting the budget
// yields a PrintError carrying the attempt count and the last cause.
//
// No exactly-once guarantee is made toward the wire: an attempt that
// partially wrote before failing may have produced output.
func (m *Manager) Print(ctx context.Context, data []byte) error {
	if !m.adapter.IsConnected() {
		if err := m.adapter.Connect(); err != nil {
			return err
		}
	}

	var lastErr error
	for attempt := 1; attempt <= m.maxRetries; attempt++ {
		err := m.adapter.Print(data)
		if err == nil {
			if attempt > 1 {
				m.log.Info().Int("attempt", attempt).Msg("print succeeded after retry")
			}
			return nil
		}
		lastErr = err
		m.log.Warn().Err(err).
			Int("attempt", attempt).
			Int("max", m.maxRetries).
			Msg("print attempt failed")

		if attempt == m.maxRetries {
			break
		}

		select {
		case <-time.After(m.retryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}

		m.reconnect()
	}

	return &adapter.PrintError{Attempts: m.maxRetries, Cause: lastErr}
}

// reconnect cycles the transport between attempts. Errors are recorded but
// never abort the retry loop; the next attempt proceeds regardless.
func (m *Manager) reconnect() {
	if err := m.adapter.Disconnect(); err != nil {
		m.log.Warn().Err(err).Msg("disconnect during retry failed")
	}
	if err := m.adapter.Connect(); err != nil {
		m.log.Warn().Err(err).Msg("reconnect during retry failed")
	}
}
