package printer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixxel-company-limited/escpos-print-queue/adapter"
)

// fakeAdapter scripts per-attempt print outcomes and counts every call.
type fakeAdapter struct {
	mu          sync.Mutex
	connected   bool
	connectErr  error
	printErrs   []error // popped per Print call; nil entry means success
	prints      int
	connects    int
	disconnects int
}

func (f *fakeAdapter) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeAdapter) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.connected = false
	return nil
}

func (f *fakeAdapter) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeAdapter) Print(data []byte) (err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prints++
	if len(f.printErrs) > 0 {
		err = f.printErrs[0]
		f.printErrs = f.printErrs[1:]
	}
	return err
}

func newManager(a adapter.Adapter, maxRetries int) *Manager {
	return NewManager(a, maxRetries, time.Millisecond, zerolog.Nop())
}

func TestPrintSucceedsFirstAttempt(t *testing.T) {
	fake := &fakeAdapter{connected: true}
	m := newManager(fake, 3)

	require.NoError(t, m.Print(context.Background(), []byte("receipt")))
	assert.Equal(t, 1, fake.prints, "no further attempts after success")
	assert.Equal(t, 0, fake.connects)
	assert.Equal(t, 0, fake.disconnects)
}

func TestPrintConnectsWhenDisconnected(t *testing.T) {
	fake := &fakeAdapter{}
	m := newManager(fake, 3)

	require.NoError(t, m.Print(context.Background(), []byte("receipt")))
	assert.Equal(t, 1, fake.connects, "exactly one connect before the print")
	assert.Equal(t, 1, fake.prints)
}

func TestPrintConnectFailurePropagates(t *testing.T) {
	connErr := &adapter.ConnectionError{Transport: "usb", Cause: errors.New("unplugged")}
	fake := &fakeAdapter{connectErr: connErr}
	m := newManager(fake, 3)

	err := m.Print(context.Background(), []byte("receipt"))
	assert.True(t, adapter.IsConnectionError(err))
	assert.Equal(t, 0, fake.prints, "retry loop must not be entered")
	assert.Equal(t, 1, fake.connects)
}

func TestPrintRetriesThenSucceeds(t *testing.T) {
	fake := &fakeAdapter{
		connected: true,
		printErrs: []error{errors.New("jam"), errors.New("jam"), nil},
	}
	m := newManager(fake, 3)

	require.NoError(t, m.Print(context.Background(), []byte("receipt")))
	assert.Equal(t, 3, fake.prints)
	assert.Equal(t, 2, fake.disconnects, "one reconnect cycle per failed non-final attempt")
	assert.Equal(t, 2, fake.connects)
}

func TestPrintExhaustsRetryBudget(t *testing.T) {
	lastErr := errors.New("paper out")
	fake := &fakeAdapter{
		connected: true,
		printErrs: []error{errors.New("jam"), errors.New("jam"), lastErr},
	}
	m := newManager(fake, 3)

	err := m.Print(context.Background(), []byte("receipt"))
	require.Error(t, err)

	var pe *adapter.PrintError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 3, pe.Attempts)
	assert.ErrorIs(t, err, lastErr)
	assert.Contains(t, err.Error(), "3 attempt(s)")

	assert.Equal(t, 3, fake.prints, "exactly maxRetries attempts, not more")
}

func TestPrintSingleAttemptBudget(t *testing.T) {
	fake := &fakeAdapter{
		connected: true,
		printErrs: []error{errors.New("jam")},
	}
	m := newManager(fake, 1)

	err := m.Print(context.Background(), []byte("receipt"))
	require.Error(t, err)
	assert.Equal(t, 1, fake.prints)
	assert.Equal(t, 0, fake.disconnects, "no reconnect after the final attempt")
}

func TestPrintReconnectFailureDoesNotAbort(t *testing.T) {
	// Reconnects fail after the adapter drops, but the loop must still run
	// its full budget.
	fake := &fakeAdapter{
		connected:  true,
		connectErr: errors.New("still broken"),
		printErrs:  []error{errors.New("jam"), errors.New("jam"), errors.New("jam")},
	}
	m := newManager(fake, 3)

	err := m.Print(context.Background(), []byte("receipt"))
	require.Error(t, err)
	assert.Equal(t, 3, fake.prints, "reconnect failures must not shorten the loop")

	var pe *adapter.PrintError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 3, pe.Attempts)
}

func TestPrintContextCancelledDuringDelay(t *testing.T) {
	fake := &fakeAdapter{
		connected: true,
		printErrs: []error{errors.New("jam"), errors.New("jam")},
	}
	m := NewManager(fake, 2, time.Minute, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := m.Print(ctx, []byte("receipt"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, fake.prints)
}

func TestManagerMinimumRetries(t *testing.T) {
	fake := &fakeAdapter{connected: true, printErrs: []error{errors.New("jam")}}
	m := newManager(fake, 0)

	err := m.Print(context.Background(), []byte("receipt"))
	require.Error(t, err)
	assert.Equal(t, 1, fake.prints, "budget below 1 is raised to 1")
}

func TestManagerDelegation(t *testing.T) {
	fake := &fakeAdapter{}
	m := newManager(fake, 3)

	assert.False(t, m.IsConnected())
	require.NoError(t, m.Connect())
	assert.True(t, m.IsConnected())
	require.NoError(t, m.Disconnect())
	assert.False(t, m.IsConnected())
}
