package adapter

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedLifecycle(t *testing.T) {
	a := NewSimulatedAdapter(0, zerolog.Nop())

	assert.False(t, a.IsConnected())

	require.NoError(t, a.Connect())
	assert.True(t, a.IsConnected())

	require.NoError(t, a.Print([]byte("test receipt")))

	require.NoError(t, a.Disconnect())
	assert.False(t, a.IsConnected())
	require.NoError(t, a.Disconnect())
}

func TestSimulatedPrintWhileDisconnected(t *testing.T) {
	a := NewSimulatedAdapter(0, zerolog.Nop())

	err := a.Print([]byte("x"))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSimulatedLatency(t *testing.T) {
	a := NewSimulatedAdapter(30, zerolog.Nop())
	require.NoError(t, a.Connect())

	start := time.Now()
	require.NoError(t, a.Print([]byte("slow")))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}
