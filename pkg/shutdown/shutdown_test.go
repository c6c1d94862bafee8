package shutdown

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerShutdown(t *testing.T) {
	m := NewManager()
	var calls atomic.Int32
	m.OnShutdown("socket", func(context.Context) error {
		calls.Add(1)
		return nil
	})
	m.OnShutdown("journal", func(context.Context) error {
		calls.Add(1)
		return errors.New("disk full")
	})
	m.OnShutdown("nil", nil)

	err := m.Shutdown(context.Background())
	require.Error(t, err)
	assert.Equal(t, "journal: disk full", err.Error())
	assert.Equal(t, int32(2), calls.Load())
}

func TestManagerShutdownTimeout(t *testing.T) {
	m := NewManager()
	release := make(chan struct{})
	defer close(release)
	m.OnShutdown("slow", func(context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Shutdown(ctx), context.DeadlineExceeded)
}

func TestManagerEmpty(t *testing.T) {
	assert.NoError(t, NewManager().Shutdown(context.Background()))
}

func TestWaitForSignalContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Nil(t, WaitForSignal(ctx))
}
