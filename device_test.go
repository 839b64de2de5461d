package ch341

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenNegativeHandle(t *testing.T) {
	tr := newFakeTransport()
	tr.openHandle = -1
	dev := New(tr, 0)
	err := dev.Open(context.Background(), false)
	assert.ErrorIs(t, err, ErrOpenFailed)
}

func TestOpenTransportError(t *testing.T) {
	tr := newFakeTransport()
	tr.openErr = errors.New("no such device")
	dev := New(tr, 3)
	err := dev.Open(context.Background(), false)
	require.Error(t, err)
	assert.ErrorContains(t, err, "no such device")
}

func TestOpenResetsBeforeExclusive(t *testing.T) {
	tr := newFakeTransport()
	dev := New(tr, 0)
	require.NoError(t, dev.Open(context.Background(), true))
	assert.Equal(t, []string{"open", "reset", "exclusive-on"}, tr.ops)

	// Reopening an open device is a no-op.
	require.NoError(t, dev.Open(context.Background(), true))
	assert.Equal(t, []string{"open", "reset", "exclusive-on"}, tr.ops)
}

func TestCloseTeardownOrder(t *testing.T) {
	ctx := context.Background()
	tr := newFakeTransport()
	dev := New(tr, 0)
	require.NoError(t, dev.Open(ctx, false))

	ch := make(chan uint32, 1)
	require.NoError(t, dev.RegisterInterrupt(ch))

	tr.ops = nil
	tr.gpioPushes = nil
	require.NoError(t, dev.Close(ctx))
	assert.Equal(t, []string{"intr-clear", "gpio", "reset", "close"}, tr.ops)
	assert.Equal(t, [2]byte{0x00, 0x00}, tr.lastGPIO(), "pins return to input/low before release")

	// Closing again is a no-op.
	require.NoError(t, dev.Close(ctx))
	assert.Equal(t, []string{"intr-clear", "gpio", "reset", "close"}, tr.ops)
}

func TestCloseWithoutInterruptCallback(t *testing.T) {
	ctx := context.Background()
	tr := newFakeTransport()
	dev := New(tr, 0)
	require.NoError(t, dev.Open(ctx, false))
	assert.NoError(t, dev.Close(ctx))
}

func TestInterruptNotification(t *testing.T) {
	tr := newFakeTransport()
	dev := openTestDevice(t, tr)

	ch := make(chan uint32, 1)
	require.NoError(t, dev.RegisterInterrupt(ch))
	tr.fire(7)
	assert.Equal(t, uint32(7), <-ch)

	// A new registration atomically replaces the previous one.
	ch2 := make(chan uint32, 1)
	require.NoError(t, dev.RegisterInterrupt(ch2))
	tr.fire(9)
	assert.Equal(t, uint32(9), <-ch2)
	assert.Empty(t, ch)

	// A full channel drops the notification instead of blocking the
	// transport thread.
	ch2 <- 1
	tr.fire(2)
	assert.Equal(t, uint32(1), <-ch2)

	require.NoError(t, dev.ClearInterrupt())
	tr.fire(3)
	assert.Empty(t, ch2)
}

func TestClearInterruptWithoutRegistration(t *testing.T) {
	tr := newFakeTransport()
	dev := openTestDevice(t, tr)
	assert.NoError(t, dev.ClearInterrupt())
}

func TestRegisterInterruptNilClears(t *testing.T) {
	tr := newFakeTransport()
	dev := openTestDevice(t, tr)
	ch := make(chan uint32, 1)
	require.NoError(t, dev.RegisterInterrupt(ch))
	require.NoError(t, dev.RegisterInterrupt(nil))
	tr.fire(5)
	assert.Empty(t, ch)
}

func TestIdentityUnsupported(t *testing.T) {
	tr := newFakeTransport()
	dev := openTestDevice(t, tr)
	_, err := dev.ICVersion(context.Background())
	assert.Error(t, err)
	_, err = dev.Name(context.Background())
	assert.Error(t, err)
}

func TestSetExclusive(t *testing.T) {
	tr := newFakeTransport()
	dev := openTestDevice(t, tr)
	require.NoError(t, dev.SetExclusive(context.Background(), true))
	assert.Equal(t, "exclusive-on", tr.ops[len(tr.ops)-1])
}
