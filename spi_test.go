package ch341

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExchangeLoopbackIdentity(t *testing.T) {
	ctx := context.Background()
	tr := newFakeTransport()
	dev := openTestDevice(t, tr)

	buf := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	want := append([]byte(nil), buf...)
	require.NoError(t, dev.Exchange(ctx, buf, nil, CSNone))
	assert.Equal(t, want, buf, "loopback exchange is the identity swap")
}

func TestExchangeSwapsInPlace(t *testing.T) {
	ctx := context.Background()
	tr := newFakeTransport()
	tr.spiLoop = func(out []byte) []byte {
		in := make([]byte, len(out))
		for i, b := range out {
			in[i] = ^b
		}
		return in
	}
	dev := openTestDevice(t, tr)

	buf := []byte{0x0F, 0xF0}
	require.NoError(t, dev.Exchange(ctx, buf, nil, CSNone))
	assert.Equal(t, []byte{0xF0, 0x0F}, buf, "clocked out bytes are replaced by clocked in bytes")
}

func TestExchangeChunksLongTransfers(t *testing.T) {
	ctx := context.Background()
	tr := newFakeTransport()
	dev := openTestDevice(t, tr)

	buf := make([]byte, 100)
	for i := range buf {
		buf[i] = byte(i)
	}
	want := append([]byte(nil), buf...)
	require.NoError(t, dev.Exchange(ctx, buf, nil, CSNone))
	assert.Equal(t, want, buf)
	require.NotEmpty(t, tr.frames)
	total := 0
	for _, f := range tr.frames {
		assert.LessOrEqual(t, len(f), PacketLength-1)
		total += len(f)
	}
	assert.Equal(t, len(buf), total)
}

func TestExchangeLengthMismatch(t *testing.T) {
	ctx := context.Background()
	tr := newFakeTransport()
	dev := openTestDevice(t, tr)

	calls := tr.calls
	err := dev.Exchange(ctx, make([]byte, 4), make([]byte, 5), CSNone)
	assert.ErrorIs(t, err, ErrLengthMismatch)
	assert.Equal(t, calls, tr.calls, "nothing reaches the transport")
}

func TestExchangeDualChannel(t *testing.T) {
	ctx := context.Background()
	tr := newFakeTransport()
	dev := openTestDevice(t, tr)

	a := []byte{1, 2, 3}
	b := []byte{4, 5, 6}
	require.NoError(t, dev.Exchange(ctx, a, b, CSNone))
	assert.Equal(t, []byte{1, 2, 3}, a)
	assert.Equal(t, []byte{4, 5, 6}, b)

	require.NotEmpty(t, tr.cfgPushes)
	assert.NotZero(t, tr.cfgPushes[len(tr.cfgPushes)-1]&cfgSPIDual,
		"dual channel mode travels in the configuration word")
	assert.Equal(t, []byte{1, 4, 2, 5, 3, 6}, tr.frames[0])
}

func TestExchangeChipSelect(t *testing.T) {
	ctx := context.Background()
	tr := newFakeTransport()
	dev := openTestDevice(t, tr)
	require.NoError(t, dev.SPIInit(ctx, CS0))

	tr.ops = nil
	tr.gpioPushes = nil
	require.NoError(t, dev.Exchange(ctx, []byte{0xAB}, nil, CS0))
	assert.Equal(t, []string{"gpio", "writeread", "gpio"}, tr.ops,
		"chip select asserts around the frame")
	require.Len(t, tr.gpioPushes, 2)
	assert.Zero(t, tr.gpioPushes[0][1]&0x01, "CS0 driven low for the frame")
	assert.NotZero(t, tr.gpioPushes[1][1]&0x01, "CS0 released high afterwards")
}

func TestExchangeReportsFailedChipSelectRelease(t *testing.T) {
	ctx := context.Background()
	tr := newFakeTransport()
	dev := openTestDevice(t, tr)
	require.NoError(t, dev.SPIInit(ctx, CS0))

	// Pushes so far: init. The next two belong to the exchange, fail the
	// release.
	tr.gpioErr = errors.New("line stuck")
	tr.gpioFailAt = 3

	buf := []byte{0x01}
	err := dev.Exchange(ctx, buf, nil, CS0)
	require.Error(t, err)
	assert.ErrorContains(t, err, "line stuck")
	assert.Equal(t, []byte{0x01}, buf, "the transfer itself completed")
}

func TestSPIInitIdleLevels(t *testing.T) {
	ctx := context.Background()
	tr := newFakeTransport()
	dev := openTestDevice(t, tr)

	require.NoError(t, dev.SPIInit(ctx, CS0))
	push := tr.gpioPushes[0]
	assert.Equal(t, byte(0b00111001), push[0], "clock, data lines and CS0 become outputs")
	assert.Equal(t, byte(0b00000001), push[1], "clock low, data low, CS0 high")
}

func TestSPIWriteKeepsCallerBuffer(t *testing.T) {
	ctx := context.Background()
	tr := newFakeTransport()
	tr.spiLoop = func(out []byte) []byte {
		return make([]byte, len(out))
	}
	dev := openTestDevice(t, tr)

	buf := []byte{1, 2, 3}
	require.NoError(t, dev.SPIWrite(ctx, buf, nil, CSNone))
	assert.Equal(t, []byte{1, 2, 3}, buf)
	assert.Equal(t, []byte{1, 2, 3}, tr.frames[0])
}

func TestSPIReadZeroFiller(t *testing.T) {
	ctx := context.Background()
	tr := newFakeTransport()
	tr.spiLoop = func(out []byte) []byte {
		in := make([]byte, len(out))
		for i := range in {
			in[i] = 0x5A
		}
		return in
	}
	dev := openTestDevice(t, tr)

	got, second, err := dev.SPIRead(ctx, 4, 1, CSNone)
	require.NoError(t, err)
	assert.Nil(t, second)
	assert.Equal(t, []byte{0x5A, 0x5A, 0x5A, 0x5A}, got)
	assert.Equal(t, make([]byte, 4), tr.frames[0], "filler bytes are zero")

	_, _, err = dev.SPIRead(ctx, 4, 3, CSNone)
	assert.Error(t, err)
}
