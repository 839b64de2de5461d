package ch341

import (
	"context"
	"fmt"
	"sync"
)

// Device drives one CH341 bridge through an injected Transport. All bus
// operations are synchronous request/response exchanges serialized on the
// device mutex; the only asynchronous surface is the interrupt notification
// channel registered with RegisterInterrupt.
type Device struct {
	mx        sync.Mutex
	transport Transport
	index     int

	handle    Handle
	opened    bool
	exclusive bool

	speed   int
	order   BitOrder
	spiDual bool

	eeprom EEPROMType

	gpioDir byte
	gpioOut byte

	// The interrupt slot has its own lock so the transport callback never
	// contends with an in-progress bus operation.
	intrMx sync.Mutex
	intr   chan<- uint32
}

// New binds a device at the given enumeration index to a transport.
// The device stays closed until Open is called.
func New(t Transport, index int) *Device {
	return &Device{transport: t, index: index, speed: I2CSpeed100kHz}
}

// Open claims the device, resets it and applies the exclusivity request.
// Opening an already open device is a no-op.
func (d *Device) Open(ctx context.Context, exclusive bool) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.opened {
		return nil
	}
	h, err := d.transport.Open(ctx, d.index)
	if err != nil {
		return fmt.Errorf("open device %d: %w", d.index, err)
	}
	if h < 0 {
		return fmt.Errorf("device %d: %w", d.index, ErrOpenFailed)
	}
	if err = d.transport.Reset(ctx, h); err != nil {
		d.transport.Close(h)
		return fmt.Errorf("reset device %d: %w", d.index, err)
	}
	if err = d.transport.SetExclusive(ctx, h, exclusive); err != nil {
		d.transport.Close(h)
		return fmt.Errorf("set exclusive mode on device %d: %w", d.index, err)
	}
	d.handle = h
	d.opened = true
	d.exclusive = exclusive
	d.gpioDir = 0
	d.gpioOut = 0
	return nil
}

// Close tears the handle down: it clears the interrupt callback, returns all
// GPIO pins to input/low, resets the device and releases the handle, in that
// order. Closing a closed device is a no-op.
func (d *Device) Close(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if !d.opened {
		return nil
	}
	var first error
	if err := d.transport.RegisterInterrupt(d.handle, nil); err != nil {
		first = fmt.Errorf("clear interrupt callback: %w", err)
	}
	d.intrMx.Lock()
	d.intr = nil
	d.intrMx.Unlock()
	d.gpioDir = 0
	d.gpioOut = 0
	if err := d.transport.SetGPIO(ctx, d.handle, 0, 0); err != nil && first == nil {
		first = fmt.Errorf("release gpio lines: %w", err)
	}
	if err := d.transport.Reset(ctx, d.handle); err != nil && first == nil {
		first = fmt.Errorf("reset device: %w", err)
	}
	d.transport.Close(d.handle)
	d.opened = false
	return first
}

// Reset performs a device reset without touching the handle state.
func (d *Device) Reset(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if !d.opened {
		return ErrClosed
	}
	if err := d.transport.Reset(ctx, d.handle); err != nil {
		return fmt.Errorf("reset device %d: %w", d.index, err)
	}
	return nil
}

// SetExclusive toggles exclusive access to the physical device.
func (d *Device) SetExclusive(ctx context.Context, exclusive bool) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if !d.opened {
		return ErrClosed
	}
	if err := d.transport.SetExclusive(ctx, d.handle, exclusive); err != nil {
		return fmt.Errorf("set exclusive mode on device %d: %w", d.index, err)
	}
	d.exclusive = exclusive
	return nil
}

// ICVersion reports the chip revision when the transport exposes it.
func (d *Device) ICVersion(ctx context.Context) (byte, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if !d.opened {
		return 0, ErrClosed
	}
	id, ok := d.transport.(Identifier)
	if !ok {
		return 0, fmt.Errorf("transport does not expose chip identity")
	}
	return id.ICVersion(ctx, d.handle)
}

// Name reports the device name when the transport exposes it.
func (d *Device) Name(ctx context.Context) (string, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if !d.opened {
		return "", ErrClosed
	}
	id, ok := d.transport.(Identifier)
	if !ok {
		return "", fmt.Errorf("transport does not expose chip identity")
	}
	return id.Name(ctx, d.handle)
}

// RegisterInterrupt installs ch as the edge notification sink, replacing any
// previous registration. Status values are delivered with a non-blocking
// send; a value is dropped when the channel is full. Passing nil clears the
// registration.
func (d *Device) RegisterInterrupt(ch chan<- uint32) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if !d.opened {
		return ErrClosed
	}
	if ch == nil {
		return d.clearInterrupt()
	}
	if err := d.transport.RegisterInterrupt(d.handle, d.notify); err != nil {
		return fmt.Errorf("register interrupt callback: %w", err)
	}
	d.intrMx.Lock()
	d.intr = ch
	d.intrMx.Unlock()
	return nil
}

// ClearInterrupt removes the notification sink. It is safe to call when no
// channel was ever registered.
func (d *Device) ClearInterrupt() error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if !d.opened {
		return ErrClosed
	}
	return d.clearInterrupt()
}

func (d *Device) clearInterrupt() error {
	if err := d.transport.RegisterInterrupt(d.handle, nil); err != nil {
		return fmt.Errorf("clear interrupt callback: %w", err)
	}
	d.intrMx.Lock()
	d.intr = nil
	d.intrMx.Unlock()
	return nil
}

// notify runs on the transport's interrupt thread. It only hands the status
// over to the owning goroutine, it never mutates engine state.
func (d *Device) notify(status uint32) {
	d.intrMx.Lock()
	ch := d.intr
	d.intrMx.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- status:
	default:
	}
}

// pushConfig sends the combined configuration word. Speed and bit order
// share one word on the chip, pushing a partial value from either engine
// would corrupt the other setting.
func (d *Device) pushConfig(ctx context.Context) error {
	cfg := byte(d.speed) & cfgSpeedMask
	if d.order == MSBFirst {
		cfg |= cfgSPIMSB
	}
	if d.spiDual {
		cfg |= cfgSPIDual
	}
	if err := d.transport.Write(ctx, d.handle, encodeConfig(cfg)); err != nil {
		return fmt.Errorf("push configuration word: %w", err)
	}
	return nil
}
