package ch341

import (
	"context"
	"fmt"
)

// BitOrder selects which bit of each byte is shifted out first. It is a
// per-handle setting; changing it re-issues the device configuration word
// before the next exchange.
type BitOrder uint8

const (
	MSBFirst BitOrder = iota
	LSBFirst
)

// ChipSelect names the chip-select lines available to the SPI engine.
type ChipSelect uint8

const (
	CSNone ChipSelect = iota
	CS0                // D0
	CS1                // D1
	CS2                // D2
)

// Fixed pin roles of the SPI engine.
const (
	spiClockPin Pin = D3
	spiDataPin2 Pin = D4 // second channel data out
	spiDataPin  Pin = D5
)

func (cs ChipSelect) pin() (Pin, bool) {
	switch cs {
	case CS0:
		return D0, true
	case CS1:
		return D1, true
	case CS2:
		return D2, true
	}
	return 0, false
}

// SetBitOrder selects the shift direction for subsequent exchanges and
// pushes the combined configuration word to the device.
func (d *Device) SetBitOrder(ctx context.Context, order BitOrder) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if !d.opened {
		return ErrClosed
	}
	d.order = order
	return d.pushConfig(ctx)
}

// SPIInit assigns the fixed pin roles and drives them to their idle levels:
// clock low, data lines low, the chosen chip-select high. The pins stay
// claimed until the device is closed; driving them with direct GPIO calls
// while SPI is in use leaves the bus in an undefined state.
func (d *Device) SPIInit(ctx context.Context, cs ChipSelect) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if !d.opened {
		return ErrClosed
	}
	d.gpioDir |= 1<<spiClockPin | 1<<spiDataPin | 1<<spiDataPin2
	d.gpioOut &^= 1<<spiClockPin | 1<<spiDataPin | 1<<spiDataPin2
	if pin, ok := cs.pin(); ok {
		d.gpioDir |= 1 << pin
		d.gpioOut |= 1 << pin
	}
	if err := d.pushGPIO(ctx); err != nil {
		return err
	}
	return d.pushConfig(ctx)
}

// Exchange clocks the buffers through the bus and replaces their contents in
// place with the bytes read back: the shift register semantics make every
// transfer a byte-for-byte swap. Callers wanting a pure read or write
// pre-fill with filler bytes and discard the returned half. A second buffer
// enables the dual channel mode and must match the first in length; the
// check happens before anything reaches the transport.
func (d *Device) Exchange(ctx context.Context, a, b []byte, cs ChipSelect) (err error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if !d.opened {
		return ErrClosed
	}
	if b != nil && len(a) != len(b) {
		return ErrLengthMismatch
	}
	if err = d.ensureSPIMode(ctx, b != nil); err != nil {
		return err
	}
	if pin, ok := cs.pin(); ok {
		if err = d.driveCS(ctx, pin, true); err != nil {
			return err
		}
		// A failed release leaves the peripheral selected, the caller has
		// to know even when the transfer itself went through.
		defer func() {
			if rerr := d.driveCS(ctx, pin, false); rerr != nil && err == nil {
				err = fmt.Errorf("release chip select: %w", rerr)
			}
		}()
	}

	chunk := PacketLength - 1
	if b != nil {
		chunk = (PacketLength - 1) / 2
	}
	for off := 0; off < len(a); off += chunk {
		end := off + chunk
		if end > len(a) {
			end = len(a)
		}
		var bPart []byte
		if b != nil {
			bPart = b[off:end]
		}
		frame, err := encodeSPIFrame(a[off:end], bPart)
		if err != nil {
			return err
		}
		resp, err := d.transport.WriteRead(ctx, d.handle, frame, PacketLength)
		if err != nil {
			return fmt.Errorf("spi exchange failed: %w", err)
		}
		if b == nil {
			if len(resp) != end-off {
				return fmt.Errorf("spi exchange returned %d of %d bytes: %w",
					len(resp), end-off, ErrProtocol)
			}
			copy(a[off:end], resp)
			continue
		}
		if err = deinterleaveSPI(resp, a[off:end], bPart); err != nil {
			return fmt.Errorf("spi exchange returned %d of %d bytes: %w",
				len(resp), 2*(end-off), err)
		}
	}
	return nil
}

// SPIRead clocks out zero filler and returns the bytes read. With two
// channels requested the second buffer is returned as well, otherwise it is
// nil.
func (d *Device) SPIRead(ctx context.Context, length, channels int, cs ChipSelect) ([]byte, []byte, error) {
	if channels != 1 && channels != 2 {
		return nil, nil, fmt.Errorf("channel count %d not supported", channels)
	}
	a := make([]byte, length)
	var b []byte
	if channels == 2 {
		b = make([]byte, length)
	}
	if err := d.Exchange(ctx, a, b, cs); err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

// SPIWrite clocks the buffers out and discards whatever is read back. The
// caller's buffers are left untouched.
func (d *Device) SPIWrite(ctx context.Context, a, b []byte, cs ChipSelect) error {
	if b != nil && len(a) != len(b) {
		return ErrLengthMismatch
	}
	scratchA := append([]byte(nil), a...)
	var scratchB []byte
	if b != nil {
		scratchB = append([]byte(nil), b...)
	}
	return d.Exchange(ctx, scratchA, scratchB, cs)
}

// ensureSPIMode re-pushes the configuration word when the channel count
// changes; the dual channel bit lives in the same word as the clock and bit
// order settings.
func (d *Device) ensureSPIMode(ctx context.Context, dual bool) error {
	if d.spiDual == dual {
		return nil
	}
	d.spiDual = dual
	return d.pushConfig(ctx)
}

// driveCS asserts (low) or releases (high) a chip-select line through the
// coalesced GPIO register.
func (d *Device) driveCS(ctx context.Context, pin Pin, assert bool) error {
	d.gpioDir |= 1 << pin
	if assert {
		d.gpioOut &^= 1 << pin
	} else {
		d.gpioOut |= 1 << pin
	}
	return d.pushGPIO(ctx)
}
