package ch341

import (
	"context"
	"fmt"
)

// Pin numbers the GPIO capable lines D0 through D5.
type Pin uint8

const (
	D0 Pin = iota
	D1
	D2
	D3
	D4
	D5
)

// gpioMask bounds the bits the chip accepts in the direction and output
// registers.
const gpioMask byte = 0x3F

// SetDirection switches one pin between input and output. The chip has no
// per-pin command, so the whole direction/output register is recomputed and
// pushed in one atomic write.
func (d *Device) SetDirection(ctx context.Context, pin Pin, output bool) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if !d.opened {
		return ErrClosed
	}
	if pin > D5 {
		return fmt.Errorf("pin %d out of range", pin)
	}
	if output {
		d.gpioDir |= 1 << pin
	} else {
		d.gpioDir &^= 1 << pin
	}
	return d.pushGPIO(ctx)
}

// GPIOWrite drives the output level of one pin. The pin keeps its configured
// direction; driving an input pin only preselects the level it will take
// once switched to output.
func (d *Device) GPIOWrite(ctx context.Context, pin Pin, level bool) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if !d.opened {
		return ErrClosed
	}
	if pin > D5 {
		return fmt.Errorf("pin %d out of range", pin)
	}
	if level {
		d.gpioOut |= 1 << pin
	} else {
		d.gpioOut &^= 1 << pin
	}
	return d.pushGPIO(ctx)
}

// GPIORead samples the live input level of one pin from the hardware, not
// from the cached output mask.
func (d *Device) GPIORead(ctx context.Context, pin Pin) (bool, error) {
	if pin > D5 {
		return false, fmt.Errorf("pin %d out of range", pin)
	}
	state, err := d.GPIOReadAll(ctx)
	if err != nil {
		return false, err
	}
	return state&(1<<pin) != 0, nil
}

// GPIOReadAll samples the instantaneous level of all data lines.
func (d *Device) GPIOReadAll(ctx context.Context) (byte, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if !d.opened {
		return 0, ErrClosed
	}
	state, err := d.transport.GetInputState(ctx, d.handle)
	if err != nil {
		return 0, fmt.Errorf("read input state: %w", err)
	}
	return byte(state), nil
}

// GPIOReset returns every pin to input with a low preset level.
func (d *Device) GPIOReset(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if !d.opened {
		return ErrClosed
	}
	d.gpioDir = 0
	d.gpioOut = 0
	return d.pushGPIO(ctx)
}

func (d *Device) pushGPIO(ctx context.Context) error {
	if err := d.transport.SetGPIO(ctx, d.handle, d.gpioDir&gpioMask, d.gpioOut&gpioMask); err != nil {
		return fmt.Errorf("push gpio register: %w", err)
	}
	return nil
}
