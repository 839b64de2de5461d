// Package bus exposes an opened ch341 device through the periph.io
// connection interfaces, so existing periph.io peripheral drivers can run
// over the bridge.
package bus

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/ch341"
)

var _ i2c.Bus = &I2C{}

// I2C adapts a device to i2c.Bus.
type I2C struct {
	dev *ch341.Device
}

func NewI2C(dev *ch341.Device) *I2C {
	return &I2C{dev: dev}
}

func (b *I2C) String() string {
	return "ch341-i2c"
}

// Tx performs a combined write-then-read transaction.
func (b *I2C) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return fmt.Errorf("address %#x outside the 7-bit range", addr)
	}
	return b.dev.Tx(context.Background(), byte(addr), w, r)
}

// SetSpeed maps the requested frequency onto the nearest of the four fixed
// clock classes of the chip.
func (b *I2C) SetSpeed(f physic.Frequency) error {
	var class int
	switch {
	case f <= 20*physic.KiloHertz:
		class = ch341.I2CSpeed20kHz
	case f <= 100*physic.KiloHertz:
		class = ch341.I2CSpeed100kHz
	case f <= 400*physic.KiloHertz:
		class = ch341.I2CSpeed400kHz
	default:
		class = ch341.I2CSpeed800kHz
	}
	return b.dev.SetI2CSpeed(context.Background(), class)
}
