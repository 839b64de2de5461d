package bus

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"github.com/mklimuk/ch341"
)

var _ spi.Port = &SPIPort{}

// SPIPort adapts a device to spi.Port on one of the chip-select lines.
type SPIPort struct {
	dev *ch341.Device
	cs  ch341.ChipSelect
}

func NewSPIPort(dev *ch341.Device, cs ch341.ChipSelect) *SPIPort {
	return &SPIPort{dev: dev, cs: cs}
}

func (p *SPIPort) String() string {
	return "ch341-spi"
}

// Connect configures the bit order from the mode flags and drives the SPI
// pins to their idle levels. The chip only shifts in mode 0 with 8-bit
// words; the frequency request is accepted as-is since the clock is fixed.
func (p *SPIPort) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	if base := mode &^ (spi.LSBFirst | spi.NoCS); base != spi.Mode0 {
		return nil, fmt.Errorf("mode %v is not supported, only mode 0", mode)
	}
	if bits != 8 {
		return nil, fmt.Errorf("%d bits per word is not supported, only 8", bits)
	}
	ctx := context.Background()
	order := ch341.MSBFirst
	if mode&spi.LSBFirst != 0 {
		order = ch341.LSBFirst
	}
	if err := p.dev.SetBitOrder(ctx, order); err != nil {
		return nil, err
	}
	cs := p.cs
	if mode&spi.NoCS != 0 {
		cs = ch341.CSNone
	}
	if err := p.dev.SPIInit(ctx, cs); err != nil {
		return nil, err
	}
	return &spiConn{dev: p.dev, cs: cs}, nil
}

type spiConn struct {
	dev *ch341.Device
	cs  ch341.ChipSelect
}

func (c *spiConn) String() string {
	return "ch341-spi"
}

func (c *spiConn) Tx(w, r []byte) error {
	ctx := context.Background()
	switch {
	case len(w) != 0 && len(r) != 0:
		if len(w) != len(r) {
			return fmt.Errorf("w and r must be of equal length, got %d and %d", len(w), len(r))
		}
		buf := append([]byte(nil), w...)
		if err := c.dev.Exchange(ctx, buf, nil, c.cs); err != nil {
			return err
		}
		copy(r, buf)
		return nil
	case len(r) != 0:
		got, _, err := c.dev.SPIRead(ctx, len(r), 1, c.cs)
		if err != nil {
			return err
		}
		copy(r, got)
		return nil
	case len(w) != 0:
		return c.dev.SPIWrite(ctx, w, nil, c.cs)
	}
	return nil
}

func (c *spiConn) TxPackets(p []spi.Packet) error {
	for _, pkt := range p {
		if err := c.Tx(pkt.W, pkt.R); err != nil {
			return err
		}
	}
	return nil
}

func (c *spiConn) Duplex() conn.Duplex {
	return conn.Full
}
