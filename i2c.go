package ch341

import (
	"context"
	"fmt"
)

// I2C clock classes accepted by SetI2CSpeed.
const (
	I2CSpeed20kHz = iota
	I2CSpeed100kHz
	I2CSpeed400kHz
	I2CSpeed800kHz
)

// SetI2CSpeed selects one of the four fixed clock classes. Out of range
// values are clamped to the nearest class, mirroring the permissive policy
// of the vendor interface; no error is raised for them.
func (d *Device) SetI2CSpeed(ctx context.Context, speed int) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if !d.opened {
		return ErrClosed
	}
	if speed < I2CSpeed20kHz {
		speed = I2CSpeed20kHz
	}
	if speed > I2CSpeed800kHz {
		speed = I2CSpeed800kHz
	}
	d.speed = speed
	return d.pushConfig(ctx)
}

// Tx performs a combined write-then-read transaction with the peripheral at
// the given 7-bit address: start, address and w clocked out, a repeated
// start with the read address when r is non-empty, r filled from the bus,
// stop. Either buffer may be empty; with both empty only the address probe
// is clocked. The transaction is split into packet sized stream commands
// when it does not fit a single one. A peripheral that leaves the address or
// a written byte unacknowledged fails the transaction with ErrNack.
func (d *Device) Tx(ctx context.Context, addr byte, w, r []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if !d.opened {
		return ErrClosed
	}
	return d.tx(ctx, addr, w, r)
}

func (d *Device) tx(ctx context.Context, addr byte, w, r []byte) error {
	var sb streamBuilder
	if len(w) > 0 || len(r) == 0 {
		sb.op(0, i2cStart)
		out := make([]byte, 0, len(w)+1)
		out = append(out, addr<<1)
		out = append(out, w...)
		for len(out) > 0 {
			n := len(out)
			if n > streamChunkMax {
				n = streamChunkMax
			}
			sb.ackOp(append([]byte{i2cOut | byte(n)}, out[:n]...)...)
			out = out[n:]
		}
	}
	if len(r) > 0 {
		sb.op(0, i2cStart)
		sb.ackOp(i2cOut|1, addr<<1|1)
		rem := len(r)
		for rem > 1 {
			n := rem - 1
			if n > streamChunkMax {
				n = streamChunkMax
			}
			sb.op(n, i2cIn|byte(n))
			rem -= n
		}
		// The final byte is clocked without an acknowledge.
		sb.op(1, i2cIn)
	}
	sb.op(0, i2cStop)
	cmds, err := sb.finish()
	if err != nil {
		return err
	}

	got := 0
	for _, c := range cmds {
		if c.expect == 0 && !c.ack {
			if err = d.transport.Write(ctx, d.handle, c.bytes); err != nil {
				return fmt.Errorf("i2c transfer with %#02x failed: %w", addr, err)
			}
			continue
		}
		resp, err := d.transport.WriteRead(ctx, d.handle, c.bytes, PacketLength)
		if err != nil {
			return fmt.Errorf("i2c transfer with %#02x failed: %w", addr, err)
		}
		if c.ack {
			acked, aerr := decodeAck(resp)
			if aerr != nil {
				return fmt.Errorf("i2c transfer with %#02x: %w", addr, aerr)
			}
			if !acked {
				return fmt.Errorf("no acknowledge from %#02x: %w", addr, ErrNack)
			}
			continue
		}
		if len(resp) < c.expect {
			return fmt.Errorf("i2c read from %#02x returned %d of %d bytes: %w",
				addr, got+len(resp), len(r), ErrProtocol)
		}
		copy(r[got:], resp[:c.expect])
		got += c.expect
	}
	return nil
}

// ReadReg fills buf from a register of the peripheral at addr using a
// combined write-then-read transaction.
func (d *Device) ReadReg(ctx context.Context, addr, reg byte, buf []byte) error {
	return d.Tx(ctx, addr, []byte{reg}, buf)
}

// ReadRegByte reads a single register byte.
func (d *Device) ReadRegByte(ctx context.Context, addr, reg byte) (byte, error) {
	var buf [1]byte
	if err := d.Tx(ctx, addr, []byte{reg}, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// WriteReg writes data to a register of the peripheral at addr as one
// stream payload.
func (d *Device) WriteReg(ctx context.Context, addr, reg byte, data []byte) error {
	w := make([]byte, 0, len(data)+1)
	w = append(w, reg)
	w = append(w, data...)
	return d.Tx(ctx, addr, w, nil)
}

// WriteRegByte writes a single register byte.
func (d *Device) WriteRegByte(ctx context.Context, addr, reg, val byte) error {
	return d.Tx(ctx, addr, []byte{reg, val}, nil)
}

// Scan probes every 7-bit address and returns those that acknowledged, in
// ascending order. Each probe is a full start/address/stop cycle regardless
// of the acknowledge outcome; a missing acknowledge marks absence and is
// not an error.
func (d *Device) Scan(ctx context.Context) ([]byte, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if !d.opened {
		return nil, ErrClosed
	}
	var found []byte
	for addr := byte(0); addr < 127; addr++ {
		if err := d.transport.Write(ctx, d.handle, encodeI2CStart()); err != nil {
			return found, fmt.Errorf("i2c scan at %#02x: %w", addr, err)
		}
		acked, err := d.outCheckAck(ctx, addr<<1)
		if err != nil {
			return found, fmt.Errorf("i2c scan at %#02x: %w", addr, err)
		}
		if err = d.transport.Write(ctx, d.handle, encodeI2CStop()); err != nil {
			return found, fmt.Errorf("i2c scan at %#02x: %w", addr, err)
		}
		if acked {
			found = append(found, addr)
		}
	}
	return found, nil
}

// outCheckAck clocks one byte out and reports whether the peripheral
// acknowledged it.
func (d *Device) outCheckAck(ctx context.Context, b byte) (bool, error) {
	resp, err := d.transport.WriteRead(ctx, d.handle, encodeI2COut(b), PacketLength)
	if err != nil {
		return false, err
	}
	return decodeAck(resp)
}
