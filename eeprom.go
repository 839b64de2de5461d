package ch341

import (
	"context"
	"fmt"
	"time"
)

// EEPROMType is the closed enumeration of supported 24Cxx capacity classes.
// The class selects the addressing mode used on the bus: parts up to the
// 24C16 take a single address byte with the block bits folded into the
// device address, larger parts take a two byte address.
type EEPROMType uint8

const (
	EEPROM24C01 EEPROMType = iota + 1
	EEPROM24C02
	EEPROM24C04
	EEPROM24C08
	EEPROM24C16
	EEPROM24C32
	EEPROM24C64
	EEPROM24C128
	EEPROM24C256
	EEPROM24C512
	EEPROM24C1024
	EEPROM24C2048
	EEPROM24C4096
)

var eepromNames = map[EEPROMType]string{
	EEPROM24C01:   "24C01",
	EEPROM24C02:   "24C02",
	EEPROM24C04:   "24C04",
	EEPROM24C08:   "24C08",
	EEPROM24C16:   "24C16",
	EEPROM24C32:   "24C32",
	EEPROM24C64:   "24C64",
	EEPROM24C128:  "24C128",
	EEPROM24C256:  "24C256",
	EEPROM24C512:  "24C512",
	EEPROM24C1024: "24C1024",
	EEPROM24C2048: "24C2048",
	EEPROM24C4096: "24C4096",
}

func (t EEPROMType) String() string {
	if name, ok := eepromNames[t]; ok {
		return name
	}
	return fmt.Sprintf("EEPROMType(%d)", uint8(t))
}

// ParseEEPROMType resolves a capacity class from its part name.
func ParseEEPROMType(name string) (EEPROMType, error) {
	for t, n := range eepromNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown eeprom type %q", name)
}

func (t EEPROMType) valid() bool {
	return t >= EEPROM24C01 && t <= EEPROM24C4096
}

// Capacity reports the part size in bytes.
func (t EEPROMType) Capacity() int {
	if !t.valid() {
		return 0
	}
	// 24C01 holds 1 Kbit, each class doubles it.
	return 128 << (t - EEPROM24C01)
}

// PageSize reports the write page length in bytes.
func (t EEPROMType) PageSize() int {
	switch {
	case t <= EEPROM24C02:
		return 8
	case t <= EEPROM24C16:
		return 16
	case t <= EEPROM24C64:
		return 32
	case t <= EEPROM24C256:
		return 64
	case t <= EEPROM24C512:
		return 128
	default:
		return 256
	}
}

func (t EEPROMType) addrBytes() int {
	if t <= EEPROM24C16 {
		return 1
	}
	return 2
}

// Base bus address of the 24Cxx family.
const eepromBusAddr = 0x50

// Write cycle time after each page per the 24Cxx datasheets.
const eepromWriteCycle = 5 * time.Millisecond

// SetEEPROMType selects the capacity class used by the EEPROM operations.
// It must be called before the first read or write.
func (d *Device) SetEEPROMType(t EEPROMType) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if !t.valid() {
		return fmt.Errorf("eeprom type %d out of range", t)
	}
	d.eeprom = t
	return nil
}

// EEPROMRead fills buf starting at the given memory address.
func (d *Device) EEPROMRead(ctx context.Context, addr int, buf []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if !d.opened {
		return ErrClosed
	}
	if err := d.eepromBounds(addr, len(buf)); err != nil {
		return err
	}
	for len(buf) > 0 {
		dev, w, span := d.eepromAddress(addr)
		if span > len(buf) {
			span = len(buf)
		}
		if err := d.tx(ctx, dev, w, buf[:span]); err != nil {
			return fmt.Errorf("eeprom read at %#04x: %w", addr, err)
		}
		addr += span
		buf = buf[span:]
	}
	return nil
}

// EEPROMWrite stores data starting at the given memory address, split into
// device pages with the write cycle delay observed after each one.
func (d *Device) EEPROMWrite(ctx context.Context, addr int, data []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if !d.opened {
		return ErrClosed
	}
	if err := d.eepromBounds(addr, len(data)); err != nil {
		return err
	}
	page := d.eeprom.PageSize()
	for len(data) > 0 {
		span := page - addr%page
		if span > len(data) {
			span = len(data)
		}
		dev, w, _ := d.eepromAddress(addr)
		w = append(w, data[:span]...)
		if err := d.tx(ctx, dev, w, nil); err != nil {
			return fmt.Errorf("eeprom write at %#04x: %w", addr, err)
		}
		time.Sleep(eepromWriteCycle)
		addr += span
		data = data[span:]
	}
	return nil
}

func (d *Device) eepromBounds(addr, length int) error {
	if !d.eeprom.valid() {
		return ErrNotConfigured
	}
	if addr < 0 || addr+length > d.eeprom.Capacity() {
		return fmt.Errorf("range %#04x+%d exceeds %s capacity", addr, length, d.eeprom)
	}
	return nil
}

// eepromAddress resolves the bus address and the address preamble for a
// memory location, and reports how many bytes remain in its addressing
// block.
func (d *Device) eepromAddress(addr int) (byte, []byte, int) {
	if d.eeprom.addrBytes() == 1 {
		dev := byte(eepromBusAddr) | byte(addr>>8)&0x07
		return dev, []byte{byte(addr)}, 256 - addr%256
	}
	dev := byte(eepromBusAddr) | byte(addr>>16)&0x07
	return dev, []byte{byte(addr >> 8), byte(addr)}, 65536 - addr%65536
}
