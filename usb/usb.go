// Package usb provides a Transport for the ch341 package backed by the
// hidraw interface of github.com/karalabe/hid.
//
// The bridge exposes one report pipe per device; every stream command goes
// out as a single report and responses are collected with a short settle
// delay, the same exchange pattern the vendor tool uses.
package usb

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"

	"github.com/mklimuk/ch341"
)

const VendorID = 0x1A86
const ProductID = 0x5512

// UIO command grammar used for the coalesced GPIO register and the input
// state sample. The operand of the direction and output ops travels in the
// low six bits of the op-code byte.
const (
	cmdUIOStream byte = 0xAB

	uioIn  byte = 0x00
	uioDir byte = 0x40
	uioOut byte = 0x80
	uioEnd byte = 0x20
)

// Input state bit signalling an edge on the interrupt line.
const intStatusBit = 1 << 10

const defaultResponseWait = 10 * time.Millisecond
const defaultPollInterval = 10 * time.Millisecond

// Bridge implements ch341.Transport over HID devices enumerated by their
// vendor/product identifiers.
type Bridge struct {
	mx           sync.Mutex
	devs         map[ch341.Handle]*hid.Device
	infos        map[ch341.Handle]hid.DeviceInfo
	watch        map[ch341.Handle]chan struct{}
	responseWait time.Duration
	pollInterval time.Duration
}

var _ ch341.Transport = &Bridge{}
var _ ch341.Identifier = &Bridge{}

func New() *Bridge {
	return &Bridge{
		devs:         make(map[ch341.Handle]*hid.Device),
		infos:        make(map[ch341.Handle]hid.DeviceInfo),
		watch:        make(map[ch341.Handle]chan struct{}),
		responseWait: defaultResponseWait,
		pollInterval: defaultPollInterval,
	}
}

func (b *Bridge) Open(ctx context.Context, index int) (ch341.Handle, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	infos := hid.Enumerate(VendorID, ProductID)
	if index < 0 || index >= len(infos) {
		return -1, fmt.Errorf("no bridge with index %d (%d found)", index, len(infos))
	}
	dev, err := infos[index].Open()
	if err != nil {
		return -1, fmt.Errorf("error opening device: %w", err)
	}
	h := ch341.Handle(index)
	if old, ok := b.devs[h]; ok {
		_ = old.Close()
	}
	b.devs[h] = dev
	b.infos[h] = infos[index]
	return h, nil
}

// ICVersion reports the device release number from the USB descriptor.
func (b *Bridge) ICVersion(ctx context.Context, h ch341.Handle) (byte, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	info, ok := b.infos[h]
	if !ok {
		return 0, fmt.Errorf("unknown handle %d", h)
	}
	return byte(info.Release >> 8), nil
}

// Name reports the product string from the USB descriptor.
func (b *Bridge) Name(ctx context.Context, h ch341.Handle) (string, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	info, ok := b.infos[h]
	if !ok {
		return "", fmt.Errorf("unknown handle %d", h)
	}
	if info.Product != "" {
		return info.Product, nil
	}
	return info.Path, nil
}

func (b *Bridge) Close(h ch341.Handle) {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.stopWatch(h)
	if dev, ok := b.devs[h]; ok {
		_ = dev.Close()
		delete(b.devs, h)
	}
	delete(b.infos, h)
}

func (b *Bridge) Reset(ctx context.Context, h ch341.Handle) error {
	// A full chip reset is a vendor control transfer the report pipe does
	// not carry; releasing the data lines is the closest equivalent here.
	return b.SetGPIO(ctx, h, 0, 0)
}

func (b *Bridge) SetExclusive(ctx context.Context, h ch341.Handle, exclusive bool) error {
	// hidraw handles are exclusive per open descriptor already.
	b.mx.Lock()
	defer b.mx.Unlock()
	if _, ok := b.devs[h]; !ok {
		return fmt.Errorf("unknown handle %d", h)
	}
	return nil
}

func (b *Bridge) Write(ctx context.Context, h ch341.Handle, cmd []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	dev, ok := b.devs[h]
	if !ok {
		return fmt.Errorf("unknown handle %d", h)
	}
	return b.send(dev, cmd)
}

func (b *Bridge) WriteRead(ctx context.Context, h ch341.Handle, cmd []byte, maxIn int) ([]byte, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	dev, ok := b.devs[h]
	if !ok {
		return nil, fmt.Errorf("unknown handle %d", h)
	}
	if err := b.send(dev, cmd); err != nil {
		return nil, err
	}
	if err := settle(ctx, b.responseWait); err != nil {
		return nil, err
	}
	resp := make([]byte, maxIn)
	n, err := dev.Read(resp)
	if err != nil {
		return nil, fmt.Errorf("could not read response: %w", err)
	}
	slog.Debug("bridge response", "data", hex.EncodeToString(resp[:n]))
	return resp[:n], nil
}

func (b *Bridge) GetInputState(ctx context.Context, h ch341.Handle) (uint32, error) {
	resp, err := b.WriteRead(ctx, h, []byte{cmdUIOStream, uioIn, uioEnd}, 4)
	if err != nil {
		return 0, err
	}
	var state uint32
	for _, v := range resp {
		state = state<<8 | uint32(v)
	}
	return state, nil
}

func (b *Bridge) SetGPIO(ctx context.Context, h ch341.Handle, dir, out byte) error {
	cmd := []byte{
		cmdUIOStream,
		uioOut | out&0x3F,
		uioDir | dir&0x3F,
		uioEnd,
	}
	return b.Write(ctx, h, cmd)
}

// RegisterInterrupt watches the interrupt status bit and reports rising
// edges to fn with the full input state word. A nil fn stops the watcher.
func (b *Bridge) RegisterInterrupt(h ch341.Handle, fn func(status uint32)) error {
	b.mx.Lock()
	if _, ok := b.devs[h]; !ok {
		b.mx.Unlock()
		return fmt.Errorf("unknown handle %d", h)
	}
	b.stopWatch(h)
	if fn == nil {
		b.mx.Unlock()
		return nil
	}
	stop := make(chan struct{})
	b.watch[h] = stop
	b.mx.Unlock()

	go b.watchInterrupt(h, fn, stop)
	return nil
}

func (b *Bridge) watchInterrupt(h ch341.Handle, fn func(status uint32), stop chan struct{}) {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()
	var last uint32
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		state, err := b.GetInputState(context.Background(), h)
		if err != nil {
			continue
		}
		if state&intStatusBit != 0 && last&intStatusBit == 0 {
			fn(state)
		}
		last = state
	}
}

// stopWatch must run under the bridge mutex.
func (b *Bridge) stopWatch(h ch341.Handle) {
	if stop, ok := b.watch[h]; ok {
		close(stop)
		delete(b.watch, h)
	}
}

// settle waits for the device to prepare its response, giving up early when
// the context is cancelled.
func settle(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (b *Bridge) send(dev *hid.Device, cmd []byte) error {
	slog.Debug("bridge command", "data", hex.EncodeToString(cmd))
	n, err := dev.Write(cmd)
	if err != nil {
		return fmt.Errorf("could not write command: %w", err)
	}
	if n != len(cmd) {
		return fmt.Errorf("short write: %d of %d", n, len(cmd))
	}
	return nil
}
