// Package ch341 drives the WCH CH341 USB to multi-protocol bridge, exposing
// its I2C, SPI and GPIO interfaces plus a 24Cxx EEPROM convenience layer.
//
// The package works on top of an injected Transport that carries raw command
// buffers to the device; the usb subpackage provides an HID backed
// implementation and tests substitute scripted fakes. All protocol encoding
// into the chip's stream command format happens here.
//
// Typical usage:
//
//	dev := ch341.New(transport, 0)
//	if err := dev.Open(ctx, true); err != nil {
//		return err
//	}
//	defer dev.Close(ctx)
//
//	addrs, err := dev.Scan(ctx)
package ch341
