package ch341

import "errors"

var (
	// ErrOpenFailed is returned when the transport cannot claim the device.
	ErrOpenFailed = errors.New("failed to open device")
	// ErrClosed is returned by bus operations on a device that is not open.
	ErrClosed = errors.New("device is not open")
	// ErrProtocol flags a malformed or short response from the device.
	ErrProtocol = errors.New("malformed or short response")
	// ErrNack is reported when a peripheral does not acknowledge a byte.
	// The bus scan treats it as absence, not as a failure.
	ErrNack = errors.New("no acknowledge from peripheral")
	// ErrPacketTooLarge flags a stream command that exceeds the chip packet.
	ErrPacketTooLarge = errors.New("stream command exceeds packet size")
	// ErrLengthMismatch flags dual channel buffers of different lengths.
	ErrLengthMismatch = errors.New("buffer length mismatch")
	// ErrNotConfigured is returned by EEPROM operations before a capacity
	// class was selected with SetEEPROMType.
	ErrNotConfigured = errors.New("eeprom type not selected")
)
