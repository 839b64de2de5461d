package ch341

import "context"

// Handle identifies an opened device instance on the transport side.
// Negative values are reserved by the vendor interface for open failures.
type Handle int32

// Transport moves raw command buffers between the host and the physical
// device. It is the only collaborator of the protocol layer; everything
// above it works on byte slices in the chip's stream command grammar.
//
// Implementations must be safe for use from a single goroutine at a time;
// the Device serializes access on its own mutex.
type Transport interface {
	// Open claims the device at the given enumeration index and returns
	// its handle. A negative handle is an open failure even when err is nil.
	Open(ctx context.Context, index int) (Handle, error)
	// Close releases the handle. It is a best effort call with no result.
	Close(h Handle)
	Reset(ctx context.Context, h Handle) error
	SetExclusive(ctx context.Context, h Handle, exclusive bool) error
	// Write sends one command buffer to the device.
	Write(ctx context.Context, h Handle, cmd []byte) error
	// WriteRead sends one command buffer and collects up to maxIn response
	// bytes in the same exchange.
	WriteRead(ctx context.Context, h Handle, cmd []byte, maxIn int) ([]byte, error)
	// GetInputState samples the live level of the chip's I/O lines.
	GetInputState(ctx context.Context, h Handle) (uint32, error)
	// SetGPIO pushes the direction and output masks in one atomic command.
	SetGPIO(ctx context.Context, h Handle, dir, out byte) error
	// RegisterInterrupt installs fn as the edge notification callback for
	// the handle, replacing any previous one. A nil fn clears the callback.
	// The transport may invoke fn from a thread it owns.
	RegisterInterrupt(h Handle, fn func(status uint32)) error
}

// Identifier is an optional transport extension exposing chip identity calls.
type Identifier interface {
	ICVersion(ctx context.Context, h Handle) (byte, error)
	Name(ctx context.Context, h Handle) (string, error)
}
