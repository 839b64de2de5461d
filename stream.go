package ch341

// PacketLength is the chip's USB packet size. A single stream command,
// markers included, never exceeds it; longer transfers are split by the
// protocol engines into several commands.
const PacketLength = 32

// Stream command grammar of the CH341A. Every command opens with a stream
// marker, carries op-codes with their operands and closes with an end marker.
// The low six bits of the IN/OUT op-codes hold the data length of the chunk;
// a bare OUT sends one byte and reports the acknowledge bit, a bare IN clocks
// one byte without acknowledging it (the final byte of a read phase).
const (
	cmdI2CStream byte = 0xAA
	cmdSPIStream byte = 0xA8

	i2cStart byte = 0x74
	i2cStop  byte = 0x75
	i2cOut   byte = 0x80
	i2cIn    byte = 0xC0
	i2cSet   byte = 0x60
	i2cUs    byte = 0x40
	i2cMs    byte = 0x50
	i2cEnd   byte = 0x00

	delayMax = 0x0F

	// Data bytes one command can carry next to the marker, one op-code and
	// the end marker.
	streamChunkMax = PacketLength - 3
)

// Configuration word shared by the I2C and SPI engines. The chip accepts a
// single word covering both, so every mutator pushes the full combination.
const (
	cfgSpeedMask byte = 0x03
	cfgSPIDual   byte = 0x04
	cfgSPIMSB    byte = 0x80
)

func encodeI2CStart() []byte {
	return []byte{cmdI2CStream, i2cStart, i2cEnd}
}

func encodeI2CStop() []byte {
	return []byte{cmdI2CStream, i2cStop, i2cEnd}
}

// encodeI2COut requests the chip to clock out a single byte and report the
// acknowledge bit in the response.
func encodeI2COut(b byte) []byte {
	return []byte{cmdI2CStream, i2cOut, b, i2cEnd}
}

// encodeConfig carries the combined configuration word as the SET operand.
// The word shares bit 7 with the IN op-code space, embedding it in the
// op-code byte the way the speed-only vendor call does would be ambiguous.
func encodeConfig(cfg byte) []byte {
	return []byte{cmdI2CStream, i2cSet, cfg, i2cEnd}
}

// encodeDelayUS inserts a bus delay of up to 15 microseconds.
func encodeDelayUS(us int) []byte {
	if us < 0 {
		us = 0
	}
	if us > delayMax {
		us = delayMax
	}
	return []byte{cmdI2CStream, i2cUs | byte(us), i2cEnd}
}

// encodeDelayMS inserts a bus delay of up to 15 milliseconds.
func encodeDelayMS(ms int) []byte {
	if ms < 0 {
		ms = 0
	}
	if ms > delayMax {
		ms = delayMax
	}
	return []byte{cmdI2CStream, i2cMs | byte(ms), i2cEnd}
}

// decodeAck interprets the status returned after an output phase. The device
// echoes the acknowledge bit in the last byte of the response, bit 7 set
// meaning no acknowledge.
func decodeAck(resp []byte) (bool, error) {
	if len(resp) == 0 {
		return false, ErrProtocol
	}
	return resp[len(resp)-1]&0x80 == 0, nil
}

// encodeSPIFrame serializes one shift frame. With a second buffer given both
// channels are clocked together and must be of equal length; their bytes are
// interleaved on the wire. The whole frame has to fit one packet, callers
// chunk larger transfers.
func encodeSPIFrame(a, b []byte) ([]byte, error) {
	if b != nil && len(a) != len(b) {
		return nil, ErrLengthMismatch
	}
	n := len(a)
	if b != nil {
		n *= 2
	}
	if n+1 > PacketLength {
		return nil, ErrPacketTooLarge
	}
	frame := make([]byte, 0, n+1)
	frame = append(frame, cmdSPIStream)
	if b == nil {
		return append(frame, a...), nil
	}
	for i := range a {
		frame = append(frame, a[i], b[i])
	}
	return frame, nil
}

// deinterleaveSPI splits a dual channel response back into its two buffers.
func deinterleaveSPI(resp, a, b []byte) error {
	if len(resp) != len(a)+len(b) || len(a) != len(b) {
		return ErrProtocol
	}
	for i := range a {
		a[i] = resp[2*i]
		b[i] = resp[2*i+1]
	}
	return nil
}

// streamCmd is one packet sized command together with the number of data
// bytes the device is expected to return for it. Commands carrying output
// ops are marked so the executor reads their acknowledge status back.
type streamCmd struct {
	bytes  []byte
	expect int
	ack    bool
}

// streamBuilder assembles a chip transaction from low level bus ops,
// splitting it into packet sized stream commands. An op and its operands are
// never split across commands, and input ops never share a command with
// acknowledge checked output ops: their responses carry data only.
type streamBuilder struct {
	cmds []streamCmd
	cur  []byte
	in   int
	ack  bool
	err  error
}

func (s *streamBuilder) op(expect int, b ...byte) {
	if s.err != nil {
		return
	}
	if len(b)+2 > PacketLength {
		s.err = ErrPacketTooLarge
		return
	}
	// Room for the end marker has to remain, and the response to one
	// command is bounded by the packet size as well.
	if len(s.cur) > 0 && (len(s.cur)+len(b)+1 > PacketLength ||
		s.in+expect > PacketLength || (s.ack && expect > 0)) {
		s.flush()
	}
	if len(s.cur) == 0 {
		s.cur = append(s.cur, cmdI2CStream)
	}
	s.cur = append(s.cur, b...)
	s.in += expect
}

// ackOp queues an output op whose acknowledge status the device reports in
// the command response.
func (s *streamBuilder) ackOp(b ...byte) {
	s.op(0, b...)
	if s.err == nil {
		s.ack = true
	}
}

func (s *streamBuilder) flush() {
	if len(s.cur) == 0 {
		return
	}
	s.cur = append(s.cur, i2cEnd)
	s.cmds = append(s.cmds, streamCmd{bytes: s.cur, expect: s.in, ack: s.ack})
	s.cur = nil
	s.in = 0
	s.ack = false
}

func (s *streamBuilder) finish() ([]streamCmd, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.flush()
	return s.cmds, nil
}
