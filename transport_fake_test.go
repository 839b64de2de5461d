package ch341

import "context"

// fakePeriph models one I2C peripheral with byte addressable memory and a
// register pointer of configurable width.
type fakePeriph struct {
	mem      []byte
	ptrBytes int
	ptr      int
}

func newFakePeriph(size, ptrBytes int) *fakePeriph {
	return &fakePeriph{mem: make([]byte, size), ptrBytes: ptrBytes}
}

func (p *fakePeriph) commit(w []byte) {
	if len(w) == 0 {
		return
	}
	n := p.ptrBytes
	if n > len(w) {
		n = len(w)
	}
	p.ptr = 0
	for _, b := range w[:n] {
		p.ptr = p.ptr<<8 | int(b)
	}
	for _, b := range w[n:] {
		p.mem[p.ptr%len(p.mem)] = b
		p.ptr++
	}
}

func (p *fakePeriph) read() byte {
	b := p.mem[p.ptr%len(p.mem)]
	p.ptr++
	return b
}

// fakeTransport interprets the stream command grammar the way the chip
// does, against an in-memory set of peripherals, and records every call so
// tests can assert ordering and coalesced register pushes.
type fakeTransport struct {
	openHandle   Handle
	openErr      error
	writeErr     error
	writeReadErr error

	periphs      map[byte]*fakePeriph
	spiLoop      func([]byte) []byte
	inputState   uint32
	truncateResp int
	gpioErr      error
	gpioFailAt   int

	ops        []string
	gpioPushes [][2]byte
	cfgPushes  []byte
	frames     [][]byte
	calls      int

	callback func(uint32)

	// in-flight transaction state
	started  bool
	addrSet  bool
	curAddr  byte
	readMode bool
	wbuf     []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		openHandle: 1,
		periphs:    map[byte]*fakePeriph{},
	}
}

func (t *fakeTransport) addPeriph(addr byte, size, ptrBytes int) *fakePeriph {
	p := newFakePeriph(size, ptrBytes)
	t.periphs[addr] = p
	return p
}

func (t *fakeTransport) Open(ctx context.Context, index int) (Handle, error) {
	t.ops = append(t.ops, "open")
	return t.openHandle, t.openErr
}

func (t *fakeTransport) Close(h Handle) {
	t.ops = append(t.ops, "close")
}

func (t *fakeTransport) Reset(ctx context.Context, h Handle) error {
	t.ops = append(t.ops, "reset")
	return nil
}

func (t *fakeTransport) SetExclusive(ctx context.Context, h Handle, exclusive bool) error {
	if exclusive {
		t.ops = append(t.ops, "exclusive-on")
	} else {
		t.ops = append(t.ops, "exclusive-off")
	}
	return nil
}

func (t *fakeTransport) Write(ctx context.Context, h Handle, cmd []byte) error {
	t.calls++
	t.ops = append(t.ops, "write")
	if t.writeErr != nil {
		return t.writeErr
	}
	t.exec(cmd)
	return nil
}

func (t *fakeTransport) WriteRead(ctx context.Context, h Handle, cmd []byte, maxIn int) ([]byte, error) {
	t.calls++
	t.ops = append(t.ops, "writeread")
	if t.writeReadErr != nil {
		return nil, t.writeReadErr
	}
	resp := t.exec(cmd)
	if len(resp) > maxIn {
		resp = resp[:maxIn]
	}
	if t.truncateResp > 0 && len(resp) > t.truncateResp {
		resp = resp[:t.truncateResp]
	}
	return resp, nil
}

func (t *fakeTransport) GetInputState(ctx context.Context, h Handle) (uint32, error) {
	t.calls++
	t.ops = append(t.ops, "input")
	return t.inputState, nil
}

func (t *fakeTransport) SetGPIO(ctx context.Context, h Handle, dir, out byte) error {
	t.calls++
	t.ops = append(t.ops, "gpio")
	t.gpioPushes = append(t.gpioPushes, [2]byte{dir, out})
	if t.gpioErr != nil && len(t.gpioPushes) == t.gpioFailAt {
		return t.gpioErr
	}
	return nil
}

func (t *fakeTransport) RegisterInterrupt(h Handle, fn func(status uint32)) error {
	if fn == nil {
		t.ops = append(t.ops, "intr-clear")
	} else {
		t.ops = append(t.ops, "intr-set")
	}
	t.callback = fn
	return nil
}

func (t *fakeTransport) fire(status uint32) {
	if t.callback != nil {
		t.callback(status)
	}
}

func (t *fakeTransport) lastGPIO() [2]byte {
	if len(t.gpioPushes) == 0 {
		return [2]byte{}
	}
	return t.gpioPushes[len(t.gpioPushes)-1]
}

// exec interprets one stream command and produces its response bytes: data
// for IN phases, a single acknowledge status byte for pure output commands.
func (t *fakeTransport) exec(cmd []byte) []byte {
	if len(cmd) == 0 {
		return nil
	}
	if cmd[0] == cmdSPIStream {
		data := cmd[1:]
		t.frames = append(t.frames, append([]byte(nil), data...))
		if t.spiLoop != nil {
			return t.spiLoop(data)
		}
		return append([]byte(nil), data...)
	}
	if cmd[0] != cmdI2CStream {
		return nil
	}
	var resp []byte
	hadOut := false
	hadIn := false
	lastAck := byte(0x00)
	i := 1
	for i < len(cmd) {
		op := cmd[i]
		switch {
		case op == i2cEnd:
			i = len(cmd)
			continue
		case op == i2cStart:
			t.commit()
			t.started = true
			t.addrSet = false
			t.readMode = false
		case op == i2cStop:
			t.commit()
			t.started = false
		case op == i2cSet:
			t.cfgPushes = append(t.cfgPushes, cmd[i+1])
			i++
		case op&0xC0 == i2cIn:
			n := int(op & 0x3F)
			if n == 0 {
				n = 1
			}
			p := t.periphs[t.curAddr]
			for j := 0; j < n; j++ {
				if p == nil {
					resp = append(resp, 0xFF)
					continue
				}
				resp = append(resp, p.read())
			}
			hadIn = true
		case op&0xC0 == i2cOut:
			n := int(op & 0x3F)
			if n == 0 {
				n = 1
			}
			for j := 0; j < n; j++ {
				i++
				lastAck = t.outByte(cmd[i])
			}
			hadOut = true
		case op&0xF0 == i2cUs || op&0xF0 == i2cMs:
			// delays are ignored by the simulation
		}
		i++
	}
	if hadIn {
		return resp
	}
	if hadOut {
		return []byte{lastAck}
	}
	return nil
}

func (t *fakeTransport) outByte(b byte) byte {
	if t.started && !t.addrSet {
		t.curAddr = b >> 1
		t.addrSet = true
		t.readMode = b&1 == 1
		if _, ok := t.periphs[t.curAddr]; !ok {
			return 0x80
		}
		return 0x00
	}
	t.wbuf = append(t.wbuf, b)
	if _, ok := t.periphs[t.curAddr]; !ok {
		return 0x80
	}
	return 0x00
}

func (t *fakeTransport) commit() {
	if p, ok := t.periphs[t.curAddr]; ok && !t.readMode {
		p.commit(t.wbuf)
	}
	t.wbuf = nil
}
