package serial

// NS16550a register offsets, carried from the teacher's UART register
// map (internal/hv/riscv/rv64/uart.go), DLAB-gated accesses aside since
// this driver only ever runs with DLAB clear.
const (
	regRBR = 0 // receive buffer (read)
	regTHR = 0 // transmit holding (write)
	regLSR = 5 // line status
)

const (
	lsrDataReady = 1 << 0
	lsrTHREmpty  = 1 << 5
)

// NS16550a drives a 16550-compatible UART through a byte-addressed Bus.
type NS16550a struct {
	bus  Bus
	base uint64
}

// SendByte checks the line status register once: if the transmit holding
// register is empty it writes b and returns true, otherwise it returns
// false without writing. It does not wait for the register to drain.
func (u *NS16550a) SendByte(b byte) bool {
	lsr := u.bus.ReadU8(u.base + regLSR)
	if lsr&lsrTHREmpty == 0 {
		return false
	}
	u.bus.WriteU8(u.base+regTHR, b)
	return true
}

// ReadByte returns the pending receive byte if the data-ready bit is set.
func (u *NS16550a) ReadByte() (byte, bool) {
	lsr := u.bus.ReadU8(u.base + regLSR)
	if lsr&lsrDataReady == 0 {
		return 0, false
	}
	return u.bus.ReadU8(u.base + regRBR), true
}
