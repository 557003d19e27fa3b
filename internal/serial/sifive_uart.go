package serial

// SiFive UART register offsets (as on the FU540, "sifive,uart0"). Unlike
// the 16550's shared-register/DLAB scheme, txdata and rxdata are
// separate 32-bit registers whose top bit reports full/empty.
const (
	regTXData = 0x00
	regRXData = 0x04
)

const (
	txFullBit  = 1 << 31
	rxEmptyBit = 1 << 31
)

// SiFiveUART drives a FU540-style UART through a byte-addressed Bus. The
// real txdata/rxdata registers are 32-bit words whose top bit carries
// the full/empty flag; on this byte-addressed Bus that bit lands in the
// high-order byte at offset+3 (little-endian layout).
type SiFiveUART struct {
	bus  Bus
	base uint64
}

func (u *SiFiveUART) SendByte(b byte) bool {
	full := u.bus.ReadU8(u.base+regTXData+3)&(txFullBit>>24) != 0
	if full {
		return false
	}
	u.bus.WriteU8(u.base+regTXData, b)
	return true
}

func (u *SiFiveUART) ReadByte() (byte, bool) {
	empty := u.bus.ReadU8(u.base+regRXData+3)&(rxEmptyBit>>24) != 0
	if empty {
		return 0, false
	}
	return u.bus.ReadU8(u.base + regRXData), true
}
