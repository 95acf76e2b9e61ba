package mpegts

// Raw packet accessors. All of them take a full 188-byte transport
// packet (any timestamp pre-header or parity suffix already stripped)
// and avoid allocation so the per-packet path stays cheap.

func pidOf(pkt []byte) uint16 {
	return uint16(pkt[1]&0x1F)<<8 | uint16(pkt[2])
}

func continuityOf(pkt []byte) uint8 {
	return pkt[3] & 0x0F
}

func transportError(pkt []byte) bool {
	return pkt[1]&0x80 != 0
}

func payloadUnitStart(pkt []byte) bool {
	return pkt[1]&0x40 != 0
}

// scramblingControl returns the two transport_scrambling_control bits.
func scramblingControl(pkt []byte) uint8 {
	return pkt[3] >> 6 & 0x03
}

func hasAdaptation(pkt []byte) bool {
	return pkt[3]&0x20 != 0
}

func hasPayload(pkt []byte) bool {
	return pkt[3]&0x10 != 0
}

// payloadOffset returns the byte index where the payload begins, or
// len(pkt) when the adaptation field is malformed and swallows the
// whole packet.
func payloadOffset(pkt []byte) int {
	off := 4
	if hasAdaptation(pkt) {
		off = 5 + int(pkt[4])
	}
	if off > len(pkt) {
		return len(pkt)
	}
	return off
}

// discontinuityFlag reports the adaptation field discontinuity
// indicator.
func discontinuityFlag(pkt []byte) bool {
	return hasAdaptation(pkt) && pkt[4] > 0 && pkt[5]&0x80 != 0
}

// randomAccessFlag reports the adaptation field random access
// indicator.
func randomAccessFlag(pkt []byte) bool {
	return hasAdaptation(pkt) && pkt[4] > 0 && pkt[5]&0x40 != 0
}

// extractPCR returns the 33-bit program clock reference base carried
// in the adaptation field, or -1 when the packet has none.
func extractPCR(pkt []byte) int64 {
	if !hasAdaptation(pkt) || pkt[4] < 7 || pkt[5]&0x10 == 0 {
		return -1
	}
	return int64(pkt[6])<<25 |
		int64(pkt[7])<<17 |
		int64(pkt[8])<<9 |
		int64(pkt[9])<<1 |
		int64(pkt[10])>>7
}
