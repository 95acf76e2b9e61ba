package mpegts

const pesStartCodeLen = 6

// pesHeader is the parsed fixed and optional PES header.
type pesHeader struct {
	streamID  uint8
	pts       int64 // 90 kHz ticks, -1 when absent
	dts       int64
	headerLen int // bytes to skip before the payload
}

// noOptionalHeader reports stream ids whose PES packets go straight
// from the length field to payload bytes.
func noOptionalHeader(streamID uint8) bool {
	switch streamID {
	case 0xBC, 0xBE, 0xBF, 0xF0, 0xF1, 0xF2, 0xF8, 0xFF:
		return true
	}
	return false
}

// parsePESHeader handles both header forms found in transport
// streams: the MPEG-2 flags form and the older MPEG-1 form with
// stuffing bytes and an optional STD buffer field.
func parsePESHeader(b []byte) (pesHeader, bool) {
	if len(b) < pesStartCodeLen || b[0] != 0 || b[1] != 0 || b[2] != 1 {
		return pesHeader{}, false
	}
	h := pesHeader{streamID: b[3], pts: -1, dts: -1}
	if noOptionalHeader(h.streamID) {
		h.headerLen = pesStartCodeLen
		return h, true
	}
	if len(b) < 9 {
		return pesHeader{}, false
	}

	if b[6]&0xC0 == 0x80 {
		// MPEG-2 form: flags and an explicit header length.
		flags := b[7] >> 6
		h.headerLen = 9 + int(b[8])
		if h.headerLen > len(b) {
			return pesHeader{}, false
		}
		if flags&0x02 != 0 && len(b) >= 14 {
			h.pts = decodeTimestamp(b[9:14])
		}
		if flags == 0x03 && len(b) >= 19 {
			h.dts = decodeTimestamp(b[14:19])
		}
		return h, true
	}

	// MPEG-1 form: stuffing bytes, optional STD buffer size, then
	// the timestamp marker.
	i := 6
	for i < len(b) && i < 6+16 && b[i] == 0xFF {
		i++
	}
	if i+1 < len(b) && b[i]&0xC0 == 0x40 {
		i += 2
	}
	if i >= len(b) {
		return pesHeader{}, false
	}
	switch b[i] >> 4 {
	case 0x02:
		if i+5 > len(b) {
			return pesHeader{}, false
		}
		h.pts = decodeTimestamp(b[i : i+5])
		i += 5
	case 0x03:
		if i+10 > len(b) {
			return pesHeader{}, false
		}
		h.pts = decodeTimestamp(b[i : i+5])
		h.dts = decodeTimestamp(b[i+5 : i+10])
		i += 10
	default:
		i++
	}
	h.headerLen = i
	return h, true
}

// decodeTimestamp extracts a 33-bit PTS or DTS from its 5-byte
// marker-bit encoding.
func decodeTimestamp(b []byte) int64 {
	return int64(b[0]>>1&0x07)<<30 |
		int64(b[1])<<22 |
		int64(b[2]>>1)<<15 |
		int64(b[3])<<7 |
		int64(b[4])>>1
}

// pcrToMicros converts a 90 kHz clock value to microseconds.
func pcrToMicros(ticks int64) int64 {
	return ticks * 100 / 9
}

// teletextPTSLagMicros substitutes for a missing teletext PTS: one
// frame behind the program clock.
const teletextPTSLagMicros = 40_000

// parsePESBlock turns a fully gathered PES packet into an output
// block, applying the codec-specific timestamp fixups.
func (d *Demuxer) parsePESBlock(e *pidEntry, data []byte) (*Block, bool) {
	h, ok := parsePESHeader(data)
	if !ok {
		d.log.Debug("malformed PES header", "pid", e.es[0].format.PID)
		return nil, false
	}
	if h.headerLen >= len(data) {
		return nil, false
	}

	block := &Block{PTS: -1, DTS: -1}
	if h.pts >= 0 {
		block.PTS = pcrToMicros(h.pts)
	}
	if h.dts >= 0 {
		block.DTS = pcrToMicros(h.dts)
	}
	block.Data = append([]byte(nil), data[h.headerLen:]...)

	// Teletext PES commonly omits timestamps; derive one from the
	// owning program's clock.
	if block.PTS < 0 && e.es[0].format.Codec == CodecTeletext {
		if prg := d.programByNumber(e.owner); prg != nil && prg.pcr >= 0 {
			block.PTS = pcrToMicros(prg.pcr) + teletextPTSLagMicros
		}
	}
	return block, true
}
