package mpegts

import (
	"context"
	"encoding/binary"
	"log/slog"
	"testing"
)

// tsPacket builds one 188-byte transport packet. Short payloads are
// padded with adaptation field stuffing; pcr < 0 means no clock.
func tsPacket(pid uint16, cc uint8, pusi bool, payload []byte, pcr int64) []byte {
	pkt := make([]byte, PacketSize188)
	pkt[0] = syncByte
	pkt[1] = byte(pid >> 8 & 0x1F)
	if pusi {
		pkt[1] |= 0x40
	}
	pkt[2] = byte(pid)
	pkt[3] = cc & 0x0F

	off := 4
	if pcr >= 0 || len(payload) < PacketSize188-4 {
		pkt[3] |= 0x20
		afLen := PacketSize188 - 5 - len(payload)
		if pcr >= 0 && afLen < 7 {
			panic("tsPacket: payload too long for a PCR packet")
		}
		pkt[4] = byte(afLen)
		if afLen > 0 {
			pkt[5] = 0
			for i := 6; i < 5+afLen; i++ {
				pkt[i] = 0xFF
			}
			if pcr >= 0 {
				pkt[5] |= 0x10
				pkt[6] = byte(pcr >> 25)
				pkt[7] = byte(pcr >> 17)
				pkt[8] = byte(pcr >> 9)
				pkt[9] = byte(pcr >> 1)
				pkt[10] = byte(pcr&1)<<7 | 0x7E
				pkt[11] = 0
			}
		}
		off = 5 + afLen
	}
	if len(payload) > 0 {
		pkt[3] |= 0x10
		copy(pkt[off:], payload)
	}
	return pkt
}

// sectionPayload prefixes a section with a zero pointer field.
func sectionPayload(section []byte) []byte {
	return append([]byte{0x00}, section...)
}

// finishSection appends the CRC32 over data.
func finishSection(data []byte) []byte {
	crc := computeCRC32(data)
	out := make([]byte, len(data)+4)
	copy(out, data)
	binary.BigEndian.PutUint32(out[len(data):], crc)
	return out
}

// buildPAT constructs a valid PAT section with CRC32.
func buildPAT(tsID uint16, version uint8, programs []struct{ num, pid uint16 }) []byte {
	sectionLength := 5 + len(programs)*4 + 4

	data := make([]byte, 8+len(programs)*4)
	data[0] = tableIDPAT
	data[1] = 0xB0 | byte(sectionLength>>8)&0x0F // section_syntax_indicator=1
	data[2] = byte(sectionLength)
	data[3] = byte(tsID >> 8)
	data[4] = byte(tsID)
	data[5] = 0xC1 | version<<1&0x3E // reserved(2) + version + current_next(1)
	data[6] = 0x00                   // section_number
	data[7] = 0x00                   // last_section_number

	offset := 8
	for _, p := range programs {
		data[offset] = byte(p.num >> 8)
		data[offset+1] = byte(p.num)
		data[offset+2] = 0xE0 | byte(p.pid>>8)&0x1F
		data[offset+3] = byte(p.pid)
		offset += 4
	}
	return finishSection(data)
}

type pmtStream struct {
	streamType uint8
	pid        uint16
	descs      []byte
}

// buildPMT constructs a valid PMT section with CRC32.
func buildPMT(programNum, pcrPID uint16, version uint8, streams []pmtStream) []byte {
	esLen := 0
	for _, s := range streams {
		esLen += 5 + len(s.descs)
	}
	sectionLength := 9 + esLen + 4

	data := make([]byte, 12+esLen)
	data[0] = tableIDPMT
	data[1] = 0xB0 | byte(sectionLength>>8)&0x0F
	data[2] = byte(sectionLength)
	data[3] = byte(programNum >> 8)
	data[4] = byte(programNum)
	data[5] = 0xC1 | version<<1&0x3E
	data[6] = 0x00
	data[7] = 0x00
	data[8] = 0xE0 | byte(pcrPID>>8)&0x1F
	data[9] = byte(pcrPID)
	data[10] = 0xF0 // program_info_length = 0
	data[11] = 0x00

	offset := 12
	for _, s := range streams {
		data[offset] = s.streamType
		data[offset+1] = 0xE0 | byte(s.pid>>8)&0x1F
		data[offset+2] = byte(s.pid)
		data[offset+3] = 0xF0 | byte(len(s.descs)>>8)&0x0F
		data[offset+4] = byte(len(s.descs))
		copy(data[offset+5:], s.descs)
		offset += 5 + len(s.descs)
	}
	return finishSection(data)
}

// encodeTimestamp packs a 33-bit PTS/DTS with its marker bits.
func encodeTimestamp(marker byte, v int64) []byte {
	return []byte{
		marker<<4 | byte(v>>30&0x07)<<1 | 1,
		byte(v >> 22),
		byte(v>>15&0x7F)<<1 | 1,
		byte(v >> 7),
		byte(v&0x7F)<<1 | 1,
	}
}

// buildPES constructs an MPEG-2 form PES packet. bounded sets the
// PES_packet_length field; dts < 0 omits the DTS.
func buildPES(streamID byte, pts, dts int64, payload []byte, bounded bool) []byte {
	var header []byte
	flags := byte(0)
	if pts >= 0 {
		flags |= 0x80
		marker := byte(0x02)
		if dts >= 0 {
			flags |= 0x40
			marker = 0x03
		}
		header = append(header, encodeTimestamp(marker, pts)...)
		if dts >= 0 {
			header = append(header, encodeTimestamp(0x01, dts)...)
		}
	}

	pes := []byte{0x00, 0x00, 0x01, streamID, 0x00, 0x00, 0x80, flags, byte(len(header))}
	pes = append(pes, header...)
	pes = append(pes, payload...)
	if bounded {
		n := len(pes) - 6
		pes[4] = byte(n >> 8)
		pes[5] = byte(n)
	}
	return pes
}

// packetize splits a payload (pointer field included for sections)
// across as many packets as needed on one PID.
func packetize(pid uint16, startCC uint8, pusi bool, payload []byte) [][]byte {
	var out [][]byte
	cc := startCC
	first := true
	for len(payload) > 0 {
		n := len(payload)
		if n > 184 {
			n = 184
		}
		out = append(out, tsPacket(pid, cc, pusi && first, payload[:n], -1))
		payload = payload[n:]
		first = false
		cc = (cc + 1) & 0x0F
	}
	return out
}

// captureSink records every Output call for assertions.
type captureSink struct {
	next     StreamHandle
	formats  map[StreamHandle]ESFormat
	blocks   map[StreamHandle][]*Block
	removed  []StreamHandle
	meta     map[uint16]GroupMeta
	epg      map[uint16]*EPG
	pcrCalls  int
	lastPCR   int64
	delGroup  []uint16
	scrambled []bool
}

func newCaptureSink() *captureSink {
	return &captureSink{
		formats: make(map[StreamHandle]ESFormat),
		blocks:  make(map[StreamHandle][]*Block),
		meta:    make(map[uint16]GroupMeta),
		epg:     make(map[uint16]*EPG),
	}
}

func (c *captureSink) AddStream(f ESFormat) (StreamHandle, error) {
	h := c.next
	c.next++
	c.formats[h] = f
	return h, nil
}

func (c *captureSink) Send(h StreamHandle, b *Block) error {
	c.blocks[h] = append(c.blocks[h], b)
	return nil
}

func (c *captureSink) DelStream(h StreamHandle) {
	c.removed = append(c.removed, h)
	delete(c.formats, h)
}

func (c *captureSink) SetStreamScrambled(h StreamHandle, scrambled bool) {
	c.scrambled = append(c.scrambled, scrambled)
}

func (c *captureSink) SetGroupPCR(program uint16, pcrTime int64) {
	c.pcrCalls++
	c.lastPCR = pcrTime
}

func (c *captureSink) SetGroupMeta(program uint16, meta GroupMeta) {
	c.meta[program] = meta
}

func (c *captureSink) SetGroupEPG(program uint16, epg *EPG) {
	c.epg[program] = epg
}

func (c *captureSink) DelGroup(program uint16) {
	c.delGroup = append(c.delGroup, program)
}

// findByPID returns the handle of the registered stream on pid.
func (c *captureSink) findByPID(pid uint16) (StreamHandle, bool) {
	for h, f := range c.formats {
		if f.PID == pid {
			return h, true
		}
	}
	return 0, false
}

// newTestDemuxer builds a demuxer over an already-open source with a
// quiet logger.
func newTestDemuxer(t *testing.T, src Source, sink Output, opts ...func(*Demuxer)) *Demuxer {
	t.Helper()
	opts = append(opts, DemuxerOptLogger(slog.New(slog.DiscardHandler)))
	d, err := NewDemuxer(context.Background(), src, sink, opts...)
	if err != nil {
		t.Fatalf("NewDemuxer: %v", err)
	}
	return d
}
