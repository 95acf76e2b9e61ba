package mpegts

// esStream is one registered output stream on an elementary PID. The
// first stream on a PID gathers payloads; secondary streams (extra
// teletext or subtitle services) are fed copies of the same blocks.
type esStream struct {
	format     ESFormat
	sections   bool
	handle     StreamHandle
	registered bool

	// PES gathering state, used on the primary stream only.
	buf       []byte
	need      int // declared PES size, 0 while unknown or unbounded
	gathering bool
	tainted   bool
	discont   bool
	rap       bool

	// Section-mode streams reuse the PSI assembler without its
	// version gating.
	sec *psiDecoder
}

func newESStream(f ESFormat, sections bool) *esStream {
	s := &esStream{format: f, sections: sections}
	if sections {
		s.sec = newPSIDecoder(f.PID)
	}
	return s
}

type ccResult uint8

const (
	ccOK ccResult = iota
	ccDuplicate
	ccBroken
)

// checkContinuity advances the per-PID continuity counter and
// classifies the packet. The counter only advances on payload-bearing
// packets, a single repeated counter value is a legal duplicate, and
// an adaptation discontinuity flag legitimizes any jump.
func checkContinuity(e *pidEntry, pkt []byte) ccResult {
	if !hasPayload(pkt) {
		return ccOK
	}
	cc := continuityOf(pkt)
	prev := e.cc
	e.cc = cc
	switch {
	case prev == 0xFF:
		return ccOK
	case cc == prev:
		e.cc = prev
		return ccDuplicate
	case cc == (prev+1)&0x0F:
		return ccOK
	case discontinuityFlag(pkt):
		return ccOK
	default:
		return ccBroken
	}
}

// handleES routes one packet on an elementary PID into PES or section
// gathering. Continuity has already been policed in handlePacket.
func (d *Demuxer) handleES(e *pidEntry, pkt []byte) {
	primary := e.es[0]

	if transportError(pkt) {
		primary.tainted = true
	}
	if discontinuityFlag(pkt) {
		primary.discont = true
	}

	off := payloadOffset(pkt)
	if off >= len(pkt) || !hasPayload(pkt) {
		return
	}
	payload := pkt[off:]

	if primary.sections {
		primary.sec.push(payload, payloadUnitStart(pkt), func(section []byte) {
			if section[1]&0x80 != 0 && verifyCRC32(section) != nil {
				return
			}
			d.sendSection(e, section)
		})
		return
	}

	if payloadUnitStart(pkt) {
		d.flushPES(e)
		primary.gathering = true
		primary.rap = randomAccessFlag(pkt)
	}
	if !primary.gathering {
		// Mid-PES data with no start seen yet (tune-in).
		return
	}
	primary.buf = append(primary.buf, payload...)
	if primary.need == 0 && len(primary.buf) >= 6 {
		if n := int(primary.buf[4])<<8 | int(primary.buf[5]); n > 0 {
			primary.need = 6 + n
		}
	}
	// Bounded PES packets flush as soon as the declared size is
	// reached rather than waiting for the next unit start.
	if primary.need > 0 && len(primary.buf) >= primary.need {
		d.flushPES(e)
	}
}

// flushPES completes the gathered PES packet on a PID, hands the
// parsed payload to the sink, and resets the gathering state.
func (d *Demuxer) flushPES(e *pidEntry) {
	primary := e.es[0]
	if !primary.gathering || len(primary.buf) == 0 {
		primary.buf = primary.buf[:0]
		primary.need = 0
		return
	}

	data := primary.buf
	primary.buf = nil
	primary.need = 0
	primary.gathering = false

	block, ok := d.parsePESBlock(e, data)
	tainted, discont, rap := primary.tainted, primary.discont, primary.rap
	primary.tainted = false
	primary.discont = false
	primary.rap = false
	if !ok {
		return
	}
	block.Corrupted = tainted
	block.Discontinuity = discont
	block.RandomAccess = rap
	if primary.format.Codec == CodecOpus {
		d.sendOpusBlocks(e, block)
		return
	}
	d.sendBlock(e, block)
}

// sendBlock delivers one block to every registered stream on the PID,
// copying the payload for secondary registrations.
func (d *Demuxer) sendBlock(e *pidEntry, block *Block) {
	for i, es := range e.es {
		if !es.registered {
			continue
		}
		b := block
		if i > 0 {
			dup := *block
			dup.Data = append([]byte(nil), block.Data...)
			b = &dup
		}
		if err := d.out.Send(es.handle, b); err != nil {
			d.log.Warn("sink rejected block", "pid", es.format.PID, "error", err)
		}
	}
}

// sendSection delivers a completed section from a section-mode
// elementary stream, timestamped with the owning program's clock.
// SCTE-27 subtitles carry their own display time inside the section,
// which overrides the clock when present.
func (d *Demuxer) sendSection(e *pidEntry, section []byte) {
	block := &Block{
		PTS:  -1,
		DTS:  -1,
		Data: append([]byte(nil), section...),
	}
	if prg := d.programByNumber(e.owner); prg != nil && prg.pcr >= 0 {
		ticks := prg.pcr
		if e.es[0].format.Codec == CodecSCTE27 {
			ticks = scte27DisplayTicks(section, ticks)
		}
		block.PTS = pcrToMicros(ticks)
		block.DTS = block.PTS
	}
	d.sendBlock(e, block)
}

// scte27DisplayTicks extracts the truncated display_in_PTS from a
// subtitle_message section. The field is only 32 bits, so a value
// behind the reference clock means it has already wrapped once.
// Segmented messages carry the timestamp in the first segment only.
func scte27DisplayTicks(section []byte, ref int64) int64 {
	if len(section) < 10 || section[0] != 0xC6 {
		return ref
	}
	offset := 4
	if section[3]&0x40 != 0 { // segmentation_overlay_included
		if int(section[7]&0x0F)<<8|int(section[8]) != 0 {
			return ref
		}
		offset = 9
	}
	if len(section) <= offset+8 {
		return ref
	}
	if section[offset+3]&0x40 != 0 { // display immediately
		return ref
	}
	displayIn := int64(section[offset+4])<<24 |
		int64(section[offset+5])<<16 |
		int64(section[offset+6])<<8 |
		int64(section[offset+7])
	if displayIn < ref {
		displayIn += 1 << 32
	}
	return displayIn
}
