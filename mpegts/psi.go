package mpegts

// PSI/SI table identifiers handled by the dispatch switch.
const (
	tableIDPAT      = 0x00
	tableIDPMT      = 0x02
	tableIDSDT      = 0x42
	tableIDEITPF    = 0x4E
	tableIDEITSched = 0x50 // 0x50..0x5F, schedule for the actual TS
	tableIDEITMax   = 0x6F // end of the EIT schedule range
	tableIDTDT      = 0x70
	tableIDTOT      = 0x73

	maxSectionSize = 4096
)

// tableKey identifies one logical table instance within a PID: the
// table id plus the table_id_extension (program number, service id,
// transport stream id depending on the table).
type tableKey struct {
	tableID uint8
	ext     uint16
}

// pendingTable collects the numbered sections of one table version
// until the set 0..last is complete.
type pendingTable struct {
	version  uint8
	last     uint8
	sections map[uint8][]byte
}

func (p *pendingTable) complete() bool {
	return len(p.sections) == int(p.last)+1
}

// ordered returns the sections in section_number order.
func (p *pendingTable) ordered() [][]byte {
	out := make([][]byte, 0, len(p.sections))
	for n := 0; n <= int(p.last); n++ {
		if sec, ok := p.sections[uint8(n)]; ok {
			out = append(out, sec)
		}
	}
	return out
}

// sectionKey identifies one numbered section of a segmented table.
type sectionKey struct {
	key tableKey
	num uint8
}

// psiDecoder reassembles sections from transport payloads on one PID
// and tracks applied table versions so repeated sections are cheap to
// discard.
type psiDecoder struct {
	pid  uint16
	buf  []byte
	need int // 0 while the 3-byte section header is incomplete

	versions map[tableKey]uint8
	pending  map[tableKey]*pendingTable
	// segVersions gates segmented tables, which dispatch one section
	// at a time.
	segVersions map[sectionKey]uint8
}

func newPSIDecoder(pid uint16) *psiDecoder {
	return &psiDecoder{
		pid:         pid,
		versions:    make(map[tableKey]uint8),
		pending:     make(map[tableKey]*pendingTable),
		segVersions: make(map[sectionKey]uint8),
	}
}

// push feeds one packet payload into the assembler. emit is called
// once per completed section.
func (p *psiDecoder) push(payload []byte, pusi bool, emit func([]byte)) {
	if pusi {
		if len(payload) < 1 {
			return
		}
		ptr := int(payload[0])
		if 1+ptr > len(payload) {
			p.drop()
			return
		}
		// Bytes before the pointer finish the section in progress.
		if p.buf != nil {
			p.extend(payload[1:1+ptr], emit)
		}
		p.drop()
		p.begin(payload[1+ptr:], emit)
		return
	}
	if p.buf == nil {
		// Mid-section data with no start seen yet.
		return
	}
	p.extend(payload, emit)
}

// begin consumes zero or more sections starting at the head of b.
func (p *psiDecoder) begin(b []byte, emit func([]byte)) {
	for len(b) > 0 && b[0] != 0xFF {
		if len(b) < 3 {
			p.buf = append(p.buf[:0], b...)
			p.need = 0
			return
		}
		need := 3 + int(b[1]&0x0F)<<8 + int(b[2])
		if need > maxSectionSize {
			return
		}
		if len(b) < need {
			p.buf = append(p.buf[:0], b...)
			p.need = need
			return
		}
		emit(b[:need])
		b = b[need:]
	}
}

// extend appends continuation bytes to the partial section.
func (p *psiDecoder) extend(b []byte, emit func([]byte)) {
	p.buf = append(p.buf, b...)
	if p.need == 0 {
		if len(p.buf) < 3 {
			return
		}
		p.need = 3 + int(p.buf[1]&0x0F)<<8 + int(p.buf[2])
		if p.need > maxSectionSize {
			p.drop()
			return
		}
	}
	if len(p.buf) < p.need {
		return
	}
	section := p.buf[:p.need]
	rest := append([]byte(nil), p.buf[p.need:]...)
	emit(section)
	p.drop()
	p.begin(rest, emit)
}

func (p *psiDecoder) drop() {
	p.buf = nil
	p.need = 0
}

// gather validates a completed section and accumulates it into its
// table. It returns the full ordered section set once the table is
// complete and not a version already applied, and nil otherwise.
func (p *psiDecoder) gather(section []byte) (tableKey, [][]byte, bool) {
	tableID := section[0]
	syntax := section[1]&0x80 != 0

	if !syntax {
		// Short-form sections (TDT) carry no versioning and
		// dispatch as a single-section table. The TOT still ends
		// in a CRC despite the short form.
		if tableID == tableIDTOT && verifyCRC32(section) != nil {
			return tableKey{}, nil, false
		}
		return tableKey{tableID: tableID}, [][]byte{section}, true
	}

	if len(section) < 12 {
		return tableKey{}, nil, false
	}
	if verifyCRC32(section) != nil {
		return tableKey{}, nil, false
	}
	if section[5]&0x01 == 0 {
		// current_next_indicator clear: describes the future.
		return tableKey{}, nil, false
	}

	key := tableKey{
		tableID: tableID,
		ext:     uint16(section[3])<<8 | uint16(section[4]),
	}
	version := section[5] >> 1 & 0x1F
	if v, ok := p.versions[key]; ok && v == version {
		return tableKey{}, nil, false
	}

	num, last := section[6], section[7]
	if num > last {
		// A CRC can be valid over nonsense; a section claiming a
		// number past the announced last one is nonsense.
		return tableKey{}, nil, false
	}

	// EIT schedules arrive segmented: section numbers are sparse and
	// the full 0..last set may never show up. Each section dispatches
	// on its own, gated per section number.
	if tableID >= tableIDEITPF && tableID <= tableIDEITMax {
		sk := sectionKey{key: key, num: num}
		if v, ok := p.segVersions[sk]; ok && v == version {
			return tableKey{}, nil, false
		}
		p.segVersions[sk] = version
		return key, [][]byte{section}, true
	}

	pend := p.pending[key]
	if pend == nil || pend.version != version || pend.last != last {
		pend = &pendingTable{
			version:  version,
			last:     last,
			sections: make(map[uint8][]byte),
		}
		p.pending[key] = pend
	}
	pend.sections[num] = append([]byte(nil), section...)
	if !pend.complete() {
		return tableKey{}, nil, false
	}

	p.versions[key] = version
	delete(p.pending, key)
	return key, pend.ordered(), true
}

// forget clears the applied-version record for all tables on this
// decoder, forcing the next received version to dispatch again.
func (p *psiDecoder) forget() {
	p.versions = make(map[tableKey]uint8)
	p.pending = make(map[tableKey]*pendingTable)
	p.segVersions = make(map[sectionKey]uint8)
}

// handlePSI feeds a PSI packet payload through the decoder and
// dispatches any completed tables.
func (d *Demuxer) handlePSI(e *pidEntry, pkt []byte) {
	off := payloadOffset(pkt)
	if off >= len(pkt) || !hasPayload(pkt) {
		return
	}
	e.psi.push(pkt[off:], payloadUnitStart(pkt), func(section []byte) {
		key, sections, ok := e.psi.gather(section)
		if !ok {
			return
		}
		d.dispatchTable(e, key, sections)
	})
}

// dispatchTable routes one complete table to its decoder. The switch
// is closed: tables not named here are ignored, and the DVB
// metadata tables are gated on the broadcast-meta state machine.
func (d *Demuxer) dispatchTable(e *pidEntry, key tableKey, sections [][]byte) {
	pid := e.psi.pid
	switch {
	case pid == pidPAT && key.tableID == tableIDPAT:
		d.applyPAT(decodePAT(key.ext, sections))

	case key.tableID == tableIDPMT && e.owner >= 0 && int(key.ext) == e.owner:
		pmt, err := decodePMT(pid, key.ext, sections)
		if err != nil {
			d.log.Warn("malformed PMT", "pid", pid, "program", key.ext, "error", err)
			return
		}
		d.applyPMT(pmt)

	case pid == pidSDT && key.tableID == tableIDSDT:
		if d.meta != metaPATSeen && d.meta != metaEnabled {
			return
		}
		d.applySDT(decodeSDT(key.ext, sections))

	case pid == pidEIT && (key.tableID == tableIDEITPF ||
		key.tableID >= tableIDEITSched && key.tableID <= tableIDEITSched+0x0F):
		if d.meta != metaEnabled {
			return
		}
		d.applyEIT(decodeEIT(key.tableID, key.ext, sections, d.aribEnabled()))

	case pid == pidTDT && (key.tableID == tableIDTDT || key.tableID == tableIDTOT):
		if d.meta != metaEnabled {
			return
		}
		if t, ok := decodeTDT(sections[0]); ok {
			d.applyTDT(t)
		}

	default:
		d.log.Debug("ignoring table", "pid", pid, "table_id", key.tableID)
	}
}
