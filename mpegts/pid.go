package mpegts

type pidKind uint8

const (
	pidFree pidKind = iota
	pidPSI
	pidES
)

// pidEntry tracks demuxer state for one of the 8192 possible PIDs.
type pidEntry struct {
	kind      pidKind
	seen      bool
	scrambled bool
	// cc is the last continuity counter, 0xFF before the first
	// payload-bearing packet.
	cc uint8
	// owner is the program number that declared this PID, or -1.
	owner int

	psi *psiDecoder
	// es holds the streams carried on this PID. Index 0 gathers the
	// payload; additional entries are secondary registrations fed
	// the same data (teletext services, split subtitle pages).
	es []*esStream
}

// pidTable is the flat per-PID state array. Direct indexing keeps the
// per-packet dispatch branch-free.
type pidTable struct {
	entries [pidCount]pidEntry
}

func newPIDTable() *pidTable {
	t := &pidTable{}
	for i := range t.entries {
		t.entries[i].cc = 0xFF
		t.entries[i].owner = -1
	}
	return t
}

func (t *pidTable) get(pid uint16) *pidEntry {
	return &t.entries[pid&0x1FFF]
}

// setPSI marks pid as carrying program-specific information and
// attaches a fresh section decoder if none exists.
func (t *pidTable) setPSI(pid uint16, owner int) *pidEntry {
	e := t.get(pid)
	e.kind = pidPSI
	e.owner = owner
	if e.psi == nil {
		e.psi = newPSIDecoder(pid)
	}
	return e
}

// setES marks pid as an elementary stream owned by a program.
func (t *pidTable) setES(pid uint16, owner int, streams []*esStream) *pidEntry {
	e := t.get(pid)
	e.kind = pidES
	e.owner = owner
	e.psi = nil
	e.es = streams
	e.cc = 0xFF
	return e
}

// release returns a PID to the free pool, dropping any decoder state.
// The continuity counter is kept so a reused PID does not raise a
// spurious discontinuity.
func (t *pidTable) release(pid uint16) {
	e := t.get(pid)
	e.kind = pidFree
	e.owner = -1
	e.psi = nil
	e.es = nil
}
