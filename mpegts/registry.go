package mpegts

// program tracks one service announced by the PAT.
type program struct {
	number uint16
	pmtPID uint16
	pcrPID uint16
	// pcr is the last clock value seen for this program in 90 kHz
	// ticks, wrap-corrected; -1 until one arrives.
	pcr int64
	iod *iod
	// userDefined programs come from a manual PMT spec and survive
	// PAT updates.
	userDefined bool
	epg         *EPG
}

// metaState sequences DVB metadata decoding: service tables attach
// only after a PAT proves this is a broadcast mux, event and time
// tables only after the SDT confirms it, and a PID collision disables
// the whole chain.
type metaState uint8

const (
	metaUnstarted metaState = iota
	metaPATSeen
	metaEnabled
	metaDisabled
)

func (d *Demuxer) programByNumber(num int) *program {
	if num < 0 {
		return nil
	}
	return d.programs[uint16(num)]
}

// applyPAT reconciles the program set with a new program association
// table: new programs get PMT decoders, moved programs re-home their
// decoder, and vanished programs are torn down.
func (d *Demuxer) applyPAT(p *pat) {
	if d.meta == metaUnstarted {
		d.meta = metaPATSeen
	}
	if d.userDefined {
		// A manual program map owns the layout.
		return
	}

	announced := make(map[uint16]uint16, len(p.entries))
	for _, e := range p.entries {
		announced[e.number] = e.pmtPID
	}

	for num := range d.programs {
		if _, ok := announced[num]; !ok && !d.programs[num].userDefined {
			d.teardownProgram(num)
		}
	}

	for _, e := range p.entries {
		d.validateMetaPID(e.pmtPID)
		prg := d.programs[e.number]
		if prg == nil {
			prg = &program{number: e.number, pmtPID: e.pmtPID, pcr: -1}
			d.programs[e.number] = prg
			d.pids.setPSI(e.pmtPID, int(e.number))
			d.log.Info("program announced", "program", e.number, "pmt_pid", e.pmtPID)
			continue
		}
		if prg.pmtPID != e.pmtPID {
			d.log.Info("program moved", "program", e.number,
				"old_pmt_pid", prg.pmtPID, "new_pmt_pid", e.pmtPID)
			d.releaseProgramPIDs(prg)
			prg.pmtPID = e.pmtPID
			d.pids.setPSI(e.pmtPID, int(e.number))
		}
	}
}

// esDecision is the explicit outcome of comparing a declared stream
// against what a PID currently carries.
type esDecision uint8

const (
	esNew esDecision = iota
	esKeep
	esReplace
)

func decideES(e *pidEntry, owner int, streams []*esStream) esDecision {
	if e.kind != pidES || e.owner != owner {
		return esNew
	}
	if len(e.es) != len(streams) {
		return esReplace
	}
	for i := range streams {
		cur, want := e.es[i].format, streams[i].format
		if cur.StreamType != want.StreamType || cur.Codec != want.Codec ||
			cur.Language != want.Language || cur.TeletextPage != want.TeletextPage ||
			cur.SubComposition != want.SubComposition {
			return esReplace
		}
	}
	return esKeep
}

// applyPMT reconciles one program's elementary streams with a new
// program map table version.
func (d *Demuxer) applyPMT(p *pmt) {
	prg := d.programs[p.program]
	if prg == nil {
		return
	}
	d.log.Info("program map update", "program", p.program,
		"pcr_pid", p.pcrPID, "streams", len(p.es))

	prg.pcrPID = p.pcrPID
	prg.iod = p.iod
	d.validateMetaPID(p.pcrPID)

	if d.aribMode == ARIBAuto && !d.aribDetected && p.aribFingerprint() {
		d.aribDetected = true
		d.log.Info("arib multiplex detected", "program", p.program,
			"ca_system", p.caSystem)
	}

	declared := make(map[uint16]bool, len(p.es))
	for i := range p.es {
		declared[p.es[i].pid] = true
	}

	// Streams this program owned that the new map no longer names.
	for pid := uint16(0); pid < pidCount; pid++ {
		e := d.pids.get(pid)
		if e.kind == pidES && e.owner == int(p.program) && !declared[pid] {
			d.teardownES(pid)
		}
	}

	for i := range p.es {
		es := &p.es[i]
		d.validateMetaPID(es.pid)
		streams := buildStreams(p, es, d.aribEnabled(), d.splitES)
		if streams == nil {
			d.log.Debug("unhandled stream type", "pid", es.pid,
				"stream_type", es.streamType)
			continue
		}
		e := d.pids.get(es.pid)
		switch decideES(e, int(p.program), streams) {
		case esKeep:
			continue
		case esReplace:
			d.teardownES(es.pid)
		case esNew:
			if e.kind == pidES {
				// Shared with another program; first owner wins.
				continue
			}
		}
		d.pids.setES(es.pid, int(p.program), streams)
		d.registerStreams(es.pid, streams)
	}
}

func (d *Demuxer) registerStreams(pid uint16, streams []*esStream) {
	for _, s := range streams {
		h, err := d.out.AddStream(s.format)
		if err != nil {
			d.log.Warn("sink refused stream", "pid", pid,
				"codec", s.format.Codec, "error", err)
			continue
		}
		s.handle = h
		s.registered = true
		d.esCount++
		d.log.Info("stream added", "pid", pid, "program", s.format.Program,
			"category", s.format.Category.String(), "codec", s.format.Codec)
	}
}

// teardownES flushes and retires every stream on one elementary PID.
func (d *Demuxer) teardownES(pid uint16) {
	e := d.pids.get(pid)
	if e.kind != pidES {
		return
	}
	d.flushPES(e)
	for _, s := range e.es {
		if s.registered {
			d.out.DelStream(s.handle)
			s.registered = false
			d.esCount--
		}
	}
	d.pids.release(pid)
}

// teardownProgram removes a program and everything it owns, reporting
// exactly one group removal to the sink.
func (d *Demuxer) teardownProgram(num uint16) {
	prg := d.programs[num]
	if prg == nil {
		return
	}
	d.log.Info("program removed", "program", num)
	d.releaseProgramPIDs(prg)
	delete(d.programs, num)
	d.out.DelGroup(num)
}

// releaseProgramPIDs frees the PMT and elementary PIDs owned by one
// program without removing the program itself.
func (d *Demuxer) releaseProgramPIDs(prg *program) {
	for pid := uint16(0); pid < pidCount; pid++ {
		e := d.pids.get(pid)
		if e.owner != int(prg.number) {
			continue
		}
		switch e.kind {
		case pidES:
			d.teardownES(pid)
		case pidPSI:
			d.pids.release(pid)
		}
	}
}

// validateMetaPID disables DVB metadata decoding when a program
// declares a PID that collides with the standard SDT/EIT/TDT slots,
// which means this mux does not follow the DVB allocation.
func (d *Demuxer) validateMetaPID(pid uint16) {
	if pid != pidSDT && pid != pidEIT && pid != pidTDT {
		return
	}
	if d.meta == metaDisabled {
		return
	}
	d.log.Warn("PID collides with DVB metadata slot, disabling SI decoding", "pid", pid)
	d.meta = metaDisabled
	for _, p := range [...]uint16{pidSDT, pidEIT, pidTDT} {
		if e := d.pids.get(p); e.kind == pidPSI && p != pid {
			d.pids.release(p)
		}
	}
}

// applySDT publishes service names and transitions the metadata state
// machine to fully enabled.
func (d *Demuxer) applySDT(s *sdt) {
	if d.meta == metaPATSeen {
		d.meta = metaEnabled
	}
	for _, svc := range s.services {
		if d.programs[svc.id] == nil {
			continue
		}
		d.out.SetGroupMeta(svc.id, GroupMeta{
			Name:      svc.name,
			Provider:  svc.provider,
			Status:    svc.runningStatus,
			Scrambled: svc.scrambled,
		})
		d.log.Debug("service described", "program", svc.id, "name", svc.name)
	}
}

// runningStatusRunning is the SDT/EIT running_status value for an
// event currently on air.
const runningStatusRunning = 4

// applyEIT merges a decoded event table into the program's EPG and,
// for the present/following table, anchors the wall-clock position
// estimate on the running event.
func (d *Demuxer) applyEIT(e *eit) {
	prg := d.programs[e.service]
	if prg == nil {
		return
	}
	if prg.epg == nil {
		prg.epg = &EPG{Program: e.service}
	}
	epg := prg.epg

	if e.presentFollowing() {
		for _, ev := range e.events {
			if ev.RunningStatus == runningStatusRunning && ev.Start > 0 {
				epg.Current = ev
				d.eventStart = ev.Start
				d.eventLength = int64(ev.Duration)
			}
		}
	} else {
		epg.Events = append(epg.Events, e.events...)
	}
	d.out.SetGroupEPG(e.service, epg)
}

// applyTDT records the network wall clock and where in the byte
// stream it was observed.
func (d *Demuxer) applyTDT(t int64) {
	d.netTime = t
	d.netTimePos = d.src.Tell()
}
