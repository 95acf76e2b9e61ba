package mpegts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// demuxBatchPackets is how many packets one Demux call processes.
const demuxBatchPackets = 100

// defaultSeekToleranceTicks is 500ms in 90 kHz ticks.
const defaultSeekToleranceTicks = 45_000

// Demuxer reads a transport stream from a Source, reassembles its
// programs and elementary streams, and delivers them to an Output.
// All demuxing runs on the goroutine calling Demux; only the
// descrambling key state is safe to touch concurrently.
type Demuxer struct {
	ctx context.Context
	src Source
	out Output
	log *slog.Logger

	packetSize int
	headerLen  int
	forcedSize int
	reader     *packetReader

	pids     *pidTable
	programs map[uint16]*program
	meta     metaState

	aribMode     ARIBMode
	aribDetected bool
	splitES      bool
	trustPCR     bool

	userDefined bool
	userPMTSet  bool
	userPMTSpec string
	esCount     int
	waitES      bool
	closed      bool

	// Clock state, in 90 kHz ticks.
	first            clockSample
	last             clockSample
	samples          []clockSample
	current          int64
	clockProgram     int
	forceBytePercent bool
	seekTolerance    int64

	// Wall-clock anchors from the DVB time and event tables.
	netTime     int64
	netTimePos  int64
	eventStart  int64
	eventLength int64

	csaMu          sync.Mutex
	descrambler    Descrambler
	csaDecryptSize int
}

// NewDemuxer opens a transport stream: it detects the packet framing,
// wires the well-known PSI PIDs, applies any manual program map, and
// probes the stream clock when the source supports fast seeking.
func NewDemuxer(ctx context.Context, src Source, out Output, opts ...func(*Demuxer)) (*Demuxer, error) {
	d := &Demuxer{
		ctx:            ctx,
		src:            src,
		out:            out,
		log:            slog.Default(),
		pids:           newPIDTable(),
		programs:       make(map[uint16]*program),
		first:          clockSample{pcr: -1},
		last:           clockSample{pcr: -1},
		current:        -1,
		clockProgram:   -1,
		seekTolerance:  defaultSeekToleranceTicks,
		csaDecryptSize: PacketSize188,
		waitES:         true,
		splitES:        true,
		trustPCR:       true,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With("component", "ts-demuxer")
	if !d.trustPCR {
		d.forceBytePercent = true
	}

	size, headerLen, skip, err := detectPacketSize(src, d.forcedSize)
	if err != nil {
		return nil, err
	}
	d.packetSize = size
	d.headerLen = headerLen
	d.reader = newPacketReader(src, size, headerLen, d.log)
	if skip > 0 {
		if err := d.reader.discard(skip); err != nil {
			return nil, fmt.Errorf("mpegts: skip leading garbage: %w", err)
		}
	}
	d.log.Info("transport stream opened", "packet_size", size,
		"m2ts", headerLen > 0, "size_bytes", src.Size())

	d.pids.setPSI(pidPAT, -1)
	d.pids.setPSI(pidSDT, -1)
	d.pids.setPSI(pidEIT, -1)
	d.pids.setPSI(pidTDT, -1)

	if d.userPMTSet {
		if err := d.applyUserPMT(d.userPMTSpec); err != nil {
			return nil, err
		}
	}

	if src.CanFastSeek() && d.trustPCR {
		d.probeClock()
	}
	return d, nil
}

// DemuxerOptLogger sets the logger; nil keeps slog.Default().
func DemuxerOptLogger(log *slog.Logger) func(*Demuxer) {
	return func(d *Demuxer) {
		if log != nil {
			d.log = log
		}
	}
}

// DemuxerOptPacketSize forces the packet framing (188, 192 or 204)
// when probing is inconclusive, for captures with noisy heads.
func DemuxerOptPacketSize(size int) func(*Demuxer) {
	return func(d *Demuxer) { d.forcedSize = size }
}

// ARIBMode selects how ARIB STD-B24 streams are handled. In ARIBAuto,
// the default, ARIB interpretation switches on when a PMT carries the
// fingerprint of a Japanese broadcast multiplex.
type ARIBMode int

const (
	ARIBAuto ARIBMode = iota
	ARIBEnabled
	ARIBDisabled
)

// DemuxerOptARIB overrides ARIB auto-detection: STD-B24 text decoding,
// data-component classification and caption tagging by component tag.
func DemuxerOptARIB(mode ARIBMode) func(*Demuxer) {
	return func(d *Demuxer) { d.aribMode = mode }
}

// DemuxerOptSplitES controls multi-service elementary PIDs. When true,
// the default, a teletext or DVB subtitle PID fans out into one stream
// per announced page. When false the PID stays a single stream and the
// raw descriptor payload travels as its Extradata.
func DemuxerOptSplitES(split bool) func(*Demuxer) {
	return func(d *Demuxer) { d.splitES = split }
}

// DemuxerOptTrustPCR controls whether the program clock references are
// believed. Some muxers stamp garbage PCRs; distrusting them skips the
// clock probe and leaves position and seeking byte-proportional.
func DemuxerOptTrustPCR(trust bool) func(*Demuxer) {
	return func(d *Demuxer) { d.trustPCR = trust }
}

// DemuxerOptBytePercentSeek prefers byte-proportional seeks over PCR
// bisection even when the clock is usable.
func DemuxerOptBytePercentSeek() func(*Demuxer) {
	return func(d *Demuxer) { d.forceBytePercent = true }
}

// DemuxerOptUserPMT declares the program layout manually, for streams
// that carry no PAT/PMT. The spec format is
// "pmtpid[:program]=espid:type[,espid:type...]".
func DemuxerOptUserPMT(spec string) func(*Demuxer) {
	return func(d *Demuxer) {
		d.userPMTSpec = spec
		d.userPMTSet = true
	}
}

// DemuxerOptDescrambler wires a packet cipher for scrambled streams.
// decryptSize limits how many payload bytes are decrypted per packet,
// 0 meaning the whole packet.
func DemuxerOptDescrambler(ds Descrambler, decryptSize int) func(*Demuxer) {
	return func(d *Demuxer) {
		d.descrambler = ds
		if decryptSize > 0 && decryptSize <= PacketSize188 {
			d.csaDecryptSize = decryptSize
		}
	}
}

// DemuxerOptSeekTolerance sets how close a PCR-bisection seek must
// land to its target before it is accepted.
func DemuxerOptSeekTolerance(tol time.Duration) func(*Demuxer) {
	return func(d *Demuxer) {
		if tol > 0 {
			d.seekTolerance = int64(tol) * 9 / 100_000 // ns to 90 kHz
		}
	}
}

// DemuxerOptProgram pins the clock reference to one program instead
// of the first that shows a PCR.
func DemuxerOptProgram(number uint16) func(*Demuxer) {
	return func(d *Demuxer) { d.clockProgram = int(number) }
}

// aribEnabled resolves the effective ARIB mode, folding in what
// auto-detection has seen so far.
func (d *Demuxer) aribEnabled() bool {
	switch d.aribMode {
	case ARIBEnabled:
		return true
	case ARIBAuto:
		return d.aribDetected
	}
	return false
}

// Demux processes one batch of packets, delivering whatever completes
// within it. It returns io.EOF once the stream is exhausted. During
// startup the batch ends early as soon as the first elementary stream
// registers, so callers get a usable stream list promptly.
func (d *Demuxer) Demux() error {
	if d.closed {
		return ErrStreamClosed
	}
	for i := 0; i < demuxBatchPackets; i++ {
		if err := d.ctx.Err(); err != nil {
			return err
		}
		pkt, err := d.reader.next()
		if err == io.EOF {
			d.flushAll()
			return io.EOF
		}
		if err != nil {
			return err
		}
		d.handlePacket(pkt)
		if d.waitES && d.esCount > 0 {
			d.waitES = false
			break
		}
	}
	return nil
}

// handlePacket dispatches one 188-byte packet.
func (d *Demuxer) handlePacket(pkt []byte) {
	pid := pidOf(pkt)
	if pid == pidPadding {
		return
	}
	e := d.pids.get(pid)
	e.seen = true

	if transportError(pkt) && e.kind == pidPSI {
		// A damaged section packet is worthless; media PIDs keep
		// the bytes and mark the block instead.
		return
	}

	if raw := extractPCR(pkt); raw >= 0 {
		d.handlePCR(pid, raw)
	}

	switch checkContinuity(e, pkt) {
	case ccDuplicate:
		// A repeated counter with payload is a transport-legal
		// retransmission; processing it twice would corrupt
		// reassembly on both PSI and ES PIDs.
		return
	case ccBroken:
		d.log.Debug("continuity break", "pid", pid, "cc", continuityOf(pkt))
		switch e.kind {
		case pidPSI:
			// A damaged section cannot be trusted at all; restart
			// assembly at the next unit start.
			e.psi.drop()
		case pidES:
			primary := e.es[0]
			if primary.sections {
				primary.sec.drop()
			} else {
				// Media payloads survive with a corruption mark.
				primary.tainted = true
			}
		}
	}

	scrambled := scramblingControl(pkt) != 0
	if scrambled && d.descramble(pkt) {
		scrambled = scramblingControl(pkt) != 0
	}
	if scrambled != e.scrambled {
		e.scrambled = scrambled
		for _, s := range e.es {
			if s.registered {
				d.out.SetStreamScrambled(s.handle, scrambled)
			}
		}
	}

	switch e.kind {
	case pidPSI:
		if scrambled {
			return
		}
		d.handlePSI(e, pkt)
	case pidES:
		if scrambled {
			// Undecryptable payloads would only poison the
			// reassembly buffers.
			return
		}
		d.handleES(e, pkt)
	}
}

// flushAll completes any partially gathered payloads, used at end of
// stream and on Close.
func (d *Demuxer) flushAll() {
	for pid := uint16(0); pid < pidCount; pid++ {
		e := d.pids.get(pid)
		if e.kind == pidES {
			d.flushPES(e)
		}
	}
}

// Close flushes pending payloads and tears down every program at the
// sink. The Source is not closed; the caller owns it.
func (d *Demuxer) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.flushAll()
	for num := range d.programs {
		d.teardownProgram(num)
	}
	return nil
}

// Position reports progress through the stream as a fraction. It
// prefers the clock timeline and falls back to byte proportion.
func (d *Demuxer) Position() float64 {
	if length := d.Length(); length > 0 {
		if t := d.Time(); t > 0 {
			return float64(t) / float64(length)
		}
	}
	if size := d.src.Size(); size > 0 {
		return float64(d.src.Tell()) / float64(size)
	}
	return 0
}

// Time reports the elapsed stream time in microseconds: clock-based
// when PCRs are flowing, event-based for broadcast captures with a
// network clock, and zero when neither is available.
func (d *Demuxer) Time() int64 {
	if d.current >= 0 && d.first.pcr >= 0 {
		return pcrToMicros(d.current - d.first.pcr)
	}
	if d.netTime > 0 && d.eventStart > 0 && d.netTime >= d.eventStart {
		return (d.netTime - d.eventStart) * 1_000_000
	}
	return 0
}

// Length reports the total stream duration in microseconds, zero when
// unknown.
func (d *Demuxer) Length() int64 {
	if d.clockTrusted() {
		return pcrToMicros(d.last.pcr - d.first.pcr)
	}
	if d.eventLength > 0 {
		return d.eventLength * 1_000_000
	}
	return 0
}

// PacketSize returns the detected framing period in bytes.
func (d *Demuxer) PacketSize() int { return d.packetSize }

// Programs returns the numbers of the currently announced programs.
func (d *Demuxer) Programs() []uint16 {
	out := make([]uint16, 0, len(d.programs))
	for num := range d.programs {
		out = append(out, num)
	}
	return out
}
