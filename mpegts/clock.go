package mpegts

import "io"

// pcrPeriod is the modulus of the 33-bit PCR base field.
const pcrPeriod = int64(1) << 33

// Streams outside this bitrate window get their end-of-file PCR
// distrusted: the probe most likely landed on garbage or on a
// different clock.
const (
	minPlausibleBitrate = 500_000
	maxPlausibleBitrate = 55_000_000
)

// clockSamples is how many evenly spaced probe points anchor the
// wrap-unwrapping table for seekable streams.
const clockSamples = 10

// probePackets bounds how many packets a clock probe reads before
// concluding no PCR lives at that position.
const probePackets = 4096

type clockSample struct {
	pos int64
	// pcr is in 90 kHz ticks, unwrapped against the preceding
	// samples.
	pcr int64
}

// unwrapPCR extends a raw 33-bit clock value into the continuous
// timeline established by prev. A jump of more than half the PCR
// period in either direction is treated as a wrap.
func unwrapPCR(prev, raw int64) int64 {
	if prev < 0 {
		return raw
	}
	cand := prev - prev%pcrPeriod + raw
	switch {
	case cand < prev-pcrPeriod/2:
		cand += pcrPeriod
	case cand > prev+pcrPeriod/2:
		cand -= pcrPeriod
	}
	return cand
}

// handlePCR folds a packet's clock reference into every program that
// uses this PID as its clock source.
func (d *Demuxer) handlePCR(pid uint16, raw int64) {
	for _, prg := range d.programs {
		if prg.pcrPID != pid {
			continue
		}
		prg.pcr = unwrapPCR(prg.pcr, raw)
		d.out.SetGroupPCR(prg.number, pcrToMicros(prg.pcr))
		if d.clockProgram == -1 || int(prg.number) == d.clockProgram {
			d.clockProgram = int(prg.number)
			d.current = unwrapPCR(d.current, raw)
		}
	}
}

// probeClock measures the stream's first and last clock values and
// builds the wrap table. Only called for fast-seekable sources; the
// read position is restored afterwards.
func (d *Demuxer) probeClock() {
	home := d.src.Tell()
	defer func() {
		if err := d.src.SeekTo(home); err != nil {
			d.log.Warn("clock probe could not restore position", "error", err)
		}
	}()

	first, err := d.scanPCR(0)
	if err != nil {
		d.log.Debug("no leading PCR found")
		return
	}
	d.first = first

	last, ok := d.scanLastPCR()
	if !ok {
		return
	}

	// A last-PCR far outside a plausible bitrate means the probe
	// cannot be trusted for duration or seeking.
	span := last.pos - first.pos
	ticks := unwrapPCR(first.pcr, last.pcr) - first.pcr
	if ticks <= 0 {
		return
	}
	bitrate := span * 8 * 90_000 / ticks
	if bitrate < minPlausibleBitrate || bitrate > maxPlausibleBitrate {
		d.log.Warn("implausible stream bitrate, disabling PCR seeking",
			"bitrate", bitrate)
		d.forceBytePercent = true
		return
	}

	d.buildClockTable(first, last.pos)
}

// buildClockTable probes evenly spaced positions, unwrapping each
// sample against the previous so mid-file wraps are resolved, and
// records the unwrapped end-of-stream clock.
func (d *Demuxer) buildClockTable(first clockSample, lastPos int64) {
	d.samples = d.samples[:0]
	d.samples = append(d.samples, first)
	prev := first.pcr

	step := (lastPos - first.pos) / clockSamples
	if step < int64(d.packetSize) {
		step = int64(d.packetSize)
	}
	for pos := first.pos + step; pos < lastPos; pos += step {
		if d.ctx.Err() != nil {
			break
		}
		s, err := d.scanPCR(d.alignPacket(pos))
		if err != nil {
			break
		}
		s.pcr = unwrapPCR(prev, s.pcr)
		prev = s.pcr
		d.samples = append(d.samples, s)
	}

	if s, err := d.scanPCR(d.alignPacket(lastPos)); err == nil {
		s.pcr = unwrapPCR(prev, s.pcr)
		d.last = s
	} else {
		d.last = clockSample{pos: lastPos, pcr: prev}
	}
}

// scanPCR seeks to pos and returns the first raw clock value found
// within the probe window.
func (d *Demuxer) scanPCR(pos int64) (clockSample, error) {
	if err := d.src.SeekTo(pos); err != nil {
		return clockSample{}, err
	}
	r := newPacketReader(d.src, d.packetSize, d.headerLen, d.log)
	for i := 0; i < probePackets; i++ {
		if err := d.ctx.Err(); err != nil {
			return clockSample{}, err
		}
		at := d.src.Tell()
		pkt, err := r.next()
		if err != nil {
			return clockSample{}, err
		}
		if raw := extractPCR(pkt); raw >= 0 {
			return clockSample{pos: at, pcr: raw}, nil
		}
	}
	return clockSample{}, ErrNoPCR
}

// scanLastPCR walks backwards from the end of the stream in chunks,
// returning the last raw clock value it can find.
func (d *Demuxer) scanLastPCR() (clockSample, bool) {
	size := d.src.Size()
	chunk := int64(d.packetSize) * 2048
	for back := chunk; back < chunk*16; back += chunk {
		if d.ctx.Err() != nil {
			return clockSample{}, false
		}
		start := size - back
		if start < 0 {
			start = 0
		}
		start = d.alignPacket(start)

		if err := d.src.SeekTo(start); err != nil {
			return clockSample{}, false
		}
		r := newPacketReader(d.src, d.packetSize, d.headerLen, d.log)
		var best clockSample
		found := false
		for {
			if d.ctx.Err() != nil {
				return clockSample{}, false
			}
			at := d.src.Tell()
			pkt, err := r.next()
			if err == io.EOF {
				break
			}
			if err != nil {
				break
			}
			if raw := extractPCR(pkt); raw >= 0 {
				best = clockSample{pos: at, pcr: raw}
				found = true
			}
		}
		if found {
			return best, true
		}
		if start == 0 {
			break
		}
	}
	return clockSample{}, false
}

// unwrapAt extends a raw clock value read at pos using the nearest
// preceding table sample as the wrap anchor.
func (d *Demuxer) unwrapAt(pos int64, raw int64) int64 {
	anchor := d.first.pcr
	for _, s := range d.samples {
		if s.pos > pos {
			break
		}
		anchor = s.pcr
	}
	return unwrapPCR(anchor, raw)
}

// alignPacket rounds a byte offset down to a packet boundary.
func (d *Demuxer) alignPacket(pos int64) int64 {
	if pos < 0 {
		return 0
	}
	return pos - pos%int64(d.packetSize)
}
