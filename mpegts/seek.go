package mpegts

import (
	"errors"
	"fmt"
)

// seekMaxIterations bounds the bisection; the interval halves each
// round so this is never reached on sane streams.
const seekMaxIterations = 64

// SetPosition repositions the demuxer at a fraction of the stream.
// With a trustworthy clock it bisects on PCR values until it lands
// within the configured tolerance of the target time; otherwise it
// falls back to a proportional byte seek. On failure the previous
// read position is restored.
func (d *Demuxer) SetPosition(f float64) error {
	if !d.src.CanFastSeek() {
		return ErrNotSeekable
	}
	if f < 0 || f > 1 {
		return fmt.Errorf("mpegts: position %v out of range", f)
	}

	if d.clockTrusted() && !d.forceBytePercent {
		target := d.first.pcr + int64(f*float64(d.last.pcr-d.first.pcr))
		err := d.seekToTicks(target)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrSeekFailed) {
			return err
		}
		// A clock that failed one bisection will fail the next;
		// every later seek on this session goes by bytes.
		d.forceBytePercent = true
		d.log.Warn("PCR seek failed, using byte position from now on")
	}
	return d.seekBytes(int64(f * float64(d.src.Size())))
}

func (d *Demuxer) clockTrusted() bool {
	return d.first.pcr >= 0 && d.last.pcr > d.first.pcr
}

// seekToTicks bisects the byte range looking for the packet whose
// clock value is within tolerance of target.
func (d *Demuxer) seekToTicks(target int64) error {
	home := d.src.Tell()
	low, high := d.first.pos, d.src.Size()

	for i := 0; i < seekMaxIterations && high-low > int64(d.packetSize); i++ {
		if err := d.ctx.Err(); err != nil {
			if serr := d.src.SeekTo(home); serr != nil {
				return fmt.Errorf("%w: restore: %v", err, serr)
			}
			return err
		}
		mid := d.alignPacket(low + (high-low)/2)
		s, err := d.scanPCR(mid)
		if err != nil {
			break
		}
		pcr := d.unwrapAt(s.pos, s.pcr)
		diff := pcr - target
		if diff < 0 {
			diff = -diff
		}
		if diff <= d.seekTolerance {
			if err := d.src.SeekTo(s.pos); err != nil {
				break
			}
			d.resetAfterSeek(pcr)
			return nil
		}
		if pcr > target {
			high = mid
		} else {
			low = s.pos + int64(d.packetSize)
		}
	}

	if err := d.src.SeekTo(home); err != nil {
		return fmt.Errorf("%w: restore: %v", ErrSeekFailed, err)
	}
	return ErrSeekFailed
}

// seekBytes is the proportional fallback: land on a packet boundary
// at the requested fraction of the file.
func (d *Demuxer) seekBytes(pos int64) error {
	if err := d.src.SeekTo(d.alignPacket(pos)); err != nil {
		return fmt.Errorf("%w: %v", ErrSeekFailed, err)
	}
	d.resetAfterSeek(-1)
	return nil
}

// resetAfterSeek drops all partial reassembly state so stale bytes
// from before the jump cannot leak into post-seek payloads. Applied
// table versions survive: the stream layout did not change.
func (d *Demuxer) resetAfterSeek(pcr int64) {
	for pid := 0; pid < pidCount; pid++ {
		e := &d.pids.entries[pid]
		e.cc = 0xFF
		if e.psi != nil {
			e.psi.drop()
		}
		if e.kind == pidES {
			primary := e.es[0]
			primary.buf = nil
			primary.need = 0
			primary.gathering = false
			primary.tainted = false
			if primary.sec != nil {
				primary.sec.drop()
			}
		}
	}
	d.current = pcr
	for _, prg := range d.programs {
		prg.pcr = -1
	}
}
