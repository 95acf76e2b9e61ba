package mpegts

import "testing"

func TestUnwrapPCR(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		prev, raw  int64
		want       int64
	}{
		{"first value", -1, 12345, 12345},
		{"monotonic", 90_000, 91_000, 91_000},
		{"small backward step", 91_000, 90_000, 90_000},
		{"wrap forward", pcrPeriod - 100, 50, pcrPeriod + 50},
		{"wrap with offset base", 3*pcrPeriod - 10, 90, 3*pcrPeriod + 90},
		{"backward across wrap", pcrPeriod + 50, pcrPeriod - 100, pcrPeriod - 100},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := unwrapPCR(tc.prev, tc.raw%pcrPeriod); got != tc.want {
				t.Fatalf("unwrapPCR(%d, %d) = %d, want %d",
					tc.prev, tc.raw%pcrPeriod, got, tc.want)
			}
		})
	}
}

func TestExtractPCR(t *testing.T) {
	t.Parallel()
	const pcr = (int64(1) << 33) - 7
	pkt := tsPacket(0x100, 0, false, nil, pcr)
	if got := extractPCR(pkt); got != pcr {
		t.Fatalf("extractPCR = %d, want %d", got, pcr)
	}
	plain := tsPacket(0x100, 0, true, []byte{1, 2, 3}, -1)
	if got := extractPCR(plain); got != -1 {
		t.Fatalf("extractPCR on plain packet = %d, want -1", got)
	}
}

// linearStream builds a PAT+PMT header followed by n PCR-bearing
// packets, ticksPerPacket apart starting at base (values wrap at 33
// bits on the wire).
func linearStream(n int, base, ticksPerPacket int64) []byte {
	stream := simpleProgram([]pmtStream{{streamType: 0x1B, pid: 0x100}})
	for i := 0; i < n; i++ {
		pcr := (base + int64(i)*ticksPerPacket) & (pcrPeriod - 1)
		stream = append(stream, tsPacket(0x100, 0, false, nil, pcr)...)
	}
	return stream
}

func TestDemuxerLength(t *testing.T) {
	t.Parallel()
	// 2000 packets at 90 ticks each: two seconds of stream.
	sink := newCaptureSink()
	d := newTestDemuxer(t, srcOf(t, linearStream(2000, 90_000, 90)), sink)

	length := d.Length()
	want := pcrToMicros(2000 * 90)
	if diff := length - want; diff < -100_000 || diff > 100_000 {
		t.Fatalf("Length = %dus, want about %dus", length, want)
	}
}

func TestDemuxerLengthAcrossWrap(t *testing.T) {
	t.Parallel()
	// The clock wraps mid-stream; duration must still come out
	// near two seconds, not 2^33 ticks.
	base := pcrPeriod - 90_000 // one second before the wrap
	sink := newCaptureSink()
	d := newTestDemuxer(t, srcOf(t, linearStream(2000, base, 90)), sink)

	length := d.Length()
	want := pcrToMicros(2000 * 90)
	if diff := length - want; diff < -100_000 || diff > 100_000 {
		t.Fatalf("Length across wrap = %dus, want about %dus", length, want)
	}
}

func TestDemuxerCurrentTimeTracksPCR(t *testing.T) {
	t.Parallel()
	sink, d := demuxAll(t, linearStream(2000, 90_000, 90))
	if sink.pcrCalls == 0 {
		t.Fatal("no PCR reported")
	}
	// After reading everything, elapsed time is the full span.
	want := pcrToMicros(1999 * 90)
	if got := d.Time(); got != want {
		t.Fatalf("Time = %dus, want %dus", got, want)
	}
}

func TestImplausibleBitrateDisablesPCRSeek(t *testing.T) {
	t.Parallel()
	// 1 tick per packet means an absurd bitrate; the probe must
	// fall back to byte-proportional positioning.
	sink := newCaptureSink()
	d := newTestDemuxer(t, srcOf(t, linearStream(2000, 90_000, 1)), sink)
	if !d.forceBytePercent {
		t.Fatal("expected byte-percent fallback for implausible bitrate")
	}
}
