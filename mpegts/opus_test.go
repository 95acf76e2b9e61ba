package mpegts

import (
	"bytes"
	"testing"
)

// opusFrame encapsulates one access unit behind a control header.
func opusFrame(data []byte, startTrim, endTrim int, ctrlExt []byte) []byte {
	flags := byte(0xE0)
	if startTrim > 0 {
		flags |= 0x10
	}
	if endTrim > 0 {
		flags |= 0x08
	}
	if ctrlExt != nil {
		flags |= 0x04
	}
	out := []byte{0x7F, flags}
	size := len(data)
	for size >= 0xFF {
		out = append(out, 0xFF)
		size -= 0xFF
	}
	out = append(out, byte(size))
	if startTrim > 0 {
		out = append(out, byte(startTrim>>8&0x03), byte(startTrim))
	}
	if endTrim > 0 {
		out = append(out, byte(endTrim>>8&0x03), byte(endTrim))
	}
	if ctrlExt != nil {
		out = append(out, byte(len(ctrlExt)))
		out = append(out, ctrlExt...)
	}
	return append(out, data...)
}

func TestSplitOpus(t *testing.T) {
	t.Parallel()
	a := bytes.Repeat([]byte{0xAA}, 40)
	b := bytes.Repeat([]byte{0xBB}, 300) // size field needs the 0xFF escape
	payload := append(opusFrame(a, 0, 0, nil), opusFrame(b, 312, 7, nil)...)

	aus := splitOpus(payload)
	if len(aus) != 2 {
		t.Fatalf("expected 2 access units, got %d", len(aus))
	}
	if !bytes.Equal(aus[0].data, a) || aus[0].startTrim != 0 || aus[0].endTrim != 0 {
		t.Fatalf("first AU: %d bytes, trims %d/%d",
			len(aus[0].data), aus[0].startTrim, aus[0].endTrim)
	}
	if !bytes.Equal(aus[1].data, b) {
		t.Fatalf("second AU: %d bytes", len(aus[1].data))
	}
	if aus[1].startTrim != 312 || aus[1].endTrim != 7 {
		t.Fatalf("second AU trims %d/%d", aus[1].startTrim, aus[1].endTrim)
	}
}

func TestOpusBlocksCarryTrims(t *testing.T) {
	t.Parallel()
	sink := newCaptureSink()
	d := newTestDemuxer(t, srcOf(t, nullPackets(3)), sink)

	f := ESFormat{PID: 0x50, Program: 1, Category: CategoryAudio, Codec: CodecOpus,
		ComponentTag: -1, TeletextMagazine: -1, TeletextPage: -1,
		SubComposition: -1, SubAncillary: -1}
	streams := []*esStream{newESStream(f, false)}
	e := d.pids.setES(0x50, 1, streams)
	d.registerStreams(0x50, streams)

	data := bytes.Repeat([]byte{0xCC}, 20)
	d.sendOpusBlocks(e, &Block{
		PTS:  1_000_000,
		DTS:  1_000_000,
		Data: opusFrame(data, 312, 7, nil),
	})

	h, ok := sink.findByPID(0x50)
	if !ok {
		t.Fatal("opus stream missing")
	}
	blocks := sink.blocks[h]
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	b := blocks[0]
	if b.StartTrim != 312 || b.EndTrim != 7 {
		t.Fatalf("trims %d/%d not carried", b.StartTrim, b.EndTrim)
	}
	if !bytes.Equal(b.Data, data) {
		t.Fatal("payload mangled")
	}
}

func TestSplitOpusControlExtension(t *testing.T) {
	t.Parallel()
	data := []byte{1, 2, 3, 4}
	aus := splitOpus(opusFrame(data, 0, 0, []byte{0xDE, 0xAD}))
	if len(aus) != 1 || !bytes.Equal(aus[0].data, data) {
		t.Fatalf("aus = %+v", aus)
	}
}

func TestSplitOpusTruncated(t *testing.T) {
	t.Parallel()
	a := []byte{9, 9, 9}
	payload := append(opusFrame(a, 0, 0, nil), opusFrame(bytes.Repeat([]byte{1}, 50), 0, 0, nil)...)
	payload = payload[:len(payload)-10] // second AU cut short

	aus := splitOpus(payload)
	if len(aus) != 1 || !bytes.Equal(aus[0].data, a) {
		t.Fatalf("expected only the intact AU, got %d", len(aus))
	}
}

func TestSplitOpusBadSync(t *testing.T) {
	t.Parallel()
	if aus := splitOpus([]byte{0x12, 0x34, 0x56}); aus != nil {
		t.Fatalf("expected nil, got %+v", aus)
	}
}
