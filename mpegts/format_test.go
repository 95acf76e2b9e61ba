package mpegts

import "testing"

func desc(tag uint8, data ...byte) []byte {
	return append([]byte{tag, byte(len(data))}, data...)
}

func TestClassifyStandardTypes(t *testing.T) {
	t.Parallel()
	p := &pmt{program: 1, caSystem: -1}
	tests := []struct {
		streamType uint8
		category   Category
		codec      Codec
	}{
		{0x02, CategoryVideo, CodecMPEG2Video},
		{0x03, CategoryAudio, CodecMPEGAudio},
		{0x0F, CategoryAudio, CodecAAC},
		{0x11, CategoryAudio, CodecLATMAAC},
		{0x1B, CategoryVideo, CodecH264},
		{0x24, CategoryVideo, CodecHEVC},
		{0x27, CategoryVideo, CodecHEVC},
		{0x81, CategoryAudio, CodecAC3},
		{0xEA, CategoryVideo, CodecVC1},
	}
	for _, tc := range tests {
		es := &pmtES{pid: 0x100, streamType: tc.streamType,
			descs: decodeESDescriptors(nil)}
		c := classify(p, es, false)
		if c.drop || c.category != tc.category || c.codec != tc.codec {
			t.Errorf("type 0x%02x: got %v/%s", tc.streamType, c.category, c.codec)
		}
	}
}

func TestClassifyHDMVOverrides(t *testing.T) {
	t.Parallel()
	hdmv := &pmt{program: 1, registration: "HDMV", caSystem: -1}
	plain := &pmt{program: 1, caSystem: -1}
	es := &pmtES{pid: 0x100, streamType: 0x82, descs: decodeESDescriptors(nil)}

	if c := classify(hdmv, es, false); c.codec != CodecDTS || c.sections {
		t.Fatalf("HDMV 0x82: got %s sections=%v", c.codec, c.sections)
	}
	if c := classify(plain, es, false); c.codec != CodecSCTE27 || !c.sections {
		t.Fatalf("plain 0x82: got %s sections=%v", c.codec, c.sections)
	}
}

func TestClassifySpliceStream(t *testing.T) {
	t.Parallel()
	p := &pmt{program: 1, caSystem: -1}
	es := &pmtES{pid: 0x1F0, streamType: 0x86, descs: decodeESDescriptors(nil)}

	c := classify(p, es, false)
	if c.codec != CodecSCTE35 || !c.sections || c.drop {
		t.Fatalf("0x86: got %s sections=%v drop=%v", c.codec, c.sections, c.drop)
	}

	// Inside an HDMV program the same stream type is DTS audio.
	hdmv := &pmt{program: 1, registration: "HDMV", caSystem: -1}
	if c := classify(hdmv, es, false); c.codec != CodecDTS {
		t.Fatalf("HDMV 0x86: got %s", c.codec)
	}
}

func TestClassifyPrivatePESByDescriptor(t *testing.T) {
	t.Parallel()
	p := &pmt{program: 1, caSystem: -1}
	mk := func(raw []byte) *pmtES {
		list := splitDescriptors(raw)
		return &pmtES{pid: 0x100, streamType: 0x06, descs: decodeESDescriptors(list)}
	}

	if c := classify(p, mk(desc(descAC3)), false); c.codec != CodecAC3 {
		t.Fatalf("AC-3 descriptor: got %s", c.codec)
	}
	if c := classify(p, mk(desc(descEnhancedAC3)), false); c.codec != CodecEAC3 {
		t.Fatalf("E-AC-3 descriptor: got %s", c.codec)
	}
	if c := classify(p, mk(desc(descRegistration, 'B', 'S', 'S', 'D')), false); c.codec != CodecAES3 {
		t.Fatalf("BSSD registration: got %s", c.codec)
	}
	if c := classify(p, mk(desc(descRegistration, 'H', 'E', 'V', 'C')), false); c.codec != CodecHEVC {
		t.Fatalf("HEVC registration: got %s", c.codec)
	}
	if c := classify(p, mk(nil), false); !c.drop {
		t.Fatal("bare private PES must be dropped")
	}
}

func TestClassifyOpusWithChannelConfig(t *testing.T) {
	t.Parallel()
	p := &pmt{program: 1, caSystem: -1}
	raw := append(desc(descRegistration, 'O', 'p', 'u', 's'),
		desc(descDVBExtension, descExtTagOpus, 0x02)...)
	es := &pmtES{pid: 0x100, streamType: 0x06,
		descs: decodeESDescriptors(splitDescriptors(raw))}

	c := classify(p, es, false)
	if c.codec != CodecOpus || c.category != CategoryAudio {
		t.Fatalf("got %v/%s", c.category, c.codec)
	}
	if len(c.extradata) != 1 || c.extradata[0] != 0x02 {
		t.Fatalf("channel config not captured: %v", c.extradata)
	}
}

func TestClassifyARIBCaptions(t *testing.T) {
	t.Parallel()
	p := &pmt{program: 1, caSystem: -1}
	es := &pmtES{pid: 0x100, streamType: 0x06,
		descs: decodeESDescriptors(splitDescriptors(desc(descStreamID, 0x30)))}

	if c := classify(p, es, true); c.codec != CodecARIBA {
		t.Fatalf("arib mode: got %s", c.codec)
	}
	if c := classify(p, es, false); !c.drop {
		t.Fatal("component tag alone must not classify without arib mode")
	}
}

func TestClassifyARIBDataComponent(t *testing.T) {
	t.Parallel()
	p := &pmt{program: 1, caSystem: -1}
	mk := func(id uint16) *pmtES {
		raw := desc(descDataComponent, byte(id>>8), byte(id))
		return &pmtES{pid: 0x100, streamType: 0x06,
			descs: decodeESDescriptors(splitDescriptors(raw))}
	}

	if c := classify(p, mk(0x0008), true); c.codec != CodecARIBA || c.category != CategorySubtitle {
		t.Fatalf("data component 0x0008: got %s", c.codec)
	}
	if c := classify(p, mk(0x0012), true); c.codec != CodecARIBC {
		t.Fatalf("data component 0x0012: got %s", c.codec)
	}
	if c := classify(p, mk(0x0008), false); !c.drop {
		t.Fatal("data component alone must not classify without arib mode")
	}
}

// aribPMTSection builds a PMT whose program descriptors carry the
// broadcast fingerprint: an ARIB CA system plus the access control
// and digital copy control descriptors.
func aribPMTSection() []byte {
	progDescs := desc(descCA, 0x05, 0x00, 0xE0, 0x41)
	progDescs = append(progDescs, desc(descAccessControl, 0xE0, 0x42)...)
	progDescs = append(progDescs, desc(descDigitalCopyControl, 0x00)...)
	esDescs := desc(descDataComponent, 0x00, 0x08)

	esLen := 5 + len(esDescs)
	sectionLength := 9 + len(progDescs) + esLen + 4
	data := []byte{
		tableIDPMT, 0xB0 | byte(sectionLength>>8)&0x0F, byte(sectionLength),
		0x00, 0x01,
		0xC1, 0x00, 0x00,
		0xE1, 0x00, // pcr pid 0x100
		0xF0 | byte(len(progDescs)>>8)&0x0F, byte(len(progDescs)),
	}
	data = append(data, progDescs...)
	data = append(data, 0x06, 0xE1, 0x01,
		0xF0|byte(len(esDescs)>>8)&0x0F, byte(len(esDescs)))
	data = append(data, esDescs...)
	return finishSection(data)
}

func TestARIBFingerprint(t *testing.T) {
	t.Parallel()
	p, err := decodePMT(0x1000, 1, [][]byte{aribPMTSection()})
	if err != nil {
		t.Fatalf("decodePMT: %v", err)
	}
	if !p.aribFingerprint() {
		t.Fatalf("fingerprint not recognized: %+v", p)
	}

	plain, err := decodePMT(0x1000, 1, [][]byte{buildPMT(1, 0x100, 0, []pmtStream{
		{streamType: 0x1B, pid: 0x100},
	})})
	if err != nil {
		t.Fatalf("decodePMT: %v", err)
	}
	if plain.aribFingerprint() {
		t.Fatal("plain PMT must not look like an ARIB multiplex")
	}
}

func TestBuildStreamsTeletextServices(t *testing.T) {
	t.Parallel()
	p := &pmt{program: 1, caSystem: -1}
	raw := desc(descTeletext,
		'e', 'n', 'g', 0x02<<3|0x01, 0x88, // subtitle page 1:888
		'd', 'e', 'u', 0x02<<3|0x02, 0x50) // subtitle page 2:150
	es := &pmtES{pid: 0x100, streamType: 0x06,
		descs: decodeESDescriptors(splitDescriptors(raw)),
		raw:   splitDescriptors(raw)}

	streams := buildStreams(p, es, false, true)
	if len(streams) != 2 {
		t.Fatalf("expected 2 teletext streams, got %d", len(streams))
	}
	first := streams[0].format
	if first.Codec != CodecTeletext || first.Language != "eng" ||
		first.TeletextMagazine != 1 || first.TeletextPage != 0x88 {
		t.Fatalf("first service: %+v", first)
	}
	if streams[1].format.Language != "deu" {
		t.Fatalf("second service: %+v", streams[1].format)
	}

	// Without splitting the PID stays one stream and the raw teletext
	// descriptor payload travels as its extradata.
	combined := buildStreams(p, es, false, false)
	if len(combined) != 1 {
		t.Fatalf("combined mode: expected 1 stream, got %d", len(combined))
	}
	f := combined[0].format
	if f.TeletextMagazine != -1 || f.TeletextPage != -1 {
		t.Fatalf("combined mode must not pick a service: %+v", f)
	}
	if string(f.Extradata) != string(raw[2:]) {
		t.Fatalf("descriptor payload not carried: %v", f.Extradata)
	}
}

func TestBuildStreamsDVBSubServices(t *testing.T) {
	t.Parallel()
	p := &pmt{program: 1, caSystem: -1}
	raw := desc(descSubtitling,
		'f', 'r', 'a', 0x10, 0x00, 0x01, 0x00, 0x02)
	es := &pmtES{pid: 0x100, streamType: 0x06,
		descs: decodeESDescriptors(splitDescriptors(raw)),
		raw:   splitDescriptors(raw)}

	streams := buildStreams(p, es, false, true)
	if len(streams) != 1 {
		t.Fatalf("expected 1 subtitle stream, got %d", len(streams))
	}
	f := streams[0].format
	if f.Codec != CodecDVBSub || f.Language != "fra" ||
		f.SubComposition != 1 || f.SubAncillary != 2 {
		t.Fatalf("subtitle service: %+v", f)
	}

	combined := buildStreams(p, es, false, false)
	if len(combined) != 1 || combined[0].format.SubComposition != -1 {
		t.Fatalf("combined mode: %+v", combined[0].format)
	}
	if string(combined[0].format.Extradata) != string(raw[2:]) {
		t.Fatalf("descriptor payload not carried: %v", combined[0].format.Extradata)
	}
}

func TestClassifySLFromIOD(t *testing.T) {
	t.Parallel()
	p := &pmt{
		program:  1,
		caSystem: -1,
		iod: &iod{streams: []iodStream{
			{esID: 0x0042, objectType: 0x40, streamKind: 0x05, config: []byte{0x11, 0x90}},
		}},
	}
	es := &pmtES{pid: 0x100, streamType: 0x12,
		descs: decodeESDescriptors(splitDescriptors(desc(descSL, 0x00, 0x42)))}

	c := classify(p, es, false)
	if c.drop || c.codec != CodecAAC || c.category != CategoryAudio {
		t.Fatalf("got drop=%v %v/%s", c.drop, c.category, c.codec)
	}
	if len(c.extradata) != 2 {
		t.Fatal("decoder config not propagated")
	}
	if c.sections {
		t.Fatal("stream type 0x12 is PES-carried")
	}

	es.streamType = 0x13
	if c := classify(p, es, false); !c.sections {
		t.Fatal("stream type 0x13 is section-carried")
	}
}
