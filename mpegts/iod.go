package mpegts

import "fmt"

// MPEG-4 systems descriptor tags used inside the IOD.
const (
	mp4TagInitialObjectDescr = 0x02
	mp4TagESDescr            = 0x03
	mp4TagDecoderConfigDescr = 0x04
	mp4TagDecSpecificInfo    = 0x05
)

// iodStream is one MPEG-4 elementary stream declared by the IOD,
// matched to transport streams through the SL descriptor's ES_ID.
type iodStream struct {
	esID       int
	objectType uint8
	streamKind uint8
	config     []byte
}

// iod is the decoded InitialObjectDescriptor carried in the PMT's
// program descriptor loop for MPEG-4 SL programs.
type iod struct {
	streams []iodStream
}

func (d *iod) find(esID int) *iodStream {
	for i := range d.streams {
		if d.streams[i].esID == esID {
			return &d.streams[i]
		}
	}
	return nil
}

// decodeIOD parses the IOD_descriptor payload: a two-byte scope/label
// prefix followed by an InitialObjectDescriptor tree.
func decodeIOD(b []byte) (*iod, error) {
	if len(b) < 3 {
		return nil, fmt.Errorf("iod descriptor too short")
	}
	b = b[2:] // Scope_of_IOD_label, IOD_label

	tag, body, _, err := mp4Descr(b)
	if err != nil {
		return nil, err
	}
	if tag != mp4TagInitialObjectDescr {
		return nil, fmt.Errorf("unexpected descriptor tag 0x%02x", tag)
	}
	// ObjectDescriptorID(10) + URL_Flag + includeInline + reserved.
	if len(body) < 2 {
		return nil, fmt.Errorf("initial object descriptor too short")
	}
	if body[1]&0x40 != 0 {
		return nil, fmt.Errorf("url-form iod not supported")
	}
	// Five profile/level bytes follow, then the ES descriptor loop.
	if len(body) < 7 {
		return nil, fmt.Errorf("initial object descriptor too short")
	}
	body = body[7:]

	out := &iod{}
	for len(body) > 0 {
		tag, esBody, rest, err := mp4Descr(body)
		if err != nil {
			break
		}
		body = rest
		if tag != mp4TagESDescr {
			continue
		}
		if st, ok := decodeESDescr(esBody); ok {
			out.streams = append(out.streams, st)
		}
	}
	return out, nil
}

func decodeESDescr(b []byte) (iodStream, bool) {
	if len(b) < 3 {
		return iodStream{}, false
	}
	st := iodStream{esID: int(b[0])<<8 | int(b[1])}
	flags := b[2]
	b = b[3:]
	if flags&0x80 != 0 { // streamDependenceFlag
		if len(b) < 2 {
			return iodStream{}, false
		}
		b = b[2:]
	}
	if flags&0x40 != 0 { // URL_Flag
		if len(b) < 1 || 1+int(b[0]) > len(b) {
			return iodStream{}, false
		}
		b = b[1+int(b[0]):]
	}
	if flags&0x20 != 0 { // OCRstreamFlag
		if len(b) < 2 {
			return iodStream{}, false
		}
		b = b[2:]
	}

	tag, cfg, _, err := mp4Descr(b)
	if err != nil || tag != mp4TagDecoderConfigDescr || len(cfg) < 13 {
		return iodStream{}, false
	}
	st.objectType = cfg[0]
	st.streamKind = cfg[1] >> 2
	cfg = cfg[13:]
	if len(cfg) > 0 {
		if tag, info, _, err := mp4Descr(cfg); err == nil && tag == mp4TagDecSpecificInfo {
			st.config = append([]byte(nil), info...)
		}
	}
	return st, true
}

// mp4Descr reads one tag/length-prefixed MPEG-4 descriptor. Lengths
// use the 7-bits-per-byte expandable encoding.
func mp4Descr(b []byte) (tag uint8, body, rest []byte, err error) {
	if len(b) < 2 {
		return 0, nil, nil, fmt.Errorf("truncated mp4 descriptor")
	}
	tag = b[0]
	b = b[1:]
	size := 0
	for i := 0; ; i++ {
		if i >= len(b) || i > 3 {
			return 0, nil, nil, fmt.Errorf("bad mp4 descriptor length")
		}
		size = size<<7 | int(b[i]&0x7F)
		if b[i]&0x80 == 0 {
			b = b[i+1:]
			break
		}
	}
	if size > len(b) {
		return 0, nil, nil, fmt.Errorf("mp4 descriptor overruns buffer")
	}
	return tag, b[:size], b[size:], nil
}
