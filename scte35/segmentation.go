package scte35

const (
	segmentationDescriptorTag = 0x02
	cueiIdentifier            = 0x43554549 // "CUEI"
)

// Segmentation is one CUEI segmentation descriptor: a typed boundary
// marker (program/chapter/ad start and end) attached to a splice
// command, usually a time_signal.
type Segmentation struct {
	EventID uint32
	Cancel  bool
	TypeID  uint8
	// Duration is in 90 kHz ticks, nil when not announced.
	Duration *uint64
	// UPID is the raw upid payload; UPIDType says how to read it.
	UPIDType uint8
	UPID     []byte
	Num      uint8
	Expected uint8
}

// segmentationNames covers the type ids seen in broadcast cues; the
// full SCTE-35 table 22 range reads as "type 0xNN" when unnamed.
var segmentationNames = map[uint8]string{
	0x00: "not indicated",
	0x01: "content identification",
	0x10: "program start",
	0x11: "program end",
	0x12: "program early termination",
	0x13: "program breakaway",
	0x14: "program resumption",
	0x17: "program overlap start",
	0x19: "program start in progress",
	0x20: "chapter start",
	0x21: "chapter end",
	0x22: "break start",
	0x23: "break end",
	0x30: "provider ad start",
	0x31: "provider ad end",
	0x32: "distributor ad start",
	0x33: "distributor ad end",
	0x34: "provider placement opportunity start",
	0x35: "provider placement opportunity end",
	0x36: "distributor placement opportunity start",
	0x37: "distributor placement opportunity end",
	0x40: "unscheduled event start",
	0x41: "unscheduled event end",
	0x50: "network start",
	0x51: "network end",
}

// TypeName returns a readable name for the segmentation type id.
func (s *Segmentation) TypeName() string {
	if name, ok := segmentationNames[s.TypeID]; ok {
		return name
	}
	return "type 0x" + hexByte(s.TypeID)
}

func hexByte(b uint8) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{digits[b>>4], digits[b&0x0F]})
}

// decodeSegmentations walks a descriptor loop, keeping CUEI
// segmentation descriptors and skipping everything else.
func decodeSegmentations(b []byte) []Segmentation {
	var out []Segmentation
	for len(b) >= 2 {
		tag, length := b[0], int(b[1])
		if 2+length > len(b) {
			break
		}
		body := b[2 : 2+length]
		b = b[2+length:]

		if tag != segmentationDescriptorTag || len(body) < 9 {
			continue
		}
		ident := uint32(body[0])<<24 | uint32(body[1])<<16 |
			uint32(body[2])<<8 | uint32(body[3])
		if ident != cueiIdentifier {
			continue
		}
		if seg, ok := decodeSegmentation(body[4:]); ok {
			out = append(out, seg)
		}
	}
	return out
}

func decodeSegmentation(b []byte) (Segmentation, bool) {
	r := &bitReader{b: b}
	seg := Segmentation{}
	seg.EventID = uint32(r.read(32))
	seg.Cancel = r.flag()
	r.skip(7) // compliance indicator + reserved
	if seg.Cancel {
		return seg, r.err == nil
	}

	programSegmentation := r.flag()
	durationFlag := r.flag()
	r.skip(6) // delivery restriction flags / reserved

	if !programSegmentation {
		count := int(r.read(8))
		r.skip(count * 48) // component_tag + reserved + pts_offset
	}
	if durationFlag {
		d := r.read(40)
		seg.Duration = &d
	}

	seg.UPIDType = uint8(r.read(8))
	upidLen := int(r.read(8))
	if r.err != nil || r.pos/8+upidLen > len(b) {
		return seg, false
	}
	seg.UPID = append([]byte(nil), b[r.pos/8:r.pos/8+upidLen]...)
	r.skip(upidLen * 8)

	seg.TypeID = uint8(r.read(8))
	seg.Num = uint8(r.read(8))
	seg.Expected = uint8(r.read(8))
	return seg, r.err == nil
}
