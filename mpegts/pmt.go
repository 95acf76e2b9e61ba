package mpegts

import "fmt"

// pmtES is one elementary stream entry from a program map table, with
// its descriptor loop decoded into the typed form.
type pmtES struct {
	pid        uint16
	streamType uint8
	descs      esDescriptors
	raw        []descriptor
}

// descPayload returns a copy of the payload of the first descriptor in
// the ES loop matching one of tags, nil when none does.
func (es *pmtES) descPayload(tags ...uint8) []byte {
	for _, dr := range es.raw {
		for _, tag := range tags {
			if dr.tag == tag {
				return append([]byte(nil), dr.data...)
			}
		}
	}
	return nil
}

type pmt struct {
	pid     uint16
	program uint16
	pcrPID  uint16

	// registration is the program-level format identifier; "HDMV"
	// switches stream-type interpretation to the Blu-ray table.
	registration string
	iod          *iod
	caSystem     int

	accessControl bool
	digitalCopy   bool

	es []pmtES
}

func (p *pmt) hdmv() bool { return p.registration == "HDMV" }

// aribFingerprint reports whether the program-level descriptors look
// like a Japanese broadcast multiplex: an ARIB conditional access
// system together with the STD-B10 access control and digital copy
// control descriptors, and no format registration.
func (p *pmt) aribFingerprint() bool {
	return p.registration == "" && p.caSystem>>8 == 0x05 &&
		p.accessControl && p.digitalCopy
}

// decodePMT flattens the ordered sections of a program map table.
func decodePMT(pid, program uint16, sections [][]byte) (*pmt, error) {
	p := &pmt{pid: pid, program: program, caSystem: -1}
	for _, sec := range sections {
		if len(sec) < 16 {
			return nil, fmt.Errorf("section too short (%d bytes)", len(sec))
		}
		p.pcrPID = uint16(sec[8]&0x1F)<<8 | uint16(sec[9])
		infoLen := int(sec[10]&0x0F)<<8 | int(sec[11])
		body := sec[12 : len(sec)-4]
		if infoLen > len(body) {
			return nil, fmt.Errorf("program info overruns section")
		}

		for _, dr := range splitDescriptors(body[:infoLen]) {
			switch dr.tag {
			case descRegistration:
				if len(dr.data) >= 4 {
					p.registration = string(dr.data[:4])
				}
			case descIOD:
				if d, err := decodeIOD(dr.data); err == nil {
					p.iod = d
				}
			case descCA:
				if len(dr.data) >= 2 {
					p.caSystem = int(dr.data[0])<<8 | int(dr.data[1])
				}
			case descAccessControl:
				p.accessControl = true
			case descDigitalCopyControl:
				p.digitalCopy = true
			}
		}

		body = body[infoLen:]
		for len(body) >= 5 {
			esPID := uint16(body[1]&0x1F)<<8 | uint16(body[2])
			esLen := int(body[3]&0x0F)<<8 | int(body[4])
			streamType := body[0]
			if 5+esLen > len(body) {
				return nil, fmt.Errorf("es loop overruns section")
			}
			raw := splitDescriptors(body[5 : 5+esLen])
			p.es = append(p.es, pmtES{
				pid:        esPID,
				streamType: streamType,
				descs:      decodeESDescriptors(raw),
				raw:        raw,
			})
			body = body[5+esLen:]
		}
	}
	return p, nil
}
