package mpegts

// patEntry is one program association: program number to PMT PID. A
// program number of zero announces the network PID and is skipped.
type patEntry struct {
	number uint16
	pmtPID uint16
}

type pat struct {
	tsID    uint16
	entries []patEntry
}

// decodePAT flattens the ordered sections of a program association
// table. Sections have already been CRC-checked and version-gated.
func decodePAT(tsID uint16, sections [][]byte) *pat {
	p := &pat{tsID: tsID}
	for _, sec := range sections {
		body := sec[8 : len(sec)-4]
		for len(body) >= 4 {
			number := uint16(body[0])<<8 | uint16(body[1])
			pid := uint16(body[2]&0x1F)<<8 | uint16(body[3])
			body = body[4:]
			if number == 0 {
				continue
			}
			p.entries = append(p.entries, patEntry{number: number, pmtPID: pid})
		}
	}
	return p
}
