package mpegts

// sdtService is one service entry from a service description table.
type sdtService struct {
	id            uint16
	runningStatus uint8
	scrambled     bool
	name          string
	provider      string
}

type sdt struct {
	tsID     uint16
	services []sdtService
}

// decodeSDT flattens the ordered sections of a service description
// table for the actual transport stream.
func decodeSDT(tsID uint16, sections [][]byte) *sdt {
	s := &sdt{tsID: tsID}
	for _, sec := range sections {
		if len(sec) < 15 {
			continue
		}
		body := sec[11 : len(sec)-4]
		for len(body) >= 5 {
			svc := sdtService{
				id:            uint16(body[0])<<8 | uint16(body[1]),
				runningStatus: body[3] >> 5,
				scrambled:     body[3]&0x10 != 0,
			}
			dlen := int(body[3]&0x0F)<<8 | int(body[4])
			if 5+dlen > len(body) {
				break
			}
			for _, dr := range splitDescriptors(body[5 : 5+dlen]) {
				if dr.tag != 0x48 { // service_descriptor
					continue
				}
				if len(dr.data) < 2 {
					continue
				}
				b := dr.data[1:]
				plen := int(b[0])
				if 1+plen >= len(b) {
					continue
				}
				svc.provider = decodeText(b[1:1+plen], false)
				b = b[1+plen:]
				nlen := int(b[0])
				if 1+nlen > len(b) {
					continue
				}
				svc.name = decodeText(b[1:1+nlen], false)
			}
			s.services = append(s.services, svc)
			body = body[5+dlen:]
		}
	}
	return s
}
