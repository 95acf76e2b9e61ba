package mpegts

// eit is a decoded event information table for one service: either
// present/following (tableID 0x4E) or a schedule slice.
type eit struct {
	tableID uint8
	service uint16
	events  []*EPGEvent
}

func (e *eit) presentFollowing() bool { return e.tableID == tableIDEITPF }

// decodeEIT flattens the ordered sections of an event information
// table. Events whose start time is undefined (all-ones MJD) keep a
// zero Start.
func decodeEIT(tableID uint8, service uint16, sections [][]byte, arib bool) *eit {
	e := &eit{tableID: tableID, service: service}
	for _, sec := range sections {
		if len(sec) < 18 {
			continue
		}
		// transport_stream_id, original_network_id,
		// segment_last_section_number, last_table_id.
		body := sec[14 : len(sec)-4]
		for len(body) >= 12 {
			ev := &EPGEvent{
				ID:            uint16(body[0])<<8 | uint16(body[1]),
				Start:         decodeMJDTime(body[2:7]),
				Duration:      decodeBCDDuration(body[7:10]),
				RunningStatus: body[10] >> 5,
				Rating:        -1,
			}
			dlen := int(body[10]&0x0F)<<8 | int(body[11])
			if 12+dlen > len(body) {
				break
			}
			for _, dr := range splitDescriptors(body[12 : 12+dlen]) {
				decodeEventDescriptor(ev, dr, arib)
			}
			e.events = append(e.events, ev)
			body = body[12+dlen:]
		}
	}
	return e
}

func decodeEventDescriptor(ev *EPGEvent, dr descriptor, arib bool) {
	switch dr.tag {
	case 0x4D: // short_event_descriptor
		if len(dr.data) < 5 {
			return
		}
		b := dr.data[3:]
		nlen := int(b[0])
		if 1+nlen >= len(b) {
			return
		}
		ev.Title = decodeText(b[1:1+nlen], arib)
		b = b[1+nlen:]
		tlen := int(b[0])
		if 1+tlen > len(b) {
			return
		}
		ev.Summary = decodeText(b[1:1+tlen], arib)

	case 0x4E: // extended_event_descriptor
		if len(dr.data) < 6 {
			return
		}
		b := dr.data[5:]
		ilen := int(dr.data[4])
		if ilen > len(b) {
			return
		}
		b = b[ilen:]
		if len(b) < 1 {
			return
		}
		tlen := int(b[0])
		if 1+tlen > len(b) {
			return
		}
		ev.Description += decodeText(b[1:1+tlen], arib)

	case 0x55: // parental_rating_descriptor
		// First country entry only; encoded value is minimum
		// age minus three.
		if len(dr.data) >= 4 && dr.data[3] >= 0x01 && dr.data[3] <= 0x0F {
			ev.Rating = int(dr.data[3]) + 3
		}
	}
}

// decodeMJDTime converts a 5-byte DVB UTC field (16-bit modified
// Julian date plus BCD hh:mm:ss) to seconds since the Unix epoch.
func decodeMJDTime(b []byte) int64 {
	mjd := int64(b[0])<<8 | int64(b[1])
	if mjd == 0xFFFF {
		return 0
	}
	// MJD 40587 is 1970-01-01.
	return (mjd-40587)*86400 + int64(fromBCD(b[2]))*3600 +
		int64(fromBCD(b[3]))*60 + int64(fromBCD(b[4]))
}

// decodeBCDDuration converts a 3-byte BCD hh:mm:ss field to seconds.
func decodeBCDDuration(b []byte) int {
	return fromBCD(b[0])*3600 + fromBCD(b[1])*60 + fromBCD(b[2])
}

func fromBCD(b byte) int {
	return int(b>>4)*10 + int(b&0x0F)
}
