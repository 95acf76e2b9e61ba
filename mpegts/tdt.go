package mpegts

// decodeTDT extracts the network UTC time from a time and date table
// or a time offset table section, as seconds since the Unix epoch.
func decodeTDT(section []byte) (int64, bool) {
	if len(section) < 8 {
		return 0, false
	}
	t := decodeMJDTime(section[3:8])
	if t == 0 {
		return 0, false
	}
	return t, true
}
