package mpegts

// Opus transport encapsulation: each access unit in a PES payload is
// preceded by a control header with an 11-bit sync pattern, flag bits
// and an 0xFF-escaped size field.

type opusAU struct {
	data      []byte
	startTrim int
	endTrim   int
}

// splitOpus slices a PES payload into its access units. A malformed
// header ends the walk; whatever was recovered before it is kept.
func splitOpus(b []byte) []opusAU {
	var out []opusAU
	for len(b) >= 2 {
		if b[0] != 0x7F || b[1]&0xE0 != 0xE0 {
			break
		}
		startTrimFlag := b[1]&0x10 != 0
		endTrimFlag := b[1]&0x08 != 0
		ctrlExtFlag := b[1]&0x04 != 0
		b = b[2:]

		size := 0
		for {
			if len(b) == 0 {
				return out
			}
			size += int(b[0])
			full := b[0] == 0xFF
			b = b[1:]
			if !full {
				break
			}
		}

		au := opusAU{}
		if startTrimFlag {
			if len(b) < 2 {
				return out
			}
			au.startTrim = int(b[0]&0x03)<<8 | int(b[1])
			b = b[2:]
		}
		if endTrimFlag {
			if len(b) < 2 {
				return out
			}
			au.endTrim = int(b[0]&0x03)<<8 | int(b[1])
			b = b[2:]
		}
		if ctrlExtFlag {
			if len(b) < 1 || 1+int(b[0]) > len(b) {
				return out
			}
			b = b[1+int(b[0]):]
		}
		if size > len(b) {
			return out
		}
		au.data = b[:size]
		b = b[size:]
		out = append(out, au)
	}
	return out
}

// sendOpusBlocks splits one gathered Opus PES block into per-AU
// blocks. The PES timestamp applies to the first unit only.
func (d *Demuxer) sendOpusBlocks(e *pidEntry, block *Block) {
	aus := splitOpus(block.Data)
	if len(aus) == 0 {
		return
	}
	for i, au := range aus {
		out := &Block{
			PTS:           -1,
			DTS:           -1,
			StartTrim:     au.startTrim,
			EndTrim:       au.endTrim,
			Corrupted:     block.Corrupted,
			Discontinuity: block.Discontinuity && i == 0,
			RandomAccess:  block.RandomAccess && i == 0,
			Data:          append([]byte(nil), au.data...),
		}
		if i == 0 {
			out.PTS = block.PTS
			out.DTS = block.DTS
		}
		d.sendBlock(e, out)
	}
}
