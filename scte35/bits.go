package scte35

import "errors"

var errShort = errors.New("scte35: section truncated")

// bitReader walks a byte slice bit by bit. Reads past the end set a
// sticky error instead of panicking, so decoders check once at the end.
type bitReader struct {
	b   []byte
	pos int // bit offset
	err error
}

func (r *bitReader) read(n int) uint64 {
	if r.err != nil {
		return 0
	}
	if r.pos+n > len(r.b)*8 {
		r.err = errShort
		return 0
	}
	var v uint64
	for i := 0; i < n; i++ {
		byteIdx := r.pos >> 3
		bit := (r.b[byteIdx] >> (7 - uint(r.pos&7))) & 1
		v = v<<1 | uint64(bit)
		r.pos++
	}
	return v
}

func (r *bitReader) flag() bool { return r.read(1) == 1 }

func (r *bitReader) skip(n int) {
	if r.err != nil {
		return
	}
	if r.pos+n > len(r.b)*8 {
		r.err = errShort
		return
	}
	r.pos += n
}

// crcTable is the MPEG-2 CRC32 table (polynomial 0x04C11DB7, no
// reflection, initial value all ones).
var crcTable = func() [256]uint32 {
	var t [256]uint32
	for i := range t {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ 0x04C11DB7
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}()

func crc32MPEG2(b []byte) uint32 {
	crc := ^uint32(0)
	for _, c := range b {
		crc = crc<<8 ^ crcTable[byte(crc>>24)^c]
	}
	return crc
}
