package mpegts

import "fmt"

// PSI sections use the forward form of CRC32 with polynomial
// 0x04C11DB7 and no final inversion; hash/crc32 only implements the
// reflected IEEE variant, so the table is built here.
var psiCRCTable = func() (t [256]uint32) {
	for i := range t {
		crc := uint32(i) << 24
		for bit := 0; bit < 8; bit++ {
			crc = crc<<1 ^ (crc >> 31 * 0x04C11DB7)
		}
		t[i] = crc
	}
	return t
}()

// computeCRC32 runs the register over data starting from all ones. A
// section that includes its trailing CRC field hashes to zero.
func computeCRC32(data []byte) uint32 {
	crc := ^uint32(0)
	for _, b := range data {
		crc = crc<<8 ^ psiCRCTable[byte(crc>>24)^b]
	}
	return crc
}

func verifyCRC32(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("mpegts: data too short for CRC32")
	}
	if computeCRC32(data) != 0 {
		return fmt.Errorf("mpegts: CRC32 mismatch")
	}
	return nil
}
