package mpegts

import (
	"encoding/hex"
	"fmt"
)

// Descrambler decrypts transport packets in place. Implementations
// wrap an actual cipher (DVB-CSA in hardware or software); the
// demuxer only manages key state and invocation.
type Descrambler interface {
	// SetControlWord installs an 8-byte control word in the even or
	// odd key slot.
	SetControlWord(cw [8]byte, odd bool) error
	// Descramble decrypts one 188-byte packet in place, touching at
	// most limit payload bytes, and clears the scrambling bits.
	Descramble(pkt []byte, limit int)
}

// ParseControlWord decodes a 16-hex-digit control word string.
func ParseControlWord(s string) ([8]byte, error) {
	var cw [8]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return cw, fmt.Errorf("mpegts: control word %q: %w", s, err)
	}
	if len(b) != 8 {
		return cw, fmt.Errorf("mpegts: control word %q: need 8 bytes, got %d", s, len(b))
	}
	copy(cw[:], b)
	return cw, nil
}

// SetDescramblingKey installs a control word while the demuxer is
// running. Safe to call from any goroutine.
func (d *Demuxer) SetDescramblingKey(hexCW string, odd bool) error {
	cw, err := ParseControlWord(hexCW)
	if err != nil {
		return err
	}
	d.csaMu.Lock()
	defer d.csaMu.Unlock()
	if d.descrambler == nil {
		return fmt.Errorf("mpegts: no descrambler configured")
	}
	return d.descrambler.SetControlWord(cw, odd)
}

// descramble runs the configured cipher over a scrambled packet,
// holding the key mutex so live key updates never race a packet.
func (d *Demuxer) descramble(pkt []byte) bool {
	d.csaMu.Lock()
	defer d.csaMu.Unlock()
	if d.descrambler == nil {
		return false
	}
	d.descrambler.Descramble(pkt, d.csaDecryptSize)
	return true
}
