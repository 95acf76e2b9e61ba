package mpegts

import (
	"strings"

	"golang.org/x/text/encoding/japanese"
)

// decodeB24 converts ARIB STD-B24 character data to UTF-8. The full
// standard multiplexes several graphic sets through designation escape
// sequences; broadcast EPG text in practice uses the kanji set (a
// JIS X 0208 superset) with ASCII, so the decoder maps two-byte GL
// pairs into EUC-JP and hands them to the x/text decoder, skipping
// designation escapes and single-shift prefixes it does not model.
func decodeB24(b []byte) string {
	euc := make([]byte, 0, len(b))
	flush := func(sb *strings.Builder) {
		if len(euc) == 0 {
			return
		}
		if s, err := japanese.EUCJP.NewDecoder().Bytes(euc); err == nil {
			sb.Write(s)
		}
		euc = euc[:0]
	}

	var sb strings.Builder
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch {
		case c == 0x0D:
			flush(&sb)
			sb.WriteByte('\n')
		case c == 0x1B: // designation escape: skip the sequence
			i += b24EscapeLen(b[i+1:])
		case c == 0x19 || c == 0x1D: // SS2/SS3: skip the shifted byte
			i++
		case c < 0x21: // other C0 controls
		case c <= 0x7E: // GL
			if i+1 < len(b) && b[i+1] >= 0x21 && b[i+1] <= 0x7E {
				euc = append(euc, c|0x80, b[i+1]|0x80)
				i++
			} else {
				flush(&sb)
				sb.WriteByte(c)
			}
		case c >= 0xA1 && c <= 0xFE: // GR, already EUC-JP range
			if i+1 < len(b) && b[i+1] >= 0xA1 && b[i+1] <= 0xFE {
				euc = append(euc, c, b[i+1])
				i++
			}
		}
	}
	flush(&sb)
	return sb.String()
}

// b24EscapeLen returns how many bytes after ESC belong to the
// designation sequence.
func b24EscapeLen(b []byte) int {
	if len(b) == 0 {
		return 0
	}
	n := 1
	for n <= len(b) && n < 4 && b[n-1] >= 0x20 && b[n-1] <= 0x2F {
		n++
	}
	return n
}
