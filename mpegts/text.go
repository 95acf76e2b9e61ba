package mpegts

import (
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// dvbCharsets maps the single-byte charset selector from EN 300 468
// annex A to a decoder. The default (no selector) is ISO 6937, which
// Latin-1 approximates closely enough for service names.
var dvbCharsets = map[byte]encoding.Encoding{
	0x01: charmap.ISO8859_5,
	0x02: charmap.ISO8859_6,
	0x03: charmap.ISO8859_7,
	0x04: charmap.ISO8859_8,
	0x05: charmap.ISO8859_9,
	0x06: charmap.ISO8859_10,
	0x09: charmap.ISO8859_13,
	0x0A: charmap.ISO8859_14,
	0x0B: charmap.ISO8859_15,
	0x13: simplifiedchinese.GB18030,
	0x14: traditionalchinese.Big5,
}

var iso8859 = map[byte]encoding.Encoding{
	1: charmap.ISO8859_1, 2: charmap.ISO8859_2, 3: charmap.ISO8859_3,
	4: charmap.ISO8859_4, 5: charmap.ISO8859_5, 6: charmap.ISO8859_6,
	7: charmap.ISO8859_7, 8: charmap.ISO8859_8, 9: charmap.ISO8859_9,
	10: charmap.ISO8859_10, 13: charmap.ISO8859_13, 14: charmap.ISO8859_14,
	15: charmap.ISO8859_15, 16: charmap.ISO8859_16,
}

// decodeText converts a DVB (or, when arib is set, ARIB STD-B24) text
// field to UTF-8, honoring the leading charset selector and mapping
// the in-text control codes to plain characters.
func decodeText(b []byte, arib bool) string {
	if len(b) == 0 {
		return ""
	}
	if arib {
		return decodeB24(b)
	}

	var enc encoding.Encoding = charmap.ISO8859_1
	if b[0] < 0x20 {
		switch sel := b[0]; {
		case sel == 0x10 && len(b) >= 3:
			if e, ok := iso8859[b[2]]; ok {
				enc = e
			}
			b = b[3:]
		case sel == 0x11:
			enc = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
			b = b[1:]
		case sel == 0x12:
			// KSX1001 is rare in practice; pass through as UTF-8.
			return cleanControls(string(b[1:]))
		case sel == 0x15:
			return cleanControls(string(b[1:]))
		case sel == 0x16:
			enc = utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM)
			b = b[1:]
		default:
			if e, ok := dvbCharsets[sel]; ok {
				enc = e
			}
			b = b[1:]
		}
	}

	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return cleanControls(string(b))
	}
	return cleanControls(string(out))
}

// cleanControls strips the DVB control range U+0080..U+009F, keeping
// the CR/LF code (0x8A) as a newline.
func cleanControls(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch {
		case r == 0x8A:
			sb.WriteByte('\n')
		case r >= 0x80 && r <= 0x9F:
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
