package mpegts

// Descriptor tags the demuxer interprets. Anything else is carried as
// an opaque tag/data pair and ignored.
const (
	descRegistration   = 0x05
	descCA             = 0x09
	descISO639         = 0x0A
	descIOD            = 0x1D
	descSL             = 0x1E
	descVBITeletext    = 0x46
	descStreamID       = 0x52
	descTeletext       = 0x56
	descSubtitling     = 0x59
	descAC3            = 0x6A
	descEnhancedAC3    = 0x7A
	descDTS            = 0x7B
	descAAC            = 0x7C
	descDVBExtension   = 0x7F
	descExtTagOpus     = 0x80

	// ARIB STD-B10 descriptors.
	descDigitalCopyControl = 0xC1
	descAccessControl      = 0xF6
	descDataComponent      = 0xFD
)

type descriptor struct {
	tag  uint8
	data []byte
}

// splitDescriptors walks a raw descriptor loop, stopping at the first
// length that overruns the loop.
func splitDescriptors(b []byte) []descriptor {
	var out []descriptor
	for len(b) >= 2 {
		n := int(b[1])
		if 2+n > len(b) {
			break
		}
		out = append(out, descriptor{tag: b[0], data: b[2 : 2+n]})
		b = b[2+n:]
	}
	return out
}

type languageEntry struct {
	code      string
	audioType uint8
}

type teletextService struct {
	lang     string
	kind     uint8
	magazine int
	page     int
}

type subtitleService struct {
	lang        string
	kind        uint8
	composition int
	ancillary   int
}

// esDescriptors is the typed view of one elementary stream's
// descriptor loop, decoded once when the PMT is applied.
type esDescriptors struct {
	registration  string
	languages     []languageEntry
	componentTag  int
	caSystem      int
	slESID        int
	dataComponent int
	teletext      []teletextService
	subtitles     []subtitleService
	hasAC3        bool
	hasEAC3       bool
	hasDTS        bool
	hasAAC        bool
	// extensions maps DVB extension descriptor tags to their
	// payloads (Opus channel configs and similar).
	extensions map[uint8][]byte
}

func decodeESDescriptors(list []descriptor) esDescriptors {
	es := esDescriptors{componentTag: -1, caSystem: -1, slESID: -1, dataComponent: -1}
	for _, dr := range list {
		switch dr.tag {
		case descRegistration:
			if len(dr.data) >= 4 {
				es.registration = string(dr.data[:4])
			}
		case descCA:
			if len(dr.data) >= 2 {
				es.caSystem = int(dr.data[0])<<8 | int(dr.data[1])
			}
		case descISO639:
			for b := dr.data; len(b) >= 4; b = b[4:] {
				es.languages = append(es.languages, languageEntry{
					code:      langCode(b[:3]),
					audioType: b[3],
				})
			}
		case descSL:
			if len(dr.data) >= 2 {
				es.slESID = int(dr.data[0])<<8 | int(dr.data[1])
			}
		case descStreamID:
			if len(dr.data) >= 1 {
				es.componentTag = int(dr.data[0])
			}
		case descTeletext, descVBITeletext:
			for b := dr.data; len(b) >= 5; b = b[5:] {
				es.teletext = append(es.teletext, teletextService{
					lang:     langCode(b[:3]),
					kind:     b[3] >> 3,
					magazine: int(b[3] & 0x07),
					page:     int(b[4]),
				})
			}
		case descSubtitling:
			for b := dr.data; len(b) >= 8; b = b[8:] {
				es.subtitles = append(es.subtitles, subtitleService{
					lang:        langCode(b[:3]),
					kind:        b[3],
					composition: int(b[4])<<8 | int(b[5]),
					ancillary:   int(b[6])<<8 | int(b[7]),
				})
			}
		case descAC3:
			es.hasAC3 = true
		case descEnhancedAC3:
			es.hasEAC3 = true
		case descDTS:
			es.hasDTS = true
		case descAAC:
			es.hasAAC = true
		case descDataComponent:
			if len(dr.data) >= 2 {
				es.dataComponent = int(dr.data[0])<<8 | int(dr.data[1])
			}
		case descDVBExtension:
			if len(dr.data) >= 1 {
				if es.extensions == nil {
					es.extensions = make(map[uint8][]byte)
				}
				es.extensions[dr.data[0]] = dr.data[1:]
			}
		}
	}
	return es
}

// langCode normalizes a 3-byte ISO-639 field, dropping entries that
// are stuffing rather than text.
func langCode(b []byte) string {
	for _, c := range b {
		if c < 0x20 || c > 0x7E {
			return ""
		}
	}
	return string(b[:3])
}
