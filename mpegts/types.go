package mpegts

// Package-level constants for MPEG-TS packet framing.
const (
	// PacketSize188 is a plain transport packet.
	PacketSize188 = 188
	// PacketSize192 is a transport packet preceded by a 4-byte
	// timestamp header (M2TS / Blu-ray streams).
	PacketSize192 = 192
	// PacketSize204 is a transport packet followed by 16 bytes of
	// Reed-Solomon parity (DVB transmission captures).
	PacketSize204 = 204

	syncByte = 0x47

	// Well-known PIDs.
	pidPAT     = 0x0000
	pidSDT     = 0x0011
	pidEIT     = 0x0012
	pidTDT     = 0x0014
	pidPadding = 0x1FFF

	pidCount = 8192
)

// Category classifies an elementary stream at the coarsest level.
type Category uint8

const (
	CategoryUnknown Category = iota
	CategoryVideo
	CategoryAudio
	CategorySubtitle
)

func (c Category) String() string {
	switch c {
	case CategoryVideo:
		return "video"
	case CategoryAudio:
		return "audio"
	case CategorySubtitle:
		return "subtitle"
	default:
		return "unknown"
	}
}

// Codec identifies the compression format of an elementary stream.
type Codec string

const (
	CodecNone       Codec = ""
	CodecMPEG1Video Codec = "mpeg1video"
	CodecMPEG2Video Codec = "mpeg2video"
	CodecMPEG4Video Codec = "mpeg4video"
	CodecH264       Codec = "h264"
	CodecHEVC       Codec = "hevc"
	CodecVC1        Codec = "vc1"
	CodecCAVS       Codec = "cavs"
	CodecDirac      Codec = "dirac"
	CodecMJPEG      Codec = "mjpeg"

	CodecMPEGAudio Codec = "mpga"
	CodecAAC       Codec = "aac"
	CodecLATMAAC   Codec = "latm-aac"
	CodecAC3       Codec = "ac3"
	CodecEAC3      Codec = "eac3"
	CodecDTS       Codec = "dts"
	CodecTrueHD    Codec = "truehd"
	CodecOpus      Codec = "opus"
	CodecLPCM      Codec = "lpcm"
	CodecBDLPCM    Codec = "bd-lpcm"
	CodecAES3      Codec = "aes3"
	CodecSDDS      Codec = "sdds"

	CodecTeletext Codec = "teletext"
	CodecDVBSub   Codec = "dvbsub"
	CodecSCTE27   Codec = "scte27"
	CodecSCTE35   Codec = "scte35"
	CodecBDPG     Codec = "bd-pg"
	CodecBDIG     Codec = "bd-ig"
	CodecBDText   Codec = "bd-text"
	CodecARIBA    Codec = "arib-caption-a"
	CodecARIBC    Codec = "arib-caption-c"
	CodecTTML     Codec = "ttml"
	CodecMP4Text  Codec = "mp4-text"
)

// ESFormat describes one elementary stream as announced in a PMT,
// flattened so a sink can register it without parsing descriptors.
type ESFormat struct {
	PID        uint16
	Program    uint16
	StreamType uint8
	Category   Category
	Codec      Codec

	// Language is the ISO-639 code from the language descriptor,
	// empty when not announced.
	Language  string
	AudioType uint8

	// ComponentTag is the stream identifier descriptor value, -1
	// when absent.
	ComponentTag int

	// Teletext and DVB subtitles carry per-service routing data.
	TeletextMagazine int
	TeletextPage     int
	SubComposition   int
	SubAncillary     int

	// Extradata holds codec setup bytes recovered from descriptors
	// or from MPEG-4 decoder configs carried in the IOD.
	Extradata []byte
}

/// Block is one reassembled unit handed to the sink: a full PES payload
// for media streams, or a full section for table-carrying streams.
type Block struct {
	// PTS and DTS are in microseconds, -1 when absent.
	PTS int64
	DTS int64
	// StartTrim and EndTrim are sample counts to discard from the
	// head and tail of the decoded unit, from the Opus access unit
	// header. Zero for everything else.
	StartTrim int
	EndTrim   int
	// Corrupted marks payloads assembled across a continuity break
	// or a transport_error_indicator packet.
	Corrupted bool
	// Discontinuity marks the first payload after an adaptation
	// field discontinuity flag.
	Discontinuity bool
	// RandomAccess marks payloads whose first packet carried the
	// adaptation field random access indicator.
	RandomAccess bool
	Data         []byte
}

// StreamHandle identifies a registered stream at the sink.
type StreamHandle int

// GroupMeta carries service-level metadata for one program, built from
// the SDT and updated as table versions change.
type GroupMeta struct {
	Name     string
	Provider string
	// Status is the SDT running_status field.
	Status uint8
	// Scrambled reflects the SDT free_CA_mode bit.
	Scrambled bool
}

// EPGEvent is one event from an EIT section.
type EPGEvent struct {
	ID uint16
	// Start is seconds since the Unix epoch, 0 when undefined.
	Start int64
	// Duration is in seconds.
	Duration int
	Title    string
	Summary  string
	// Description is the extended event text.
	Description string
	RunningStatus uint8
	Rating        int
}

// EPG is the decoded event schedule for one program. Current is the
// present/following "present" event when announced.
type EPG struct {
	Program uint16
	Current *EPGEvent
	Events  []*EPGEvent
}

// Output receives demultiplexed streams and program metadata. All
// calls are made from the goroutine driving Demux.
type Output interface {
	// AddStream registers a newly announced elementary stream and
	// returns the handle used for subsequent Send calls.
	AddStream(format ESFormat) (StreamHandle, error)
	// Send delivers one reassembled block. The callee owns block.Data.
	Send(h StreamHandle, block *Block) error
	// DelStream retires a stream; its handle must not be reused.
	DelStream(h StreamHandle)
	// SetStreamScrambled reports transport scrambling transitions
	// observed on the stream's PID.
	SetStreamScrambled(h StreamHandle, scrambled bool)

	// SetGroupPCR reports program clock progress in microseconds.
	SetGroupPCR(program uint16, pcrTime int64)
	SetGroupMeta(program uint16, meta GroupMeta)
	SetGroupEPG(program uint16, epg *EPG)
	// DelGroup tears down one program and everything attached to it.
	DelGroup(program uint16)
}
