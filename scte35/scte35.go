// Package scte35 decodes SCTE-35 splice information sections, the ad
// insertion cues carried on their own PID inside an MPEG transport
// stream. The splice commands in broadcast use (splice_null,
// splice_insert, time_signal) and the CUEI segmentation descriptor are
// decoded into typed values; anything else is skipped, not rejected.
package scte35

import (
	"errors"
	"fmt"
)

const tableID = 0xFC

// CommandType identifies a splice command.
type CommandType uint8

const (
	CommandNull       CommandType = 0x00
	CommandInsert     CommandType = 0x05
	CommandTimeSignal CommandType = 0x06
)

func (t CommandType) String() string {
	switch t {
	case CommandNull:
		return "splice_null"
	case CommandInsert:
		return "splice_insert"
	case CommandTimeSignal:
		return "time_signal"
	default:
		return fmt.Sprintf("reserved(0x%02X)", uint8(t))
	}
}

// BreakDuration is the announced length of a splice break in 90 kHz
// ticks. AutoReturn means the splicer re-joins the network feed on its
// own when the duration elapses.
type BreakDuration struct {
	AutoReturn bool
	Ticks      uint64
}

// SpliceInsert is the classic cue-out/cue-in command. SpliceTime is
// the 33-bit splice point in 90 kHz ticks, nil when the splice is
// immediate or the time was not specified.
type SpliceInsert struct {
	EventID      uint32
	Cancel       bool
	OutOfNetwork bool
	Immediate    bool
	SpliceTime   *uint64
	Break        *BreakDuration
	ProgramID    uint16
	AvailNum     uint8
	AvailsTotal  uint8
}

// TimeSignal carries a presentation timestamp for the segmentation
// descriptors riding alongside it. PTS is nil when unspecified.
type TimeSignal struct {
	PTS *uint64
}

// SpliceInfo is one decoded splice_info_section.
type SpliceInfo struct {
	// PTSAdjustment is added to every time field by the splicer.
	PTSAdjustment uint64
	Tier          uint16

	CommandType CommandType
	// Exactly one of the following is set, matching CommandType;
	// reserved command types leave all three nil.
	Insert     *SpliceInsert
	TimeSignal *TimeSignal

	Segmentations []Segmentation
}

var (
	// ErrNotSpliceInfo reports a section whose table id is not 0xFC.
	ErrNotSpliceInfo = errors.New("scte35: not a splice_info_section")
	// ErrEncrypted reports a section this package cannot read.
	ErrEncrypted = errors.New("scte35: encrypted section")
	// ErrBadCRC reports a checksum mismatch.
	ErrBadCRC = errors.New("scte35: CRC32 mismatch")
)

// Decode parses a complete splice_info_section, CRC included.
func Decode(section []byte) (*SpliceInfo, error) {
	if len(section) < 20 {
		return nil, errShort
	}
	if section[0] != tableID {
		return nil, ErrNotSpliceInfo
	}
	if crc32MPEG2(section[:len(section)-4]) !=
		uint32(section[len(section)-4])<<24|uint32(section[len(section)-3])<<16|
			uint32(section[len(section)-2])<<8|uint32(section[len(section)-1]) {
		return nil, ErrBadCRC
	}

	r := &bitReader{b: section[:len(section)-4]}
	r.skip(8)  // table_id
	r.skip(4)  // syntax, private, sap_type
	r.skip(12) // section_length
	r.skip(8)  // protocol_version
	encrypted := r.flag()
	r.skip(6) // encryption_algorithm
	if encrypted {
		return nil, ErrEncrypted
	}

	info := &SpliceInfo{}
	info.PTSAdjustment = r.read(33)
	r.skip(8) // cw_index
	info.Tier = uint16(r.read(12))

	cmdLen := int(r.read(12))
	info.CommandType = CommandType(r.read(8))

	// Decode the command in place, then realign on the declared
	// length. The legacy all-ones length means "not stated"; the
	// in-place decode already leaves the reader at the right spot.
	mark := r.pos
	switch info.CommandType {
	case CommandNull:
	case CommandInsert:
		info.Insert = decodeInsert(r)
	case CommandTimeSignal:
		info.TimeSignal = &TimeSignal{PTS: decodeSpliceTime(r)}
	default:
		if cmdLen == 0xFFF {
			return nil, fmt.Errorf("scte35: reserved command 0x%02X with unstated length", uint8(info.CommandType))
		}
	}
	if cmdLen != 0xFFF {
		r.pos = mark
		r.skip(cmdLen * 8)
	}

	loopLen := int(r.read(16))
	if r.err != nil {
		return nil, r.err
	}
	descStart := r.pos / 8
	if descStart+loopLen > len(r.b) {
		return nil, errShort
	}
	info.Segmentations = decodeSegmentations(r.b[descStart : descStart+loopLen])
	return info, nil
}

func decodeInsert(r *bitReader) *SpliceInsert {
	si := &SpliceInsert{}
	si.EventID = uint32(r.read(32))
	si.Cancel = r.flag()
	r.skip(7)
	if si.Cancel {
		return si
	}

	si.OutOfNetwork = r.flag()
	programSplice := r.flag()
	durationFlag := r.flag()
	si.Immediate = r.flag()
	r.skip(4)

	if programSplice {
		if !si.Immediate {
			si.SpliceTime = decodeSpliceTime(r)
		}
	} else {
		// Component mode: the per-component times are consumed but
		// not retained, matching how program-level splicers treat
		// them.
		count := int(r.read(8))
		for i := 0; i < count; i++ {
			r.skip(8)
			if !si.Immediate {
				decodeSpliceTime(r)
			}
		}
	}

	if durationFlag {
		bd := &BreakDuration{}
		bd.AutoReturn = r.flag()
		r.skip(6)
		bd.Ticks = r.read(33)
		si.Break = bd
	}

	si.ProgramID = uint16(r.read(16))
	si.AvailNum = uint8(r.read(8))
	si.AvailsTotal = uint8(r.read(8))
	return si
}

// decodeSpliceTime reads a splice_time(): a specified flag and, when
// set, a 33-bit PTS.
func decodeSpliceTime(r *bitReader) *uint64 {
	if !r.flag() {
		r.skip(7)
		return nil
	}
	r.skip(6)
	pts := r.read(33)
	return &pts
}
