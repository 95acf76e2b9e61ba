package mpegts

import (
	"fmt"
	"strconv"
	"strings"
)

// applyUserPMT installs a manually declared program layout, for raw
// streams recorded without their tables. The spec reads
// "pmtpid[:program]=espid:type[,espid:type...]" where type is video,
// audio, spu, or a numeric stream type.
func (d *Demuxer) applyUserPMT(spec string) error {
	head, body, ok := strings.Cut(spec, "=")
	if !ok {
		return fmt.Errorf("mpegts: user pmt %q: missing '='", spec)
	}

	pmtStr, progStr, hasProg := strings.Cut(head, ":")
	pmtPID, err := parsePID(pmtStr)
	if err != nil {
		return fmt.Errorf("mpegts: user pmt: %w", err)
	}
	progNum := uint64(1)
	if hasProg {
		progNum, err = strconv.ParseUint(progStr, 0, 16)
		if err != nil {
			return fmt.Errorf("mpegts: user pmt: bad program %q", progStr)
		}
	}

	p := &pmt{pid: pmtPID, program: uint16(progNum), caSystem: -1}
	prg := &program{
		number:      uint16(progNum),
		pmtPID:      pmtPID,
		pcr:         -1,
		userDefined: true,
	}

	for _, item := range strings.Split(body, ",") {
		pidStr, typeStr, ok := strings.Cut(item, ":")
		if !ok {
			return fmt.Errorf("mpegts: user pmt: entry %q needs pid:type", item)
		}
		esPID, err := parsePID(pidStr)
		if err != nil {
			return fmt.Errorf("mpegts: user pmt: %w", err)
		}
		st, err := parseStreamType(typeStr)
		if err != nil {
			return err
		}
		var streams []*esStream
		if st.keyword {
			// A bare category keyword promises nothing about the
			// payload format, so the stream registers without a
			// codec and the sink decides what to do with it.
			streams = []*esStream{newESStream(ESFormat{
				PID:              esPID,
				Program:          uint16(progNum),
				Category:         st.category,
				Codec:            CodecNone,
				ComponentTag:     -1,
				TeletextMagazine: -1,
				TeletextPage:     -1,
				SubComposition:   -1,
				SubAncillary:     -1,
			}, false)}
		} else {
			es := pmtES{
				pid:        esPID,
				streamType: st.streamType,
				descs:      esDescriptors{componentTag: -1, caSystem: -1, slESID: -1, dataComponent: -1},
			}
			streams = buildStreams(p, &es, d.aribEnabled(), d.splitES)
			if streams == nil {
				return fmt.Errorf("mpegts: user pmt: unusable stream type %q", typeStr)
			}
		}
		if prg.pcrPID == 0 {
			// First declared stream doubles as the clock source.
			prg.pcrPID = esPID
		}
		d.pids.setES(esPID, int(prg.number), streams)
		d.registerStreams(esPID, streams)
	}

	if pmtPID != 0 {
		d.pids.setPSI(pmtPID, int(prg.number))
	}
	d.programs[prg.number] = prg
	d.userDefined = true
	d.meta = metaDisabled
	d.log.Info("manual program map installed", "program", prg.number,
		"pmt_pid", pmtPID)
	return nil
}

func parsePID(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil || v >= pidCount {
		return 0, fmt.Errorf("bad pid %q", s)
	}
	return uint16(v), nil
}

// userStreamType is one parsed type token: either a category keyword
// or a numeric PMT stream_type.
type userStreamType struct {
	keyword    bool
	category   Category
	streamType uint8
}

func parseStreamType(s string) (userStreamType, error) {
	switch s {
	case "video":
		return userStreamType{keyword: true, category: CategoryVideo}, nil
	case "audio":
		return userStreamType{keyword: true, category: CategoryAudio}, nil
	case "spu":
		return userStreamType{keyword: true, category: CategorySubtitle}, nil
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return userStreamType{}, fmt.Errorf("mpegts: user pmt: bad stream type %q", s)
	}
	return userStreamType{streamType: uint8(v)}, nil
}
