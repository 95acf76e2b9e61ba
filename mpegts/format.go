package mpegts

// classified is the result of stream-type interpretation for one PMT
// entry before per-service fan-out.
type classified struct {
	category  Category
	codec     Codec
	sections  bool
	extradata []byte
	drop      bool
}

// classify maps a PMT stream_type plus its descriptor loop to a
// category and codec. HDMV programs reinterpret the 0x80..0xAF range
// with the Blu-ray table, and private PES (0x06) dispatches purely on
// descriptors.
func classify(p *pmt, es *pmtES, arib bool) classified {
	if p.hdmv() {
		if c, ok := classifyHDMV(es.streamType); ok {
			return c
		}
	}

	switch es.streamType {
	case 0x01:
		return classified{category: CategoryVideo, codec: CodecMPEG1Video}
	case 0x02:
		return classified{category: CategoryVideo, codec: CodecMPEG2Video}
	case 0x03, 0x04:
		return classified{category: CategoryAudio, codec: CodecMPEGAudio}
	case 0x06:
		return classifyPrivatePES(es, arib)
	case 0x0F:
		return classified{category: CategoryAudio, codec: CodecAAC}
	case 0x10:
		return classified{category: CategoryVideo, codec: CodecMPEG4Video}
	case 0x11:
		return classified{category: CategoryAudio, codec: CodecLATMAAC}
	case 0x12, 0x13:
		return classifySL(p, es)
	case 0x1B:
		return classified{category: CategoryVideo, codec: CodecH264}
	case 0x1C:
		return classified{category: CategoryAudio, codec: CodecAAC}
	case 0x24, 0x27:
		return classified{category: CategoryVideo, codec: CodecHEVC}
	case 0x42:
		return classified{category: CategoryVideo, codec: CodecCAVS}
	case 0x81:
		return classified{category: CategoryAudio, codec: CodecAC3}
	case 0x82:
		// SCTE-27 subtitles ride sections, not PES.
		return classified{category: CategorySubtitle, codec: CodecSCTE27, sections: true}
	case 0x83:
		return classified{category: CategoryAudio, codec: CodecLPCM}
	case 0x86:
		// SCTE-35 splice information, delivered as raw sections for
		// the sink to decode.
		return classified{codec: CodecSCTE35, sections: true}
	case 0x87:
		return classified{category: CategoryAudio, codec: CodecEAC3}
	case 0x8A:
		return classified{category: CategoryAudio, codec: CodecDTS}
	case 0x91:
		return classified{category: CategoryAudio, codec: CodecAC3}
	case 0x94:
		return classified{category: CategoryAudio, codec: CodecSDDS}
	case 0xA0:
		return classifyPrivateVideo(es)
	case 0xD1:
		return classified{category: CategoryVideo, codec: CodecDirac}
	case 0xEA:
		return classified{category: CategoryVideo, codec: CodecVC1}
	default:
		return classified{drop: true}
	}
}

// classifyHDMV covers the Blu-ray stream types that collide with the
// generic user-private range.
func classifyHDMV(streamType uint8) (classified, bool) {
	switch streamType {
	case 0x80:
		return classified{category: CategoryAudio, codec: CodecBDLPCM}, true
	case 0x81:
		return classified{category: CategoryAudio, codec: CodecAC3}, true
	case 0x82, 0x85, 0x86, 0xA2:
		return classified{category: CategoryAudio, codec: CodecDTS}, true
	case 0x83:
		return classified{category: CategoryAudio, codec: CodecTrueHD}, true
	case 0x84, 0xA1:
		return classified{category: CategoryAudio, codec: CodecEAC3}, true
	case 0x90:
		return classified{category: CategorySubtitle, codec: CodecBDPG}, true
	case 0x91:
		return classified{category: CategorySubtitle, codec: CodecBDIG}, true
	case 0x92:
		return classified{category: CategorySubtitle, codec: CodecBDText}, true
	default:
		return classified{}, false
	}
}

// classifyPrivatePES resolves stream type 0x06, which carries no
// format information of its own: the descriptor loop decides.
func classifyPrivatePES(es *pmtES, arib bool) classified {
	d := &es.descs

	if len(d.teletext) > 0 {
		return classified{category: CategorySubtitle, codec: CodecTeletext}
	}
	if len(d.subtitles) > 0 {
		return classified{category: CategorySubtitle, codec: CodecDVBSub}
	}
	if arib && d.dataComponent == 0x0008 {
		return classified{category: CategorySubtitle, codec: CodecARIBA}
	}
	if arib && d.dataComponent == 0x0012 {
		return classified{category: CategorySubtitle, codec: CodecARIBC}
	}
	if arib && d.componentTag >= 0x30 && d.componentTag <= 0x37 {
		return classified{category: CategorySubtitle, codec: CodecARIBA}
	}
	if arib && d.componentTag >= 0x38 && d.componentTag <= 0x3F {
		return classified{category: CategorySubtitle, codec: CodecARIBC}
	}

	if d.registration == "Opus" {
		c := classified{category: CategoryAudio, codec: CodecOpus}
		if cfg, ok := d.extensions[descExtTagOpus]; ok && len(cfg) >= 1 {
			c.extradata = append([]byte(nil), cfg...)
		}
		return c
	}

	switch {
	case d.hasAC3 || d.registration == "AC-3":
		return classified{category: CategoryAudio, codec: CodecAC3}
	case d.hasEAC3 || d.registration == "EAC3":
		return classified{category: CategoryAudio, codec: CodecEAC3}
	case d.hasDTS || d.registration == "DTS1" || d.registration == "DTS2" || d.registration == "DTS3":
		return classified{category: CategoryAudio, codec: CodecDTS}
	case d.hasAAC:
		return classified{category: CategoryAudio, codec: CodecAAC}
	case d.registration == "BSSD":
		return classified{category: CategoryAudio, codec: CodecAES3}
	case d.registration == "HEVC":
		return classified{category: CategoryVideo, codec: CodecHEVC}
	case d.registration == "VC-1":
		return classified{category: CategoryVideo, codec: CodecVC1}
	case d.registration == "drac":
		return classified{category: CategoryVideo, codec: CodecDirac}
	}
	return classified{drop: true}
}

// classifySL resolves MPEG-4 SL streams (types 0x12 and 0x13) through
// the program's IOD. Type 0x13 carries the SL packets in sections.
func classifySL(p *pmt, es *pmtES) classified {
	if p.iod == nil || es.descs.slESID < 0 {
		return classified{drop: true}
	}
	st := p.iod.find(es.descs.slESID)
	if st == nil {
		return classified{drop: true}
	}

	c := classified{sections: es.streamType == 0x13}
	c.extradata = st.config
	switch st.objectType {
	case 0x20:
		c.category, c.codec = CategoryVideo, CodecMPEG4Video
	case 0x21:
		c.category, c.codec = CategoryVideo, CodecH264
	case 0x40, 0x66, 0x67, 0x68:
		c.category, c.codec = CategoryAudio, CodecAAC
	case 0x60, 0x61, 0x62, 0x63, 0x64, 0x65:
		c.category, c.codec = CategoryVideo, CodecMPEG2Video
	case 0x69, 0x6B:
		c.category, c.codec = CategoryAudio, CodecMPEGAudio
	case 0x6C:
		c.category, c.codec = CategoryVideo, CodecMJPEG
	default:
		if st.streamKind == 0x0D { // text stream
			c.category, c.codec = CategorySubtitle, CodecMP4Text
			return c
		}
		return classified{drop: true}
	}
	return c
}

// classifyPrivateVideo handles stream type 0xA0, a private video
// convention where the registration names the codec.
func classifyPrivateVideo(es *pmtES) classified {
	switch es.descs.registration {
	case "HEVC":
		return classified{category: CategoryVideo, codec: CodecHEVC}
	case "VC-1":
		return classified{category: CategoryVideo, codec: CodecVC1}
	default:
		if es.descs.registration != "" {
			return classified{category: CategoryVideo, codec: CodecNone}
		}
		return classified{drop: true}
	}
}

// buildStreams expands one PMT entry into gather streams. Teletext
// and DVB subtitle PIDs multiplex several services: with split set,
// each announced service becomes its own stream fed the same
// payloads; without it the PID stays one stream and the raw service
// descriptor payload rides along as Extradata for the decoder.
func buildStreams(p *pmt, es *pmtES, arib, split bool) []*esStream {
	c := classify(p, es, arib)
	if c.drop {
		return nil
	}

	base := ESFormat{
		PID:              es.pid,
		Program:          p.program,
		StreamType:       es.streamType,
		Category:         c.category,
		Codec:            c.codec,
		ComponentTag:     es.descs.componentTag,
		TeletextMagazine: -1,
		TeletextPage:     -1,
		SubComposition:   -1,
		SubAncillary:     -1,
		Extradata:        c.extradata,
	}
	if len(es.descs.languages) > 0 {
		base.Language = es.descs.languages[0].code
		base.AudioType = es.descs.languages[0].audioType
	}

	switch c.codec {
	case CodecTeletext:
		if !split {
			base.Extradata = es.descPayload(descTeletext, descVBITeletext)
			return []*esStream{newESStream(base, c.sections)}
		}
		var out []*esStream
		for _, svc := range es.descs.teletext {
			// Only subtitle-bearing teletext services become
			// their own streams; the initial page rides the
			// primary.
			f := base
			f.Language = svc.lang
			f.TeletextMagazine = svc.magazine
			f.TeletextPage = svc.page
			out = append(out, newESStream(f, c.sections))
		}
		if len(out) == 0 {
			out = append(out, newESStream(base, c.sections))
		}
		return out

	case CodecDVBSub:
		if !split {
			base.Extradata = es.descPayload(descSubtitling)
			return []*esStream{newESStream(base, c.sections)}
		}
		var out []*esStream
		for _, svc := range es.descs.subtitles {
			f := base
			f.Language = svc.lang
			f.SubComposition = svc.composition
			f.SubAncillary = svc.ancillary
			out = append(out, newESStream(f, c.sections))
		}
		if len(out) == 0 {
			out = append(out, newESStream(base, c.sections))
		}
		return out

	default:
		return []*esStream{newESStream(base, c.sections)}
	}
}
