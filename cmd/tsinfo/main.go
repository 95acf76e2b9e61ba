// Command tsinfo demultiplexes an MPEG transport stream from a file
// or a live SRT pull and reports its programs, streams and timing.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	srtingest "github.com/zsiec/tsdemux/ingest/srt"
	"github.com/zsiec/tsdemux/mpegts"
	"github.com/zsiec/tsdemux/scte35"
)

var version = "dev"

func main() {
	var (
		srtAddr    = flag.String("srt", "", "pull from an SRT listener instead of a file")
		srtListen  = flag.String("srt-listen", "", "accept one SRT publisher on this address")
		streamID   = flag.String("streamid", "", "SRT stream id")
		userPMT    = flag.String("pmt", "", "manual program map: pmtpid[:program]=pid:type[,...]")
		arib       = flag.String("arib", "auto", "ARIB broadcast text handling: auto, on or off")
		splitES    = flag.Bool("split-es", true, "expose each teletext/subtitle service as its own stream")
		trustPCR   = flag.Bool("trust-pcr", true, "trust program clock references for timing and seeking")
		packetSize = flag.Int("packet-size", 0, "force packet size (188, 192 or 204)")
		seekTo     = flag.Float64("seek", -1, "seek to a stream fraction (0..1) before demuxing")
		program    = flag.Int("program", -1, "pin the clock reference program")
	)
	flag.Parse()

	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	slog.Info("tsinfo starting", "version", version)

	src, closeSrc, err := openSource(ctx, *srtAddr, *srtListen, *streamID, flag.Arg(0))
	if err != nil {
		slog.Error("failed to open source", "error", err)
		os.Exit(1)
	}
	defer closeSrc()

	var opts []func(*mpegts.Demuxer)
	if *userPMT != "" {
		opts = append(opts, mpegts.DemuxerOptUserPMT(*userPMT))
	}
	switch *arib {
	case "auto":
	case "on":
		opts = append(opts, mpegts.DemuxerOptARIB(mpegts.ARIBEnabled))
	case "off":
		opts = append(opts, mpegts.DemuxerOptARIB(mpegts.ARIBDisabled))
	default:
		slog.Error("invalid -arib value", "value", *arib)
		os.Exit(2)
	}
	if !*splitES {
		opts = append(opts, mpegts.DemuxerOptSplitES(false))
	}
	if !*trustPCR {
		opts = append(opts, mpegts.DemuxerOptTrustPCR(false))
	}
	if *packetSize != 0 {
		opts = append(opts, mpegts.DemuxerOptPacketSize(*packetSize))
	}
	if *program >= 0 {
		opts = append(opts, mpegts.DemuxerOptProgram(uint16(*program)))
	}

	sink := newReportSink()
	dmx, err := mpegts.NewDemuxer(ctx, src, sink, opts...)
	if err != nil {
		slog.Error("failed to open transport stream", "error", err)
		os.Exit(1)
	}
	defer dmx.Close()

	if *seekTo >= 0 {
		if err := dmx.SetPosition(*seekTo); err != nil {
			slog.Error("seek failed", "fraction", *seekTo, "error", err)
			os.Exit(1)
		}
		slog.Info("seeked", "fraction", *seekTo,
			"time_ms", dmx.Time()/1000, "length_ms", dmx.Length()/1000)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			if err := dmx.Demux(); err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
					return nil
				}
				return fmt.Errorf("demux: %w", err)
			}
		}
	})

	err = g.Wait()
	sink.report(dmx)
	if err != nil {
		slog.Error("demux error", "error", err)
		os.Exit(1)
	}
}

func openSource(ctx context.Context, srtAddr, srtListen, streamID, path string) (mpegts.Source, func(), error) {
	if srtAddr != "" {
		s, err := srtingest.Dial(ctx, srtAddr, streamID, nil)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	}
	if srtListen != "" {
		s, err := srtingest.Listen(ctx, srtListen, false, nil)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	}
	if path == "" {
		return nil, nil, fmt.Errorf("usage: tsinfo [flags] <file.ts> (or -srt / -srt-listen address)")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	src, err := mpegts.NewFileSource(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return src, func() { f.Close() }, nil
}

// reportSink counts delivered blocks per stream and logs program
// metadata as it is announced.
type reportSink struct {
	next    mpegts.StreamHandle
	streams map[mpegts.StreamHandle]*streamStats
}

type streamStats struct {
	format   mpegts.ESFormat
	blocks   int
	bytes    int64
	firstPTS int64
	lastPTS  int64
	errors   int
}

func newReportSink() *reportSink {
	return &reportSink{streams: make(map[mpegts.StreamHandle]*streamStats)}
}

func (s *reportSink) AddStream(f mpegts.ESFormat) (mpegts.StreamHandle, error) {
	h := s.next
	s.next++
	s.streams[h] = &streamStats{format: f, firstPTS: -1, lastPTS: -1}
	return h, nil
}

func (s *reportSink) Send(h mpegts.StreamHandle, b *mpegts.Block) error {
	st := s.streams[h]
	if st == nil {
		return fmt.Errorf("unknown stream %d", h)
	}
	st.blocks++
	st.bytes += int64(len(b.Data))
	if b.Corrupted {
		st.errors++
	}
	if b.PTS >= 0 {
		if st.firstPTS < 0 {
			st.firstPTS = b.PTS
		}
		st.lastPTS = b.PTS
	}
	if st.format.Codec == mpegts.CodecSCTE35 {
		s.logSplice(st.format.PID, b.Data)
	}
	return nil
}

func (s *reportSink) logSplice(pid uint16, section []byte) {
	info, err := scte35.Decode(section)
	if err != nil {
		slog.Warn("undecodable splice section", "pid", pid, "error", err)
		return
	}
	switch {
	case info.Insert != nil:
		slog.Info("splice insert", "pid", pid,
			"event", info.Insert.EventID, "out", info.Insert.OutOfNetwork,
			"immediate", info.Insert.Immediate)
	case info.TimeSignal != nil:
		for _, seg := range info.Segmentations {
			slog.Info("splice segmentation", "pid", pid,
				"event", seg.EventID, "type", seg.TypeName())
		}
	}
}

func (s *reportSink) DelStream(h mpegts.StreamHandle) {
	delete(s.streams, h)
}

func (s *reportSink) SetStreamScrambled(h mpegts.StreamHandle, scrambled bool) {
	if st := s.streams[h]; st != nil {
		slog.Info("scrambling change", "pid", st.format.PID, "scrambled", scrambled)
	}
}

func (s *reportSink) SetGroupPCR(program uint16, pcrTime int64) {}

func (s *reportSink) SetGroupMeta(program uint16, meta mpegts.GroupMeta) {
	slog.Info("service", "program", program, "name", meta.Name,
		"provider", meta.Provider, "scrambled", meta.Scrambled)
}

func (s *reportSink) SetGroupEPG(program uint16, epg *mpegts.EPG) {
	if epg.Current != nil {
		slog.Info("now showing", "program", program, "title", epg.Current.Title,
			"start", time.Unix(epg.Current.Start, 0).UTC().Format(time.RFC3339),
			"duration_s", epg.Current.Duration)
	}
}

func (s *reportSink) DelGroup(program uint16) {
	slog.Info("program removed", "program", program)
}

func (s *reportSink) report(dmx *mpegts.Demuxer) {
	fmt.Printf("packet size: %d bytes\n", dmx.PacketSize())
	if l := dmx.Length(); l > 0 {
		fmt.Printf("duration: %s\n", time.Duration(l)*time.Microsecond)
	}
	for h, st := range s.streams {
		dur := time.Duration(0)
		if st.firstPTS >= 0 && st.lastPTS > st.firstPTS {
			dur = time.Duration(st.lastPTS-st.firstPTS) * time.Microsecond
		}
		fmt.Printf("stream %d: pid=%d program=%d %s/%s lang=%q blocks=%d bytes=%d corrupted=%d span=%s\n",
			h, st.format.PID, st.format.Program, st.format.Category,
			st.format.Codec, st.format.Language, st.blocks, st.bytes, st.errors, dur)
	}
}
