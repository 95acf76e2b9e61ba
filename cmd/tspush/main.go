// Command tspush streams a transport stream file to an SRT listener at
// its native rate, deriving the rate from the file's own PCR timeline.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	srtgo "github.com/zsiec/srtgo"

	"github.com/zsiec/tsdemux/mpegts"
)

// chunkPackets is how many packets ride in one SRT payload; 7 packets
// of 188 bytes fit the conventional 1316-byte SRT message.
const chunkPackets = 7

func main() {
	var (
		addr     = flag.String("addr", "127.0.0.1:6000", "SRT listener address")
		streamID = flag.String("streamid", "", "SRT stream id")
		duration = flag.Float64("duration", 0, "override duration in seconds (skips the PCR probe)")
		loop     = flag.Bool("loop", false, "restart from the beginning at end of file")
	)
	flag.Parse()

	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	path := flag.Arg(0)
	if path == "" {
		fmt.Fprintln(os.Stderr, "usage: tspush [flags] <file.ts>")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := push(ctx, path, *addr, *streamID, *duration, *loop); err != nil {
		slog.Error("push failed", "error", err)
		os.Exit(1)
	}
}

func push(ctx context.Context, path, addr, streamID string, durationOverride float64, loop bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	seconds := durationOverride
	if seconds <= 0 {
		seconds = probeDuration(ctx, path)
	}
	if seconds <= 0 {
		seconds = 60 // no usable clock: assume a minute
	}
	bytesPerSec := float64(len(data)) / seconds
	slog.Info("pushing", "file", path, "bytes", len(data),
		"duration_s", seconds, "rate_bps", int64(bytesPerSec*8))

	cfg := srtgo.DefaultConfig()
	cfg.StreamID = streamID
	conn, err := srtgo.Dial(addr, cfg)
	if err != nil {
		return fmt.Errorf("SRT dial %s: %w", addr, err)
	}
	defer conn.Close()

	chunk := chunkPackets * mpegts.PacketSize188
	start := time.Now()
	var sent int64
	for {
		for off := 0; off < len(data); off += chunk {
			if ctx.Err() != nil {
				return nil
			}
			end := off + chunk
			if end > len(data) {
				end = len(data)
			}
			if _, err := conn.Write(data[off:end]); err != nil {
				return fmt.Errorf("SRT write: %w", err)
			}
			sent += int64(end - off)

			// Pace against the wall clock from the start of the
			// whole run, so loop seams stay smooth.
			ahead := float64(sent)/bytesPerSec - time.Since(start).Seconds()
			if ahead > 0 {
				time.Sleep(time.Duration(ahead * float64(time.Second)))
			}
		}
		if !loop {
			return nil
		}
		slog.Info("looping", "sent_bytes", sent)
	}
}

// probeDuration measures the stream duration from its PCR timeline.
func probeDuration(ctx context.Context, path string) float64 {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()
	src, err := mpegts.NewFileSource(f)
	if err != nil {
		return 0
	}
	dmx, err := mpegts.NewDemuxer(ctx, src, nopSink{})
	if err != nil {
		return 0
	}
	defer dmx.Close()
	return float64(dmx.Length()) / 1e6
}

// nopSink discards everything; tspush only needs the clock probe.
type nopSink struct{}

func (nopSink) AddStream(mpegts.ESFormat) (mpegts.StreamHandle, error) { return 0, nil }
func (nopSink) Send(mpegts.StreamHandle, *mpegts.Block) error          { return nil }
func (nopSink) DelStream(mpegts.StreamHandle)                          {}
func (nopSink) SetStreamScrambled(mpegts.StreamHandle, bool)           {}
func (nopSink) SetGroupPCR(uint16, int64)                              {}
func (nopSink) SetGroupMeta(uint16, mpegts.GroupMeta)                  {}
func (nopSink) SetGroupEPG(uint16, *mpegts.EPG)                        {}
func (nopSink) DelGroup(uint16)                                        {}
