// Package srt pulls a live transport stream from a remote SRT
// listener and exposes it as a demuxer source.
package srt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	srtgo "github.com/zsiec/srtgo"

	"github.com/zsiec/tsdemux/mpegts"
)

// srtLatencyNs is the SRT latency setting in nanoseconds (120ms).
const srtLatencyNs = 120_000_000

const dialTimeout = 10 * time.Second

// Source is a live, non-seekable demuxer source backed by an SRT
// connection.
type Source struct {
	*mpegts.ReaderSource
	conn *srtgo.Conn
	log  *slog.Logger
}

// Dial connects to an SRT listener and returns a Source pulling from
// it. If log is nil, slog.Default() is used.
func Dial(ctx context.Context, address, streamID string, log *slog.Logger) (*Source, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "srt-source")

	if address == "" {
		return nil, fmt.Errorf("address is required")
	}

	cfg := srtgo.DefaultConfig()
	cfg.Latency = srtLatencyNs
	cfg.StreamID = streamID

	type dialResult struct {
		conn *srtgo.Conn
		err  error
	}
	ch := make(chan dialResult, 1)
	go func() {
		conn, err := srtgo.Dial(address, cfg)
		ch <- dialResult{conn, err}
	}()

	timer := time.NewTimer(dialTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("SRT dial failed: %w", res.err)
		}
		log.Info("connected", "address", address, "stream_id", streamID)
		return &Source{
			ReaderSource: mpegts.NewReaderSource(res.conn),
			conn:         res.conn,
			log:          log,
		}, nil
	case <-timer.C:
		// Drain the dial result in the background and close any leaked connection.
		go func() {
			if res := <-ch; res.conn != nil {
				res.conn.Close()
			}
		}()
		return nil, fmt.Errorf("SRT dial timed out after %s", dialTimeout)
	case <-ctx.Done():
		// Drain the dial result in the background and close any leaked connection.
		go func() {
			if res := <-ch; res.conn != nil {
				res.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// Close terminates the SRT connection.
func (s *Source) Close() error {
	s.log.Info("closing")
	return s.conn.Close()
}
