package srt

import (
	"context"
	"fmt"
	"log/slog"

	srtgo "github.com/zsiec/srtgo"

	"github.com/zsiec/tsdemux/mpegts"
)

// Listen binds an SRT listener on addr, waits for one publisher and
// returns it as a demuxer source. Callers that expect a stream id can
// pass requireStreamID to reject anonymous publishers at handshake
// time. If log is nil, slog.Default() is used.
func Listen(ctx context.Context, addr string, requireStreamID bool, log *slog.Logger) (*Source, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "srt-listener")

	cfg := srtgo.DefaultConfig()
	cfg.Latency = srtLatencyNs

	l, err := srtgo.Listen(addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("SRT listen on %s: %w", addr, err)
	}

	if requireStreamID {
		l.SetAcceptRejectFunc(func(req srtgo.ConnRequest) srtgo.RejectReason {
			if req.StreamID == "" {
				return srtgo.RejPeer
			}
			return 0
		})
	}
	log.Info("waiting for publisher", "addr", addr)

	// Accept blocks with no context form; cancel by closing the
	// listener underneath it.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			l.Close()
		case <-done:
		}
	}()

	conn, err := l.Accept()
	l.Close()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("SRT accept: %w", err)
	}
	log.Info("publisher connected", "remote", conn.RemoteAddr(),
		"stream_id", conn.StreamID())

	return &Source{
		ReaderSource: mpegts.NewReaderSource(conn),
		conn:         conn,
		log:          log,
	}, nil
}
