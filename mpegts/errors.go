package mpegts

import "errors"

var (
	// ErrNoSync means packet size detection could not find a stable
	// sync pattern in the probe window.
	ErrNoSync = errors.New("mpegts: no transport sync found")

	// ErrNotSeekable is returned by seek operations on sources that
	// cannot reposition (live network inputs).
	ErrNotSeekable = errors.New("mpegts: source is not seekable")

	// ErrSeekFailed means a requested position could not be reached;
	// the previous read position has been restored.
	ErrSeekFailed = errors.New("mpegts: seek failed")

	// ErrNoPCR means a clock-based operation was requested but no
	// usable PCR reference exists in the stream.
	ErrNoPCR = errors.New("mpegts: no PCR reference")

	// ErrStreamClosed is returned by Demux after Close.
	ErrStreamClosed = errors.New("mpegts: demuxer closed")
)
