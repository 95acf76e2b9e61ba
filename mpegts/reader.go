package mpegts

import (
	"fmt"
	"io"
	"log/slog"
)

const (
	packetSizeMax = PacketSize204
	// detection wants three sync bytes at the candidate spacing
	// starting anywhere in the first packet.
	detectWindow = packetSizeMax + 2*packetSizeMax + 1
	// resync scans up to ten packets ahead before reporting loss.
	resyncPackets = 10
	// maxResyncBytes bounds total garbage skipped before giving up.
	maxResyncBytes = 64 * 1024
)

// packetReader frames a Source into 188-byte transport packets,
// stripping any timestamp pre-header and parity suffix, and recovers
// sync after corrupted data.
type packetReader struct {
	src       Source
	log       *slog.Logger
	size      int // full repetition period: 188, 192 or 204
	headerLen int // bytes preceding the sync byte in a period
	buf       []byte
}

// detectPacketSize probes the start of src for a recurring sync
// pattern, trying 188 first so noise cannot masquerade as a larger
// framing. forced is 0 for auto-detection, or one of the three valid
// sizes to fall back on when the probe is inconclusive.
func detectPacketSize(src Source, forced int) (size, headerLen, skip int, err error) {
	peek, err := src.Peek(detectWindow)
	if err != nil && len(peek) < PacketSize188*2+1 {
		if forced != 0 {
			return forced, m2tsHeaderLen(forced), 0, nil
		}
		return 0, 0, 0, fmt.Errorf("%w: short probe (%d bytes)", ErrNoSync, len(peek))
	}

	for sync := 0; sync < packetSizeMax && sync < len(peek); sync++ {
		if peek[sync] != syncByte {
			continue
		}
		for _, sz := range []int{PacketSize188, PacketSize192, PacketSize204} {
			if sync+2*sz >= len(peek) {
				continue
			}
			if peek[sync+sz] != syncByte || peek[sync+2*sz] != syncByte {
				continue
			}
			headerLen = 0
			if sz == PacketSize192 && sync >= 4 {
				headerLen = 4
			}
			skip = sync - headerLen
			if skip < 0 {
				// Partial first packet; resume at the next one.
				skip = sync + sz - headerLen
			}
			return sz, headerLen, skip, nil
		}
	}

	if forced != 0 {
		return forced, m2tsHeaderLen(forced), 0, nil
	}
	return 0, 0, 0, ErrNoSync
}

func m2tsHeaderLen(size int) int {
	if size == PacketSize192 {
		return 4
	}
	return 0
}

func newPacketReader(src Source, size, headerLen int, log *slog.Logger) *packetReader {
	return &packetReader{
		src:       src,
		log:       log,
		size:      size,
		headerLen: headerLen,
		buf:       make([]byte, size),
	}
}

// next returns the following 188-byte transport packet. The returned
// slice aliases the reader's scratch buffer and is only valid until
// the next call. io.EOF is returned at end of stream.
func (r *packetReader) next() ([]byte, error) {
	for {
		if _, err := io.ReadFull(r.src, r.buf); err != nil {
			if err == io.ErrUnexpectedEOF {
				return nil, io.EOF
			}
			return nil, err
		}
		pkt := r.buf[r.headerLen : r.headerLen+PacketSize188]
		if pkt[0] == syncByte {
			return pkt, nil
		}
		if err := r.resync(); err != nil {
			return nil, err
		}
	}
}

// resync scans forward for two sync bytes one packet apart and
// discards everything before the first.
func (r *packetReader) resync() error {
	r.log.Warn("lost transport sync, scanning")
	skipped := 0
	for skipped < maxResyncBytes {
		win, err := r.src.Peek(r.size * resyncPackets)
		if err != nil && len(win) < r.size*2 {
			return io.EOF
		}
		for i := 0; i+r.headerLen+r.size < len(win); i++ {
			if win[i+r.headerLen] == syncByte && win[i+r.headerLen+r.size] == syncByte {
				if err := r.discard(i); err != nil {
					return err
				}
				r.log.Info("transport sync recovered", "skipped_bytes", skipped+i)
				return nil
			}
		}
		drop := len(win) - r.size
		if drop <= 0 {
			return io.EOF
		}
		if err := r.discard(drop); err != nil {
			return err
		}
		skipped += drop
	}
	return ErrNoSync
}

func (r *packetReader) discard(n int) error {
	for n > 0 {
		chunk := n
		if chunk > len(r.buf) {
			chunk = len(r.buf)
		}
		m, err := r.src.Read(r.buf[:chunk])
		if err != nil {
			return err
		}
		n -= m
	}
	return nil
}
