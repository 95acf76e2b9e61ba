package mpegts

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func nullPackets(n int) []byte {
	var out []byte
	for i := 0; i < n; i++ {
		out = append(out, tsPacket(pidPadding, uint8(i), false, bytes.Repeat([]byte{0xFF}, 184), -1)...)
	}
	return out
}

func srcOf(t *testing.T, data []byte) *FileSource {
	t.Helper()
	s, err := NewFileSource(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}
	return s
}

func TestDetectPacketSize188(t *testing.T) {
	t.Parallel()
	size, header, skip, err := detectPacketSize(srcOf(t, nullPackets(5)), 0)
	if err != nil {
		t.Fatal(err)
	}
	if size != PacketSize188 || header != 0 || skip != 0 {
		t.Fatalf("got size=%d header=%d skip=%d", size, header, skip)
	}
}

func TestDetectPacketSize192(t *testing.T) {
	t.Parallel()
	var data []byte
	for i := 0; i < 5; i++ {
		data = append(data, 0x00, 0x11, 0x22, 0x33) // timestamp pre-header
		data = append(data, nullPackets(1)...)
	}
	size, header, skip, err := detectPacketSize(srcOf(t, data), 0)
	if err != nil {
		t.Fatal(err)
	}
	if size != PacketSize192 || header != 4 || skip != 0 {
		t.Fatalf("got size=%d header=%d skip=%d", size, header, skip)
	}
}

func TestDetectPacketSize204(t *testing.T) {
	t.Parallel()
	var data []byte
	for i := 0; i < 5; i++ {
		data = append(data, nullPackets(1)...)
		data = append(data, bytes.Repeat([]byte{0xAB}, 16)...) // RS parity
	}
	size, header, _, err := detectPacketSize(srcOf(t, data), 0)
	if err != nil {
		t.Fatal(err)
	}
	if size != PacketSize204 || header != 0 {
		t.Fatalf("got size=%d header=%d", size, header)
	}
}

func TestDetectPacketSizeLeadingGarbage(t *testing.T) {
	t.Parallel()
	data := append([]byte{0x12, 0x34, 0x56}, nullPackets(5)...)
	size, _, skip, err := detectPacketSize(srcOf(t, data), 0)
	if err != nil {
		t.Fatal(err)
	}
	if size != PacketSize188 || skip != 3 {
		t.Fatalf("got size=%d skip=%d", size, skip)
	}
}

func TestDetectPacketSizeNoise(t *testing.T) {
	t.Parallel()
	noise := make([]byte, 1024)
	for i := range noise {
		noise[i] = byte(i*7 + 13)
	}
	_, _, _, err := detectPacketSize(srcOf(t, noise), 0)
	if !errors.Is(err, ErrNoSync) {
		t.Fatalf("expected ErrNoSync, got %v", err)
	}
}

func TestDetectPacketSizeForced(t *testing.T) {
	t.Parallel()
	noise := make([]byte, 1024)
	for i := range noise {
		noise[i] = byte(i*7 + 13)
	}
	size, header, _, err := detectPacketSize(srcOf(t, noise), PacketSize192)
	if err != nil {
		t.Fatal(err)
	}
	if size != PacketSize192 || header != 4 {
		t.Fatalf("got size=%d header=%d", size, header)
	}
}

func TestPacketReaderResync(t *testing.T) {
	t.Parallel()
	good := nullPackets(12)
	// Corrupt the sync byte of the third packet.
	data := append([]byte(nil), good...)
	data[2*PacketSize188] = 0x00

	r := newPacketReader(srcOf(t, data), PacketSize188, 0, slog.New(slog.DiscardHandler))
	count := 0
	for {
		pkt, err := r.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if pkt[0] != syncByte {
			t.Fatal("reader returned an unsynced packet")
		}
		count++
	}
	// One packet was lost to corruption; the rest must survive.
	if count < 10 {
		t.Fatalf("recovered only %d packets", count)
	}
}

func TestPacketReaderEOF(t *testing.T) {
	t.Parallel()
	data := nullPackets(3)
	data = append(data, data[:100]...) // trailing partial packet
	r := newPacketReader(srcOf(t, data), PacketSize188, 0, slog.New(slog.DiscardHandler))
	for i := 0; i < 3; i++ {
		if _, err := r.next(); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := r.next(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}
