package mpegts

import (
	"bufio"
	"fmt"
	"io"
)

// Source supplies transport stream bytes to the demuxer. Peek must not
// advance the read position; Tell reports the offset of the next byte
// Read will return.
type Source interface {
	io.Reader
	// Peek returns the next n bytes without consuming them. It
	// returns an error if fewer than n bytes are available.
	Peek(n int) ([]byte, error)
	Tell() int64
	// SeekTo repositions the source at an absolute byte offset.
	SeekTo(off int64) error
	// Size returns the total byte size, or -1 when unknown.
	Size() int64
	// CanFastSeek reports whether SeekTo is cheap enough for the
	// demuxer to probe and bisect the stream.
	CanFastSeek() bool
}

const sourceBufferSize = 64 * 1024

// FileSource adapts an io.ReadSeeker (typically an *os.File) into a
// buffered, seekable Source.
type FileSource struct {
	rs   io.ReadSeeker
	br   *bufio.Reader
	pos  int64
	size int64
}

// NewFileSource wraps rs, measuring its size and rewinding to the
// start.
func NewFileSource(rs io.ReadSeeker) (*FileSource, error) {
	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("mpegts: measure source: %w", err)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("mpegts: rewind source: %w", err)
	}
	return &FileSource{
		rs:   rs,
		br:   bufio.NewReaderSize(rs, sourceBufferSize),
		size: size,
	}, nil
}

func (s *FileSource) Read(p []byte) (int, error) {
	n, err := s.br.Read(p)
	s.pos += int64(n)
	return n, err
}

func (s *FileSource) Peek(n int) ([]byte, error) {
	return s.br.Peek(n)
}

func (s *FileSource) Tell() int64 { return s.pos }

func (s *FileSource) SeekTo(off int64) error {
	if _, err := s.rs.Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("mpegts: seek to %d: %w", off, err)
	}
	s.br.Reset(s.rs)
	s.pos = off
	return nil
}

func (s *FileSource) Size() int64       { return s.size }
func (s *FileSource) CanFastSeek() bool { return true }

// ReaderSource adapts a forward-only io.Reader (a network connection,
// a pipe) into a Source. Seeking is refused and the size is unknown.
type ReaderSource struct {
	br  *bufio.Reader
	pos int64
}

func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{br: bufio.NewReaderSize(r, sourceBufferSize)}
}

func (s *ReaderSource) Read(p []byte) (int, error) {
	n, err := s.br.Read(p)
	s.pos += int64(n)
	return n, err
}

func (s *ReaderSource) Peek(n int) ([]byte, error) {
	return s.br.Peek(n)
}

func (s *ReaderSource) Tell() int64          { return s.pos }
func (s *ReaderSource) SeekTo(int64) error   { return ErrNotSeekable }
func (s *ReaderSource) Size() int64          { return -1 }
func (s *ReaderSource) CanFastSeek() bool    { return false }
