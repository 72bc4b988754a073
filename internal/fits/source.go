package fits

import (
	"errors"
	"io"
	"os"
)

const minReadBlockSize = 1 << 20

// ByteSource is the positional byte source the reader consumes. A source
// owns a single cursor: Seek positions it, Read advances it with short-read
// semantics. Handles are single-threaded; a concurrent reader opens one
// handle per worker and re-walks the catalog on each, which is cheap.
type ByteSource interface {
	Seek(offset int64) error
	Position() int64
	Read(p []byte) (int, error)
	Close() error
}

// FileSource is a buffered ByteSource over a local file. Reads are served
// from a block buffer refilled with ReadAt, so the per-element reads issued
// by column scans do not translate into per-element syscalls.
type FileSource struct {
	file      *os.File
	size      int64
	pos       int64
	blockSize int
	buf       []byte
	bufStart  int64
	bufLen    int
}

// OpenFile opens path as a FileSource.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &FileSource{file: f, size: info.Size(), blockSize: minReadBlockSize}, nil
}

// Size returns the total length of the underlying file.
func (s *FileSource) Size() int64 { return s.size }

func (s *FileSource) Seek(offset int64) error {
	if s.file == nil {
		return ErrClosed
	}
	if offset < 0 {
		return errors.New("fits: negative seek offset")
	}
	s.pos = offset
	return nil
}

func (s *FileSource) Position() int64 { return s.pos }

func (s *FileSource) Read(p []byte) (int, error) {
	if s.file == nil {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if s.pos >= s.size {
		return 0, io.EOF
	}
	n := 0
	for n < len(p) && s.pos < s.size {
		if err := s.fill(s.pos); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return n, err
		}
		start := int(s.pos - s.bufStart)
		k := copy(p[n:], s.buf[start:s.bufLen])
		if k == 0 {
			break
		}
		n += k
		s.pos += int64(k)
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// fill ensures the buffer covers offset.
func (s *FileSource) fill(offset int64) error {
	if offset >= s.bufStart && offset < s.bufStart+int64(s.bufLen) {
		return nil
	}
	if offset >= s.size {
		return io.EOF
	}
	if s.buf == nil {
		s.buf = make([]byte, s.blockSize)
	}
	toRead := len(s.buf)
	if remain := s.size - offset; int64(toRead) > remain {
		toRead = int(remain)
	}
	n, err := s.file.ReadAt(s.buf[:toRead], offset)
	if n < toRead && err == nil {
		err = io.EOF
	}
	if err != nil && !errors.Is(err, io.EOF) {
		s.bufLen = 0
		return err
	}
	s.bufStart = offset
	s.bufLen = n
	if n == 0 {
		return io.EOF
	}
	return nil
}

func (s *FileSource) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.buf = nil
	s.bufLen = 0
	return err
}

// BytesSource is an in-memory ByteSource, used by tests and by callers that
// already hold the whole file.
type BytesSource struct {
	data []byte
	pos  int64
}

// NewBytesSource wraps data without copying it.
func NewBytesSource(data []byte) *BytesSource {
	return &BytesSource{data: data}
}

// Size returns the total length of the wrapped slice.
func (s *BytesSource) Size() int64 { return int64(len(s.data)) }

func (s *BytesSource) Seek(offset int64) error {
	if offset < 0 {
		return errors.New("fits: negative seek offset")
	}
	s.pos = offset
	return nil
}

func (s *BytesSource) Position() int64 { return s.pos }

func (s *BytesSource) Read(p []byte) (int, error) {
	if s.pos >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.pos:])
	s.pos += int64(n)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *BytesSource) Close() error { return nil }

// readExact seeks to offset and fills p completely, mapping short reads to
// ErrUnexpectedEOF.
func readExact(src ByteSource, offset int64, p []byte) error {
	if err := src.Seek(offset); err != nil {
		return err
	}
	n := 0
	for n < len(p) {
		k, err := src.Read(p[n:])
		n += k
		if err != nil {
			if errors.Is(err, io.EOF) {
				if n < len(p) {
					return ErrUnexpectedEOF
				}
				return nil
			}
			return err
		}
		if k == 0 {
			return ErrUnexpectedEOF
		}
	}
	return nil
}
