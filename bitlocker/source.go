package bitlocker

import (
	"fmt"
	"io"
	"os"
)

// DataSource is the random-access input a Volume reads from. *bytes.Reader
// satisfies it directly; files are adapted through FileDataSource, which
// adds the size.
type DataSource interface {
	io.ReaderAt

	// Size returns the total size of the source in bytes.
	Size() int64
}

// FileDataSource adapts a read-only file to the DataSource interface.
type FileDataSource struct {
	file *os.File
	size int64
}

// NewFileDataSource opens the file at path as a DataSource. The caller
// closes it, unless ownership passes to a Volume through Open.
func NewFileDataSource(path string) (*FileDataSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Err: err}
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, &IOError{Op: "stat", Err: err}
	}
	return &FileDataSource{file: file, size: info.Size()}, nil
}

func (s *FileDataSource) ReadAt(p []byte, off int64) (int, error) {
	return s.file.ReadAt(p, off)
}

// Size returns the file size in bytes.
func (s *FileDataSource) Size() int64 {
	return s.size
}

// Close closes the underlying file.
func (s *FileDataSource) Close() error {
	return s.file.Close()
}

// readFile loads a whole file, wrapping failures in the public taxonomy.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Op: "read file", Err: err}
	}
	return data, nil
}

// rangeSource restricts a DataSource to a window, for volumes embedded in a
// larger image such as a partition inside a full disk dump.
type rangeSource struct {
	source DataSource
	offset int64
	size   int64
}

func newRangeSource(source DataSource, offset, size int64) (*rangeSource, error) {
	if offset < 0 || size < 0 {
		return nil, fmt.Errorf("%w: negative range", ErrInvalidArgument)
	}
	if offset+size > source.Size() {
		return nil, fmt.Errorf("%w: range [%d, %d) exceeds source size %d",
			ErrInvalidArgument, offset, offset+size, source.Size())
	}
	return &rangeSource{source: source, offset: offset, size: size}, nil
}

func (s *rangeSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: negative offset", ErrInvalidArgument)
	}
	if off >= s.size {
		return 0, io.EOF
	}
	if max := s.size - off; int64(len(p)) > max {
		n, err := s.source.ReadAt(p[:max], s.offset+off)
		if err == nil {
			err = io.EOF
		}
		return n, err
	}
	return s.source.ReadAt(p, s.offset+off)
}

func (s *rangeSource) Size() int64 {
	return s.size
}
