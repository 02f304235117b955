package cyacd

import (
	"io"
	"os"

	"github.com/moffa90/go-cyacd2/protocol"
)

// Image is a .cyacd2 file opened for streaming. The header is parsed on
// open; the remaining lines are consumed one at a time with NextLine.
type Image struct {
	Header *Header

	lines  *LineReader
	closer io.Closer
}

// Open opens the image at path and parses its header.
func Open(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &protocol.Error{Code: protocol.CodeFile, Op: "open image", Err: err}
	}

	img, err := NewImage(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	img.closer = f
	return img, nil
}

// NewImage reads the header from r. Closing the Image does not close r.
func NewImage(r io.ReadSeeker) (*Image, error) {
	lr := NewLineReader(r)
	header, err := readHeader(lr)
	if err != nil {
		return nil, err
	}
	return &Image{Header: header, lines: lr}, nil
}

// NextLine returns the next non-comment line, or ErrEOF.
func (img *Image) NextLine() (string, error) {
	return img.lines.ReadLine()
}

// ScanAppBounds pre-scans the lines after the current position without
// consuming them.
func (img *Image) ScanAppBounds() (AppBounds, error) {
	return ScanAppBounds(img.lines)
}

// Close releases the file opened by Open.
func (img *Image) Close() error {
	if img.closer == nil {
		return nil
	}
	return img.closer.Close()
}
