package cyacd

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/moffa90/go-cyacd2/protocol"
)

// LineReader reads image lines from a seekable source. Lines starting
// with '#' are comments and are skipped; trailing CR and LF are removed.
type LineReader struct {
	src io.ReadSeeker
	br  *bufio.Reader
	pos int64
}

// NewLineReader returns a LineReader positioned at the current offset of r.
func NewLineReader(r io.ReadSeeker) *LineReader {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		pos = 0
	}
	return &LineReader{src: r, br: bufio.NewReader(r), pos: pos}
}

// ReadLine returns the next non-comment line. At end of input it returns
// ErrEOF; a failing source is reported as ErrFile.
func (lr *LineReader) ReadLine() (string, error) {
	for {
		line, err := lr.br.ReadString('\n')
		lr.pos += int64(len(line))

		if err != nil && !errors.Is(err, io.EOF) {
			return "", &protocol.Error{Code: protocol.CodeFile, Op: "read line", Err: err}
		}
		if line == "" {
			return "", &protocol.Error{Code: protocol.CodeEOF, Op: "read line"}
		}
		if strings.HasPrefix(line, CommentPrefix) {
			continue
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
}

// Mark returns the offset of the next unread line.
func (lr *LineReader) Mark() int64 {
	return lr.pos
}

// Reset repositions the reader at an offset obtained from Mark.
func (lr *LineReader) Reset(mark int64) error {
	if _, err := lr.src.Seek(mark, io.SeekStart); err != nil {
		return &protocol.Error{Code: protocol.CodeEOF, Op: "rewind image", Err: err}
	}
	lr.br.Reset(lr.src)
	lr.pos = mark
	return nil
}
