package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"
)

// chunkReader returns its chunks one Read at a time. A nil chunk is a
// port timeout, (0, nil).
type chunkReader struct {
	chunks [][]byte
	err    error
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		if c.err != nil {
			return 0, c.err
		}
		return 0, nil
	}
	n := copy(p, c.chunks[0])
	c.chunks[0] = c.chunks[0][n:]
	if len(c.chunks[0]) == 0 {
		c.chunks = c.chunks[1:]
	}
	return n, nil
}

type nopRWC struct {
	io.Reader
	bytes.Buffer
	closed bool
}

func (n *nopRWC) Read(p []byte) (int, error)  { return n.Reader.Read(p) }
func (n *nopRWC) Write(p []byte) (int, error) { return n.Buffer.Write(p) }
func (n *nopRWC) Close() error                { n.closed = true; return nil }

func TestReadFull(t *testing.T) {
	tests := []struct {
		name    string
		r       *chunkReader
		size    int
		want    []byte
		wantErr error
	}{
		{
			name: "single read",
			r:    &chunkReader{chunks: [][]byte{{1, 2, 3}}},
			size: 3,
			want: []byte{1, 2, 3},
		},
		{
			name: "split with port timeouts",
			r:    &chunkReader{chunks: [][]byte{{1}, nil, {2, 3}, nil, {4}}},
			size: 4,
			want: []byte{1, 2, 3, 4},
		},
		{
			name:    "no data",
			r:       &chunkReader{},
			size:    2,
			wantErr: ErrReadTimeout,
		},
		{
			name:    "stream ends early",
			r:       &chunkReader{chunks: [][]byte{{1}}, err: io.EOF},
			size:    2,
			wantErr: io.ErrUnexpectedEOF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := make([]byte, tt.size)
			err := readFull(tt.r, p, 20*time.Millisecond)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("readFull() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("readFull() unexpected error: %v", err)
			}
			if !bytes.Equal(p, tt.want) {
				t.Errorf("readFull() = %x, want %x", p, tt.want)
			}
		})
	}
}

func TestStream(t *testing.T) {
	conn := &nopRWC{Reader: &chunkReader{chunks: [][]byte{{0x01, 0x00}, {0x00, 0x00, 0xFF, 0xFF, 0x17}}}}
	opens := 0
	s := NewStream("test", func() (io.ReadWriteCloser, error) {
		opens++
		return conn, nil
	}, 0, 0)

	if s.DataPacketSize() != DefaultPacketSize {
		t.Errorf("DataPacketSize() = %d, want %d", s.DataPacketSize(), DefaultPacketSize)
	}
	if err := s.WriteData([]byte{1}); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("WriteData() before Open error = %v, want ErrNotOpen", err)
	}

	if err := s.Open(); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := s.Open(); err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	if opens != 1 {
		t.Errorf("opener called %d times, want 1", opens)
	}

	if err := s.WriteData([]byte{0x01, 0x35}); err != nil {
		t.Fatalf("WriteData() failed: %v", err)
	}
	if !bytes.Equal(conn.Bytes(), []byte{0x01, 0x35}) {
		t.Errorf("written = %x", conn.Bytes())
	}

	resp := make([]byte, 7)
	if err := s.ReadData(resp); err != nil {
		t.Fatalf("ReadData() failed: %v", err)
	}
	if !bytes.Equal(resp, []byte{0x01, 0x00, 0x00, 0x00, 0xFF, 0xFF, 0x17}) {
		t.Errorf("ReadData() = %x", resp)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if !conn.closed {
		t.Error("underlying stream not closed")
	}
	if err := s.ReadData(resp); !errors.Is(err, ErrNotOpen) {
		t.Errorf("ReadData() after Close error = %v, want ErrNotOpen", err)
	}
}

func TestStreamOpenError(t *testing.T) {
	boom := errors.New("no such port")
	s := NewStream("serial /dev/none", func() (io.ReadWriteCloser, error) { return nil, boom }, 0, 0)
	if err := s.Open(); !errors.Is(err, boom) {
		t.Errorf("Open() error = %v, want %v", err, boom)
	}
}

// stuckWriter accepts limit bytes, then reports (0, nil) forever.
type stuckWriter struct {
	nopRWC
	limit int
}

func (w *stuckWriter) Write(p []byte) (int, error) {
	if w.limit == 0 {
		return 0, nil
	}
	if len(p) > w.limit {
		p = p[:w.limit]
	}
	w.limit -= len(p)
	return w.Buffer.Write(p)
}

func TestStreamWriteStalled(t *testing.T) {
	conn := &stuckWriter{nopRWC: nopRWC{Reader: &chunkReader{}}, limit: 2}
	s := NewStream("test", func() (io.ReadWriteCloser, error) { return conn, nil }, 0, 0)
	if err := s.Open(); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	if err := s.WriteData([]byte{0x01, 0x38, 0x00, 0x00}); !errors.Is(err, io.ErrShortWrite) {
		t.Fatalf("WriteData() error = %v, want io.ErrShortWrite", err)
	}
	if got := conn.Buffer.Bytes(); !bytes.Equal(got, []byte{0x01, 0x38}) {
		t.Errorf("written = % X, want 01 38", got)
	}
}

func TestReadTimeoutReportsTimeout(t *testing.T) {
	var te interface{ Timeout() bool }
	if !errors.As(fmt.Errorf("read response: %w", ErrReadTimeout), &te) || !te.Timeout() {
		t.Error("ErrReadTimeout should report Timeout() true")
	}
}
