package transport

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"
)

// scripted is a Transport whose reads return prepared chunks. Each
// ReadData must ask for exactly the length of the next chunk.
type scripted struct {
	reads [][]byte
	err   error
	sizes []int
}

func (s *scripted) Open() error              { return nil }
func (s *scripted) Close() error             { return nil }
func (s *scripted) WriteData(p []byte) error { return nil }
func (s *scripted) DataPacketSize() int      { return DefaultPacketSize }

func (s *scripted) ReadData(p []byte) error {
	s.sizes = append(s.sizes, len(p))
	if len(s.reads) == 0 {
		if s.err != nil {
			return s.err
		}
		return fmt.Errorf("unexpected read of %d bytes", len(p))
	}
	next := s.reads[0]
	s.reads = s.reads[1:]
	if len(next) != len(p) {
		return fmt.Errorf("read of %d bytes, script has %d", len(p), len(next))
	}
	copy(p, next)
	return nil
}

func TestResyncReadData(t *testing.T) {
	ack := []byte{0x01, 0x00, 0x00, 0x00, 0xFF, 0xFF, 0x17}

	tests := []struct {
		name      string
		reads     [][]byte
		wantSizes []int
		wantSleep int
	}{
		{
			name:      "clean response",
			reads:     [][]byte{ack},
			wantSizes: []int{7},
		},
		{
			name: "leading filler",
			reads: [][]byte{
				{0xFF, 0xFF, 0x01, 0x00, 0x00, 0x00, 0xFF},
				{0xFF, 0x17},
			},
			wantSizes: []int{7, 2},
		},
		{
			name: "all filler then response",
			reads: [][]byte{
				{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
				{0xFF}, {0xFF}, {0x01},
				{0x00, 0x00, 0x00, 0xFF, 0xFF, 0x17},
			},
			wantSizes: []int{7, 1, 1, 1, 6},
			wantSleep: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &scripted{reads: tt.reads}
			slept := 0
			r := NewResync(inner, ResyncConfig{Sleep: func(time.Duration) { slept++ }})

			p := make([]byte, len(ack))
			if err := r.ReadData(p); err != nil {
				t.Fatalf("ReadData() failed: %v", err)
			}
			if !bytes.Equal(p, ack) {
				t.Errorf("ReadData() = %x, want %x", p, ack)
			}
			if fmt.Sprint(inner.sizes) != fmt.Sprint(tt.wantSizes) {
				t.Errorf("inner read sizes = %v, want %v", inner.sizes, tt.wantSizes)
			}
			if slept != tt.wantSleep {
				t.Errorf("slept %d times, want %d", slept, tt.wantSleep)
			}
			if r.packetStarted {
				t.Error("frame still marked in progress after end marker")
			}
		})
	}
}

func TestResyncPassThroughInsideFrame(t *testing.T) {
	// Header and body read separately; the body starts with 0xFF data
	// bytes that must not be taken for filler.
	inner := &scripted{reads: [][]byte{
		{0x01, 0x00, 0x02, 0x00},
		{0xFF, 0xFF, 0xAA, 0xBB, 0x17},
	}}
	r := NewResync(inner, ResyncConfig{Sleep: func(time.Duration) {}})

	head := make([]byte, 4)
	if err := r.ReadData(head); err != nil {
		t.Fatalf("header read failed: %v", err)
	}
	if !r.packetStarted {
		t.Fatal("frame not marked in progress after start marker")
	}

	body := make([]byte, 5)
	if err := r.ReadData(body); err != nil {
		t.Fatalf("body read failed: %v", err)
	}
	if !bytes.Equal(body, []byte{0xFF, 0xFF, 0xAA, 0xBB, 0x17}) {
		t.Errorf("body = %x", body)
	}
	if r.packetStarted {
		t.Error("frame still marked in progress after end marker")
	}
}

func TestResyncRetriesExhausted(t *testing.T) {
	reads := [][]byte{bytes.Repeat([]byte{0xFF}, 7)}
	for i := 0; i < 3; i++ {
		reads = append(reads, []byte{0xFF})
	}
	inner := &scripted{reads: reads}
	slept := 0
	r := NewResync(inner, ResyncConfig{MaxRetries: 3, Sleep: func(time.Duration) { slept++ }})

	err := r.ReadData(make([]byte, 7))
	if !errors.Is(err, ErrReadTimeout) {
		t.Fatalf("ReadData() error = %v, want ErrReadTimeout", err)
	}
	if slept != 3 {
		t.Errorf("slept %d times, want 3", slept)
	}
}

func TestResyncCustomFiller(t *testing.T) {
	inner := &scripted{reads: [][]byte{
		{0xEE, 0x01, 0x00, 0x00},
		{0x17},
	}}
	r := NewResync(inner, ResyncConfig{Filler: 0xEE, Sleep: func(time.Duration) {}})

	p := make([]byte, 4)
	if err := r.ReadData(p); err != nil {
		t.Fatalf("ReadData() failed: %v", err)
	}
	if !bytes.Equal(p, []byte{0x01, 0x00, 0x00, 0x17}) {
		t.Errorf("ReadData() = %x", p)
	}
}

func TestResyncPropagatesErrors(t *testing.T) {
	boom := errors.New("bus error")

	t.Run("first read", func(t *testing.T) {
		r := NewResync(&scripted{err: boom}, ResyncConfig{})
		if err := r.ReadData(make([]byte, 7)); !errors.Is(err, boom) {
			t.Errorf("ReadData() error = %v, want %v", err, boom)
		}
	})

	t.Run("while skipping filler", func(t *testing.T) {
		inner := &scripted{reads: [][]byte{bytes.Repeat([]byte{0xFF}, 7)}, err: boom}
		r := NewResync(inner, ResyncConfig{Sleep: func(time.Duration) {}})
		if err := r.ReadData(make([]byte, 7)); !errors.Is(err, boom) {
			t.Errorf("ReadData() error = %v, want %v", err, boom)
		}
	})
}
