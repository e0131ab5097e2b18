package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

const (
	opusClockRate = 48000
	vp8ClockRate  = 90000
	opusFrame     = 20 * time.Millisecond
)

// opusSilence is a single 20 ms Opus frame of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// frame is one encoded media frame with its duration in clock samples.
type frame struct {
	data     []byte
	samples  uint32
	duration time.Duration
}

// source yields encoded frames. io.EOF ends a pass; rewind starts over.
type source interface {
	next() (frame, error)
	rewind() error
	close() error
}

type silenceSource struct{}

func (silenceSource) next() (frame, error) {
	return frame{data: opusSilence, samples: opusClockRate / 50, duration: opusFrame}, nil
}
func (silenceSource) rewind() error { return nil }
func (silenceSource) close() error  { return nil }

// oggSource reads Opus pages from an Ogg file.
type oggSource struct {
	f        *os.File
	r        *oggreader.OggReader
	granule  uint64
	fallback time.Duration
}

func openOgg(path string) (*oggSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	s := &oggSource{f: f, fallback: opusFrame}
	if err := s.rewind(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

func (s *oggSource) rewind() error {
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r, _, err := oggreader.NewWith(s.f)
	if err != nil {
		return fmt.Errorf("ogg header: %w", err)
	}
	s.r = r
	s.granule = 0
	return nil
}

func (s *oggSource) next() (frame, error) {
	for {
		page, header, err := s.r.ParseNextPage()
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return frame{}, io.EOF
			}
			return frame{}, err
		}
		if bytes.HasPrefix(page, []byte("OpusHead")) || bytes.HasPrefix(page, []byte("OpusTags")) {
			continue
		}
		samples := uint32(header.GranulePosition - s.granule)
		s.granule = header.GranulePosition
		d := time.Duration(samples) * time.Second / opusClockRate
		if samples == 0 || d <= 0 {
			samples, d = opusClockRate/50, s.fallback
		}
		return frame{data: page, samples: samples, duration: d}, nil
	}
}

func (s *oggSource) close() error { return s.f.Close() }

// ivfSource reads VP8 frames from an IVF file.
type ivfSource struct {
	f        *os.File
	r        *ivfreader.IVFReader
	duration time.Duration
}

func openIVF(path string) (*ivfSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	s := &ivfSource{f: f}
	if err := s.rewind(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

func (s *ivfSource) rewind() error {
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r, header, err := ivfreader.NewWith(s.f)
	if err != nil {
		return fmt.Errorf("ivf header: %w", err)
	}
	if header.TimebaseDenominator == 0 {
		return errors.New("ivf header: zero timebase")
	}
	s.r = r
	s.duration = time.Duration(header.TimebaseNumerator) * time.Second / time.Duration(header.TimebaseDenominator)
	return nil
}

func (s *ivfSource) next() (frame, error) {
	data, _, err := s.r.ParseNextFrame()
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return frame{}, io.EOF
		}
		return frame{}, err
	}
	samples := uint32(s.duration * vp8ClockRate / time.Second)
	return frame{data: data, samples: samples, duration: s.duration}, nil
}

func (s *ivfSource) close() error { return s.f.Close() }
