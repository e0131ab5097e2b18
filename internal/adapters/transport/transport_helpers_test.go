package transport

import (
	"errors"
	"io"
	"sync"

	"github.com/pion/rtp"
)

// recordTarget is a RenderTarget that keeps what it receives.
type recordTarget struct {
	mu     sync.Mutex
	pkts   []*rtp.Packet
	closed int
	fail   bool
}

func (r *recordTarget) WriteRTP(p *rtp.Packet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("tile gone")
	}
	r.pkts = append(r.pkts, p)
	return nil
}

func (r *recordTarget) Close() error {
	r.mu.Lock()
	r.closed++
	r.mu.Unlock()
	return nil
}

func (r *recordTarget) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pkts)
}

func (r *recordTarget) closes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *recordTarget) setFail(v bool) {
	r.mu.Lock()
	r.fail = v
	r.mu.Unlock()
}

// chanReader hands out pushed packets and io.EOF once closed.
type chanReader struct{ pkts chan *rtp.Packet }

func newChanReader() *chanReader { return &chanReader{pkts: make(chan *rtp.Packet, 16)} }

func (r *chanReader) ReadRTP() (*rtp.Packet, error) {
	p, ok := <-r.pkts
	if !ok {
		return nil, io.EOF
	}
	return p, nil
}
