package serial

import (
	"io"
	"sync"

	goutils "go.viam.com/utils"
)

// A Pump turns a blocking reader (e.g. stdin) into a non-blocking one. A background goroutine
// copies bytes into a bounded buffer; when the buffer is full the goroutine stops reading until
// the consumer catches up.
type Pump struct {
	bytes chan byte
	done  chan struct{}

	errMu sync.Mutex
	err   error

	doneOnce  sync.Once
	closeOnce sync.Once
	closer    io.Closer
}

// NewPump starts pumping src. If src is also an io.Closer it is closed by Close.
func NewPump(src io.Reader, capacity int) *Pump {
	if capacity <= 0 {
		capacity = 64
	}
	p := &Pump{
		bytes: make(chan byte, capacity),
		done:  make(chan struct{}),
	}
	if closer, ok := src.(io.Closer); ok {
		p.closer = closer
	}

	goutils.PanicCapturingGo(func() {
		defer close(p.bytes)
		buf := make([]byte, 1)
		for {
			n, err := src.Read(buf)
			if n > 0 {
				p.bytes <- buf[0]
			}
			if err != nil {
				p.errMu.Lock()
				p.err = err
				p.errMu.Unlock()
				return
			}
		}
	})
	return p
}

// Read copies whatever is buffered into buf and never blocks. It returns 0, nil when nothing is
// buffered, including after the source has ended; use Done and Err to observe the end.
func (p *Pump) Read(buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		select {
		case b, ok := <-p.bytes:
			if !ok {
				p.doneOnce.Do(func() { close(p.done) })
				return n, nil
			}
			buf[n] = b
			n++
		default:
			return n, nil
		}
	}
	return n, nil
}

// Done is closed once the source has ended and every buffered byte has been read.
func (p *Pump) Done() <-chan struct{} {
	return p.done
}

// Err returns the error that ended the source, usually io.EOF. It is nil while pumping.
func (p *Pump) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

// Close closes the source, if closable, and returns without waiting for the pump goroutine. A
// read already blocked on the source may only return with its next byte; the goroutine ends then.
func (p *Pump) Close() error {
	var err error
	p.closeOnce.Do(func() {
		if p.closer != nil {
			err = p.closer.Close()
		}
		// Drain so a goroutine blocked on a full buffer can observe the closed source.
		goutils.PanicCapturingGo(func() {
			//nolint:revive
			for range p.bytes {
			}
		})
	})
	return err
}
