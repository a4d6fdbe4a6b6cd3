package rangingtest

import (
	"rtb-engine/internal/frames"
	"sync"
)

// Radio records every frame and completes transmissions synchronously.
type Radio struct {
	mu      sync.Mutex
	sent    []frames.Frame
	failure error
	hold    bool
	pending []func(error)
}

func NewRadio() *Radio {
	return &Radio{}
}

func (r *Radio) SendFrame(frame frames.Frame, done func(error)) {
	r.mu.Lock()
	r.sent = append(r.sent, frame)
	failure := r.failure
	if r.hold {
		r.pending = append(r.pending, done)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	done(failure)
}

// FailWith makes later transmissions report err.
func (r *Radio) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failure = err
}

// Hold keeps transmissions pending until Release.
func (r *Radio) Hold() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hold = true
}

func (r *Radio) Release() {
	r.mu.Lock()
	pending := r.pending
	failure := r.failure
	r.pending = nil
	r.hold = false
	r.mu.Unlock()

	for _, done := range pending {
		done(failure)
	}
}

func (r *Radio) Sent() []frames.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]frames.Frame(nil), r.sent...)
}

func (r *Radio) Last() frames.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return nil
	}
	return r.sent[len(r.sent)-1]
}
