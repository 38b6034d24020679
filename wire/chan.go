package wire

// ChanSource adapts a producer goroutine to the Source contract. The
// producer pushes chunks with Emit and finishes with End (or Fail); the
// consumer polls. Closing the source unblocks the producer and invokes the
// registered close hook, typically the HTTP response body's Close.
type ChanSource struct {
	ch      chan Chunk
	quit    chan struct{}
	pending *Chunk
	done    bool
	closed  bool
	closeFn func() error
}

// NewChanSource creates a source whose producer side buffers up to buffer
// chunks before Emit blocks.
func NewChanSource(buffer int) *ChanSource {
	return &ChanSource{
		ch:   make(chan Chunk, buffer),
		quit: make(chan struct{}),
	}
}

// NewScript creates an already-finished source that will deliver the given
// chunks in order. Decoder tests are written against scripted sources.
func NewScript(chunks ...Chunk) *ChanSource {
	s := NewChanSource(len(chunks))
	for _, c := range chunks {
		s.ch <- c
	}
	s.End()
	return s
}

// Emit pushes one chunk from the producer. It reports false when the
// consumer closed the source, at which point the producer must stop.
func (s *ChanSource) Emit(c Chunk) bool {
	select {
	case s.ch <- c:
		return true
	case <-s.quit:
		return false
	}
}

// Fail is Emit for a transport failure.
func (s *ChanSource) Fail(err error) bool {
	return s.Emit(Chunk{Err: err})
}

// End marks the producer side finished. No Emit may follow.
func (s *ChanSource) End() {
	close(s.ch)
}

// OnClose registers the hook run when the consumer closes the source.
func (s *ChanSource) OnClose(fn func() error) {
	s.closeFn = fn
}

// PollNext implements Source.
func (s *ChanSource) PollNext() (string, State, error) {
	if s.closed {
		return "", End, nil
	}
	if p := s.pending; p != nil {
		s.pending = nil
		return deliver(*p)
	}
	if s.done {
		return "", End, nil
	}
	select {
	case c, ok := <-s.ch:
		if !ok {
			s.done = true
			return "", End, nil
		}
		return deliver(c)
	default:
		return "", Pending, nil
	}
}

func deliver(c Chunk) (string, State, error) {
	if c.Err != nil {
		return "", End, c.Err
	}
	return c.Data, Ready, nil
}

// Subscribe implements Source.
func (s *ChanSource) Subscribe() Pollable {
	return NewPollable(
		func() {
			if s.pending != nil || s.done || s.closed {
				return
			}
			select {
			case c, ok := <-s.ch:
				if !ok {
					s.done = true
					return
				}
				s.pending = &c
			case <-s.quit:
			}
		},
		func() bool {
			return s.pending != nil || s.done || s.closed || len(s.ch) > 0
		},
	)
}

// Close implements Source. It is idempotent.
func (s *ChanSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.quit)
	if s.closeFn != nil {
		return s.closeFn()
	}
	return nil
}
