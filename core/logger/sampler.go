package logger

import "sync/atomic"

type ratio struct{ num, den uint64 }

// sampler lets the first num of every den calls through. With no ratio set
// every call passes.
type sampler struct {
	r   atomic.Pointer[ratio]
	seq atomic.Uint64
}

func (s *sampler) set(num, den int) {
	s.seq.Store(0)
	if num <= 0 || den <= 0 {
		s.r.Store(nil)
		return
	}
	if num > den {
		num = den
	}
	s.r.Store(&ratio{num: uint64(num), den: uint64(den)})
}

func (s *sampler) allow() bool {
	r := s.r.Load()
	if r == nil {
		return true
	}
	return (s.seq.Add(1)-1)%r.den < r.num
}
