package httpapi

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const askBurst = 2

// limiters hands out one token bucket per session.
type limiters struct {
	mu    sync.Mutex
	every rate.Limit
	m     map[string]*rate.Limiter
}

func newLimiters(perMinute float64) *limiters {
	l := &limiters{m: make(map[string]*rate.Limiter), every: rate.Inf}
	if perMinute > 0 {
		l.every = rate.Every(time.Duration(float64(time.Minute) / perMinute))
	}
	return l
}

func (l *limiters) allow(sid string) bool {
	if l.every == rate.Inf {
		return true
	}
	l.mu.Lock()
	lim, ok := l.m[sid]
	if !ok {
		lim = rate.NewLimiter(l.every, askBurst)
		l.m[sid] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

func (l *limiters) forget(sid string) {
	l.mu.Lock()
	delete(l.m, sid)
	l.mu.Unlock()
}

// prune drops the buckets of sessions keep rejects and reports how many went.
func (l *limiters) prune(keep func(sid string) bool) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for sid := range l.m {
		if !keep(sid) {
			delete(l.m, sid)
			n++
		}
	}
	return n
}

func (l *limiters) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
