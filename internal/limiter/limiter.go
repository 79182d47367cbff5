package limiter

import (
	"context"
	"runtime"

	"golang.org/x/time/rate"
)

// Pacer throttles a tree walk to a maximum number of entries per second
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a pacer allowing perSecond entries with the given burst.
// A non-positive rate disables pacing.
func NewPacer(perSecond float64, burst int) *Pacer {
	if perSecond <= 0 {
		return &Pacer{}
	}
	if burst < 1 {
		burst = 1
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until the next entry may be processed
func (p *Pacer) Wait() {
	if p == nil || p.limiter == nil {
		return
	}
	// Background never cancels, so Wait only fails on burst misconfiguration
	if err := p.limiter.Wait(context.Background()); err != nil {
		runtime.Gosched()
	}
}

// SetRate updates the entries-per-second ceiling
func (p *Pacer) SetRate(perSecond float64) {
	if p.limiter == nil {
		if perSecond > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
		return
	}
	if perSecond <= 0 {
		p.limiter.SetLimit(rate.Inf)
		return
	}
	p.limiter.SetLimit(rate.Limit(perSecond))
}

// Enabled reports whether the pacer imposes a limit
func (p *Pacer) Enabled() bool {
	return p != nil && p.limiter != nil && p.limiter.Limit() != rate.Inf
}
