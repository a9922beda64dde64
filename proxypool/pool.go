package proxypool

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"sync"
)

// ErrPoolExhausted is returned when no endpoint yielded a working session
var ErrPoolExhausted = errors.New("proxy pool exhausted")

// DialFunc opens a session through endpoint and probes it. A non-nil error
// means the endpoint is unusable.
type DialFunc[S any] func(ctx context.Context, endpoint string) (S, error)

// Pool hands out sessions bound to randomly chosen proxy endpoints.
// An endpoint that fails once is never tried again.
type Pool[S any] struct {
	mu         sync.Mutex
	candidates []string
	tried      []string
	dial       DialFunc[S]
	rng        *rand.Rand
}

// New creates a Pool over endpoints. A nil rng uses a randomly seeded source.
func New[S any](endpoints []string, dial DialFunc[S], rng *rand.Rand) *Pool[S] {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Pool[S]{
		candidates: append([]string(nil), endpoints...),
		dial:       dial,
		rng:        rng,
	}
}

// Acquire dials random untried endpoints until one works and returns its
// session and endpoint. Failed endpoints are evicted permanently.
func (p *Pool[S]) Acquire(ctx context.Context) (S, string, error) {
	var zero S
	var lastErr error

	for {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}

		endpoint, ok := p.next()
		if !ok {
			return zero, "", p.exhausted(lastErr)
		}

		session, err := p.dial(ctx, endpoint)
		if err == nil {
			log.Printf("Bound session to proxy %s\n", endpoint)
			return session, endpoint, nil
		}
		if ctx.Err() != nil {
			return zero, "", ctx.Err()
		}

		log.Printf("Warning: proxy %s failed, removing it from the pool: %v\n", endpoint, err)
		lastErr = err
	}
}

// Remaining returns the number of endpoints that have not been tried
func (p *Pool[S]) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.candidates)
}

// Tried returns the endpoints handed to the dialer so far, in order
func (p *Pool[S]) Tried() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.tried...)
}

// next removes and returns a random candidate
func (p *Pool[S]) next() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.candidates) == 0 {
		return "", false
	}
	i := p.rng.IntN(len(p.candidates))
	endpoint := p.candidates[i]
	p.candidates = append(p.candidates[:i], p.candidates[i+1:]...)
	p.tried = append(p.tried, endpoint)
	return endpoint, true
}

func (p *Pool[S]) exhausted(lastErr error) error {
	tried := p.Tried()
	if len(tried) == 0 {
		return fmt.Errorf("%w: no endpoints configured", ErrPoolExhausted)
	}
	if lastErr != nil {
		return fmt.Errorf("%w: tried [%s], last error: %v", ErrPoolExhausted, strings.Join(tried, ", "), lastErr)
	}
	return fmt.Errorf("%w: tried [%s]", ErrPoolExhausted, strings.Join(tried, ", "))
}
