package sandbox

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const acquireTimeout = 5 * time.Second

// Pool keeps pre-built Contexts ready for one-shot evaluations. A Context is
// used by exactly one caller: Release closes it and builds a replacement, so
// no state leaks between evaluations.
type Pool struct {
	config   Config
	opts     []Option
	logger   *zap.Logger
	contexts chan *Context
	size     int
	mu       sync.RWMutex
	closed   bool

	// missing counts slots whose replacement failed to build.
	missing atomic.Int32
}

// NewPool creates a context pool
func NewPool(config Config, size int, opts ...Option) (*Pool, error) {
	if size <= 0 {
		size = 4
	}

	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	pool := &Pool{
		config:   config,
		opts:     opts,
		logger:   o.logger,
		contexts: make(chan *Context, size),
		size:     size,
	}

	// Pre-create contexts
	for i := 0; i < size; i++ {
		c, err := New(config, nil, opts...)
		if err != nil {
			pool.Close()
			return nil, err
		}
		pool.contexts <- c
	}

	return pool, nil
}

// Acquire takes a context from the pool, waiting up to five seconds.
func (p *Pool) Acquire(ctx context.Context) (*Context, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()

	if closed {
		return nil, ErrPoolClosed
	}
	p.refill()

	timer := time.NewTimer(acquireTimeout)
	defer timer.Stop()

	select {
	case c, ok := <-p.contexts:
		if !ok {
			return nil, ErrPoolClosed
		}
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrTimeout
	}
}

// Release closes a used context and refills the pool. A replacement that
// fails to build leaves the slot missing until a later Acquire rebuilds it.
func (p *Pool) Release(c *Context) error {
	if err := c.Close(); err != nil {
		return err
	}
	p.logger.Debug("Released pooled sandbox context", zap.String("context_id", c.ID().String()))

	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil
	}

	fresh, err := New(p.config, nil, p.opts...)
	if err != nil {
		p.missing.Add(1)
		p.logger.Warn("Failed to replace pooled sandbox context", zap.Error(err))
		return err
	}
	p.put(fresh)
	return nil
}

// refill rebuilds missing slots.
func (p *Pool) refill() {
	for {
		n := p.missing.Load()
		if n <= 0 {
			return
		}
		if !p.missing.CompareAndSwap(n, n-1) {
			continue
		}
		fresh, err := New(p.config, nil, p.opts...)
		if err != nil {
			p.missing.Add(1)
			p.logger.Warn("Failed to rebuild pooled sandbox context", zap.Error(err))
			return
		}
		p.put(fresh)
	}
}

func (p *Pool) put(c *Context) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		c.Close()
		return
	}
	select {
	case p.contexts <- c:
	default:
		// Pool full
		c.Close()
	}
}

// Execute runs code on a pooled context. Bindings need a context built for
// them, so a call with bindings bypasses the pool.
func (p *Pool) Execute(ctx context.Context, code string, bindings map[string]interface{}) (*Result, error) {
	if len(bindings) > 0 {
		p.mu.RLock()
		closed := p.closed
		p.mu.RUnlock()
		if closed {
			return nil, ErrPoolClosed
		}

		c, err := New(p.config, bindings, p.opts...)
		if err != nil {
			return nil, err
		}
		defer c.Close()
		return c.Execute(ctx, code)
	}

	c, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(c)

	return c.Execute(ctx, code)
}

// Close closes pool and all contexts
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	close(p.contexts)

	for c := range p.contexts {
		c.Close()
	}

	return nil
}

// Stats returns pool statistics
func (p *Pool) Stats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	available := len(p.contexts)
	missing := int(p.missing.Load())
	return map[string]interface{}{
		"size":      p.size,
		"available": available,
		"in_use":    p.size - available - missing,
		"missing":   missing,
		"closed":    p.closed,
	}
}
