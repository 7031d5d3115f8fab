package service

import (
	"context"
	"sync"
)

// keyedGate serializes work per key. Different keys never block each other.
type keyedGate struct {
	mu    sync.Mutex
	gates map[string]*gate
}

type gate struct {
	sem  chan struct{}
	refs int
}

func newKeyedGate() *keyedGate {
	return &keyedGate{gates: make(map[string]*gate)}
}

// Acquire blocks until key is free or ctx is done. The returned func
// releases the key and must be called exactly once.
func (k *keyedGate) Acquire(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	g, ok := k.gates[key]
	if !ok {
		g = &gate{sem: make(chan struct{}, 1)}
		k.gates[key] = g
	}
	g.refs++
	k.mu.Unlock()

	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		k.unref(key, g)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-g.sem
			k.unref(key, g)
		})
	}, nil
}

func (k *keyedGate) unref(key string, g *gate) {
	k.mu.Lock()
	g.refs--
	if g.refs == 0 {
		delete(k.gates, key)
	}
	k.mu.Unlock()
}
