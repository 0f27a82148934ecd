package pool

import "errors"

var (
	// ErrPoolFull indicates every frame is pinned and nothing can be evicted.
	ErrPoolFull = errors.New("pool: all frames pinned")
)
