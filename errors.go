package rhi

import "errors"

var (
	// ErrNilBackend is returned by New when no backend is given.
	ErrNilBackend = errors.New("rhi: backend must not be nil")

	// ErrAlreadyInitialized is returned by InitializeRenderThread when a
	// render thread is already running.
	ErrAlreadyInitialized = errors.New("rhi: render thread already initialized")

	// ErrNotInitialized is returned by UninitializeRenderThread when no
	// render thread is running.
	ErrNotInitialized = errors.New("rhi: render thread not initialized")

	// ErrClosed is returned by operations on a closed Context.
	ErrClosed = errors.New("rhi: context closed")
)
