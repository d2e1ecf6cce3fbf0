package core

import (
	"errors"
)

var (
	ErrSwapchainBooting = errors.New("swapchain resized or recreated, booting")
	ErrUnknown          = errors.New("unknown")

	// ECS
	ErrEntityDestroyed        = errors.New("entity handle is stale")
	ErrComponentNotRegistered = errors.New("component type not registered")
	ErrAlreadyRegistered      = errors.New("component type already registered")
	ErrSystemWriteConflict    = errors.New("system write set conflicts with another system in the same stage")

	// Thread pool
	ErrQueueFull    = errors.New("subsystem work queue is full")
	ErrNoSubsystem  = errors.New("unknown thread pool subsystem")
	ErrPoolShutdown = errors.New("thread pool is shutting down")

	// GPU resources
	ErrAllocationFailed = errors.New("gpu allocation failed")
	ErrInvalidArgument  = errors.New("invalid argument")

	// Resource binder
	ErrUnknownBinding      = errors.New("unknown named binding")
	ErrBindingTypeMismatch = errors.New("binding type mismatch")

	// Render graph
	ErrDependencyCycle       = errors.New("render graph dependency cycle")
	ErrUnknownPass           = errors.New("unknown render graph pass")
	ErrPassAlreadyRegistered = errors.New("render graph pass already registered")
)
