package pso

import "errors"

var (
	// ErrInvalidConfiguration is returned before any work starts when the
	// hyperparameters do not fit the dataset.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrDegenerateBounds is returned when a feature's maximum is negative
	// and the bounds policy is BoundsReject.
	ErrDegenerateBounds = errors.New("degenerate feature bounds")

	// ErrInvalidState is returned when a swarm operation is not allowed in
	// the swarm's current lifecycle state.
	ErrInvalidState = errors.New("invalid swarm state")
)
