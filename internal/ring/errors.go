package ring

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyState indicates a round started with an empty circulating buffer.
	ErrEmptyState = errors.New("ring: empty circulating buffer")

	// ErrNoCommunicator indicates a process built without a communicator.
	ErrNoCommunicator = errors.New("ring: communicator is required")
)

// RoundError wraps a failure with the round it happened in.
type RoundError struct {
	Rank      int
	Iteration int
	Round     int
	Err       error
}

func (e *RoundError) Error() string {
	return fmt.Sprintf("rank %d iteration %d round %d: %v", e.Rank, e.Iteration, e.Round, e.Err)
}

func (e *RoundError) Unwrap() error {
	return e.Err
}
