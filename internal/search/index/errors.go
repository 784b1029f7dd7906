package index

import "errors"

var (
	// ErrVectorLengthMismatch indicates two vectors have different dimensions.
	ErrVectorLengthMismatch = errors.New("vector length mismatch")
	// ErrUnavailable is returned when indexing cannot run because no embedding
	// capability is configured or reachable. Callers fall back to keyword search.
	ErrUnavailable = errors.New("semantic index unavailable")
)
