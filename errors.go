// SPDX-License-Identifier: MIT

package mnncorrect

import "errors"

// Error kinds. Subpackages never return these directly; they return their own
// sentinels wrapping one of them. All kinds are recoverable by the caller
// (for instance by retrying with a larger k) and none is ever swallowed.
var (
	// ErrInvalidInput covers caller mistakes: empty feature sets, mismatched
	// dimensions, k outside [1, target size], non-finite values.
	ErrInvalidInput = errors.New("mnncorrect: invalid input")

	// ErrNoMutualNeighbors signals that a batch pair produced zero MNN pairs,
	// so no correction can be estimated. A zero vector is never returned in
	// its place.
	ErrNoMutualNeighbors = errors.New("mnncorrect: no mutual nearest neighbors")

	// ErrNumericalInstability signals a failed or degenerate factorisation
	// (SVD, eigen decomposition, orthogonalisation) or a non-finite result.
	ErrNumericalInstability = errors.New("mnncorrect: numerical instability")
)

// kindError is a package sentinel that reports its own message and unwraps
// to one of the error kinds above.
type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// NewError returns a sentinel with message msg classified under kind.
// Subpackages declare their sentinels with it:
//
//	var ErrKTooLarge = mnncorrect.NewError(mnncorrect.ErrInvalidInput, "neighbors: k exceeds target size")
//
// The message is reported unchanged; errors.Is matches both the sentinel
// itself and kind.
func NewError(kind error, msg string) error {
	return &kindError{msg: msg, kind: kind}
}
