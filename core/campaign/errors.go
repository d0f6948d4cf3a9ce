package campaign

import (
	"errors"
	"fmt"
)

// LoadErrorKind classifies input loading failures.
type LoadErrorKind int

const (
	// KindNotFound means an input file does not exist.
	KindNotFound LoadErrorKind = iota + 1
	// KindUnreadable means an input file exists but could not be read.
	KindUnreadable
	// KindMalformed means an input file does not have the expected structure.
	KindMalformed
	// KindInvalidNumber means a decimal amount could not be parsed.
	KindInvalidNumber
)

func (k LoadErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "file not found"
	case KindUnreadable:
		return "file unreadable"
	case KindMalformed:
		return "malformed structure"
	case KindInvalidNumber:
		return "unparseable numeric string"
	default:
		return "unknown"
	}
}

// ErrNoContributors is wrapped by the LoadError returned for an empty
// contributor list.
var ErrNoContributors = errors.New("campaign: contributor list is empty")

// LoadError reports why a campaign could not be loaded.
type LoadError struct {
	Kind LoadErrorKind
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("campaign: load %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func loadErr(kind LoadErrorKind, path string, err error) *LoadError {
	return &LoadError{Kind: kind, Path: path, Err: err}
}

var (
	// ErrDivideByZero indicates a reward computed against a zero total.
	ErrDivideByZero = errors.New("campaign: total raised is zero")
	// ErrOverflow indicates an intermediate or final value left its range.
	ErrOverflow = errors.New("campaign: arithmetic overflow")
)

// ArithmeticError reports a failed reward computation. It indicates corrupted
// input and is fatal for the run.
type ArithmeticError struct {
	Op  string
	Err error
}

func (e *ArithmeticError) Error() string {
	return fmt.Sprintf("campaign: %s: %v", e.Op, e.Err)
}

func (e *ArithmeticError) Unwrap() error { return e.Err }
